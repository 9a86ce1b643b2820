// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"fmt"
	"strings"
)

// Prompt templates for the two slicing directions. The <FUNCTION> and
// <QUESTION> markers are substituted at query time; the answer format is
// the grammar parseResponse expects.

const backwardTask = `You are a precise program analysis assistant performing intra-procedural BACKWARD slicing on a single C function.

Analysis rules:
- A line is in the backward slice if it contributes to the seed's value at the seed line, through data dependence (assignments, parameter flow) or control dependence (conditions guarding relevant assignments).
- Only consider this one function. Do not guess what called functions do.
- When the seed's value depends on a formal parameter of this function, report that parameter as an external variable.
- When the seed's value depends on the result of a call made by this function, report that call as an Output Value and include the call line in the slice.
- Always include the seed line itself.`

const forwardTask = `You are a precise program analysis assistant performing intra-procedural FORWARD slicing on a single C function.

Analysis rules:
- A line is in the forward slice if it is influenced by the seed's value at the seed line, through data dependence or control dependence.
- Only consider this one function. Do not guess what called functions do.
- When the seed's value flows into an argument of a call made by this function, report that call as an Argument with its positional index and call line.
- When the seed's value flows into this function's return value, report a Return Value external variable.
- Always include the seed line itself.`

const answerFormat = `Answer in exactly this format:

Slice:
<the sliced source lines>

External Variables:
- Type: Parameter. Index: 0.
- Type: Return Value.
- Type: Argument. Callee: callee_name. Index: 1. Line: 12.
- Type: Output Value. Callee: callee_name. Line: 6.

Line numbers in the slice: [1, 2, 5]

Use only the external variable types shown above, one per dashed line, and omit the section's lines entirely when there are none. The final line with the bracketed line numbers is mandatory.`

// BuildPrompt assembles the oracle prompt for a query.
//
// The function body is presented with its original file line numbers and
// the model must answer in the same numbering.
func BuildPrompt(q *Query) string {
	task := backwardTask
	if q.Direction == Forward {
		task = forwardTask
	}

	seedDesc := fmt.Sprintf("the variable %q as it occurs on line %d", q.SeedVariable, q.SeedLine)
	question := fmt.Sprintf("Compute the %s slice of %s.", q.Direction, seedDesc)

	var b strings.Builder
	b.WriteString(task)
	b.WriteString("\n\nFunction (each line prefixed with its file line number):\n")
	b.WriteString(q.Body)
	b.WriteString("\n\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(answerFormat)
	return b.String()
}
