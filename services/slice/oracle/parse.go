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
	"regexp"
	"strconv"
	"strings"
)

// Response grammar. The model answers with a "Slice:" block, an optional
// "External Variables:" bullet list, and a mandatory bracketed line list.
var (
	slicePattern       = regexp.MustCompile(`(?s)Slice:\s*(.*?)\s*External Variables:`)
	sliceOnlyPattern   = regexp.MustCompile(`(?s)Slice:\s*(.*?)\s*Line numbers in the slice:`)
	extValuesPattern   = regexp.MustCompile(`(?s)External Variables:\s*((?:-[^\n]*(?:\n|$))+)`)
	lineNumbersPattern = regexp.MustCompile(`Line numbers in the slice:\s*\[([^\]]*)\]`)

	extVarPattern = regexp.MustCompile(
		`^\s*-\s*Type:\s*(?P<type>Output Value|Parameter|Argument|Return Value)\.` +
			`(?:\s+Callee:\s*(?P<callee>[^\s.]+)\.)?` +
			`(?:\s+Index:\s*(?P<index>\d+)\.)?` +
			`(?:\s+Name:\s*(?P<name>[^\s.]+)\.)?` +
			`(?:\s+Line:\s*(?P<line>\d+)\.)?` +
			`\s*$`)
)

// parseResponse parses a raw model response into a DependencyFact.
//
// Description:
//
//	Ported grammar: bullets that fail to match or miss mandatory fields
//	for their type are silently skipped (a sloppy bullet should not sink
//	an otherwise usable answer), but a missing line-number list makes the
//	whole response unusable.
//
// Outputs:
//   - *DependencyFact: Parsed fact. Nil exactly when error is non-nil.
//   - error: Non-nil when the mandatory sections are absent or unreadable.
func parseResponse(response string, q *Query) (*DependencyFact, error) {
	if m := slicePattern.FindStringSubmatch(response); m == nil {
		if m2 := sliceOnlyPattern.FindStringSubmatch(response); m2 == nil {
			return nil, fmt.Errorf("response has no Slice section")
		}
	}

	lm := lineNumbersPattern.FindStringSubmatch(response)
	if lm == nil {
		return nil, fmt.Errorf("response has no line-number list")
	}

	fact := &DependencyFact{FunctionID: q.FunctionID}

	for _, tok := range strings.Split(lm[1], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("unreadable line number %q", tok)
		}
		fact.Lines = append(fact.Lines, n)
	}

	if em := extValuesPattern.FindStringSubmatch(response); em != nil {
		for _, line := range strings.Split(em[1], "\n") {
			if b, ok := parseBinding(line); ok {
				fact.Bindings = append(fact.Bindings, b)
			}
		}
	}

	return fact, nil
}

// parseBinding parses one "- Type: ..." bullet. Returns false for bullets
// that do not match the grammar or miss fields mandatory for their type.
func parseBinding(line string) (BoundaryBinding, bool) {
	m := extVarPattern.FindStringSubmatch(line)
	if m == nil {
		return BoundaryBinding{}, false
	}

	group := func(name string) string {
		for i, n := range extVarPattern.SubexpNames() {
			if n == name {
				return m[i]
			}
		}
		return ""
	}

	b := BoundaryBinding{
		Callee:   group("callee"),
		Index:    -1,
		Variable: group("name"),
	}
	if idx := group("index"); idx != "" {
		n, err := strconv.Atoi(idx)
		if err != nil {
			return BoundaryBinding{}, false
		}
		b.Index = n
	}
	if ln := group("line"); ln != "" {
		n, err := strconv.Atoi(ln)
		if err != nil {
			return BoundaryBinding{}, false
		}
		b.Line = n
	}

	switch group("type") {
	case "Parameter":
		if b.Index < 0 {
			return BoundaryBinding{}, false
		}
		b.Kind = BindingParameter
	case "Return Value":
		b.Kind = BindingReturnValue
	case "Argument":
		if b.Callee == "" || b.Index < 0 || b.Line == 0 {
			return BoundaryBinding{}, false
		}
		b.Kind = BindingArgument
	case "Output Value":
		if b.Callee == "" || b.Line == 0 {
			return BoundaryBinding{}, false
		}
		b.Kind = BindingOutputValue
	default:
		return BoundaryBinding{}, false
	}

	return b, true
}
