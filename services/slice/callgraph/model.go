// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package callgraph provides the static, read-only call graph model for the
// inter-procedural slicer. Functions and call sites are collected by a
// Builder from parse results, then frozen; after Freeze the graph is
// immutable and safe for concurrent reads.
package callgraph

import (
	"fmt"
	"strings"
)

// Statement is a single numbered source line inside a function body.
//
// Line numbers are 1-based positions in the original source file, never
// renumbered relative to the function start. Scoring compares raw file
// line numbers, so this numbering must match the source exactly.
type Statement struct {
	// Number is the 1-based line number in the source file.
	Number int `json:"number"`

	// Text is the source text of the line, without the trailing newline.
	Text string `json:"text"`
}

// Function is an immutable record of one parsed function.
//
// Description:
//
//	Holds everything the orchestrator and the oracle need to reason about
//	a single function: its numbered statements, formal parameters, and the
//	location of its return expression (if any). Constructed by the Builder
//	and never mutated afterwards.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Function struct {
	// ID is the unique function identifier (the function name).
	ID string `json:"id"`

	// File is the source file path the function was parsed from.
	File string `json:"file"`

	// StartLine is the 1-based line of the function definition.
	StartLine int `json:"start_line"`

	// EndLine is the 1-based line of the closing brace.
	EndLine int `json:"end_line"`

	// Params is the ordered list of formal parameter names.
	Params []string `json:"params"`

	// ReturnLine is the line of the return expression, 0 if the function
	// never returns a value.
	ReturnLine int `json:"return_line,omitempty"`

	// ReturnExpr is the returned expression text, "" if none.
	ReturnExpr string `json:"return_expr,omitempty"`

	// Body is the ordered sequence of statement lines.
	Body []Statement `json:"body"`
}

// EntryLine returns the line where dataflow through a formal parameter
// begins: the definition line itself.
func (f *Function) EntryLine() int {
	return f.StartLine
}

// ContainsLine reports whether the given file line falls inside the function.
func (f *Function) ContainsLine(line int) bool {
	return line >= f.StartLine && line <= f.EndLine
}

// NumberedBody renders the body as "N: text" lines, one per statement.
//
// This is the representation handed to the oracle, which answers in terms
// of these same line numbers.
func (f *Function) NumberedBody() string {
	var b strings.Builder
	for i, st := range f.Body {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: %s", st.Number, st.Text)
	}
	return b.String()
}

// CallSite records one static call from a caller function to a callee.
//
// Actual arguments align with the callee's formal parameters strictly by
// position. The Result field captures the caller variable receiving the
// return value, "" when the result is discarded.
type CallSite struct {
	// CallerID is the enclosing function's identifier.
	CallerID string `json:"caller_id"`

	// Line is the 1-based line of the call expression in the caller's file.
	Line int `json:"line"`

	// CalleeID is the called function's identifier.
	CalleeID string `json:"callee_id"`

	// Args is the ordered list of actual-argument expressions.
	Args []string `json:"args"`

	// Result is the caller variable that receives the return value, if any.
	Result string `json:"result,omitempty"`
}

// ExternalCall records a call whose target was not found among the parsed
// functions (library calls such as printf). External calls never become
// call sites; the slicer does not cross into code it cannot see.
type ExternalCall struct {
	CallerID string `json:"caller_id"`
	Line     int    `json:"line"`
	CalleeID string `json:"callee_id"`
}

// UnknownFunctionError reports a lookup of a function identifier that does
// not exist in the graph. This indicates a call-graph/source mismatch and
// is fatal for the whole slicing request.
type UnknownFunctionError struct {
	// ID is the identifier that failed to resolve.
	ID string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q in call graph", e.ID)
}

// ArityMismatchError reports a call site whose actual-argument count does
// not match the callee's formal-parameter count. Positional binding cannot
// partially match, so this is fatal for the whole slicing request.
type ArityMismatchError struct {
	// CallerID is the function containing the call site.
	CallerID string

	// CalleeID is the called function.
	CalleeID string

	// Line is the call line in the caller.
	Line int

	// Actuals is the number of actual arguments at the call site.
	Actuals int

	// Formals is the number of formal parameters on the callee.
	Formals int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("arity mismatch at %s:%d calling %s: %d argument(s) vs %d parameter(s)",
		e.CallerID, e.Line, e.CalleeID, e.Actuals, e.Formals)
}
