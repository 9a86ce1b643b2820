// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle defines the intra-procedural dependency oracle capability
// and its LLM-backed implementation.
//
// The orchestrator hands the oracle one function body, one seed line, one
// seed variable and a direction, and receives back the dependent lines
// plus the boundary bindings that must propagate across call edges. How
// the answer is derived — language model, classical dataflow, rule
// engine — is invisible behind the Oracle interface.
package oracle

import "context"

// Direction selects backward (what influences the seed) or forward (what
// the seed influences) slicing.
type Direction int

const (
	// Backward collects statements that influence the seed's value.
	Backward Direction = iota

	// Forward collects statements influenced by the seed's value.
	Forward
)

// String returns the lowercase direction name.
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// IsBackward reports whether this is a backward slice.
func (d Direction) IsBackward() bool {
	return d == Backward
}

// DirectionFromBackward converts the persisted is_backward flag.
func DirectionFromBackward(isBackward bool) Direction {
	if isBackward {
		return Backward
	}
	return Forward
}

// BindingKind classifies a boundary binding.
type BindingKind int

const (
	// BindingParameter: the dependency reaches a formal parameter of the
	// sliced function. Propagates into callers (backward).
	BindingParameter BindingKind = iota

	// BindingReturnValue: the dependency reaches the sliced function's
	// return value. Propagates into callers (forward).
	BindingReturnValue

	// BindingArgument: the dependency flows into an argument of a call
	// made by the sliced function. Propagates into the callee (forward).
	BindingArgument

	// BindingOutputValue: the dependency involves the result of a call
	// made by the sliced function. Propagates into the callee (backward).
	BindingOutputValue
)

// String returns the binding kind name as emitted by the oracle grammar.
func (k BindingKind) String() string {
	switch k {
	case BindingParameter:
		return "Parameter"
	case BindingReturnValue:
		return "Return Value"
	case BindingArgument:
		return "Argument"
	case BindingOutputValue:
		return "Output Value"
	default:
		return "Unknown"
	}
}

// BoundaryBinding is one dependency fact that must be translated into a
// seed criterion in an adjacent function.
//
// Field usage by kind:
//   - Parameter: Index (formal position). Callee, Line unused.
//   - Return Value: no fields.
//   - Argument: Callee, Index (actual position), Line (call line).
//   - Output Value: Callee, Line (call line). Index unused (-1).
type BoundaryBinding struct {
	// Kind classifies the binding.
	Kind BindingKind `json:"kind"`

	// Callee names the called function for Argument and Output Value.
	Callee string `json:"callee,omitempty"`

	// Index is the 0-based positional index, -1 when not applicable.
	Index int `json:"index"`

	// Line is the call line in the sliced function, 0 when not applicable.
	Line int `json:"line,omitempty"`

	// Variable optionally names the variable involved.
	Variable string `json:"variable,omitempty"`
}

// Query is one intra-procedural slicing request.
type Query struct {
	// FunctionID identifies the function being sliced.
	FunctionID string

	// Body is the numbered function body ("N: text" lines). Line numbers
	// are file line numbers, and the oracle answers in the same numbering.
	Body string

	// SeedLine is the 1-based file line of the seed occurrence.
	SeedLine int

	// SeedVariable is the variable name anchoring the slice.
	SeedVariable string

	// Direction selects backward or forward slicing.
	Direction Direction
}

// DependencyFact is the oracle's answer for one query.
type DependencyFact struct {
	// FunctionID echoes the sliced function.
	FunctionID string `json:"function_id"`

	// Lines is the set of relevant line numbers, file-numbered. May
	// contain duplicates from the oracle; consumers merge with set
	// semantics.
	Lines []int `json:"lines"`

	// Bindings are the boundary facts to propagate across call edges.
	Bindings []BoundaryBinding `json:"bindings,omitempty"`
}

// Oracle is the intra-procedural dependency extraction capability.
//
// Implementations must honor ctx cancellation and return one of the typed
// errors from this package on failure. A nil error guarantees a non-nil
// fact.
type Oracle interface {
	Slice(ctx context.Context, q *Query) (*DependencyFact, error)
}
