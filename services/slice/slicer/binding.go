// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slicer

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/SliceFOSS/services/slice/callgraph"
	"github.com/AleutianAI/SliceFOSS/services/slice/oracle"
)

// Crossing is one boundary binding translated into adjacent-function work.
//
// Seed, when HasSeed is true, is the criterion to enqueue. LinkFunction /
// LinkLine, when LinkLine > 0, name the call line in the caller that joins
// the slice: immediately for a terminal crossing, otherwise once the seed's
// own slicing yields any dependent line (the call statement is observably
// relevant only if something behind it is).
type Crossing struct {
	HasSeed bool
	Seed    SeedCriterion

	LinkFunction string
	LinkLine     int
}

// Resolver translates boundary bindings into seed criteria using the call
// graph, strictly by argument position within a single function namespace.
// No aliasing: a variable name never crosses a boundary except through an
// explicit parameter, argument, return or output binding.
//
// Thread Safety: Stateless over a frozen graph; safe for concurrent use.
type Resolver struct {
	graph *callgraph.Graph
}

// NewResolver creates a Resolver over a frozen graph.
func NewResolver(graph *callgraph.Graph) (*Resolver, error) {
	if graph == nil || !graph.IsFrozen() {
		return nil, fmt.Errorf("NewResolver: graph must be non-nil and frozen")
	}
	return &Resolver{graph: graph}, nil
}

// Resolve expands one dependency fact's bindings into crossings. New
// criteria carry depth = depth + 1.
//
// Outputs:
//   - []Crossing: Zero or more crossings. Bindings that cannot propagate
//     (entry-point parameters, discarded results, void callees) resolve to
//     nothing or to a bare link line.
//   - error: *callgraph.UnknownFunctionError or *callgraph.ArityMismatchError.
//     Both are fatal for the whole request.
func (r *Resolver) Resolve(fact *oracle.DependencyFact, direction oracle.Direction, depth int) ([]Crossing, error) {
	if fact == nil {
		return nil, nil
	}

	var crossings []Crossing
	for _, b := range fact.Bindings {
		var (
			expanded []Crossing
			err      error
		)
		switch {
		case b.Kind == oracle.BindingParameter && direction == oracle.Backward:
			expanded, err = r.resolveParameter(fact.FunctionID, b, depth)
		case b.Kind == oracle.BindingOutputValue && direction == oracle.Backward:
			expanded, err = r.resolveOutputValue(fact.FunctionID, b, depth)
		case b.Kind == oracle.BindingArgument && direction == oracle.Forward:
			expanded, err = r.resolveArgument(fact.FunctionID, b, depth)
		case b.Kind == oracle.BindingReturnValue && direction == oracle.Forward:
			expanded, err = r.resolveReturnValue(fact.FunctionID, depth)
		default:
			// Binding kind does not propagate in this direction
			// (e.g. a Parameter fact during a forward slice).
			continue
		}
		if err != nil {
			return nil, err
		}
		crossings = append(crossings, expanded...)
	}
	return crossings, nil
}

// resolveParameter crosses backward into every caller: the dependency
// reaches formal parameter Index, so each call site re-seeds the caller at
// the call line on the matching actual argument.
func (r *Resolver) resolveParameter(functionID string, b oracle.BoundaryBinding, depth int) ([]Crossing, error) {
	callee, err := r.graph.Lookup(functionID)
	if err != nil {
		return nil, err
	}
	if b.Index < 0 || b.Index >= len(callee.Params) {
		return nil, fmt.Errorf("parameter binding index %d out of range for %s (%d formals)",
			b.Index, functionID, len(callee.Params))
	}

	sites, err := r.graph.CallSitesTo(functionID)
	if err != nil {
		return nil, err
	}

	var crossings []Crossing
	for _, site := range sites {
		if len(site.Args) != len(callee.Params) {
			return nil, &callgraph.ArityMismatchError{
				CallerID: site.CallerID,
				CalleeID: functionID,
				Line:     site.Line,
				Actuals:  len(site.Args),
				Formals:  len(callee.Params),
			}
		}

		// The call line always joins the slice: it is where the value
		// enters the relevant formal parameter.
		crossings = append(crossings, Crossing{LinkFunction: site.CallerID, LinkLine: site.Line})

		variable := argVariable(site.Args[b.Index])
		if variable == "" {
			// Literal actual: the dependency chain ends at the call site.
			continue
		}
		crossings = append(crossings, Crossing{
			HasSeed: true,
			Seed: SeedCriterion{
				Function:  site.CallerID,
				Line:      site.Line,
				Variable:  variable,
				Direction: oracle.Backward,
				Depth:     depth + 1,
			},
		})
	}
	return crossings, nil
}

// resolveOutputValue crosses backward into the callee: the dependency runs
// through a call result, so the callee is seeded at its return-expression
// line. The call line in the caller joins the slice once the callee's
// return slice is non-empty.
func (r *Resolver) resolveOutputValue(functionID string, b oracle.BoundaryBinding, depth int) ([]Crossing, error) {
	callee, err := r.graph.Lookup(b.Callee)
	if err != nil {
		return nil, err
	}
	if callee.ReturnLine == 0 {
		// The callee returns nothing; the call line itself is the end
		// of the chain.
		return []Crossing{{LinkFunction: functionID, LinkLine: b.Line}}, nil
	}

	variable := argVariable(callee.ReturnExpr)
	if variable == "" {
		// Returning a literal: the return line and the call line are
		// relevant, nothing further to chase.
		return []Crossing{{LinkFunction: b.Callee, LinkLine: callee.ReturnLine},
			{LinkFunction: functionID, LinkLine: b.Line}}, nil
	}

	return []Crossing{{
		HasSeed: true,
		Seed: SeedCriterion{
			Function:  b.Callee,
			Line:      callee.ReturnLine,
			Variable:  variable,
			Direction: oracle.Backward,
			Depth:     depth + 1,
		},
		LinkFunction: functionID,
		LinkLine:     b.Line,
	}}, nil
}

// resolveArgument crosses forward into the callee: the dependency flows
// into actual argument Index at a call, so the callee is seeded at its
// entry line on the matching formal parameter.
func (r *Resolver) resolveArgument(functionID string, b oracle.BoundaryBinding, depth int) ([]Crossing, error) {
	callee, err := r.graph.Lookup(b.Callee)
	if err != nil {
		return nil, err
	}

	sites, err := r.graph.CallSitesIn(functionID)
	if err != nil {
		return nil, err
	}
	for _, site := range sites {
		if site.CalleeID != b.Callee || site.Line != b.Line {
			continue
		}
		if len(site.Args) != len(callee.Params) {
			return nil, &callgraph.ArityMismatchError{
				CallerID: functionID,
				CalleeID: b.Callee,
				Line:     site.Line,
				Actuals:  len(site.Args),
				Formals:  len(callee.Params),
			}
		}
	}

	if b.Index < 0 || b.Index >= len(callee.Params) {
		return nil, &callgraph.ArityMismatchError{
			CallerID: functionID,
			CalleeID: b.Callee,
			Line:     b.Line,
			Actuals:  b.Index + 1,
			Formals:  len(callee.Params),
		}
	}

	return []Crossing{{
		HasSeed: true,
		Seed: SeedCriterion{
			Function:  b.Callee,
			Line:      callee.EntryLine(),
			Variable:  callee.Params[b.Index],
			Direction: oracle.Forward,
			Depth:     depth + 1,
		},
	}}, nil
}

// resolveReturnValue crosses forward into every caller that keeps the
// result: the dependency reaches the return value, so each such call site
// re-seeds the caller at the call line on the result variable.
func (r *Resolver) resolveReturnValue(functionID string, depth int) ([]Crossing, error) {
	sites, err := r.graph.CallSitesTo(functionID)
	if err != nil {
		return nil, err
	}

	var crossings []Crossing
	for _, site := range sites {
		if site.Result == "" {
			continue
		}
		crossings = append(crossings, Crossing{
			HasSeed: true,
			Seed: SeedCriterion{
				Function:  site.CallerID,
				Line:      site.Line,
				Variable:  site.Result,
				Direction: oracle.Forward,
				Depth:     depth + 1,
			},
		})
	}
	return crossings, nil
}

// argVariable extracts the base identifier from an actual-argument or
// return expression, or "" for literals and non-identifier expressions.
// The target domain has no address-of or pointer arithmetic, so stripping
// a leading unary operator and trailing index/member accesses is enough.
func argVariable(expr string) string {
	s := strings.TrimSpace(expr)
	s = strings.TrimLeft(s, "&*+-!(")
	s = strings.TrimSpace(s)

	end := 0
	for end < len(s) {
		c := s[end]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (end > 0 && c >= '0' && c <= '9') {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return ""
	}
	ident := s[:end]
	// A bare identifier followed by '(' is a call, not a variable.
	if rest := strings.TrimSpace(s[end:]); strings.HasPrefix(rest, "(") {
		return ""
	}
	return ident
}
