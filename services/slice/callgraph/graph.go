// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the arena of Function records plus their call sites.
//
// Description:
//
//	Functions are keyed by identifier in an explicit map rather than a
//	recursive structure. Call sites are grouped by caller; a reverse
//	index (callee -> sites) is built once at Freeze time to serve
//	CallSitesTo in O(1).
//
//	The graph has a mutable build phase ended by Freeze(): mutation after
//	Freeze is rejected, and consumers must not read until Freeze has
//	completed. The domain guarantees acyclic call structure, but the
//	graph does not verify it; the orchestrator's visited set and depth
//	bound defend against violations.
//
// Thread Safety: Safe for concurrent use. After Freeze all operations
// are read-only.
type Graph struct {
	mu            sync.RWMutex
	frozen        bool
	functions     map[string]*Function
	sitesByCaller map[string][]*CallSite
	sitesByCallee map[string][]*CallSite
	externals     []ExternalCall
}

// New creates an empty, unfrozen Graph.
func New() *Graph {
	return &Graph{
		functions:     make(map[string]*Function),
		sitesByCaller: make(map[string][]*CallSite),
		sitesByCallee: make(map[string][]*CallSite),
	}
}

// AddFunction adds a function to the arena.
//
// Outputs:
//   - error: Non-nil if the graph is frozen, the function is nil or has an
//     empty ID, or the ID is already present.
func (g *Graph) AddFunction(f *Function) error {
	if f == nil || f.ID == "" {
		return fmt.Errorf("AddFunction: function must have a non-empty ID")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return fmt.Errorf("AddFunction: graph is frozen")
	}
	if _, exists := g.functions[f.ID]; exists {
		return fmt.Errorf("AddFunction: duplicate function ID %q", f.ID)
	}
	g.functions[f.ID] = f
	return nil
}

// AddCallSite records a call site under its caller.
//
// The callee is not required to exist yet; Freeze validates that every
// call site's callee resolves, since files arrive in arbitrary order.
func (g *Graph) AddCallSite(cs *CallSite) error {
	if cs == nil || cs.CallerID == "" || cs.CalleeID == "" {
		return fmt.Errorf("AddCallSite: caller and callee IDs must be non-empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return fmt.Errorf("AddCallSite: graph is frozen")
	}
	g.sitesByCaller[cs.CallerID] = append(g.sitesByCaller[cs.CallerID], cs)
	return nil
}

// AddExternalCall records a call whose target is outside the parsed set.
func (g *Graph) AddExternalCall(ec ExternalCall) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return
	}
	g.externals = append(g.externals, ec)
}

// Freeze ends the build phase.
//
// Description:
//
//	Validates that every call site's caller and callee exist in the
//	function arena, sorts each caller's sites by line for deterministic
//	iteration, and builds the reverse callee index. After Freeze the
//	graph is immutable.
//
// Outputs:
//   - error: *UnknownFunctionError if any call site references a function
//     missing from the arena. The graph stays unfrozen on error.
func (g *Graph) Freeze() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return nil
	}

	for callerID, sites := range g.sitesByCaller {
		if _, ok := g.functions[callerID]; !ok {
			return &UnknownFunctionError{ID: callerID}
		}
		for _, cs := range sites {
			if _, ok := g.functions[cs.CalleeID]; !ok {
				return &UnknownFunctionError{ID: cs.CalleeID}
			}
		}
	}

	for _, sites := range g.sitesByCaller {
		sort.SliceStable(sites, func(i, j int) bool { return sites[i].Line < sites[j].Line })
		for _, cs := range sites {
			g.sitesByCallee[cs.CalleeID] = append(g.sitesByCallee[cs.CalleeID], cs)
		}
	}
	for _, sites := range g.sitesByCallee {
		sort.SliceStable(sites, func(i, j int) bool {
			if sites[i].CallerID != sites[j].CallerID {
				return sites[i].CallerID < sites[j].CallerID
			}
			return sites[i].Line < sites[j].Line
		})
	}

	g.frozen = true
	return nil
}

// IsFrozen reports whether Freeze has completed.
func (g *Graph) IsFrozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Lookup resolves a function identifier.
//
// Outputs:
//   - *Function: The function record. Never nil on success.
//   - error: *UnknownFunctionError if the ID does not exist. Callers must
//     treat this as a hard error, not an empty result.
func (g *Graph) Lookup(id string) (*Function, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	f, ok := g.functions[id]
	if !ok {
		return nil, &UnknownFunctionError{ID: id}
	}
	return f, nil
}

// CallSitesIn returns the call sites inside a function, ordered by line.
//
// Outputs:
//   - []*CallSite: May be empty for leaf functions. Callers must not mutate.
//   - error: *UnknownFunctionError if the function does not exist.
func (g *Graph) CallSitesIn(id string) ([]*CallSite, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.functions[id]; !ok {
		return nil, &UnknownFunctionError{ID: id}
	}
	return g.sitesByCaller[id], nil
}

// CallSitesTo returns the call sites targeting a function, across all
// callers, ordered by (caller, line).
//
// Outputs:
//   - []*CallSite: May be empty for entry points. Callers must not mutate.
//   - error: *UnknownFunctionError if the function does not exist.
func (g *Graph) CallSitesTo(id string) ([]*CallSite, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.functions[id]; !ok {
		return nil, &UnknownFunctionError{ID: id}
	}
	return g.sitesByCallee[id], nil
}

// FunctionAt locates the function enclosing the given file line.
//
// Used to resolve a seed criterion from a (file, line) slice request.
//
// Outputs:
//   - *Function: The enclosing function.
//   - error: *UnknownFunctionError (with a synthetic file:line ID) if no
//     parsed function contains the line.
func (g *Graph) FunctionAt(file string, line int) (*Function, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, f := range g.functions {
		if f.File == file && f.ContainsLine(line) {
			return f, nil
		}
	}
	return nil, &UnknownFunctionError{ID: fmt.Sprintf("%s:%d", file, line)}
}

// FunctionIDs returns all function identifiers in sorted order.
func (g *Graph) FunctionIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.functions))
	for id := range g.functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExternalCalls returns the recorded calls to unparsed targets.
func (g *Graph) ExternalCalls() []ExternalCall {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.externals
}

// Stats returns the function and call-site counts.
func (g *Graph) Stats() (functions, callSites int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	functions = len(g.functions)
	for _, sites := range g.sitesByCaller {
		callSites += len(sites)
	}
	return functions, callSites
}
