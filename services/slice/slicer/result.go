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
	"sort"
	"sync"
)

// CoverageGap records a criterion whose oracle query failed recoverably.
// The slice stays valid for everything else; the gap marks where it may
// be missing lines.
type CoverageGap struct {
	// Function is the function the failed criterion targeted.
	Function string `json:"function"`

	// Line is the failed criterion's seed line.
	Line int `json:"line"`

	// Variable is the failed criterion's seed variable.
	Variable string `json:"variable"`

	// Direction is the failed criterion's direction name.
	Direction string `json:"direction"`

	// Reason is the classified failure ("malformed", "budget", "transport").
	Reason string `json:"reason"`
}

// DepthTruncation records a criterion discarded by the depth bound. A
// bounded-exploration event, not an error.
type DepthTruncation struct {
	// Function is the discarded criterion's target.
	Function string `json:"function"`

	// Line is the discarded criterion's seed line.
	Line int `json:"line"`

	// Depth is the depth the criterion would have run at.
	Depth int `json:"depth"`
}

// Result accumulates the inter-procedural slice as the worklist drains.
//
// Description:
//
//	Lines are kept as per-function sets, so merging is union and a line
//	already present stays present. The accumulator only ever grows;
//	nothing removes lines once added. Emission sorts functions by name
//	and lines numerically, so the output is deterministic regardless of
//	worklist processing order.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type Result struct {
	mu         sync.Mutex
	lines      map[string]map[int]struct{}
	gaps       []CoverageGap
	truncated  []DepthTruncation
	incomplete bool
	queries    int
}

// NewResult creates an empty Result.
func NewResult() *Result {
	return &Result{lines: make(map[string]map[int]struct{})}
}

// MergeLines unions line numbers into a function's relevant set.
func (r *Result) MergeLines(functionID string, lines []int) {
	if len(lines) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.lines[functionID]
	if !ok {
		set = make(map[int]struct{})
		r.lines[functionID] = set
	}
	for _, n := range lines {
		set[n] = struct{}{}
	}
}

// AddLine unions a single line into a function's relevant set.
func (r *Result) AddLine(functionID string, line int) {
	r.MergeLines(functionID, []int{line})
}

// HasLines reports whether any lines were recorded for the function.
func (r *Result) HasLines(functionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines[functionID]) > 0
}

// AddGap records a recoverable oracle failure for a criterion and marks
// the result incomplete.
func (r *Result) AddGap(c SeedCriterion, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gaps = append(r.gaps, CoverageGap{
		Function:  c.Function,
		Line:      c.Line,
		Variable:  c.Variable,
		Direction: c.Direction.String(),
		Reason:    reason,
	})
	r.incomplete = true
}

// AddDepthTruncation records a criterion discarded by the depth bound.
func (r *Result) AddDepthTruncation(c SeedCriterion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.truncated = append(r.truncated, DepthTruncation{Function: c.Function, Line: c.Line, Depth: c.Depth})
}

// MarkIncomplete flags the result as partial without a specific gap.
func (r *Result) MarkIncomplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incomplete = true
}

// CountQuery increments the oracle-invocation counter.
func (r *Result) CountQuery() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
}

// Incomplete reports whether any coverage gap was recorded.
func (r *Result) Incomplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.incomplete
}

// Queries returns the number of oracle invocations counted.
func (r *Result) Queries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries
}

// Gaps returns a copy of the recorded coverage gaps.
func (r *Result) Gaps() []CoverageGap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CoverageGap, len(r.gaps))
	copy(out, r.gaps)
	return out
}

// Truncations returns a copy of the depth-bound discard events.
func (r *Result) Truncations() []DepthTruncation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DepthTruncation, len(r.truncated))
	copy(out, r.truncated)
	return out
}

// FunctionLines returns the sorted line numbers recorded for one function.
func (r *Result) FunctionLines(functionID string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedLines(r.lines[functionID])
}

// LinesByFunction returns the whole slice as function -> sorted lines.
// Functions are emitted only if they have at least one line.
func (r *Result) LinesByFunction() map[string][]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]int, len(r.lines))
	for id, set := range r.lines {
		if len(set) == 0 {
			continue
		}
		out[id] = sortedLines(set)
	}
	return out
}

// FunctionIDs returns the functions with recorded lines, sorted by name.
func (r *Result) FunctionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.lines))
	for id, set := range r.lines {
		if len(set) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TotalLines returns the total number of distinct (function, line) pairs.
func (r *Result) TotalLines() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, set := range r.lines {
		total += len(set)
	}
	return total
}

func sortedLines(set map[int]struct{}) []int {
	lines := make([]int, 0, len(set))
	for n := range set {
		lines = append(lines, n)
	}
	sort.Ints(lines)
	return lines
}
