// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package slicer implements the inter-procedural slice orchestrator: a
// worklist fixpoint over seed criteria, composing per-function oracle
// answers across call boundaries via the binding resolver.
package slicer

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/SliceFOSS/services/slice/oracle"
)

// SeedCriterion is one unit of slicing work: slice this function, anchored
// at this line and variable, in this direction.
type SeedCriterion struct {
	// Function is the target function identifier.
	Function string `json:"function"`

	// Line is the 1-based file line of the seed occurrence.
	Line int `json:"line"`

	// Variable is the variable name anchoring the slice.
	Variable string `json:"variable"`

	// Direction selects backward or forward slicing.
	Direction oracle.Direction `json:"direction"`

	// Depth is the call-boundary distance from the user's original seed.
	// Not part of identity: the same criterion reached at two different
	// depths is still one unit of work.
	Depth int `json:"depth"`
}

// Key returns the identity of the criterion, excluding depth.
//
// The visited set is keyed on this, so the criterion space is finite
// (function x line x variable x direction) and the fixpoint terminates.
func (c SeedCriterion) Key() string {
	return fmt.Sprintf("%s\x00%d\x00%s\x00%s", c.Function, c.Line, c.Variable, c.Direction)
}

func (c SeedCriterion) String() string {
	return fmt.Sprintf("%s:%d %s (%s, depth %d)", c.Function, c.Line, c.Variable, c.Direction, c.Depth)
}

// VisitedSet is the orchestrator's termination guard: a criterion is
// processed at most once per run, regardless of how many call paths
// rediscover it.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type VisitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewVisitedSet creates an empty VisitedSet.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// TryVisit atomically marks the criterion visited.
//
// Outputs:
//   - bool: True if this call claimed the criterion (first visit), false
//     if it was already visited.
func (v *VisitedSet) TryVisit(c SeedCriterion) bool {
	key := c.Key()

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// Contains reports whether the criterion has been visited.
func (v *VisitedSet) Contains(c SeedCriterion) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.seen[c.Key()]
	return ok
}

// Len returns the number of visited criteria.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
