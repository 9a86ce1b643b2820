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
	"sync"
)

// QueryBudget tracks oracle query consumption against a per-run limit.
//
// Description:
//
//	The check-then-spend step is atomic, so concurrent workers cannot
//	overshoot the limit between checking and issuing a query. A limit
//	of 0 means unlimited (no enforcement).
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type QueryBudget struct {
	mu    sync.Mutex
	limit int
	spent int
}

// NewQueryBudget creates a budget. limit 0 means unlimited.
func NewQueryBudget(limit int) *QueryBudget {
	return &QueryBudget{limit: limit}
}

// TrySpend atomically consumes one query from the budget.
//
// Outputs:
//   - bool: True if a query was available and is now consumed.
func (b *QueryBudget) TrySpend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit == 0 {
		b.spent++
		return true
	}
	if b.spent >= b.limit {
		return false
	}
	b.spent++
	return true
}

// Limit returns the configured limit (0 = unlimited).
func (b *QueryBudget) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// Spent returns the number of queries consumed so far.
func (b *QueryBudget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Summary returns a human-readable budget state for logging.
func (b *QueryBudget) Summary() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit == 0 {
		return fmt.Sprintf("%d queries used (unlimited)", b.spent)
	}
	return fmt.Sprintf("%d/%d queries used", b.spent, b.limit)
}
