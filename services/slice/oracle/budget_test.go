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
	"sync"
	"testing"
)

func TestQueryBudget_Limit(t *testing.T) {
	b := NewQueryBudget(3)

	for i := 0; i < 3; i++ {
		if !b.TrySpend() {
			t.Fatalf("spend %d rejected within limit", i+1)
		}
	}
	if b.TrySpend() {
		t.Error("spend beyond limit must be rejected")
	}
	if b.Spent() != 3 {
		t.Errorf("Spent = %d, want 3", b.Spent())
	}
}

func TestQueryBudget_Unlimited(t *testing.T) {
	b := NewQueryBudget(0)
	for i := 0; i < 100; i++ {
		if !b.TrySpend() {
			t.Fatal("unlimited budget must never reject")
		}
	}
	if b.Spent() != 100 {
		t.Errorf("Spent = %d, want 100", b.Spent())
	}
}

func TestQueryBudget_ConcurrentSpend(t *testing.T) {
	const limit = 50
	b := NewQueryBudget(limit)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TrySpend() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != limit {
		t.Errorf("granted = %d, want exactly %d", granted, limit)
	}
}
