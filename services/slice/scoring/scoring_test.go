// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestJudge_PerfectMatch(t *testing.T) {
	produced := map[string][]int{"main": {1, 2, 3}, "helper": {10, 11}}
	truth := &GroundTruth{Relevant: map[string][]int{"main": {1, 2, 3}, "helper": {10, 11}}}

	report, err := Judge(produced, truth)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	o := report.Overall
	if o.TruePositives != 5 || o.FalsePositives != 0 || o.FalseNegatives != 0 {
		t.Errorf("overall counts = %+v", o)
	}
	if !approxEqual(o.Precision, 1) || !approxEqual(o.Recall, 1) || !approxEqual(o.F1, 1) {
		t.Errorf("overall scores = %+v, want all 1.0", o)
	}
	if len(report.PerFunction) != 2 {
		t.Errorf("PerFunction = %+v, want 2 entries", report.PerFunction)
	}
}

func TestJudge_PartialMatch(t *testing.T) {
	produced := map[string][]int{"main": {1, 2, 4}}
	truth := &GroundTruth{Relevant: map[string][]int{"main": {1, 2, 3}}}

	report, err := Judge(produced, truth)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	m := report.PerFunction["main"]
	if m.TruePositives != 2 || m.FalsePositives != 1 || m.FalseNegatives != 1 {
		t.Errorf("counts = %+v, want tp=2 fp=1 fn=1", m)
	}
	if !approxEqual(m.Precision, 2.0/3.0) {
		t.Errorf("precision = %v, want 2/3", m.Precision)
	}
	if !approxEqual(m.Recall, 2.0/3.0) {
		t.Errorf("recall = %v, want 2/3", m.Recall)
	}
	if !approxEqual(m.F1, 2.0/3.0) {
		t.Errorf("f1 = %v, want 2/3", m.F1)
	}
}

func TestJudge_WhitelistFiltersBothSides(t *testing.T) {
	// Line 1 is whitelisted: producing it costs nothing, missing it costs
	// nothing.
	produced := map[string][]int{"main": {1, 2}}
	truth := &GroundTruth{
		Relevant:  map[string][]int{"main": {1, 2, 3}},
		Whitelist: map[string][]int{"main": {1, 3}},
	}

	report, err := Judge(produced, truth)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	m := report.PerFunction["main"]
	if m.TruePositives != 1 || m.FalsePositives != 0 || m.FalseNegatives != 0 {
		t.Errorf("counts = %+v, want tp=1 fp=0 fn=0 after whitelist", m)
	}
}

func TestJudge_FunctionOnOneSideOnly(t *testing.T) {
	produced := map[string][]int{"extra": {1, 2}}
	truth := &GroundTruth{Relevant: map[string][]int{"missed": {5}}}

	report, err := Judge(produced, truth)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	extra := report.PerFunction["extra"]
	if extra.FalsePositives != 2 || extra.TruePositives != 0 {
		t.Errorf("extra = %+v, want 2 false positives", extra)
	}
	if !approxEqual(extra.Precision, 0) || !approxEqual(extra.Recall, 0) {
		t.Errorf("extra scores = %+v, want zeros", extra)
	}

	missed := report.PerFunction["missed"]
	if missed.FalseNegatives != 1 {
		t.Errorf("missed = %+v, want 1 false negative", missed)
	}

	o := report.Overall
	if o.TruePositives != 0 || o.FalsePositives != 2 || o.FalseNegatives != 1 {
		t.Errorf("overall = %+v", o)
	}
}

func TestJudge_EmptyBothSides(t *testing.T) {
	report, err := Judge(nil, &GroundTruth{})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	o := report.Overall
	if o.Precision != 0 || o.Recall != 0 || o.F1 != 0 {
		t.Errorf("empty comparison scores = %+v, want zeros (never NaN)", o)
	}
	if len(report.PerFunction) != 0 {
		t.Errorf("PerFunction = %+v, want empty", report.PerFunction)
	}
}

func TestJudge_NilTruth(t *testing.T) {
	if _, err := Judge(map[string][]int{"f": {1}}, nil); err == nil {
		t.Error("expected error for nil ground truth")
	}
}

func TestJudge_OverallAggregatesCounts(t *testing.T) {
	// Overall must aggregate raw counts first, not average per-function
	// scores: the large function dominates.
	produced := map[string][]int{
		"big":   {1, 2, 3, 4, 5, 6, 7, 8, 9},
		"small": {100},
	}
	truth := &GroundTruth{Relevant: map[string][]int{
		"big":   {1, 2, 3, 4, 5, 6, 7, 8, 9},
		"small": {200},
	}}

	report, err := Judge(produced, truth)
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}

	// Averaging per-function precision would give 0.5; count aggregation
	// gives 9/10.
	if !approxEqual(report.Overall.Precision, 0.9) {
		t.Errorf("overall precision = %v, want 0.9", report.Overall.Precision)
	}
	if !approxEqual(report.Overall.Recall, 0.9) {
		t.Errorf("overall recall = %v, want 0.9", report.Overall.Recall)
	}
}
