// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring compares a produced slice against a ground-truth mapping
// and reports precision, recall and F1, per function and overall.
//
// Both sides are filtered through an optional per-function whitelist of
// line numbers to ignore before comparison, so conventions about
// non-essential lines (declarations, braces) live in data, not code.
package scoring

import (
	"fmt"
	"sort"
)

// GroundTruth is the expected slice: function name to expected line
// numbers, with an optional per-function whitelist of lines to ignore on
// both sides of the comparison.
type GroundTruth struct {
	// Relevant maps function name to the expected relevant line numbers.
	Relevant map[string][]int `json:"relevant_function_names_to_line_numbers"`

	// Whitelist maps function name to line numbers excluded from both
	// the produced and the expected set before comparison.
	Whitelist map[string][]int `json:"whitelist_line_numbers,omitempty"`
}

// Metrics holds the counts and derived scores for one comparison scope.
type Metrics struct {
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1_score"`
}

// Report is the full scoring output.
type Report struct {
	// RequestID echoes the scored slice request, "" when not supplied.
	RequestID string `json:"slice_request_id,omitempty"`

	// Overall aggregates counts across all functions before deriving
	// scores, so large functions weigh more than small ones.
	Overall Metrics `json:"overall_metrics"`

	// PerFunction holds one Metrics per function seen on either side.
	PerFunction map[string]Metrics `json:"function_metrics"`
}

// Judge scores a produced slice against ground truth.
//
// Inputs:
//   - produced: Function name to produced line numbers.
//   - truth: The expected mapping plus optional whitelist. Must not be nil.
//
// Outputs:
//   - *Report: Per-function and overall metrics. Functions present on
//     either side are scored; absence counts as an empty set.
//   - error: Non-nil if truth is nil.
func Judge(produced map[string][]int, truth *GroundTruth) (*Report, error) {
	if truth == nil {
		return nil, fmt.Errorf("Judge: ground truth must not be nil")
	}

	report := &Report{PerFunction: make(map[string]Metrics)}

	var totalTP, totalFP, totalFN int
	for _, name := range unionKeys(produced, truth.Relevant) {
		whitelist := toSet(truth.Whitelist[name])
		producedSet := filteredSet(produced[name], whitelist)
		expectedSet := filteredSet(truth.Relevant[name], whitelist)

		var tp, fp, fn int
		for line := range producedSet {
			if _, ok := expectedSet[line]; ok {
				tp++
			} else {
				fp++
			}
		}
		for line := range expectedSet {
			if _, ok := producedSet[line]; !ok {
				fn++
			}
		}

		totalTP += tp
		totalFP += fp
		totalFN += fn
		report.PerFunction[name] = deriveMetrics(tp, fp, fn)
	}

	report.Overall = deriveMetrics(totalTP, totalFP, totalFN)
	return report, nil
}

// deriveMetrics computes precision, recall and F1 from raw counts. Empty
// denominators yield 0, not NaN.
func deriveMetrics(tp, fp, fn int) Metrics {
	m := Metrics{TruePositives: tp, FalsePositives: fp, FalseNegatives: fn}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func unionKeys(a, b map[string][]int) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toSet(lines []int) map[int]struct{} {
	set := make(map[int]struct{}, len(lines))
	for _, n := range lines {
		set[n] = struct{}{}
	}
	return set
}

func filteredSet(lines []int, whitelist map[int]struct{}) map[int]struct{} {
	set := make(map[int]struct{}, len(lines))
	for _, n := range lines {
		if _, skip := whitelist[n]; skip {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}
