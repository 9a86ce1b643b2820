// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package request

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/SliceFOSS/services/slice/slicer"
)

// SliceReport is the persisted output of one slicing run.
//
// The relevant_function_names_to_line_numbers key is the contract the
// scoring utility and existing ground-truth files key on; everything else
// is diagnostic.
type SliceReport struct {
	// SlicingRequestID echoes the request.
	SlicingRequestID string `json:"slicing_request_id"`

	// Relevant maps function name to sorted relevant line numbers.
	Relevant map[string][]int `json:"relevant_function_names_to_line_numbers"`

	// Incomplete is true when any coverage gap was recorded.
	Incomplete bool `json:"incomplete,omitempty"`

	// CoverageGaps lists criteria whose oracle queries failed recoverably.
	CoverageGaps []slicer.CoverageGap `json:"coverage_gaps,omitempty"`

	// DepthTruncations lists criteria discarded by the depth bound.
	DepthTruncations []slicer.DepthTruncation `json:"depth_truncations,omitempty"`

	// QueriesUsed is the number of oracle invocations.
	QueriesUsed int `json:"queries_used"`

	// GeneratedAt is the report timestamp, RFC 3339.
	GeneratedAt time.Time `json:"generated_at"`
}

// NewSliceReport assembles a report from an orchestrator result.
func NewSliceReport(requestID string, result *slicer.Result) *SliceReport {
	return &SliceReport{
		SlicingRequestID: requestID,
		Relevant:         result.LinesByFunction(),
		Incomplete:       result.Incomplete(),
		CoverageGaps:     result.Gaps(),
		DepthTruncations: result.Truncations(),
		QueriesUsed:      result.Queries(),
		GeneratedAt:      time.Now().UTC(),
	}
}

// Save writes the report as indented JSON under dir, named
// slice_info_<request id>.json, creating dir if needed.
//
// Outputs:
//   - string: The written file path.
//   - error: Non-nil on marshal or filesystem failure.
func (r *SliceReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshaling slice report: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("slice_info_%s.json", r.SlicingRequestID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing slice report %s: %w", path, err)
	}
	return path, nil
}

// LoadReport reads a persisted report from a JSON file.
func LoadReport(path string) (*SliceReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading slice report %s: %w", path, err)
	}

	var report SliceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing slice report %s: %w", path, err)
	}
	return &report, nil
}
