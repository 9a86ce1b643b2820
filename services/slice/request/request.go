// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package request defines the persisted slice request and report formats.
//
// The JSON field names are a wire contract shared with existing benchmark
// requests and ground-truth files; changing them breaks scoring.
package request

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// SliceRequest is one persisted slicing task.
type SliceRequest struct {
	// SlicingRequestID identifies the request; generated when absent.
	SlicingRequestID string `json:"slicing_request_id"`

	// ProjectPath is the root of the project to slice.
	ProjectPath string `json:"project_path" validate:"required"`

	// FilePath is the source file containing the seed. Must sit inside
	// ProjectPath.
	FilePath string `json:"file_path" validate:"required"`

	// SeedLineNumber is the 1-based line of the seed occurrence.
	SeedLineNumber int `json:"seed_line_number" validate:"gte=1"`

	// SeedName is the seed variable name.
	SeedName string `json:"seed_name" validate:"required"`

	// IsBackward selects backward (true) or forward (false) slicing.
	// Defaults to true when absent, matching existing request files.
	IsBackward *bool `json:"is_backward,omitempty"`
}

// Backward reports the slicing direction, defaulting to backward.
func (r *SliceRequest) Backward() bool {
	return r.IsBackward == nil || *r.IsBackward
}

// DirectionName returns "backward" or "forward".
func (r *SliceRequest) DirectionName() string {
	if r.Backward() {
		return "backward"
	}
	return "forward"
}

func (r *SliceRequest) String() string {
	return fmt.Sprintf("SliceRequest(%s: %s slice of %q at %s:%d)",
		r.SlicingRequestID, r.DirectionName(), r.SeedName, r.FilePath, r.SeedLineNumber)
}

// Validate checks field constraints and path containment.
//
// Description:
//
//	Struct tags cover presence and ranges; on top of that, FilePath must
//	resolve inside ProjectPath, and both must exist on disk. A request
//	without an ID gets a generated UUID, so every report and stored
//	record is addressable.
//
// Outputs:
//   - error: Non-nil with a field-specific message on the first failure.
func (r *SliceRequest) Validate() error {
	r.ProjectPath = strings.TrimSpace(r.ProjectPath)
	r.FilePath = strings.TrimSpace(r.FilePath)
	r.SeedName = strings.TrimSpace(r.SeedName)

	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid slice request: %w", err)
	}

	projectAbs, err := filepath.Abs(r.ProjectPath)
	if err != nil {
		return fmt.Errorf("resolving project_path: %w", err)
	}
	fileAbs, err := filepath.Abs(r.FilePath)
	if err != nil {
		return fmt.Errorf("resolving file_path: %w", err)
	}
	if info, statErr := os.Stat(projectAbs); statErr != nil || !info.IsDir() {
		return fmt.Errorf("project_path %q is not an existing directory", r.ProjectPath)
	}
	if _, statErr := os.Stat(fileAbs); statErr != nil {
		return fmt.Errorf("file_path %q does not exist", r.FilePath)
	}
	rel, err := filepath.Rel(projectAbs, fileAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file_path %q must be inside project_path %q", r.FilePath, r.ProjectPath)
	}

	if r.SlicingRequestID == "" {
		r.SlicingRequestID = uuid.NewString()
	}
	return nil
}

// Load reads and validates one slice request from a JSON file.
//
// Outputs:
//   - *SliceRequest: The validated request, with relative paths resolved
//     against the request file's directory.
//   - error: Non-nil for unreadable files, malformed JSON, or validation
//     failures.
func Load(path string) (*SliceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading slice request %s: %w", path, err)
	}

	var req SliceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing slice request %s: %w", path, err)
	}

	// Relative paths in request files are written relative to the file
	// itself, so requests stay portable across checkouts.
	base := filepath.Dir(path)
	if req.ProjectPath != "" && !filepath.IsAbs(req.ProjectPath) {
		req.ProjectPath = filepath.Join(base, req.ProjectPath)
	}
	if req.FilePath != "" && !filepath.IsAbs(req.FilePath) {
		req.FilePath = filepath.Join(base, req.FilePath)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
