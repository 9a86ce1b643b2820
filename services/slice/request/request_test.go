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
	"os"
	"path/filepath"
	"testing"
)

// writeProject lays out a throwaway project with one C file and returns
// (projectDir, filePath).
func writeProject(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "main.c")
	if err := os.WriteFile(file, []byte("int main(void) { return 0; }\n"), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return dir, file
}

func TestValidate_GeneratesID(t *testing.T) {
	dir, file := writeProject(t)
	req := &SliceRequest{
		ProjectPath:    dir,
		FilePath:       file,
		SeedLineNumber: 1,
		SeedName:       "x",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.SlicingRequestID == "" {
		t.Error("Validate must generate a request ID when absent")
	}
}

func TestValidate_KeepsExplicitID(t *testing.T) {
	dir, file := writeProject(t)
	req := &SliceRequest{
		SlicingRequestID: "req-7",
		ProjectPath:      dir,
		FilePath:         file,
		SeedLineNumber:   1,
		SeedName:         "x",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.SlicingRequestID != "req-7" {
		t.Errorf("ID = %q, want req-7", req.SlicingRequestID)
	}
}

func TestValidate_Failures(t *testing.T) {
	dir, file := writeProject(t)
	outside := filepath.Join(t.TempDir(), "other.c")
	if err := os.WriteFile(outside, []byte("int x;\n"), 0o644); err != nil {
		t.Fatalf("writing outside file: %v", err)
	}

	cases := []struct {
		name string
		req  SliceRequest
	}{
		{"missing project path", SliceRequest{FilePath: file, SeedLineNumber: 1, SeedName: "x"}},
		{"missing seed name", SliceRequest{ProjectPath: dir, FilePath: file, SeedLineNumber: 1}},
		{"zero seed line", SliceRequest{ProjectPath: dir, FilePath: file, SeedName: "x"}},
		{"nonexistent project", SliceRequest{ProjectPath: filepath.Join(dir, "nope"), FilePath: file, SeedLineNumber: 1, SeedName: "x"}},
		{"nonexistent file", SliceRequest{ProjectPath: dir, FilePath: filepath.Join(dir, "nope.c"), SeedLineNumber: 1, SeedName: "x"}},
		{"file outside project", SliceRequest{ProjectPath: dir, FilePath: outside, SeedLineNumber: 1, SeedName: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			if err := req.Validate(); err == nil {
				t.Errorf("Validate accepted %+v", tc.req)
			}
		})
	}
}

func TestBackward_DefaultsTrue(t *testing.T) {
	var req SliceRequest
	if !req.Backward() {
		t.Error("direction must default to backward")
	}
	if req.DirectionName() != "backward" {
		t.Errorf("DirectionName = %q", req.DirectionName())
	}

	forward := false
	req.IsBackward = &forward
	if req.Backward() {
		t.Error("explicit is_backward=false must select forward")
	}
	if req.DirectionName() != "forward" {
		t.Errorf("DirectionName = %q", req.DirectionName())
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir, _ := writeProject(t)

	reqPath := filepath.Join(dir, "request.json")
	body := `{
    "slicing_request_id": "rel-1",
    "project_path": ".",
    "file_path": "main.c",
    "seed_line_number": 1,
    "seed_name": "x"
}`
	if err := os.WriteFile(reqPath, []byte(body), 0o644); err != nil {
		t.Fatalf("writing request file: %v", err)
	}

	req, err := Load(reqPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if req.FilePath != filepath.Join(dir, "main.c") {
		t.Errorf("FilePath = %q, want %q", req.FilePath, filepath.Join(dir, "main.c"))
	}
	if req.SlicingRequestID != "rel-1" {
		t.Errorf("ID = %q", req.SlicingRequestID)
	}
	if !req.Backward() {
		t.Error("absent is_backward must default to backward")
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing request file")
	}
}

func TestSliceRequest_WireFields(t *testing.T) {
	// The JSON keys are shared with existing benchmark request files.
	body := `{
    "slicing_request_id": "wire-1",
    "project_path": "/p",
    "file_path": "/p/f.c",
    "seed_line_number": 12,
    "seed_name": "total",
    "is_backward": false
}`
	var req SliceRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.SlicingRequestID != "wire-1" || req.SeedLineNumber != 12 || req.SeedName != "total" {
		t.Errorf("decoded = %+v", req)
	}
	if req.Backward() {
		t.Error("is_backward=false must decode as forward")
	}
}
