// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/SliceFOSS/services/slice/request"
)

func newTestStore(t *testing.T) *ReportStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("opening in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewReportStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewReportStore: %v", err)
	}
	return store
}

func testReport(id string) *request.SliceReport {
	return &request.SliceReport{
		SlicingRequestID: id,
		Relevant:         map[string][]int{"main": {3, 5, 7}, "helper": {2, 4}},
		QueriesUsed:      3,
		GeneratedAt:      time.Now().UTC(),
	}
}

func TestReportStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta, err := store.Save(ctx, testReport("req-1"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if meta.SlicingRequestID != "req-1" {
		t.Errorf("meta ID = %q", meta.SlicingRequestID)
	}
	if meta.FunctionCount != 2 || meta.LineCount != 5 {
		t.Errorf("meta counts = %d functions / %d lines, want 2/5", meta.FunctionCount, meta.LineCount)
	}
	if meta.CompressedSize <= 0 || meta.ContentHash == "" {
		t.Errorf("meta payload info = %+v", meta)
	}

	loaded, err := store.Load(ctx, "req-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Relevant, testReport("req-1").Relevant) {
		t.Errorf("loaded Relevant = %v", loaded.Relevant)
	}
	if loaded.QueriesUsed != 3 {
		t.Errorf("loaded QueriesUsed = %d", loaded.QueriesUsed)
	}
}

func TestReportStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, testReport("req-1")); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	updated := testReport("req-1")
	updated.Relevant = map[string][]int{"main": {1}}
	if _, err := store.Save(ctx, updated); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load(ctx, "req-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Relevant, updated.Relevant) {
		t.Errorf("loaded Relevant = %v, want overwrite", loaded.Relevant)
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 {
		t.Errorf("List after overwrite = %d entries, want 1", len(metas))
	}
}

func TestReportStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "absent")
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("err = %v, want ErrReportNotFound", err)
	}
}

func TestReportStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-a", "req-b", "req-c"} {
		if _, err := store.Save(ctx, testReport(id)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("List = %d entries, want 3", len(metas))
	}
	for i := 1; i < len(metas); i++ {
		if metas[i-1].StoredAtMilli < metas[i].StoredAtMilli {
			t.Errorf("List not newest-first: %d before %d", metas[i-1].StoredAtMilli, metas[i].StoredAtMilli)
		}
	}
}

func TestReportStore_ListEmpty(t *testing.T) {
	store := newTestStore(t)
	metas, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List = %+v, want empty", metas)
	}
}

func TestReportStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, testReport("req-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "req-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "req-1"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Load after delete = %v, want ErrReportNotFound", err)
	}
	if err := store.Delete(ctx, "req-1"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("second Delete = %v, want ErrReportNotFound", err)
	}
}

func TestReportStore_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, nil); err == nil {
		t.Error("expected error for nil report")
	}
	if _, err := store.Save(ctx, &request.SliceReport{}); err == nil {
		t.Error("expected error for report without request ID")
	}
	if _, err := store.Load(ctx, ""); err == nil {
		t.Error("expected error for empty request ID")
	}
	if err := store.Delete(ctx, ""); err == nil {
		t.Error("expected error for empty request ID")
	}

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("opening badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := NewReportStore(nil, slog.Default()); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := NewReportStore(db, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}
