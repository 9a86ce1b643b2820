// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badgerstore persists slice reports in BadgerDB so past runs can
// be listed, re-served and re-scored without recomputing them.
package badgerstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/SliceFOSS/services/slice/request"
)

// BadgerDB key prefixes for slice reports.
const (
	keyPrefixReport = "slice:report:"
	keySuffixData   = ":data"
	keySuffixMeta   = ":meta"
)

// ErrReportNotFound is returned when no report exists for a request ID.
var ErrReportNotFound = errors.New("slice report not found")

// ReportMetadata describes one stored report without its payload.
type ReportMetadata struct {
	// SlicingRequestID identifies the stored report.
	SlicingRequestID string `json:"slicing_request_id"`

	// FunctionCount is the number of functions with relevant lines.
	FunctionCount int `json:"function_count"`

	// LineCount is the total number of relevant lines.
	LineCount int `json:"line_count"`

	// Incomplete mirrors the report's incompleteness marker.
	Incomplete bool `json:"incomplete"`

	// StoredAtMilli is when the report was saved (Unix milliseconds UTC).
	StoredAtMilli int64 `json:"stored_at_milli"`

	// CompressedSize is the gzip payload size in bytes.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is SHA256 of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// ReportStore manages slice reports in BadgerDB.
//
// Description:
//
//	Reports are stored as gzip-compressed JSON keyed by request ID, with
//	a small metadata record alongside for cheap listing. Saving the same
//	request ID again overwrites the previous report.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type ReportStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewReportStore creates a ReportStore over an opened BadgerDB instance.
// The DB is owned by the caller.
func NewReportStore(db *badger.DB, logger *slog.Logger) (*ReportStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &ReportStore{db: db, logger: logger}, nil
}

// Save persists one report.
//
// Key Schema:
//
//	slice:report:{requestID}:data → gzip(JSON(SliceReport))
//	slice:report:{requestID}:meta → JSON(ReportMetadata)
func (s *ReportStore) Save(ctx context.Context, report *request.SliceReport) (*ReportMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if report == nil || report.SlicingRequestID == "" {
		return nil, fmt.Errorf("report must be non-nil with a request ID")
	}

	jsonData, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing report: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	lineCount := 0
	for _, lines := range report.Relevant {
		lineCount += len(lines)
	}

	sum := sha256.Sum256(compressedData)
	meta := &ReportMetadata{
		SlicingRequestID: report.SlicingRequestID,
		FunctionCount:    len(report.Relevant),
		LineCount:        lineCount,
		Incomplete:       report.Incomplete,
		StoredAtMilli:    time.Now().UnixMilli(),
		CompressedSize:   int64(len(compressedData)),
		ContentHash:      hex.EncodeToString(sum[:]),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling report metadata: %w", err)
	}

	dataKey := keyPrefixReport + report.SlicingRequestID + keySuffixData
	metaKey := keyPrefixReport + report.SlicingRequestID + keySuffixMeta

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing report to badger: %w", err)
	}

	s.logger.Info("slice report saved",
		slog.String("request_id", report.SlicingRequestID),
		slog.Int("functions", meta.FunctionCount),
		slog.Int("lines", meta.LineCount),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a report by request ID.
//
// Outputs:
//   - *request.SliceReport: The stored report.
//   - error: ErrReportNotFound if the ID has no stored report.
func (s *ReportStore) Load(ctx context.Context, requestID string) (*request.SliceReport, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if requestID == "" {
		return nil, fmt.Errorf("request ID must not be empty")
	}

	dataKey := keyPrefixReport + requestID + keySuffixData
	var compressedData []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressedData = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", requestID, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gr.Close()

	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("decompressing report %s: %w", requestID, err)
	}

	var report request.SliceReport
	if err := json.Unmarshal(jsonData, &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report %s: %w", requestID, err)
	}
	return &report, nil
}

// List returns metadata for all stored reports, newest first.
func (s *ReportStore) List(ctx context.Context) ([]*ReportMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	var metas []*ReportMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixReport)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !bytes.HasSuffix(item.Key(), []byte(keySuffixMeta)) {
				continue
			}
			err := item.Value(func(val []byte) error {
				var meta ReportMetadata
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("unmarshaling metadata %s: %w", item.Key(), err)
				}
				metas = append(metas, &meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].StoredAtMilli > metas[j].StoredAtMilli })
	return metas, nil
}

// Delete removes a stored report.
//
// Outputs:
//   - error: ErrReportNotFound if the ID has no stored report.
func (s *ReportStore) Delete(ctx context.Context, requestID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if requestID == "" {
		return fmt.Errorf("request ID must not be empty")
	}

	dataKey := keyPrefixReport + requestID + keySuffixData
	metaKey := keyPrefixReport + requestID + keySuffixMeta

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaKey)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(dataKey)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaKey))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrReportNotFound, requestID)
	}
	if err != nil {
		return fmt.Errorf("deleting report %s: %w", requestID, err)
	}

	s.logger.Info("slice report deleted", slog.String("request_id", requestID))
	return nil
}
