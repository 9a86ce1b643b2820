// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package slice is the slicing service: it turns a persisted slice request
// into a call graph, runs the inter-procedural orchestrator against the
// configured oracle backend, and returns (and optionally stores) the
// resulting report.
package slice

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/SliceFOSS/services/slice/ast"
	"github.com/AleutianAI/SliceFOSS/services/slice/callgraph"
	"github.com/AleutianAI/SliceFOSS/services/slice/config"
	"github.com/AleutianAI/SliceFOSS/services/slice/oracle"
	"github.com/AleutianAI/SliceFOSS/services/slice/request"
	"github.com/AleutianAI/SliceFOSS/services/slice/slicer"
	"github.com/AleutianAI/SliceFOSS/services/slice/storage/badgerstore"
)

var serviceTracer = otel.Tracer("slice.service")

// Service wires the parser, call-graph builder, oracle and orchestrator
// behind one entry point.
//
// Thread Safety: Safe for concurrent use; each run builds its own graph
// and orchestrator state.
type Service struct {
	cfg    *config.Config
	store  *badgerstore.ReportStore
	parser *ast.CParser
	logger *slog.Logger

	// newClient is swappable for tests.
	newClient func(cfg *config.Config) (oracle.Client, error)
}

// NewService creates a Service.
//
// Inputs:
//   - cfg: Effective configuration. Must not be nil.
//   - store: Report store, or nil to skip persistence.
//   - logger: Nil falls back to slog.Default().
func NewService(cfg *config.Config, store *badgerstore.ReportStore, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewService: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		parser:    ast.NewCParser(),
		logger:    logger,
		newClient: defaultClient,
	}, nil
}

// defaultClient builds the oracle transport for the configured provider.
func defaultClient(cfg *config.Config) (oracle.Client, error) {
	switch cfg.Provider {
	case "ollama":
		if cfg.Model != "" {
			return oracle.NewOllamaClientWithConfig(cfg.Model, cfg.BaseURL), nil
		}
		return oracle.NewOllamaClient()
	case "openai":
		if cfg.Model != "" && cfg.BaseURL != "" {
			return oracle.NewOpenAIClientWithConfig(os.Getenv("OPENAI_API_KEY"), cfg.Model, cfg.BaseURL), nil
		}
		return oracle.NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}

// Run executes one slice request end to end.
//
// Description:
//
//	Parses every .c file under the request's project path, builds and
//	freezes the call graph, locates the function enclosing the seed
//	line, and runs the orchestrator. The report is stored when a report
//	store is configured; storage failures are logged, not fatal, since
//	the report is already computed.
//
// Outputs:
//   - *request.SliceReport: The computed report. Nil on error.
//   - error: Parse, graph-construction, or fatal slicing failures
//     (*callgraph.UnknownFunctionError, *callgraph.ArityMismatchError).
func (s *Service) Run(ctx context.Context, req *request.SliceRequest) (*request.SliceReport, error) {
	ctx, span := serviceTracer.Start(ctx, "slice.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", req.SlicingRequestID),
		attribute.String("direction", req.DirectionName()),
	)

	start := time.Now()

	graph, err := s.buildGraph(ctx, req.ProjectPath)
	if err != nil {
		return nil, err
	}

	seedFn, err := graph.FunctionAt(normalizePath(req.FilePath), req.SeedLineNumber)
	if err != nil {
		return nil, fmt.Errorf("locating seed function: %w", err)
	}

	client, err := s.newClient(s.cfg)
	if err != nil {
		return nil, fmt.Errorf("creating oracle client: %w", err)
	}

	budget := oracle.NewQueryBudget(s.cfg.MaxQueries)
	orc, err := oracle.NewLLMOracle(client,
		oracle.WithQueryBudget(budget),
		oracle.WithRateLimit(s.cfg.RateLimitPerMinute),
		oracle.WithCallTimeout(time.Duration(s.cfg.CallTimeoutSeconds)*time.Second),
		oracle.WithMaxAttempts(s.cfg.MaxAttempts),
		oracle.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	orch, err := slicer.New(graph, orc,
		slicer.WithMaxDepth(s.cfg.MaxCallDepth),
		slicer.WithWorkers(s.cfg.Workers),
		slicer.WithOrchestratorLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	seed := slicer.SeedCriterion{
		Function:  seedFn.ID,
		Line:      req.SeedLineNumber,
		Variable:  req.SeedName,
		Direction: oracle.DirectionFromBackward(req.Backward()),
	}

	result, err := orch.Run(ctx, seed)
	if err != nil {
		return nil, err
	}

	report := request.NewSliceReport(req.SlicingRequestID, result)
	s.logger.Info("slice request complete",
		slog.String("request_id", req.SlicingRequestID),
		slog.String("seed_function", seedFn.ID),
		slog.Int("functions", len(report.Relevant)),
		slog.Bool("incomplete", report.Incomplete),
		slog.String("budget", budget.Summary()),
		slog.Duration("elapsed", time.Since(start)),
	)

	if s.store != nil {
		if _, err := s.store.Save(ctx, report); err != nil {
			s.logger.Error("storing slice report failed", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

// buildGraph parses every C file under projectPath and builds the frozen
// call graph.
func (s *Service) buildGraph(ctx context.Context, projectPath string) (*callgraph.Graph, error) {
	var results []*ast.ParseResult

	err := filepath.WalkDir(projectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".c") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		pr, err := s.parser.Parse(ctx, content, normalizePath(path))
		if err != nil {
			return err
		}
		results = append(results, pr)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning project %s: %w", projectPath, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no C source files under %s", projectPath)
	}

	graph, _, err := callgraph.NewBuilder(s.logger).Build(ctx, results)
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// Store exposes the report store, nil when persistence is disabled.
func (s *Service) Store() *badgerstore.ReportStore {
	return s.store
}

// normalizePath makes file paths comparable between the request and the
// parsed records.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
