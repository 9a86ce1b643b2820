// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slicer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/SliceFOSS/services/slice/callgraph"
	"github.com/AleutianAI/SliceFOSS/services/slice/oracle"
)

// Default orchestrator tuning values.
const (
	// DefaultMaxDepth bounds call-boundary crossings from the original seed.
	DefaultMaxDepth = 5

	// DefaultWorkers is the concurrent oracle-query limit per wave.
	DefaultWorkers = 4
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxDepth sets the call-depth bound. Criteria beyond it are discarded
// as bounded-exploration events.
func WithMaxDepth(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxDepth = n
		}
	}
}

// WithWorkers sets the concurrent oracle-query limit.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOrchestratorLogger sets the logger. Nil falls back to slog.Default().
func WithOrchestratorLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator drives the inter-procedural fixpoint.
//
// Description:
//
//	The worklist is drained in waves: every criterion at the current
//	frontier is queried concurrently (bounded by workers), the answers
//	are merged into the shared Result, and the boundary bindings are
//	expanded into the next frontier. The visited set guarantees each
//	criterion runs at most once, and the depth bound caps exploration
//	even if the call graph turns out not to be acyclic. Because merging
//	is set union, the final Result is independent of processing order
//	within and across waves.
//
//	Recoverable oracle failures (unparseable answer, exhausted query
//	budget, transport failure) degrade to coverage gaps on the affected
//	criteria; the rest of the slice is still produced. Unknown functions
//	and arity mismatches abort the whole request.
//
// Thread Safety: Safe for concurrent use; each Run owns its own state.
type Orchestrator struct {
	graph    *callgraph.Graph
	oracle   oracle.Oracle
	resolver *Resolver
	maxDepth int
	workers  int
	logger   *slog.Logger
}

// New creates an Orchestrator over a frozen call graph and an oracle.
//
// Inputs:
//   - graph: The frozen call graph. Must not be nil.
//   - orc: The intra-procedural oracle. Must not be nil.
//   - opts: Optional tuning (depth bound, workers, logger).
//
// Outputs:
//   - *Orchestrator: The configured orchestrator.
//   - error: Non-nil if graph or orc is nil, or the graph is not frozen.
func New(graph *callgraph.Graph, orc oracle.Oracle, opts ...Option) (*Orchestrator, error) {
	if orc == nil {
		return nil, fmt.Errorf("New: oracle must not be nil")
	}
	resolver, err := NewResolver(graph)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		graph:    graph,
		oracle:   orc,
		resolver: resolver,
		maxDepth: DefaultMaxDepth,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run computes the inter-procedural slice for one seed criterion.
//
// Inputs:
//   - ctx: Cancels the run, including in-flight oracle queries.
//   - seed: The user-supplied criterion. Its Function must exist in the
//     graph and its Depth should be 0.
//
// Outputs:
//   - *Result: The accumulated slice. Non-nil whenever error is nil; may
//     be marked incomplete if coverage gaps were recorded.
//   - error: Fatal failures only (*callgraph.UnknownFunctionError,
//     *callgraph.ArityMismatchError, context errors).
func (o *Orchestrator) Run(ctx context.Context, seed SeedCriterion) (*Result, error) {
	ctx, span := otel.Tracer(slicerTracerName).Start(ctx, "slicer.Run",
		trace.WithAttributes(
			attribute.String("seed.function", seed.Function),
			attribute.Int("seed.line", seed.Line),
			attribute.String("seed.variable", seed.Variable),
			attribute.String("direction", seed.Direction.String()),
			attribute.Int("max_depth", o.maxDepth),
		),
	)
	defer span.End()

	start := time.Now()
	result := NewResult()
	visited := NewVisitedSet()
	links := newLinkTracker()

	frontier := []SeedCriterion{seed}
	for len(frontier) > 0 {
		wave := o.admit(frontier, visited, result)
		if len(wave) == 0 {
			break
		}

		var (
			nextMu sync.Mutex
			next   []SeedCriterion
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for _, c := range wave {
			c := c
			g.Go(func() error {
				seeds, err := o.processOne(gctx, c, result, links)
				if err != nil {
					return err
				}
				if len(seeds) > 0 {
					nextMu.Lock()
					next = append(next, seeds...)
					nextMu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordRunMetrics(time.Since(start), visited.Len(), true)
			return nil, err
		}
		frontier = next
	}

	recordRunMetrics(time.Since(start), visited.Len(), false)
	span.SetAttributes(
		attribute.Int("criteria", visited.Len()),
		attribute.Int("lines", result.TotalLines()),
		attribute.Int("gaps", len(result.Gaps())),
		attribute.Bool("incomplete", result.Incomplete()),
	)
	o.logger.Info("slice run complete",
		slog.String("seed", seed.String()),
		slog.Int("criteria", visited.Len()),
		slog.Int("queries", result.Queries()),
		slog.Int("lines", result.TotalLines()),
		slog.Int("gaps", len(result.Gaps())),
		slog.Int("truncated", len(result.Truncations())),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// admit filters a frontier against the depth bound and the visited set.
func (o *Orchestrator) admit(frontier []SeedCriterion, visited *VisitedSet, result *Result) []SeedCriterion {
	wave := make([]SeedCriterion, 0, len(frontier))
	for _, c := range frontier {
		if c.Depth > o.maxDepth {
			result.AddDepthTruncation(c)
			o.logger.Debug("criterion discarded by depth bound", slog.String("criterion", c.String()))
			continue
		}
		if !visited.TryVisit(c) {
			continue
		}
		wave = append(wave, c)
	}
	return wave
}

// processOne queries the oracle for one criterion, merges the answer and
// expands its bindings into next-wave seeds.
func (o *Orchestrator) processOne(ctx context.Context, c SeedCriterion, result *Result, links *linkTracker) ([]SeedCriterion, error) {
	fn, err := o.graph.Lookup(c.Function)
	if err != nil {
		return nil, err
	}

	query := &oracle.Query{
		FunctionID:   c.Function,
		Body:         fn.NumberedBody(),
		SeedLine:     c.Line,
		SeedVariable: c.Variable,
		Direction:    c.Direction,
	}
	result.CountQuery()
	criteriaProcessed.Inc()

	fact, err := o.oracle.Slice(ctx, query)
	if err != nil {
		if !oracle.IsRecoverable(err) {
			return nil, err
		}
		reason := gapReason(err)
		o.logger.Warn("oracle query failed, recording coverage gap",
			slog.String("criterion", c.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		result.AddGap(c, reason)
		links.settle(c.Key(), false, result)
		return nil, nil
	}

	result.MergeLines(fact.FunctionID, fact.Lines)
	links.settle(c.Key(), len(fact.Lines) > 0, result)

	crossings, err := o.resolver.Resolve(fact, c.Direction, c.Depth)
	if err != nil {
		return nil, err
	}

	var seeds []SeedCriterion
	for _, cr := range crossings {
		if !cr.HasSeed {
			if cr.LinkLine > 0 {
				result.AddLine(cr.LinkFunction, cr.LinkLine)
			}
			continue
		}
		if cr.LinkLine > 0 {
			links.add(cr.Seed.Key(), cr.LinkFunction, cr.LinkLine, result)
		}
		seeds = append(seeds, cr.Seed)
	}
	return seeds, nil
}

// gapReason classifies a recoverable oracle error for gap records.
func gapReason(err error) string {
	var budget *oracle.BudgetExhaustedError
	if errors.As(err, &budget) {
		return "budget"
	}
	var malformed *oracle.MalformedResponseError
	if errors.As(err, &malformed) {
		return "malformed"
	}
	return "transport"
}

// linkTracker defers call-line inclusion until the crossing it depends on
// produces lines: a call statement is observably relevant only once the
// callee's slice behind it is non-empty.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type linkTracker struct {
	mu       sync.Mutex
	resolved map[string]bool
	pending  map[string][]pendingLink
}

type pendingLink struct {
	function string
	line     int
}

func newLinkTracker() *linkTracker {
	return &linkTracker{
		resolved: make(map[string]bool),
		pending:  make(map[string][]pendingLink),
	}
}

// add registers a call line waiting on the criterion identified by key. If
// the criterion already settled, the line is applied (or dropped) now.
func (t *linkTracker) add(key, function string, line int, result *Result) {
	t.mu.Lock()
	nonEmpty, done := t.resolved[key]
	if !done {
		t.pending[key] = append(t.pending[key], pendingLink{function: function, line: line})
	}
	t.mu.Unlock()

	if done && nonEmpty {
		result.AddLine(function, line)
	}
}

// settle records the outcome for a criterion and flushes its waiting call
// lines when the outcome is non-empty.
func (t *linkTracker) settle(key string, nonEmpty bool, result *Result) {
	t.mu.Lock()
	if _, done := t.resolved[key]; done {
		t.mu.Unlock()
		return
	}
	t.resolved[key] = nonEmpty
	waiting := t.pending[key]
	delete(t.pending, key)
	t.mu.Unlock()

	if !nonEmpty {
		return
	}
	for _, l := range waiting {
		result.AddLine(l.function, l.line)
	}
}
