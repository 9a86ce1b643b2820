// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/SliceFOSS/services/slice/ast"
)

var builderTracer = otel.Tracer("slice.callgraph.builder")

// BuildResult summarizes one Build call.
type BuildResult struct {
	// Functions is the number of functions added to the graph.
	Functions int

	// CallSites is the number of resolved internal call sites.
	CallSites int

	// ExternalCalls is the number of calls whose target was not parsed.
	ExternalCalls int

	// Errors collects per-file extraction problems carried over from
	// parsing. The build itself still succeeds.
	Errors []string
}

// Builder constructs a frozen Graph from parse results.
//
// Description:
//
//	Two-phase build: first every FunctionDecl across all files becomes a
//	Function in the arena, then every CallExpr is resolved against the
//	arena. Calls to unparsed targets (libc and friends) are recorded as
//	external calls rather than call sites, so the frozen graph's
//	invariant — every call site's callee exists — holds by construction.
//
//	The builder is stateless and reusable; each Build call produces an
//	independent graph.
//
// Thread Safety: Safe for concurrent use.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder.
//
// Inputs:
//   - logger: Destination for build diagnostics. Nil falls back to
//     slog.Default().
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build assembles and freezes a Graph from parse results.
//
// Outputs:
//   - *Graph: The frozen graph. Nil on error.
//   - *BuildResult: Build statistics. Non-nil whenever the graph is.
//   - error: Non-nil on duplicate function IDs or an empty function set.
func (b *Builder) Build(ctx context.Context, results []*ast.ParseResult) (*Graph, *BuildResult, error) {
	ctx, span := builderTracer.Start(ctx, "callgraph.Build")
	defer span.End()
	_ = ctx

	g := New()
	br := &BuildResult{}

	for _, pr := range results {
		if pr == nil {
			continue
		}
		for _, e := range pr.Errors {
			br.Errors = append(br.Errors, fmt.Sprintf("%s:%d: %s", pr.FilePath, e.Line, e.Message))
		}
		for i := range pr.Functions {
			fd := &pr.Functions[i]
			if err := g.AddFunction(functionFromDecl(fd)); err != nil {
				return nil, nil, fmt.Errorf("building call graph: %w", err)
			}
			br.Functions++
		}
	}

	if br.Functions == 0 {
		return nil, nil, fmt.Errorf("building call graph: no functions in %d parse result(s)", len(results))
	}

	for _, pr := range results {
		if pr == nil {
			continue
		}
		for _, call := range pr.Calls {
			if _, err := g.Lookup(call.Callee); err != nil {
				g.AddExternalCall(ExternalCall{CallerID: call.CallerName, Line: call.Line, CalleeID: call.Callee})
				br.ExternalCalls++
				continue
			}
			cs := &CallSite{
				CallerID: call.CallerName,
				Line:     call.Line,
				CalleeID: call.Callee,
				Args:     call.Args,
				Result:   call.Result,
			}
			if err := g.AddCallSite(cs); err != nil {
				return nil, nil, fmt.Errorf("building call graph: %w", err)
			}
			br.CallSites++
		}
	}

	if err := g.Freeze(); err != nil {
		return nil, nil, err
	}

	span.SetAttributes(
		attribute.Int("functions", br.Functions),
		attribute.Int("call_sites", br.CallSites),
		attribute.Int("external_calls", br.ExternalCalls),
	)
	b.logger.Info("call graph built",
		slog.Int("functions", br.Functions),
		slog.Int("call_sites", br.CallSites),
		slog.Int("external_calls", br.ExternalCalls),
	)

	return g, br, nil
}

// functionFromDecl converts a parsed declaration into the immutable
// Function record.
func functionFromDecl(fd *ast.FunctionDecl) *Function {
	f := &Function{
		ID:         fd.Name,
		File:       fd.File,
		StartLine:  fd.StartLine,
		EndLine:    fd.EndLine,
		Params:     append([]string(nil), fd.Params...),
		ReturnLine: fd.ReturnLine,
		ReturnExpr: fd.ReturnExpr,
	}
	for _, le := range fd.Body {
		f.Body = append(f.Body, Statement{Number: le.Number, Text: le.Text})
	}
	return f
}
