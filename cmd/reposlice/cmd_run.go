// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/SliceFOSS/services/slice"
	"github.com/AleutianAI/SliceFOSS/services/slice/request"
	"github.com/AleutianAI/SliceFOSS/services/slice/telemetry"
)

// Run command flag values.
var (
	runCallDepth   int
	runMaxQueryNum int
	runMaxWorkers  int
	runProvider    string
	runModel       string
	runBaseURL     string
	runResultDir   string
)

var runCmd = &cobra.Command{
	Use:   "run <request.json>",
	Short: "Run one slice request and write the report",
	Long: `Run loads a slice request file, parses the C project it points at,
computes the inter-procedural slice and writes the report as
slice_info_<request id>.json into the result directory.

A run with coverage gaps still succeeds: the report carries an
incompleteness marker and the gap list. Malformed requests and
call-graph inconsistencies (unknown functions, arity mismatches)
fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlice,
}

func init() {
	runCmd.Flags().IntVar(&runCallDepth, "call-depth", -1, "Maximum call-boundary depth (overrides config)")
	runCmd.Flags().IntVar(&runMaxQueryNum, "max-query-num", -1, "Oracle query budget, 0 = unlimited (overrides config)")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", -1, "Concurrent oracle queries (overrides config)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Oracle provider: openai or ollama (overrides config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model name (overrides config)")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Provider base URL (overrides config)")
	runCmd.Flags().StringVar(&runResultDir, "result-dir", "", "Report output directory (overrides config)")
}

func runSlice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runCallDepth >= 0 {
		cfg.MaxCallDepth = runCallDepth
	}
	if runMaxQueryNum >= 0 {
		cfg.MaxQueries = runMaxQueryNum
	}
	if runMaxWorkers > 0 {
		cfg.Workers = runMaxWorkers
	}
	if runProvider != "" {
		cfg.Provider = runProvider
	}
	if runModel != "" {
		cfg.Model = runModel
	}
	if runBaseURL != "" {
		cfg.BaseURL = runBaseURL
	}
	if runResultDir != "" {
		cfg.ResultDir = runResultDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	req, err := request.Load(args[0])
	if err != nil {
		return err
	}

	spanSink := io.Writer(io.Discard)
	if debug {
		spanSink = os.Stderr
	}
	shutdown, err := telemetry.Setup(spanSink)
	if err != nil {
		return err
	}
	defer shutdown(context.Background()) //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := slice.NewService(cfg, nil, slog.Default())
	if err != nil {
		return err
	}

	report, err := svc.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("slicing %s: %w", req.SlicingRequestID, err)
	}

	path, err := report.Save(cfg.ResultDir)
	if err != nil {
		return err
	}

	fmt.Printf("The slicing result is saved in %s\n", path)
	if report.Incomplete {
		fmt.Printf("Note: the slice is incomplete (%d coverage gap(s)); see the report for details.\n", len(report.CoverageGaps))
	}
	return nil
}
