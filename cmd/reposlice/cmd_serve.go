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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/SliceFOSS/services/slice"
	"github.com/AleutianAI/SliceFOSS/services/slice/storage/badgerstore"
	"github.com/AleutianAI/SliceFOSS/services/slice/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the slicing HTTP API",
	Long: `Serve starts the slicing HTTP API on the configured listen address,
with report persistence in BadgerDB and Prometheus metrics on /metrics.`,
	RunE: serveSlice,
}

func serveSlice(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
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

	// Report persistence degrades gracefully: the API still slices when
	// BadgerDB is unavailable, it just cannot store or list reports.
	var store *badgerstore.ReportStore
	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLogger(nil))
	if err != nil {
		slog.Warn("BadgerDB unavailable, report persistence disabled",
			slog.String("path", cfg.BadgerPath),
			slog.String("error", err.Error()),
		)
	} else {
		defer db.Close()
		store, err = badgerstore.NewReportStore(db, slog.Default())
		if err != nil {
			return err
		}
		slog.Info("report store opened", slog.String("path", cfg.BadgerPath))
	}

	svc, err := slice.NewService(cfg, store, slog.Default())
	if err != nil {
		return err
	}
	handlers := slice.NewHandlers(svc, slog.Default())

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("slicefoss"))
	if debug {
		router.Use(gin.Logger())
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := router.Group("/v1")
	slice.RegisterRoutes(v1, handlers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down slicing server")
		if db != nil {
			if err := db.Close(); err != nil {
				slog.Warn("closing BadgerDB failed", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	slog.Info("starting slicing server", slog.String("address", cfg.ListenAddr))
	return router.Run(cfg.ListenAddr)
}
