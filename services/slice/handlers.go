// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slice

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/SliceFOSS/services/slice/callgraph"
	"github.com/AleutianAI/SliceFOSS/services/slice/request"
	"github.com/AleutianAI/SliceFOSS/services/slice/scoring"
	"github.com/AleutianAI/SliceFOSS/services/slice/storage/badgerstore"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JudgeRequest scores a stored report against inline ground truth.
type JudgeRequest struct {
	// SlicingRequestID names the stored report to score.
	SlicingRequestID string `json:"slicing_request_id" binding:"required"`

	// GroundTruth is the expected mapping plus optional whitelist.
	GroundTruth scoring.GroundTruth `json:"ground_truth" binding:"required"`
}

// Handlers holds the HTTP handlers for the slicing service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(svc *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// getOrCreateRequestID returns the X-Request-ID header or a fresh UUID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleRun handles POST /v1/slice/run.
//
// Description:
//
//	Accepts a SliceRequest body, validates it, runs the slicing pipeline
//	synchronously and returns the report. Fatal slicing errors (unknown
//	function, arity mismatch) are the client's input problem and map to
//	422; everything else unexpected is a 500.
//
// Response:
//
//	200 OK: request.SliceReport
//	400 Bad Request: Malformed or invalid request body
//	422 Unprocessable Entity: Seed or call graph rejects the request
func (h *Handlers) HandleRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRun")

	var req request.SliceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	report, err := h.svc.Run(c.Request.Context(), &req)
	if err != nil {
		var unknown *callgraph.UnknownFunctionError
		var arity *callgraph.ArityMismatchError
		switch {
		case errors.As(err, &unknown):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_FUNCTION"})
		case errors.As(err, &arity):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "ARITY_MISMATCH"})
		default:
			logger.Error("slice run failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "SLICE_FAILED"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleGetReport handles GET /v1/slice/reports/:id.
func (h *Handlers) HandleGetReport(c *gin.Context) {
	store := h.svc.Store()
	if store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "report persistence is disabled", Code: "NO_STORE"})
		return
	}

	report, err := store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, badgerstore.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "REPORT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleListReports handles GET /v1/slice/reports.
func (h *Handlers) HandleListReports(c *gin.Context) {
	store := h.svc.Store()
	if store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "report persistence is disabled", Code: "NO_STORE"})
		return
	}

	metas, err := store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": metas})
}

// HandleDeleteReport handles DELETE /v1/slice/reports/:id.
func (h *Handlers) HandleDeleteReport(c *gin.Context) {
	store := h.svc.Store()
	if store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "report persistence is disabled", Code: "NO_STORE"})
		return
	}

	if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, badgerstore.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "REPORT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleJudge handles POST /v1/slice/judge: scores a stored report
// against ground truth supplied in the request body.
func (h *Handlers) HandleJudge(c *gin.Context) {
	store := h.svc.Store()
	if store == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "report persistence is disabled", Code: "NO_STORE"})
		return
	}

	var jr JudgeRequest
	if err := c.ShouldBindJSON(&jr); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_BODY"})
		return
	}

	report, err := store.Load(c.Request.Context(), jr.SlicingRequestID)
	if err != nil {
		if errors.Is(err, badgerstore.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "REPORT_NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
		return
	}

	scored, err := scoring.Judge(report.Relevant, &jr.GroundTruth)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_GROUND_TRUTH"})
		return
	}
	scored.RequestID = jr.SlicingRequestID
	c.JSON(http.StatusOK, scored)
}

// HandleHealth handles GET /v1/slice/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/slice/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
