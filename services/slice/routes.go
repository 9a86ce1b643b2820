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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all slicing routes with the router group.
//
// Description:
//
//	Registers the /v1/slice/* endpoints. The group should already carry
//	any required middleware (recovery, otelgin).
//
// Endpoints:
//
//	POST   /v1/slice/run          - Run a slice request synchronously
//	POST   /v1/slice/judge        - Score a stored report against ground truth
//	GET    /v1/slice/reports      - List stored reports
//	GET    /v1/slice/reports/:id  - Fetch one stored report
//	DELETE /v1/slice/reports/:id  - Delete a stored report
//	GET    /v1/slice/health       - Health check
//	GET    /v1/slice/ready        - Readiness check
//
// Example:
//
//	svc, _ := slice.NewService(cfg, store, logger)
//	handlers := slice.NewHandlers(svc, logger)
//
//	v1 := router.Group("/v1")
//	slice.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	sl := rg.Group("/slice")
	{
		sl.POST("/run", handlers.HandleRun)
		sl.POST("/judge", handlers.HandleJudge)

		sl.GET("/reports", handlers.HandleListReports)
		sl.GET("/reports/:id", handlers.HandleGetReport)
		sl.DELETE("/reports/:id", handlers.HandleDeleteReport)

		sl.GET("/health", handlers.HandleHealth)
		sl.GET("/ready", handlers.HandleReady)
	}
}
