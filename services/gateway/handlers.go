// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway exposes the router and the fix consensus engine over HTTP.
package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianRouter/pkg/validation"
	"github.com/AleutianAI/AleutianRouter/services/fixes"
	"github.com/AleutianAI/AleutianRouter/services/intent/safemode"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP handlers.
type Handlers struct {
	supervisor *safemode.Supervisor
	engine     *fixes.Engine
	logger     *slog.Logger
}

// NewHandlers creates handlers over a supervisor and an engine.
//
// Inputs:
//
//	supervisor - Wraps the layered router. Required.
//	engine - Fix consensus engine. Required.
//	logger - Logger. nil uses slog.Default().
func NewHandlers(supervisor *safemode.Supervisor, engine *fixes.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{supervisor: supervisor, engine: engine, logger: logger}
}

// HandleClassify handles POST /v1/router/classify.
//
// Description:
//
//	Routes one utterance through the layered router. The router is total,
//	so the only failure is a malformed request body.
//
// Response:
//
//	200 OK: safemode.Outcome
//	400 Bad Request: Invalid body
func (h *Handlers) HandleClassify(c *gin.Context) {
	logger := h.requestLogger(c, "HandleClassify")

	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	out := h.supervisor.Handle(c.Request.Context(), req.Utterance)
	logger.Debug("Classified",
		"route_type", out.Route.Type,
		"layer", out.Route.Layer.String(),
		"confidence", out.Route.Confidence,
		"mode", out.Mode)
	c.JSON(http.StatusOK, out)
}

// HandleSafeMode handles GET /v1/router/safemode.
func (h *Handlers) HandleSafeMode(c *gin.Context) {
	c.JSON(http.StatusOK, SafeModeResponse{
		Status:       h.supervisor.State().Status(),
		SafeCommands: h.supervisor.SafeCommands(),
	})
}

// HandleLookup handles POST /v1/fixes/lookup.
//
// Response:
//
//	200 OK: LookupResponse, possibly with no results
//	400 Bad Request: Invalid body or signature
func (h *Handlers) HandleLookup(c *gin.Context) {
	logger := h.requestLogger(c, "HandleLookup")

	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	if err := h.engine.CheckSignature(req.Signature); err != nil {
		logger.Warn("Invalid signature", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SIGNATURE"})
		return
	}

	results := h.engine.Lookup(c.Request.Context(), req.Signature)
	logger.Info("Lookup complete",
		"exception_kind", req.Signature.ExceptionKind,
		"results", len(results))
	c.JSON(http.StatusOK, LookupResponse{Results: results})
}

// HandleSubmit handles POST /v1/fixes.
//
// Response:
//
//	201 Created: fixes.SubmitResult for a new fix
//	200 OK: fixes.SubmitResult when the fix already existed
//	400 Bad Request: Invalid submission
//	404 Not Found: derived_from names an unknown fix
//	409 Conflict: Lineage cycle, depth or immutability violation
func (h *Handlers) HandleSubmit(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSubmit")

	var req fixes.Submission
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	res, err := h.engine.Submit(c.Request.Context(), req)
	if err != nil {
		status, code := submitErrorStatus(err)
		logger.Warn("Submission rejected", "error", err, "code", code)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Fix submitted",
		"fix_id", res.FixID,
		"created", res.Created,
		"quarantined", res.Quarantined)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, fixes.ErrMalformedSignature):
		return http.StatusBadRequest, "INVALID_SIGNATURE"
	case errors.Is(err, fixes.ErrEmptySolution):
		return http.StatusBadRequest, "EMPTY_SOLUTION"
	case errors.Is(err, fixes.ErrInvalidSubmission):
		return http.StatusBadRequest, "INVALID_SUBMISSION"
	case errors.Is(err, fixes.ErrParentNotFound):
		return http.StatusNotFound, "PARENT_NOT_FOUND"
	case errors.Is(err, fixes.ErrCyclicLineage):
		return http.StatusConflict, "CYCLIC_LINEAGE"
	case errors.Is(err, fixes.ErrLineageTooDeep):
		return http.StatusConflict, "LINEAGE_TOO_DEEP"
	case errors.Is(err, fixes.ErrLineageImmutable):
		return http.StatusConflict, "LINEAGE_IMMUTABLE"
	default:
		return http.StatusInternalServerError, "SUBMIT_FAILED"
	}
}

// HandleGetFix handles GET /v1/fixes/:id.
func (h *Handlers) HandleGetFix(c *gin.Context) {
	id, ok := fixIDParam(c)
	if !ok {
		return
	}
	rec, err := h.engine.Get(id)
	if err != nil {
		h.notFound(c, err)
		return
	}
	rate, _ := rec.SuccessRate()
	lineage, _ := h.engine.Lineage(id)
	c.JSON(http.StatusOK, FixResponse{
		Record:      rec,
		Tier:        h.engine.Tier(rec),
		SuccessRate: rate,
		Lineage:     lineage,
	})
}

// HandleLineage handles GET /v1/fixes/:id/lineage.
func (h *Handlers) HandleLineage(c *gin.Context) {
	id, ok := fixIDParam(c)
	if !ok {
		return
	}
	ancestors, err := h.engine.Lineage(id)
	if err != nil {
		h.notFound(c, err)
		return
	}
	children, err := h.engine.Children(id)
	if err != nil {
		h.notFound(c, err)
		return
	}
	if ancestors == nil {
		ancestors = []string{}
	}
	if children == nil {
		children = []string{}
	}
	c.JSON(http.StatusOK, LineageResponse{FixID: id, Ancestors: ancestors, Children: children})
}

// HandleReport handles POST /v1/fixes/:id/report.
//
// Description:
//
//	Records one outcome. Reporting never fails once the body is valid: an
//	unknown fix id yields a receipt with applied=false.
//
// Response:
//
//	200 OK: fixes.ReportReceipt
//	400 Bad Request: Invalid fix id, body, outcome or contributor
func (h *Handlers) HandleReport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReport")

	id, ok := fixIDParam(c)
	if !ok {
		return
	}

	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	if err := validation.ValidateContributorID(req.ContributorID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_CONTRIBUTOR"})
		return
	}
	outcome, err := fixes.ParseOutcome(req.Outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_OUTCOME"})
		return
	}

	receipt := h.engine.Report(c.Request.Context(), id, outcome, req.ContributorID)
	if !receipt.Applied {
		logger.Warn("Report not applied", "fix_id", receipt.FixID)
	}
	c.JSON(http.StatusOK, receipt)
}

// HandleFraud handles POST /v1/fixes/:id/fraud.
func (h *Handlers) HandleFraud(c *gin.Context) {
	logger := h.requestLogger(c, "HandleFraud")

	id, ok := fixIDParam(c)
	if !ok {
		return
	}

	var req FraudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	if err := validation.ValidateContributorID(req.ContributorID); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_CONTRIBUTOR"})
		return
	}

	receipt := h.engine.ReportFraud(c.Request.Context(), id, req.ContributorID)
	if receipt.Quarantined {
		logger.Info("Fix quarantined after fraud reports", "fix_id", receipt.FixID)
	}
	c.JSON(http.StatusOK, receipt)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   ServiceVersion,
		Timestamp: time.Now().UTC(),
		Fixes:     h.engine.Stats(),
	})
}

// fixIDParam reads and validates the :id path parameter, writing a 400 on
// failure.
func fixIDParam(c *gin.Context) (string, bool) {
	id, err := validation.SanitizeFixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_FIX_ID"})
		return "", false
	}
	return id, true
}

func (h *Handlers) notFound(c *gin.Context, err error) {
	if errors.Is(err, fixes.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "FIX_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INTERNAL"})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

const requestIDKey = "request_id"

// RequestID assigns every request an id before any handler runs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

// getOrCreateRequestID reuses the caller's X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header("X-Request-ID", requestID)
	return requestID
}
