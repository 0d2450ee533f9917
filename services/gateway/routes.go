// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianRouter/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the router and fix endpoints.
//
// Description:
//
//	Registers all /v1/router/* and /v1/fixes/* endpoints with the given
//	Gin router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/router/classify - Route one utterance
//	GET  /v1/router/safemode - Current safe-mode state
//	POST /v1/fixes/lookup - Ranked fixes for an error signature
//	POST /v1/fixes - Submit a fix
//	GET  /v1/fixes/:id - One fix with trust tier
//	GET  /v1/fixes/:id/lineage - Ancestors and direct descendants
//	POST /v1/fixes/:id/report - Record a success or failure
//	POST /v1/fixes/:id/fraud - Report a fix as fraudulent
//	GET  /v1/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	router := rg.Group("/router")
	{
		router.POST("/classify", handlers.HandleClassify)
		router.GET("/safemode", handlers.HandleSafeMode)
	}

	fixGroup := rg.Group("/fixes")
	{
		fixGroup.POST("", handlers.HandleSubmit)
		fixGroup.POST("/lookup", handlers.HandleLookup)
		fixGroup.GET("/:id", handlers.HandleGetFix)
		fixGroup.GET("/:id/lineage", handlers.HandleLineage)
		fixGroup.POST("/:id/report", handlers.HandleReport)
		fixGroup.POST("/:id/fraud", handlers.HandleFraud)
	}

	rg.GET("/health", handlers.HandleHealth)
}

// Config controls the HTTP listener.
type Config struct {
	Addr            string        `yaml:"addr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// DefaultConfig listens on localhost only.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:12310",
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewEngine builds the gin engine with tracing, recovery, request ids and
// /metrics.
func NewEngine(handlers *Handlers, serviceName string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(serviceName))
	engine.Use(RequestID())
	engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	RegisterRoutes(engine.Group("/v1"), handlers)
	return engine
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func Serve(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("gateway shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}
