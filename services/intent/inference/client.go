// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
	"github.com/AleutianAI/AleutianRouter/services/intent/router"
)

var tracer = otel.Tracer("aleutian.inference")

// ErrRateLimited is returned inside InferenceUnavailable when the local
// request budget is exhausted.
var ErrRateLimited = errors.New("inference rate budget exhausted")

// =============================================================================
// Configuration
// =============================================================================

// Config configures the OpenAI-compatible collaborator.
type Config struct {
	// BaseURL of an OpenAI-compatible API, e.g. http://localhost:11434/v1.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Model name sent with each request.
	Model string `yaml:"model" validate:"required"`

	// APIKey for hosted endpoints. Local servers ignore it.
	APIKey string `yaml:"-"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds one HTTP round trip.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// RatePerSecond and Burst form the token bucket. Zero rate disables it.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int     `yaml:"burst" validate:"gte=0"`

	// CacheTTL and CacheSize bound the answer cache. Zero size disables it.
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	CacheSize int           `yaml:"cache_size" validate:"gte=0"`

	// MaxRetries for transport errors, with exponential backoff from RetryBackoff.
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0,lte=5"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"`

	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// DefaultConfig targets a local Ollama server.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:11434/v1",
		Model:         "llama3.2",
		APIKeyEnv:     "ALEUTIAN_ROUTER_API_KEY",
		Timeout:       5 * time.Second,
		RatePerSecond: 2,
		Burst:         4,
		CacheTTL:      10 * time.Minute,
		CacheSize:     256,
		MaxRetries:    1,
		RetryBackoff:  200 * time.Millisecond,
	}
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, "base_url is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, "model is required")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if c.RatePerSecond < 0 || c.Burst < 0 {
		errs = append(errs, "rate_per_second and burst must be non-negative")
	}
	if c.RatePerSecond > 0 && c.Burst == 0 {
		errs = append(errs, "burst must be positive when rate_per_second is set")
	}
	if c.MaxRetries < 0 || c.MaxRetries > 5 {
		errs = append(errs, "max_retries must be in [0,5]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid inference config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// =============================================================================
// Collaborator
// =============================================================================

// OpenAICollaborator answers delegated classification requests through an
// OpenAI-compatible chat completion API.
//
// Description:
//
//	Requests are served from the answer cache when possible, then checked
//	against the rate budget, then coalesced per utterance so concurrent
//	identical requests share one round trip. Only well-formed answers are
//	cached.
//
// Thread Safety: safe for concurrent use.
type OpenAICollaborator struct {
	client   *openai.Client
	config   Config
	cache    *ResultCache
	limiter  *rate.Limiter
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewOpenAICollaborator creates a collaborator.
//
// # Inputs
//
//   - cfg: Validated configuration. APIKey falls back to APIKeyEnv.
//   - logger: Nil uses slog.Default().
//
// # Outputs
//
//   - *OpenAICollaborator: Ready to use.
//   - error: Non-nil if cfg is invalid.
func NewOpenAICollaborator(cfg Config, logger *slog.Logger) (*OpenAICollaborator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" && cfg.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(cfg.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}

	return &OpenAICollaborator{
		client:  openai.NewClientWithConfig(clientCfg),
		config:  cfg,
		cache:   NewResultCache(cfg.CacheTTL, cfg.CacheSize),
		limiter: limiter,
		logger:  logger.With(slog.String("component", "inference")),
	}, nil
}

// Cache exposes the answer cache for inspection.
func (c *OpenAICollaborator) Cache() *ResultCache {
	return c.cache
}

// Infer implements router.Collaborator.
func (c *OpenAICollaborator) Infer(ctx context.Context, req router.InferenceRequest) router.InferenceResult {
	ctx, span := tracer.Start(ctx, "OpenAICollaborator.Infer")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.config.Model))

	key := cacheKey(req)
	if answer, ok := c.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return answer
	}

	if c.limiter != nil && !c.limiter.Allow() {
		span.SetStatus(codes.Error, "rate limited")
		return router.InferenceUnavailable{
			Reason: "rate limited",
			Err:    fmt.Errorf("%w: %w", router.ErrCollaboratorUnavailable, ErrRateLimited),
		}
	}

	v, _, shared := c.inflight.Do(key, func() (interface{}, error) {
		return c.inferWithRetry(ctx, req), nil
	})
	span.SetAttributes(attribute.Bool("coalesced", shared))

	res := v.(router.InferenceResult)
	switch r := res.(type) {
	case router.InferenceOK:
		c.cache.Set(key, r)
		return copyAnswer(r)
	case router.InferenceUnavailable:
		span.SetStatus(codes.Error, r.Reason)
	case router.InferenceMalformed:
		span.SetStatus(codes.Error, "malformed")
	}
	return res
}

func (c *OpenAICollaborator) inferWithRetry(ctx context.Context, req router.InferenceRequest) router.InferenceResult {
	backoff := c.config.RetryBackoff
	var res router.InferenceResult
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying inference",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return unavailableFromContext(ctx)
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		res = c.doInfer(ctx, req)
		u, ok := res.(router.InferenceUnavailable)
		if !ok || errors.Is(u.Err, router.ErrCollaboratorTimeout) || ctx.Err() != nil {
			return res
		}
	}
	return res
}

func (c *OpenAICollaborator) doInfer(ctx context.Context, req router.InferenceRequest) router.InferenceResult {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req)},
			{Role: openai.ChatMessageRoleUser, Content: req.Utterance},
		},
	})
	if err != nil {
		if callCtx.Err() != nil {
			return unavailableFromContext(callCtx)
		}
		c.logger.Warn("inference request failed",
			slog.String("model", c.config.Model),
			slog.String("error", err.Error()))
		return router.InferenceUnavailable{
			Reason: "request failed",
			Err:    fmt.Errorf("%w: %w", router.ErrCollaboratorUnavailable, err),
		}
	}
	if len(resp.Choices) == 0 {
		return router.InferenceMalformed{Err: fmt.Errorf("%w: no choices", router.ErrMalformedResponse)}
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("inference answered",
		slog.String("model", c.config.Model),
		slog.Duration("latency", time.Since(start)),
		slog.Int("tokens", resp.Usage.TotalTokens))
	return ParseAnswer(content)
}

func unavailableFromContext(ctx context.Context) router.InferenceResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return router.InferenceUnavailable{Reason: "timeout", Err: router.ErrCollaboratorTimeout}
	}
	return router.InferenceUnavailable{
		Reason: "cancelled",
		Err:    fmt.Errorf("%w: %w", router.ErrCollaboratorUnavailable, ctx.Err()),
	}
}

func systemPrompt(req router.InferenceRequest) string {
	instruction := req.Instruction
	if instruction == "" {
		instruction = router.DefaultInstruction
	}
	var b strings.Builder
	b.WriteString(instruction)
	if len(req.AllowedIntents) > 0 {
		b.WriteString("\nAllowed intents: ")
		b.WriteString(joinTypes(req.AllowedIntents))
		b.WriteString(".")
	}
	return b.String()
}

func joinTypes(types []route.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func cacheKey(req router.InferenceRequest) string {
	return joinTypes(req.AllowedIntents) + "\x00" + req.Utterance
}
