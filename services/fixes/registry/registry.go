// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry exchanges fix records with a shared Weaviate instance.
//
// Every node publishes one object per fix it has local observations for,
// keyed by (node id, fix id). Pulling aggregates the objects of all other
// nodes per fix id, so a node never reads back its own counters.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianRouter/services/fixes"
)

var tracer = otel.Tracer("aleutian.registry")

// DefaultClassName is the Weaviate class holding crowd fixes.
const DefaultClassName = "CrowdFix"

// namespace seeds deterministic object ids.
var namespace = uuid.MustParse("6f1c2a8e-4b7d-4f0e-9a53-2d8c1e7b9f40")

// ErrDisabled is returned when the registry is not configured.
var ErrDisabled = errors.New("fix registry is disabled")

// Config configures the registry client.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url" validate:"omitempty,url"`
	ClassName string `yaml:"class_name"`

	// NodeID identifies this installation. Generated when empty.
	NodeID string `yaml:"node_id"`

	// PublishRate paces object writes per second.
	PublishRate  float64 `yaml:"publish_rate" validate:"gte=0"`
	PublishBurst int     `yaml:"publish_burst" validate:"gte=0"`

	// PageSize caps objects fetched per exception kind.
	PageSize int `yaml:"page_size" validate:"gte=0"`

	// Concurrency bounds parallel pulls.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// DefaultConfig returns a disabled registry pointed at a local Weaviate.
func DefaultConfig() Config {
	return Config{
		URL:          "http://localhost:8080",
		ClassName:    DefaultClassName,
		PublishRate:  5,
		PublishBurst: 5,
		PageSize:     500,
		Concurrency:  4,
	}
}

// Client pulls and publishes crowd fixes.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	client  *weaviate.Client
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a registry client.
//
// # Inputs
//
//   - cfg: Registry configuration. Must be enabled with a URL.
//   - logger: Nil uses slog.Default().
//
// # Outputs
//
//   - *Client: Ready to use. No request is made until Pull or Publish.
//   - error: ErrDisabled, or an invalid URL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.ClassName == "" {
		cfg.ClassName = defaults.ClassName
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid registry url %q", cfg.URL)
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	limit := rate.Inf
	if cfg.PublishRate > 0 {
		limit = rate.Limit(cfg.PublishRate)
	}
	burst := cfg.PublishBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With(slog.String("component", "registry")),
	}, nil
}

// NodeID returns this node's id.
func (c *Client) NodeID() string {
	return c.config.NodeID
}

// =============================================================================
// Schema
// =============================================================================

// Schema returns the Weaviate class definition for crowd fixes.
func Schema(className string) *models.Class {
	filterable := new(bool)
	*filterable = true

	field := func(name, desc string) *models.Property {
		return &models.Property{
			Name:            name,
			DataType:        []string{"text"},
			Description:     desc,
			IndexFilterable: filterable,
			Tokenization:    "field",
		}
	}
	text := func(name, desc string) *models.Property {
		return &models.Property{
			Name:         name,
			DataType:     []string{"text"},
			Description:  desc,
			Tokenization: "word",
		}
	}
	number := func(name, desc string) *models.Property {
		return &models.Property{
			Name:        name,
			DataType:    []string{"int"},
			Description: desc,
		}
	}

	return &models.Class{
		Class:       className,
		Description: "Community fix for an error signature, one object per publishing node",
		Vectorizer:  "none",
		Properties: []*models.Property{
			field("fix_id", "Content hash of signature and solution"),
			field("node_id", "Publishing node"),
			field("exception_kind", "Normalized exception kind"),
			text("normalized_message", "Normalized error message"),
			text("runtime_context", "Runtime description"),
			text("surrounding_code", "Code near the failure"),
			text("solution_text", "Proposed fix"),
			field("derived_from", "Parent fix id"),
			number("created_at", "Unix milliseconds of first sighting"),
			number("success_count", "Successes observed by the node"),
			number("failure_count", "Failures observed by the node"),
			number("unique_contributor_count", "Distinct contributors seen by the node"),
			number("fraud_report_count", "Fraud reports seen by the node"),
		},
	}
}

// EnsureSchema creates the class when it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.client.Schema().ClassGetter().WithClassName(c.config.ClassName).Do(ctx); err == nil {
		return nil
	}
	c.logger.Info("creating registry schema", slog.String("class", c.config.ClassName))
	if err := c.client.Schema().ClassCreator().WithClass(Schema(c.config.ClassName)).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", c.config.ClassName, err)
	}
	return nil
}

// =============================================================================
// Pull
// =============================================================================

var pullFields = []graphql.Field{
	{Name: "fix_id"},
	{Name: "node_id"},
	{Name: "exception_kind"},
	{Name: "normalized_message"},
	{Name: "runtime_context"},
	{Name: "surrounding_code"},
	{Name: "solution_text"},
	{Name: "derived_from"},
	{Name: "created_at"},
	{Name: "success_count"},
	{Name: "failure_count"},
	{Name: "unique_contributor_count"},
	{Name: "fraud_report_count"},
}

// Pull fetches the objects of other nodes for the given exception kinds and
// aggregates them per fix id.
//
// # Description
//
// Kinds are queried in parallel, bounded by Concurrency. The first failing
// kind cancels the rest.
//
// # Outputs
//
//   - []fixes.FixRecord: One record per fix id with summed counters in
//     Local, ready for Engine.Merge. Sorted by fix id.
//   - error: Query failure.
func (c *Client) Pull(ctx context.Context, kinds []string) ([]fixes.FixRecord, error) {
	ctx, span := tracer.Start(ctx, "Registry.Pull")
	defer span.End()

	kinds = uniqueKinds(kinds)
	span.SetAttributes(attribute.Int("kinds", len(kinds)))

	results := make([][]map[string]interface{}, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			objs, err := c.pullKind(gctx, kind)
			if err != nil {
				return fmt.Errorf("pull %s: %w", kind, err)
			}
			results[i] = objs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var all []map[string]interface{}
	for _, objs := range results {
		all = append(all, objs...)
	}
	records := Aggregate(all, c.config.NodeID)
	span.SetAttributes(attribute.Int("records", len(records)))
	c.logger.Debug("registry pulled",
		slog.Int("kinds", len(kinds)),
		slog.Int("objects", len(all)),
		slog.Int("records", len(records)))
	return records, nil
}

func (c *Client) pullKind(ctx context.Context, kind string) ([]map[string]interface{}, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"exception_kind"}).
				WithOperator(filters.Equal).
				WithValueString(kind),
			filters.Where().
				WithPath([]string{"node_id"}).
				WithOperator(filters.NotEqual).
				WithValueString(c.config.NodeID),
		})

	result, err := c.client.GraphQL().Get().
		WithClassName(c.config.ClassName).
		WithFields(pullFields...).
		WithWhere(where).
		WithLimit(c.config.PageSize).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("query error: %s", result.Errors[0].Message)
	}
	return objectsOf(result, c.config.ClassName), nil
}

func objectsOf(result *models.GraphQLResponse, className string) []map[string]interface{} {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := data[className].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, o := range raw {
		if m, ok := o.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Aggregate sums per-node objects into one record per fix id, skipping
// objects published by self.
func Aggregate(objects []map[string]interface{}, self string) []fixes.FixRecord {
	byID := make(map[string]*fixes.FixRecord)
	for _, obj := range objects {
		if getString(obj, "node_id") == self && self != "" {
			continue
		}
		rec, ok := FromProperties(obj)
		if !ok {
			continue
		}
		agg, seen := byID[rec.ID]
		if !seen {
			r := rec
			byID[rec.ID] = &r
			continue
		}
		agg.Local = agg.Local.Add(rec.Local)
		agg.FraudReports += rec.FraudReports
		if agg.DerivedFrom == "" {
			agg.DerivedFrom = rec.DerivedFrom
		}
		if !rec.CreatedAt.IsZero() && (agg.CreatedAt.IsZero() || rec.CreatedAt.Before(agg.CreatedAt)) {
			agg.CreatedAt = rec.CreatedAt
		}
	}

	out := make([]fixes.FixRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// Publish
// =============================================================================

// Publish upserts one object per record for this node, paced by
// PublishRate. It stops at the first error and returns how many objects
// were written.
func (c *Client) Publish(ctx context.Context, records []fixes.FixRecord) (int, error) {
	ctx, span := tracer.Start(ctx, "Registry.Publish")
	defer span.End()

	written := 0
	for _, rec := range records {
		if err := c.limiter.Wait(ctx); err != nil {
			return written, err
		}
		if err := c.upsert(ctx, rec); err != nil {
			span.RecordError(err)
			return written, fmt.Errorf("publish %s: %w", rec.ID, err)
		}
		written++
	}
	span.SetAttributes(attribute.Int("written", written))
	c.logger.Debug("registry published", slog.Int("objects", written))
	return written, nil
}

func (c *Client) upsert(ctx context.Context, rec fixes.FixRecord) error {
	id := ObjectID(c.config.NodeID, rec.ID)
	props := ToProperties(rec, c.config.NodeID)

	exists, err := c.client.Data().Checker().
		WithClassName(c.config.ClassName).
		WithID(id).
		Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return c.client.Data().Updater().
			WithClassName(c.config.ClassName).
			WithID(id).
			WithProperties(props).
			Do(ctx)
	}
	_, err = c.client.Data().Creator().
		WithClassName(c.config.ClassName).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	return err
}

// ObjectID derives the Weaviate object id for (node, fix).
func ObjectID(nodeID, fixID string) string {
	return uuid.NewSHA1(namespace, []byte(nodeID+"/"+fixID)).String()
}

// ToProperties maps a record's local observations to object properties.
func ToProperties(rec fixes.FixRecord, nodeID string) map[string]interface{} {
	return map[string]interface{}{
		"fix_id":                   rec.ID,
		"node_id":                  nodeID,
		"exception_kind":           rec.Signature.ExceptionKind,
		"normalized_message":       rec.Signature.Message,
		"runtime_context":          rec.Signature.RuntimeContext,
		"surrounding_code":         rec.Signature.SurroundingCode,
		"solution_text":            rec.Solution,
		"derived_from":             rec.DerivedFrom,
		"created_at":               rec.CreatedAt.UnixMilli(),
		"success_count":            rec.Local.Success,
		"failure_count":            rec.Local.Failure,
		"unique_contributor_count": rec.Local.Contributors,
		"fraud_report_count":       rec.FraudReports,
	}
}

// FromProperties maps an object back to a remote record. ok is false when
// required fields are missing.
func FromProperties(m map[string]interface{}) (fixes.FixRecord, bool) {
	rec := fixes.FixRecord{
		ID: getString(m, "fix_id"),
		Signature: fixes.ErrorSignature{
			ExceptionKind:   getString(m, "exception_kind"),
			Message:         getString(m, "normalized_message"),
			RuntimeContext:  getString(m, "runtime_context"),
			SurroundingCode: getString(m, "surrounding_code"),
		},
		Solution:    getString(m, "solution_text"),
		Origin:      fixes.OriginRemote,
		DerivedFrom: getString(m, "derived_from"),
		Local: fixes.Counters{
			Success:      getInt(m, "success_count"),
			Failure:      getInt(m, "failure_count"),
			Contributors: getInt(m, "unique_contributor_count"),
		},
		FraudReports: getInt(m, "fraud_report_count"),
		Quarantine:   fixes.QuarantineNone,
	}
	if ms := getInt(m, "created_at"); ms > 0 {
		rec.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if rec.ID == "" || rec.Signature.ExceptionKind == "" || rec.Solution == "" {
		return fixes.FixRecord{}, false
	}
	return rec, true
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func uniqueKinds(kinds []string) []string {
	seen := make(map[string]struct{}, len(kinds))
	var out []string
	for _, k := range kinds {
		k = fixes.NormalizeKind(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KindsOf returns the distinct exception kinds of records.
func KindsOf(records []fixes.FixRecord) []string {
	kinds := make([]string, 0, len(records))
	for _, r := range records {
		kinds = append(kinds, r.Signature.ExceptionKind)
	}
	return uniqueKinds(kinds)
}
