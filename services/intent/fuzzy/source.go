// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fuzzy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianRouter/services/intent/route"
)

// Source supplies candidate targets for a route type.
type Source interface {
	Candidates(ctx context.Context) ([]route.Candidate, error)
}

// StaticSource is a fixed list of identifiers, such as a model catalog.
type StaticSource struct {
	names []string
}

// NewStaticSource copies names into a source.
func NewStaticSource(names ...string) *StaticSource {
	return &StaticSource{names: append([]string(nil), names...)}
}

// Candidates returns one candidate per name.
func (s *StaticSource) Candidates(_ context.Context) ([]route.Candidate, error) {
	out := make([]route.Candidate, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, route.Candidate{Identifier: n})
	}
	return out, nil
}

// DirectorySource lists files under a root directory.
//
// # Description
//
// Walks at most MaxDepth levels below Root, scanning subdirectories
// concurrently. Hidden entries and well-known dependency or build
// directories are skipped. Identifiers are slash-separated paths relative
// to Root.
//
// # Thread Safety
//
// Safe for concurrent use; each call performs an independent scan.
type DirectorySource struct {
	Root        string
	MaxDepth    int
	MaxEntries  int
	Concurrency int
}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// NewDirectorySource creates a source with conservative limits.
func NewDirectorySource(root string) *DirectorySource {
	return &DirectorySource{
		Root:        root,
		MaxDepth:    3,
		MaxEntries:  5000,
		Concurrency: 8,
	}
}

// Candidates scans the tree. Unreadable subdirectories are skipped; only an
// unreadable root is an error.
func (d *DirectorySource) Candidates(ctx context.Context) ([]route.Candidate, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Root, err)
	}

	var (
		mu  sync.Mutex
		out []route.Candidate
	)
	collect := func(c route.Candidate) bool {
		mu.Lock()
		defer mu.Unlock()
		if d.MaxEntries > 0 && len(out) >= d.MaxEntries {
			return false
		}
		out = append(out, c)
		return true
	}

	g, gCtx := errgroup.WithContext(ctx)
	if d.Concurrency > 0 {
		g.SetLimit(d.Concurrency)
	}

	for _, e := range entries {
		if skipEntry(e) {
			continue
		}
		if e.IsDir() {
			if d.MaxDepth <= 1 {
				continue
			}
			rel := e.Name()
			g.Go(func() error {
				d.walk(gCtx, rel, 2, collect)
				return nil
			})
			continue
		}
		if c, ok := d.candidate(e, e.Name()); ok && !collect(c) {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (d *DirectorySource) walk(ctx context.Context, rel string, depth int, collect func(route.Candidate) bool) {
	if ctx.Err() != nil {
		return
	}
	entries, err := os.ReadDir(filepath.Join(d.Root, filepath.FromSlash(rel)))
	if err != nil {
		return
	}
	for _, e := range entries {
		if skipEntry(e) {
			continue
		}
		child := rel + "/" + e.Name()
		if e.IsDir() {
			if depth < d.MaxDepth {
				d.walk(ctx, child, depth+1, collect)
			}
			continue
		}
		if c, ok := d.candidate(e, child); ok && !collect(c) {
			return
		}
	}
}

func (d *DirectorySource) candidate(e os.DirEntry, rel string) (route.Candidate, bool) {
	info, err := e.Info()
	if err != nil {
		return route.Candidate{}, false
	}
	return route.Candidate{Identifier: rel, LastModified: info.ModTime()}, true
}

func skipEntry(e os.DirEntry) bool {
	name := e.Name()
	if strings.HasPrefix(name, ".") {
		return true
	}
	return e.IsDir() && skipDirs[name]
}
