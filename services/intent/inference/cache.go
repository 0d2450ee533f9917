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
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianRouter/services/intent/router"
)

// ResultCache is an LRU cache of successful inference answers with TTL.
//
// Only InferenceOK values are cached; failures are always retried.
//
// Thread Safety: safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key       string
	answer    router.InferenceOK
	expiresAt time.Time
}

// NewResultCache creates a cache. maxSize <= 0 disables caching.
func NewResultCache(ttl time.Duration, maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns a copy of the cached answer for key.
func (c *ResultCache) Get(key string) (router.InferenceOK, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return router.InferenceOK{}, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		c.misses.Add(1)
		return router.InferenceOK{}, false
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return copyAnswer(entry.answer), true
}

// Set stores a copy of answer under key, evicting the least recently used
// entry when full.
func (c *ResultCache) Set(key string, answer router.InferenceOK) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.answer = copyAnswer(answer)
		entry.expiresAt = time.Now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}
	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{
		key:       key,
		answer:    copyAnswer(answer),
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns hit and miss counts.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func copyAnswer(a router.InferenceOK) router.InferenceOK {
	if a.Hints != nil {
		a.Hints = append([]string(nil), a.Hints...)
	}
	return a
}
