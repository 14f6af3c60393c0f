// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package storycache caches fully retrieved stories so repeat reads
// skip the ledger entirely. Entries are keyed by the story's root
// transaction ref, and because ledger content is immutable a cache hit
// never needs revalidation: an entry is either present and final or
// absent.
//
// Two implementations are provided: Memory for tests and short-lived
// processes, and Disk for persistent reader-side caching with
// LZ4-compressed, optionally sealed records.
package storycache

import (
	"sync"
	"time"

	"github.com/inscribe-foundation/inscribe/lib/ledger"
	"github.com/inscribe-foundation/inscribe/lib/scroll"
)

// Story is one cached, fully reassembled story.
type Story struct {
	// StoryRef is the root transaction ref the story was retrieved
	// from. The cache key.
	StoryRef ledger.TransactionRef

	// Manifest is the story's validated root document.
	Manifest *scroll.Manifest

	// Text is the plaintext after decipher and decompress.
	Text []byte

	// CachedAt records when the entry was written.
	CachedAt time.Time
}

// Stats summarizes cache contents.
type Stats struct {
	TotalStories   int   `json:"total_stories"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Cache is the reader-side story cache. Implementations must be safe
// for concurrent use. Only complete stories are stored; the retriever
// never writes a partial entry.
type Cache interface {
	// Get returns the cached story, or (nil, false, nil) on a miss.
	Get(ref ledger.TransactionRef) (*Story, bool, error)

	// Put stores a complete story, overwriting any prior entry for the
	// same ref (the bytes are identical anyway; content is immutable).
	Put(story *Story) error

	// Contains reports whether a story is cached, without loading it.
	Contains(ref ledger.TransactionRef) bool

	// Stats reports entry count and stored text size.
	Stats() (Stats, error)
}

// Memory is an in-process Cache backed by a map.
type Memory struct {
	mu      sync.RWMutex
	stories map[ledger.TransactionRef]*Story
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{stories: make(map[ledger.TransactionRef]*Story)}
}

// Get returns the cached story for ref.
func (m *Memory) Get(ref ledger.TransactionRef) (*Story, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	story, ok := m.stories[ref]
	if !ok {
		return nil, false, nil
	}
	return copyStory(story), true, nil
}

// Put stores a story.
func (m *Memory) Put(story *Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[story.StoryRef] = copyStory(story)
	return nil
}

// Contains reports whether ref is cached.
func (m *Memory) Contains(ref ledger.TransactionRef) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stories[ref]
	return ok
}

// Stats reports entry count and total text bytes.
func (m *Memory) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{TotalStories: len(m.stories)}
	for _, story := range m.stories {
		stats.TotalSizeBytes += int64(len(story.Text))
	}
	return stats, nil
}

// copyStory deep-copies the mutable parts so callers and the cache
// never share a Text slice.
func copyStory(s *Story) *Story {
	out := *s
	out.Text = append([]byte(nil), s.Text...)
	if s.Manifest != nil {
		manifest := *s.Manifest
		manifest.HashListChunks = append([]ledger.TransactionRef(nil), s.Manifest.HashListChunks...)
		manifest.Chunks = append([]ledger.TransactionRef(nil), s.Manifest.Chunks...)
		out.Manifest = &manifest
	}
	return &out
}
