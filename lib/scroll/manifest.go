// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package scroll implements the publication structures of the
// protocol: the manifest (the "scroll": a story's identity, metadata,
// and commitment to its hash list), the CBOR envelopes that carry
// chunks on the ledger, and the publication package builder that
// assembles everything a publish needs before the first byte is
// submitted ("blueprint first, fill second").
package scroll

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inscribe-foundation/inscribe/lib/glyph"
	"github.com/inscribe-foundation/inscribe/lib/ledger"
)

// NewStoryID generates a story identifier: the "scr-" prefix followed
// by 16 hex characters of randomness. Story IDs are identity, not
// content addresses; the same text published twice is two stories.
func NewStoryID() (string, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generating story id: %w", err)
	}
	return "scr-" + hex.EncodeToString(raw[:]), nil
}

// Manifest is the story's root document. It is constructed locally
// during package building, filled with transaction references as
// submissions confirm, and submitted to the ledger LAST; the root
// transaction's own reference is the story address a reader starts
// from. The JSON shape below is the protocol's interchange format,
// shared with caches and consumers.
type Manifest struct {
	StoryID         string `json:"storyId"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	AuthorPublicKey string `json:"authorPublicKey"`

	// TotalChunks is the number of content chunks (glyphs).
	TotalChunks uint32 `json:"totalChunks"`

	// TotalHashListChunks is the number of hash-list chunks.
	TotalHashListChunks uint32 `json:"totalHashListChunks"`

	// ManifestRootHash commits to the hash-list chunk set: the digest
	// over the concatenation of each hash-list chunk's own digest.
	ManifestRootHash glyph.Digest `json:"manifestRootHash"`

	Timestamp time.Time `json:"timestamp"`

	// HashListChunks holds the confirmed transaction refs of the
	// hash-list chunks, in index order. Empty until the hash-list
	// publication phase completes.
	HashListChunks []ledger.TransactionRef `json:"hashListChunks"`

	// Chunks holds the confirmed transaction refs of the content
	// chunks, in index order. Empty until the content publication
	// phase completes.
	Chunks []ledger.TransactionRef `json:"chunks"`
}

// Validate checks internal consistency of a manifest with all refs
// filled (the form that lands on the ledger and in caches).
func (m *Manifest) Validate() error {
	if m.StoryID == "" {
		return fmt.Errorf("story id is empty")
	}
	if m.TotalChunks < 1 {
		return fmt.Errorf("total chunks %d is invalid (minimum 1)", m.TotalChunks)
	}
	if m.TotalHashListChunks < 1 {
		return fmt.Errorf("total hash-list chunks %d is invalid (minimum 1)", m.TotalHashListChunks)
	}
	if m.ManifestRootHash == (glyph.Digest{}) {
		return fmt.Errorf("manifest root hash is zero")
	}
	if uint32(len(m.HashListChunks)) != m.TotalHashListChunks {
		return fmt.Errorf("manifest has %d hash-list chunk refs, want %d",
			len(m.HashListChunks), m.TotalHashListChunks)
	}
	if uint32(len(m.Chunks)) != m.TotalChunks {
		return fmt.Errorf("manifest has %d chunk refs, want %d", len(m.Chunks), m.TotalChunks)
	}
	for i, ref := range m.HashListChunks {
		if ref.IsZero() {
			return fmt.Errorf("hash-list chunk ref %d is zero", i)
		}
	}
	for i, ref := range m.Chunks {
		if ref.IsZero() {
			return fmt.Errorf("chunk ref %d is zero", i)
		}
	}
	return nil
}

// MarshalManifest encodes the manifest as the JSON interchange form.
func MarshalManifest(m *Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

// UnmarshalManifest decodes and validates a manifest document.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}
