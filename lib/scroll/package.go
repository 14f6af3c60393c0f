// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package scroll

import (
	"fmt"
	"time"

	"github.com/inscribe-foundation/inscribe/lib/cipher"
	"github.com/inscribe-foundation/inscribe/lib/compress"
	"github.com/inscribe-foundation/inscribe/lib/glyph"
	"github.com/inscribe-foundation/inscribe/lib/ledger"
)

// StoryParams is the writer-supplied metadata for a publication.
type StoryParams struct {
	Title           string
	Author          string
	AuthorPublicKey string
}

// Summary reports what a built package will cost to publish. Surfaced
// to the writer before submission; compression savings directly
// reduce ledger spend.
type Summary struct {
	// Compression reports original vs. compressed size of the text.
	Compression compress.Stats `json:"compression"`

	// PublishedBytes is the total post-cipher content size that will
	// land on the ledger, before envelope framing.
	PublishedBytes int `json:"published_bytes"`

	TotalChunks         uint32 `json:"total_chunks"`
	TotalHashListChunks uint32 `json:"total_hash_list_chunks"`
}

// PublicationPackage is the fully assembled publication: manifest,
// hash-list chunks, and content chunks, built entirely before any
// ledger write begins. The structure is fixed at build time; the only
// mutation afterward is the publisher recording confirmed transaction
// refs, which is also what makes an interrupted publish resumable
// without duplicating confirmed work.
type PublicationPackage struct {
	Manifest       *Manifest
	HashListChunks []glyph.HashListChunk
	Glyphs         []glyph.Glyph
	Summary        Summary

	// HashListRefs and GlyphRefs record confirmed transaction refs by
	// index; the zero ref means "not yet confirmed".
	HashListRefs []ledger.TransactionRef
	GlyphRefs    []ledger.TransactionRef

	// RootRef is the manifest root transaction's ref, set when the
	// publish completes. It is the story address readers start from.
	RootRef ledger.TransactionRef
}

// ConfirmedGlyphs counts content chunks with a recorded ref.
func (p *PublicationPackage) ConfirmedGlyphs() int {
	count := 0
	for _, ref := range p.GlyphRefs {
		if !ref.IsZero() {
			count++
		}
	}
	return count
}

// ConfirmedHashListChunks counts hash-list chunks with a recorded ref.
func (p *PublicationPackage) ConfirmedHashListChunks() int {
	count := 0
	for _, ref := range p.HashListRefs {
		if !ref.IsZero() {
			count++
		}
	}
	return count
}

// FilledManifest returns a copy of the package manifest with all
// confirmed refs filled in, validated. Fails if any chunk is still
// unconfirmed; the root document never references transactions that
// might not exist.
func (p *PublicationPackage) FilledManifest() (*Manifest, error) {
	filled := *p.Manifest
	filled.HashListChunks = append([]ledger.TransactionRef(nil), p.HashListRefs...)
	filled.Chunks = append([]ledger.TransactionRef(nil), p.GlyphRefs...)
	if err := filled.Validate(); err != nil {
		return nil, fmt.Errorf("manifest not ready: %w", err)
	}
	return &filled, nil
}

// buildConfig holds the tunable parts of package building. Defaults
// derive everything from the ledger payload bound.
type buildConfig struct {
	chunkSize       int
	digestsPerChunk int
	hasher          glyph.Hasher
	cipher          *cipher.Cipher
	storyID         string
	timestamp       time.Time
}

// BuildOption adjusts package building.
type BuildOption func(*buildConfig)

// WithChunkSize overrides the content chunk size derived from the
// ledger payload bound. Chunks must still fit the bound with envelope
// framing; BuildPackage rejects oversized values.
func WithChunkSize(size int) BuildOption {
	return func(c *buildConfig) { c.chunkSize = size }
}

// WithDigestsPerChunk overrides the hash-list packing derived from
// the ledger payload bound.
func WithDigestsPerChunk(count int) BuildOption {
	return func(c *buildConfig) { c.digestsPerChunk = count }
}

// WithHasher substitutes the content-addressing collaborator.
func WithHasher(h glyph.Hasher) BuildOption {
	return func(c *buildConfig) { c.hasher = h }
}

// WithCipher substitutes the obfuscation cipher (default: the shared
// protocol key).
func WithCipher(ci *cipher.Cipher) BuildOption {
	return func(c *buildConfig) { c.cipher = ci }
}

// WithStoryID pins the story identifier instead of generating one.
func WithStoryID(id string) BuildOption {
	return func(c *buildConfig) { c.storyID = id }
}

// WithTimestamp pins the manifest timestamp (default: time.Now).
func WithTimestamp(t time.Time) BuildOption {
	return func(c *buildConfig) { c.timestamp = t }
}

// BuildPackage runs the write pipeline (compress, cipher, split,
// hash list, manifest) entirely in memory and returns the package
// ready for publishing. maxPayload is the target ledger's
// per-transaction bound; chunk sizing and hash-list packing derive
// from it unless overridden.
func BuildPackage(params StoryParams, text []byte, maxPayload int, opts ...BuildOption) (*PublicationPackage, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("cannot publish empty text")
	}
	if params.Title == "" {
		return nil, fmt.Errorf("story title is required")
	}

	config := buildConfig{
		chunkSize:       ChunkSizeFor(maxPayload),
		digestsPerChunk: DigestsPerChunkFor(maxPayload),
		hasher:          glyph.SHA256,
		cipher:          cipher.Default(),
		timestamp:       time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&config)
	}

	if config.chunkSize < 1 || config.chunkSize > ChunkSizeFor(maxPayload) {
		return nil, fmt.Errorf("chunk size %d does not fit ledger payload bound %d (max usable %d)",
			config.chunkSize, maxPayload, ChunkSizeFor(maxPayload))
	}
	if config.digestsPerChunk < 1 || config.digestsPerChunk > DigestsPerChunkFor(maxPayload) {
		return nil, fmt.Errorf("digests per chunk %d does not fit ledger payload bound %d (max usable %d)",
			config.digestsPerChunk, maxPayload, DigestsPerChunkFor(maxPayload))
	}

	if config.storyID == "" {
		id, err := NewStoryID()
		if err != nil {
			return nil, err
		}
		config.storyID = id
	}

	compressed, stats, err := compress.Compress(text)
	if err != nil {
		return nil, fmt.Errorf("compressing story: %w", err)
	}

	ciphered := config.cipher.Encrypt(compressed)

	glyphs, err := glyph.Split(ciphered, config.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("splitting story: %w", err)
	}

	hashListChunks, err := glyph.BuildHashList(config.hasher, glyphs, config.digestsPerChunk)
	if err != nil {
		return nil, fmt.Errorf("building hash list: %w", err)
	}

	manifest := &Manifest{
		StoryID:             config.storyID,
		Title:               params.Title,
		Author:              params.Author,
		AuthorPublicKey:     params.AuthorPublicKey,
		TotalChunks:         uint32(len(glyphs)),
		TotalHashListChunks: uint32(len(hashListChunks)),
		ManifestRootHash:    glyph.HashListRoot(config.hasher, hashListChunks),
		Timestamp:           config.timestamp,
	}

	pkg := &PublicationPackage{
		Manifest:       manifest,
		HashListChunks: hashListChunks,
		Glyphs:         glyphs,
		Summary: Summary{
			Compression:         stats,
			PublishedBytes:      len(ciphered),
			TotalChunks:         uint32(len(glyphs)),
			TotalHashListChunks: uint32(len(hashListChunks)),
		},
		HashListRefs: make([]ledger.TransactionRef, len(hashListChunks)),
		GlyphRefs:    make([]ledger.TransactionRef, len(glyphs)),
	}

	// The root transaction must fit the ledger bound too. Check now,
	// with placeholder refs, rather than failing at creating_root
	// after every chunk has already been paid for.
	if size, err := projectedManifestSize(manifest); err != nil {
		return nil, err
	} else if size > maxPayload {
		return nil, fmt.Errorf("manifest for %d chunks would be %d bytes, exceeding ledger payload bound %d",
			len(glyphs), size, maxPayload)
	}

	return pkg, nil
}

// projectedManifestSize renders the manifest with placeholder refs to
// measure the final root payload size.
func projectedManifestSize(m *Manifest) (int, error) {
	var placeholder ledger.TransactionRef
	placeholder[0] = 1

	projected := *m
	projected.HashListChunks = make([]ledger.TransactionRef, m.TotalHashListChunks)
	projected.Chunks = make([]ledger.TransactionRef, m.TotalChunks)
	for i := range projected.HashListChunks {
		projected.HashListChunks[i] = placeholder
	}
	for i := range projected.Chunks {
		projected.Chunks[i] = placeholder
	}

	data, err := MarshalManifest(&projected)
	if err != nil {
		return 0, fmt.Errorf("projecting manifest size: %w", err)
	}
	return len(data), nil
}
