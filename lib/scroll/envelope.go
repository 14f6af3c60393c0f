// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package scroll

import (
	"fmt"

	"github.com/inscribe-foundation/inscribe/lib/codec"
	"github.com/inscribe-foundation/inscribe/lib/glyph"
)

// Envelope kinds. Protocol constants.
const (
	// KindGlyph marks a content chunk transaction.
	KindGlyph = "glyph"

	// KindHashList marks a hash-list chunk transaction.
	KindHashList = "hashlist"
)

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = 1

// EnvelopeOverhead is the worst-case size in bytes that envelope
// framing (CBOR map structure, version, kind, story id, index, byte
// string header) adds to a chunk payload. Chunk sizing subtracts this
// from the ledger payload bound so every envelope fits one
// transaction. Measured worst case is under 80 bytes; 128 leaves
// headroom for story ids longer than the generated form.
const EnvelopeOverhead = 128

// Envelope is the CBOR wrapper around every chunk transaction on the
// ledger. Exactly one of Payload (content chunks) and Digests
// (hash-list chunks) is set, selected by Kind.
type Envelope struct {
	Version int    `json:"v"`
	Kind    string `json:"kind"`
	StoryID string `json:"story_id"`
	Index   uint32 `json:"index"`

	// Payload is the glyph's post-cipher bytes. Only for KindGlyph.
	Payload []byte `json:"payload,omitempty"`

	// Digests is the hash-list chunk's digest run. Only for
	// KindHashList.
	Digests []glyph.Digest `json:"digests,omitempty"`
}

// ChunkSizeFor derives the content chunk size from a ledger's
// per-transaction payload bound.
func ChunkSizeFor(maxPayload int) int {
	return maxPayload - EnvelopeOverhead
}

// digestWireSize is the encoded size of one digest inside a hash-list
// envelope: the 32 digest bytes plus the CBOR byte-string header.
const digestWireSize = glyph.DigestSize + 2

// DigestsPerChunkFor derives how many digests fit in one hash-list
// chunk transaction under a ledger's payload bound.
func DigestsPerChunkFor(maxPayload int) int {
	return (maxPayload - EnvelopeOverhead) / digestWireSize
}

// EncodeGlyphEnvelope wraps a glyph for submission.
func EncodeGlyphEnvelope(storyID string, g glyph.Glyph) ([]byte, error) {
	envelope := Envelope{
		Version: EnvelopeVersion,
		Kind:    KindGlyph,
		StoryID: storyID,
		Index:   g.Index,
		Payload: g.Payload,
	}
	data, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding glyph envelope %d: %w", g.Index, err)
	}
	return data, nil
}

// EncodeHashListEnvelope wraps a hash-list chunk for submission.
func EncodeHashListEnvelope(storyID string, chunk glyph.HashListChunk) ([]byte, error) {
	envelope := Envelope{
		Version: EnvelopeVersion,
		Kind:    KindHashList,
		StoryID: storyID,
		Index:   chunk.Index,
		Digests: chunk.Digests,
	}
	data, err := codec.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding hash-list envelope %d: %w", chunk.Index, err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope from a transaction payload and
// checks its structural invariants against the expected story and
// kind. Integrity of the contents is the retriever's job; this only
// guards against reading the wrong transaction.
func DecodeEnvelope(data []byte, wantStoryID, wantKind string) (*Envelope, error) {
	var envelope Envelope
	if err := codec.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if envelope.Version != EnvelopeVersion {
		return nil, fmt.Errorf("envelope version %d is not supported (expected %d)",
			envelope.Version, EnvelopeVersion)
	}
	if envelope.Kind != wantKind {
		return nil, fmt.Errorf("envelope kind %q, want %q", envelope.Kind, wantKind)
	}
	if envelope.StoryID != wantStoryID {
		return nil, fmt.Errorf("envelope story %q, want %q", envelope.StoryID, wantStoryID)
	}
	switch envelope.Kind {
	case KindGlyph:
		if len(envelope.Payload) == 0 {
			return nil, fmt.Errorf("glyph envelope %d has no payload", envelope.Index)
		}
	case KindHashList:
		if len(envelope.Digests) == 0 {
			return nil, fmt.Errorf("hash-list envelope %d has no digests", envelope.Index)
		}
	}
	return &envelope, nil
}
