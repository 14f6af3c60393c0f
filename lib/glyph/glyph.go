// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package glyph implements the chunking and integrity layer of the
// publication protocol. A glyph is one fixed-size chunk of a story's
// published byte stream (compressed, then ciphered). The package
// provides the splitter and joiner for glyphs, SHA-256 content
// digests, and the hash list: the ordered per-glyph digest list that
// readers verify arriving chunks against, itself chunked to fit the
// ledger's payload bound.
package glyph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestSize is the byte length of every content digest.
const DigestSize = 32

// Digest is a 32-byte SHA-256 digest of a glyph's post-cipher payload.
type Digest [DigestSize]byte

// String returns the canonical lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler so digests serialize
// as hex strings in manifest JSON.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != DigestSize {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), DigestSize)
	}
	copy(digest[:], decoded)
	return digest, nil
}

// Hasher is the content-addressing collaborator: bytes to fixed-length
// digest. Implementations must be pure and deterministic.
type Hasher interface {
	Hash(data []byte) Digest
}

// SHA256 is the standard Hasher used throughout the protocol.
var SHA256 Hasher = sha256Hasher{}

type sha256Hasher struct{}

func (sha256Hasher) Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// Glyph is one content chunk of a published story: an index into the
// story's chunk sequence and the chunk's post-cipher payload bytes.
// Glyphs are immutable once created.
type Glyph struct {
	Index   uint32
	Payload []byte
}

// Size returns the payload length in bytes.
func (g Glyph) Size() int {
	return len(g.Payload)
}

// IncompleteDataError reports a Join over a glyph set that is missing
// chunks, contains duplicates, or is out of index order. The operation
// fails; the story itself is still resumable by fetching the missing
// chunks.
type IncompleteDataError struct {
	// Expected is the index the joiner needed next.
	Expected uint32

	// Got is the index it found, or the total count when the set
	// simply ended early.
	Got uint32

	// Reason distinguishes "missing", "out of order", and "short".
	Reason string
}

func (e *IncompleteDataError) Error() string {
	return fmt.Sprintf("incomplete glyph set: %s (expected index %d, got %d)",
		e.Reason, e.Expected, e.Got)
}

// Split divides data into glyphs of chunkSize bytes. The final glyph
// may be shorter. Splitting is deterministic and lossless:
// Join(Split(data)) == data for any data and any valid chunkSize.
// Empty input yields no glyphs.
func Split(data []byte, chunkSize int) ([]Glyph, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size %d is invalid (minimum 1)", chunkSize)
	}

	count := (len(data) + chunkSize - 1) / chunkSize
	glyphs := make([]Glyph, 0, count)

	for i := 0; i < count; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}

		payload := make([]byte, end-start)
		copy(payload, data[start:end])

		glyphs = append(glyphs, Glyph{
			Index:   uint32(i),
			Payload: payload,
		})
	}

	return glyphs, nil
}

// Join concatenates a complete, in-order glyph set back into the
// original byte stream. totalChunks is the expected set size (from the
// manifest); a short set, or one with gaps, duplicates, or out-of-order
// indices, fails with *IncompleteDataError; callers that buffer
// out-of-order arrivals must sort and fill gaps before joining.
func Join(glyphs []Glyph, totalChunks uint32) ([]byte, error) {
	if uint32(len(glyphs)) != totalChunks {
		return nil, &IncompleteDataError{
			Expected: totalChunks,
			Got:      uint32(len(glyphs)),
			Reason:   "short",
		}
	}

	var total int
	for i, g := range glyphs {
		if g.Index != uint32(i) {
			return nil, &IncompleteDataError{
				Expected: uint32(i),
				Got:      g.Index,
				Reason:   "out of order",
			}
		}
		total += len(g.Payload)
	}

	data := make([]byte, 0, total)
	for _, g := range glyphs {
		data = append(data, g.Payload...)
	}
	return data, nil
}
