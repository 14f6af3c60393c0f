// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import "fmt"

// HashListChunk is one ledger-sized slice of a story's hash list: an
// ordered run of per-glyph digests. Digests are far smaller than
// content chunks, so many pack into a single chunk; a story usually
// needs one or two.
type HashListChunk struct {
	Index   uint32
	Digests []Digest
}

// Digest returns the digest of the chunk's concatenated digest bytes.
// These per-chunk digests are what the manifest root commits to.
func (c HashListChunk) Digest(hasher Hasher) Digest {
	return hasher.Hash(flattenDigests(c.Digests))
}

// BuildHashList digests every glyph's payload in index order and packs
// the digests into hash-list chunks of perChunk digests each (the last
// chunk may hold fewer). The glyphs must already be ciphered; the
// hash list commits to the bytes that actually land on the ledger.
func BuildHashList(hasher Hasher, glyphs []Glyph, perChunk int) ([]HashListChunk, error) {
	if perChunk < 1 {
		return nil, fmt.Errorf("digests per chunk %d is invalid (minimum 1)", perChunk)
	}

	digests := make([]Digest, len(glyphs))
	for i, g := range glyphs {
		if g.Index != uint32(i) {
			return nil, &IncompleteDataError{
				Expected: uint32(i),
				Got:      g.Index,
				Reason:   "out of order",
			}
		}
		digests[i] = hasher.Hash(g.Payload)
	}

	count := (len(digests) + perChunk - 1) / perChunk
	chunks := make([]HashListChunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * perChunk
		end := start + perChunk
		if end > len(digests) {
			end = len(digests)
		}
		chunks = append(chunks, HashListChunk{
			Index:   uint32(i),
			Digests: digests[start:end],
		})
	}

	return chunks, nil
}

// HashListRoot computes the manifest root commitment: the digest of
// the concatenation of every hash-list chunk's own digest, in index
// order. This single value, fetched with the manifest, lets a reader
// verify the hash-list chunks before trusting any content digest.
func HashListRoot(hasher Hasher, chunks []HashListChunk) Digest {
	combined := make([]byte, 0, len(chunks)*DigestSize)
	for _, chunk := range chunks {
		chunkDigest := chunk.Digest(hasher)
		combined = append(combined, chunkDigest[:]...)
	}
	return hasher.Hash(combined)
}

// Flatten reconstructs the full ordered digest list from a complete,
// in-order set of hash-list chunks. A short, duplicated, or
// out-of-order set fails with *IncompleteDataError.
func Flatten(chunks []HashListChunk, totalChunks uint32) ([]Digest, error) {
	if uint32(len(chunks)) != totalChunks {
		return nil, &IncompleteDataError{
			Expected: totalChunks,
			Got:      uint32(len(chunks)),
			Reason:   "short",
		}
	}

	var digests []Digest
	for i, chunk := range chunks {
		if chunk.Index != uint32(i) {
			return nil, &IncompleteDataError{
				Expected: uint32(i),
				Got:      chunk.Index,
				Reason:   "out of order",
			}
		}
		digests = append(digests, chunk.Digests...)
	}
	return digests, nil
}

// flattenDigests concatenates digests into a single byte slice.
func flattenDigests(digests []Digest) []byte {
	flat := make([]byte, 0, len(digests)*DigestSize)
	for _, d := range digests {
		flat = append(flat, d[:]...)
	}
	return flat
}
