// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package glyph

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		chunkSize int
		want      int
	}{
		{"exact multiple", bytes.Repeat([]byte{0xab}, 1000), 100, 10},
		{"remainder", bytes.Repeat([]byte{0xcd}, 1050), 100, 11},
		{"single short chunk", []byte("tiny"), 100, 1},
		{"chunk size one", []byte("abc"), 1, 3},
		{"data equals chunk size", bytes.Repeat([]byte{0x01}, 64), 64, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			glyphs, err := Split(test.data, test.chunkSize)
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if len(glyphs) != test.want {
				t.Fatalf("Split produced %d glyphs, want %d", len(glyphs), test.want)
			}
			for i, g := range glyphs {
				if g.Index != uint32(i) {
					t.Errorf("glyph %d has index %d", i, g.Index)
				}
				if i < len(glyphs)-1 && g.Size() != test.chunkSize {
					t.Errorf("glyph %d has %d bytes, want %d", i, g.Size(), test.chunkSize)
				}
			}

			joined, err := Join(glyphs, uint32(len(glyphs)))
			if err != nil {
				t.Fatalf("Join: %v", err)
			}
			if !bytes.Equal(joined, test.data) {
				t.Error("Join(Split(data)) != data")
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	glyphs, err := Split(nil, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(glyphs) != 0 {
		t.Errorf("Split of empty input produced %d glyphs", len(glyphs))
	}
}

func TestSplitInvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Split([]byte("data"), size); err == nil {
			t.Errorf("Split accepted chunk size %d", size)
		}
	}
}

func TestSplitCopiesPayloads(t *testing.T) {
	data := []byte("mutate me afterwards")
	glyphs, err := Split(data, 5)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	data[0] = 'X'
	if glyphs[0].Payload[0] == 'X' {
		t.Error("glyph payload aliases the input slice")
	}
}

func TestJoinIncompleteSets(t *testing.T) {
	glyphs, err := Split(bytes.Repeat([]byte{0x11}, 300), 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	tests := []struct {
		name   string
		glyphs []Glyph
		total  uint32
		reason string
	}{
		{"short set", glyphs[:2], 3, "short"},
		{"out of order", []Glyph{glyphs[1], glyphs[0], glyphs[2]}, 3, "out of order"},
		{"duplicate", []Glyph{glyphs[0], glyphs[0], glyphs[2]}, 3, "out of order"},
		{"gap", []Glyph{glyphs[0], glyphs[2]}, 2, "out of order"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Join(test.glyphs, test.total)
			var incompleteErr *IncompleteDataError
			if !errors.As(err, &incompleteErr) {
				t.Fatalf("error is %T (%v), want *IncompleteDataError", err, err)
			}
			if incompleteErr.Reason != test.reason {
				t.Errorf("Reason = %q, want %q", incompleteErr.Reason, test.reason)
			}
		})
	}
}

func TestDigestText(t *testing.T) {
	digest := SHA256.Hash([]byte("content"))

	text, err := digest.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if len(text) != DigestSize*2 {
		t.Fatalf("hex digest is %d chars, want %d", len(text), DigestSize*2)
	}
	if string(text) != strings.ToLower(string(text)) {
		t.Error("digest hex is not lowercase")
	}

	var parsed Digest
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if parsed != digest {
		t.Error("text round trip changed the digest")
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	for _, input := range []string{
		"",
		"abcd",
		strings.Repeat("zz", DigestSize),
		strings.Repeat("ab", DigestSize+1),
	} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) succeeded", input)
		}
	}
}
