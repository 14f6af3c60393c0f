// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"short text", []byte("once upon a time")},
		{"repetitive", bytes.Repeat([]byte("the quick brown fox "), 500)},
		{"all byte values", func() []byte {
			data := make([]byte, 256)
			for i := range data {
				data[i] = byte(i)
			}
			return data
		}()},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			compressed, stats, err := Compress(test.data)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if stats.OriginalSize != len(test.data) {
				t.Errorf("OriginalSize = %d, want %d", stats.OriginalSize, len(test.data))
			}
			if stats.CompressedSize != len(compressed) {
				t.Errorf("CompressedSize = %d, want %d", stats.CompressedSize, len(compressed))
			}

			decompressed, err := Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(decompressed, test.data) {
				t.Errorf("round trip changed data: got %d bytes, want %d", len(decompressed), len(test.data))
			}
		})
	}
}

func TestCompressionSavings(t *testing.T) {
	data := []byte(strings.Repeat("all work and no play makes jack a dull boy\n", 1000))

	_, stats, err := Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if stats.BytesSaved() <= 0 {
		t.Errorf("BytesSaved() = %d for highly repetitive input, want > 0", stats.BytesSaved())
	}
	if stats.PercentSaved() <= 50 {
		t.Errorf("PercentSaved() = %.1f for highly repetitive input, want > 50", stats.PercentSaved())
	}
}

func TestPercentSavedEmptyInput(t *testing.T) {
	var stats Stats
	if got := stats.PercentSaved(); got != 0 {
		t.Errorf("PercentSaved() = %v for empty input, want 0", got)
	}
}

func TestDecompressMalformed(t *testing.T) {
	_, err := Decompress([]byte("this is not a deflate stream"))
	if err == nil {
		t.Fatal("Decompress accepted garbage")
	}
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("error is %T, want *CodecError", err)
	}
	if codecErr.Op != "decompress" {
		t.Errorf("Op = %q, want %q", codecErr.Op, "decompress")
	}
}

func TestDecompressTruncated(t *testing.T) {
	compressed, _, err := Compress([]byte(strings.Repeat("narrative ", 2000)))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	_, err = Decompress(compressed[:len(compressed)/2])
	if err == nil {
		t.Fatal("Decompress accepted a truncated stream")
	}
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("error is %T, want *CodecError", err)
	}
}

func TestDecompressPrefix(t *testing.T) {
	original := []byte(strings.Repeat("chapter one of a very long story\n", 3000))
	compressed, _, err := Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	t.Run("full stream", func(t *testing.T) {
		if got := DecompressPrefix(compressed); !bytes.Equal(got, original) {
			t.Errorf("full stream decoded %d bytes, want %d", len(got), len(original))
		}
	})

	t.Run("truncated stream yields a prefix", func(t *testing.T) {
		partial := DecompressPrefix(compressed[:len(compressed)/2])
		if len(partial) == 0 {
			t.Fatal("no output from half of a highly compressible stream")
		}
		if len(partial) >= len(original) {
			t.Fatalf("partial output %d bytes, want fewer than %d", len(partial), len(original))
		}
		if !bytes.HasPrefix(original, partial) {
			t.Error("partial output is not a prefix of the original")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := DecompressPrefix(nil); len(got) != 0 {
			t.Errorf("empty input decoded %d bytes, want 0", len(got))
		}
	})
}
