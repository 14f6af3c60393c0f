// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress implements the content codec for published stories:
// raw DEFLATE (RFC 1951), chosen because every platform that can read
// the ledger can inflate it. Compression happens once at publish time,
// before the cipher and the chunker; decompression is the final step
// of retrieval, after the reassembled stream has been deciphered.
//
// Compression savings are a first-class output, not telemetry: the
// published byte count determines ledger cost, so callers surface the
// Stats to the writer before submission.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Stats reports the outcome of compressing a payload.
type Stats struct {
	// OriginalSize is the input length in bytes.
	OriginalSize int `json:"original_size"`

	// CompressedSize is the output length in bytes. May exceed
	// OriginalSize for incompressible input; the codec never
	// substitutes the raw bytes, because the retrieval pipeline
	// always inflates.
	CompressedSize int `json:"compressed_size"`
}

// BytesSaved returns how many bytes compression removed. Negative when
// the input was incompressible and DEFLATE framing added overhead.
func (s Stats) BytesSaved() int {
	return s.OriginalSize - s.CompressedSize
}

// PercentSaved returns the savings as a percentage of the original
// size, 0 for empty input.
func (s Stats) PercentSaved() float64 {
	if s.OriginalSize == 0 {
		return 0
	}
	return float64(s.BytesSaved()) / float64(s.OriginalSize) * 100
}

// CodecError is returned when a payload cannot be decompressed (or, in
// pathological cases, compressed). Malformed input is not retried;
// the bytes are wrong, not the network.
type CodecError struct {
	// Op is "compress" or "decompress".
	Op string

	// Err is the underlying flate error.
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Compress deflates data at the default compression level and returns
// the compressed bytes along with savings statistics.
func Compress(data []byte) ([]byte, Stats, error) {
	var buffer bytes.Buffer

	writer, err := flate.NewWriter(&buffer, flate.DefaultCompression)
	if err != nil {
		// Only reachable with an invalid level constant.
		return nil, Stats{}, &CodecError{Op: "compress", Err: err}
	}

	if _, err := writer.Write(data); err != nil {
		return nil, Stats{}, &CodecError{Op: "compress", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, Stats{}, &CodecError{Op: "compress", Err: err}
	}

	stats := Stats{
		OriginalSize:   len(data),
		CompressedSize: buffer.Len(),
	}
	return buffer.Bytes(), stats, nil
}

// Decompress inflates data previously produced by Compress. Malformed
// or truncated input fails with a *CodecError.
func Decompress(data []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, &CodecError{Op: "decompress", Err: err}
	}
	return decompressed, nil
}

// DecompressPrefix inflates as much as it can from a possibly
// truncated compressed stream and returns whatever decoded cleanly.
// Progressive readers use it to render the verified prefix of a story
// while later chunks are still in flight; truncation is expected there,
// so it is not an error. Corrupt (as opposed to merely short) input
// also just stops early; the caller's final Decompress of the full
// stream is what decides validity.
func DecompressPrefix(data []byte) []byte {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()

	decompressed, _ := io.ReadAll(reader)
	return decompressed
}
