// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger defines the append-only transaction log that stories
// are published to, as the protocol sees it: submit a bounded payload,
// get back a reference; read a reference, get back the payload. The
// protocol never assumes anything else about the chain; consensus,
// fees, and confirmation mechanics live behind this interface.
//
// The package also owns the protocol's error taxonomy for ledger I/O.
// Publishers and retrievers decide retry behavior purely through
// IsTransient and errors.As over these types.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// RefSize is the byte length of a transaction reference.
const RefSize = 32

// TransactionRef identifies one confirmed transaction on the ledger.
// Refs are opaque to the protocol; the implementations in this package
// derive them from a submission sequence number and the payload.
type TransactionRef [RefSize]byte

// String returns the canonical lowercase hex form of the ref.
func (r TransactionRef) String() string {
	return hex.EncodeToString(r[:])
}

// IsZero reports whether the ref is the zero value, used as the
// "not yet confirmed" marker in publication packages.
func (r TransactionRef) IsZero() bool {
	return r == TransactionRef{}
}

// ParseRef parses a 64-character hex string into a TransactionRef.
func ParseRef(hexString string) (TransactionRef, error) {
	var ref TransactionRef
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return ref, fmt.Errorf("parsing transaction ref: %w", err)
	}
	if len(decoded) != RefSize {
		return ref, fmt.Errorf("transaction ref is %d bytes, want %d", len(decoded), RefSize)
	}
	copy(ref[:], decoded)
	return ref, nil
}

// MarshalText implements encoding.TextMarshaler so refs serialize as
// hex strings in the manifest JSON.
func (r TransactionRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *TransactionRef) UnmarshalText(text []byte) error {
	parsed, err := ParseRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Signer authorizes submissions. The protocol treats keys as opaque:
// it records the public key in the manifest and hands the signer to
// the ledger, which decides what signing means for its chain.
type Signer interface {
	// PublicKey returns the signer's public key in the encoding the
	// ledger's chain uses for display (recorded in manifests).
	PublicKey() string

	// Sign produces a signature over payload.
	Sign(payload []byte) ([]byte, error)
}

// Ledger is the append-only transaction log collaborator. All methods
// are safe for concurrent use. Submit and Read respect context
// cancellation.
type Ledger interface {
	// Submit appends a signed payload as one transaction and returns
	// its reference once confirmed. Fails with *NetworkError,
	// *RateLimitError (both transient), or a permanent rejection
	// (payload too large, bad signature).
	Submit(ctx context.Context, payload []byte, signer Signer) (TransactionRef, error)

	// Read returns the payload of a confirmed transaction. Fails with
	// *NotFoundError when the ref does not exist, or *NetworkError.
	Read(ctx context.Context, ref TransactionRef) ([]byte, error)

	// MaxPayload returns the ledger's per-transaction payload bound in
	// bytes. Chunk sizing is derived from this.
	MaxPayload() int
}

// NetworkError reports a connection or timeout failure. Transient:
// retried with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ledger %s: network: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a read of a transaction the ledger does not
// have. Not retried; terminal for that item.
type NotFoundError struct {
	Ref TransactionRef
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ledger: transaction %s not found", e.Ref)
}

// RateLimitError reports throttling by the ledger endpoint. Transient:
// retried with a longer backoff. RetryAfter is advisory; zero means
// the caller's own backoff schedule applies.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("ledger: rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: network failures
// and rate limits are; everything else (not found, rejection, codec
// and integrity failures from higher layers) is permanent.
func IsTransient(err error) bool {
	var networkErr *NetworkError
	if errors.As(err, &networkErr) {
		return true
	}
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
