// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// DefaultMaxPayload is the per-transaction payload bound used by the
// in-process ledgers. The bound caps both chunk envelopes and the
// manifest root document (which carries one 64-hex-char ref per
// chunk), so it also caps story size: at 16 KiB a root can reference
// roughly 230 chunks, around 3.5 MB of compressed text. A real ledger
// client reports its own bound through MaxPayload.
const DefaultMaxPayload = 16 * 1024

// refDomainKey is the BLAKE3 key for deriving transaction references.
// Domain separation keeps refs from ever colliding with content
// digests even when a payload embeds one. ASCII, zero-padded, so the
// key is inspectable in hex dumps.
var refDomainKey = [32]byte{
	'i', 'n', 's', 'c', 'r', 'i', 'b', 'e', '.', 'l', 'e', 'd', 'g', 'e', 'r', '.',
	't', 'x', 'r', 'e', 'f', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// deriveRef computes a transaction reference from the submission
// sequence number and the payload. The sequence number makes refs
// unique even when the same payload is submitted twice.
func deriveRef(seq uint64, payload []byte) TransactionRef {
	hasher, err := blake3.NewKeyed(refDomainKey[:])
	if err != nil {
		panic("ledger: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	hasher.Write(seqBytes[:])
	hasher.Write(payload)

	var ref TransactionRef
	copy(ref[:], hasher.Sum(nil))
	return ref
}

// SubmitHook inspects or fails a submission before it is recorded.
// seq is the zero-based submission sequence number. Returning a
// non-nil error fails the submission with that error.
type SubmitHook func(seq uint64, payload []byte) error

// ReadHook inspects or fails a read before the stored payload is
// returned.
type ReadHook func(ref TransactionRef) error

// Memory is an in-process Ledger backed by a map. It exists for tests
// and examples: deterministic, instant confirmation, and fault
// injection through hooks so retry and partial-failure paths can be
// exercised without a network.
type Memory struct {
	mu           sync.Mutex
	maxPayload   int
	seq          uint64
	transactions map[TransactionRef][]byte

	submitHook SubmitHook
	readHook   ReadHook
}

// NewMemory creates an empty in-memory ledger with the given payload
// bound; maxPayload < 1 means DefaultMaxPayload.
func NewMemory(maxPayload int) *Memory {
	if maxPayload < 1 {
		maxPayload = DefaultMaxPayload
	}
	return &Memory{
		maxPayload:   maxPayload,
		transactions: make(map[TransactionRef][]byte),
	}
}

// SetSubmitHook installs a hook called before every submission.
func (m *Memory) SetSubmitHook(hook SubmitHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitHook = hook
}

// SetReadHook installs a hook called before every read.
func (m *Memory) SetReadHook(hook ReadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readHook = hook
}

// Submit records the payload as a confirmed transaction.
func (m *Memory) Submit(ctx context.Context, payload []byte, signer Signer) (TransactionRef, error) {
	if err := ctx.Err(); err != nil {
		return TransactionRef{}, err
	}
	if signer == nil {
		return TransactionRef{}, fmt.Errorf("ledger: submission requires a signer")
	}
	if len(payload) > m.maxPayload {
		return TransactionRef{}, fmt.Errorf("ledger: payload %d bytes exceeds maximum %d",
			len(payload), m.maxPayload)
	}
	if _, err := signer.Sign(payload); err != nil {
		return TransactionRef{}, fmt.Errorf("ledger: signing payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitHook != nil {
		if err := m.submitHook(m.seq, payload); err != nil {
			return TransactionRef{}, err
		}
	}

	ref := deriveRef(m.seq, payload)
	m.seq++

	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.transactions[ref] = stored
	return ref, nil
}

// Read returns the payload of a recorded transaction.
func (m *Memory) Read(ctx context.Context, ref TransactionRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readHook != nil {
		if err := m.readHook(ref); err != nil {
			return nil, err
		}
	}

	payload, ok := m.transactions[ref]
	if !ok {
		return nil, &NotFoundError{Ref: ref}
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// MaxPayload returns the configured payload bound.
func (m *Memory) MaxPayload() int {
	return m.maxPayload
}

// Len returns the number of recorded transactions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}
