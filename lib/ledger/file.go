// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Directory names within a file ledger root.
const (
	transactionDir = "transactions"
	tmpDir         = "tmp"
	seqFile        = "seq"
)

// FileLedger is a Ledger persisted as sharded files under a root
// directory, one file per transaction, named by the transaction ref:
//
//	<root>/transactions/<hex[:2]>/<hex[2:4]>/<hex>
//
// It is the CLI's development ledger: durable across runs, trivially
// inspectable, and append-only by construction (files are written via
// atomic temp+rename and never rewritten). Safe for concurrent use
// within one process; it does not arbitrate between processes.
type FileLedger struct {
	mu         sync.Mutex
	root       string
	maxPayload int
	seq        uint64
}

// OpenFile opens (creating if needed) a file ledger rooted at dir.
// maxPayload < 1 means DefaultMaxPayload.
func OpenFile(dir string, maxPayload int) (*FileLedger, error) {
	if maxPayload < 1 {
		maxPayload = DefaultMaxPayload
	}

	for _, sub := range []string{
		dir,
		filepath.Join(dir, transactionDir),
		filepath.Join(dir, tmpDir),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory %s: %w", sub, err)
		}
	}

	ledger := &FileLedger{root: dir, maxPayload: maxPayload}

	seqData, err := os.ReadFile(filepath.Join(dir, seqFile))
	switch {
	case err == nil:
		seq, parseErr := strconv.ParseUint(strings.TrimSpace(string(seqData)), 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing ledger sequence file: %w", parseErr)
		}
		ledger.seq = seq
	case os.IsNotExist(err):
		// Fresh ledger.
	default:
		return nil, fmt.Errorf("reading ledger sequence file: %w", err)
	}

	return ledger, nil
}

// Submit appends the payload as one transaction file.
func (l *FileLedger) Submit(ctx context.Context, payload []byte, signer Signer) (TransactionRef, error) {
	if err := ctx.Err(); err != nil {
		return TransactionRef{}, err
	}
	if signer == nil {
		return TransactionRef{}, fmt.Errorf("ledger: submission requires a signer")
	}
	if len(payload) > l.maxPayload {
		return TransactionRef{}, fmt.Errorf("ledger: payload %d bytes exceeds maximum %d",
			len(payload), l.maxPayload)
	}
	if _, err := signer.Sign(payload); err != nil {
		return TransactionRef{}, fmt.Errorf("ledger: signing payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ref := deriveRef(l.seq, payload)

	if err := l.writeTransaction(ref, payload); err != nil {
		return TransactionRef{}, err
	}

	l.seq++
	if err := l.writeSeq(); err != nil {
		return TransactionRef{}, err
	}

	return ref, nil
}

// Read returns the payload of a recorded transaction.
func (l *FileLedger) Read(ctx context.Context, ref TransactionRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(l.transactionPath(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Ref: ref}
		}
		return nil, &NetworkError{Op: "read", Err: err}
	}
	return payload, nil
}

// MaxPayload returns the configured payload bound.
func (l *FileLedger) MaxPayload() int {
	return l.maxPayload
}

// writeTransaction persists a transaction via atomic rename through
// the tmp directory, so a crash never leaves a partial transaction
// visible.
func (l *FileLedger) writeTransaction(ref TransactionRef, payload []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Join(l.root, tmpDir), "tx-*")
	if err != nil {
		return fmt.Errorf("creating temp transaction file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing transaction: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp transaction file: %w", err)
	}

	finalPath := l.transactionPath(ref)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating transaction shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming transaction to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// writeSeq persists the submission counter. Written after the
// transaction file: if the process dies between the two, the next run
// re-derives a ref from a reused sequence number but a different
// payload, which still cannot collide with any recorded ref.
func (l *FileLedger) writeSeq() error {
	data := []byte(strconv.FormatUint(l.seq, 10) + "\n")
	path := filepath.Join(l.root, seqFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing ledger sequence file: %w", err)
	}
	return nil
}

// transactionPath returns the sharded path for a transaction file.
func (l *FileLedger) transactionPath(ref TransactionRef) string {
	hex := ref.String()
	return filepath.Join(l.root, transactionDir, hex[:2], hex[2:4], hex)
}
