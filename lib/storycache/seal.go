// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package storycache

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealInfo is the HKDF info string binding derived keys to this use.
// Changing it invalidates every sealed cache, so it never changes.
const sealInfo = "inscribe.storycache.seal.v1"

// sealer encrypts cache records at rest with XChaCha20-Poly1305. The
// 24-byte nonce is random per record and stored as the ciphertext
// prefix; the extended nonce makes random generation safe without
// tracking a counter across process restarts.
type sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// newSealer derives the record key from secret via HKDF-SHA256.
func newSealer(secret []byte) (*sealer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("seal secret is empty")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("initializing seal cipher: %w", err)
	}
	return &sealer{aead: aead}, nil
}

// seal returns nonce || ciphertext.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open reverses seal, failing on truncation or tampering.
func (s *sealer) open(data []byte) ([]byte, error) {
	if len(data) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("sealed record too short (%d bytes)", len(data))
	}
	nonce, ciphertext := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("record authentication failed: %w", err)
	}
	return plaintext, nil
}
