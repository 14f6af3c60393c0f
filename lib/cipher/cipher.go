// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package cipher implements the keyed byte obfuscation applied to
// compressed story content before chunking. The ledger is public, so
// this is deliberately not confidentiality: the key is a fixed short
// sequence shared by the publisher and every reader. The transform
// exists so that published payloads are not trivially greppable on
// ledger explorers.
//
// The transform is position-dependent: each byte is combined with a
// repeating key byte and the low byte of its absolute offset, then
// nibble-swapped, then masked. Position dependence means identical
// plaintext runs produce different ciphertext, which keeps content
// chunks distinct for content-derived transaction references.
//
// Encrypt and Decrypt apply the three steps in exactly inverse order;
// Decrypt(Encrypt(b)) == b holds for all inputs and is pinned by a
// round-trip property test.
package cipher

import "fmt"

// DefaultKey is the shared obfuscation key. Protocol constant;
// changing it orphans every previously published story.
var DefaultKey = []byte{0x1f, 0x8b, 0x42, 0xe7, 0x5d, 0x30, 0xa9, 0x6c}

// mask is the constant applied after the nibble swap. Protocol
// constant.
const mask byte = 0x5a

// KeyError reports an unusable cipher key.
type KeyError struct {
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("cipher key: %s", e.Reason)
}

// Cipher is a reusable transform bound to a key. Safe for concurrent
// use; it holds no per-operation state.
type Cipher struct {
	key []byte
}

// New creates a Cipher with the given key. An empty key is rejected;
// the transform would degenerate to the position byte alone.
func New(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return nil, &KeyError{Reason: "empty"}
	}
	c := &Cipher{key: make([]byte, len(key))}
	copy(c.key, key)
	return c, nil
}

// Default returns a Cipher using DefaultKey.
func Default() *Cipher {
	c, err := New(DefaultKey)
	if err != nil {
		// DefaultKey is a non-empty constant.
		panic("cipher: default key rejected: " + err.Error())
	}
	return c
}

// Encrypt transforms data starting at absolute stream position 0 and
// returns a new slice. The input is not modified.
func (c *Cipher) Encrypt(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		b ^= c.key[i%len(c.key)] ^ byte(i)
		b = b<<4 | b>>4
		b ^= mask
		out[i] = b
	}
	return out
}

// Decrypt reverses Encrypt: unmask, unswap, then remove the key and
// position combination. Returns a new slice; the input is not
// modified.
func (c *Cipher) Decrypt(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		b ^= mask
		b = b<<4 | b>>4
		b ^= c.key[i%len(c.key)] ^ byte(i)
		out[i] = b
	}
	return out
}
