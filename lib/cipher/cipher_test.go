// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	random := rand.New(rand.NewSource(1))
	randomData := make([]byte, 4096)
	random.Read(randomData)

	allValues := make([]byte, 256)
	for i := range allValues {
		allValues[i] = byte(i)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x00}},
		{"text", []byte("call me ishmael")},
		{"all byte values", allValues},
		{"random", randomData},
		{"longer than key", bytes.Repeat([]byte{0xff}, 100)},
	}

	c := Default()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := c.Decrypt(c.Encrypt(test.data)); !bytes.Equal(got, test.data) {
				t.Errorf("Decrypt(Encrypt(data)) != data for %d bytes", len(test.data))
			}
		})
	}
}

func TestRoundTripCustomKeys(t *testing.T) {
	data := []byte("the same text under different keys")
	for _, key := range [][]byte{
		{0x01},
		{0xaa, 0xbb},
		bytes.Repeat([]byte{0x7f}, 33),
	} {
		c, err := New(key)
		if err != nil {
			t.Fatalf("New(%d-byte key): %v", len(key), err)
		}
		if got := c.Decrypt(c.Encrypt(data)); !bytes.Equal(got, data) {
			t.Errorf("round trip failed for %d-byte key", len(key))
		}
	}
}

func TestPositionDependence(t *testing.T) {
	// Identical plaintext bytes at positions that share a key byte
	// must still encrypt differently, because the absolute offset is
	// mixed in.
	c := Default()
	out := c.Encrypt(bytes.Repeat([]byte{0x41}, 32))
	if out[0] == out[len(DefaultKey)] {
		t.Errorf("bytes at positions 0 and %d encrypted identically", len(DefaultKey))
	}
}

func TestInputNotModified(t *testing.T) {
	c := Default()
	data := []byte("immutable input")
	original := append([]byte(nil), data...)

	c.Encrypt(data)
	c.Decrypt(data)
	if !bytes.Equal(data, original) {
		t.Error("cipher modified its input slice")
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("New accepted an empty key")
	}
	var keyErr *KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("error is %T, want *KeyError", err)
	}
}

func TestKeyCopied(t *testing.T) {
	key := []byte{0x01, 0x02}
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte("stable under caller key mutation")
	before := c.Encrypt(data)
	key[0] = 0xff
	after := c.Encrypt(data)
	if !bytes.Equal(before, after) {
		t.Error("cipher output changed when the caller mutated the key slice")
	}
}
