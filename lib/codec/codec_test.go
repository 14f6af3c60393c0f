// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	Name   string   `json:"name"`
	Index  uint32   `json:"index"`
	Body   []byte   `json:"body,omitempty"`
	Hashes [][32]byte `json:"hashes,omitempty"`
}

func TestRoundTrip(t *testing.T) {
	original := sample{
		Name:   "record",
		Index:  42,
		Body:   []byte{0x01, 0x02, 0x03},
		Hashes: [][32]byte{{0xaa}, {0xbb}},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != original.Name || decoded.Index != original.Index {
		t.Error("scalar fields changed in round trip")
	}
	if !bytes.Equal(decoded.Body, original.Body) {
		t.Error("byte slice changed in round trip")
	}
	if len(decoded.Hashes) != 2 || decoded.Hashes[0] != original.Hashes[0] {
		t.Error("byte arrays changed in round trip")
	}
}

func TestDeterministicEncoding(t *testing.T) {
	value := map[string]int{"zebra": 1, "alpha": 2, "mid": 3}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("same value encoded to different bytes")
		}
	}
}

func TestByteArraysStayBinary(t *testing.T) {
	// A 32-byte array must encode as a CBOR byte string (2-byte header
	// + 32 bytes), not as hex text or an integer array.
	data, err := Marshal([32]byte{0x01})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) != 34 {
		t.Errorf("encoded [32]byte is %d bytes, want 34", len(data))
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var out sample
	if err := Unmarshal([]byte{0xff, 0x00, 0x13}, &out); err == nil {
		t.Error("Unmarshal accepted garbage")
	}
}
