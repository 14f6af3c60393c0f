// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for Inscribe's binary
// records: ledger payload envelopes and cache records. Encoding uses
// Core Deterministic Encoding (RFC 8949 §4.2) so the same logical data
// always produces identical bytes; a requirement for content-derived
// transaction references, where re-encoding a record must not change
// its identity.
//
// The externally visible manifest document is JSON, not CBOR; see
// lib/scroll. This package covers only the compact internal formats.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: sorted map keys, smallest integer encoding, no
// indefinite-length items.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	// TextMarshaler mode is deliberately off: digests and transaction
	// refs implement encoding.TextMarshaler for the JSON manifest, but
	// in CBOR they must stay 32-byte strings, not 64-char hex text.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
