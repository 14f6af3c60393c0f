// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// KeypairSigner is an Ed25519 Signer for the in-process ledgers and
// the CLI. Real wallet integration lives outside the protocol; this
// exists so publish paths can be exercised end to end with genuine
// signatures.
type KeypairSigner struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateSigner creates a new random Ed25519 keypair signer.
func GenerateSigner() (*KeypairSigner, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}
	return &KeypairSigner{public: public, private: private}, nil
}

// LoadSigner reads an Ed25519 seed from path, or generates and saves
// one if the file does not exist. This is the CLI's persistent
// identity.
func LoadSigner(path string) (*KeypairSigner, error) {
	seed, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("signer seed %s is %d bytes, want %d", path, len(seed), ed25519.SeedSize)
		}
		private := ed25519.NewKeyFromSeed(seed)
		return &KeypairSigner{
			public:  private.Public().(ed25519.PublicKey),
			private: private,
		}, nil

	case os.IsNotExist(err):
		signer, err := GenerateSigner()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, signer.private.Seed(), 0o600); err != nil {
			return nil, fmt.Errorf("saving signer seed: %w", err)
		}
		return signer, nil

	default:
		return nil, fmt.Errorf("reading signer seed %s: %w", path, err)
	}
}

// PublicKey returns the hex-encoded Ed25519 public key.
func (s *KeypairSigner) PublicKey() string {
	return hex.EncodeToString(s.public)
}

// Sign signs the payload with the private key.
func (s *KeypairSigner) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.private, payload), nil
}
