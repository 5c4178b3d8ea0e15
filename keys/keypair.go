// Copyright (c) 2025 The Hone developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package keys implements the signing identity of subnet participants: an
// ed25519 keypair addressed by its SS58 encoding, loadable from the standard
// wallet hotkey file layout.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"
)

// Keypair wraps an ed25519 keypair together with its SS58 address.
// Read-only after construction.
type Keypair struct {
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	address string
}

// FromSeed derives a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{
		pub:     pub,
		priv:    priv,
		address: EncodeSS58(pub, DefaultSS58Format),
	}, nil
}

// FromSeedPhrase derives a deterministic keypair by hashing an arbitrary
// phrase. Only for mock mode and tests.
func FromSeedPhrase(phrase string) *Keypair {
	seed := sha256.Sum256([]byte(phrase))
	kp, _ := FromSeed(seed[:])
	return kp
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "generate seed")
	}
	return FromSeed(seed)
}

// Address returns the SS58 address of the public key.
func (k *Keypair) Address() string { return k.address }

// Public returns the raw public key.
func (k *Keypair) Public() ed25519.PublicKey { return k.pub }

// Sign signs msg with the private key.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// Verify reports whether sig is a valid signature of msg by pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
