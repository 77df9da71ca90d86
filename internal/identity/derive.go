// Package identity derives and manages the user's chat identity: an X25519
// keypair computed deterministically from a passphrase, its public half
// published on the ledger, and the seed persisted locally under the same
// passphrase.
package identity

import (
	"crypto/sha256"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"ledgerchat/go-client/pkg/models"
)

const (
	// derivationSalt is fixed so the same passphrase yields the same seed on
	// every device and run. Registry lookup catches passphrase collisions
	// between users; without a reproducible seed, users could never
	// re-derive their chat identity from memory.
	derivationSalt = "ledgerchat/identity/argon2id/v1"

	hkdfInfoEncryption = "ledgerchat/identity/encryption/v1"

	// SeedSize is the size of the intermediate identity seed.
	SeedSize = 32
)

// ErrInvalidPassphrase is returned for empty or whitespace-only input.
// Derivation itself cannot fail on entropy: it is derivation, not
// generation.
var ErrInvalidPassphrase = errors.New("invalid passphrase")

// DeriveSeed computes the identity seed from a passphrase with argon2id.
func DeriveSeed(passphrase string) ([]byte, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrInvalidPassphrase
	}
	seed := argon2.IDKey([]byte(passphrase), []byte(derivationSalt), 2, 64*1024, 1, SeedSize)
	return seed, nil
}

// KeyPairFromSeed expands a seed into the X25519 chat keypair.
func KeyPairFromSeed(seed []byte) (models.KeyPair, error) {
	if len(seed) != SeedSize {
		return models.KeyPair{}, ErrInvalidPassphrase
	}
	priv, err := hkdfExpand(seed, hkdfInfoEncryption, curve25519.ScalarSize)
	if err != nil {
		return models.KeyPair{}, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return models.KeyPair{}, err
	}
	return models.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// DeriveKeyPair is the login path: passphrase in, keypair out, bit-identical
// on every call with the same input.
func DeriveKeyPair(passphrase string) (models.KeyPair, error) {
	seed, err := DeriveSeed(passphrase)
	if err != nil {
		return models.KeyPair{}, err
	}
	return KeyPairFromSeed(seed)
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
