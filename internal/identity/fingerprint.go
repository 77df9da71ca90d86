package identity

import (
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
)

// Fingerprint produces a short human-comparable encoding of a public key,
// used for out-of-band verification and in sanitized logs.
func Fingerprint(publicKey []byte) (string, error) {
	if len(publicKey) != curve25519.PointSize {
		return "", fmt.Errorf("invalid public key size: %d", len(publicKey))
	}
	h := blake2b.Sum256(publicKey)
	return "lcg1" + base58.Encode(h[:]), nil
}

// VerifyFingerprint reports whether a fingerprint matches a public key.
func VerifyFingerprint(fingerprint string, publicKey []byte) (bool, error) {
	expected, err := Fingerprint(publicKey)
	if err != nil {
		return false, err
	}
	return fingerprint == expected, nil
}
