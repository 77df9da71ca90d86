package identity

import (
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidRecoveryPhrase is returned when a mnemonic fails checksum or
// wordlist validation.
var ErrInvalidRecoveryPhrase = errors.New("invalid recovery phrase")

// RecoveryPhrase encodes the identity seed as a 24-word BIP-39 mnemonic so a
// user can carry the identity without remembering the passphrase verbatim.
func RecoveryPhrase(seed []byte) (string, error) {
	if len(seed) != SeedSize {
		return "", ErrInvalidRecoveryPhrase
	}
	mnemonic, err := bip39.NewMnemonic(seed)
	if err != nil {
		return "", err
	}
	return mnemonic, nil
}

// SeedFromRecoveryPhrase reverses RecoveryPhrase.
func SeedFromRecoveryPhrase(mnemonic string) ([]byte, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidRecoveryPhrase
	}
	seed, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, ErrInvalidRecoveryPhrase
	}
	if len(seed) != SeedSize {
		return nil, ErrInvalidRecoveryPhrase
	}
	return seed, nil
}

// ValidateRecoveryPhrase reports whether a mnemonic is well-formed.
func ValidateRecoveryPhrase(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}
