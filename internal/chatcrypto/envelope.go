// Package chatcrypto implements the confidentiality primitives for group
// chat on a public ledger: the shared chat key, its per-participant
// asymmetric envelopes, and the symmetric message codec.
//
// A chat has exactly one symmetric key, generated at creation and never
// rotated. The key is wrapped once per participant against that
// participant's X25519 public key, so the ledger only ever stores
// ciphertext even though the member list itself is public.
package chatcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// ChatKeySize is the size of the shared symmetric chat key.
	ChatKeySize = chacha20poly1305.KeySize

	hkdfInfoEnvelope = "ledgerchat/envelope/v1"
)

var (
	ErrInvalidChatKey      = errors.New("invalid chat key")
	ErrInvalidRecipientKey = errors.New("invalid recipient public key")
	// ErrUnwrapFailed means the envelope was not produced for this keypair
	// (stale or foreign envelope). Callers surface it as "no access to this
	// chat".
	ErrUnwrapFailed = errors.New("chat key unwrap failed")
)

// NewChatKey generates a fresh shared symmetric key for a new chat.
func NewChatKey() ([]byte, error) {
	key := make([]byte, ChatKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// WrapKey encrypts chatKey for one recipient: ephemeral X25519 keypair,
// shared secret via ECDH, envelope key via HKDF-SHA256, authenticated
// encryption with XChaCha20-Poly1305.
//
// Output layout: ephPub(32) || nonce(24) || ciphertext+tag.
func WrapKey(chatKey, recipientPub []byte) ([]byte, error) {
	if len(chatKey) != ChatKeySize {
		return nil, ErrInvalidChatKey
	}
	if len(recipientPub) != curve25519.PointSize {
		return nil, ErrInvalidRecipientKey
	}

	ephPriv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, ephPriv); err != nil {
		return nil, err
	}
	clampScalar(ephPriv)
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(ephPriv, recipientPub)
	if err != nil {
		return nil, ErrInvalidRecipientKey
	}

	aead, err := chacha20poly1305.NewX(deriveEnvelopeKey(shared, ephPub))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	box := aead.Seal(nil, nonce, chatKey, ephPub)

	out := make([]byte, 0, len(ephPub)+len(nonce)+len(box))
	out = append(out, ephPub...)
	out = append(out, nonce...)
	out = append(out, box...)
	return out, nil
}

// UnwrapKey decrypts an envelope with the caller's own private key. Any
// parse or authentication failure yields ErrUnwrapFailed.
func UnwrapKey(wrapped, ownPriv []byte) ([]byte, error) {
	if len(ownPriv) != curve25519.ScalarSize {
		return nil, ErrUnwrapFailed
	}
	minLen := curve25519.PointSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(wrapped) < minLen {
		return nil, ErrUnwrapFailed
	}

	ephPub := wrapped[:curve25519.PointSize]
	nonce := wrapped[curve25519.PointSize : curve25519.PointSize+chacha20poly1305.NonceSizeX]
	box := wrapped[curve25519.PointSize+chacha20poly1305.NonceSizeX:]

	shared, err := curve25519.X25519(ownPriv, ephPub)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	aead, err := chacha20poly1305.NewX(deriveEnvelopeKey(shared, ephPub))
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	chatKey, err := aead.Open(nil, nonce, box, ephPub)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	if len(chatKey) != ChatKeySize {
		return nil, ErrUnwrapFailed
	}
	return chatKey, nil
}

func deriveEnvelopeKey(shared, ephPub []byte) []byte {
	reader := hkdf.New(sha256.New, shared, ephPub, []byte(hkdfInfoEnvelope))
	key := make([]byte, chacha20poly1305.KeySize)
	_, _ = io.ReadFull(reader, key)
	return key
}

func clampScalar(scalar []byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}
