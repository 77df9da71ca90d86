package chatcrypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func testKeyPair(t *testing.T) (pub, priv []byte) {
	t.Helper()
	priv = make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, priv); err != nil {
		t.Fatalf("read random scalar: %v", err)
	}
	clampScalar(priv)
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		t.Fatalf("derive public key: %v", err)
	}
	return pub, priv
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	pub, priv := testKeyPair(t)
	chatKey, err := NewChatKey()
	if err != nil {
		t.Fatalf("new chat key: %v", err)
	}

	wrapped, err := WrapKey(chatKey, pub)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	unwrapped, err := UnwrapKey(wrapped, priv)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(chatKey, unwrapped) {
		t.Fatal("unwrapped key does not match original")
	}
}

func TestWrapIsNotDeterministic(t *testing.T) {
	pub, _ := testKeyPair(t)
	chatKey, _ := NewChatKey()

	first, err := WrapKey(chatKey, pub)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	second, err := WrapKey(chatKey, pub)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("two envelopes of the same key must not be byte-identical")
	}
}

func TestUnwrapWithForeignKeyFails(t *testing.T) {
	pubA, _ := testKeyPair(t)
	_, privB := testKeyPair(t)
	chatKey, _ := NewChatKey()

	wrapped, err := WrapKey(chatKey, pubA)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if _, err := UnwrapKey(wrapped, privB); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed, got %v", err)
	}
}

func TestUnwrapRejectsTruncatedEnvelope(t *testing.T) {
	_, priv := testKeyPair(t)
	if _, err := UnwrapKey([]byte("short"), priv); !errors.Is(err, ErrUnwrapFailed) {
		t.Fatalf("expected ErrUnwrapFailed, got %v", err)
	}
}

func TestWrapRejectsBadInputs(t *testing.T) {
	pub, _ := testKeyPair(t)
	if _, err := WrapKey([]byte("tiny"), pub); !errors.Is(err, ErrInvalidChatKey) {
		t.Fatalf("expected ErrInvalidChatKey, got %v", err)
	}
	chatKey, _ := NewChatKey()
	if _, err := WrapKey(chatKey, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidRecipientKey) {
		t.Fatalf("expected ErrInvalidRecipientKey, got %v", err)
	}
}
