package identity

import (
	"context"
	"errors"
	"testing"
)

type fakeRegistryLedger struct {
	keys      map[string][]byte
	registers int
	lookupErr error
}

func newFakeRegistryLedger() *fakeRegistryLedger {
	return &fakeRegistryLedger{keys: make(map[string][]byte)}
}

func (f *fakeRegistryLedger) RegisterChatIdentity(_ context.Context, username string, publicKey []byte) error {
	f.registers++
	f.keys[username] = append([]byte(nil), publicKey...)
	return nil
}

func (f *fakeRegistryLedger) LookupPublicKey(_ context.Context, username string) ([]byte, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	key, ok := f.keys[username]
	return key, ok, nil
}

func TestPublishIfAbsentRegistersOnce(t *testing.T) {
	ledger := newFakeRegistryLedger()
	registry := NewRegistry(ledger, nil)
	keys, _ := DeriveKeyPair("correct-horse")

	if err := registry.PublishIfAbsent(context.Background(), "alice", keys.PublicKey); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := registry.PublishIfAbsent(context.Background(), "alice", keys.PublicKey); err != nil {
		t.Fatalf("second publish with same key: %v", err)
	}
	if ledger.registers != 1 {
		t.Fatalf("expected exactly one register call, got %d", ledger.registers)
	}
}

func TestPublishIfAbsentDetectsMismatch(t *testing.T) {
	ledger := newFakeRegistryLedger()
	registry := NewRegistry(ledger, nil)
	original, _ := DeriveKeyPair("correct-horse")
	other, _ := DeriveKeyPair("wrong-passphrase")

	if err := registry.PublishIfAbsent(context.Background(), "alice", original.PublicKey); err != nil {
		t.Fatalf("publish: %v", err)
	}
	err := registry.PublishIfAbsent(context.Background(), "alice", other.PublicKey)
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
	if string(ledger.keys["alice"]) != string(original.PublicKey) {
		t.Fatal("registry entry must never be overwritten")
	}
}

func TestLookupUnknownUser(t *testing.T) {
	registry := NewRegistry(newFakeRegistryLedger(), nil)
	_, found, err := registry.Lookup(context.Background(), "nobody123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found {
		t.Fatal("unknown user must report found=false")
	}
}
