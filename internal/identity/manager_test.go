package identity

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func newTestManager(t *testing.T, ledger RegistryLedger) *Manager {
	t.Helper()
	return NewManager(NewRegistry(ledger, nil), NewSeedStore(t.TempDir()))
}

func TestLoginSamePassphraseOnFreshDevice(t *testing.T) {
	ledger := newFakeRegistryLedger()

	first := newTestManager(t, ledger)
	id1, err := first.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("initial login: %v", err)
	}

	// Fresh device: empty seed store, same ledger, same passphrase.
	second := newTestManager(t, ledger)
	id2, err := second.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("fresh-device login must not mismatch: %v", err)
	}
	if !bytes.Equal(id1.PublicKey, id2.PublicKey) {
		t.Fatal("fresh device derived a different public key")
	}
}

func TestLoginWrongPassphraseMismatches(t *testing.T) {
	ledger := newFakeRegistryLedger()
	m := newTestManager(t, ledger)
	if _, err := m.Login(context.Background(), "alice", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}

	other := newTestManager(t, ledger)
	_, err := other.Login(context.Background(), "alice", "battery-staple")
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestImportIdentityThenLoginWithNewPassphrase(t *testing.T) {
	ledger := newFakeRegistryLedger()
	original := newTestManager(t, ledger)
	id, err := original.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	mnemonic, err := original.RecoveryPhrase()
	if err != nil {
		t.Fatalf("recovery phrase: %v", err)
	}

	// New device, new passphrase, restored from the phrase.
	restored := newTestManager(t, ledger)
	imported, err := restored.ImportIdentity(context.Background(), "alice", mnemonic, "new-device-pass")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !bytes.Equal(id.PublicKey, imported.PublicKey) {
		t.Fatal("imported identity has a different public key")
	}

	// Subsequent login on that device uses the sealed seed, not derivation.
	restored.Logout()
	again, err := restored.Login(context.Background(), "alice", "new-device-pass")
	if err != nil {
		t.Fatalf("login after import: %v", err)
	}
	if !bytes.Equal(id.PublicKey, again.PublicKey) {
		t.Fatal("stored seed login has a different public key")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	m := newTestManager(t, newFakeRegistryLedger())
	if _, err := m.Login(context.Background(), "alice", "correct-horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Logout()
	if m.Username() != "" {
		t.Fatal("username must clear on logout")
	}
	if _, err := m.Keys(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if _, err := m.RecoveryPhrase(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}
