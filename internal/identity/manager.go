package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ledgerchat/go-client/internal/securestore"
	"ledgerchat/go-client/pkg/models"
)

var (
	ErrNotLoggedIn     = errors.New("no identity session")
	ErrInvalidUsername = errors.New("invalid username")
)

// Manager owns the identity session: the seed, the derived keypair, and the
// username they were established for. State is written once per login and
// read-only for the rest of the session.
type Manager struct {
	mu       sync.RWMutex
	username string
	seed     []byte
	keys     models.KeyPair

	registry *Registry
	store    *SeedStore
}

func NewManager(registry *Registry, store *SeedStore) *Manager {
	return &Manager{registry: registry, store: store}
}

// Login establishes the identity session. A seed previously persisted under
// this passphrase wins over fresh derivation, so an identity imported from a
// recovery phrase keeps working with its new passphrase; otherwise the seed
// is derived from the passphrase and persisted. Either way the public key
// must agree with the ledger registry (ErrIdentityMismatch if not).
func (m *Manager) Login(ctx context.Context, username, passphrase string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Identity{}, ErrInvalidUsername
	}

	seed, found, err := m.store.Load(passphrase)
	persist := !found
	if err != nil {
		if !errors.Is(err, securestore.ErrAuthFailed) {
			return models.Identity{}, fmt.Errorf("load stored seed: %w", err)
		}
		// Seed file sealed under a different passphrase. Derive instead and
		// leave the file alone; the registry decides whether this login is
		// legitimate.
		found = false
		persist = false
	}
	if !found {
		seed, err = DeriveSeed(passphrase)
		if err != nil {
			return models.Identity{}, err
		}
	}
	keys, err := KeyPairFromSeed(seed)
	if err != nil {
		return models.Identity{}, err
	}

	if err := m.registry.PublishIfAbsent(ctx, username, keys.PublicKey); err != nil {
		return models.Identity{}, err
	}
	if persist {
		if err := m.store.Save(seed, passphrase); err != nil {
			return models.Identity{}, fmt.Errorf("persist seed: %w", err)
		}
	}

	m.mu.Lock()
	m.username = username
	m.seed = append([]byte(nil), seed...)
	m.keys = models.KeyPair{
		PublicKey:  append([]byte(nil), keys.PublicKey...),
		PrivateKey: append([]byte(nil), keys.PrivateKey...),
	}
	m.mu.Unlock()

	return models.Identity{Username: username, PublicKey: keys.PublicKey}, nil
}

// ImportIdentity restores an identity from its recovery phrase and seals it
// under a new passphrase. The ledger registry still arbitrates whether the
// restored key matches the username.
func (m *Manager) ImportIdentity(ctx context.Context, username, mnemonic, passphrase string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Identity{}, ErrInvalidUsername
	}
	if strings.TrimSpace(passphrase) == "" {
		return models.Identity{}, ErrInvalidPassphrase
	}
	seed, err := SeedFromRecoveryPhrase(mnemonic)
	if err != nil {
		return models.Identity{}, err
	}
	keys, err := KeyPairFromSeed(seed)
	if err != nil {
		return models.Identity{}, err
	}
	if err := m.registry.PublishIfAbsent(ctx, username, keys.PublicKey); err != nil {
		return models.Identity{}, err
	}
	if err := m.store.Save(seed, passphrase); err != nil {
		return models.Identity{}, fmt.Errorf("persist imported seed: %w", err)
	}

	m.mu.Lock()
	m.username = username
	m.seed = append([]byte(nil), seed...)
	m.keys = models.KeyPair{
		PublicKey:  append([]byte(nil), keys.PublicKey...),
		PrivateKey: append([]byte(nil), keys.PrivateKey...),
	}
	m.mu.Unlock()

	return models.Identity{Username: username, PublicKey: keys.PublicKey}, nil
}

// RecoveryPhrase exports the current seed as a BIP-39 mnemonic.
func (m *Manager) RecoveryPhrase() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.seed) != SeedSize {
		return "", ErrNotLoggedIn
	}
	return RecoveryPhrase(m.seed)
}

// Username returns the logged-in username, empty when logged out.
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username
}

// Keys returns a copy of the session keypair.
func (m *Manager) Keys() (models.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.username == "" {
		return models.KeyPair{}, ErrNotLoggedIn
	}
	return models.KeyPair{
		PublicKey:  append([]byte(nil), m.keys.PublicKey...),
		PrivateKey: append([]byte(nil), m.keys.PrivateKey...),
	}, nil
}

// Logout zeroes the private material and ends the session. The sealed seed
// file is kept so the next login with the same passphrase reuses it.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.seed {
		m.seed[i] = 0
	}
	for i := range m.keys.PrivateKey {
		m.keys.PrivateKey[i] = 0
	}
	m.username = ""
	m.seed = nil
	m.keys = models.KeyPair{}
}
