package identity

import (
	"errors"
	"os"
	"path/filepath"

	"ledgerchat/go-client/internal/securestore"
)

// SeedStore persists the identity seed between sessions, sealed under the
// login passphrase. Losing the file is harmless: the seed re-derives from
// the passphrase.
type SeedStore struct {
	path string
}

func NewSeedStore(dataDir string) *SeedStore {
	return &SeedStore{path: filepath.Join(dataDir, "identity.seed")}
}

func (s *SeedStore) Save(seed []byte, passphrase string) error {
	if len(seed) != SeedSize {
		return ErrInvalidPassphrase
	}
	return securestore.WriteFile(s.path, passphrase, seed)
}

// Load returns the stored seed, or found=false when no seed file exists.
// A wrong passphrase surfaces as securestore.ErrAuthFailed.
func (s *SeedStore) Load(passphrase string) ([]byte, bool, error) {
	seed, err := securestore.ReadFile(s.path, passphrase)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(seed) != SeedSize {
		return nil, false, securestore.ErrInvalid
	}
	return seed, true, nil
}

func (s *SeedStore) Wipe() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
