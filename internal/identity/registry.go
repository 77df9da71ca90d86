package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrIdentityMismatch means the ledger already holds a different public
	// key for this username. The registry entry is never overwritten:
	// re-keying a username would let whoever knows it intercept future chat
	// invitations.
	ErrIdentityMismatch = errors.New("derived key does not match registered identity")
)

// RegistryLedger is the slice of the ledger the registry needs.
type RegistryLedger interface {
	RegisterChatIdentity(ctx context.Context, username string, publicKey []byte) error
	LookupPublicKey(ctx context.Context, username string) ([]byte, bool, error)
}

// Registry publishes and looks up chat identities on the ledger.
type Registry struct {
	ledger RegistryLedger
	log    *slog.Logger
}

func NewRegistry(ledger RegistryLedger, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{ledger: ledger, log: log}
}

// PublishIfAbsent registers the public key for username unless one is
// already on the ledger. An existing equal key is a no-op (same passphrase,
// fresh device); an existing different key is ErrIdentityMismatch.
func (r *Registry) PublishIfAbsent(ctx context.Context, username string, publicKey []byte) error {
	existing, found, err := r.ledger.LookupPublicKey(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup registered key: %w", err)
	}
	if found {
		if !bytes.Equal(existing, publicKey) {
			return ErrIdentityMismatch
		}
		return nil
	}
	if err := r.ledger.RegisterChatIdentity(ctx, username, publicKey); err != nil {
		return fmt.Errorf("register chat identity: %w", err)
	}
	r.log.Info("chat identity registered", "username", username)
	return nil
}

// Lookup returns the registered public key for username. found=false means
// the user has never created a chat identity; callers must treat that as
// "cannot invite", not retry.
func (r *Registry) Lookup(ctx context.Context, username string) ([]byte, bool, error) {
	publicKey, found, err := r.ledger.LookupPublicKey(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("lookup public key: %w", err)
	}
	return publicKey, found, nil
}
