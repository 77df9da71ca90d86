// Package ledger is the client-side boundary to the public append-only
// ledger this application uses as durable storage. Everything written here
// is world-readable; callers are responsible for encrypting anything that
// must stay private.
//
// Writes are single operations with no transactional grouping. A multi-step
// flow that fails halfway leaves real partial state on the ledger; callers
// reconcile through the next sync rather than rolling back.
package ledger

import (
	"context"
	"errors"

	"ledgerchat/go-client/pkg/models"
)

var (
	// ErrUnavailable wraps transport-level failures. Surfaced to the user as
	// a generic failure; never retried automatically.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrRejected means the ledger refused the operation (unknown sender,
	// duplicate identity, non-member write).
	ErrRejected = errors.New("ledger rejected operation")

	ErrChatNotFound = errors.New("chat not found")
)

// Ledger is the full operation surface the chat client consumes.
type Ledger interface {
	RegisterChatIdentity(ctx context.Context, username string, publicKey []byte) error
	LookupPublicKey(ctx context.Context, username string) ([]byte, bool, error)

	CreateChat(ctx context.Context, chatID, title, owner string, ownerEnvelope []byte) error
	AddChatEnvelope(ctx context.Context, chatID, recipient string, envelope []byte) error
	LeaveChat(ctx context.Context, chatID, username string) error
	RenameChat(ctx context.Context, chatID, title string) error

	ListChats(ctx context.Context, username string) ([]models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]models.CiphertextMessage, error)
	ListParticipants(ctx context.Context, chatID string) ([]models.Participant, error)
	PostMessage(ctx context.Context, chatID, sender string, ciphertext []byte) error
}
