package chat

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mr-tron/base58"

	"ledgerchat/go-client/internal/chatcrypto"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
	"ledgerchat/go-client/internal/platform/ratelimiter"
	"ledgerchat/go-client/pkg/models"
)

var (
	// ErrNoChatIdentity means the invite target has never registered a chat
	// identity; nothing was published.
	ErrNoChatIdentity = errors.New("user has no chat identity")
	ErrSelfInvite     = errors.New("cannot invite yourself")
	ErrInviteLimited  = errors.New("invite rate limit exceeded")
	ErrInvalidTitle   = errors.New("invalid chat title")
)

const (
	chatIDPrefix  = "chat1"
	maxTitleRunes = 120
)

// Membership performs the ledger writes behind chat lifecycle operations.
// Failure semantics are write-through: a rejected ledger write fails the
// whole operation and local state stays untouched; a write that landed
// before a later step failed is reconciled by the next sync, never rolled
// back.
type Membership struct {
	ledger   ledger.Ledger
	ids      *identity.Manager
	registry *identity.Registry
	engine   *Engine
	limiter  *ratelimiter.MapLimiter
	metrics  *Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewMembership(led ledger.Ledger, ids *identity.Manager, registry *identity.Registry, engine *Engine, limiter *ratelimiter.MapLimiter, metrics *Metrics, log *slog.Logger) *Membership {
	if log == nil {
		log = slog.Default()
	}
	return &Membership{
		ledger:   led,
		ids:      ids,
		registry: registry,
		engine:   engine,
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// CreateChat generates a fresh chat key, wraps it for the creator, publishes
// the chat, and opens it as the active session.
func (m *Membership) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	ctx, done := m.engine.tasks.Begin(ctx, TaskMembership)
	defer done()

	title, err := normalizeTitle(title)
	if err != nil {
		return models.Chat{}, err
	}
	keys, err := m.ids.Keys()
	if err != nil {
		return models.Chat{}, err
	}

	chatKey, err := chatcrypto.NewChatKey()
	if err != nil {
		return models.Chat{}, err
	}
	ownEnvelope, err := chatcrypto.WrapKey(chatKey, keys.PublicKey)
	if err != nil {
		return models.Chat{}, err
	}
	chatID, err := newChatID()
	if err != nil {
		return models.Chat{}, err
	}

	owner := m.ids.Username()
	if err := m.ledger.CreateChat(ctx, chatID, title, owner, ownEnvelope); err != nil {
		return models.Chat{}, fmt.Errorf("create chat: %w", err)
	}

	chat := models.Chat{
		ID:                  chatID,
		Title:               title,
		OwnEncryptedChatKey: ownEnvelope,
		CreatedAt:           m.now().UTC().UnixMilli(),
	}
	m.engine.InvalidateList()
	if err := m.engine.Open(ctx, &chat); err != nil {
		m.log.Warn("open of freshly created chat failed", "chat_id", chatID, "error", err)
	}
	m.log.Info("chat created", "chat_id", chatID, "owner", owner)
	return chat, nil
}

// AddParticipant grants target access to the chat: the inviter unwraps their
// own envelope, wraps the same key for the target, publishes the new
// envelope, and posts an encrypted system message announcing the invite.
// A target without a registered chat identity aborts the operation before
// anything is published.
func (m *Membership) AddParticipant(ctx context.Context, chat models.Chat, target string) error {
	ctx, done := m.engine.tasks.Begin(ctx, TaskMembership)
	defer done()

	target = strings.TrimSpace(target)
	if target == "" {
		return ErrNoChatIdentity
	}
	inviter := m.ids.Username()
	if strings.EqualFold(target, inviter) {
		return ErrSelfInvite
	}
	if !m.limiter.Allow(inviter, m.now()) {
		return ErrInviteLimited
	}

	targetPub, found, err := m.registry.Lookup(ctx, target)
	if err != nil {
		return fmt.Errorf("lookup invite target: %w", err)
	}
	if !found {
		return fmt.Errorf("invite %s: %w", target, ErrNoChatIdentity)
	}

	keys, err := m.ids.Keys()
	if err != nil {
		return err
	}
	chatKey, err := chatcrypto.UnwrapKey(chat.OwnEncryptedChatKey, keys.PrivateKey)
	if err != nil {
		return fmt.Errorf("invite to chat %s: %w", chat.ID, err)
	}
	envelope, err := chatcrypto.WrapKey(chatKey, targetPub)
	if err != nil {
		return err
	}

	if err := m.ledger.AddChatEnvelope(ctx, chat.ID, target, envelope); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	m.metrics.inviteSent()

	notice := fmt.Sprintf("invited '%s' to the chat", target)
	ciphertext, err := chatcrypto.EncryptMessage(notice, chatKey)
	if err != nil {
		return err
	}
	if err := m.ledger.PostMessage(ctx, chat.ID, inviter, ciphertext); err != nil {
		// The envelope landed; the missing notice is cosmetic and the next
		// sync shows the membership anyway.
		m.log.Warn("invite notice not posted", "chat_id", chat.ID, "error", err)
	}

	m.log.Info("participant added", "chat_id", chat.ID, "target", target)
	if err := m.engine.Refresh(ctx); err != nil {
		m.log.Warn("post-invite refresh failed", "chat_id", chat.ID, "error", err)
	}
	return nil
}

// RemoveSelf publishes a leave record and closes the local session. The chat
// key is not rotated: the ledger is append-only and the leaver keeps their
// envelope, so departure only stops future participation, not past access.
func (m *Membership) RemoveSelf(ctx context.Context, chat models.Chat) error {
	ctx, done := m.engine.tasks.Begin(ctx, TaskMembership)
	defer done()

	username := m.ids.Username()
	if err := m.ledger.LeaveChat(ctx, chat.ID, username); err != nil {
		return fmt.Errorf("leave chat: %w", err)
	}
	m.engine.CloseIfActive(chat.ID)
	m.engine.InvalidateList()
	m.log.Info("left chat", "chat_id", chat.ID)
	return nil
}

// RenameChat updates the chat title on the ledger and reopens the session if
// this chat is active, so readers see the new title immediately.
func (m *Membership) RenameChat(ctx context.Context, chat models.Chat, newTitle string) error {
	ctx, done := m.engine.tasks.Begin(ctx, TaskMembership)
	defer done()

	newTitle, err := normalizeTitle(newTitle)
	if err != nil {
		return err
	}
	if err := m.ledger.RenameChat(ctx, chat.ID, newTitle); err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	m.engine.InvalidateList()

	if active, ok := m.engine.ActiveChat(); ok && active.ID == chat.ID {
		renamed := active
		renamed.Title = newTitle
		if err := m.engine.Open(ctx, &renamed); err != nil {
			m.log.Warn("reopen after rename failed", "chat_id", chat.ID, "error", err)
		}
	}
	m.log.Info("chat renamed", "chat_id", chat.ID)
	return nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleRunes {
		return "", ErrInvalidTitle
	}
	return title, nil
}

func newChatID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate chat id: %w", err)
	}
	return chatIDPrefix + base58.Encode(buf), nil
}
