// Package api exposes the daemon's JSON-RPC surface: a thin dispatch layer
// over the identity manager, the sync engine, and the membership manager.
package api

import (
	"context"
	"fmt"

	"ledgerchat/go-client/internal/chat"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
	"ledgerchat/go-client/pkg/models"
)

// Service bundles the daemon's domain components behind the call shapes the
// RPC surface needs.
type Service struct {
	ids        *identity.Manager
	engine     *chat.Engine
	membership *chat.Membership
}

func NewService(ids *identity.Manager, engine *chat.Engine, membership *chat.Membership) *Service {
	return &Service{ids: ids, engine: engine, membership: membership}
}

func (s *Service) Login(ctx context.Context, username, passphrase string) (models.Identity, error) {
	return s.ids.Login(ctx, username, passphrase)
}

func (s *Service) ImportIdentity(ctx context.Context, username, mnemonic, passphrase string) (models.Identity, error) {
	return s.ids.ImportIdentity(ctx, username, mnemonic, passphrase)
}

func (s *Service) RecoveryPhrase() (string, error) {
	return s.ids.RecoveryPhrase()
}

func (s *Service) Logout() {
	s.engine.Close()
	s.ids.Logout()
}

func (s *Service) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	return s.membership.CreateChat(ctx, title)
}

func (s *Service) ListChats(ctx context.Context, force bool) (chat.ChatList, error) {
	return s.engine.ListChats(ctx, force)
}

func (s *Service) OpenChat(ctx context.Context, chatID string) (chat.Session, error) {
	target, err := s.findChat(ctx, chatID)
	if err != nil {
		return chat.Session{}, err
	}
	if err := s.engine.Open(ctx, &target); err != nil {
		return chat.Session{}, err
	}
	session, ok := s.engine.ActiveSession()
	if !ok {
		return chat.Session{}, chat.ErrNoActiveChat
	}
	return session, nil
}

func (s *Service) CloseChat(ctx context.Context) error {
	return s.engine.Open(ctx, nil)
}

func (s *Service) ActiveSession() (chat.Session, bool) {
	return s.engine.ActiveSession()
}

func (s *Service) Send(ctx context.Context, text string) error {
	return s.engine.Send(ctx, text)
}

func (s *Service) Invite(ctx context.Context, chatID, username string) error {
	target, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	return s.membership.AddParticipant(ctx, target, username)
}

func (s *Service) Leave(ctx context.Context, chatID string) error {
	target, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	return s.membership.RemoveSelf(ctx, target)
}

func (s *Service) Rename(ctx context.Context, chatID, title string) error {
	target, err := s.findChat(ctx, chatID)
	if err != nil {
		return err
	}
	return s.membership.RenameChat(ctx, target, title)
}

// findChat resolves a chat id against the cached listing, falling back to a
// forced fetch before reporting the chat as unknown.
func (s *Service) findChat(ctx context.Context, chatID string) (models.Chat, error) {
	list, err := s.engine.ListChats(ctx, false)
	if err != nil {
		return models.Chat{}, err
	}
	if c, ok := chatByID(list.Chats, chatID); ok {
		return c, nil
	}
	list, err = s.engine.ListChats(ctx, true)
	if err != nil {
		return models.Chat{}, err
	}
	if c, ok := chatByID(list.Chats, chatID); ok {
		return c, nil
	}
	return models.Chat{}, fmt.Errorf("%s: %w", chatID, ledger.ErrChatNotFound)
}

func chatByID(chats []models.Chat, chatID string) (models.Chat, bool) {
	for _, c := range chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return models.Chat{}, false
}
