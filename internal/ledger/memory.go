package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ledgerchat/go-client/pkg/models"
)

// Memory is an in-process ledger with the same visibility rules as the real
// one. It backs tests and the daemon's mock transport.
type Memory struct {
	mu         sync.Mutex
	identities map[string][]byte
	chats      map[string]*chatRecord
	now        func() time.Time
}

type chatRecord struct {
	id        string
	title     string
	createdAt int64
	// envelopes is append-only: one entry per current or former
	// participant, never deleted. Leaving only flips active.
	envelopes []models.EnvelopeEntry
	active    map[string]bool
	messages  []models.CiphertextMessage
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		identities: make(map[string][]byte),
		chats:      make(map[string]*chatRecord),
		now:        now,
	}
}

func (m *Memory) RegisterChatIdentity(_ context.Context, username string, publicKey []byte) error {
	username = strings.TrimSpace(username)
	if username == "" || len(publicKey) == 0 {
		return ErrRejected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.identities[username]; ok {
		if bytes.Equal(existing, publicKey) {
			return nil
		}
		return fmt.Errorf("%w: identity already registered", ErrRejected)
	}
	m.identities[username] = append([]byte(nil), publicKey...)
	return nil
}

func (m *Memory) LookupPublicKey(_ context.Context, username string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.identities[strings.TrimSpace(username)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), key...), true, nil
}

func (m *Memory) CreateChat(_ context.Context, chatID, title, owner string, ownerEnvelope []byte) error {
	if chatID == "" || owner == "" || len(ownerEnvelope) == 0 {
		return ErrRejected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chats[chatID]; exists {
		return fmt.Errorf("%w: chat id already exists", ErrRejected)
	}
	if _, ok := m.identities[owner]; !ok {
		return fmt.Errorf("%w: owner has no chat identity", ErrRejected)
	}
	m.chats[chatID] = &chatRecord{
		id:        chatID,
		title:     title,
		createdAt: m.now().UTC().UnixMilli(),
		envelopes: []models.EnvelopeEntry{{RecipientUsername: owner, EncryptedKey: append([]byte(nil), ownerEnvelope...)}},
		active:    map[string]bool{owner: true},
	}
	return nil
}

func (m *Memory) AddChatEnvelope(_ context.Context, chatID, recipient string, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	if _, ok := m.identities[recipient]; !ok {
		return fmt.Errorf("%w: recipient has no chat identity", ErrRejected)
	}
	if !chat.hasEnvelope(recipient) {
		chat.envelopes = append(chat.envelopes, models.EnvelopeEntry{
			RecipientUsername: recipient,
			EncryptedKey:      append([]byte(nil), envelope...),
		})
	}
	chat.active[recipient] = true
	return nil
}

func (m *Memory) LeaveChat(_ context.Context, chatID, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	// The envelope entry stays on the ledger; only future visibility ends.
	chat.active[username] = false
	return nil
}

func (m *Memory) RenameChat(_ context.Context, chatID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	chat.title = title
	return nil
}

func (m *Memory) ListChats(_ context.Context, username string) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chat
	for _, chat := range m.chats {
		if !chat.active[username] {
			continue
		}
		envelope, ok := chat.envelope(username)
		if !ok {
			continue
		}
		record := models.Chat{
			ID:                  chat.id,
			Title:               chat.title,
			OwnEncryptedChatKey: append([]byte(nil), envelope...),
			CreatedAt:           chat.createdAt,
		}
		if n := len(chat.messages); n > 0 {
			last := chat.messages[n-1]
			record.LastMessage = &models.MessageSummary{Sender: last.Sender, Timestamp: last.Timestamp}
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListMessages(_ context.Context, chatID string) ([]models.CiphertextMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return append([]models.CiphertextMessage(nil), chat.messages...), nil
}

func (m *Memory) ListParticipants(_ context.Context, chatID string) ([]models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	var out []models.Participant
	for username, active := range chat.active {
		if !active {
			continue
		}
		out = append(out, models.Participant{
			Username:  username,
			PublicKey: append([]byte(nil), m.identities[username]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) PostMessage(_ context.Context, chatID, sender string, ciphertext []byte) error {
	if len(ciphertext) == 0 {
		return ErrRejected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	if !chat.active[sender] {
		return fmt.Errorf("%w: sender is not a participant", ErrRejected)
	}
	chat.messages = append(chat.messages, models.CiphertextMessage{
		Sender:        sender,
		Timestamp:     m.now().UTC().UnixMilli(),
		EncryptedBody: append([]byte(nil), ciphertext...),
	})
	return nil
}

// CorruptMessage flips bytes of one stored ciphertext in place. Test hook
// for exercising unreadable-message handling downstream.
func (m *Memory) CorruptMessage(chatID string, index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok || index < 0 || index >= len(chat.messages) {
		return false
	}
	body := chat.messages[index].EncryptedBody
	if len(body) == 0 {
		return false
	}
	body[len(body)-1] ^= 0xFF
	return true
}

func (c *chatRecord) hasEnvelope(username string) bool {
	_, ok := c.envelope(username)
	return ok
}

func (c *chatRecord) envelope(username string) ([]byte, bool) {
	for _, entry := range c.envelopes {
		if entry.RecipientUsername == username {
			return entry.EncryptedKey, true
		}
	}
	return nil, false
}
