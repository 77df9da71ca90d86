package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock() func() time.Time {
	current := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func seedIdentities(t *testing.T, m *Memory, usernames ...string) {
	t.Helper()
	for i, username := range usernames {
		key := make([]byte, 32)
		key[0] = byte(i + 1)
		if err := m.RegisterChatIdentity(context.Background(), username, key); err != nil {
			t.Fatalf("register %s: %v", username, err)
		}
	}
}

func TestRegisterIdentityRejectsRekey(t *testing.T) {
	m := NewMemoryWithClock(testClock())
	seedIdentities(t, m, "alice")

	other := make([]byte, 32)
	other[0] = 0xEE
	err := m.RegisterChatIdentity(context.Background(), "alice", other)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestEnvelopesAreAppendOnlyAcrossLeave(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithClock(testClock())
	seedIdentities(t, m, "alice", "bob")

	if err := m.CreateChat(ctx, "chat1x", "Team", "alice", []byte("env-alice")); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if err := m.AddChatEnvelope(ctx, "chat1x", "bob", []byte("env-bob")); err != nil {
		t.Fatalf("add envelope: %v", err)
	}
	if err := m.LeaveChat(ctx, "chat1x", "bob"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// Bob no longer sees the chat...
	chats, err := m.ListChats(ctx, "bob")
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 0 {
		t.Fatalf("left participant must not list the chat, got %d", len(chats))
	}

	// ...but his envelope entry survives on the ledger.
	if !m.chats["chat1x"].hasEnvelope("bob") {
		t.Fatal("envelope entry must never be deleted")
	}

	// Rejoining reuses the original envelope rather than appending another.
	if err := m.AddChatEnvelope(ctx, "chat1x", "bob", []byte("env-bob-2")); err != nil {
		t.Fatalf("re-add envelope: %v", err)
	}
	if got := len(m.chats["chat1x"].envelopes); got != 2 {
		t.Fatalf("expected exactly one envelope per participant, got %d entries", got)
	}
}

func TestPostMessageRequiresActiveParticipant(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithClock(testClock())
	seedIdentities(t, m, "alice", "mallory")

	if err := m.CreateChat(ctx, "chat1x", "Team", "alice", []byte("env")); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	err := m.PostMessage(ctx, "chat1x", "mallory", []byte("ciphertext"))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected for non-participant, got %v", err)
	}
}

func TestListChatsCarriesOwnEnvelopeAndLastMessage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithClock(testClock())
	seedIdentities(t, m, "alice", "bob")

	if err := m.CreateChat(ctx, "chat1x", "Team", "alice", []byte("env-alice")); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if err := m.AddChatEnvelope(ctx, "chat1x", "bob", []byte("env-bob")); err != nil {
		t.Fatalf("add envelope: %v", err)
	}
	if err := m.PostMessage(ctx, "chat1x", "bob", []byte("ciphertext")); err != nil {
		t.Fatalf("post: %v", err)
	}

	aliceChats, _ := m.ListChats(ctx, "alice")
	bobChats, _ := m.ListChats(ctx, "bob")
	if len(aliceChats) != 1 || len(bobChats) != 1 {
		t.Fatalf("both participants must see the chat: %d/%d", len(aliceChats), len(bobChats))
	}
	if string(aliceChats[0].OwnEncryptedChatKey) == string(bobChats[0].OwnEncryptedChatKey) {
		t.Fatal("each participant must see their own envelope")
	}
	if aliceChats[0].LastMessage == nil || aliceChats[0].LastMessage.Sender != "bob" {
		t.Fatalf("unexpected last message: %+v", aliceChats[0].LastMessage)
	}
}

func TestUnknownChatErrors(t *testing.T) {
	m := NewMemoryWithClock(testClock())
	if _, err := m.ListMessages(context.Background(), "chat1missing"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}
