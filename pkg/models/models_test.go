package models

import "testing"

func TestChatLastActivityFallsBackToCreation(t *testing.T) {
	chat := Chat{ID: "chat1abc", CreatedAt: 1700000000000}
	if got := chat.LastActivity(); got != 1700000000000 {
		t.Fatalf("expected creation timestamp, got %d", got)
	}

	chat.LastMessage = &MessageSummary{Sender: "alice", Timestamp: 1700000005000}
	if got := chat.LastActivity(); got != 1700000005000 {
		t.Fatalf("expected last message timestamp, got %d", got)
	}
}
