package models

import "time"

// Identity is the public half of a user's chat identity as published on the
// ledger. The private half is derived from the passphrase and never leaves
// the local process.
type Identity struct {
	Username  string `json:"username"`
	PublicKey []byte `json:"public_key"`
}

// KeyPair holds an X25519 keypair. PrivateKey must never be serialized to
// the ledger or written to logs.
type KeyPair struct {
	PublicKey  []byte `json:"public_key"`
	PrivateKey []byte `json:"-"`
}

// Chat is one ledger-side chat record as seen by a single participant.
// OwnEncryptedChatKey is this participant's personal envelope of the shared
// chat key; every participant sees a different ciphertext of the same key.
type Chat struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	OwnEncryptedChatKey []byte          `json:"own_encrypted_chat_key"`
	CreatedAt           int64           `json:"created_at"`
	LastMessage         *MessageSummary `json:"last_message,omitempty"`
}

// MessageSummary is ciphertext-side metadata only; it never carries a
// decrypted body.
type MessageSummary struct {
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// LastActivity is the sort key for chat lists: timestamp of the newest
// message, falling back to chat creation time for empty chats.
func (c Chat) LastActivity() int64 {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

type Participant struct {
	Username  string `json:"username"`
	PublicKey []byte `json:"public_key"`
}

// CiphertextMessage is a message record as stored on the ledger.
type CiphertextMessage struct {
	Sender        string `json:"sender"`
	Timestamp     int64  `json:"timestamp"`
	EncryptedBody []byte `json:"encrypted_body"`
}

// PlaintextMessage is a message record after local decryption. Unreadable is
// set when the ciphertext could not be decrypted; the record is kept as a
// placeholder so one corrupt message never hides the rest of the history.
type PlaintextMessage struct {
	Sender     string `json:"sender"`
	Timestamp  int64  `json:"timestamp"`
	Body       string `json:"body"`
	Unreadable bool   `json:"unreadable,omitempty"`
}

// EnvelopeEntry is one participant's wrapped copy of a chat key. Entries are
// append-only on the ledger; a participant who leaves keeps theirs.
type EnvelopeEntry struct {
	RecipientUsername string `json:"recipient_username"`
	EncryptedKey      []byte `json:"encrypted_key"`
}

func TimestampNow() int64 {
	return time.Now().UTC().UnixMilli()
}
