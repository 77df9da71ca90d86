package chat

import (
	"log/slog"

	"ledgerchat/go-client/internal/chatcrypto"
	"ledgerchat/go-client/pkg/models"
)

// SessionState tracks where the single active session is in its lifecycle.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpening
	StateOpen
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Session is the decrypted view of the one currently open chat. The chat key
// lives only here and only for as long as the session is open.
type Session struct {
	Chat         models.Chat
	Messages     []models.PlaintextMessage
	Participants []models.Participant
	State        SessionState

	key []byte
}

const unreadablePlaceholder = "[message could not be decrypted]"

// decryptMessages decrypts each record independently. A record that fails to
// decrypt becomes an unreadable placeholder keeping its sender and timestamp;
// it never hides the rest of the history.
func decryptMessages(ciphertexts []models.CiphertextMessage, chatKey []byte, chatID string, metrics *Metrics, log *slog.Logger) []models.PlaintextMessage {
	out := make([]models.PlaintextMessage, 0, len(ciphertexts))
	for _, ct := range ciphertexts {
		body, err := chatcrypto.DecryptMessage(ct.EncryptedBody, chatKey)
		if err != nil {
			metrics.decryptFailure()
			if log != nil {
				log.Warn("undecryptable message record",
					"chat_id", chatID,
					"sender", ct.Sender,
					"timestamp", ct.Timestamp,
				)
			}
			out = append(out, models.PlaintextMessage{
				Sender:     ct.Sender,
				Timestamp:  ct.Timestamp,
				Body:       unreadablePlaceholder,
				Unreadable: true,
			})
			continue
		}
		out = append(out, models.PlaintextMessage{
			Sender:    ct.Sender,
			Timestamp: ct.Timestamp,
			Body:      body,
		})
	}
	return out
}
