package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"ledgerchat/go-client/pkg/models"
)

// Client talks JSON-RPC 2.0 over HTTP to a ledger gateway. It implements
// Ledger; transport failures surface as ErrUnavailable and gateway errors
// as ErrRejected, so callers never see raw HTTP details.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Int64
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway status %d", ErrUnavailable, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%w: malformed gateway response", ErrUnavailable)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == codeChatNotFound {
			return ErrChatNotFound
		}
		return fmt.Errorf("%w: %s", ErrRejected, rpcResp.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: malformed gateway result", ErrUnavailable)
		}
	}
	return nil
}

const codeChatNotFound = -32011

func (c *Client) RegisterChatIdentity(ctx context.Context, username string, publicKey []byte) error {
	params := struct {
		Username  string `json:"username"`
		PublicKey []byte `json:"public_key"`
	}{username, publicKey}
	return c.call(ctx, "ledger.register_chat_identity", params, nil)
}

func (c *Client) LookupPublicKey(ctx context.Context, username string) ([]byte, bool, error) {
	params := struct {
		Username string `json:"username"`
	}{username}
	var result struct {
		PublicKey []byte `json:"public_key"`
		Found     bool   `json:"found"`
	}
	if err := c.call(ctx, "ledger.lookup_public_key", params, &result); err != nil {
		return nil, false, err
	}
	return result.PublicKey, result.Found, nil
}

func (c *Client) CreateChat(ctx context.Context, chatID, title, owner string, ownerEnvelope []byte) error {
	params := struct {
		ChatID        string `json:"chat_id"`
		Title         string `json:"title"`
		Owner         string `json:"owner"`
		OwnerEnvelope []byte `json:"owner_envelope"`
	}{chatID, title, owner, ownerEnvelope}
	return c.call(ctx, "ledger.create_chat", params, nil)
}

func (c *Client) AddChatEnvelope(ctx context.Context, chatID, recipient string, envelope []byte) error {
	params := struct {
		ChatID    string `json:"chat_id"`
		Recipient string `json:"recipient"`
		Envelope  []byte `json:"envelope"`
	}{chatID, recipient, envelope}
	return c.call(ctx, "ledger.add_chat_envelope", params, nil)
}

func (c *Client) LeaveChat(ctx context.Context, chatID, username string) error {
	params := struct {
		ChatID   string `json:"chat_id"`
		Username string `json:"username"`
	}{chatID, username}
	return c.call(ctx, "ledger.leave_chat", params, nil)
}

func (c *Client) RenameChat(ctx context.Context, chatID, title string) error {
	params := struct {
		ChatID string `json:"chat_id"`
		Title  string `json:"title"`
	}{chatID, title}
	return c.call(ctx, "ledger.rename_chat", params, nil)
}

func (c *Client) ListChats(ctx context.Context, username string) ([]models.Chat, error) {
	params := struct {
		Username string `json:"username"`
	}{username}
	var result struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := c.call(ctx, "ledger.list_chats", params, &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]models.CiphertextMessage, error) {
	params := struct {
		ChatID string `json:"chat_id"`
	}{chatID}
	var result struct {
		Messages []models.CiphertextMessage `json:"messages"`
	}
	if err := c.call(ctx, "ledger.list_messages", params, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (c *Client) ListParticipants(ctx context.Context, chatID string) ([]models.Participant, error) {
	params := struct {
		ChatID string `json:"chat_id"`
	}{chatID}
	var result struct {
		Participants []models.Participant `json:"participants"`
	}
	if err := c.call(ctx, "ledger.list_participants", params, &result); err != nil {
		return nil, err
	}
	return result.Participants, nil
}

func (c *Client) PostMessage(ctx context.Context, chatID, sender string, ciphertext []byte) error {
	params := struct {
		ChatID     string `json:"chat_id"`
		Sender     string `json:"sender"`
		Ciphertext []byte `json:"ciphertext"`
	}{chatID, sender, ciphertext}
	return c.call(ctx, "ledger.post_message", params, nil)
}

var _ Ledger = (*Client)(nil)
var _ Ledger = (*Memory)(nil)
