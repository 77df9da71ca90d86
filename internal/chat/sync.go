// Package chat holds the client-side chat core: the sync engine that keeps a
// decrypted view of the user's chats, and the membership manager that
// performs the ledger writes behind create/invite/leave/rename.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"ledgerchat/go-client/internal/chatcrypto"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
	"ledgerchat/go-client/pkg/models"
)

var (
	ErrNoActiveChat = errors.New("no active chat session")
	ErrEmptyMessage = errors.New("empty message")
)

// DefaultFreshnessWindow is how long a fetched chat list stays authoritative
// before a non-forced ListChats hits the ledger again.
const DefaultFreshnessWindow = time.Minute

// ChatList is the result of ListChats. FromCache tells the caller whether
// the ledger was consulted.
type ChatList struct {
	Chats     []models.Chat
	FromCache bool
}

// Engine keeps the chat list cache and the single active session in sync
// with the ledger. All mutating entry points run as latest-wins tasks: a
// newer call of the same kind cancels the older one, and cancelled work is
// discarded without touching committed state.
type Engine struct {
	ledger    ledger.Ledger
	ids       *identity.Manager
	tasks     *TaskRunner
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time
	freshness time.Duration

	mu        sync.Mutex
	chats     []models.Chat
	fetchedAt time.Time
	session   *Session
}

func NewEngine(led ledger.Ledger, ids *identity.Manager, metrics *Metrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		ledger:    led,
		ids:       ids,
		tasks:     NewTaskRunner(),
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		freshness: DefaultFreshnessWindow,
	}
}

// SetFreshnessWindow overrides the chat list cache window; non-positive
// values are ignored.
func (e *Engine) SetFreshnessWindow(d time.Duration) {
	if d > 0 {
		e.freshness = d
	}
}

// SetClock injects a deterministic clock for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// ListChats returns the user's chats ordered by most recent activity. Within
// the freshness window a non-forced call is served from cache. After a fresh
// fetch, if no session is open and the list is non-empty, the first chat is
// opened automatically.
func (e *Engine) ListChats(ctx context.Context, force bool) (ChatList, error) {
	ctx, done := e.tasks.Begin(ctx, TaskListChats)
	defer done()

	e.mu.Lock()
	if !force && !e.fetchedAt.IsZero() && e.now().Sub(e.fetchedAt) < e.freshness {
		cached := append([]models.Chat(nil), e.chats...)
		e.mu.Unlock()
		e.metrics.listCacheHit()
		return ChatList{Chats: cached, FromCache: true}, nil
	}
	e.mu.Unlock()

	username := e.ids.Username()
	if username == "" {
		return ChatList{}, identity.ErrNotLoggedIn
	}

	fetched, err := e.ledger.ListChats(ctx, username)
	if err != nil {
		return ChatList{}, fmt.Errorf("list chats: %w", err)
	}
	e.metrics.listFetch()

	sort.SliceStable(fetched, func(i, j int) bool {
		a, b := fetched[i].LastActivity(), fetched[j].LastActivity()
		if a != b {
			return a > b
		}
		return fetched[i].ID < fetched[j].ID
	})

	if err := ctx.Err(); err != nil {
		return ChatList{}, err
	}

	e.mu.Lock()
	orderChanged := !sameIDSequence(e.chats, fetched)
	e.chats = fetched
	e.fetchedAt = e.now()
	result := append([]models.Chat(nil), e.chats...)
	noSession := e.session == nil
	e.mu.Unlock()

	if orderChanged {
		e.log.Debug("chat list order changed", "chat_count", len(result))
	}
	if noSession && len(result) > 0 {
		first := result[0]
		if err := e.Open(ctx, &first); err != nil {
			e.log.Warn("auto-open of first chat failed", "chat_id", first.ID, "error", err)
		}
	}
	return ChatList{Chats: result, FromCache: false}, nil
}

// Open fetches, decrypts, and installs a chat session. A nil chat closes
// the current session. An envelope the identity cannot unwrap fails the open
// before the previous session is touched. Once the envelope unwraps, the
// engine commits to the switch: the session shows the new chat in the
// opening state until its history is decrypted, and a fetch failure leaves
// it closed.
func (e *Engine) Open(ctx context.Context, chat *models.Chat) error {
	ctx, done := e.tasks.Begin(ctx, TaskOpen)
	defer done()

	if chat == nil {
		e.closeSession()
		return nil
	}

	keys, err := e.ids.Keys()
	if err != nil {
		return err
	}
	chatKey, err := chatcrypto.UnwrapKey(chat.OwnEncryptedChatKey, keys.PrivateKey)
	if err != nil {
		return fmt.Errorf("open chat %s: %w", chat.ID, err)
	}

	opening := &Session{Chat: *chat, State: StateOpening}
	e.mu.Lock()
	if e.session != nil {
		zeroKey(e.session.key)
	}
	e.session = opening
	e.mu.Unlock()

	staged, err := e.buildSession(ctx, *chat, chatKey)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.mu.Lock()
		if e.session == opening {
			e.session = nil
		}
		e.mu.Unlock()
		e.metrics.setSessionOpen(false)
		zeroKey(chatKey)
		return err
	}

	e.mu.Lock()
	committed := e.session == opening
	if committed {
		e.session = staged
	}
	e.mu.Unlock()
	if !committed {
		// A newer Open superseded us while we were decrypting.
		zeroKey(staged.key)
		return ctx.Err()
	}
	e.metrics.setSessionOpen(true)
	e.log.Info("chat session opened", "chat_id", chat.ID, "message_count", len(staged.Messages))
	return nil
}

// Refresh re-fetches the active chat's messages. It is a no-op while the
// record count has not grown; otherwise the session is rebuilt and a forced
// ListChats keeps ordering and previews consistent.
func (e *Engine) Refresh(ctx context.Context) error {
	ctx, done := e.tasks.Begin(ctx, TaskRefresh)
	defer done()

	e.mu.Lock()
	current := e.session
	if current == nil || current.State != StateOpen {
		e.mu.Unlock()
		return nil
	}
	chat := current.Chat
	chatKey := append([]byte(nil), current.key...)
	knownCount := len(current.Messages)
	current.State = StateRefreshing
	e.mu.Unlock()

	restore := func() {
		e.mu.Lock()
		if e.session == current {
			current.State = StateOpen
		}
		e.mu.Unlock()
	}

	ciphertexts, err := e.ledger.ListMessages(ctx, chat.ID)
	if err != nil {
		restore()
		return fmt.Errorf("refresh chat %s: %w", chat.ID, err)
	}
	if len(ciphertexts) <= knownCount {
		restore()
		e.metrics.refreshNoop()
		return nil
	}

	staged, err := e.rebuildSession(ctx, chat, chatKey, ciphertexts)
	if err != nil {
		restore()
		return err
	}
	if err := ctx.Err(); err != nil {
		restore()
		return err
	}

	e.mu.Lock()
	// Commit only if our session is still the active one; a concurrent Open
	// wins. The replaced session's key copy is wiped either way.
	if e.session == current {
		e.session = staged
		zeroKey(current.key)
	} else {
		zeroKey(staged.key)
	}
	e.mu.Unlock()

	if _, err := e.ListChats(ctx, true); err != nil {
		e.log.Warn("post-refresh chat list update failed", "chat_id", chat.ID, "error", err)
	}
	return nil
}

// Send encrypts text with the active session's chat key and posts it, then
// refreshes so the sender reads their own message through the common decrypt
// path.
func (e *Engine) Send(ctx context.Context, text string) error {
	ctx, done := e.tasks.Begin(ctx, TaskSend)
	defer done()

	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	e.mu.Lock()
	if e.session == nil || e.session.State != StateOpen {
		e.mu.Unlock()
		return ErrNoActiveChat
	}
	chatID := e.session.Chat.ID
	chatKey := append([]byte(nil), e.session.key...)
	e.mu.Unlock()

	ciphertext, err := chatcrypto.EncryptMessage(text, chatKey)
	if err != nil {
		return err
	}
	if err := e.ledger.PostMessage(ctx, chatID, e.ids.Username(), ciphertext); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	e.metrics.messageSent()

	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("post-send refresh failed", "chat_id", chatID, "error", err)
	}
	return nil
}

// ActiveSession returns a copy of the current session view, or false when no
// chat is open. The chat key is not part of the copy.
func (e *Engine) ActiveSession() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return Session{
		Chat:         e.session.Chat,
		Messages:     append([]models.PlaintextMessage(nil), e.session.Messages...),
		Participants: append([]models.Participant(nil), e.session.Participants...),
		State:        e.session.State,
	}, true
}

// ActiveChat reports the chat of the open session, if any.
func (e *Engine) ActiveChat() (models.Chat, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return models.Chat{}, false
	}
	return e.session.Chat, true
}

// InvalidateList expires the chat list cache so the next ListChats consults
// the ledger regardless of the freshness window.
func (e *Engine) InvalidateList() {
	e.mu.Lock()
	e.fetchedAt = time.Time{}
	e.mu.Unlock()
}

// CloseIfActive closes the session when it belongs to the given chat.
func (e *Engine) CloseIfActive(chatID string) {
	e.mu.Lock()
	match := e.session != nil && e.session.Chat.ID == chatID
	e.mu.Unlock()
	if match {
		e.closeSession()
	}
}

// Close shuts the engine down: cancels in-flight tasks and drops the session
// together with its decrypted key.
func (e *Engine) Close() {
	e.tasks.CancelAll()
	e.closeSession()
	e.InvalidateList()
	e.mu.Lock()
	e.chats = nil
	e.mu.Unlock()
}

// RunPoller refreshes the active session at the given interval until ctx is
// cancelled. Polling shares the refresh task kind with user actions, so a
// user-initiated refresh supersedes a tick and vice versa.
func (e *Engine) RunPoller(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.log.Warn("poll refresh failed", "error", err)
			}
		}
	}
}

func (e *Engine) closeSession() {
	e.mu.Lock()
	if e.session != nil {
		zeroKey(e.session.key)
		e.session = nil
	}
	e.mu.Unlock()
	e.metrics.setSessionOpen(false)
}

func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

func (e *Engine) buildSession(ctx context.Context, chat models.Chat, chatKey []byte) (*Session, error) {
	ciphertexts, err := e.ledger.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("open chat %s: %w", chat.ID, err)
	}
	return e.rebuildSession(ctx, chat, chatKey, ciphertexts)
}

func (e *Engine) rebuildSession(ctx context.Context, chat models.Chat, chatKey []byte, ciphertexts []models.CiphertextMessage) (*Session, error) {
	messages := decryptMessages(ciphertexts, chatKey, chat.ID, e.metrics, e.log)
	participants, err := e.ledger.ListParticipants(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("load participants for %s: %w", chat.ID, err)
	}
	return &Session{
		Chat:         chat,
		Messages:     messages,
		Participants: participants,
		State:        StateOpen,
		key:          chatKey,
	}, nil
}

func sameIDSequence(a, b []models.Chat) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
