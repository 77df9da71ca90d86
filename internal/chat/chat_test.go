package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// client bundles one user's full stack against a shared in-process ledger.
type client struct {
	ids        *identity.Manager
	engine     *Engine
	membership *Membership
}

func newClient(t *testing.T, led *ledger.Memory, clock *testClock, username string) *client {
	t.Helper()
	log := discardLogger()
	registry := identity.NewRegistry(led, log)
	ids := identity.NewManager(registry, identity.NewSeedStore(t.TempDir()))
	if _, err := ids.Login(context.Background(), username, username+" opens the ledger"); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}

	engine := NewEngine(led, ids, nil, log)
	engine.SetClock(clock.Now)
	membership := NewMembership(led, ids, registry, engine, nil, nil, log)
	membership.now = clock.Now
	return &client{ids: ids, engine: engine, membership: membership}
}
