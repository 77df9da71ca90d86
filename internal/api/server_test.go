package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ledgerchat/go-client/internal/chat"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	led := ledger.NewMemory()
	registry := identity.NewRegistry(led, log)
	ids := identity.NewManager(registry, identity.NewSeedStore(t.TempDir()))
	engine := chat.NewEngine(led, ids, nil, log)
	membership := chat.NewMembership(led, ids, registry, engine, nil, nil, log)

	server := NewServer("", NewService(ids, engine, membership), nil, log)
	ts := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func rpcCall(t *testing.T, ts *httptest.Server, method string, params any) rpcResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func mustSucceed(t *testing.T, ts *httptest.Server, method string, params any) map[string]any {
	t.Helper()
	resp := rpcCall(t, ts, method, params)
	if resp.Error != nil {
		t.Fatalf("%s failed: %+v", method, resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("%s returned unexpected result %T", method, resp.Result)
	}
	return result
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz returned %d", resp.StatusCode)
	}

	result := mustSucceed(t, ts, "health_check", nil)
	if result["status"] != "ok" {
		t.Fatalf("unexpected health result %v", result)
	}
}

func TestLoginCreateSendFlow(t *testing.T) {
	ts := newTestServer(t)

	login := mustSucceed(t, ts, "identity.login", []string{"alice", "a long enough passphrase"})
	id, ok := login["identity"].(map[string]any)
	if !ok || id["username"] != "alice" {
		t.Fatalf("unexpected login result %v", login)
	}
	if fp, ok := login["fingerprint"].(string); !ok || !strings.HasPrefix(fp, "lcg1") {
		t.Fatalf("unexpected fingerprint %v", login["fingerprint"])
	}

	created := mustSucceed(t, ts, "chat.create", []string{"Team"})
	chatObj, ok := created["chat"].(map[string]any)
	if !ok || !strings.HasPrefix(chatObj["id"].(string), "chat1") {
		t.Fatalf("unexpected chat.create result %v", created)
	}

	mustSucceed(t, ts, "chat.send", []string{"hi"})

	active := mustSucceed(t, ts, "chat.active", nil)
	messages, ok := active["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one decrypted message, got %v", active["messages"])
	}
	msg := messages[0].(map[string]any)
	if msg["body"] != "hi" || msg["sender"] != "alice" {
		t.Fatalf("unexpected message %v", msg)
	}

	list := mustSucceed(t, ts, "chat.list", nil)
	chats, ok := list["chats"].([]any)
	if !ok || len(chats) != 1 {
		t.Fatalf("unexpected chat.list result %v", list)
	}
}

func TestErrorCodesFromTaxonomy(t *testing.T) {
	ts := newTestServer(t)

	if resp := rpcCall(t, ts, "chat.send", []string{"hi"}); resp.Error == nil || resp.Error.Code != -32009 {
		t.Fatalf("send without session must map to -32009, got %+v", resp.Error)
	}

	mustSucceed(t, ts, "identity.login", []string{"alice", "a long enough passphrase"})
	created := mustSucceed(t, ts, "chat.create", []string{"Team"})
	chatID := created["chat"].(map[string]any)["id"].(string)

	if resp := rpcCall(t, ts, "chat.invite", []string{chatID, "nobody"}); resp.Error == nil || resp.Error.Code != -32003 {
		t.Fatalf("invite of unknown user must map to -32003, got %+v", resp.Error)
	}
	if resp := rpcCall(t, ts, "chat.open", []string{"chat1missing"}); resp.Error == nil || resp.Error.Code != -32008 {
		t.Fatalf("open of unknown chat must map to -32008, got %+v", resp.Error)
	}
	if resp := rpcCall(t, ts, "chat.create", []string{"   "}); resp.Error == nil || resp.Error.Code != -32010 {
		t.Fatalf("blank title must map to -32010, got %+v", resp.Error)
	}
	if resp := rpcCall(t, ts, "chat.invite", []string{chatID, "alice"}); resp.Error == nil || resp.Error.Code != -32012 {
		t.Fatalf("self invite must map to -32012, got %+v", resp.Error)
	}
}

func TestProtocolValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/rpc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET must be rejected, got %d", resp.StatusCode)
	}

	post := func(body string) rpcResponse {
		t.Helper()
		httpResp, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer httpResp.Body.Close()
		var out rpcResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	if out := post("{not json"); out.Error == nil || out.Error.Code != -32700 {
		t.Fatalf("malformed JSON must map to -32700, got %+v", out.Error)
	}
	if out := post(`{"jsonrpc":"2.0","id":1,"method":"health_check"}{"extra":true}`); out.Error == nil || out.Error.Code != -32600 {
		t.Fatalf("trailing document must map to -32600, got %+v", out.Error)
	}
	if out := post(`{"jsonrpc":"1.0","id":1,"method":"health_check"}`); out.Error == nil || out.Error.Code != -32600 {
		t.Fatalf("wrong version must map to -32600, got %+v", out.Error)
	}
	if out := rpcCall(t, ts, "no.such.method", nil); out.Error == nil || out.Error.Code != -32601 {
		t.Fatalf("unknown method must map to -32601, got %+v", out.Error)
	}
	if out := rpcCall(t, ts, "chat.create", []string{}); out.Error == nil || out.Error.Code != -32602 {
		t.Fatalf("missing params must map to -32602, got %+v", out.Error)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	ts := newTestServer(t)

	huge := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"chat.send","params":["%s"]}`, strings.Repeat("a", 2<<20))
	resp, err := http.Post(ts.URL+"/rpc", "application/json", strings.NewReader(huge))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body must return 413, got %d", resp.StatusCode)
	}
}
