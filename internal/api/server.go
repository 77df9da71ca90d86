package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ledgerchat/go-client/internal/chat"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/pkg/models"
)

const DefaultRPCAddr = "127.0.0.1:8787"

const maxRPCBodyBytes int64 = 1 << 20 // 1 MiB

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Server is the daemon's HTTP front: a JSON-RPC 2.0 POST endpoint plus
// health and metrics.
type Server struct {
	httpServer *http.Server
	service    *Service
	log        *slog.Logger
}

func NewServer(rpcAddr string, svc *Service, metricsHandler http.Handler, log *slog.Logger) *Server {
	if rpcAddr == "" {
		rpcAddr = DefaultRPCAddr
	}
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              rpcAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		service: svc,
		log:     log,
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRPCBodyBytes)
	var req rpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeRPC(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error"},
		})
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeRPCInvalidRequest(w, req.ID)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCInvalidRequest(w, req.ID)
		return
	}

	started := time.Now()
	result, rpcErr := s.dispatch(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.log.Warn("rpc failed", "method", req.Method, "rpc_code", rpcErr.Code, "latency_ms", time.Since(started).Milliseconds())
	} else {
		s.log.Info("rpc handled", "method", req.Method, "latency_ms", time.Since(started).Milliseconds())
	}
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	})
}

func (s *Server) dispatch(ctx context.Context, method string, rawParams json.RawMessage) (any, *rpcError) {
	switch method {
	case "health_check":
		return map[string]string{"status": "ok"}, nil

	case "identity.login":
		username, passphrase, err := decodeTwoStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		id, err := s.service.Login(ctx, username, passphrase)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return identityPayload(id), nil

	case "identity.import":
		username, mnemonic, passphrase, err := decodeThreeStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		id, err := s.service.ImportIdentity(ctx, username, mnemonic, passphrase)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return identityPayload(id), nil

	case "identity.recovery_phrase":
		mnemonic, err := s.service.RecoveryPhrase()
		if err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]string{"mnemonic": mnemonic}, nil

	case "identity.logout":
		s.service.Logout()
		return map[string]bool{"logged_out": true}, nil

	case "chat.create":
		title, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		created, err := s.service.CreateChat(ctx, title)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]any{"chat": created}, nil

	case "chat.list":
		force, err := decodeOptionalBoolParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		list, err := s.service.ListChats(ctx, force)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]any{"chats": list.Chats, "from_cache": list.FromCache}, nil

	case "chat.open":
		chatID, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		session, err := s.service.OpenChat(ctx, chatID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		return sessionPayload(session), nil

	case "chat.close":
		if err := s.service.CloseChat(ctx); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"closed": true}, nil

	case "chat.active":
		session, ok := s.service.ActiveSession()
		if !ok {
			return map[string]any{"session": nil}, nil
		}
		return sessionPayload(session), nil

	case "chat.send":
		text, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if err := s.service.Send(ctx, text); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"sent": true}, nil

	case "chat.invite":
		chatID, username, err := decodeTwoStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if err := s.service.Invite(ctx, chatID, username); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"invited": true}, nil

	case "chat.leave":
		chatID, err := decodeSingleStringParam(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if err := s.service.Leave(ctx, chatID); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"left": true}, nil

	case "chat.rename":
		chatID, title, err := decodeTwoStringParams(rawParams)
		if err != nil {
			return nil, rpcInvalidParams()
		}
		if err := s.service.Rename(ctx, chatID, title); err != nil {
			return nil, mapServiceError(err)
		}
		return map[string]bool{"renamed": true}, nil

	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func identityPayload(id models.Identity) map[string]any {
	payload := map[string]any{"identity": id}
	if fp, err := identity.Fingerprint(id.PublicKey); err == nil {
		payload["fingerprint"] = fp
	}
	return payload
}

func sessionPayload(session chat.Session) map[string]any {
	return map[string]any{
		"chat":         session.Chat,
		"messages":     session.Messages,
		"participants": session.Participants,
		"state":        session.State.String(),
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCInvalidRequest(w http.ResponseWriter, id json.RawMessage) {
	writeRPC(w, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: -32600, Message: "invalid request"},
	})
}
