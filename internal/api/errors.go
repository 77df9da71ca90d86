package api

import (
	"errors"

	"ledgerchat/go-client/internal/chat"
	"ledgerchat/go-client/internal/chatcrypto"
	"ledgerchat/go-client/internal/identity"
	"ledgerchat/go-client/internal/ledger"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func rpcInvalidParams() *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params"}
}

// mapServiceError translates the typed error taxonomy into stable RPC codes.
// Ledger failures are deliberately reduced to a generic message: transport
// details belong in the daemon log, not in the UI.
func mapServiceError(err error) *rpcError {
	switch {
	case errors.Is(err, identity.ErrInvalidPassphrase):
		return &rpcError{Code: -32001, Message: "invalid passphrase"}
	case errors.Is(err, identity.ErrIdentityMismatch):
		return &rpcError{Code: -32002, Message: "passphrase does not match registered identity"}
	case errors.Is(err, chat.ErrNoChatIdentity):
		return &rpcError{Code: -32003, Message: "user has no chat identity"}
	case errors.Is(err, chatcrypto.ErrUnwrapFailed):
		return &rpcError{Code: -32004, Message: "no access to this chat"}
	case errors.Is(err, chatcrypto.ErrDecryptFailed):
		return &rpcError{Code: -32005, Message: "message could not be decrypted"}
	case errors.Is(err, ledger.ErrChatNotFound):
		return &rpcError{Code: -32008, Message: "chat not found"}
	case errors.Is(err, ledger.ErrRejected):
		return &rpcError{Code: -32007, Message: "ledger rejected the operation"}
	case errors.Is(err, ledger.ErrUnavailable):
		return &rpcError{Code: -32006, Message: "ledger unavailable"}
	case errors.Is(err, chat.ErrNoActiveChat):
		return &rpcError{Code: -32009, Message: "no active chat"}
	case errors.Is(err, chat.ErrInvalidTitle):
		return &rpcError{Code: -32010, Message: "invalid chat title"}
	case errors.Is(err, chat.ErrInviteLimited):
		return &rpcError{Code: -32011, Message: "invite rate limit exceeded"}
	case errors.Is(err, chat.ErrSelfInvite):
		return &rpcError{Code: -32012, Message: "cannot invite yourself"}
	case errors.Is(err, chat.ErrEmptyMessage):
		return &rpcError{Code: -32014, Message: "empty message"}
	case errors.Is(err, identity.ErrInvalidRecoveryPhrase):
		return &rpcError{Code: -32015, Message: "invalid recovery phrase"}
	case errors.Is(err, identity.ErrInvalidUsername):
		return &rpcError{Code: -32016, Message: "invalid username"}
	case errors.Is(err, identity.ErrNotLoggedIn):
		return &rpcError{Code: -32013, Message: "not logged in"}
	default:
		return &rpcError{Code: -32000, Message: "internal error"}
	}
}
