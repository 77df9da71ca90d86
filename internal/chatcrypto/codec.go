package chatcrypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptFailed means one ciphertext record is unreadable (tampered,
// truncated, or encrypted under a different key). It is scoped to that
// single record; callers keep listing the rest of the history.
var ErrDecryptFailed = errors.New("message decrypt failed")

// EncryptMessage encrypts one message body with the shared chat key. The
// random nonce is prepended, so encrypting the same plaintext twice yields
// different ciphertexts.
func EncryptMessage(plaintext string, chatKey []byte) ([]byte, error) {
	if len(chatKey) != ChatKeySize {
		return nil, ErrInvalidChatKey
	}
	aead, err := chacha20poly1305.NewX(chatKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// DecryptMessage reverses EncryptMessage. It never panics; all failure
// modes collapse into ErrDecryptFailed.
func DecryptMessage(ciphertext, chatKey []byte) (string, error) {
	if len(chatKey) != ChatKeySize {
		return "", ErrDecryptFailed
	}
	if len(ciphertext) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", ErrDecryptFailed
	}
	aead, err := chacha20poly1305.NewX(chatKey)
	if err != nil {
		return "", ErrDecryptFailed
	}
	nonce := ciphertext[:chacha20poly1305.NonceSizeX]
	box := ciphertext[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
