package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Credentials is the sealed payload kept in the server-side session. It only
// ever exists in memory and as ciphertext; nothing here is logged.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EncryptCredentials seals the login pair with XChaCha20-Poly1305 under the
// 32-byte config key and returns it base64-encoded for session storage.
func EncryptCredentials(email, password, key string) (string, error) {
	aead, err := chacha20poly1305.NewX([]byte(key))
	if err != nil {
		return "", fmt.Errorf("invalid encryption key: %v", err)
	}

	plaintext, err := json.Marshal(Credentials{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %v", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredentials opens a blob produced by EncryptCredentials.
func DecryptCredentials(encoded, key string) (*Credentials, error) {
	aead, err := chacha20poly1305.NewX([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %v", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed credentials: %v", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed credentials too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %v", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}
