// Package vault encrypts provider credentials at rest with AES-256-GCM. The
// PAC key never has to appear in plaintext configuration: operators store the
// sealed envelope and the process unseals it at startup.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

var (
	ErrInvalidPayload = errors.New("vault: invalid encrypted payload")
	ErrDecryption     = errors.New("vault: decryption failed")
	ErrNoKey          = errors.New("vault: no encryption key configured")
)

// Vault seals and unseals small secrets. The configured key string is hashed
// to a 32-byte AES-256 key, so any passphrase works as NOMINA_VAULT_KEY.
type Vault struct {
	key []byte
}

func New(key string) *Vault {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(key))
	return &Vault{key: sum[:]}
}

// envelope is the serialized form of a sealed secret. Versioned so the scheme
// can rotate without breaking stored values.
type envelope struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

// IsSealed reports whether s looks like a sealed envelope rather than a
// plaintext value.
func IsSealed(s string) bool {
	var env envelope
	return json.Unmarshal([]byte(s), &env) == nil && env.Version >= 1 && env.Ciphertext != ""
}

func (v *Vault) Seal(plaintext string) (string, error) {
	if v == nil {
		return "", ErrNoKey
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	out, err := json.Marshal(envelope{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (v *Vault) Unseal(data string) (string, error) {
	if v == nil {
		return "", ErrNoKey
	}
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return "", ErrInvalidPayload
	}
	if env.Version != 1 {
		return "", ErrInvalidPayload
	}
	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", ErrInvalidPayload
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
