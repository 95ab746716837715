// Package auth implements the optional password handshake of the event
// server and the sealed framing used for the rest of an authenticated
// session.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	GeneratedKeyLength = 16
	keyAlphabet        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	pbkdf2Iterations   = 100000
	pbkdf2Salt         = "btkeyboard-key-v1"
	sessionContext     = "btkeyboard-session-v1"
)

// GenerateKey returns a random base62 password of GeneratedKeyLength characters.
func GenerateKey() (string, error) {
	// 248 is the largest multiple of 62 below 256; bytes above it are
	// redrawn so every character is equally likely.
	const limit = 62 * 4
	out := make([]byte, 0, GeneratedKeyLength)
	buf := make([]byte, GeneratedKeyLength*2)
	for len(out) < GeneratedKeyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit || len(out) == GeneratedKeyLength {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
		}
	}
	return string(out), nil
}

// DeriveKey stretches a password into a 32-byte key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(pbkdf2Salt), pbkdf2Iterations, 32)
}

// SessionKey mixes the long-term key with both handshake nonces so every
// connection is sealed with a different key.
func SessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

// LoadOrCreateKeyFile returns the password stored at path. A missing file is
// created (mode 0600) holding a fresh GenerateKey result, and created is true.
func LoadOrCreateKeyFile(path string) (password string, created bool, err error) {
	b, err := os.ReadFile(path)
	if err == nil {
		password = strings.TrimSpace(string(b))
		if password == "" {
			return "", false, fmt.Errorf("key file %s is empty", path)
		}
		return password, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", false, fmt.Errorf("read key file: %w", err)
	}
	password, err = GenerateKey()
	if err != nil {
		return "", false, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", false, fmt.Errorf("create key file dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(password), 0o600); err != nil {
		return "", false, fmt.Errorf("write key file: %w", err)
	}
	return password, true, nil
}
