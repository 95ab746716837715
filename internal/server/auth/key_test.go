package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/btkeyboard/internal/server/auth"
)

func TestGenerateKey(t *testing.T) {
	seen := map[string]bool{}
	for range 20 {
		key, err := auth.GenerateKey()
		require.NoError(t, err)
		assert.Regexp(t, "^[0-9A-Za-z]{16}$", key)
		seen[key] = true
	}
	assert.Len(t, seen, 20)
}

func TestDeriveKey(t *testing.T) {
	a, err := auth.DeriveKey("password123")
	require.NoError(t, err)
	assert.Len(t, a, 32)

	again, err := auth.DeriveKey("password123")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	other, err := auth.DeriveKey("password124")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = auth.DeriveKey("")
	assert.EqualError(t, err, "password cannot be empty")
}

func TestSessionKey(t *testing.T) {
	key := make([]byte, 32)
	serverNonce := make([]byte, auth.NonceSize)
	clientNonce := make([]byte, auth.NonceSize)
	for i := range key {
		key[i] = byte(i)
		serverNonce[i] = byte(i + 10)
		clientNonce[i] = byte(i + 20)
	}

	s1 := auth.SessionKey(key, serverNonce, clientNonce)
	assert.Len(t, s1, 32)
	assert.Equal(t, s1, auth.SessionKey(key, serverNonce, clientNonce))

	clientNonce[0] = 99
	assert.NotEqual(t, s1, auth.SessionKey(key, serverNonce, clientNonce))
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "btkeyboard.key.txt")

	pw, created, err := auth.LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, pw, auth.GeneratedKeyLength)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if filepath.Separator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	again, created, err := auth.LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, pw, again)

	require.NoError(t, os.WriteFile(path, []byte("  hunter2\n"), 0o600))
	edited, _, err := auth.LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", edited)

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	_, _, err = auth.LoadOrCreateKeyFile(path)
	assert.ErrorContains(t, err, "empty")
}
