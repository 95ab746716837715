package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Alia5/btkeyboard/apitypes"
)

const (
	// Magic opens a handshake. Event lines never start with a NUL byte, so
	// the first byte alone tells a handshake from a plain request.
	Magic     = "\x00BTK1"
	NonceSize = 32
	okReply   = "OK\x00"
	macLabel  = "btkeyboard-auth-v1"

	// HelloSize is the length of the client's opening message.
	HelloSize = len(Magic) + NonceSize + sha256.Size
)

// ErrBadPassword is returned by Accept when the client's MAC does not match.
var ErrBadPassword = errors.New("invalid password")

// Offered reports whether the next byte in r starts a handshake. It blocks
// until the peer has sent at least one byte.
func Offered(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(1)
	if err != nil {
		return false, err
	}
	return b[0] == Magic[0], nil
}

func clientMAC(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(macLabel))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// Accept runs the server side of the handshake: Magic, client nonce and MAC
// in; "OK\x00" and the server nonce out. The returned session key seals the
// rest of the connection.
func Accept(r *bufio.Reader, w io.Writer, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errors.New("handshake: missing key")
	}
	hello := make([]byte, HelloSize)
	if _, err := io.ReadFull(r, hello); err != nil {
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	if string(hello[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("handshake: bad magic %q", hello[:len(Magic)])
	}
	clientNonce := hello[len(Magic) : len(Magic)+NonceSize]
	if !hmac.Equal(hello[len(Magic)+NonceSize:], clientMAC(key, clientNonce)) {
		return nil, ErrBadPassword
	}

	serverNonce := make([]byte, NonceSize)
	if _, err := rand.Read(serverNonce); err != nil {
		return nil, fmt.Errorf("generate server nonce: %w", err)
	}
	if _, err := w.Write(append([]byte(okReply), serverNonce...)); err != nil {
		return nil, fmt.Errorf("write handshake reply: %w", err)
	}
	return SessionKey(key, serverNonce, clientNonce), nil
}

// Initiate runs the client side of the handshake. A problem document sent by
// the server instead of "OK\x00" is returned as *apitypes.ApiError.
func Initiate(r *bufio.Reader, w io.Writer, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errors.New("handshake: missing key")
	}
	clientNonce := make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}
	msg := append([]byte(Magic), clientNonce...)
	msg = append(msg, clientMAC(key, clientNonce)...)
	if _, err := w.Write(msg); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}

	reply, err := r.Peek(len(okReply))
	if err != nil {
		return nil, fmt.Errorf("read handshake reply: %w", err)
	}
	if string(reply) != okReply {
		line, _ := r.ReadString('\n')
		line = strings.TrimSpace(line)
		var apiErr apitypes.ApiError
		if err := json.Unmarshal([]byte(line), &apiErr); err == nil && apiErr.Status != 0 {
			return nil, &apiErr
		}
		return nil, fmt.Errorf("unexpected handshake reply: %q", line)
	}
	_, _ = r.Discard(len(okReply))

	serverNonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, serverNonce); err != nil {
		return nil, fmt.Errorf("read server nonce: %w", err)
	}
	return SessionKey(key, serverNonce, clientNonce), nil
}
