package auth

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// maxPlaintext bounds the payload of one sealed frame. Larger writes are split.
const maxPlaintext = 64 * 1024

const (
	dirClientToServer byte = 'c'
	dirServerToClient byte = 's'
)

// ErrFrame is returned when a peer announces a frame that cannot be valid.
var ErrFrame = errors.New("auth: malformed frame")

// Conn seals every Write as one frame: a 4-byte big-endian length followed by
// the ChaCha20-Poly1305 ciphertext. Nonces are not sent. Each side counts the
// frames it sends and receives per direction, so a replayed, reordered or
// dropped frame fails to open.
type Conn struct {
	net.Conn
	aead cipher.AEAD

	wmu     sync.Mutex
	sendDir byte
	sendSeq uint64

	recvDir byte
	recvSeq uint64
	pending []byte
}

// WrapConn seals conn with sessionKey. client selects the direction tags and
// must be true on exactly one end.
func WrapConn(conn net.Conn, sessionKey []byte, client bool) (*Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	c := &Conn{Conn: conn, aead: aead, sendDir: dirServerToClient, recvDir: dirClientToServer}
	if client {
		c.sendDir, c.recvDir = c.recvDir, c.sendDir
	}
	return c, nil
}

func nonce(dir byte, seq uint64) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	n[0] = dir
	binary.BigEndian.PutUint64(n[4:], seq)
	return n
}

func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	written := 0
	for {
		chunk := p[written:]
		if len(chunk) > maxPlaintext {
			chunk = chunk[:maxPlaintext]
		}
		frame := make([]byte, 4, 4+len(chunk)+c.aead.Overhead())
		frame = c.aead.Seal(frame, nonce(c.sendDir, c.sendSeq), chunk, nil)
		binary.BigEndian.PutUint32(frame[:4], uint32(len(frame)-4))
		c.sendSeq++
		if _, err := c.Conn.Write(frame); err != nil {
			return written, err
		}
		written += len(chunk)
		if written >= len(p) {
			return written, nil
		}
	}
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(c.Conn, hdr[:]); err != nil {
			return 0, err
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n < uint32(c.aead.Overhead()) || n > uint32(maxPlaintext+c.aead.Overhead()) {
			return 0, ErrFrame
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(c.Conn, frame); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		pt, err := c.aead.Open(frame[:0], nonce(c.recvDir, c.recvSeq), frame, nil)
		if err != nil {
			return 0, err
		}
		c.recvSeq++
		c.pending = pt
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}
