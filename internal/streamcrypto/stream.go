package streamcrypto

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// Tag marks the role of a chunk within a stream.
type Tag byte

const (
	// TagMessage marks an ordinary chunk; more chunks follow.
	TagMessage Tag = 0
	// TagFinal marks the last chunk of a stream.
	TagFinal Tag = 1
)

const (
	// KeySize is the length in bytes of a stream key.
	KeySize = chacha20poly1305.KeySize
	// HeaderSize is the length in bytes of a stream header (nonce base).
	HeaderSize = 24 // chacha20poly1305.NewX nonce size
	// TagSize is the length in bytes of the cleartext tag byte prepended
	// to every chunk's ciphertext.
	TagSize = 1
	// Overhead is the number of bytes a chunk adds to its plaintext:
	// the cleartext tag byte plus the AEAD authentication tag.
	Overhead = TagSize + chacha20poly1305.Overhead
)

var (
	// ErrKeySize is returned when a key of the wrong length is supplied.
	ErrKeySize = errors.New("streamcrypto: key must be KeySize bytes")
	// ErrHeaderSize is returned when a header of the wrong length is supplied.
	ErrHeaderSize = errors.New("streamcrypto: header must be HeaderSize bytes")
	// ErrStreamClosed is returned by Push/Pull once a TagFinal chunk has
	// been produced or consumed.
	ErrStreamClosed = errors.New("streamcrypto: stream already closed by a final chunk")
	// ErrShortChunk is returned when a ciphertext is too short to contain
	// a tag byte and an AEAD tag.
	ErrShortChunk = errors.New("streamcrypto: chunk shorter than minimum overhead")
	// ErrAuth is returned when a chunk fails authentication, either
	// because it was tampered with or because chunks arrived out of
	// order (the stream enforces at-most-once, in-order delivery).
	ErrAuth = errors.New("streamcrypto: chunk failed authentication")
)

// PushState is the sender side of one directional AEAD stream.
type PushState struct {
	aead    chacha20poly1305Cipher
	header  [HeaderSize]byte
	counter uint64
	closed  bool
}

// PullState is the receiver side of one directional AEAD stream.
type PullState struct {
	aead    chacha20poly1305Cipher
	header  [HeaderSize]byte
	counter uint64
	closed  bool
}

// chacha20poly1305Cipher is the minimal surface this package needs from
// the XChaCha20-Poly1305 AEAD.
type chacha20poly1305Cipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

func newCipher(key []byte) (chacha20poly1305Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return chacha20poly1305.NewX(key)
}

// InitPush seeds a fresh sender state from key and returns the random
// header the receiver needs to seed its matching PullState.
func InitPush(key []byte) (*PushState, [HeaderSize]byte, error) {
	var header [HeaderSize]byte
	aead, err := newCipher(key)
	if err != nil {
		return nil, header, err
	}
	if _, err := rand.Read(header[:]); err != nil {
		return nil, header, err
	}
	return &PushState{aead: aead, header: header}, header, nil
}

// InitPull seeds a fresh receiver state from key and the header produced
// by the matching InitPush.
func InitPull(key []byte, header [HeaderSize]byte) (*PullState, error) {
	aead, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	return &PullState{aead: aead, header: header}, nil
}

// Push authenticates and encrypts plaintext, returning a chunk ready to
// be framed on the wire. tag must be TagFinal for the last chunk of the
// stream; Push returns ErrStreamClosed for any call after that.
func (s *PushState) Push(plaintext []byte, tag Tag) ([]byte, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	nonce := deriveNonce(s.header, s.counter)
	out := make([]byte, 0, TagSize+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, byte(tag))
	out = s.aead.Seal(out, nonce, plaintext, out)
	s.counter++
	if tag == TagFinal {
		s.closed = true
	}
	return out, nil
}

// Pull verifies and decrypts a chunk produced by the matching PushState,
// returning the plaintext and its tag.
func (s *PullState) Pull(chunk []byte) ([]byte, Tag, error) {
	if s.closed {
		return nil, 0, ErrStreamClosed
	}
	if len(chunk) < Overhead {
		return nil, 0, ErrShortChunk
	}
	tag := Tag(chunk[0])
	nonce := deriveNonce(s.header, s.counter)
	plaintext, err := s.aead.Open(nil, nonce, chunk[TagSize:], chunk[:TagSize])
	if err != nil {
		return nil, 0, ErrAuth
	}
	s.counter++
	if tag == TagFinal {
		s.closed = true
	}
	return plaintext, tag, nil
}

// deriveNonce mixes the per-chunk counter into the stream header to
// produce a unique nonce for every chunk, the same role libsodium's
// secretstream construction gives its internal counter.
func deriveNonce(header [HeaderSize]byte, counter uint64) []byte {
	nonce := make([]byte, HeaderSize)
	copy(nonce, header[:])
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], counter)
	for i := 0; i < 8; i++ {
		nonce[HeaderSize-8+i] ^= ctr[i]
	}
	return nonce
}
