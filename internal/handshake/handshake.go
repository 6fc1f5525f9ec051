package handshake

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"darkspeak/internal/crypto"
	"darkspeak/internal/domain"
	"darkspeak/internal/streamcrypto"
)

// Version is the only handshake wire version this package speaks.
const Version byte = 1

const (
	pubKeySize = ed25519.PublicKeySize
	sigSize    = ed25519.SignatureSize

	// HelloSize is the fixed wire size of a HELLO message:
	// version || stream_key || stream_header || client_pubkey || sig.
	HelloSize = 1 + streamcrypto.KeySize + streamcrypto.HeaderSize + pubKeySize + sigSize

	// OllehSize is the fixed wire size of an OLLEH message:
	// version || stream_key || stream_header || sig.
	OllehSize = 1 + streamcrypto.KeySize + streamcrypto.HeaderSize + sigSize
)

var (
	ErrShortRead        = errors.New("handshake: short read")
	ErrVersion          = errors.New("handshake: unsupported version")
	ErrSignature        = errors.New("handshake: signature verification failed")
	ErrIdentityMismatch = errors.New("handshake: peer identity does not match ConnectData")
)

// HandshakeError wraps a terminal handshake failure with the phase it
// occurred in, for logging.
type HandshakeError struct {
	Phase string
	Err   error
}

func (e *HandshakeError) Error() string { return "handshake: " + e.Phase + ": " + e.Err.Error() }
func (e *HandshakeError) Unwrap() error { return e.Err }

// Hello is the message the dialing side sends first.
type Hello struct {
	StreamKey    [streamcrypto.KeySize]byte
	StreamHeader [streamcrypto.HeaderSize]byte
	ClientPub    domain.Ed25519Public
	Sig          [sigSize]byte
}

// Olleh is the accepting side's reply.
type Olleh struct {
	StreamKey    [streamcrypto.KeySize]byte
	StreamHeader [streamcrypto.HeaderSize]byte
	Sig          [sigSize]byte
}

// transcript builds the signed byte string binding a stream key/header to
// the peer pubkey the signer intends to be talking to.
func transcript(streamKey, streamHeader []byte, peerPub domain.Ed25519Public) []byte {
	out := make([]byte, 0, len(streamKey)+len(streamHeader)+len(peerPub))
	out = append(out, streamKey...)
	out = append(out, streamHeader...)
	out = append(out, peerPub[:]...)
	return out
}

func randomKey() ([streamcrypto.KeySize]byte, error) {
	var key [streamcrypto.KeySize]byte
	_, err := rand.Read(key[:])
	return key, err
}

// BuildHello generates a fresh client->server stream key/header, signs the
// transcript binding it to the expected server identity, and returns the
// wire message plus the PushState seeded from the generated key/header.
func BuildHello(clientIdentity domain.Identity, serverPubExpected domain.Ed25519Public) (Hello, *streamcrypto.PushState, error) {
	key, err := randomKey()
	if err != nil {
		return Hello{}, nil, err
	}
	push, header, err := streamcrypto.InitPush(key[:])
	if err != nil {
		return Hello{}, nil, err
	}

	sig := crypto.Sign(clientIdentity.Private, transcript(key[:], header[:], serverPubExpected))

	h := Hello{StreamKey: key, StreamHeader: header, ClientPub: clientIdentity.Public}
	copy(h.Sig[:], sig)
	return h, push, nil
}

// VerifyHello checks a HELLO addressed to localServerPub. If expectedClient
// is non-nil, the advertised client pubkey must match it exactly. On
// success it returns the PullState seeded for decrypting the client->server
// stream.
func VerifyHello(raw []byte, localServerPub domain.Ed25519Public, expectedClient *domain.Ed25519Public) (Hello, *streamcrypto.PullState, error) {
	h, err := UnmarshalHello(raw)
	if err != nil {
		return Hello{}, nil, &HandshakeError{Phase: "hello", Err: err}
	}
	if !crypto.Verify(h.ClientPub, transcript(h.StreamKey[:], h.StreamHeader[:], localServerPub), h.Sig[:]) {
		return Hello{}, nil, &HandshakeError{Phase: "hello", Err: ErrSignature}
	}
	if expectedClient != nil && h.ClientPub != *expectedClient {
		return Hello{}, nil, &HandshakeError{Phase: "hello", Err: ErrIdentityMismatch}
	}
	pull, err := streamcrypto.InitPull(h.StreamKey[:], h.StreamHeader)
	if err != nil {
		return Hello{}, nil, &HandshakeError{Phase: "hello", Err: err}
	}
	return h, pull, nil
}

// BuildOlleh generates a fresh server->client stream key/header, signs the
// transcript binding it to the client pubkey taken from HELLO, and returns
// the wire message plus the seeded PushState.
func BuildOlleh(serverIdentity domain.Identity, clientPub domain.Ed25519Public) (Olleh, *streamcrypto.PushState, error) {
	key, err := randomKey()
	if err != nil {
		return Olleh{}, nil, err
	}
	push, header, err := streamcrypto.InitPush(key[:])
	if err != nil {
		return Olleh{}, nil, err
	}

	sig := crypto.Sign(serverIdentity.Private, transcript(key[:], header[:], clientPub))

	o := Olleh{StreamKey: key, StreamHeader: header}
	copy(o.Sig[:], sig)
	return o, push, nil
}

// VerifyOlleh checks an OLLEH reply against the server's expected public
// key and the client pubkey sent in the original HELLO, returning the
// seeded PullState for the server->client stream.
func VerifyOlleh(raw []byte, serverPubExpected domain.Ed25519Public, clientPub domain.Ed25519Public) (Olleh, *streamcrypto.PullState, error) {
	o, err := UnmarshalOlleh(raw)
	if err != nil {
		return Olleh{}, nil, &HandshakeError{Phase: "olleh", Err: err}
	}
	if !crypto.Verify(serverPubExpected, transcript(o.StreamKey[:], o.StreamHeader[:], clientPub), o.Sig[:]) {
		return Olleh{}, nil, &HandshakeError{Phase: "olleh", Err: ErrSignature}
	}
	pull, err := streamcrypto.InitPull(o.StreamKey[:], o.StreamHeader)
	if err != nil {
		return Olleh{}, nil, &HandshakeError{Phase: "olleh", Err: err}
	}
	return o, pull, nil
}

// MarshalBinary encodes h in its fixed-size wire layout.
func (h Hello) MarshalBinary() []byte {
	out := make([]byte, 0, HelloSize)
	out = append(out, Version)
	out = append(out, h.StreamKey[:]...)
	out = append(out, h.StreamHeader[:]...)
	out = append(out, h.ClientPub[:]...)
	out = append(out, h.Sig[:]...)
	return out
}

// UnmarshalHello decodes a HELLO from its fixed-size wire layout.
func UnmarshalHello(raw []byte) (Hello, error) {
	var h Hello
	if len(raw) != HelloSize {
		return h, ErrShortRead
	}
	if raw[0] != Version {
		return h, ErrVersion
	}
	off := 1
	copy(h.StreamKey[:], raw[off:off+streamcrypto.KeySize])
	off += streamcrypto.KeySize
	copy(h.StreamHeader[:], raw[off:off+streamcrypto.HeaderSize])
	off += streamcrypto.HeaderSize
	copy(h.ClientPub[:], raw[off:off+pubKeySize])
	off += pubKeySize
	copy(h.Sig[:], raw[off:off+sigSize])
	return h, nil
}

// MarshalBinary encodes o in its fixed-size wire layout.
func (o Olleh) MarshalBinary() []byte {
	out := make([]byte, 0, OllehSize)
	out = append(out, Version)
	out = append(out, o.StreamKey[:]...)
	out = append(out, o.StreamHeader[:]...)
	out = append(out, o.Sig[:]...)
	return out
}

// UnmarshalOlleh decodes an OLLEH from its fixed-size wire layout.
func UnmarshalOlleh(raw []byte) (Olleh, error) {
	var o Olleh
	if len(raw) != OllehSize {
		return o, ErrShortRead
	}
	if raw[0] != Version {
		return o, ErrVersion
	}
	off := 1
	copy(o.StreamKey[:], raw[off:off+streamcrypto.KeySize])
	off += streamcrypto.KeySize
	copy(o.StreamHeader[:], raw[off:off+streamcrypto.HeaderSize])
	off += streamcrypto.HeaderSize
	copy(o.Sig[:], raw[off:off+sigSize])
	return o, nil
}
