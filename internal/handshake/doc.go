// Package handshake implements the HELLO/OLLEH exchange that mutually
// authenticates a darkspeak session and seeds both directions' AEAD
// stream state.
//
// The outgoing side sends HELLO immediately after the transport connects;
// the incoming side replies with OLLEH. Both messages are fixed-size and
// carry a freshly generated symmetric stream key/header plus an Ed25519
// signature over a transcript that binds the key material to the
// sender's identity and the intended peer, so a MITM relay cannot splice
// together a session between two endpoints that never agreed to talk to
// each other.
package handshake
