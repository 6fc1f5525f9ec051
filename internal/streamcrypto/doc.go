// Package streamcrypto implements the chunked authenticated-encryption
// stream that carries a darkspeak session after the handshake.
//
// It plays the role the original DarkSpeak protocol gave to libsodium's
// crypto_secretstream_xchacha20poly1305: a push/pull API over a single
// symmetric key that splits an arbitrarily long message into
// individually-authenticated chunks, with a distinguished tag marking the
// final chunk. Go's standard crypto library has no direct equivalent, so
// this package builds one from golang.org/x/crypto/chacha20poly1305's
// XChaCha20-Poly1305 construction (24-byte nonces, the same primitive the
// teacher codebase already uses for its ratchet message keys) plus a
// per-chunk counter mixed into the stream header to form each nonce.
package streamcrypto
