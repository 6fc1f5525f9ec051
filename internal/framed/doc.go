// Package framed implements the length-prefixed encrypted chunk format
// that rides over a raw transport stream once the handshake has seeded
// both directions' AEAD state:
//
//	frame := length_be_u16 || ciphertext[length]
//
// The length prefix is cleartext and bounds the ciphertext; each
// ciphertext decrypts to a plaintext chunk carrying a MESSAGE or FINAL
// tag. Stream tracks the receiver's InState machine (Disabled,
// ChunkSize, ChunkData, Closing) so callers never see a partially
// decoded frame.
package framed
