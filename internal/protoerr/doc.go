// Package protoerr defines the error kinds shared across the transport,
// framing, handshake, and file-transfer layers so callers can classify a
// failure with errors.As regardless of which layer raised it.
package protoerr
