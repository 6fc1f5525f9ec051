// Package transport dials and accepts the raw, unauthenticated byte
// streams that the handshake and framing layers run over. Outbound
// connections go through a local Tor SOCKS5 proxy to reach a peer's
// onion address; inbound connections arrive on a plain local listener
// that Tor's onion service forwards to.
package transport
