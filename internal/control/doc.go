// Package control implements the channel-0 request/response protocol
// request/response protocol: JSON-encoded envelopes carrying chat messages, presence
// info, avatars, acks, and the file-offer/accept/reject/abort exchange
// that drives internal/filexfer. Every outbound envelope is tagged with
// the session's next request id; Acks echo it back for correlation.
package control
