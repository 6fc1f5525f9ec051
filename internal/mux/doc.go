// Package mux multiplexes the channel-tagged plaintext chunks carried
// inside one framed.Stream:
//
//	plaintext := channel_be_u32 || request_id_be_u64 || final_u8 || payload
//
// final_u8 is 1 on a channel's last chunk and 0 otherwise. A channel's
// end travels only in this byte: RunWrite always writes chunks with the
// AEAD MESSAGE tag, and the AEAD FINAL tag is sent once, by
// WriteSessionFinal, to retire the whole outbound direction.
//
// Channel 0 always carries control documents; nonzero channels carry
// opaque file-transfer bytes. Multiplexer maps inbound channel ids to
// their consumers and serializes outbound frame writes through one
// queue so two channels can never interleave a partial chunk on the wire.
package mux
