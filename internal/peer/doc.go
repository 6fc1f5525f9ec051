// Package peer implements the top-level per-remote-peer state machine:
// Dialing/Accepting → Handshaking → Connected → {Closing, ReconnectWait}.
// A Session owns the transport connection, the two AEAD stream states,
// the channel multiplexer, and the control sender/receiver, and runs
// them from a single goroutine — all internal state is touched only
// from that goroutine; callers interact through command methods that
// hand work to it and through the Events() channel it publishes on.
//
// Generalized from a constructor-injected, stores-and-clients service
// exposing a handful of top-level verbs into a long-lived actor that
// owns a state machine instead of delegating to one call per operation.
package peer
