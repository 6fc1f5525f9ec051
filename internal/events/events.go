// Package events defines the typed notifications a peer session emits in
// place of signal/slot callbacks. A session never calls back into
// application code; it publishes Event values on a channel and
// consumers read at their own pace.
package events

import (
	"darkspeak/internal/domain"
)

// Event is a tagged union of everything a peer session reports about
// itself. The interface's sole purpose is to give the union a type; it
// carries no behavior.
type Event interface {
	eventMarker()
}

// StateChanged reports a peer session state-machine transition.
type StateChanged struct {
	Session domain.SessionID
	From    domain.SessionState
	To      domain.SessionState
}

// BytesTransferred reports incremental progress on a file transfer.
type BytesTransferred struct {
	Session domain.SessionID
	FileID  domain.FileID
	Offset  int64
	Size    int64
}

// HashReady reports that a content hash finished computing, either for
// an outbound offer or a completed inbound transfer.
type HashReady struct {
	FileID domain.FileID
	Hash   string
}

// Closed reports that a session's transport and channels have been
// fully released.
type Closed struct {
	Session domain.SessionID
	Reason  error
}

// ProtocolError reports a terminal wire-format violation.
type ProtocolError struct {
	Session domain.SessionID
	Err     error
}

// PeerAuthFailed reports a handshake identity or signature failure.
type PeerAuthFailed struct {
	Session domain.SessionID
	Err     error
}

// FileRejected reports that the remote peer declined an unstarted offer.
type FileRejected struct {
	FileID domain.FileID
	Reason string
}

// FileAborted reports that either side aborted an in-progress transfer.
type FileAborted struct {
	FileID domain.FileID
	Err    error
}

// IncomingFileOffered reports an inbound file offer awaiting an
// application decision (accept with a destination path, or reject).
type IncomingFileOffered struct {
	Session      domain.SessionID
	FileID       domain.FileID
	Conversation string
	Name         string
	Size         int64
	Hash         string
}

// MessageReceived reports an inbound chat message.
type MessageReceived struct {
	Session domain.SessionID
	Message domain.Message
}

// UserInfoReceived reports an inbound presence/profile update.
type UserInfoReceived struct {
	Session  domain.SessionID
	UserInfo domain.UserInfo
}

// AvatarReceived reports an inbound avatar payload.
type AvatarReceived struct {
	Session domain.SessionID
	Avatar  domain.Avatar
}

// AckReceived reports an inbound acknowledgement of a prior request.
type AckReceived struct {
	Session domain.SessionID
	Ack     domain.Ack
}

func (StateChanged) eventMarker()        {}
func (BytesTransferred) eventMarker()    {}
func (HashReady) eventMarker()           {}
func (Closed) eventMarker()              {}
func (ProtocolError) eventMarker()       {}
func (PeerAuthFailed) eventMarker()      {}
func (FileRejected) eventMarker()        {}
func (FileAborted) eventMarker()         {}
func (IncomingFileOffered) eventMarker() {}
func (MessageReceived) eventMarker()     {}
func (UserInfoReceived) eventMarker()    {}
func (AvatarReceived) eventMarker()      {}
func (AckReceived) eventMarker()         {}

// Sink is a buffered fan-out point: the session goroutine publishes on
// it, consumers subscribe via Chan. Publish never blocks the session's
// I/O loop; when the channel is full, the oldest-pending event is
// dropped rather than stalling the session (progress events are a
// best-effort stream, not a reliable log).
type Sink struct {
	ch chan Event
}

// NewSink returns a Sink with the given buffer depth.
func NewSink(buffer int) *Sink {
	if buffer <= 0 {
		buffer = 64
	}
	return &Sink{ch: make(chan Event, buffer)}
}

// Chan exposes the read side for consumers to range/select over.
func (s *Sink) Chan() <-chan Event { return s.ch }

// Publish delivers ev, dropping the oldest queued event first if the
// buffer is full so the publisher never blocks.
func (s *Sink) Publish(ev Event) {
	select {
	case s.ch <- ev:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Close closes the underlying channel; further Publish calls panic, as
// with any closed Go channel, and are a programmer error (a session
// must stop publishing before closing its Sink).
func (s *Sink) Close() { close(s.ch) }
