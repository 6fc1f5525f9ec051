package protoerr

import "fmt"

// Kind classifies a session-level failure for recovery-policy decisions.
type Kind string

const (
	// KindProtocol marks a violation of the wire format (bad length,
	// bad tag, malformed envelope). Recovery: close the connection.
	KindProtocol Kind = "protocol"
	// KindAuth marks a handshake or signature verification failure.
	// Recovery: close the connection, do not retry the same peer
	// identity automatically.
	KindAuth Kind = "auth"
	// KindTransport marks a lost or refused underlying connection.
	// Recovery: reconnect per the session's backoff policy.
	KindTransport Kind = "transport"
	// KindTimeout marks a deadline exceeded waiting for a peer.
	// Recovery: reconnect per the session's backoff policy.
	KindTimeout Kind = "timeout"
	// KindFileIO marks a local filesystem failure while reading or
	// writing transfer data. Recovery: fail the transfer, session
	// continues.
	KindFileIO Kind = "fileio"
	// KindHashMismatch marks a completed transfer whose content hash
	// doesn't match the offered hash. Recovery: fail the transfer,
	// session continues.
	KindHashMismatch Kind = "hash_mismatch"
	// KindRejected marks a file transfer the remote peer declined.
	// Recovery: no-op, this is a normal outcome.
	KindRejected Kind = "rejected_by_user"
)

// Error is a typed, wrapped error tagged with a Kind so callers can
// branch on failure class with errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, protoerr.Protocol) style checks against the
// zero-valued sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels usable with errors.Is to test only the Kind, ignoring Op/Err.
var (
	Protocol     = &Error{Kind: KindProtocol}
	Auth         = &Error{Kind: KindAuth}
	Transport    = &Error{Kind: KindTransport}
	Timeout      = &Error{Kind: KindTimeout}
	FileIO       = &Error{Kind: KindFileIO}
	HashMismatch = &Error{Kind: KindHashMismatch}
	Rejected     = &Error{Kind: KindRejected}
)
