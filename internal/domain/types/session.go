package types

import "github.com/google/uuid"

// SessionState is the top-level peer session state machine.
type SessionState int

const (
	StateDialing SessionState = iota
	StateHandshaking
	StateConnected
	StateReconnectWait
	StateClosing
	StateClosed
)

// String implements fmt.Stringer for log messages.
func (s SessionState) String() string {
	switch s {
	case StateDialing:
		return "dialing"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateReconnectWait:
		return "reconnect_wait"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// HandshakeSubstate tracks progress through the HELLO/OLLEH exchange,
// named after the original protocol's DsClient::State.
type HandshakeSubstate int

const (
	SubstateConnected HandshakeSubstate = iota
	SubstateGetOlleh
	SubstateEncryptedStream
)

// SessionID is a UUID used for logging/UI correlation.
type SessionID uuid.UUID

// String returns the canonical UUID string form.
func (id SessionID) String() string { return uuid.UUID(id).String() }

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }
