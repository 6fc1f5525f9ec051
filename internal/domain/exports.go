package domain

import (
	interfaces "darkspeak/internal/domain/interfaces"
	types "darkspeak/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	OnionAddress      = types.OnionAddress
	Fingerprint       = types.Fingerprint
	RequestID         = types.RequestID
	ChannelID         = types.ChannelID
	Ed25519Public     = types.Ed25519Public
	Ed25519Private    = types.Ed25519Private
	Identity          = types.Identity
	ConnectData       = types.ConnectData
	Direction         = types.Direction
	FileState         = types.FileState
	FileID            = types.FileID
	File              = types.File
	SessionState      = types.SessionState
	HandshakeSubstate = types.HandshakeSubstate
	SessionID         = types.SessionID
	AckStatus         = types.AckStatus
	MessageType       = types.MessageType
	Message           = types.Message
	UserInfo          = types.UserInfo
	Avatar            = types.Avatar
	Ack               = types.Ack
	IncomingFile      = types.IncomingFile
	AcceptFile        = types.AcceptFile
	RejectFile        = types.RejectFile
	AbortFile         = types.AbortFile
	Envelope          = types.Envelope
)

// Value aliases expose enum-like constants from the types subpackage.
const (
	Outgoing = types.Outgoing
	Incoming = types.Incoming

	FileWaiting      = types.FileWaiting
	FileTransferring = types.FileTransferring
	FileDone         = types.FileDone
	FileFailed       = types.FileFailed
	FileRejected     = types.FileRejected

	StateDialing       = types.StateDialing
	StateHandshaking   = types.StateHandshaking
	StateConnected     = types.StateConnected
	StateReconnectWait = types.StateReconnectWait
	StateClosing       = types.StateClosing
	StateClosed        = types.StateClosed

	SubstateConnected       = types.SubstateConnected
	SubstateGetOlleh        = types.SubstateGetOlleh
	SubstateEncryptedStream = types.SubstateEncryptedStream

	ControlChannel = types.ControlChannel

	AckOK       = types.AckOK
	AckError    = types.AckError
	AckRejected = types.AckRejected

	TypeMessage      = types.TypeMessage
	TypeUserInfo     = types.TypeUserInfo
	TypeAvatar       = types.TypeAvatar
	TypeAck          = types.TypeAck
	TypeIncomingFile = types.TypeIncomingFile
	TypeAcceptFile   = types.TypeAcceptFile
	TypeRejectFile   = types.TypeRejectFile
	TypeAbortFile    = types.TypeAbortFile
)

// NewConnectData re-exports the types-subpackage constructor.
var NewConnectData = types.NewConnectData

// NewSessionID re-exports the types-subpackage constructor.
var NewSessionID = types.NewSessionID

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore = interfaces.IdentityStore
	FileStore     = interfaces.FileStore
	Dialer        = interfaces.Dialer
)
