package control

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"darkspeak/internal/domain"
	"darkspeak/internal/mux"
)

// Sender emits control-channel envelopes, stamping each with this
// session's next monotonically increasing request id, strictly
// increasing from 1. A file Receiver sends its completion Ack from the
// multiplexer's read goroutine while the session goroutine sends
// everything else, so id allocation is atomic rather than guarded by
// the caller.
type Sender struct {
	out    *mux.OutChannel
	nextID atomic.Uint64
}

// NewSender wraps the control OutChannel of a session's Multiplexer.
func NewSender(out *mux.OutChannel) *Sender {
	return &Sender{out: out}
}

func (s *Sender) allocID() domain.RequestID {
	return domain.RequestID(s.nextID.Add(1))
}

func (s *Sender) send(ctx context.Context, env domain.Envelope) (domain.RequestID, error) {
	id := s.allocID()
	raw, err := json.Marshal(env)
	if err != nil {
		return id, fmt.Errorf("control: marshal %s: %w", env.Type, err)
	}
	if err := s.out.Send(ctx, id, raw, false); err != nil {
		return id, err
	}
	return id, nil
}

// SendMessage emits a chat Message.
func (s *Sender) SendMessage(ctx context.Context, m domain.Message) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeMessage, Message: &m})
}

// SendUserInfo emits a presence/profile update.
func (s *Sender) SendUserInfo(ctx context.Context, u domain.UserInfo) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeUserInfo, UserInfo: &u})
}

// SendAvatar emits a full avatar payload.
func (s *Sender) SendAvatar(ctx context.Context, a domain.Avatar) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeAvatar, Avatar: &a})
}

// SendAck acknowledges a prior request id.
func (s *Sender) SendAck(ctx context.Context, a domain.Ack) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeAck, Ack: &a})
}

// SendIncomingFile offers a file transfer.
func (s *Sender) SendIncomingFile(ctx context.Context, f domain.IncomingFile) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeIncomingFile, IncomingFile: &f})
}

// SendAcceptFile authorizes an offered transfer.
func (s *Sender) SendAcceptFile(ctx context.Context, a domain.AcceptFile) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeAcceptFile, AcceptFile: &a})
}

// SendRejectFile declines an unstarted offer.
func (s *Sender) SendRejectFile(ctx context.Context, r domain.RejectFile) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeRejectFile, RejectFile: &r})
}

// SendAbortFile aborts an in-progress transfer.
func (s *Sender) SendAbortFile(ctx context.Context, a domain.AbortFile) (domain.RequestID, error) {
	return s.send(ctx, domain.Envelope{Type: domain.TypeAbortFile, AbortFile: &a})
}

// Handlers are the callbacks a Receiver dispatches decoded envelopes to.
// Any field left nil silently drops that message type; the peer session
// controller supplies all of them.
type Handlers struct {
	OnMessage      func(reqID domain.RequestID, m domain.Message)
	OnUserInfo     func(reqID domain.RequestID, u domain.UserInfo)
	OnAvatar       func(reqID domain.RequestID, a domain.Avatar)
	OnAck          func(reqID domain.RequestID, a domain.Ack)
	OnIncomingFile func(reqID domain.RequestID, f domain.IncomingFile)
	OnAcceptFile   func(reqID domain.RequestID, a domain.AcceptFile)
	OnRejectFile   func(reqID domain.RequestID, r domain.RejectFile)
	OnAbortFile    func(reqID domain.RequestID, a domain.AbortFile)
}

// Receiver implements mux.Consumer for channel 0: it decodes each
// payload as an Envelope and dispatches by Type. Unknown types are
// logged and dropped, for forward-compatibility with future message types.
type Receiver struct {
	h   Handlers
	log zerolog.Logger
}

// NewReceiver returns a Receiver that dispatches to h, logging through
// log.
func NewReceiver(h Handlers, log zerolog.Logger) *Receiver {
	return &Receiver{h: h, log: log}
}

// Deliver implements mux.Consumer.
func (r *Receiver) Deliver(reqID domain.RequestID, payload []byte, _ bool) {
	var env domain.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.log.Warn().Err(err).Msg("control: dropping malformed envelope")
		return
	}
	switch env.Type {
	case domain.TypeMessage:
		if env.Message != nil && r.h.OnMessage != nil {
			r.h.OnMessage(reqID, *env.Message)
		}
	case domain.TypeUserInfo:
		if env.UserInfo != nil && r.h.OnUserInfo != nil {
			r.h.OnUserInfo(reqID, *env.UserInfo)
		}
	case domain.TypeAvatar:
		if env.Avatar != nil && r.h.OnAvatar != nil {
			r.h.OnAvatar(reqID, *env.Avatar)
		}
	case domain.TypeAck:
		if env.Ack != nil && r.h.OnAck != nil {
			r.h.OnAck(reqID, *env.Ack)
		}
	case domain.TypeIncomingFile:
		if env.IncomingFile != nil && r.h.OnIncomingFile != nil {
			r.h.OnIncomingFile(reqID, *env.IncomingFile)
		}
	case domain.TypeAcceptFile:
		if env.AcceptFile != nil && r.h.OnAcceptFile != nil {
			r.h.OnAcceptFile(reqID, *env.AcceptFile)
		}
	case domain.TypeRejectFile:
		if env.RejectFile != nil && r.h.OnRejectFile != nil {
			r.h.OnRejectFile(reqID, *env.RejectFile)
		}
	case domain.TypeAbortFile:
		if env.AbortFile != nil && r.h.OnAbortFile != nil {
			r.h.OnAbortFile(reqID, *env.AbortFile)
		}
	default:
		r.log.Warn().Str("type", string(env.Type)).Msg("control: ignoring unknown message type")
	}
}

var _ mux.Consumer = (*Receiver)(nil)
