package mux

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"darkspeak/internal/domain"
	"darkspeak/internal/framed"
	"darkspeak/internal/protoerr"
)

const (
	channelSize   = 4
	requestIDSize = 8
	// finalFlagSize is a mux-internal addition to the plain
	// channel || request_id || payload chunk layout. The FINAL tag
	// lives at the AEAD/framed layer and, as built in this module,
	// retires that direction's stream entirely once used (the
	// streamcrypto/secretstream semantics that package is grounded on).
	// A live session multiplexes many file channels whose lifetimes
	// don't coincide with the session's, so "this channel is done" has
	// to travel as ordinary plaintext instead of the AEAD tag; one
	// cleartext byte inside the chunk carries it.
	finalFlagSize = 1
	headerSize    = channelSize + requestIDSize + finalFlagSize
)

// ErrChannelClosed is returned by OutChannel.Send once that channel has
// already sent its final chunk.
var ErrChannelClosed = errors.New("mux: channel already closed")

// ErrUnknownChannel is wrapped in a protoerr.Error (KindProtocol) when an
// inbound chunk names a channel with no registered consumer.
var ErrUnknownChannel = errors.New("mux: unknown channel")

// Encode builds the plaintext chunk for one mux frame.
func Encode(channel domain.ChannelID, reqID domain.RequestID, final bool, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(channel))
	binary.BigEndian.PutUint64(out[4:12], uint64(reqID))
	if final {
		out[12] = 1
	}
	copy(out[headerSize:], payload)
	return out
}

// Decode splits a plaintext chunk into its channel, request id, final
// flag and payload.
func Decode(plaintext []byte) (channel domain.ChannelID, reqID domain.RequestID, final bool, payload []byte, err error) {
	if len(plaintext) < headerSize {
		return 0, 0, false, nil, fmt.Errorf("mux: chunk shorter than header (%d bytes)", len(plaintext))
	}
	channel = domain.ChannelID(binary.BigEndian.Uint32(plaintext[0:4]))
	reqID = domain.RequestID(binary.BigEndian.Uint64(plaintext[4:12]))
	final = plaintext[12] != 0
	payload = plaintext[headerSize:]
	return channel, reqID, final, payload, nil
}

// Consumer receives the payloads dispatched to one inbound channel.
// Deliver is called from the session's single read loop; implementations
// must not block it for long.
type Consumer interface {
	Deliver(reqID domain.RequestID, payload []byte, final bool)
}

type writeRequest struct {
	channel domain.ChannelID
	reqID   domain.RequestID
	final   bool
	payload []byte
	result  chan error
}

// OutChannel is the producer-side handle for one outbound logical
// channel. Sends from any number of goroutines are serialized onto the
// session's single underlying framed.Stream by the owning Multiplexer.
type OutChannel struct {
	ID     domain.ChannelID
	mux    *Multiplexer
	closed atomic.Bool
}

// Send queues payload for writing and blocks until it has actually been
// written (or ctx is done). final marks the last chunk this channel will
// ever send; subsequent Send calls then fail with ErrChannelClosed.
func (c *OutChannel) Send(ctx context.Context, reqID domain.RequestID, payload []byte, final bool) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	req := writeRequest{channel: c.ID, reqID: reqID, final: final, payload: payload, result: make(chan error, 1)}
	select {
	case c.mux.writeCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		if final && err == nil {
			c.closed.Store(true)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Multiplexer owns a session's inbound consumer registry and serializes
// every outbound write onto one framed.Stream, satisfying the
// "outbound sends are serialized per session, no channel may starve
// another indefinitely." Fairness comes from a single shared FIFO queue:
// every OutChannel competes for the same writeCh, so no channel can ever
// be skipped over by the write pump, only delayed behind chunks already
// queued ahead of it.
type Multiplexer struct {
	mu        sync.Mutex
	consumers map[domain.ChannelID]Consumer
	nextOutID uint32
	writeCh   chan writeRequest
}

// New returns an empty Multiplexer with the given outbound queue depth.
func New(queueDepth int) *Multiplexer {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Multiplexer{
		consumers: make(map[domain.ChannelID]Consumer),
		writeCh:   make(chan writeRequest, queueDepth),
	}
}

// RegisterConsumer binds id to c for inbound dispatch. Used for the fixed
// control channel (0) and for inbound file channels once a transfer is
// accepted.
func (m *Multiplexer) RegisterConsumer(id domain.ChannelID, c Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumers[id] = c
}

// UnregisterConsumer removes id's consumer, e.g. after it has received
// its final chunk.
func (m *Multiplexer) UnregisterConsumer(id domain.ChannelID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consumers, id)
}

// NewOutChannel allocates the next unused nonzero outbound channel id.
// Channel id spaces are per-direction, so this has no relation
// to ids the peer allocates for its own outbound channels.
func (m *Multiplexer) NewOutChannel() *OutChannel {
	id := domain.ChannelID(atomic.AddUint32(&m.nextOutID, 1))
	return &OutChannel{ID: id, mux: m}
}

// Control returns the fixed channel-0 outbound handle.
func (m *Multiplexer) Control() *OutChannel {
	return &OutChannel{ID: domain.ControlChannel, mux: m}
}

// dispatch delivers one decoded inbound chunk to its consumer.
func (m *Multiplexer) dispatch(channel domain.ChannelID, reqID domain.RequestID, final bool, payload []byte) error {
	m.mu.Lock()
	c, ok := m.consumers[channel]
	m.mu.Unlock()
	if !ok {
		return protoerr.New(protoerr.KindProtocol, "Dispatch", fmt.Errorf("%w: %d", ErrUnknownChannel, channel))
	}
	c.Deliver(reqID, payload, final)
	if final && channel != domain.ControlChannel {
		m.UnregisterConsumer(channel)
	}
	return nil
}

// RunWrite drains queued outbound chunks onto stream until ctx is done or
// a write fails. It is meant to run in its own goroutine for the
// lifetime of the session.
func (m *Multiplexer) RunWrite(ctx context.Context, stream *framed.Stream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-m.writeCh:
			plaintext := Encode(req.channel, req.reqID, req.final, req.payload)
			err := stream.WriteChunk(ctx, plaintext, false)
			req.result <- err
			if err != nil {
				return err
			}
		}
	}
}

// WriteSessionFinal sends the single AEAD-level FINAL chunk that retires
// the outbound direction of stream entirely (the Closing state one
// layer down, in framed.Stream).
// Callers use this once, at session teardown, after routing any pending
// per-channel writes through RunWrite.
func (m *Multiplexer) WriteSessionFinal(ctx context.Context, stream *framed.Stream) error {
	plaintext := Encode(domain.ControlChannel, 0, true, nil)
	return stream.WriteChunk(ctx, plaintext, true)
}

// RunRead decodes frames from stream and dispatches them until
// stream.ReadChunk errors or a FINAL arrives on channel 0 (the session's
// control half-close). ctx reaches ReadChunk only through its deadline;
// cancelling it does not end a blocked read, closing the connection does.
func (m *Multiplexer) RunRead(ctx context.Context, stream *framed.Stream) error {
	for {
		plaintext, _, err := stream.ReadChunk(ctx)
		if err != nil {
			return err
		}
		channel, reqID, final, payload, decErr := Decode(plaintext)
		if decErr != nil {
			return protoerr.New(protoerr.KindProtocol, "RunRead", decErr)
		}
		if err := m.dispatch(channel, reqID, final, payload); err != nil {
			return err
		}
		if final && channel == domain.ControlChannel {
			return nil
		}
	}
}
