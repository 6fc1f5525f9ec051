package framed

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"time"

	"darkspeak/internal/protoerr"
	"darkspeak/internal/streamcrypto"
)

// InState is the receiver's framing state, tracked so a caller can never
// observe a partially decoded frame.
type InState int

const (
	// Disabled means the handshake hasn't completed; no frames may be
	// read or written yet.
	Disabled InState = iota
	// ChunkSize means the next two bytes read are a frame length.
	ChunkSize
	// ChunkData means length ciphertext bytes are pending.
	ChunkData
	// Closing means a FINAL chunk has been read or written; no further
	// frames follow.
	Closing
)

const (
	lengthPrefixSize = 2
	// DefaultMaxChunkBytes is the default upper bound on a single
	// frame's length prefix, chosen to fit the u16 length field.
	DefaultMaxChunkBytes = 65507
)

var (
	// ErrDisabled is returned when ReadChunk/WriteChunk is called before
	// the stream has been enabled by a completed handshake.
	ErrDisabled = errors.New("framed: stream not yet enabled")
	// ErrClosing is returned when ReadChunk/WriteChunk is called after a
	// FINAL chunk has already been read or written.
	ErrClosing = errors.New("framed: stream already closing")
	// ErrOversizeChunk is returned when a received length prefix exceeds
	// MaxChunkBytes.
	ErrOversizeChunk = errors.New("framed: chunk length exceeds configured maximum")
	// ErrUndersizeChunk is returned when a received length prefix is too
	// small to hold the AEAD overhead.
	ErrUndersizeChunk = errors.New("framed: chunk length smaller than minimum overhead")
)

// Stream is one direction-paired encrypted channel over a raw net.Conn:
// a PushState for outbound frames, a PullState for inbound frames, and
// the InState machine gating both.
type Stream struct {
	conn net.Conn

	push *streamcrypto.PushState
	pull *streamcrypto.PullState

	state         InState
	maxChunkBytes int
}

// New wraps conn with the given seeded AEAD states. The stream starts
// Disabled; call Enable once the handshake that produced push/pull has
// fully completed. maxChunkBytes <= 0 selects DefaultMaxChunkBytes; a
// value above what the u16 length field can hold is lowered to that limit.
func New(conn net.Conn, push *streamcrypto.PushState, pull *streamcrypto.PullState, maxChunkBytes int) *Stream {
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}
	if maxChunkBytes > math.MaxUint16 {
		maxChunkBytes = math.MaxUint16
	}
	return &Stream{conn: conn, push: push, pull: pull, state: Disabled, maxChunkBytes: maxChunkBytes}
}

// Enable transitions the stream from Disabled to ChunkSize, the state it
// stays in between frames.
func (s *Stream) Enable() {
	s.state = ChunkSize
}

// State returns the stream's current InState, mostly for logging/tests.
func (s *Stream) State() InState {
	return s.state
}

// WriteChunk encrypts payload and writes one frame. final marks the last
// chunk of the stream; subsequent writes fail with ErrClosing.
func (s *Stream) WriteChunk(ctx context.Context, payload []byte, final bool) error {
	if s.state == Disabled {
		return protoerr.New(protoerr.KindProtocol, "WriteChunk", ErrDisabled)
	}
	if s.state == Closing {
		return protoerr.New(protoerr.KindProtocol, "WriteChunk", ErrClosing)
	}

	tag := streamcrypto.TagMessage
	if final {
		tag = streamcrypto.TagFinal
	}
	ciphertext, err := s.push.Push(payload, tag)
	if err != nil {
		return protoerr.New(protoerr.KindProtocol, "WriteChunk", err)
	}
	if len(ciphertext) > s.maxChunkBytes {
		return protoerr.New(protoerr.KindProtocol, "WriteChunk", ErrOversizeChunk)
	}

	frame := make([]byte, lengthPrefixSize+len(ciphertext))
	binary.BigEndian.PutUint16(frame[:lengthPrefixSize], uint16(len(ciphertext)))
	copy(frame[lengthPrefixSize:], ciphertext)

	if err := writeAll(ctx, s.conn, frame); err != nil {
		return protoerr.New(protoerr.KindTransport, "WriteChunk", err)
	}
	if final {
		s.state = Closing
	}
	return nil
}

// ReadChunk reads and decrypts one frame, returning its plaintext and
// whether it was the stream's FINAL chunk.
func (s *Stream) ReadChunk(ctx context.Context) (payload []byte, final bool, err error) {
	if s.state == Disabled {
		return nil, false, protoerr.New(protoerr.KindProtocol, "ReadChunk", ErrDisabled)
	}
	if s.state == Closing {
		return nil, false, protoerr.New(protoerr.KindProtocol, "ReadChunk", ErrClosing)
	}

	var lenBuf [lengthPrefixSize]byte
	if err := readExact(ctx, s.conn, lenBuf[:]); err != nil {
		return nil, false, protoerr.New(protoerr.KindTransport, "ReadChunk", err)
	}
	length := int(binary.BigEndian.Uint16(lenBuf[:]))

	if length > s.maxChunkBytes {
		return nil, false, protoerr.New(protoerr.KindProtocol, "ReadChunk", ErrOversizeChunk)
	}
	if length < streamcrypto.Overhead {
		return nil, false, protoerr.New(protoerr.KindProtocol, "ReadChunk", ErrUndersizeChunk)
	}

	ciphertext := make([]byte, length)
	if err := readExact(ctx, s.conn, ciphertext); err != nil {
		return nil, false, protoerr.New(protoerr.KindTransport, "ReadChunk", err)
	}

	plaintext, tag, err := s.pull.Pull(ciphertext)
	if err != nil {
		return nil, false, protoerr.New(protoerr.KindProtocol, "ReadChunk", err)
	}

	final = tag == streamcrypto.TagFinal
	if final {
		s.state = Closing
	}
	return plaintext, final, nil
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

func readExact(ctx context.Context, conn net.Conn, buf []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}
	_, err := io.ReadFull(conn, buf)
	return err
}

func writeAll(ctx context.Context, conn net.Conn, buf []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(buf)
	return err
}
