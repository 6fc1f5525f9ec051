package filexfer

import (
	"context"
	"io"
	"os"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/mux"
	"darkspeak/internal/protoerr"
	"darkspeak/internal/streamcrypto"
)

// DefaultChunkBytes is the read/write granularity for file transfers
// (the file_io_chunk_bytes tunable).
const DefaultChunkBytes = 16384

// AckSender is the subset of control.Sender a Receiver needs to
// acknowledge completion or failure, kept as an interface so this
// package has no dependency on internal/control.
type AckSender interface {
	SendAck(ctx context.Context, a domain.Ack) (domain.RequestID, error)
}

// HashFile computes the hex SHA-256 digest of the file at path.
// peer.Session.OfferFile runs it through internal/workerpool; Receiver
// calls it directly from Deliver once the final chunk has arrived.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", protoerr.New(protoerr.KindFileIO, "HashFile", err)
	}
	defer f.Close()

	h := streamcrypto.NewFileHasher()
	if _, err := io.Copy(h, f); err != nil {
		return "", protoerr.New(protoerr.KindFileIO, "HashFile", err)
	}
	return h.SumHex(), nil
}

// Sender streams one local file on a freshly allocated outbound channel,
// seeking to the negotiated offset before its first chunk (the
// Transmit).
type Sender struct {
	out        *mux.OutChannel
	store      domain.FileStore
	sink       *events.Sink
	sessionID  domain.SessionID
	fileID     domain.FileID
	path       string
	size       int64
	chunkBytes int
}

// NewSender builds a Sender for fileID, whose local content lives at
// path and is chunkBytes bytes per frame (DefaultChunkBytes if <= 0).
func NewSender(out *mux.OutChannel, store domain.FileStore, sink *events.Sink, sessionID domain.SessionID, fileID domain.FileID, path string, size int64, chunkBytes int) *Sender {
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	return &Sender{out: out, store: store, sink: sink, sessionID: sessionID, fileID: fileID, path: path, size: size, chunkBytes: chunkBytes}
}

// Run seeks to offset and streams the remainder of the file, marking the
// last chunk FINAL. It blocks until the transfer completes or ctx is
// done; callers run it on its own goroutine.
func (s *Sender) Run(ctx context.Context, offset int64) error {
	f, err := os.Open(s.path)
	if err != nil {
		return protoerr.New(protoerr.KindFileIO, "Sender.Run", err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return protoerr.New(protoerr.KindFileIO, "Sender.Run", err)
		}
	}

	remaining := s.size - offset
	sent := offset
	buf := make([]byte, s.chunkBytes)

	if remaining <= 0 {
		// Empty (or already-complete) file: one empty FINAL chunk closes
		// the channel and tells the receiver there is nothing more.
		return s.emit(ctx, nil, true, sent)
	}

	for remaining > 0 {
		toRead := int64(len(buf))
		if toRead > remaining {
			toRead = remaining
		}
		n, err := io.ReadFull(f, buf[:toRead])
		if err != nil && err != io.ErrUnexpectedEOF {
			return protoerr.New(protoerr.KindFileIO, "Sender.Run", err)
		}
		sent += int64(n)
		remaining -= int64(n)
		final := remaining == 0
		if err := s.emit(ctx, buf[:n], final, sent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) emit(ctx context.Context, chunk []byte, final bool, sent int64) error {
	if err := s.out.Send(ctx, 0, chunk, final); err != nil {
		return protoerr.New(protoerr.KindTransport, "Sender.Run", err)
	}
	if s.store != nil {
		_ = s.store.UpdateFile(ctx, s.fileID, func(f *domain.File) error {
			f.BytesTransferred = sent
			if final {
				f.State = domain.FileDone
			}
			return nil
		})
	}
	if s.sink != nil {
		s.sink.Publish(events.BytesTransferred{Session: s.sessionID, FileID: s.fileID, Offset: sent, Size: s.size})
	}
	return nil
}

// Receiver implements mux.Consumer for one inbound file channel,
// persisting chunks to dest at the negotiated offset and verifying the
// full-content hash once the FINAL chunk arrives.
type Receiver struct {
	store      domain.FileStore
	ack        AckSender
	sink       *events.Sink
	sessionID  domain.SessionID
	fileID     domain.FileID
	expectHash string
	size       int64
	pos        int64
	file       *os.File
	hashFn     func(string) (string, error)
}

// NewReceiver opens dest for writing (creating it if necessary) and
// returns a Receiver starting at offset. ack is used to report the
// completion status back to the sender; it is typically a
// *control.Sender.
func NewReceiver(store domain.FileStore, ack AckSender, sink *events.Sink, sessionID domain.SessionID, fileID domain.FileID, dest string, offset, size int64, expectHash string) (*Receiver, error) {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, protoerr.New(protoerr.KindFileIO, "NewReceiver", err)
	}
	return &Receiver{
		store: store, ack: ack, sink: sink, sessionID: sessionID, fileID: fileID,
		expectHash: expectHash, size: size, pos: offset, file: f, hashFn: HashFile,
	}, nil
}

// Deliver implements mux.Consumer. It is called sequentially by the
// session's single read loop, so no internal locking is needed.
func (r *Receiver) Deliver(reqID domain.RequestID, payload []byte, final bool) {
	ctx := context.Background()
	if len(payload) > 0 {
		if _, err := r.file.WriteAt(payload, r.pos); err != nil {
			r.fail(ctx, reqID, protoerr.New(protoerr.KindFileIO, "Deliver", err))
			return
		}
		r.pos += int64(len(payload))
		if r.store != nil {
			_ = r.store.UpdateFile(ctx, r.fileID, func(f *domain.File) error {
				f.BytesTransferred = r.pos
				return nil
			})
		}
		if r.sink != nil {
			r.sink.Publish(events.BytesTransferred{Session: r.sessionID, FileID: r.fileID, Offset: r.pos, Size: r.size})
		}
	}
	if final {
		r.finish(ctx, reqID)
	}
}

func (r *Receiver) finish(ctx context.Context, reqID domain.RequestID) {
	path := r.file.Name()
	if err := r.file.Close(); err != nil {
		r.fail(ctx, reqID, protoerr.New(protoerr.KindFileIO, "finish", err))
		return
	}

	hash, err := r.hashFn(path)
	if err != nil {
		r.fail(ctx, reqID, err)
		return
	}
	if r.sink != nil {
		r.sink.Publish(events.HashReady{FileID: r.fileID, Hash: hash})
	}

	if hash != r.expectHash {
		r.setState(ctx, domain.FileFailed)
		r.sendAck(ctx, reqID, domain.AckRejected, "hash-mismatch")
		if r.sink != nil {
			r.sink.Publish(events.ProtocolError{Session: r.sessionID, Err: protoerr.New(protoerr.KindHashMismatch, "finish", protoerr.HashMismatch)})
		}
		return
	}
	r.setState(ctx, domain.FileDone)
	r.sendAck(ctx, reqID, domain.AckOK, "")
}

func (r *Receiver) fail(ctx context.Context, reqID domain.RequestID, err error) {
	r.setState(ctx, domain.FileFailed)
	r.sendAck(ctx, reqID, domain.AckError, err.Error())
	if r.sink != nil {
		r.sink.Publish(events.ProtocolError{Session: r.sessionID, Err: err})
	}
}

func (r *Receiver) setState(ctx context.Context, state domain.FileState) {
	if r.store == nil {
		return
	}
	_ = r.store.UpdateFile(ctx, r.fileID, func(f *domain.File) error {
		f.State = state
		f.BytesTransferred = r.pos
		return nil
	})
}

func (r *Receiver) sendAck(ctx context.Context, reqID domain.RequestID, status domain.AckStatus, reason string) {
	if r.ack == nil {
		return
	}
	data := map[string]interface{}{"file_id": string(r.fileID)}
	if reason != "" {
		data["reason"] = reason
	}
	_, _ = r.ack.SendAck(ctx, domain.Ack{RefID: reqID, Status: status, Data: data})
}

// Close releases the destination file handle. Used when a session
// disconnects mid-transfer; the File record's bytesTransferred in the
// store is the durable resume point, not this handle.
func (r *Receiver) Close() error {
	return r.file.Close()
}

var _ mux.Consumer = (*Receiver)(nil)
