package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"darkspeak/internal/control"
	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/filexfer"
	"darkspeak/internal/framed"
	"darkspeak/internal/handshake"
	"darkspeak/internal/mux"
	"darkspeak/internal/protoerr"
	"darkspeak/internal/streamcrypto"
	"darkspeak/internal/workerpool"
)

// Config holds the peer session's tunables (reconnect budget, timeouts,
// chunk sizes), plus
// the chunk sizes that flow into framed.Stream and filexfer.
type Config struct {
	MaxReconnects    int
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	MaxChunkBytes    int
	FileIOChunkBytes int
}

// DefaultConfig returns the baseline production tunables.
func DefaultConfig() Config {
	return Config{
		MaxReconnects:    20,
		ReconnectDelay:   20 * time.Second,
		HandshakeTimeout: 30 * time.Second,
		MaxChunkBytes:    framed.DefaultMaxChunkBytes,
		FileIOChunkBytes: filexfer.DefaultChunkBytes,
	}
}

var errSessionClosed = errors.New("peer: session closed")

// sessionCmd is one unit of work handed to the session's owning
// goroutine; fn runs with exclusive access to Session's mutable fields.
type sessionCmd struct {
	fn   func(s *Session) error
	done chan error
}

// Session is the top-level per-peer state machine:
// Dialing/Handshaking → Connected → {ReconnectWait, Closing} → Closed.
// Every field below is touched only from the goroutine running Run; all
// other access goes through enqueue or the inbound channel.
type Session struct {
	id        domain.SessionID
	direction domain.Direction
	cfg       Config
	store     domain.FileStore
	pool      *workerpool.Pool
	sink      *events.Sink
	log       zerolog.Logger

	dialer         domain.Dialer
	cd             domain.ConnectData
	localIdentity  domain.Identity
	expectedClient *domain.Ed25519Public
	acceptedConn   net.Conn

	state     domain.SessionState
	stateMu   sync.RWMutex
	reconnect int

	cmds      chan sessionCmd
	inbound   chan func(*Session)
	closeReq  chan struct{}
	closeOnce sync.Once

	conn  net.Conn
	mplex *mux.Multiplexer
	ctrl  *control.Sender

	offerChannels   map[domain.FileID]*mux.OutChannel
	inboundOffers   map[domain.FileID]domain.ChannelID
	activeReceivers map[domain.FileID]*filexfer.Receiver
}

func newSession(direction domain.Direction, cfg Config, store domain.FileStore, pool *workerpool.Pool, log zerolog.Logger) *Session {
	id := domain.NewSessionID()
	return &Session{
		id:              id,
		direction:       direction,
		cfg:             cfg,
		store:           store,
		pool:            pool,
		sink:            events.NewSink(64),
		log:             log.With().Str("session", id.String()).Logger(),
		state:           domain.StateDialing,
		cmds:            make(chan sessionCmd),
		inbound:         make(chan func(*Session), 64),
		closeReq:        make(chan struct{}),
		offerChannels:   make(map[domain.FileID]*mux.OutChannel),
		inboundOffers:   make(map[domain.FileID]domain.ChannelID),
		activeReceivers: make(map[domain.FileID]*filexfer.Receiver),
	}
}

// NewOutbound returns a Session that dials cd.RemoteAddress via dialer
// once Run is started. cd.ExpectedRemote must be set: the OLLEH wire
// format carries no server public key, so a dialing session has no way
// to learn the remote identity except out-of-band.
func NewOutbound(cd domain.ConnectData, dialer domain.Dialer, cfg Config, store domain.FileStore, pool *workerpool.Pool, log zerolog.Logger) (*Session, error) {
	if cd.ExpectedRemote == nil {
		return nil, protoerr.New(protoerr.KindAuth, "NewOutbound", errors.New("peer: ConnectData.ExpectedRemote must be set to dial"))
	}
	s := newSession(domain.Outgoing, cfg, store, pool, log)
	s.dialer = dialer
	s.cd = cd
	return s, nil
}

// NewInbound returns a Session that takes ownership of an already
// accepted conn and runs the server side of the handshake against
// localIdentity. expectedClient pins the required peer pubkey; nil
// accepts any client identity.
func NewInbound(conn net.Conn, localIdentity domain.Identity, expectedClient *domain.Ed25519Public, cfg Config, store domain.FileStore, pool *workerpool.Pool, log zerolog.Logger) *Session {
	s := newSession(domain.Incoming, cfg, store, pool, log)
	s.acceptedConn = conn
	s.localIdentity = localIdentity
	s.expectedClient = expectedClient
	return s
}

// ID returns this session's UUID.
func (s *Session) ID() domain.SessionID { return s.id }

// State returns the current state machine state.
func (s *Session) State() domain.SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(to domain.SessionState) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()
	if from != to {
		s.log.Info().Stringer("from", from).Stringer("to", to).Msg("session state transition")
		s.sink.Publish(events.StateChanged{Session: s.id, From: from, To: to})
	}
}

// Events exposes the session's notification stream. The session never
// calls back into application code directly.
func (s *Session) Events() <-chan events.Event { return s.sink.Chan() }

// Run drives the state machine until the session closes or ctx is done.
// It must be called on its own goroutine; all of a Session's other
// methods communicate with it by enqueuing work rather than touching its
// fields directly.
func (s *Session) Run(ctx context.Context) error {
	defer s.sink.Close()
	for {
		switch s.State() {
		case domain.StateDialing:
			conn, err := s.doDial(ctx)
			if err != nil {
				if s.direction == domain.Incoming {
					s.setState(domain.StateClosing)
					continue
				}
				if !s.bumpReconnect() {
					s.setState(domain.StateClosing)
					continue
				}
				s.setState(domain.StateReconnectWait)
				continue
			}
			s.conn = conn
			s.setState(domain.StateHandshaking)

		case domain.StateHandshaking:
			push, pull, err := s.doHandshake(ctx)
			if err != nil {
				s.sink.Publish(events.PeerAuthFailed{Session: s.id, Err: err})
				s.setState(domain.StateClosing)
				continue
			}
			stream := framed.New(s.conn, push, pull, s.cfg.MaxChunkBytes)
			stream.Enable()
			s.mplex = mux.New(64)
			s.ctrl = control.NewSender(s.mplex.Control())
			s.setState(domain.StateConnected)
			err = s.runConnected(ctx, stream)
			_ = s.conn.Close()
			if err == nil {
				s.setState(domain.StateClosing)
				continue
			}
			if s.direction == domain.Outgoing && (errors.Is(err, protoerr.Transport) || errors.Is(err, protoerr.Timeout)) {
				if s.bumpReconnect() {
					s.setState(domain.StateReconnectWait)
					continue
				}
			}
			s.setState(domain.StateClosing)

		case domain.StateReconnectWait:
			select {
			case <-time.After(s.cfg.ReconnectDelay):
				s.setState(domain.StateDialing)
			case <-ctx.Done():
				s.setState(domain.StateClosing)
			case <-s.closeReq:
				s.setState(domain.StateClosing)
			}

		case domain.StateClosing:
			s.doClose()
			s.setState(domain.StateClosed)

		case domain.StateClosed:
			s.sink.Publish(events.Closed{Session: s.id})
			return nil
		}
	}
}

func (s *Session) bumpReconnect() bool {
	s.reconnect++
	return s.reconnect <= s.cfg.MaxReconnects
}

func (s *Session) doDial(ctx context.Context) (net.Conn, error) {
	if s.direction == domain.Incoming {
		if s.acceptedConn == nil {
			return nil, protoerr.New(protoerr.KindTransport, "doDial", errors.New("peer: inbound session has no accepted connection"))
		}
		conn := s.acceptedConn
		s.acceptedConn = nil
		return conn, nil
	}
	conn, err := s.dialer.Dial(ctx, s.cd.RemoteAddress)
	if err != nil {
		return nil, protoerr.New(protoerr.KindTransport, "doDial", err)
	}
	return conn, nil
}

// doHandshake runs the HELLO/OLLEH exchange and returns the seeded
// push/pull AEAD states for this session's direction.
func (s *Session) doHandshake(ctx context.Context) (*streamcrypto.PushState, *streamcrypto.PullState, error) {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	if s.direction == domain.Outgoing {
		return s.handshakeOutbound(hctx)
	}
	return s.handshakeInbound(hctx)
}

func (s *Session) handshakeOutbound(ctx context.Context) (*streamcrypto.PushState, *streamcrypto.PullState, error) {
	hello, push, err := handshake.BuildHello(s.cd.Local, *s.cd.ExpectedRemote)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindAuth, "handshakeOutbound", err)
	}
	if err := writeDeadlined(ctx, s.conn, hello.MarshalBinary()); err != nil {
		return nil, nil, protoerr.New(protoerr.KindTransport, "handshakeOutbound", err)
	}

	raw, err := readDeadlined(ctx, s.conn, handshake.OllehSize)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindTransport, "handshakeOutbound", err)
	}
	_, pull, err := handshake.VerifyOlleh(raw, *s.cd.ExpectedRemote, s.cd.Local.Public)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindAuth, "handshakeOutbound", err)
	}
	return push, pull, nil
}

func (s *Session) handshakeInbound(ctx context.Context) (*streamcrypto.PushState, *streamcrypto.PullState, error) {
	raw, err := readDeadlined(ctx, s.conn, handshake.HelloSize)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindTransport, "handshakeInbound", err)
	}
	hello, pull, err := handshake.VerifyHello(raw, s.localIdentity.Public, s.expectedClient)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindAuth, "handshakeInbound", err)
	}

	olleh, push, err := handshake.BuildOlleh(s.localIdentity, hello.ClientPub)
	if err != nil {
		return nil, nil, protoerr.New(protoerr.KindAuth, "handshakeInbound", err)
	}
	if err := writeDeadlined(ctx, s.conn, olleh.MarshalBinary()); err != nil {
		return nil, nil, protoerr.New(protoerr.KindTransport, "handshakeInbound", err)
	}
	return push, pull, nil
}

func writeDeadlined(ctx context.Context, conn net.Conn, buf []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	_, err := conn.Write(buf)
	return err
}

func readDeadlined(ctx context.Context, conn net.Conn, n int) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// runConnected wires the multiplexer and control protocol onto stream
// and services commands/inbound events/transport errors until one of
// them ends the connection.
func (s *Session) runConnected(ctx context.Context, stream *framed.Stream) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel ids belong to one connection, so each connection starts
	// with empty tables; they stay filled after it ends so that doClose
	// can still see which transfers were in flight.
	s.activeReceivers = make(map[domain.FileID]*filexfer.Receiver)
	s.offerChannels = make(map[domain.FileID]*mux.OutChannel)
	s.inboundOffers = make(map[domain.FileID]domain.ChannelID)

	recv := control.NewReceiver(s.controlHandlers(cctx), s.log)
	s.mplex.RegisterConsumer(domain.ControlChannel, recv)

	writeErr := make(chan error, 1)
	readErr := make(chan error, 1)
	go func() { writeErr <- s.mplex.RunWrite(cctx, stream) }()
	go func() { readErr <- s.mplex.RunRead(cctx, stream) }()

	// Re-offers wait until they are written, so the write pump must
	// already be running.
	s.resumeOutgoingTransfers(cctx)

	defer func() {
		for _, recv := range s.activeReceivers {
			_ = recv.Close()
		}
	}()

	for {
		select {
		case cmd := <-s.cmds:
			cmd.done <- cmd.fn(s)

		case fn := <-s.inbound:
			fn(s)

		case err := <-writeErr:
			if err == nil {
				return nil
			}
			return err

		case err := <-readErr:
			if err == nil {
				return nil
			}
			return err

		case <-s.closeReq:
			return nil

		case <-ctx.Done():
			return protoerr.New(protoerr.KindTimeout, "runConnected", ctx.Err())
		}
	}
}

// controlHandlers builds the control.Handlers that dispatch decoded
// envelopes back into this session. Deliver runs on the mux's read
// goroutine, so every handler just forwards a closure onto s.inbound;
// the closure itself runs on the Run goroutine and may freely touch
// Session state.
func (s *Session) controlHandlers(ctx context.Context) control.Handlers {
	forward := func(fn func(s *Session)) {
		select {
		case s.inbound <- fn:
		case <-s.closeReq:
		case <-ctx.Done():
		}
	}
	return control.Handlers{
		OnMessage: func(reqID domain.RequestID, m domain.Message) {
			forward(func(s *Session) {
				s.sink.Publish(events.MessageReceived{Session: s.id, Message: m})
				_, _ = s.ctrl.SendAck(ctx, domain.Ack{RefID: reqID, Status: domain.AckOK})
			})
		},
		OnUserInfo: func(reqID domain.RequestID, u domain.UserInfo) {
			forward(func(s *Session) {
				s.sink.Publish(events.UserInfoReceived{Session: s.id, UserInfo: u})
				_, _ = s.ctrl.SendAck(ctx, domain.Ack{RefID: reqID, Status: domain.AckOK})
			})
		},
		OnAvatar: func(reqID domain.RequestID, a domain.Avatar) {
			forward(func(s *Session) {
				s.sink.Publish(events.AvatarReceived{Session: s.id, Avatar: a})
				_, _ = s.ctrl.SendAck(ctx, domain.Ack{RefID: reqID, Status: domain.AckOK})
			})
		},
		OnAck: func(_ domain.RequestID, a domain.Ack) {
			forward(func(s *Session) { s.sink.Publish(events.AckReceived{Session: s.id, Ack: a}) })
		},
		OnIncomingFile: func(_ domain.RequestID, f domain.IncomingFile) {
			forward(func(s *Session) { s.processIncomingFile(ctx, f) })
		},
		OnAcceptFile: func(_ domain.RequestID, a domain.AcceptFile) {
			forward(func(s *Session) { s.processAcceptFile(ctx, a) })
		},
		OnRejectFile: func(_ domain.RequestID, r domain.RejectFile) {
			forward(func(s *Session) { s.processRejectFile(ctx, r) })
		},
		OnAbortFile: func(_ domain.RequestID, a domain.AbortFile) {
			forward(func(s *Session) { s.processAbortFile(ctx, a) })
		},
	}
}

// processIncomingFile handles a peer's file offer. If a record for
// fileID already exists in TRANSFERRING state, this is a post-reconnect
// re-offer and is auto-accepted at the existing byte offset (this is
// Resumption); otherwise it is a fresh offer surfaced to the
// application as IncomingFileOffered.
func (s *Session) processIncomingFile(ctx context.Context, f domain.IncomingFile) {
	existing, ok, err := s.store.LoadFile(ctx, f.FileID)
	if err == nil && ok && existing.State == domain.FileTransferring {
		s.autoResumeAccept(ctx, f, existing)
		return
	}

	rec := domain.File{
		ID: f.FileID, Conversation: s.id.String(), Direction: domain.Incoming,
		State: domain.FileWaiting, Name: f.Name, Hash: f.Hash, Size: f.Size,
		CreatedAt: time.Now(),
	}
	if f.Offset != nil {
		rec.BytesTransferred = *f.Offset
	}
	if err := s.store.SaveFile(ctx, rec); err != nil {
		s.sink.Publish(events.ProtocolError{Session: s.id, Err: err})
		return
	}
	s.inboundOffers[f.FileID] = f.Channel
	s.sink.Publish(events.IncomingFileOffered{
		Session: s.id, FileID: f.FileID, Conversation: rec.Conversation,
		Name: f.Name, Size: f.Size, Hash: f.Hash,
	})
}

func (s *Session) autoResumeAccept(ctx context.Context, f domain.IncomingFile, existing domain.File) {
	recv, err := filexfer.NewReceiver(s.store, s.ctrl, s.sink, s.id, f.FileID, existing.Path, existing.BytesTransferred, existing.Size, existing.Hash)
	if err != nil {
		s.sink.Publish(events.ProtocolError{Session: s.id, Err: err})
		return
	}
	s.mplex.RegisterConsumer(f.Channel, recv)
	s.activeReceivers[f.FileID] = recv
	_, _ = s.ctrl.SendAcceptFile(ctx, domain.AcceptFile{FileID: f.FileID, Offset: existing.BytesTransferred})
}

// processAcceptFile starts streaming a previously offered file once the
// peer has authorized it.
func (s *Session) processAcceptFile(ctx context.Context, a domain.AcceptFile) {
	out, ok := s.offerChannels[a.FileID]
	if !ok {
		s.sink.Publish(events.ProtocolError{Session: s.id, Err: fmt.Errorf("peer: AcceptFile for unknown offer %s", a.FileID)})
		return
	}
	f, ok, err := s.store.LoadFile(ctx, a.FileID)
	if err != nil || !ok {
		return
	}
	_ = s.store.UpdateFile(ctx, a.FileID, func(file *domain.File) error {
		file.State = domain.FileTransferring
		return nil
	})

	sender := filexfer.NewSender(out, s.store, s.sink, s.id, a.FileID, f.Path, f.Size, s.cfg.FileIOChunkBytes)
	go func() {
		if err := sender.Run(ctx, a.Offset); err != nil {
			s.sink.Publish(events.ProtocolError{Session: s.id, Err: err})
		}
	}()
}

func (s *Session) processRejectFile(ctx context.Context, r domain.RejectFile) {
	delete(s.offerChannels, r.FileID)
	_ = s.store.UpdateFile(ctx, r.FileID, func(f *domain.File) error {
		f.State = domain.FileRejected
		return nil
	})
	s.sink.Publish(events.FileRejected{FileID: r.FileID, Reason: r.Reason})
}

func (s *Session) processAbortFile(ctx context.Context, a domain.AbortFile) {
	_ = s.store.UpdateFile(ctx, a.FileID, func(f *domain.File) error {
		f.State = domain.FileFailed
		return nil
	})
	if ch, ok := s.inboundOffers[a.FileID]; ok {
		s.mplex.UnregisterConsumer(ch)
		delete(s.inboundOffers, a.FileID)
	}
	if recv, ok := s.activeReceivers[a.FileID]; ok {
		_ = recv.Close()
		delete(s.activeReceivers, a.FileID)
	}
	delete(s.offerChannels, a.FileID)
	s.sink.Publish(events.FileAborted{FileID: a.FileID, Err: fmt.Errorf("peer: aborted by remote")})
}

// resumeOutgoingTransfers re-offers every file this session was still
// sending before a reconnect, at the offset its Sender last recorded as
// written (this is Resumption).
func (s *Session) resumeOutgoingTransfers(ctx context.Context) {
	files, err := s.store.ListTransferring(ctx)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.Conversation != s.id.String() || f.Direction != domain.Outgoing {
			continue
		}
		out := s.mplex.NewOutChannel()
		s.offerChannels[f.ID] = out
		offset := f.BytesTransferred
		_, _ = s.ctrl.SendIncomingFile(ctx, domain.IncomingFile{
			FileID: f.ID, Name: f.Name, Size: f.Size, Hash: f.Hash, Channel: out.ID, Offset: &offset,
		})
	}
}

func (s *Session) doClose() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	ctx := context.Background()
	for fileID := range s.activeReceivers {
		_ = s.store.UpdateFile(ctx, fileID, func(f *domain.File) error {
			if f.State == domain.FileTransferring {
				f.State = domain.FileFailed
			}
			return nil
		})
	}
	for fileID := range s.offerChannels {
		_ = s.store.UpdateFile(ctx, fileID, func(f *domain.File) error {
			if f.State == domain.FileTransferring {
				f.State = domain.FileFailed
			}
			return nil
		})
	}
}

// enqueue hands fn to the owning goroutine and waits for it to run. It
// returns an error without running fn if the session closes or ctx ends
// first; it blocks (by design) while the session is not yet Connected,
// since commands issued before a handshake completes should simply wait
// for it.
func (s *Session) enqueue(ctx context.Context, fn func(s *Session) error) error {
	cmd := sessionCmd{fn: fn, done: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeReq:
		return protoerr.New(protoerr.KindTransport, "enqueue", errSessionClosed)
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendMessage emits a chat message on the control channel.
func (s *Session) SendMessage(ctx context.Context, m domain.Message) error {
	return s.enqueue(ctx, func(s *Session) error {
		_, err := s.ctrl.SendMessage(ctx, m)
		return err
	})
}

// SendUserInfo emits a presence/profile update.
func (s *Session) SendUserInfo(ctx context.Context, u domain.UserInfo) error {
	return s.enqueue(ctx, func(s *Session) error {
		_, err := s.ctrl.SendUserInfo(ctx, u)
		return err
	})
}

// SendAvatar emits a full avatar payload.
func (s *Session) SendAvatar(ctx context.Context, a domain.Avatar) error {
	return s.enqueue(ctx, func(s *Session) error {
		_, err := s.ctrl.SendAvatar(ctx, a)
		return err
	})
}

// OfferFile registers f as an outbound transfer, hashes its content off
// the session's I/O path via the shared worker pool, and sends
// IncomingFile once the hash is ready.
func (s *Session) OfferFile(ctx context.Context, f domain.File) error {
	return s.enqueue(ctx, func(s *Session) error {
		out := s.mplex.NewOutChannel()
		f.Direction = domain.Outgoing
		f.State = domain.FileWaiting
		f.Conversation = s.id.String()
		f.CreatedAt = time.Now()
		if err := s.store.SaveFile(ctx, f); err != nil {
			return err
		}
		s.offerChannels[f.ID] = out

		// Hashing outlives this call: it must not be tied to the
		// caller's request context, only to the session's own
		// lifetime.
		bg := context.Background()
		path := f.Path
		fileID := f.ID
		resultCh := s.pool.Submit(bg, func(ctx context.Context) (interface{}, error) {
			return filexfer.HashFile(path)
		})
		go func() {
			res := <-resultCh
			select {
			case s.inbound <- func(s *Session) { s.completeOffer(bg, fileID, out, res) }:
			case <-s.closeReq:
			}
		}()
		return nil
	})
}

func (s *Session) completeOffer(ctx context.Context, fileID domain.FileID, out *mux.OutChannel, res workerpool.Result) {
	if res.Err != nil {
		s.sink.Publish(events.ProtocolError{Session: s.id, Err: res.Err})
		return
	}
	hash, _ := res.Value.(string)
	_ = s.store.UpdateFile(ctx, fileID, func(f *domain.File) error {
		f.Hash = hash
		return nil
	})
	s.sink.Publish(events.HashReady{FileID: fileID, Hash: hash})

	f, ok, err := s.store.LoadFile(ctx, fileID)
	if err != nil || !ok {
		return
	}
	_, _ = s.ctrl.SendIncomingFile(ctx, domain.IncomingFile{
		FileID: fileID, Name: f.Name, Size: f.Size, Hash: hash, Channel: out.ID,
	})
}

// AcceptFile authorizes a pending inbound offer, writing into dest
// starting at offset.
func (s *Session) AcceptFile(ctx context.Context, fileID domain.FileID, dest string, offset int64) error {
	return s.enqueue(ctx, func(s *Session) error {
		f, ok, err := s.store.LoadFile(ctx, fileID)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr.New(protoerr.KindProtocol, "AcceptFile", fmt.Errorf("peer: unknown file %s", fileID))
		}
		channel, ok := s.inboundOffers[fileID]
		if !ok {
			return protoerr.New(protoerr.KindProtocol, "AcceptFile", fmt.Errorf("peer: no pending offer for %s", fileID))
		}

		recv, err := filexfer.NewReceiver(s.store, s.ctrl, s.sink, s.id, fileID, dest, offset, f.Size, f.Hash)
		if err != nil {
			return err
		}
		s.mplex.RegisterConsumer(channel, recv)
		s.activeReceivers[fileID] = recv

		if err := s.store.UpdateFile(ctx, fileID, func(file *domain.File) error {
			file.Path = dest
			file.State = domain.FileTransferring
			file.BytesTransferred = offset
			return nil
		}); err != nil {
			return err
		}
		_, err = s.ctrl.SendAcceptFile(ctx, domain.AcceptFile{FileID: fileID, Offset: offset})
		return err
	})
}

// RejectFile declines a pending inbound offer that hasn't started
// transferring.
func (s *Session) RejectFile(ctx context.Context, fileID domain.FileID, reason string) error {
	return s.enqueue(ctx, func(s *Session) error {
		delete(s.inboundOffers, fileID)
		_ = s.store.UpdateFile(ctx, fileID, func(f *domain.File) error {
			f.State = domain.FileRejected
			return nil
		})
		_, err := s.ctrl.SendRejectFile(ctx, domain.RejectFile{FileID: fileID, Reason: reason})
		return err
	})
}

// AbortFile cancels an in-progress transfer in either direction.
func (s *Session) AbortFile(ctx context.Context, fileID domain.FileID) error {
	return s.enqueue(ctx, func(s *Session) error {
		_ = s.store.UpdateFile(ctx, fileID, func(f *domain.File) error {
			f.State = domain.FileFailed
			return nil
		})
		if ch, ok := s.inboundOffers[fileID]; ok {
			s.mplex.UnregisterConsumer(ch)
			delete(s.inboundOffers, fileID)
		}
		if recv, ok := s.activeReceivers[fileID]; ok {
			_ = recv.Close()
			delete(s.activeReceivers, fileID)
		}
		delete(s.offerChannels, fileID)
		_, err := s.ctrl.SendAbortFile(ctx, domain.AbortFile{FileID: fileID})
		return err
	})
}

// Close requests a graceful shutdown. It returns immediately; the
// session finishes its current work and transitions through Closing to
// Closed, publishing events.Closed when done.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closeReq) })
}
