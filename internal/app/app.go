package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/peer"
	"darkspeak/internal/store"
	"darkspeak/internal/transport"
	"darkspeak/internal/workerpool"
)

const dbFilename = "darkspeak.db"

// App wires together the stores, transport, worker pool, and logger the
// CLI commands share, and tracks every peer.Session it has started so a
// listener and several dials can coexist in one process.
type App struct {
	Cfg Config
	Log zerolog.Logger

	Identities *store.IdentityFileStore
	Files      *store.BoltFileStore
	Dialer     *transport.TorDialer
	Pool       *workerpool.Pool

	mu       sync.Mutex
	sessions map[domain.SessionID]*peer.Session
}

// New opens the bbolt file store under cfg.Home and returns a ready App.
// Callers must call Close when done.
func New(cfg Config, log zerolog.Logger) (*App, error) {
	cfg = cfg.WithDefaults()

	files, err := store.OpenBoltFileStore(filepath.Join(cfg.Home, dbFilename))
	if err != nil {
		return nil, fmt.Errorf("app: open file store: %w", err)
	}

	return &App{
		Cfg:        cfg,
		Log:        log,
		Identities: store.NewIdentityFileStore(cfg.Home),
		Files:      files,
		Dialer:     transport.NewTorDialer(cfg.SocksAddress),
		Pool:       workerpool.New(4),
		sessions:   make(map[domain.SessionID]*peer.Session),
	}, nil
}

// Close releases the file store. It does not close any running session;
// callers close those individually or via CloseAll.
func (a *App) Close() error {
	return a.Files.Close()
}

// Dial establishes an outbound session to remote, authenticated against
// expectedRemote, and starts it running in the background. The returned
// Session may still be in StateDialing/StateHandshaking when Dial
// returns; callers watch Events() for StateConnected.
func (a *App) Dial(ctx context.Context, remote domain.OnionAddress, local domain.Identity, expectedRemote domain.Ed25519Public) (*peer.Session, error) {
	cd := domain.NewConnectData(remote, local, &expectedRemote)
	sess, err := peer.NewOutbound(cd, a.Dialer, a.Cfg.PeerConfig(), a.Files, a.Pool, a.Log)
	if err != nil {
		return nil, fmt.Errorf("app: dial %s: %w", remote, err)
	}
	a.track(sess)
	go sess.Run(ctx)
	return sess, nil
}

// AcceptLoop accepts inbound connections from ln until ctx is done (it
// then closes ln) or Accept fails, starting one Session per connection. onAccept, if
// non-nil, is invoked with each new Session before it starts running
// (e.g. to wire an event consumer).
func (a *App) AcceptLoop(ctx context.Context, ln *transport.Listener, local domain.Identity, expectedClient *domain.Ed25519Public, onAccept func(*peer.Session)) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("app: accept: %w", err)
			}
		}
		sess := peer.NewInbound(conn, local, expectedClient, a.Cfg.PeerConfig(), a.Files, a.Pool, a.Log)
		a.track(sess)
		if onAccept != nil {
			onAccept(sess)
		}
		go sess.Run(ctx)
	}
}

func (a *App) track(sess *peer.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[sess.ID()] = sess
}

// Sessions returns a snapshot of every session this App has started.
func (a *App) Sessions() []*peer.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*peer.Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, s)
	}
	return out
}

// CloseAll closes every tracked session. Used on process shutdown.
func (a *App) CloseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.sessions {
		s.Close()
	}
}

// LogEvents drains sess's event channel to log, each event at the level
// LogEvent picks for it, until the
// channel is closed, a convenience for CLI commands that just want
// visibility rather than custom handling. It never mutates sess.
func LogEvents(log zerolog.Logger, sess *peer.Session) {
	for ev := range sess.Events() {
		LogEvent(log, ev)
	}
}

// LogEvent logs a single event at the level appropriate to its kind.
// Exported so callers that also need to react to specific events (e.g.
// auto-accepting a file offer) can still route everything through the
// same log formatting.
func LogEvent(log zerolog.Logger, ev events.Event) {
	switch e := ev.(type) {
	case events.StateChanged:
		log.Info().Str("from", e.From.String()).Str("to", e.To.String()).Msg("session state")
	case events.MessageReceived:
		log.Info().Str("from_conversation", e.Message.Conversation).Str("content", e.Message.Content).Msg("message received")
	case events.IncomingFileOffered:
		log.Info().Str("file", string(e.FileID)).Str("name", e.Name).Int64("size", e.Size).Msg("file offered")
	case events.BytesTransferred:
		log.Debug().Str("file", string(e.FileID)).Int64("offset", e.Offset).Int64("size", e.Size).Msg("transfer progress")
	case events.AckReceived:
		log.Info().Str("status", string(e.Ack.Status)).Msg("ack received")
	case events.FileRejected:
		log.Warn().Str("file", string(e.FileID)).Str("reason", e.Reason).Msg("file rejected")
	case events.FileAborted:
		log.Warn().Str("file", string(e.FileID)).Err(e.Err).Msg("file aborted")
	case events.ProtocolError:
		log.Error().Err(e.Err).Msg("protocol error")
	case events.PeerAuthFailed:
		log.Error().Err(e.Err).Msg("peer authentication failed")
	case events.Closed:
		log.Info().Err(e.Reason).Msg("session closed")
	}
}
