package transport

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"

	"darkspeak/internal/domain"
	domaintypes "darkspeak/internal/domain/types"
)

var _ domain.Dialer = (*TorDialer)(nil)

// TorDialer dials onion addresses through a local Tor SOCKS5 proxy. Each
// dial is given its own SOCKS5 stream-isolation credential so unrelated
// darkspeak sessions cannot be linked to each other by Tor's circuit
// selection.
type TorDialer struct {
	// ProxyAddress is the local Tor SOCKS5 listener, e.g. "127.0.0.1:9050".
	ProxyAddress string
	// IsolationPrefix tags this process's isolation credentials so
	// circuits from different darkspeak instances sharing one Tor
	// daemon are still kept apart.
	IsolationPrefix string
}

// NewTorDialer returns a TorDialer for the given local SOCKS5 proxy
// address.
func NewTorDialer(proxyAddress string) *TorDialer {
	return &TorDialer{ProxyAddress: proxyAddress, IsolationPrefix: "darkspeak"}
}

// Dial connects to addr's hidden service through the configured SOCKS5
// proxy. The connection carries no per-dial timeout beyond ctx; callers
// combine this with a handshake deadline.
func (d *TorDialer) Dial(ctx context.Context, addr domaintypes.OnionAddress) (net.Conn, error) {
	auth := d.IsolationAuth(addr)
	fwd := &ctxDialer{ctx: ctx, connCh: make(chan net.Conn, 1)}
	socksDialer, err := proxy.SOCKS5("tcp", d.ProxyAddress, auth, fwd)
	if err != nil {
		return nil, fmt.Errorf("transport: build SOCKS5 dialer: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case conn := <-fwd.connCh:
			select {
			case <-ctx.Done():
				if conn != nil {
					conn.Close()
				}
			case <-done:
			}
		case <-done:
		}
	}()
	defer close(done)

	onionAddr := string(addr) + ":" + onionPort
	conn, err := socksDialer.Dial("tcp", onionAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s via tor: %w", addr, err)
	}
	return conn, nil
}

// onionPort is the fixed service port darkspeak listens on behind its
// onion service; the onion address alone doesn't encode a port.
const onionPort = "9191"

// IsolationAuth derives a per-peer SOCKS5 isolation credential so Tor
// routes sessions with different peers over different circuits. The
// same addr always yields the same credential for a given dialer.
func (d *TorDialer) IsolationAuth(addr domaintypes.OnionAddress) *proxy.Auth {
	sum := sha512.Sum512_256([]byte(d.IsolationPrefix + ":" + string(addr)))
	return &proxy.Auth{
		User:     hex.EncodeToString(sum[:16]),
		Password: "x",
	}
}

// ctxDialer adapts golang.org/x/net/proxy's context-less Dialer interface
// to honor cancellation, since the proxy package predates context.Context.
type ctxDialer struct {
	ctx    context.Context
	connCh chan net.Conn
}

func (c *ctxDialer) Dial(network, address string) (net.Conn, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(c.ctx, network, address)
	select {
	case c.connCh <- conn:
	default:
	}
	return conn, err
}

// DialTimeout wraps Dial with a fixed deadline, for callers that don't
// already carry one on ctx.
func (d *TorDialer) DialTimeout(ctx context.Context, addr domaintypes.OnionAddress, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Dial(ctx, addr)
}
