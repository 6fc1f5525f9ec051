package transport

import (
	"fmt"
	"net"
)

// Listener accepts inbound connections forwarded by a Tor onion service.
// The onion service itself is configured outside this process (in
// torrc's HiddenServiceDir/HiddenServicePort directives); darkspeak only
// needs to bind the local address Tor forwards to.
type Listener struct {
	ln net.Listener
}

// Listen binds a local TCP listener at bindAddress (e.g. "127.0.0.1:9191")
// for Tor to forward onion-service connections to.
func Listen(bindAddress string) (*Listener, error) {
	ln, err := net.Listen("tcp", bindAddress)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", bindAddress, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a peer connects or the listener is closed.
func (l *Listener) Accept() (net.Conn, error) {
	return l.ln.Accept()
}

// Addr returns the listener's bound local address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
