package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
)

// parsePeer splits a "<onion-address>@<hex-ed25519-pubkey>" token.
func parsePeer(s string) (domain.OnionAddress, domain.Ed25519Public, error) {
	onion, hexKey, ok := strings.Cut(s, "@")
	if !ok {
		return "", domain.Ed25519Public{}, fmt.Errorf("peer %q: want <onion-address>@<hex-pubkey>", s)
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != 32 {
		return "", domain.Ed25519Public{}, fmt.Errorf("peer %q: invalid 32-byte hex public key", s)
	}
	var pub domain.Ed25519Public
	copy(pub[:], raw)
	return domain.OnionAddress(onion), pub, nil
}

// requirePassphrase returns an error if no passphrase flag was given.
func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}

// loadIdentity loads the local identity, requiring the passphrase flag.
func loadIdentity() (domain.Identity, error) {
	if err := requirePassphrase(); err != nil {
		return domain.Identity{}, err
	}
	id, err := appCtx.Identities.LoadIdentity(passphrase)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("load identity (run 'darkspeak init' first): %w", err)
	}
	return id, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// waitForEvent blocks until ch yields a value of type T, ctx is done, or
// timeout elapses, whichever comes first.
func waitForEvent[T events.Event](ctx context.Context, ch <-chan events.Event, timeout time.Duration) (T, error) {
	var zero T
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return zero, fmt.Errorf("session closed before %T arrived", zero)
			}
			if v, ok := ev.(T); ok {
				return v, nil
			}
		case <-deadline.C:
			return zero, fmt.Errorf("timed out waiting for %T", zero)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
