package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"darkspeak/internal/app"
	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/peer"
)

func dialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dial <peer>",
		Short: "Dial a peer and stay connected, logging session activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			onion, pub, err := parsePeer(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			sess, err := appCtx.Dial(ctx, onion, id, pub)
			if err != nil {
				return err
			}
			if err := waitConnected(ctx, sess); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			fmt.Println("connected, press ctrl-c to disconnect")

			app.LogEvents(log, sess)
			return nil
		},
	}
	return cmd
}

// waitConnected blocks until sess reports StateConnected (nil) or
// StateClosed (an error), or until no state change arrives within the
// handshake timeout plus the reconnect delay. Other events are discarded.
func waitConnected(ctx context.Context, sess *peer.Session) error {
	timeout := appCtx.Cfg.PeerConfig().HandshakeTimeout + appCtx.Cfg.PeerConfig().ReconnectDelay
	for {
		ev, err := waitForEvent[events.StateChanged](ctx, sess.Events(), timeout)
		if err != nil {
			return err
		}
		if ev.To == domain.StateConnected {
			return nil
		}
		if ev.To == domain.StateClosed {
			return fmt.Errorf("session closed before connecting")
		}
	}
}
