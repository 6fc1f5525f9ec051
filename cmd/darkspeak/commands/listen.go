package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"darkspeak/internal/app"
	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/peer"
	"darkspeak/internal/transport"
)

func listenCmd() *cobra.Command {
	var acceptDir string
	var requirePeer string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept inbound onion connections and log session activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity()
			if err != nil {
				return err
			}

			var expected *domain.Ed25519Public
			if requirePeer != "" {
				raw, err := hex.DecodeString(requirePeer)
				if err != nil || len(raw) != 32 {
					return fmt.Errorf("--require-peer: invalid 32-byte hex public key")
				}
				var pub domain.Ed25519Public
				copy(pub[:], raw)
				expected = &pub
			}

			ln, err := transport.Listen(appCtx.Cfg.ListenAddress)
			if err != nil {
				return err
			}
			defer ln.Close()
			fmt.Printf("listening on %s\n", ln.Addr())

			ctx, cancel := signalContext()
			defer cancel()

			return appCtx.AcceptLoop(ctx, ln, id, expected, func(sess *peer.Session) {
				go watchSession(sess, acceptDir)
			})
		},
	}
	cmd.Flags().StringVar(&acceptDir, "accept-dir", "", "auto-accept every incoming file offer into this directory")
	cmd.Flags().StringVar(&requirePeer, "require-peer", "", "reject inbound connections not from this hex-encoded public key")
	return cmd
}

// watchSession relays one session's events to the log and, if acceptDir
// is set, auto-accepts every file it is offered.
func watchSession(sess *peer.Session, acceptDir string) {
	for ev := range sess.Events() {
		if offered, ok := ev.(events.IncomingFileOffered); ok && acceptDir != "" {
			dest := filepath.Join(acceptDir, offered.Name)
			if err := sess.AcceptFile(context.Background(), offered.FileID, dest, 0); err != nil {
				log.Error().Err(err).Str("file", string(offered.FileID)).Msg("auto-accept failed")
			}
		}
		app.LogEvent(log, ev)
	}
}
