package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
)

func offerFileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer-file <peer> <path>",
		Short: "Connect to a peer and offer a local file for transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			onion, pub, err := parsePeer(args[0])
			if err != nil {
				return err
			}
			path := args[1]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
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

			fileID := domain.FileID(uuid.NewString())
			err = sess.OfferFile(ctx, domain.File{
				ID:   fileID,
				Name: info.Name(),
				Path: path,
				Size: info.Size(),
			})
			if err != nil {
				return fmt.Errorf("offer file: %w", err)
			}
			fmt.Printf("offered %s as %s, waiting for the peer to accept or reject\n", path, fileID)

			for {
				select {
				case ev, ok := <-sess.Events():
					if !ok {
						return fmt.Errorf("session closed before transfer finished")
					}
					switch e := ev.(type) {
					case events.AckReceived:
						if e.Ack.Status == domain.AckOK {
							fmt.Println("transfer complete, peer confirmed matching hash")
							return nil
						}
						return fmt.Errorf("transfer failed: %v", e.Ack.Data)
					case events.FileRejected:
						if e.FileID == fileID {
							return fmt.Errorf("peer rejected the file: %s", e.Reason)
						}
					}
				case <-time.After(10 * time.Minute):
					return fmt.Errorf("timed out waiting for transfer to finish")
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		},
	}
	return cmd
}
