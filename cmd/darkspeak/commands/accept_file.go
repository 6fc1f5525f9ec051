package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
)

// acceptFileCmd connects to the offering peer and waits for it to (re-)
// present the named file id before accepting it, since the offer
// channel allocated for a prior IncomingFileOffered only lives inside
// the session that received it (a file offer's channel lives in the
// offering peer-session's channel table, not in durable storage, until
// the transfer actually starts).
func acceptFileCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "accept-file <peer> <file-id>",
		Short: "Connect to a peer and accept a file it is offering",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				return fmt.Errorf("--dest required")
			}
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			onion, pub, err := parsePeer(args[0])
			if err != nil {
				return err
			}
			fileID := domain.FileID(args[1])

			ctx, cancel := signalContext()
			defer cancel()

			sess, err := appCtx.Dial(ctx, onion, id, pub)
			if err != nil {
				return err
			}
			if err := waitConnected(ctx, sess); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			offer, err := waitMatchingOffer(ctx, sess.Events(), fileID, 30*time.Second)
			if err != nil {
				return fmt.Errorf("waiting for offer %s: %w", fileID, err)
			}
			fmt.Printf("accepting %s (%d bytes) into %s\n", offer.Name, offer.Size, dest)

			if err := sess.AcceptFile(ctx, fileID, dest, 0); err != nil {
				return fmt.Errorf("accept file: %w", err)
			}

			ready, err := waitForEvent[events.HashReady](ctx, sess.Events(), 10*time.Minute)
			if err != nil {
				return fmt.Errorf("waiting for transfer to finish: %w", err)
			}
			if ready.Hash != offer.Hash {
				return fmt.Errorf("transfer failed: hash mismatch")
			}
			fmt.Println("transfer complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "local path to write the accepted file to")
	return cmd
}

func waitMatchingOffer(ctx context.Context, ch <-chan events.Event, fileID domain.FileID, timeout time.Duration) (events.IncomingFileOffered, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events.IncomingFileOffered{}, fmt.Errorf("session closed")
			}
			if offer, ok := ev.(events.IncomingFileOffered); ok && offer.FileID == fileID {
				return offer, nil
			}
		case <-deadline.C:
			return events.IncomingFileOffered{}, fmt.Errorf("timed out")
		case <-ctx.Done():
			return events.IncomingFileOffered{}, fmt.Errorf("canceled")
		}
	}
}
