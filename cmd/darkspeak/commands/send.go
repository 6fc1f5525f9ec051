package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
)

func sendCmd() *cobra.Command {
	var conversation string

	cmd := &cobra.Command{
		Use:   "send <peer> <message...>",
		Short: "Connect to a peer and send a chat message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			onion, pub, err := parsePeer(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")

			ctx, cancel := signalContext()
			defer cancel()
			defer func() {
				for _, s := range appCtx.Sessions() {
					s.Close()
				}
			}()

			sess, err := appCtx.Dial(ctx, onion, id, pub)
			if err != nil {
				return err
			}
			if err := waitConnected(ctx, sess); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			msg := domain.Message{ID: uuid.NewString(), Conversation: conversation, Content: text}
			if err := sess.SendMessage(ctx, msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}

			if _, err := waitForEvent[events.AckReceived](ctx, sess.Events(), 10*time.Second); err != nil {
				return fmt.Errorf("waiting for delivery ack: %w", err)
			}
			fmt.Println("sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "default", "conversation identifier the message belongs to")
	return cmd
}
