package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"darkspeak/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a local identity keypair and store it encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := crypto.GenerateIdentity()
			if err != nil {
				return fmt.Errorf("generate identity: %w", err)
			}
			if err := appCtx.Identities.SaveIdentity(passphrase, id); err != nil {
				return fmt.Errorf("save identity: %w", err)
			}
			fmt.Printf("identity created\npublic key: %s\nfingerprint: %s\n",
				hex.EncodeToString(id.Public.Slice()), crypto.Fingerprint(id.Public))
			return nil
		},
	}
}
