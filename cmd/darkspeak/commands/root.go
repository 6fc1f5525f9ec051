// Package commands implements the darkspeak CLI subcommands: a thin
// exerciser over internal/app, not an application shell (a real UI and
// contact book are out of scope). "<peer>" arguments
// throughout are "<onion-address>@<hex-ed25519-pubkey>" tokens, since
// there is no contact book to resolve a bare name against.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"darkspeak/internal/app"
)

var (
	home       string
	passphrase string
	socksAddr  string
	listenAddr string
	verbose    bool

	appCtx *app.App
	log    zerolog.Logger
)

// Execute builds and runs the darkspeak root command.
func Execute() error {
	root := &cobra.Command{
		Use:   "darkspeak",
		Short: "Peer-to-peer encrypted messaging and file transfer over Tor",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".darkspeak")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return fmt.Errorf("create home dir: %w", err)
			}

			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

			cfg, err := loadOrDefaultConfig(filepath.Join(home, "config.toml"), home)
			if err != nil {
				return err
			}
			if socksAddr != "" {
				cfg.SocksAddress = socksAddr
			}
			if listenAddr != "" {
				cfg.ListenAddress = listenAddr
			}

			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}
			appCtx = a
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config/data directory (default ~/.darkspeak)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local identity")
	root.PersistentFlags().StringVar(&socksAddr, "socks", "", "Tor SOCKS5 proxy address (default 127.0.0.1:9050)")
	root.PersistentFlags().StringVar(&listenAddr, "listen", "", "local address Tor forwards inbound connections to (default 127.0.0.1:9191)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(initCmd(), listenCmd(), dialCmd(), sendCmd(), offerFileCmd(), acceptFileCmd())
	return root.Execute()
}

// loadOrDefaultConfig reads path if it exists, otherwise returns an
// all-defaults Config rooted at home.
func loadOrDefaultConfig(path, home string) (app.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return app.Config{Home: home}.WithDefaults(), nil
	}
	return app.LoadConfig(path, home)
}
