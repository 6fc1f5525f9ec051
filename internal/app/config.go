package app

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"darkspeak/internal/peer"
)

// Config holds the process-wide settings loaded from a TOML file:
// session tunables plus the Tor and listener wiring. All fields are
// optional on disk; WithDefaults fills in anything left zero.
type Config struct {
	Home string `toml:"-"` // config/data directory; set by the caller, never read from the file itself

	MaxReconnects      int `toml:"max_reconnects"`
	ReconnectDelayMS   int `toml:"reconnect_delay_ms"`
	HandshakeTimeoutMS int `toml:"handshake_timeout_ms"`
	MaxChunkBytes      int `toml:"max_chunk_bytes"`
	FileIOChunkBytes   int `toml:"file_io_chunk_bytes"`

	// SocksAddress is the local Tor SOCKS5 listener darkspeak dials
	// outbound peers through.
	SocksAddress string `toml:"socks_address"`
	// ListenAddress is the local TCP address Tor forwards this onion
	// service's inbound connections to.
	ListenAddress string `toml:"listen_address"`
}

// LoadConfig reads and parses the TOML file at path. Home is applied
// after parsing since it is never itself a TOML field.
func LoadConfig(path, home string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("app: load config %s: %w", path, err)
	}
	cfg.Home = home
	return cfg.WithDefaults(), nil
}

// WithDefaults returns a copy of cfg with every zero-valued field
// replaced by its production default: the tuning fields from
// peer.DefaultConfig, SocksAddress by 127.0.0.1:9050 and ListenAddress
// by 127.0.0.1:9191.
func (c Config) WithDefaults() Config {
	d := peer.DefaultConfig()
	if c.MaxReconnects == 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	if c.ReconnectDelayMS == 0 {
		c.ReconnectDelayMS = int(d.ReconnectDelay / time.Millisecond)
	}
	if c.HandshakeTimeoutMS == 0 {
		c.HandshakeTimeoutMS = int(d.HandshakeTimeout / time.Millisecond)
	}
	if c.MaxChunkBytes == 0 {
		c.MaxChunkBytes = d.MaxChunkBytes
	}
	if c.FileIOChunkBytes == 0 {
		c.FileIOChunkBytes = d.FileIOChunkBytes
	}
	if c.SocksAddress == "" {
		c.SocksAddress = "127.0.0.1:9050"
	}
	if c.ListenAddress == "" {
		c.ListenAddress = "127.0.0.1:9191"
	}
	return c
}

// PeerConfig projects the wire-protocol-relevant fields into a
// peer.Config for Session construction.
func (c Config) PeerConfig() peer.Config {
	return peer.Config{
		MaxReconnects:    c.MaxReconnects,
		ReconnectDelay:   time.Duration(c.ReconnectDelayMS) * time.Millisecond,
		HandshakeTimeout: time.Duration(c.HandshakeTimeoutMS) * time.Millisecond,
		MaxChunkBytes:    c.MaxChunkBytes,
		FileIOChunkBytes: c.FileIOChunkBytes,
	}
}
