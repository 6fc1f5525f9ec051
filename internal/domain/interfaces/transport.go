package interfaces

import (
	"context"
	"net"

	domaintypes "darkspeak/internal/domain/types"
)

// Dialer obtains a reliable, ordered byte stream to a remote onion
// address through a local anonymizing proxy. No framing; the connection
// surfaces loss as a terminal error on Read/Write.
type Dialer interface {
	Dial(ctx context.Context, addr domaintypes.OnionAddress) (net.Conn, error)
}
