package interfaces

import (
	"context"

	domaintypes "darkspeak/internal/domain/types"
)

// IdentityStore persists the local long-term identity.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// FileStore persists File records. Updates to a single record are
// serialized by the store; callers never need an external lock.
type FileStore interface {
	SaveFile(ctx context.Context, f domaintypes.File) error
	LoadFile(ctx context.Context, id domaintypes.FileID) (domaintypes.File, bool, error)
	LoadFileByHash(ctx context.Context, conversation, hash string) (domaintypes.File, bool, error)
	// UpdateFile atomically loads the record, applies fn, and saves it back.
	UpdateFile(ctx context.Context, id domaintypes.FileID, fn func(*domaintypes.File) error) error
	ListTransferring(ctx context.Context) ([]domaintypes.File, error)
}
