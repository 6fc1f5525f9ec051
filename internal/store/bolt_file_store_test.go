package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/domain"
	"darkspeak/internal/store"
)

func openTestStore(t *testing.T) *store.BoltFileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "darkspeak.db")
	s, err := store.OpenBoltFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltFileStore_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := domain.File{
		ID:           "f1",
		Conversation: "alice",
		Direction:    domain.Outgoing,
		State:        domain.FileWaiting,
		Name:         "report.pdf",
		Hash:         "deadbeef",
		Size:         1024,
	}
	require.NoError(t, s.SaveFile(ctx, f))

	got, ok, err := s.LoadFile(ctx, "f1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.Name, got.Name)

	byHash, ok, err := s.LoadFileByHash(ctx, "alice", "deadbeef")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.ID, byHash.ID)

	_, ok, err = s.LoadFile(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBoltFileStore_UpdateFile_IsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	f := domain.File{ID: "f2", Conversation: "bob", Hash: "cafe", Size: 100, State: domain.FileWaiting}
	require.NoError(t, s.SaveFile(ctx, f))

	err := s.UpdateFile(ctx, "f2", func(f *domain.File) error {
		f.State = domain.FileTransferring
		f.BytesTransferred = 40
		return nil
	})
	require.NoError(t, err)

	got, _, err := s.LoadFile(ctx, "f2")
	require.NoError(t, err)
	require.Equal(t, domain.FileTransferring, got.State)
	require.EqualValues(t, 40, got.BytesTransferred)
}

func TestBoltFileStore_ListTransferring(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFile(ctx, domain.File{ID: "a", State: domain.FileDone}))
	require.NoError(t, s.SaveFile(ctx, domain.File{ID: "b", State: domain.FileTransferring}))
	require.NoError(t, s.SaveFile(ctx, domain.File{ID: "c", State: domain.FileTransferring}))

	list, err := s.ListTransferring(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestIdentityFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	ids := store.NewIdentityFileStore(dir)

	id := domain.Identity{}
	id.Public[0] = 7

	require.NoError(t, ids.SaveIdentity("correct horse battery staple", id))

	got, err := ids.LoadIdentity("correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, id.Public, got.Public)

	_, err = ids.LoadIdentity("wrong passphrase entirely")
	require.Error(t, err)
}

var _ domain.IdentityStore = (*store.IdentityFileStore)(nil)
var _ domain.FileStore = (*store.BoltFileStore)(nil)
