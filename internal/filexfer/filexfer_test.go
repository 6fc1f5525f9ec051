package filexfer_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/domain"
	"darkspeak/internal/events"
	"darkspeak/internal/filexfer"
	"darkspeak/internal/framed"
	"darkspeak/internal/mux"
	"darkspeak/internal/streamcrypto"
)

func loopbackStreams(t *testing.T) (*framed.Stream, *framed.Stream) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	var key [streamcrypto.KeySize]byte
	key[0] = 3

	push, header, err := streamcrypto.InitPush(key[:])
	require.NoError(t, err)
	pull, err := streamcrypto.InitPull(key[:], header)
	require.NoError(t, err)

	client := framed.New(clientConn, push, pull, 0)
	server := framed.New(serverConn, push, pull, 0)
	client.Enable()
	server.Enable()
	return client, server
}

type fakeFileStore struct {
	files map[domain.FileID]domain.File
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[domain.FileID]domain.File)}
}

func (s *fakeFileStore) SaveFile(_ context.Context, f domain.File) error {
	s.files[f.ID] = f
	return nil
}

func (s *fakeFileStore) LoadFile(_ context.Context, id domain.FileID) (domain.File, bool, error) {
	f, ok := s.files[id]
	return f, ok, nil
}

func (s *fakeFileStore) LoadFileByHash(_ context.Context, conversation, hash string) (domain.File, bool, error) {
	for _, f := range s.files {
		if f.Conversation == conversation && f.Hash == hash {
			return f, true, nil
		}
	}
	return domain.File{}, false, nil
}

func (s *fakeFileStore) UpdateFile(_ context.Context, id domain.FileID, fn func(*domain.File) error) error {
	f := s.files[id]
	if err := fn(&f); err != nil {
		return err
	}
	s.files[id] = f
	return nil
}

func (s *fakeFileStore) ListTransferring(_ context.Context) ([]domain.File, error) {
	var out []domain.File
	for _, f := range s.files {
		if f.State == domain.FileTransferring {
			out = append(out, f)
		}
	}
	return out, nil
}

var _ domain.FileStore = (*fakeFileStore)(nil)

type fakeAckSender struct {
	acks chan domain.Ack
}

func (f *fakeAckSender) SendAck(_ context.Context, a domain.Ack) (domain.RequestID, error) {
	f.acks <- a
	return 1, nil
}

func TestSenderReceiver_SmallFileTransfer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	content := []byte("hello, darkspeak")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	hash, err := filexfer.HashFile(src)
	require.NoError(t, err)

	store := newFakeFileStore()
	fileID := domain.FileID("f1")
	store.files[fileID] = domain.File{ID: fileID, Conversation: "alice", State: domain.FileWaiting, Hash: hash, Size: int64(len(content))}

	sink := events.NewSink(16)
	ackSender := &fakeAckSender{acks: make(chan domain.Ack, 1)}

	dest := filepath.Join(dir, "dest.bin")
	recv, err := filexfer.NewReceiver(store, ackSender, sink, domain.SessionID{}, fileID, dest, 0, int64(len(content)), hash)
	require.NoError(t, err)

	writer := mux.New(8)
	reader := mux.New(8)
	out := writer.NewOutChannel()
	reader.RegisterConsumer(out.ID, recv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, server := loopbackStreams(t)
	go writer.RunWrite(ctx, client)
	go reader.RunRead(ctx, server)

	sender := filexfer.NewSender(out, store, sink, domain.SessionID{}, fileID, src, int64(len(content)), 8)
	require.NoError(t, sender.Run(ctx, 0))

	select {
	case ack := <-ackSender.acks:
		require.Equal(t, domain.AckOK, ack.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion ack")
	}

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, content, got)

	f, ok, err := store.LoadFile(ctx, fileID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.FileDone, f.State)
	require.Equal(t, int64(len(content)), f.BytesTransferred)
}

func TestReceiver_HashMismatchFailsTransfer(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.bin")

	store := newFakeFileStore()
	fileID := domain.FileID("f2")
	store.files[fileID] = domain.File{ID: fileID, State: domain.FileWaiting}

	ackSender := &fakeAckSender{acks: make(chan domain.Ack, 1)}
	sink := events.NewSink(16)

	recv, err := filexfer.NewReceiver(store, ackSender, sink, domain.SessionID{}, fileID, dest, 0, 5, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	recv.Deliver(0, []byte("wrong"), true)

	select {
	case ack := <-ackSender.acks:
		require.Equal(t, domain.AckRejected, ack.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack")
	}

	f, ok, err := store.LoadFile(context.Background(), fileID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.FileFailed, f.State)
}

func TestSender_ResumesAtOffset(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	content := make([]byte, 100)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(src, content, 0o644))

	dest := filepath.Join(dir, "dest.bin")
	require.NoError(t, os.WriteFile(dest, content[:40], 0o644))

	hash, err := filexfer.HashFile(src)
	require.NoError(t, err)

	store := newFakeFileStore()
	fileID := domain.FileID("f3")
	store.files[fileID] = domain.File{ID: fileID, Hash: hash, Size: int64(len(content)), BytesTransferred: 40, State: domain.FileTransferring}

	ackSender := &fakeAckSender{acks: make(chan domain.Ack, 1)}
	sink := events.NewSink(16)
	recv, err := filexfer.NewReceiver(store, ackSender, sink, domain.SessionID{}, fileID, dest, 40, int64(len(content)), hash)
	require.NoError(t, err)

	writer := mux.New(8)
	reader := mux.New(8)
	out := writer.NewOutChannel()
	reader.RegisterConsumer(out.ID, recv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, server := loopbackStreams(t)
	go writer.RunWrite(ctx, client)
	go reader.RunRead(ctx, server)

	sender := filexfer.NewSender(out, store, sink, domain.SessionID{}, fileID, src, int64(len(content)), 16)
	require.NoError(t, sender.Run(ctx, 40))

	select {
	case ack := <-ackSender.acks:
		require.Equal(t, domain.AckOK, ack.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ack")
	}

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, content, got)
}
