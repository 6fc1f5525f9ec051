package framed_test

import (
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/framed"
	"darkspeak/internal/protoerr"
	"darkspeak/internal/streamcrypto"
)

func TestStream_WriteThenReadRoundTrip(t *testing.T) {
	require := require.New(t)

	clientConn, serverConn := net.Pipe()

	var key [streamcrypto.KeySize]byte
	push, header, err := streamcrypto.InitPush(key[:])
	require.NoError(err)
	pull, err := streamcrypto.InitPull(key[:], header)
	require.NoError(err)

	writer := framed.New(clientConn, push, nil, 0)
	reader := framed.New(serverConn, nil, pull, 0)
	writer.Enable()
	reader.Enable()

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- writer.WriteChunk(ctx, []byte("hello"), false)
	}()

	payload, final, err := reader.ReadChunk(ctx)
	require.NoError(err)
	require.False(final)
	require.Equal("hello", string(payload))
	require.NoError(<-done)
}

func TestStream_FinalChunkTransitionsToClosing(t *testing.T) {
	require := require.New(t)

	clientConn, serverConn := net.Pipe()

	var key [streamcrypto.KeySize]byte
	push, header, err := streamcrypto.InitPush(key[:])
	require.NoError(err)
	pull, err := streamcrypto.InitPull(key[:], header)
	require.NoError(err)

	writer := framed.New(clientConn, push, nil, 0)
	reader := framed.New(serverConn, nil, pull, 0)
	writer.Enable()
	reader.Enable()

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- writer.WriteChunk(ctx, []byte("bye"), true)
	}()

	_, final, err := reader.ReadChunk(ctx)
	require.NoError(err)
	require.True(final)
	require.Equal(framed.Closing, reader.State())
	require.NoError(<-done)
	require.Equal(framed.Closing, writer.State())

	err = writer.WriteChunk(ctx, []byte("oops"), false)
	require.Error(err)
	require.ErrorIs(err, protoerr.Protocol)
}

func TestStream_OversizeChunkRejected(t *testing.T) {
	require := require.New(t)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var key [streamcrypto.KeySize]byte
	pull, err := streamcrypto.InitPull(key[:], [streamcrypto.HeaderSize]byte{})
	require.NoError(err)

	const maxChunkBytes = 128
	reader := framed.New(serverConn, nil, pull, maxChunkBytes)
	reader.Enable()

	done := make(chan error, 1)
	go func() {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], maxChunkBytes+1)
		_, err := clientConn.Write(lenBuf[:])
		done <- err
	}()

	_, _, err = reader.ReadChunk(context.Background())
	require.Error(err)
	require.ErrorIs(err, protoerr.Protocol)
	require.ErrorIs(err, framed.ErrOversizeChunk)
	require.NoError(<-done)
}

func TestStream_DisabledRejectsReadWrite(t *testing.T) {
	require := require.New(t)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var key [streamcrypto.KeySize]byte
	push, _, err := streamcrypto.InitPush(key[:])
	require.NoError(err)

	writer := framed.New(clientConn, push, nil, 0)

	err = writer.WriteChunk(context.Background(), []byte("x"), false)
	require.Error(err)
	require.ErrorIs(err, protoerr.Protocol)

	reader := framed.New(serverConn, nil, nil, 0)
	_, _, err = reader.ReadChunk(context.Background())
	require.Error(err)
	require.ErrorIs(err, protoerr.Protocol)
}
