package mux_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/domain"
	"darkspeak/internal/framed"
	"darkspeak/internal/mux"
	"darkspeak/internal/protoerr"
	"darkspeak/internal/streamcrypto"
)

func pairedStreams(t *testing.T) (*framed.Stream, *framed.Stream) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	var key [streamcrypto.KeySize]byte
	key[0] = 9

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

type captureConsumer struct {
	ch chan []byte
}

func (c *captureConsumer) Deliver(_ domain.RequestID, payload []byte, _ bool) {
	c.ch <- append([]byte(nil), payload...)
}

func TestMux_ChannelRoundTrip(t *testing.T) {
	client, server := pairedStreams(t)

	writer := mux.New(8)
	reader := mux.New(8)

	consumer := &captureConsumer{ch: make(chan []byte, 1)}
	reader.RegisterConsumer(domain.ControlChannel, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go writer.RunWrite(ctx, client)
	go reader.RunRead(ctx, server)

	ctrl := writer.Control()
	require.NoError(t, ctrl.Send(ctx, 1, []byte("hello"), false))

	select {
	case got := <-consumer.ch:
		require.True(t, bytes.Equal(got, []byte("hello")))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMux_UnknownChannelIsProtocolError(t *testing.T) {
	client, server := pairedStreams(t)

	writer := mux.New(8)
	reader := mux.New(8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go writer.RunWrite(ctx, client)
	go func() { errCh <- reader.RunRead(ctx, server) }()

	out := writer.NewOutChannel() // id 1, never registered on the reader
	require.NoError(t, out.Send(ctx, 1, []byte("data"), false))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, mux.ErrUnknownChannel)
		require.ErrorIs(t, err, protoerr.Protocol)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for protocol error")
	}
}

func TestMux_FinalClosesNonzeroChannelOnly(t *testing.T) {
	client, server := pairedStreams(t)

	writer := mux.New(8)
	reader := mux.New(8)

	fileConsumer := &captureConsumer{ch: make(chan []byte, 2)}
	out := writer.NewOutChannel()
	reader.RegisterConsumer(out.ID, fileConsumer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go writer.RunWrite(ctx, client)
	go reader.RunRead(ctx, server)

	require.NoError(t, out.Send(ctx, 1, []byte("chunk"), true))
	<-fileConsumer.ch

	err := out.Send(ctx, 2, []byte("more"), false)
	require.ErrorIs(t, err, mux.ErrChannelClosed)
}
