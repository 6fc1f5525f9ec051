package control_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"darkspeak/internal/control"
	"darkspeak/internal/domain"
	"darkspeak/internal/framed"
	"darkspeak/internal/mux"
	"darkspeak/internal/streamcrypto"
)

// loopbackStreams wires a pair of framed.Stream over net.Pipe sharing one
// AEAD key, mirroring internal/mux's own test fixture.
func loopbackStreams(t *testing.T) (*framed.Stream, *framed.Stream) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	var key [streamcrypto.KeySize]byte
	key[0] = 7

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

// TestEnvelopeRoundTrip feeds a hand-written JSON envelope straight into
// Receiver.Deliver, without a Sender or a real transport, confirming JSON
// decoding and dispatch-by-type.
func TestEnvelopeRoundTrip(t *testing.T) {
	received := make(chan domain.Message, 1)
	recv := control.NewReceiver(control.Handlers{
		OnMessage: func(_ domain.RequestID, m domain.Message) {
			received <- m
		},
	}, zerolog.Nop())

	payload := []byte(`{"type":"Message","message":{"conversation":"alice","content":"hi","timestamp":1754179200}}`)
	recv.Deliver(1, payload, false)

	select {
	case m := <-received:
		require.Equal(t, "alice", m.Conversation)
		require.Equal(t, "hi", m.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestReceiver_UnknownTypeIsDropped(t *testing.T) {
	called := false
	recv := control.NewReceiver(control.Handlers{
		OnMessage: func(_ domain.RequestID, _ domain.Message) { called = true },
	}, zerolog.Nop())

	recv.Deliver(1, []byte(`{"type":"something_new"}`), false)
	require.False(t, called)
}

func TestReceiver_MalformedJSONIsDropped(t *testing.T) {
	called := false
	recv := control.NewReceiver(control.Handlers{
		OnMessage: func(_ domain.RequestID, _ domain.Message) { called = true },
	}, zerolog.Nop())

	recv.Deliver(1, []byte(`not json`), false)
	require.False(t, called)
}

func TestSender_RequestIDsAreMonotonic(t *testing.T) {
	writer := mux.New(8)
	reader := mux.New(8)

	var gotReqIDs []domain.RequestID
	done := make(chan struct{}, 2)
	recv := control.NewReceiver(control.Handlers{
		OnMessage: func(reqID domain.RequestID, _ domain.Message) {
			gotReqIDs = append(gotReqIDs, reqID)
			done <- struct{}{}
		},
	}, zerolog.Nop())
	reader.RegisterConsumer(domain.ControlChannel, recv)

	sender := control.NewSender(writer.Control())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, server := loopbackStreams(t)
	go writer.RunWrite(ctx, client)
	go reader.RunRead(ctx, server)

	id1, err := sender.SendMessage(ctx, domain.Message{Conversation: "a", Content: "one"})
	require.NoError(t, err)
	id2, err := sender.SendMessage(ctx, domain.Message{Conversation: "a", Content: "two"})
	require.NoError(t, err)

	require.Equal(t, domain.RequestID(1), id1)
	require.Equal(t, domain.RequestID(2), id2)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
	require.Equal(t, []domain.RequestID{1, 2}, gotReqIDs)
}
