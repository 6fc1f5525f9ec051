package handshake_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/crypto"
	"darkspeak/internal/handshake"
)

func TestHandshake_RoundTrip(t *testing.T) {
	require := require.New(t)

	client, err := crypto.GenerateIdentity()
	require.NoError(err)
	server, err := crypto.GenerateIdentity()
	require.NoError(err)

	hello, clientPush, err := handshake.BuildHello(client, server.Public)
	require.NoError(err)
	require.Len(hello.MarshalBinary(), handshake.HelloSize)

	_, serverPull, err := handshake.VerifyHello(hello.MarshalBinary(), server.Public, nil)
	require.NoError(err)

	olleh, serverPush, err := handshake.BuildOlleh(server, client.Public)
	require.NoError(err)
	require.Len(olleh.MarshalBinary(), handshake.OllehSize)

	_, clientPull, err := handshake.VerifyOlleh(olleh.MarshalBinary(), server.Public, client.Public)
	require.NoError(err)

	chunk, err := clientPush.Push([]byte("ping"), 0)
	require.NoError(err)
	pt, _, err := serverPull.Pull(chunk)
	require.NoError(err)
	require.Equal("ping", string(pt))

	chunk, err = serverPush.Push([]byte("pong"), 0)
	require.NoError(err)
	pt, _, err = clientPull.Pull(chunk)
	require.NoError(err)
	require.Equal("pong", string(pt))
}

func TestHandshake_WrongExpectedClientRejected(t *testing.T) {
	require := require.New(t)

	client, err := crypto.GenerateIdentity()
	require.NoError(err)
	impostor, err := crypto.GenerateIdentity()
	require.NoError(err)
	server, err := crypto.GenerateIdentity()
	require.NoError(err)

	hello, _, err := handshake.BuildHello(client, server.Public)
	require.NoError(err)

	expected := impostor.Public
	_, _, err = handshake.VerifyHello(hello.MarshalBinary(), server.Public, &expected)
	require.ErrorIs(err, handshake.ErrIdentityMismatch)
}

func TestHandshake_TamperedSignatureRejected(t *testing.T) {
	require := require.New(t)

	client, err := crypto.GenerateIdentity()
	require.NoError(err)
	server, err := crypto.GenerateIdentity()
	require.NoError(err)

	hello, _, err := handshake.BuildHello(client, server.Public)
	require.NoError(err)

	raw := hello.MarshalBinary()
	raw[len(raw)-1] ^= 0xFF

	_, _, err = handshake.VerifyHello(raw, server.Public, nil)
	require.ErrorIs(err, handshake.ErrSignature)
}

func TestHandshake_ShortMessageRejected(t *testing.T) {
	require := require.New(t)

	server, err := crypto.GenerateIdentity()
	require.NoError(err)

	_, _, err = handshake.VerifyHello([]byte{1, 2, 3}, server.Public, nil)
	require.Error(err)
	var hsErr *handshake.HandshakeError
	require.ErrorAs(err, &hsErr)
	require.ErrorIs(hsErr.Err, handshake.ErrShortRead)
}

func TestHandshake_WrongVersionRejected(t *testing.T) {
	require := require.New(t)

	client, err := crypto.GenerateIdentity()
	require.NoError(err)
	server, err := crypto.GenerateIdentity()
	require.NoError(err)

	hello, _, err := handshake.BuildHello(client, server.Public)
	require.NoError(err)

	raw := hello.MarshalBinary()
	raw[0] = 99

	_, _, err = handshake.VerifyHello(raw, server.Public, nil)
	require.Error(err)
	var hsErr *handshake.HandshakeError
	require.ErrorAs(err, &hsErr)
	require.ErrorIs(hsErr.Err, handshake.ErrVersion)
}
