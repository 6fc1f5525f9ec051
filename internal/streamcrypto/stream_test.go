package streamcrypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/streamcrypto"
)

func TestStream_RoundTrip(t *testing.T) {
	require := require.New(t)

	var key [streamcrypto.KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	push, header, err := streamcrypto.InitPush(key[:])
	require.NoError(err)

	pull, err := streamcrypto.InitPull(key[:], header)
	require.NoError(err)

	chunk1, err := push.Push([]byte("hello"), streamcrypto.TagMessage)
	require.NoError(err)
	chunk2, err := push.Push([]byte("world"), streamcrypto.TagFinal)
	require.NoError(err)

	pt1, tag1, err := pull.Pull(chunk1)
	require.NoError(err)
	require.Equal(streamcrypto.TagMessage, tag1)
	require.Equal("hello", string(pt1))

	pt2, tag2, err := pull.Pull(chunk2)
	require.NoError(err)
	require.Equal(streamcrypto.TagFinal, tag2)
	require.Equal("world", string(pt2))

	_, _, err = pull.Pull(chunk2)
	require.ErrorIs(err, streamcrypto.ErrStreamClosed)
}

func TestStream_TamperedChunkFailsAuth(t *testing.T) {
	require := require.New(t)

	var key [streamcrypto.KeySize]byte
	push, header, err := streamcrypto.InitPush(key[:])
	require.NoError(err)
	pull, err := streamcrypto.InitPull(key[:], header)
	require.NoError(err)

	chunk, err := push.Push([]byte("payload"), streamcrypto.TagMessage)
	require.NoError(err)
	chunk[len(chunk)-1] ^= 0xFF

	_, _, err = pull.Pull(chunk)
	require.ErrorIs(err, streamcrypto.ErrAuth)
}

func TestStream_PushAfterFinalFails(t *testing.T) {
	require := require.New(t)

	var key [streamcrypto.KeySize]byte
	push, _, err := streamcrypto.InitPush(key[:])
	require.NoError(err)

	_, err = push.Push([]byte("last"), streamcrypto.TagFinal)
	require.NoError(err)

	_, err = push.Push([]byte("oops"), streamcrypto.TagMessage)
	require.ErrorIs(err, streamcrypto.ErrStreamClosed)
}

func TestStream_WrongKeySizeRejected(t *testing.T) {
	require := require.New(t)
	_, _, err := streamcrypto.InitPush(make([]byte, 10))
	require.ErrorIs(err, streamcrypto.ErrKeySize)
}
