package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"darkspeak/internal/workerpool"
)

func TestPool_RunsTaskAndReturnsValue(t *testing.T) {
	pool := workerpool.New(2)
	ctx := context.Background()

	resCh := pool.Submit(ctx, func(context.Context) (interface{}, error) {
		return 42, nil
	})

	select {
	case res := <-resCh:
		require.NoError(t, res.Err)
		require.Equal(t, 42, res.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestPool_PropagatesTaskError(t *testing.T) {
	pool := workerpool.New(1)
	ctx := context.Background()
	boom := errors.New("boom")

	resCh := pool.Submit(ctx, func(context.Context) (interface{}, error) {
		return nil, boom
	})

	res := <-resCh
	require.ErrorIs(t, res.Err, boom)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := workerpool.New(2)
	ctx := context.Background()

	var running int32
	var maxRunning int32
	release := make(chan struct{})

	const tasks = 6
	chans := make([]<-chan workerpool.Result, tasks)
	for i := 0; i < tasks; i++ {
		chans[i] = pool.Submit(ctx, func(context.Context) (interface{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&maxRunning)
				if n <= old || atomic.CompareAndSwapInt32(&maxRunning, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return nil, nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))

	close(release)
	for _, ch := range chans {
		<-ch
	}
}

func TestPool_SubmitRespectsCanceledContext(t *testing.T) {
	pool := workerpool.New(1)

	// Occupy the only slot indefinitely.
	block := make(chan struct{})
	started := make(chan struct{})
	t.Cleanup(func() { close(block) })
	pool.Submit(context.Background(), func(context.Context) (interface{}, error) {
		close(started)
		<-block
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resCh := pool.Submit(ctx, func(context.Context) (interface{}, error) {
		return "should not run", nil
	})
	res := <-resCh
	require.ErrorIs(t, res.Err, context.Canceled)
}
