package framechan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/types"
)

func TestFrameChannelFIFO(t *testing.T) {
	ctx := context.Background()
	c := New(types.KindVideo, 3)

	for i := byte(0); i < 3; i++ {
		require.NoError(t, c.TrySend(ctx, frame.NewVideo([]byte{i}, time.Time{})))
	}
	require.ErrorIs(t, c.TrySend(ctx, frame.NewVideo([]byte{3}, time.Time{})), ErrFull)
	require.Equal(t, 3, c.Len())

	for i := byte(0); i < 3; i++ {
		f, err := c.Recv(ctx, time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, []byte{i}, f.Payload)
	}
}

func TestFrameChannelRecvTimeout(t *testing.T) {
	ctx := context.Background()
	c := New(types.KindAudio, 1)

	startedAt := time.Now()
	_, err := c.Recv(ctx, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(startedAt), 20*time.Millisecond)

	_, err = c.Recv(ctx, 0)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestFrameChannelRecvCanceled(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	c := New(types.KindAudio, 1)
	_, err := c.Recv(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFrameChannelClose(t *testing.T) {
	ctx := context.Background()
	c := New(types.KindVideo, 2)
	require.NoError(t, c.TrySend(ctx, frame.NewVideo([]byte{1}, time.Time{})))
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))
	require.True(t, c.IsClosed())

	require.ErrorIs(t, c.TrySend(ctx, frame.NewVideo([]byte{2}, time.Time{})), ErrClosed)

	f, err := c.Recv(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, f.Payload)

	startedAt := time.Now()
	_, err = c.Recv(ctx, time.Second)
	require.ErrorIs(t, err, ErrClosed)
	require.Less(t, time.Since(startedAt), 500*time.Millisecond)
}

func TestFrameChannelCloseWhileSending(t *testing.T) {
	ctx := context.Background()
	c := New(types.KindAudio, 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 1000 {
			err := c.TrySend(ctx, frame.NewVideo([]byte{0}, time.Time{}))
			if err == ErrClosed {
				return
			}
		}
	}()
	go func() {
		for {
			if _, err := c.Recv(ctx, time.Millisecond); err == ErrClosed {
				return
			}
		}
	}()
	require.NoError(t, c.Close(ctx))
	wg.Wait()
}
