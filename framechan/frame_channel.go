// frame_channel.go implements the bounded single-producer/single-consumer conduit
// carrying frames of one media kind from ingestion to the synchronizer.

// Package framechan provides FrameChannel, a bounded FIFO of frames with a
// non-blocking send side and a deadline-bounded receive side.
package framechan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/helpers/closuresignaler"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/xsync"
)

const DefaultCapacity = 16

var (
	ErrClosed  = errors.New("frame channel is closed")
	ErrFull    = errors.New("frame channel is full")
	ErrTimeout = errors.New("timed out waiting for a frame")
)

type FrameChannel struct {
	*closuresignaler.ClosureSignaler
	kind   types.Kind
	ch     chan *frame.Frame
	locker xsync.Mutex
}

func New(kind types.Kind, capacity int) *FrameChannel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FrameChannel{
		ClosureSignaler: closuresignaler.New(),
		kind:            kind,
		ch:              make(chan *frame.Frame, capacity),
	}
}

func (c *FrameChannel) String() string {
	return fmt.Sprintf("FrameChannel(%s, %d/%d)", c.kind, len(c.ch), cap(c.ch))
}

func (c *FrameChannel) Kind() types.Kind {
	return c.kind
}

func (c *FrameChannel) Len() int {
	return len(c.ch)
}

func (c *FrameChannel) Cap() int {
	return cap(c.ch)
}

// TrySend enqueues the frame without blocking. The ownership of the frame
// passes to the receiver only if the returned error is nil.
func (c *FrameChannel) TrySend(ctx context.Context, f *frame.Frame) error {
	return xsync.DoA2R1(ctx, &c.locker, c.trySendLocked, ctx, f)
}

func (c *FrameChannel) trySendLocked(ctx context.Context, f *frame.Frame) error {
	if c.IsClosed() {
		return ErrClosed
	}
	select {
	case c.ch <- f:
		logger.Tracef(ctx, "enqueued %s into %s", f, c)
		return nil
	default:
		return ErrFull
	}
}

// Recv waits for the next frame at most for the given timeout.
//
// Frames enqueued before Close are still delivered; ErrClosed is returned
// only once the channel is closed and drained.
func (c *FrameChannel) Recv(ctx context.Context, timeout time.Duration) (*frame.Frame, error) {
	select {
	case f, ok := <-c.ch:
		if !ok {
			return nil, ErrClosed
		}
		return f, nil
	default:
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, ErrTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	case f, ok := <-c.ch:
		if !ok {
			return nil, ErrClosed
		}
		return f, nil
	}
}

// Close stops accepting frames; it is safe to call multiple times and
// concurrently with TrySend.
func (c *FrameChannel) Close(ctx context.Context) error {
	c.locker.Do(ctx, func() {
		if !c.ClosureSignaler.Close(ctx) {
			return
		}
		logger.Debugf(ctx, "closing %s", c)
		close(c.ch)
	})
	return nil
}
