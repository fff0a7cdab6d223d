// closure_signaler.go provides a close-once signal for resources shared between goroutines.

// Package closuresignaler provides a close-once signal for resources shared between goroutines.
package closuresignaler

import (
	"context"
	"sync"

	"github.com/xaionaro-go/avrelay/logger"
)

type ClosureSignaler struct {
	closeOnce sync.Once
	c         chan struct{}
}

func New() *ClosureSignaler {
	return &ClosureSignaler{
		c: make(chan struct{}),
	}
}

// CloseChan is closed as soon as Close is called for the first time.
func (c *ClosureSignaler) CloseChan() <-chan struct{} {
	return c.c
}

// Close fires the signal; it returns true only for the call which actually fired it.
func (c *ClosureSignaler) Close(ctx context.Context) bool {
	fired := false
	c.closeOnce.Do(func() {
		logger.Tracef(ctx, "closing the signal")
		close(c.c)
		fired = true
	})
	return fired
}

func (c *ClosureSignaler) IsClosed() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}
