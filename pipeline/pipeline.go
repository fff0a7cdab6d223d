// pipeline.go defines the capabilities the relay needs from a media pipeline.

// Package pipeline defines the opaque media pipeline the relay feeds: a pull-based
// consumer asking for data through need-data signals and reporting its
// condition through a message bus.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/avrelay/types"
)

// Buffer is one timed payload pushed into the pipeline.
type Buffer struct {
	Payload  []byte
	PTS      time.Duration
	Duration time.Duration
}

func (b Buffer) String() string {
	return fmt.Sprintf("Buffer(bytes:%d, pts:%v, dur:%v)", len(b.Payload), b.PTS, b.Duration)
}

// NeedDataHandler is invoked by the pipeline (on its own threads) when the
// input of the given stream wants one more buffer.
type NeedDataHandler func(ctx context.Context, stream types.StreamID) error

type Pusher interface {
	Push(ctx context.Context, stream types.StreamID, buf Buffer) error
}

type Pipeline interface {
	Pusher
	SetNeedDataHandler(handler NeedDataHandler)
	Start(ctx context.Context) error

	// Stop brings the pipeline to the null state.
	Stop(ctx context.Context) error

	Bus() <-chan Message
}
