// stream_clock.go defines the per-stream timing state.

package synchronizer

import (
	"time"

	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/indicator"
	"github.com/xaionaro-go/typing"
)

// StreamClock is the timing state of one stream. It is created together
// with the synchronizer and mutated only by the Supply calls of its stream.
type StreamClock struct {
	LastDuration   time.Duration
	AccumulatedPTS time.Duration
	LastFrame      typing.Optional[*frame.Frame]
	LastArrival    time.Time
	InterArrival   indicator.MovingAverage[time.Duration]

	interArrivalValue time.Duration
}

func (c *StreamClock) observeArrival(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	if !c.LastArrival.IsZero() && at.After(c.LastArrival) {
		c.interArrivalValue = c.InterArrival.Update(at.Sub(c.LastArrival))
	}
	c.LastArrival = at
}
