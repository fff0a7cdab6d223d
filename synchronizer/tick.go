// tick.go defines the result of one Supply call.

package synchronizer

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/avrelay/frame"
)

type Origin int

const (
	OriginUndefined = Origin(iota)
	// OriginFresh means the frame was just received from the source.
	OriginFresh
	// OriginRepeat means the source missed its deadline and the last frame is repeated.
	OriginRepeat
	// OriginPlaceholder means no usable frame was available at all.
	OriginPlaceholder
)

func (o Origin) String() string {
	switch o {
	case OriginUndefined:
		return "<undefined>"
	case OriginFresh:
		return "fresh"
	case OriginRepeat:
		return "repeat"
	case OriginPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("<unknown:%d>", int(o))
	}
}

// Tick is a frame together with its timing. The frame must be treated as read-only:
// repeats and placeholders share it with the synchronizer.
type Tick struct {
	Frame    *frame.Frame
	Duration time.Duration
	PTS      time.Duration
	Origin   Origin
	Boosted  bool
}

func (t Tick) String() string {
	return fmt.Sprintf("Tick(%s, %s, pts:%v, dur:%v, boosted:%t)", t.Origin, t.Frame, t.PTS, t.Duration, t.Boosted)
}
