// stats.go exposes the counters of the synchronizer.

package synchronizer

import (
	"context"
	"time"

	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type streamCounters struct {
	Fresh       atomic.Uint64
	Repeat      atomic.Uint64
	Placeholder atomic.Uint64
	Malformed   atomic.Uint64
	Boosted     atomic.Uint64
}

func (c *streamCounters) observe(tick Tick) {
	switch tick.Origin {
	case OriginFresh:
		c.Fresh.Inc()
	case OriginRepeat:
		c.Repeat.Inc()
	case OriginPlaceholder:
		c.Placeholder.Inc()
	}
	if tick.Boosted {
		c.Boosted.Inc()
	}
}

type StreamStats struct {
	Fresh          uint64
	Repeat         uint64
	Placeholder    uint64
	Malformed      uint64
	Boosted        uint64
	AccumulatedPTS time.Duration
	LastDuration   time.Duration
	InterArrival   time.Duration
	SourceClosed   bool
}

type Stats struct {
	Video StreamStats
	// Audio is keyed by the audio source id.
	Audio map[int]StreamStats
	Gap   time.Duration
}

func (s Stats) Get(id types.StreamID) StreamStats {
	switch id.Kind {
	case types.KindVideo:
		return s.Video
	case types.KindAudio:
		return s.Audio[id.SourceID]
	default:
		return StreamStats{}
	}
}

func (s *Synchronizer) Stats(ctx context.Context) Stats {
	return xsync.DoR1(ctx, &s.DriftLocker, func() Stats {
		result := Stats{
			Video: s.streamStatsLocked(s.video),
			Audio: make(map[int]StreamStats, len(s.audio)),
			Gap:   s.gapLocked(),
		}
		for _, st := range s.audio {
			result.Audio[st.ID.SourceID] = s.streamStatsLocked(st)
		}
		return result
	})
}

func (s *Synchronizer) streamStatsLocked(st *stream) StreamStats {
	return StreamStats{
		Fresh:          st.Counters.Fresh.Load(),
		Repeat:         st.Counters.Repeat.Load(),
		Placeholder:    st.Counters.Placeholder.Load(),
		Malformed:      st.Counters.Malformed.Load(),
		Boosted:        st.Counters.Boosted.Load(),
		AccumulatedPTS: st.Clock.AccumulatedPTS,
		LastDuration:   st.Clock.LastDuration,
		InterArrival:   st.Clock.interArrivalValue,
		SourceClosed:   st.ClosedReported.Load(),
	}
}
