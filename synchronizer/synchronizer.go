// synchronizer.go implements the frame supply engine: per-stream clocks, deadline-bounded
// receiving, repeat/placeholder substitution and audio/video drift correction.

// Package synchronizer decides which frame and which timing is handed to the
// pipeline every time it asks for more data.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/indicator"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type stream struct {
	ID                  types.StreamID
	Input               *framechan.FrameChannel
	Placeholder         *frame.Frame
	PlaceholderDuration time.Duration

	// SupplyLocker serializes the Supply calls of the stream.
	SupplyLocker xsync.Mutex

	// Clock is guarded by Synchronizer.DriftLocker.
	Clock StreamClock

	ClosedReported atomic.Bool
	Counters       streamCounters
}

type Synchronizer struct {
	Config      Config
	AudioFormat frame.AudioFormat

	// DriftLocker is the single point where the streams meet.
	DriftLocker xsync.Mutex

	video   *stream
	audio   []*stream
	streams map[types.StreamID]*stream
	metrics *metrics.Metrics
}

func New(
	cfg Config,
	audioFormat frame.AudioFormat,
	videoPlaceholder *frame.Frame,
	video *framechan.FrameChannel,
	audio map[int]*framechan.FrameChannel,
	m *metrics.Metrics,
) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := audioFormat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}
	if videoPlaceholder == nil || videoPlaceholder.Kind != types.KindVideo {
		return nil, fmt.Errorf("a video placeholder frame is required")
	}
	if video == nil {
		return nil, fmt.Errorf("the video frame channel is required")
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("at least one audio frame channel is required")
	}

	s := &Synchronizer{
		Config:      cfg,
		AudioFormat: audioFormat,
		streams:     map[types.StreamID]*stream{},
		metrics:     m,
	}

	var err error
	s.video, err = s.addStream(types.VideoStream(), video, videoPlaceholder, cfg.VideoFrameInterval)
	if err != nil {
		return nil, err
	}
	audioPlaceholder := frame.NewSilence(audioFormat, cfg.PlaceholderSamples)
	for _, sourceID := range slices.Sorted(maps.Keys(audio)) {
		input := audio[sourceID]
		if input == nil {
			return nil, fmt.Errorf("the frame channel of audio source %d is nil", sourceID)
		}
		st, err := s.addStream(types.AudioStream(sourceID), input, audioPlaceholder, audioFormat.Duration(audioPlaceholder.SampleCount))
		if err != nil {
			return nil, err
		}
		s.audio = append(s.audio, st)
	}
	return s, nil
}

func (s *Synchronizer) addStream(
	id types.StreamID,
	input *framechan.FrameChannel,
	placeholder *frame.Frame,
	placeholderDuration time.Duration,
) (*stream, error) {
	interArrival, err := indicator.New[time.Duration](s.Config.InterArrivalEstimator, s.Config.InterArrivalWindow)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the inter-arrival estimator: %w", err)
	}
	st := &stream{
		ID:                  id,
		Input:               input,
		Placeholder:         placeholder,
		PlaceholderDuration: placeholderDuration,
		Clock: StreamClock{
			LastDuration: placeholderDuration,
			InterArrival: interArrival,
		},
	}
	s.streams[id] = st
	return st, nil
}

func (s *Synchronizer) String() string {
	return fmt.Sprintf("Synchronizer(video:%v, threshold:%v)", s.Config.VideoFrameInterval, s.Config.DriftThreshold)
}

func (s *Synchronizer) stream(id types.StreamID) *stream {
	st, ok := s.streams[id]
	if !ok {
		panic(fmt.Errorf("unknown stream: %v", id))
	}
	return st
}

// Streams returns the supplied streams: video first, then the audio sources
// in ascending order of their ids.
func (s *Synchronizer) Streams() []types.StreamID {
	result := []types.StreamID{s.video.ID}
	for _, st := range s.audio {
		result = append(result, st.ID)
	}
	return result
}

// WaitBound returns how long the next Supply of the stream may wait for a fresh frame.
func (s *Synchronizer) WaitBound(ctx context.Context, id types.StreamID) time.Duration {
	st := s.stream(id)
	return xsync.DoR1(ctx, &s.DriftLocker, func() time.Duration {
		return st.Clock.LastDuration + s.Config.Slack
	})
}

// Supply returns the next frame of the stream together with its timing.
//
// It waits for a fresh frame at most WaitBound; if none is available the
// last frame is repeated, and if there is no last frame (or the source is
// gone for good) the placeholder is supplied. Supply never fails; it panics
// on a stream the synchronizer was not built with.
func (s *Synchronizer) Supply(ctx context.Context, id types.StreamID) Tick {
	st := s.stream(id)
	return xsync.DoA2R1(ctx, &st.SupplyLocker, s.supplyLocked, ctx, st)
}

func (s *Synchronizer) supplyLocked(ctx context.Context, st *stream) (_ret Tick) {
	logger.Tracef(ctx, "supply[%s]", st.ID)
	defer func() { logger.Tracef(ctx, "/supply[%s]: %s", st.ID, _ret) }()

	f, err := st.Input.Recv(ctx, s.WaitBound(ctx, st.ID))
	if err == nil {
		if duration, ok := s.nominalDuration(f); ok {
			return s.advance(ctx, st, f, duration, OriginFresh)
		}
		st.Counters.Malformed.Inc()
		logger.Debugf(ctx, "received a malformed %s frame: %s", st.ID, f)
		return s.miss(ctx, st, false)
	}

	switch {
	case errors.Is(err, framechan.ErrTimeout):
	case errors.Is(err, framechan.ErrClosed):
		if st.ClosedReported.CompareAndSwap(false, true) {
			logger.Warnf(ctx, "the %s source is gone, supplying placeholders from now on", st.ID)
		}
		return s.miss(ctx, st, true)
	default:
		logger.Debugf(ctx, "unable to receive a %s frame: %v", st.ID, err)
	}
	return s.miss(ctx, st, false)
}

func (s *Synchronizer) miss(ctx context.Context, st *stream, sourceClosed bool) Tick {
	if !sourceClosed {
		lastFrame := xsync.DoR1(ctx, &s.DriftLocker, func() typing.Optional[*frame.Frame] {
			return st.Clock.LastFrame
		})
		if lastFrame.IsSet() {
			f := lastFrame.Get()
			duration, _ := s.nominalDuration(f)
			return s.advance(ctx, st, f, duration, OriginRepeat)
		}
	}
	return s.advance(ctx, st, st.Placeholder, st.PlaceholderDuration, OriginPlaceholder)
}

// nominalDuration returns the duration of the frame without any drift correction;
// ok is false if the frame cannot be supplied.
func (s *Synchronizer) nominalDuration(f *frame.Frame) (_ time.Duration, ok bool) {
	if f == nil || len(f.Payload) == 0 {
		return 0, false
	}
	switch f.Kind {
	case types.KindVideo:
		return s.Config.VideoFrameInterval, true
	case types.KindAudio:
		if f.SampleCount <= 0 {
			return 0, false
		}
		return s.AudioFormat.Duration(f.SampleCount), true
	default:
		return 0, false
	}
}

func (s *Synchronizer) advance(
	ctx context.Context,
	st *stream,
	f *frame.Frame,
	nominal time.Duration,
	origin Origin,
) Tick {
	tick := xsync.DoR1(ctx, &s.DriftLocker, func() Tick {
		duration := s.correctedDurationLocked(st, s.referenceLocked(st), nominal)

		tick := Tick{
			Frame:    f,
			Duration: duration,
			PTS:      st.Clock.AccumulatedPTS,
			Origin:   origin,
			Boosted:  duration > nominal,
		}
		st.Clock.AccumulatedPTS += duration
		st.Clock.LastDuration = duration
		if origin == OriginFresh {
			st.Clock.LastFrame = typing.Opt(f)
			st.Clock.observeArrival(f.ReceivedAt)
		}
		s.metrics.SetDriftGap(s.gapLocked())
		return tick
	})

	st.Counters.observe(tick)
	s.metrics.RecordTick(st.ID.Kind, origin.String(), tick.Duration, tick.Boosted)
	if tick.Boosted {
		logger.Tracef(ctx, "boosted the %s tick from %v to %v", st.ID, nominal, tick.Duration)
	}
	return tick
}

// referenceLocked returns the stream the drift of st is measured against:
// audio sources follow video, and video follows the mixed audio.
func (s *Synchronizer) referenceLocked(st *stream) *stream {
	if st.ID.Kind == types.KindAudio {
		return s.video
	}
	return s.mixedAudioLocked()
}

// mixedAudioLocked returns the audio source with the least accumulated PTS;
// the mixer cannot output audio ahead of its slowest input.
func (s *Synchronizer) mixedAudioLocked() *stream {
	result := s.audio[0]
	for _, st := range s.audio[1:] {
		if st.Clock.AccumulatedPTS < result.Clock.AccumulatedPTS {
			result = st
		}
	}
	return result
}

// correctedDurationLocked stretches the nominal duration of a stream lagging
// behind its reference by more than the drift threshold. The boost is
// max(nominal, reference's last duration) + (gap - threshold), capped at
// nominal * MaxStretch; it lasts until the gap closes to the threshold.
func (s *Synchronizer) correctedDurationLocked(
	st *stream,
	ref *stream,
	nominal time.Duration,
) time.Duration {
	gap := ref.Clock.AccumulatedPTS - st.Clock.AccumulatedPTS
	if gap <= s.Config.DriftThreshold {
		return nominal
	}

	boosted := max(nominal, ref.Clock.LastDuration) + (gap - s.Config.DriftThreshold)
	return min(boosted, nominal*time.Duration(s.Config.MaxStretch))
}

// gapLocked is the video accumulated PTS minus the one of the mixed audio.
func (s *Synchronizer) gapLocked() time.Duration {
	return s.video.Clock.AccumulatedPTS - s.mixedAudioLocked().Clock.AccumulatedPTS
}

// Gap returns how far video is ahead of audio (negative if audio is ahead).
func (s *Synchronizer) Gap(ctx context.Context) time.Duration {
	return xsync.DoR1(ctx, &s.DriftLocker, s.gapLocked)
}
