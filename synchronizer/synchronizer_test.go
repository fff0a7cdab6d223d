package synchronizer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/types"
)

type testEnv struct {
	Sync    *Synchronizer
	Video   *framechan.FrameChannel
	Audio   *framechan.FrameChannel
	Metrics *metrics.Metrics
}

var (
	testVideoPlaceholder = frame.NewVideo([]byte("placeholder"), time.Time{})
	testVideo            = types.VideoStream()
	testAudio            = types.AudioStream(1)
)

func newTestEnv(t *testing.T, cfg Config, capacity int) testEnv {
	env := testEnv{
		Video:   framechan.New(types.KindVideo, capacity),
		Audio:   framechan.New(types.KindAudio, capacity),
		Metrics: metrics.New(prometheus.NewRegistry()),
	}
	var err error
	env.Sync, err = New(
		cfg, frame.DefaultAudioFormat(), testVideoPlaceholder,
		env.Video, map[int]*framechan.FrameChannel{testAudio.SourceID: env.Audio},
		env.Metrics,
	)
	require.NoError(t, err)
	return env
}

func audioFrame(samples int) *frame.Frame {
	return audioSourceFrame(1, samples)
}

func audioSourceFrame(sourceID int, samples int) *frame.Frame {
	return frame.NewAudio(make([]byte, samples*2), sourceID, frame.DefaultAudioFormat(), time.Now())
}

func videoFrame(content string) *frame.Frame {
	return frame.NewVideo([]byte(content), time.Now())
}

func TestAudioDuration(t *testing.T) {
	ctx := context.Background()
	for _, samples := range []int{1, 480, 1024, 1104, 4096, 44100, 48000} {
		env := newTestEnv(t, DefaultConfig(), 1)
		require.NoError(t, env.Audio.TrySend(ctx, audioFrame(samples)))

		tick := env.Sync.Supply(ctx, testAudio)
		require.Equal(t, OriginFresh, tick.Origin)
		require.Equal(t, time.Duration(samples)*time.Second/48000, tick.Duration, "samples: %d", samples)
	}

	env := newTestEnv(t, DefaultConfig(), 1)
	require.NoError(t, env.Audio.TrySend(ctx, frame.NewAudio(make([]byte, 2048), 1, frame.DefaultAudioFormat(), time.Now())))
	require.Equal(t, 21333333*time.Nanosecond, env.Sync.Supply(ctx, testAudio).Duration)
}

func TestRepeatOnMiss(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 4)

	f := videoFrame("A")
	require.NoError(t, env.Video.TrySend(ctx, f))
	tick := env.Sync.Supply(ctx, testVideo)
	require.Equal(t, OriginFresh, tick.Origin)
	require.Same(t, f, tick.Frame)

	bound := env.Sync.WaitBound(ctx, testVideo)
	require.Equal(t, time.Second/30+5*time.Millisecond, bound)

	startedAt := time.Now()
	tick = env.Sync.Supply(ctx, testVideo)
	elapsed := time.Since(startedAt)
	require.Equal(t, OriginRepeat, tick.Origin)
	require.Same(t, f, tick.Frame)
	require.Equal(t, time.Second/30, tick.Duration)
	require.GreaterOrEqual(t, elapsed, bound)

	stats := env.Sync.Stats(ctx)
	require.Equal(t, uint64(1), stats.Video.Fresh)
	require.Equal(t, uint64(1), stats.Video.Repeat)
	require.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.Ticks.WithLabelValues("video", "repeat")))
}

func TestPlaceholderNotStored(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 4)

	tick := env.Sync.Supply(ctx, testAudio)
	require.Equal(t, OriginPlaceholder, tick.Origin)
	require.False(t, env.Sync.stream(testAudio).Clock.LastFrame.IsSet())

	f := audioFrame(480)
	require.NoError(t, env.Audio.TrySend(ctx, f))
	require.Equal(t, OriginFresh, env.Sync.Supply(ctx, testAudio).Origin)

	tick = env.Sync.Supply(ctx, testAudio)
	require.Equal(t, OriginRepeat, tick.Origin)
	require.Same(t, f, tick.Frame)
	require.Equal(t, 10*time.Millisecond, tick.Duration)

	require.NoError(t, env.Audio.Close(ctx))
	tick = env.Sync.Supply(ctx, testAudio)
	require.Equal(t, OriginPlaceholder, tick.Origin)
	require.Same(t, f, env.Sync.stream(testAudio).Clock.LastFrame.Get())
}

func TestPlaceholderOnNeverFedStream(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 1)

	var prevPTS time.Duration
	for idx := range 3 {
		tick := env.Sync.Supply(ctx, testVideo)
		require.Equal(t, OriginPlaceholder, tick.Origin)
		require.Same(t, testVideoPlaceholder, tick.Frame)
		require.Equal(t, []byte("placeholder"), tick.Frame.Payload)
		require.Equal(t, time.Second/30, tick.Duration)
		require.Equal(t, time.Duration(idx)*time.Second/30, tick.PTS)
		require.GreaterOrEqual(t, tick.PTS, prevPTS)
		prevPTS = tick.PTS
	}

	tick := env.Sync.Supply(ctx, testAudio)
	require.Equal(t, OriginPlaceholder, tick.Origin)
	require.Len(t, tick.Frame.Payload, frame.DefaultPlaceholderSamples*2)
	require.Equal(t, make([]byte, frame.DefaultPlaceholderSamples*2), tick.Frame.Payload)
	require.Equal(t, 21333333*time.Nanosecond, tick.Duration)
}

func TestClosedChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 4)
	require.NoError(t, env.Audio.Close(ctx))

	var placeholder *frame.Frame
	for range 5 {
		bound := env.Sync.WaitBound(ctx, testAudio)
		startedAt := time.Now()
		tick := env.Sync.Supply(ctx, testAudio)
		require.Less(t, time.Since(startedAt), bound)

		require.Equal(t, OriginPlaceholder, tick.Origin)
		if placeholder == nil {
			placeholder = tick.Frame
		}
		require.Same(t, placeholder, tick.Frame)
	}

	stats := env.Sync.Stats(ctx)
	require.Equal(t, uint64(5), stats.Audio[1].Placeholder)
	require.True(t, stats.Audio[1].SourceClosed)
	require.Equal(t, 5*frame.DefaultAudioFormat().Duration(frame.DefaultPlaceholderSamples), stats.Audio[1].AccumulatedPTS)
}

func TestMalformedAudio(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 4)

	f := audioFrame(100)
	require.NoError(t, env.Audio.TrySend(ctx, f))
	require.NoError(t, env.Audio.TrySend(ctx, frame.NewAudio(make([]byte, 3), 1, frame.DefaultAudioFormat(), time.Now())))
	require.NoError(t, env.Audio.TrySend(ctx, frame.NewAudio(nil, 1, frame.DefaultAudioFormat(), time.Now())))

	require.Equal(t, OriginFresh, env.Sync.Supply(ctx, testAudio).Origin)
	for range 2 {
		tick := env.Sync.Supply(ctx, testAudio)
		require.Equal(t, OriginRepeat, tick.Origin)
		require.Same(t, f, tick.Frame)
	}
	require.Equal(t, uint64(2), env.Sync.Stats(ctx).Audio[1].Malformed)
}

func TestPTSContinuity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 8)

	require.NoError(t, env.Audio.TrySend(ctx, audioFrame(960)))
	require.NoError(t, env.Audio.TrySend(ctx, audioFrame(480)))

	var next time.Duration
	for range 4 {
		tick := env.Sync.Supply(ctx, testAudio)
		require.Equal(t, next, tick.PTS)
		next = tick.PTS + tick.Duration
	}
	require.Equal(t, next, env.Sync.Stats(ctx).Audio[1].AccumulatedPTS)
}

func TestInterArrival(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DefaultConfig(), 8)

	base := time.Now()
	for idx := range 4 {
		f := frame.NewVideo([]byte{1}, base.Add(time.Duration(idx)*20*time.Millisecond))
		require.NoError(t, env.Video.TrySend(ctx, f))
	}
	for range 4 {
		require.Equal(t, OriginFresh, env.Sync.Supply(ctx, testVideo).Origin)
	}
	require.Equal(t, 20*time.Millisecond, env.Sync.Stats(ctx).Video.InterArrival)
}

func TestDriftCorrection(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.VideoFrameInterval = 33 * time.Millisecond
	const (
		cycles       = 300
		audioSamples = 1104 // 23ms at 48kHz
	)
	nominalAudio := frame.DefaultAudioFormat().Duration(audioSamples)
	require.Equal(t, 23*time.Millisecond, nominalAudio)

	env := newTestEnv(t, cfg, cycles)
	for range cycles {
		require.NoError(t, env.Video.TrySend(ctx, videoFrame("v")))
		require.NoError(t, env.Audio.TrySend(ctx, audioFrame(audioSamples)))
	}

	var (
		boostedTicks   int
		violations     int
		videoPTSTotal  time.Duration
		audioPTSTotal  time.Duration
		maxAllowedDiff = cfg.DriftThreshold + cfg.VideoFrameInterval
	)
	checkGap := func() {
		gap := videoPTSTotal - audioPTSTotal
		if gap > maxAllowedDiff || -gap > maxAllowedDiff {
			violations++
		}
	}
	for range cycles {
		v := env.Sync.Supply(ctx, testVideo)
		require.Equal(t, OriginFresh, v.Origin)
		require.False(t, v.Boosted)
		require.Equal(t, cfg.VideoFrameInterval, v.Duration)
		videoPTSTotal = v.PTS + v.Duration
		checkGap()

		a := env.Sync.Supply(ctx, testAudio)
		require.Equal(t, OriginFresh, a.Origin)
		require.Equal(t, audioPTSTotal, a.PTS)
		gapBefore := videoPTSTotal - a.PTS
		if gapBefore > cfg.DriftThreshold {
			require.True(t, a.Boosted, "gap: %v", gapBefore)
			require.Greater(t, a.Duration, nominalAudio)
			require.LessOrEqual(t, a.Duration, nominalAudio*time.Duration(cfg.MaxStretch))
			boostedTicks++
		} else {
			require.False(t, a.Boosted, "gap: %v", gapBefore)
			require.Equal(t, nominalAudio, a.Duration)
		}
		audioPTSTotal = a.PTS + a.Duration
		checkGap()
	}

	assert.Greater(t, boostedTicks, 0)
	assert.LessOrEqual(t, violations, 1)
	stats := env.Sync.Stats(ctx)
	require.Equal(t, videoPTSTotal-audioPTSTotal, stats.Gap)
	require.LessOrEqual(t, stats.Gap, maxAllowedDiff)
	require.Equal(t, uint64(boostedTicks), stats.Audio[1].Boosted)
	require.InDelta(t, stats.Gap.Seconds(), testutil.ToFloat64(env.Metrics.DriftGap), 1e-9)
}

func TestDriftCorrectionVideoBehind(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.VideoFrameInterval = 33 * time.Millisecond
	const (
		cycles       = 300
		audioSamples = 4096
	)
	nominalAudio := frame.DefaultAudioFormat().Duration(audioSamples)
	require.Equal(t, 85333333*time.Nanosecond, nominalAudio)
	maxVideo := cfg.VideoFrameInterval * time.Duration(cfg.MaxStretch)

	env := newTestEnv(t, cfg, cycles)
	for range cycles {
		require.NoError(t, env.Video.TrySend(ctx, videoFrame("v")))
		require.NoError(t, env.Audio.TrySend(ctx, audioFrame(audioSamples)))
	}

	var (
		boostedTicks   int
		violations     int
		videoPTSTotal  time.Duration
		audioPTSTotal  time.Duration
		maxAllowedDiff = cfg.DriftThreshold + nominalAudio
	)
	checkGap := func() {
		gap := videoPTSTotal - audioPTSTotal
		if gap > maxAllowedDiff || -gap > maxAllowedDiff {
			violations++
		}
	}
	for range cycles {
		v := env.Sync.Supply(ctx, testVideo)
		require.Equal(t, OriginFresh, v.Origin)
		require.Equal(t, videoPTSTotal, v.PTS)
		gapBefore := audioPTSTotal - v.PTS
		if gapBefore > cfg.DriftThreshold {
			require.True(t, v.Boosted, "gap: %v", gapBefore)
			require.Greater(t, v.Duration, cfg.VideoFrameInterval)
			require.LessOrEqual(t, v.Duration, maxVideo)
			boostedTicks++
		} else {
			require.False(t, v.Boosted, "gap: %v", gapBefore)
			require.Equal(t, cfg.VideoFrameInterval, v.Duration)
		}
		videoPTSTotal = v.PTS + v.Duration
		checkGap()

		a := env.Sync.Supply(ctx, testAudio)
		require.Equal(t, OriginFresh, a.Origin)
		require.False(t, a.Boosted)
		require.Equal(t, nominalAudio, a.Duration)
		audioPTSTotal = a.PTS + a.Duration
		checkGap()
	}

	assert.Greater(t, boostedTicks, 0)
	assert.Zero(t, violations)
	stats := env.Sync.Stats(ctx)
	require.Equal(t, videoPTSTotal-audioPTSTotal, stats.Gap)
	require.Equal(t, uint64(boostedTicks), stats.Video.Boosted)
	require.Zero(t, stats.Audio[1].Boosted)
}

func newMultiSourceEnv(t *testing.T, cfg Config, capacity int, sourceIDs ...int) (*Synchronizer, *framechan.FrameChannel, map[int]*framechan.FrameChannel) {
	video := framechan.New(types.KindVideo, capacity)
	audio := map[int]*framechan.FrameChannel{}
	for _, sourceID := range sourceIDs {
		audio[sourceID] = framechan.New(types.KindAudio, capacity)
	}
	s, err := New(cfg, frame.DefaultAudioFormat(), testVideoPlaceholder, video, audio, metrics.New(prometheus.NewRegistry()))
	require.NoError(t, err)
	return s, video, audio
}

func TestMultipleAudioSources(t *testing.T) {
	ctx := context.Background()
	s, _, audio := newMultiSourceEnv(t, DefaultConfig(), 4, 2, 1)
	require.Equal(t, []types.StreamID{testVideo, types.AudioStream(1), types.AudioStream(2)}, s.Streams())

	chunk := 21333333 * time.Nanosecond
	for _, sourceID := range []int{1, 2} {
		require.NoError(t, audio[sourceID].TrySend(ctx, audioSourceFrame(sourceID, 1024)))
	}
	for _, sourceID := range []int{1, 2} {
		tick := s.Supply(ctx, types.AudioStream(sourceID))
		require.Equal(t, OriginFresh, tick.Origin)
		require.Equal(t, sourceID, tick.Frame.SourceID)
		require.Zero(t, tick.PTS, "source %d", sourceID)
		require.Equal(t, chunk, tick.Duration)
	}

	stats := s.Stats(ctx)
	require.Len(t, stats.Audio, 2)
	for _, sourceID := range []int{1, 2} {
		require.Equal(t, chunk, stats.Audio[sourceID].AccumulatedPTS)
		require.Equal(t, stats.Audio[sourceID], stats.Get(types.AudioStream(sourceID)))
	}
	require.Equal(t, -chunk, stats.Gap)

	require.Panics(t, func() { s.Supply(ctx, types.AudioStream(3)) })
}

func TestDriftAgainstSlowestAudioSource(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.VideoFrameInterval = 33 * time.Millisecond
	s, video, audio := newMultiSourceEnv(t, cfg, 16, 1, 2)

	for range 10 {
		require.NoError(t, audio[1].TrySend(ctx, audioSourceFrame(1, 4800)))
	}
	for range 10 {
		require.Equal(t, OriginFresh, s.Supply(ctx, types.AudioStream(1)).Origin)
	}
	stats := s.Stats(ctx)
	require.Equal(t, time.Second, stats.Audio[1].AccumulatedPTS)
	require.Zero(t, stats.Audio[2].AccumulatedPTS)
	require.Zero(t, stats.Gap)

	// the mixed audio is held back by source 2, so video is not stretched
	require.NoError(t, video.TrySend(ctx, videoFrame("v")))
	tick := s.Supply(ctx, testVideo)
	require.False(t, tick.Boosted)
	require.Equal(t, cfg.VideoFrameInterval, tick.Duration)

	// source 2 lags video by less than the threshold
	tick = s.Supply(ctx, types.AudioStream(2))
	require.Equal(t, OriginPlaceholder, tick.Origin)
	require.False(t, tick.Boosted)
	require.Equal(t, cfg.VideoFrameInterval-tick.Duration, s.Gap(ctx))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxStretch = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.VideoFrameInterval = 0
	require.Error(t, cfg.Validate())
}
