package sourcetap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/types"
)

func newTestTap(t *testing.T, capacity int) (*SourceTap, *framechan.FrameChannel, map[int]*framechan.FrameChannel, *metrics.Metrics) {
	video := framechan.New(types.KindVideo, capacity)
	audio := map[int]*framechan.FrameChannel{
		1: framechan.New(types.KindAudio, capacity),
		2: framechan.New(types.KindAudio, capacity),
	}
	m := metrics.New(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.AudioSourceIDs = []int{1, 2}
	tap, err := New(cfg, frame.DefaultAudioFormat(), video, audio, m)
	require.NoError(t, err)
	return tap, video, audio, m
}

func TestVideoHeaderStripping(t *testing.T) {
	ctx := context.Background()
	tap, video, _, _ := newTestTap(t, 4)

	for _, size := range []int{15, 16, 100, 4096} {
		payload := make([]byte, size)
		for idx := range payload {
			payload[idx] = byte(idx)
		}
		tap.OnEvent(ctx, DefaultVideoChannel, payload)

		f, err := video.Recv(ctx, time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, types.KindVideo, f.Kind)
		require.Len(t, f.Payload, size-transport.VideoHeaderSize)
		require.Equal(t, payload[transport.VideoHeaderSize:], f.Payload)
	}
}

func TestMalformedVideo(t *testing.T) {
	ctx := context.Background()
	tap, video, _, m := newTestTap(t, 4)

	tap.OnEvent(ctx, DefaultVideoChannel, make([]byte, transport.VideoHeaderSize-1))
	require.Zero(t, video.Len())
	require.Equal(t, uint64(1), tap.Stats().Dropped[DropReasonMalformed].Video.Count)
	require.Equal(t, 1.0, testutil.ToFloat64(m.TapDropped.WithLabelValues("video", "malformed")))
}

func TestAudioForwarding(t *testing.T) {
	ctx := context.Background()
	tap, _, audio, _ := newTestTap(t, 4)

	payload := make([]byte, 2048)
	tap.OnEvent(ctx, DefaultAudioChannelPrefix+"2", payload)
	require.Zero(t, audio[1].Len())

	f, err := audio[2].Recv(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, types.KindAudio, f.Kind)
	require.Equal(t, 2, f.SourceID)
	require.Equal(t, 1024, f.SampleCount)
	require.Len(t, f.Payload, 2048)

	stats := tap.Stats()
	require.Equal(t, uint64(1), stats.Received.Audio.Count)
	require.Equal(t, uint64(1), stats.Forwarded.Audio.Count)
	require.Equal(t, uint64(2048), stats.Forwarded.Audio.Bytes)
}

func TestUnboundChannel(t *testing.T) {
	ctx := context.Background()
	tap, video, audio, _ := newTestTap(t, 4)

	tap.OnEvent(ctx, "something-else", []byte{1, 2, 3})
	tap.OnEvent(ctx, DefaultAudioChannelPrefix+"3", []byte{1, 2})
	require.Zero(t, video.Len())
	require.Zero(t, audio[1].Len())
	require.Zero(t, audio[2].Len())
	require.Equal(t, uint64(2), tap.Stats().Unbound)
}

func TestDropOnFullAndClosed(t *testing.T) {
	ctx := context.Background()
	tap, _, audio, _ := newTestTap(t, 1)

	tap.OnEvent(ctx, DefaultAudioChannelPrefix+"1", make([]byte, 4))
	tap.OnEvent(ctx, DefaultAudioChannelPrefix+"1", make([]byte, 4))
	require.Equal(t, uint64(1), tap.Stats().Dropped[DropReasonFull].Audio.Count)

	tap.OnEvent(ctx, DefaultAudioChannelPrefix+"2", make([]byte, 4))
	require.Equal(t, 1, audio[2].Len())

	require.NoError(t, audio[1].Close(ctx))
	tap.HandleEvent(ctx, transport.Event{
		Channel:    DefaultAudioChannelPrefix + "1",
		Payload:    make([]byte, 4),
		ReceivedAt: time.Now(),
	})
	require.Equal(t, uint64(1), tap.Stats().Dropped[DropReasonClosed].Audio.Count)
}

func TestMissingAudioChannel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AudioSourceIDs = []int{1, 2}
	_, err := New(
		cfg, frame.DefaultAudioFormat(),
		framechan.New(types.KindVideo, 1),
		map[int]*framechan.FrameChannel{1: framechan.New(types.KindAudio, 1)},
		metrics.New(prometheus.NewRegistry()),
	)
	require.Error(t, err)
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, []Binding{
		{Channel: "return-video-feed", Kind: types.KindVideo},
		{Channel: "return-audio-feed-1", Kind: types.KindAudio, SourceID: 1},
	}, cfg.Bindings())

	require.Equal(t, types.AudioStream(1), cfg.Bindings()[1].Stream())
	require.Equal(t, types.VideoStream(), cfg.Bindings()[0].Stream())

	cfg.AudioSourceIDs = []int{1, 1}
	require.Error(t, cfg.Validate())

	cfg.AudioSourceIDs = nil
	require.Error(t, cfg.Validate())
}
