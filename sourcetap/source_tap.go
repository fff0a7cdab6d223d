// source_tap.go converts transport events into frames and forwards them to the frame channels.

// Package sourcetap is the ingestion side of the relay: it maps transport
// channels to media kinds, strips the video header and feeds the frame
// channels without ever blocking the transport.
package sourcetap

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/types"
)

type SourceTap struct {
	bindings    map[string]Binding
	outputs     map[types.StreamID]*framechan.FrameChannel
	audioFormat frame.AudioFormat
	metrics     *metrics.Metrics

	received  types.CountersSubSection
	forwarded types.CountersSubSection
	dropped   [endOfDropReason]types.CountersSubSection
	unbound   atomic.Uint64
}

func New(
	cfg Config,
	audioFormat frame.AudioFormat,
	video *framechan.FrameChannel,
	audio map[int]*framechan.FrameChannel,
	m *metrics.Metrics,
) (*SourceTap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if video == nil {
		return nil, fmt.Errorf("the video frame channel is required")
	}
	t := &SourceTap{
		bindings:    map[string]Binding{},
		outputs:     map[types.StreamID]*framechan.FrameChannel{types.VideoStream(): video},
		audioFormat: audioFormat,
		metrics:     m,
	}
	for sourceID, ch := range audio {
		t.outputs[types.AudioStream(sourceID)] = ch
	}
	for _, b := range cfg.Bindings() {
		if t.outputs[b.Stream()] == nil {
			return nil, fmt.Errorf("no frame channel for %s (channel '%s')", b.Stream(), b.Channel)
		}
		t.bindings[b.Channel] = b
	}
	return t, nil
}

func (t *SourceTap) String() string {
	return fmt.Sprintf("SourceTap(channels:%d)", len(t.bindings))
}

// Channels returns the transport channels the tap expects events from.
func (t *SourceTap) Channels() []string {
	result := make([]string, 0, len(t.bindings))
	for _, b := range t.bindings {
		result = append(result, b.Channel)
	}
	return result
}

func (t *SourceTap) HandleEvent(ctx context.Context, ev transport.Event) {
	t.onEvent(ctx, ev.Channel, ev.Payload, ev.ReceivedAt)
}

// OnEvent handles one decoded payload. Events which cannot be forwarded are
// dropped and counted; OnEvent never blocks and never fails.
func (t *SourceTap) OnEvent(ctx context.Context, channel string, payload []byte) {
	t.onEvent(ctx, channel, payload, time.Now())
}

func (t *SourceTap) onEvent(
	ctx context.Context,
	channel string,
	payload []byte,
	receivedAt time.Time,
) {
	b, ok := t.bindings[channel]
	if !ok {
		t.unbound.Add(1)
		t.metrics.RecordTapDropped(types.KindUndefined, DropReasonUnbound.String())
		logger.Tracef(ctx, "ignoring an event from an unbound channel '%s'", channel)
		return
	}
	t.received.Increment(b.Kind, uint64(len(payload)))
	t.metrics.RecordTapReceived(b.Kind)

	var f *frame.Frame
	switch b.Kind {
	case types.KindVideo:
		if len(payload) < transport.VideoHeaderSize {
			t.drop(ctx, b.Kind, DropReasonMalformed, len(payload))
			return
		}
		f = frame.NewVideo(payload[transport.VideoHeaderSize:], receivedAt)
	case types.KindAudio:
		f = frame.NewAudio(payload, b.SourceID, t.audioFormat, receivedAt)
	default:
		panic(fmt.Errorf("unexpected kind %s of binding %#+v", b.Kind, b))
	}

	err := t.outputs[b.Stream()].TrySend(ctx, f)
	switch {
	case err == nil:
		t.forwarded.Increment(b.Kind, uint64(f.Size()))
		t.metrics.RecordTapForwarded(b.Kind)
		logger.Tracef(ctx, "forwarded %s", f)
	case errors.Is(err, framechan.ErrFull):
		t.drop(ctx, b.Kind, DropReasonFull, len(payload))
	case errors.Is(err, framechan.ErrClosed):
		t.drop(ctx, b.Kind, DropReasonClosed, len(payload))
	default:
		logger.Errorf(ctx, "unexpected error while forwarding %s: %v", f, err)
	}
}

func (t *SourceTap) drop(
	ctx context.Context,
	kind types.Kind,
	reason DropReason,
	size int,
) {
	logger.Debugf(ctx, "dropping a %s event of %s: %s", kind, humanize.Bytes(uint64(size)), reason)
	t.dropped[reason].Increment(kind, uint64(size))
	t.metrics.RecordTapDropped(kind, reason.String())
}

type Stats struct {
	Received  types.StatisticsSubSection
	Forwarded types.StatisticsSubSection
	Dropped   map[DropReason]types.StatisticsSubSection
	Unbound   uint64
}

func (t *SourceTap) Stats() Stats {
	result := Stats{
		Received:  t.received.ToStats(),
		Forwarded: t.forwarded.ToStats(),
		Dropped:   map[DropReason]types.StatisticsSubSection{},
		Unbound:   t.unbound.Load(),
	}
	for reason := DropReasonMalformed; reason < endOfDropReason; reason++ {
		result.Dropped[reason] = t.dropped[reason].ToStats()
	}
	return result
}
