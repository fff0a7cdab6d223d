// relay.go wires the ingestion, synchronization and pipeline supervision together.

// Package avrelay relays live audio and video frames received over a pub/sub
// transport into a pull-based media pipeline, keeping the two streams in sync
// and substituting placeholders while a source is stalled.
package avrelay

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/pipeline"
	"github.com/xaionaro-go/avrelay/sink"
	"github.com/xaionaro-go/avrelay/sourcetap"
	"github.com/xaionaro-go/avrelay/supervisor"
	"github.com/xaionaro-go/avrelay/synchronizer"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/xcontext"
	"golang.org/x/sync/errgroup"
)

type Relay struct {
	Config Config
	RunID  uuid.UUID

	VideoChannel  *framechan.FrameChannel
	AudioChannels map[int]*framechan.FrameChannel
	Tap          *sourcetap.SourceTap
	Synchronizer *synchronizer.Synchronizer
	Sink         *sink.Sink
	Supervisor   *supervisor.Supervisor
	Pipeline     pipeline.Pipeline
	Subscriber   transport.Subscriber
}

func New(
	ctx context.Context,
	cfg Config,
	p pipeline.Pipeline,
	subscriber transport.Subscriber,
	m *metrics.Metrics,
) (_ *Relay, _err error) {
	logger.Debugf(ctx, "New")
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	videoPlaceholder, err := frame.NewBlankVideo(cfg.Video.Width, cfg.Video.Height, cfg.VideoPlaceholderImage)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare the video placeholder: %w", err)
	}
	logger.Debugf(ctx, "the video placeholder is %s", humanize.Bytes(uint64(videoPlaceholder.Size())))

	r := &Relay{
		Config:        cfg,
		RunID:         uuid.New(),
		VideoChannel:  framechan.New(types.KindVideo, cfg.ChannelCapacity),
		AudioChannels: map[int]*framechan.FrameChannel{},
		Pipeline:      p,
		Subscriber:    subscriber,
	}
	for _, sourceID := range cfg.Channels.AudioSourceIDs {
		r.AudioChannels[sourceID] = framechan.New(types.KindAudio, cfg.ChannelCapacity)
	}

	r.Tap, err = sourcetap.New(cfg.Channels, cfg.Audio, r.VideoChannel, r.AudioChannels, m)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the source tap: %w", err)
	}
	r.Synchronizer, err = synchronizer.New(cfg.SyncConfig(), cfg.Audio, videoPlaceholder, r.VideoChannel, r.AudioChannels, m)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the synchronizer: %w", err)
	}
	r.Supervisor = supervisor.New(p, m)
	r.Sink = sink.New(r.Synchronizer, p, r.Supervisor, m)
	p.SetNeedDataHandler(r.Sink.NeedData)
	return r, nil
}

func (r *Relay) String() string {
	return fmt.Sprintf("Relay(%s)", r.RunID)
}

// Serve runs the relay until the pipeline stops: it returns nil on
// end-of-stream and on context cancellation, and the error otherwise.
func (r *Relay) Serve(ctx context.Context) (_err error) {
	ctx = logger.WithField(ctx, "relay_run_id", r.RunID.String())
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve: %v", _err) }()

	runCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	events, err := r.Subscriber.Subscribe(runCtx, r.Tap.Channels()...)
	if err != nil {
		return fmt.Errorf("unable to subscribe: %w", err)
	}

	defer r.closeChannels(xcontext.DetachDone(ctx))

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		r.ingest(gCtx, events)
		return nil
	})
	if r.Config.StatsLogInterval > 0 {
		g.Go(func() error {
			r.logStatsLoop(gCtx, r.Config.StatsLogInterval)
			return nil
		})
	}
	g.Go(func() error {
		defer cancelFn()
		return r.Supervisor.Run(gCtx)
	})
	return g.Wait()
}

func (r *Relay) ingest(ctx context.Context, events <-chan transport.Event) {
	logger.Debugf(ctx, "ingest")
	defer func() { logger.Debugf(ctx, "/ingest") }()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				logger.Warnf(ctx, "the subscription is closed, no more frames will arrive")
				r.closeChannels(ctx)
				return
			}
			r.Tap.HandleEvent(ctx, ev)
		}
	}
}

func (r *Relay) closeChannels(ctx context.Context) {
	channels := []*framechan.FrameChannel{r.VideoChannel}
	for _, sourceID := range r.Config.Channels.AudioSourceIDs {
		channels = append(channels, r.AudioChannels[sourceID])
	}
	for _, ch := range channels {
		if err := ch.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close %s: %v", ch, err)
		}
	}
}

type Stats struct {
	Tap          sourcetap.Stats
	Synchronizer synchronizer.Stats
	Pushed       types.StatisticsSubSection
	State        supervisor.State
}

func (r *Relay) Stats(ctx context.Context) Stats {
	return Stats{
		Tap:          r.Tap.Stats(),
		Synchronizer: r.Synchronizer.Stats(ctx),
		Pushed:       r.Sink.Pushed(),
		State:        r.Supervisor.State(),
	}
}

func (r *Relay) logStatsLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := r.Stats(ctx)
			var audioPlaceholders uint64
			for _, st := range s.Synchronizer.Audio {
				audioPlaceholders += st.Placeholder
			}
			logger.Infof(ctx,
				"state:%s; received video:%d/%s audio:%d/%s; pushed video:%d audio:%d; gap:%v; placeholders video:%d audio:%d",
				s.State,
				s.Tap.Received.Video.Count, humanize.Bytes(s.Tap.Received.Video.Bytes),
				s.Tap.Received.Audio.Count, humanize.Bytes(s.Tap.Received.Audio.Bytes),
				s.Pushed.Video.Count, s.Pushed.Audio.Count,
				s.Synchronizer.Gap,
				s.Synchronizer.Video.Placeholder, audioPlaceholders,
			)
		}
	}
}
