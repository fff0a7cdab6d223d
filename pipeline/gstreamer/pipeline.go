//go:build with_gstreamer
// +build with_gstreamer

// pipeline.go builds and drives the GStreamer pipeline: JPEG video and raw PCM
// audio in, H.264/AAC in FLV out to a file and an RTMP endpoint.

// Package gstreamer implements pipeline.Pipeline on top of GStreamer.
package gstreamer

import (
	"context"
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/pipeline"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/avrelay/urltools"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

const busQueueSize = 64

type Pipeline struct {
	Config         Config
	VideoFormat    frame.VideoFormat
	AudioFormat    frame.AudioFormat
	AudioSourceIDs []int

	Locker xsync.Mutex

	pipeline      *gst.Pipeline
	sources       map[types.StreamID]*app.Source
	handler       pipeline.NeedDataHandler
	bus           chan pipeline.Message
	busCancelFunc context.CancelFunc
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func New(
	ctx context.Context,
	cfg Config,
	videoFormat frame.VideoFormat,
	audioFormat frame.AudioFormat,
	audioSourceIDs []int,
) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(audioSourceIDs) == 0 {
		return nil, fmt.Errorf("no audio sources are configured")
	}
	gst.Init(nil)

	p := &Pipeline{
		Config:         cfg,
		VideoFormat:    videoFormat,
		AudioFormat:    audioFormat,
		AudioSourceIDs: audioSourceIDs,
		sources:        map[types.StreamID]*app.Source{},
		bus:            make(chan pipeline.Message, busQueueSize),
	}
	if err := p.build(ctx); err != nil {
		return nil, fmt.Errorf("unable to build the pipeline: %w", err)
	}
	return p, nil
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("GStreamerPipeline(%s/%s)", p.Config.VideoEncoder, p.Config.AudioEncoder)
}

func newElement(factory string, props map[string]any) (*gst.Element, error) {
	elem, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("unable to create element '%s': %w", factory, err)
	}
	for k, v := range props {
		if arg, ok := v.(enumArg); ok {
			elem.SetArg(k, string(arg))
			continue
		}
		if err := elem.SetProperty(k, v); err != nil {
			return nil, fmt.Errorf("unable to set property '%s' of '%s' to %v: %w", k, factory, v, err)
		}
	}
	return elem, nil
}

func (p *Pipeline) build(ctx context.Context) error {
	var err error
	p.pipeline, err = gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("unable to create the pipeline: %w", err)
	}

	mux, err := newElement("flvmux", map[string]any{"streamable": true})
	if err != nil {
		return err
	}
	if err := p.pipeline.Add(mux); err != nil {
		return fmt.Errorf("unable to add the muxer: %w", err)
	}

	if err := p.buildVideo(ctx, mux); err != nil {
		return fmt.Errorf("unable to build the video branch: %w", err)
	}
	if err := p.buildAudio(ctx, mux); err != nil {
		return fmt.Errorf("unable to build the audio branch: %w", err)
	}
	if err := p.buildOutputs(ctx, mux); err != nil {
		return fmt.Errorf("unable to build the outputs: %w", err)
	}
	return nil
}

func (p *Pipeline) newSource(ctx context.Context, stream types.StreamID, caps string) (*app.Source, error) {
	src, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("unable to create an appsrc: %w", err)
	}
	if err := src.SetProperty("name", stream.String()); err != nil {
		return nil, fmt.Errorf("unable to name the appsrc '%s': %w", stream, err)
	}
	src.SetCaps(gst.NewCapsFromString(caps))
	src.SetFormat(gst.FormatTime)
	if err := src.SetProperty("is-live", true); err != nil {
		return nil, fmt.Errorf("unable to make the appsrc live: %w", err)
	}
	src.SetCallbacks(&app.SourceCallbacks{
		NeedDataFunc: func(self *app.Source, length uint) {
			p.onNeedData(ctx, stream)
		},
	})
	p.sources[stream] = src
	return src, nil
}

func (p *Pipeline) buildVideo(ctx context.Context, mux *gst.Element) error {
	src, err := p.newSource(ctx, types.VideoStream(), videoInputCaps(p.VideoFormat))
	if err != nil {
		return err
	}

	elems := []*gst.Element{src.Element}
	for _, item := range []struct {
		Factory string
		Props   map[string]any
	}{
		{"queue", nil},
		{"jpegdec", nil},
		{"videoconvert", nil},
		{p.Config.VideoEncoder, p.Config.VideoEncoderProperties},
		{"h264parse", nil},
	} {
		elem, err := newElement(item.Factory, item.Props)
		if err != nil {
			return err
		}
		elems = append(elems, elem)
	}

	if err := p.pipeline.AddMany(elems...); err != nil {
		return fmt.Errorf("unable to add the elements: %w", err)
	}
	if err := gst.ElementLinkMany(append(elems, mux)...); err != nil {
		return fmt.Errorf("unable to link the elements: %w", err)
	}
	return nil
}

// buildAudio creates one input per audio source; the inputs are resampled
// and mixed into the single audio track of the output.
func (p *Pipeline) buildAudio(ctx context.Context, mux *gst.Element) error {
	caps, err := audioInputCaps(p.AudioFormat)
	if err != nil {
		return err
	}

	mixer, err := newElement("audiomixer", map[string]any{"latency": uint64(p.Config.AudioMixerLatency.Nanoseconds())})
	if err != nil {
		return err
	}
	encoder, err := newElement(p.Config.AudioEncoder, p.Config.AudioEncoderProperties)
	if err != nil {
		return err
	}
	if err := p.pipeline.AddMany(mixer, encoder); err != nil {
		return fmt.Errorf("unable to add the mixer: %w", err)
	}
	if err := gst.ElementLinkMany(mixer, encoder, mux); err != nil {
		return fmt.Errorf("unable to link the mixer: %w", err)
	}

	for _, sourceID := range p.AudioSourceIDs {
		if err := p.buildAudioInput(ctx, types.AudioStream(sourceID), caps, mixer); err != nil {
			return fmt.Errorf("unable to build the input of audio source %d: %w", sourceID, err)
		}
	}
	return nil
}

func (p *Pipeline) buildAudioInput(
	ctx context.Context,
	stream types.StreamID,
	caps string,
	mixer *gst.Element,
) error {
	src, err := p.newSource(ctx, stream, caps)
	if err != nil {
		return err
	}

	elems := []*gst.Element{src.Element}
	for _, item := range []struct {
		Factory string
		Props   map[string]any
	}{
		{"queue", nil},
		{"audioconvert", nil},
		{"audioresample", nil},
		{"capsfilter", map[string]any{"caps": gst.NewCapsFromString(audioOutputCaps(p.Config))}},
	} {
		elem, err := newElement(item.Factory, item.Props)
		if err != nil {
			return err
		}
		elems = append(elems, elem)
	}

	if err := p.pipeline.AddMany(elems...); err != nil {
		return fmt.Errorf("unable to add the elements: %w", err)
	}
	if err := gst.ElementLinkMany(append(elems, mixer)...); err != nil {
		return fmt.Errorf("unable to link the elements: %w", err)
	}
	logger.Debugf(ctx, "added the %s input", stream)
	return nil
}

// buildOutputs fans the muxed stream out to the sinks; every sink has its own
// leaky queue so a stalled sink never blocks the other one.
func (p *Pipeline) buildOutputs(ctx context.Context, mux *gst.Element) error {
	tee, err := newElement("tee", nil)
	if err != nil {
		return err
	}
	if err := p.pipeline.Add(tee); err != nil {
		return fmt.Errorf("unable to add the tee: %w", err)
	}
	if err := mux.Link(tee); err != nil {
		return fmt.Errorf("unable to link the muxer to the tee: %w", err)
	}

	type output struct {
		Factory string
		Props   map[string]any
	}
	var outputs []output
	if p.Config.FilePath != "" {
		outputs = append(outputs, output{"filesink", map[string]any{
			"location": p.Config.FilePath,
			"async":    false,
		}})
	}
	if p.Config.RTMPURL != "" {
		location, err := urltools.RTMPLocation(p.Config.RTMPURL, p.Config.RTMPStreamKey.Secret())
		if err != nil {
			return err
		}
		outputs = append(outputs, output{"rtmpsink", map[string]any{
			"location": location,
			"async":    false,
		}})
	}
	if len(outputs) == 0 {
		logger.Warnf(ctx, "neither a file nor an RTMP output is configured, discarding the output")
		outputs = append(outputs, output{"fakesink", map[string]any{"async": false}})
	}

	for _, out := range outputs {
		queue, err := newElement("queue", sinkQueueProperties(p.Config))
		if err != nil {
			return err
		}
		sink, err := newElement(out.Factory, out.Props)
		if err != nil {
			return err
		}
		if err := p.pipeline.AddMany(queue, sink); err != nil {
			return fmt.Errorf("unable to add the %s output: %w", out.Factory, err)
		}
		if err := gst.ElementLinkMany(tee, queue, sink); err != nil {
			return fmt.Errorf("unable to link the %s output: %w", out.Factory, err)
		}
		logger.Debugf(ctx, "added output %s", out.Factory)
	}
	return nil
}

func (p *Pipeline) onNeedData(ctx context.Context, stream types.StreamID) {
	handler := xsync.DoR1(ctx, &p.Locker, func() pipeline.NeedDataHandler {
		return p.handler
	})
	if handler == nil {
		logger.Warnf(ctx, "no need-data handler, the %s input starves", stream)
		return
	}
	if err := handler(ctx, stream); err != nil {
		logger.Debugf(ctx, "unable to feed the %s input: %v", stream, err)
	}
}

func (p *Pipeline) SetNeedDataHandler(handler pipeline.NeedDataHandler) {
	p.Locker.Do(context.Background(), func() {
		p.handler = handler
	})
}

func (p *Pipeline) Push(ctx context.Context, stream types.StreamID, buf pipeline.Buffer) error {
	src, ok := p.sources[stream]
	if !ok {
		return fmt.Errorf("there is no input for stream %s", stream)
	}
	gstBuf := gst.NewBufferFromBytes(buf.Payload)
	gstBuf.SetPresentationTimestamp(buf.PTS)
	gstBuf.SetDuration(buf.Duration)
	if ret := src.PushBuffer(gstBuf); ret != gst.FlowOK {
		return fmt.Errorf("the %s appsrc refused the buffer: %v", stream, ret)
	}
	return nil
}

func (p *Pipeline) Start(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &p.Locker, p.startLocked, ctx)
}

func (p *Pipeline) startLocked(ctx context.Context) error {
	if p.busCancelFunc != nil {
		return fmt.Errorf("the pipeline is already started")
	}
	busCtx, cancelFn := context.WithCancel(ctx)
	p.busCancelFunc = cancelFn
	observability.Go(ctx, func(ctx context.Context) {
		p.pollBus(busCtx)
	})

	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		cancelFn()
		p.busCancelFunc = nil
		return fmt.Errorf("unable to set the pipeline to the playing state: %w", err)
	}
	logger.Infof(ctx, "the pipeline is playing")
	return nil
}

func (p *Pipeline) Stop(ctx context.Context) error {
	return xsync.DoA1R1(ctx, &p.Locker, p.stopLocked, ctx)
}

func (p *Pipeline) stopLocked(ctx context.Context) error {
	if p.busCancelFunc != nil {
		p.busCancelFunc()
		p.busCancelFunc = nil
	}
	if err := p.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("unable to set the pipeline to the null state: %w", err)
	}
	logger.Infof(ctx, "the pipeline is stopped")
	return nil
}

func (p *Pipeline) Bus() <-chan pipeline.Message {
	return p.bus
}
