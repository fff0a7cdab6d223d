//go:build with_gstreamer
// +build with_gstreamer

// bus.go translates the messages of the GStreamer bus into pipeline.Message values.

package gstreamer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/pipeline"
)

const busPollInterval = 50 * time.Millisecond

func (p *Pipeline) pollBus(ctx context.Context) {
	logger.Debugf(ctx, "pollBus")
	defer func() { logger.Debugf(ctx, "/pollBus") }()

	bus := p.pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}
		result, ok := p.translate(msg)
		if !ok {
			continue
		}
		select {
		case p.bus <- result:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) translate(msg *gst.Message) (pipeline.Message, bool) {
	switch msg.Type() {
	case gst.MessageEOS:
		return pipeline.Message{
			Type:   pipeline.MessageTypeEOS,
			Source: msg.Source(),
		}, true
	case gst.MessageError:
		gerr := msg.ParseError()
		return pipeline.Message{
			Type:   pipeline.MessageTypeError,
			Source: msg.Source(),
			Err:    errors.New(gerr.Error()),
			Debug:  gerr.DebugString(),
		}, true
	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		return pipeline.Message{
			Type:   pipeline.MessageTypeWarning,
			Source: msg.Source(),
			Err:    errors.New(gerr.Error()),
			Debug:  gerr.DebugString(),
		}, true
	case gst.MessageStateChanged:
		if msg.Source() != p.pipeline.GetName() {
			return pipeline.Message{}, false
		}
		oldState, newState := msg.ParseStateChanged()
		return pipeline.Message{
			Type:   pipeline.MessageTypeStateChanged,
			Source: msg.Source(),
			Debug:  fmt.Sprintf("%v -> %v", oldState, newState),
		}, true
	default:
		return pipeline.Message{}, false
	}
}
