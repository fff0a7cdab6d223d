// fake_pipeline.go implements an in-memory pipeline for tests.

// Package fakepipeline provides a pipeline.Pipeline which records the pushed
// buffers and lets the caller trigger need-data signals and bus messages.
package fakepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/pipeline"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/xsync"
)

var ErrNotStarted = errors.New("the pipeline is not started")

type Pipeline struct {
	Locker xsync.Mutex

	pushed   map[types.StreamID][]pipeline.Buffer
	pushErrs map[types.StreamID]error
	startErr error
	handler  pipeline.NeedDataHandler
	bus      chan pipeline.Message
	started  bool
	stopped  bool
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func New() *Pipeline {
	return &Pipeline{
		pushed:   map[types.StreamID][]pipeline.Buffer{},
		pushErrs: map[types.StreamID]error{},
		bus:      make(chan pipeline.Message, 16),
	}
}

func (p *Pipeline) String() string {
	return "FakePipeline"
}

func (p *Pipeline) Push(ctx context.Context, stream types.StreamID, buf pipeline.Buffer) error {
	return xsync.DoR1(ctx, &p.Locker, func() error {
		if !p.started {
			return ErrNotStarted
		}
		if err := p.pushErrs[stream]; err != nil {
			return err
		}
		logger.Tracef(ctx, "pushed %s: %s", stream, buf)
		p.pushed[stream] = append(p.pushed[stream], buf)
		return nil
	})
}

func (p *Pipeline) SetNeedDataHandler(handler pipeline.NeedDataHandler) {
	p.Locker.Do(context.Background(), func() {
		p.handler = handler
	})
}

func (p *Pipeline) Start(ctx context.Context) error {
	return xsync.DoR1(ctx, &p.Locker, func() error {
		if p.startErr != nil {
			return p.startErr
		}
		p.started = true
		p.stopped = false
		return nil
	})
}

func (p *Pipeline) Stop(ctx context.Context) error {
	p.Locker.Do(ctx, func() {
		p.started = false
		p.stopped = true
	})
	return nil
}

func (p *Pipeline) Bus() <-chan pipeline.Message {
	return p.bus
}

// RequestData emulates a need-data signal of the input of the given stream.
func (p *Pipeline) RequestData(ctx context.Context, stream types.StreamID) error {
	handler := xsync.DoR1(ctx, &p.Locker, func() pipeline.NeedDataHandler {
		return p.handler
	})
	if handler == nil {
		return fmt.Errorf("no need-data handler is set")
	}
	return handler(ctx, stream)
}

// Post puts a message onto the bus.
func (p *Pipeline) Post(msg pipeline.Message) {
	p.bus <- msg
}

func (p *Pipeline) SetPushError(stream types.StreamID, err error) {
	p.Locker.Do(context.Background(), func() {
		p.pushErrs[stream] = err
	})
}

func (p *Pipeline) SetStartError(err error) {
	p.Locker.Do(context.Background(), func() {
		p.startErr = err
	})
}

// Buffers returns a copy of the buffers pushed into the input of the given stream.
func (p *Pipeline) Buffers(stream types.StreamID) []pipeline.Buffer {
	return xsync.DoR1(context.Background(), &p.Locker, func() []pipeline.Buffer {
		return append([]pipeline.Buffer(nil), p.pushed[stream]...)
	})
}

func (p *Pipeline) IsStarted() bool {
	return xsync.DoR1(context.Background(), &p.Locker, func() bool {
		return p.started
	})
}

func (p *Pipeline) IsStopped() bool {
	return xsync.DoR1(context.Background(), &p.Locker, func() bool {
		return p.stopped
	})
}
