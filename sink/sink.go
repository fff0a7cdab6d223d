// sink.go adapts the need-data signals of the pipeline to the synchronizer.

// Package sink answers the need-data signals of the pipeline: it supplies the
// next tick of the stream and pushes it as a timed buffer.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/pipeline"
	"github.com/xaionaro-go/avrelay/synchronizer"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/xsync"
)

var ErrTerminated = errors.New("the stream is terminated")

type Supplier interface {
	Supply(ctx context.Context, stream types.StreamID) synchronizer.Tick
}

// FaultHandler receives the terminal failures of the streams.
type FaultHandler interface {
	Fault(ctx context.Context, err error)
}

type Sink struct {
	Supplier     Supplier
	Pusher       pipeline.Pusher
	FaultHandler FaultHandler

	locker     xsync.Mutex
	terminated map[types.StreamID]struct{}
	pushed     types.CountersSubSection
	metrics    *metrics.Metrics
}

var _ pipeline.NeedDataHandler = (*Sink)(nil).NeedData

func New(
	supplier Supplier,
	pusher pipeline.Pusher,
	faultHandler FaultHandler,
	m *metrics.Metrics,
) *Sink {
	return &Sink{
		Supplier:     supplier,
		Pusher:       pusher,
		FaultHandler: faultHandler,
		terminated:   map[types.StreamID]struct{}{},
		metrics:      m,
	}
}

func (s *Sink) String() string {
	return fmt.Sprintf("Sink(terminated:%v)", s.Terminated())
}

// NeedData supplies and pushes one buffer of the given stream.
//
// The first push failure terminates the stream: it is reported to the
// fault handler and every later call returns ErrTerminated without
// consuming frames.
func (s *Sink) NeedData(ctx context.Context, stream types.StreamID) (_err error) {
	if !stream.IsValid() {
		return fmt.Errorf("invalid stream: %v", stream)
	}
	if s.IsTerminated(stream) {
		return ErrTerminated
	}

	tick := s.Supplier.Supply(ctx, stream)
	buf := pipeline.Buffer{
		Payload:  tick.Frame.Payload,
		PTS:      tick.PTS,
		Duration: tick.Duration,
	}
	if err := s.Pusher.Push(ctx, stream, buf); err != nil {
		err = pipeline.ErrPushFailed{Stream: stream, Err: err}
		s.terminate(ctx, stream, err)
		return err
	}
	s.pushed.Increment(stream.Kind, uint64(len(buf.Payload)))
	logger.Tracef(ctx, "pushed a %s buffer of %s: %s", stream, humanize.Bytes(uint64(len(buf.Payload))), tick)
	return nil
}

func (s *Sink) terminate(ctx context.Context, stream types.StreamID, err error) {
	isNew := xsync.DoR1(ctx, &s.locker, func() bool {
		if _, ok := s.terminated[stream]; ok {
			return false
		}
		s.terminated[stream] = struct{}{}
		return true
	})
	if !isNew {
		return
	}
	logger.Errorf(ctx, "the %s stream is terminated: %v", stream, err)
	s.metrics.RecordPushFailure(stream.Kind)
	if s.FaultHandler != nil {
		s.FaultHandler.Fault(ctx, err)
	}
}

func (s *Sink) IsTerminated(stream types.StreamID) bool {
	return xsync.DoR1(context.Background(), &s.locker, func() bool {
		_, ok := s.terminated[stream]
		return ok
	})
}

// Terminated returns the streams which failed to push.
func (s *Sink) Terminated() []types.StreamID {
	return xsync.DoR1(context.Background(), &s.locker, func() []types.StreamID {
		result := make([]types.StreamID, 0, len(s.terminated))
		for stream := range s.terminated {
			result = append(result, stream)
		}
		return result
	})
}

// Pushed returns how many buffers (and bytes) were accepted by the pipeline.
func (s *Sink) Pushed() types.StatisticsSubSection {
	return s.pushed.ToStats()
}
