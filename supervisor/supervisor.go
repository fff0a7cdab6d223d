// supervisor.go implements the lifecycle state machine of the pipeline.

// Package supervisor starts the pipeline, watches its bus and tears it down
// on end-of-stream, on a fatal pipeline error or on a stream fault.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/pipeline"
	"github.com/xaionaro-go/xcontext"
)

var (
	ErrAlreadyStarted = errors.New("the supervisor was already started")
	ErrBusClosed      = errors.New("the pipeline bus is closed")
)

type Supervisor struct {
	Pipeline pipeline.Pipeline

	state   *State
	faultCh chan error
	metrics *metrics.Metrics
}

func New(p pipeline.Pipeline, m *metrics.Metrics) *Supervisor {
	s := &Supervisor{
		Pipeline: p,
		faultCh:  make(chan error, 1),
		metrics:  m,
	}
	s.setState(context.Background(), StateIdle)
	return s
}

func (s *Supervisor) String() string {
	return fmt.Sprintf("Supervisor(%s)", s.State())
}

// State is safe to call concurrently with Run.
func (s *Supervisor) State() State {
	return *xatomic.LoadPointer(&s.state)
}

func (s *Supervisor) setState(ctx context.Context, state State) {
	prev := xatomic.SwapPointer(&s.state, &state)
	if prev != nil {
		logger.Infof(ctx, "pipeline state: %s -> %s", *prev, state)
	}
	stateNames := make([]string, 0, endOfState)
	for _, st := range States() {
		stateNames = append(stateNames, st.String())
	}
	s.metrics.SetPipelineState(state.String(), stateNames)
}

// Fault reports a terminal failure of a stream; the first reported fault
// makes Run tear the pipeline down and return it.
func (s *Supervisor) Fault(ctx context.Context, err error) {
	select {
	case s.faultCh <- err:
		logger.Debugf(ctx, "fault reported: %v", err)
	default:
		logger.Debugf(ctx, "a fault is already pending, ignoring: %v", err)
	}
}

// Run starts the pipeline and blocks until it stops.
//
// It returns nil on end-of-stream and on context cancellation, and an error
// on a pipeline failure or a stream fault. There is no automatic restart.
func (s *Supervisor) Run(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Run")
	defer func() { logger.Debugf(ctx, "/Run: %v", _err) }()

	if s.State() != StateIdle {
		return ErrAlreadyStarted
	}

	if err := s.Pipeline.Start(ctx); err != nil {
		s.setState(ctx, StateErrored)
		s.teardown(ctx)
		return fmt.Errorf("unable to start the pipeline: %w", err)
	}
	s.setState(ctx, StateRunning)

	bus := s.Pipeline.Bus()
	for {
		select {
		case <-ctx.Done():
			logger.Debugf(ctx, "context is closed: %v", ctx.Err())
			s.teardown(ctx)
			return nil
		case err := <-s.faultCh:
			s.setState(ctx, StateErrored)
			s.teardown(ctx)
			return err
		case msg, ok := <-bus:
			if !ok {
				s.setState(ctx, StateErrored)
				s.teardown(ctx)
				return pipeline.ErrPipeline{Err: ErrBusClosed}
			}
			if done, err := s.onMessage(ctx, msg); done {
				return err
			}
		}
	}
}

func (s *Supervisor) onMessage(ctx context.Context, msg pipeline.Message) (done bool, _err error) {
	switch msg.Type {
	case pipeline.MessageTypeEOS:
		logger.Infof(ctx, "end of stream")
		s.setState(ctx, StateEOS)
		s.teardown(ctx)
		return true, nil
	case pipeline.MessageTypeError:
		logger.Errorf(ctx, "%s", msg)
		s.setState(ctx, StateErrored)
		s.teardown(ctx)
		return true, pipeline.ErrPipeline{
			Source: msg.Source,
			Debug:  msg.Debug,
			Err:    msg.Err,
		}
	case pipeline.MessageTypeWarning:
		logger.Warnf(ctx, "%s", msg)
	default:
		logger.Tracef(ctx, "%s", msg)
	}
	return false, nil
}

func (s *Supervisor) teardown(ctx context.Context) {
	ctx = xcontext.DetachDone(ctx)
	if err := s.Pipeline.Stop(ctx); err != nil {
		logger.Errorf(ctx, "unable to stop the pipeline: %v", err)
	}
	s.setState(ctx, StateStopped)
}
