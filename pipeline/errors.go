package pipeline

import (
	"fmt"

	"github.com/xaionaro-go/avrelay/types"
)

type ErrPushFailed struct {
	Stream types.StreamID
	Err    error
}

func (e ErrPushFailed) Error() string {
	return fmt.Sprintf("unable to push a %s buffer: %v", e.Stream, e.Err)
}

func (e ErrPushFailed) Unwrap() error {
	return e.Err
}

// ErrPipeline is a fatal error reported by the pipeline.
type ErrPipeline struct {
	Source string
	Debug  string
	Err    error
}

func (e ErrPipeline) Error() string {
	if e.Debug != "" {
		return fmt.Sprintf("pipeline error in '%s': %v (%s)", e.Source, e.Err, e.Debug)
	}
	return fmt.Sprintf("pipeline error in '%s': %v", e.Source, e.Err)
}

func (e ErrPipeline) Unwrap() error {
	return e.Err
}
