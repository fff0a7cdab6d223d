//go:build !with_gstreamer
// +build !with_gstreamer

// nogstreamer.go provides a stub of the pipeline for builds without GStreamer.

package gstreamer

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/pipeline"
)

type Pipeline struct {
	pipeline.Pipeline
}

func New(
	ctx context.Context,
	cfg Config,
	videoFormat frame.VideoFormat,
	audioFormat frame.AudioFormat,
	audioSourceIDs []int,
) (*Pipeline, error) {
	return nil, fmt.Errorf("the binary is built without GStreamer support (build tag 'with_gstreamer')")
}
