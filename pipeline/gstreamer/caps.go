// caps.go renders the caps and element properties of the pipeline.

package gstreamer

import (
	"fmt"

	"github.com/xaionaro-go/avrelay/frame"
)

func videoInputCaps(f frame.VideoFormat) string {
	return fmt.Sprintf(
		"image/jpeg,width=%d,height=%d,framerate=%d/1,colorimetry=bt601,interlace-mode=progressive,chroma-site=jpeg",
		f.Width, f.Height, f.FrameRate,
	)
}

func audioInputCaps(f frame.AudioFormat) (string, error) {
	var format string
	switch f.BytesPerSample {
	case 1:
		format = "S8"
	case 2:
		format = "S16LE"
	case 4:
		format = "S32LE"
	default:
		return "", fmt.Errorf("unsupported amount of bytes per sample: %d", f.BytesPerSample)
	}
	return fmt.Sprintf(
		"audio/x-raw,format=%s,layout=interleaved,rate=%d,channels=%d",
		format, f.SampleRate, f.Channels,
	), nil
}

func audioOutputCaps(cfg Config) string {
	return fmt.Sprintf(
		"audio/x-raw,rate=%d,channels=%d",
		cfg.AudioOutputSampleRate, cfg.AudioOutputChannels,
	)
}

// enumArg is a property value set by its nick (as gst-launch does), for
// enum and flags properties which do not accept plain integers.
type enumArg string

// sinkQueueProperties bounds the queue in front of a sink by time only and
// makes it drop the oldest buffers when full.
func sinkQueueProperties(cfg Config) map[string]any {
	return map[string]any{
		"leaky":            enumArg("downstream"),
		"max-size-buffers": uint(0),
		"max-size-bytes":   uint(0),
		"max-size-time":    uint64(cfg.SinkQueueMaxTime.Nanoseconds()),
	}
}
