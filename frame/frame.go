// frame.go defines Frame, the unit of media handed from ingestion to the pipeline.

// Package frame defines the media frames relayed by avrelay and the
// placeholder frames substituted when a source misses its deadline.
package frame

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/avrelay/types"
)

// Frame is one encoded unit: one JPEG image or one block of PCM samples.
//
// A Frame is owned by exactly one stage at a time; sending it over a
// FrameChannel transfers the ownership, so Payload is never modified after
// the Frame was built.
type Frame struct {
	Kind    types.Kind
	Payload []byte

	// SampleCount is the amount of samples per channel (audio only). Zero
	// means the payload does not contain a whole number of samples.
	SampleCount int

	// SourceID is the numeric id of the audio source (zero for video).
	SourceID int

	ReceivedAt time.Time
}

func NewVideo(payload []byte, receivedAt time.Time) *Frame {
	return &Frame{
		Kind:       types.KindVideo,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
}

func NewAudio(payload []byte, sourceID int, format AudioFormat, receivedAt time.Time) *Frame {
	samples, _ := format.SampleCount(len(payload))
	return &Frame{
		Kind:        types.KindAudio,
		Payload:     payload,
		SampleCount: samples,
		SourceID:    sourceID,
		ReceivedAt:  receivedAt,
	}
}

func (f *Frame) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Payload)
}

func (f *Frame) String() string {
	if f == nil {
		return "<nil>"
	}
	switch f.Kind {
	case types.KindAudio:
		return fmt.Sprintf("Frame(audio, source:%d, bytes:%d, samples:%d)", f.SourceID, len(f.Payload), f.SampleCount)
	default:
		return fmt.Sprintf("Frame(%s, bytes:%d)", f.Kind, len(f.Payload))
	}
}
