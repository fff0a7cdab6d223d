// audio_format.go describes the raw PCM layout and converts between bytes, samples and durations.

package frame

import (
	"fmt"
	"time"
)

// AudioFormat describes interleaved PCM (S16LE in the default configuration).
type AudioFormat struct {
	SampleRate     int `yaml:"sample_rate"`
	Channels       int `yaml:"channels"`
	BytesPerSample int `yaml:"bytes_per_sample"`
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate:     48000,
		Channels:       1,
		BytesPerSample: 2,
	}
}

func (f AudioFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channels count: %d", f.Channels)
	}
	if f.BytesPerSample <= 0 {
		return fmt.Errorf("invalid bytes per sample: %d", f.BytesPerSample)
	}
	return nil
}

// FrameSize is the amount of bytes occupied by one sample of every channel.
func (f AudioFormat) FrameSize() int {
	return f.Channels * f.BytesPerSample
}

// SampleCount returns the amount of samples per channel contained in a
// payload of the given size; ok is false for empty or misaligned payloads.
func (f AudioFormat) SampleCount(payloadSize int) (_ int, ok bool) {
	frameSize := f.FrameSize()
	if frameSize <= 0 || payloadSize <= 0 || payloadSize%frameSize != 0 {
		return 0, false
	}
	return payloadSize / frameSize, true
}

// Duration is samples * 1s / SampleRate, truncated to whole nanoseconds.
func (f AudioFormat) Duration(samples int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
