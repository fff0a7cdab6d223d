package frame

import (
	"fmt"
	"time"
)

// VideoFormat describes the images carried by the video stream.
type VideoFormat struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frame_rate"`
}

func DefaultVideoFormat() VideoFormat {
	return VideoFormat{
		Width:     1280,
		Height:    720,
		FrameRate: 30,
	}
}

func (f VideoFormat) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", f.Width, f.Height)
	}
	if f.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate: %d", f.FrameRate)
	}
	return nil
}

// FrameInterval is the duration of one video frame.
func (f VideoFormat) FrameInterval() time.Duration {
	if f.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(f.FrameRate)
}
