// config.go defines the timing parameters of the synchronizer.

package synchronizer

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/indicator"
)

type Config struct {
	// VideoFrameInterval is the duration of every video frame.
	VideoFrameInterval time.Duration `yaml:"video_frame_interval"`

	// Slack is added to the last duration of a stream to get the time
	// Supply waits for a fresh frame.
	Slack time.Duration `yaml:"slack"`

	// DriftThreshold is the accumulated PTS difference tolerated before
	// the lagging stream gets boosted.
	DriftThreshold time.Duration `yaml:"drift_threshold"`

	// MaxStretch caps a boosted duration at MaxStretch times the nominal one.
	MaxStretch int `yaml:"max_stretch"`

	// PlaceholderSamples is the length of the silence supplied when no audio is available.
	PlaceholderSamples int `yaml:"placeholder_samples"`

	InterArrivalEstimator indicator.Type `yaml:"inter_arrival_estimator"`
	InterArrivalWindow    int            `yaml:"inter_arrival_window"`
}

func DefaultConfig() Config {
	return Config{
		VideoFrameInterval:    time.Second / 30,
		Slack:                 5 * time.Millisecond,
		DriftThreshold:        100 * time.Millisecond,
		MaxStretch:            4,
		PlaceholderSamples:    frame.DefaultPlaceholderSamples,
		InterArrivalEstimator: indicator.TypeEMA,
		InterArrivalWindow:    16,
	}
}

func (cfg *Config) String() string {
	if cfg == nil {
		return "<nil>"
	}
	// without the String method, so that spew does not call it back
	type plainConfig Config
	return spew.Sdump(plainConfig(*cfg))
}

func (cfg Config) Validate() error {
	if cfg.VideoFrameInterval <= 0 {
		return fmt.Errorf("invalid video frame interval: %v", cfg.VideoFrameInterval)
	}
	if cfg.Slack < 0 {
		return fmt.Errorf("invalid slack: %v", cfg.Slack)
	}
	if cfg.DriftThreshold <= 0 {
		return fmt.Errorf("invalid drift threshold: %v", cfg.DriftThreshold)
	}
	if cfg.MaxStretch < 1 {
		return fmt.Errorf("invalid max stretch: %d", cfg.MaxStretch)
	}
	if cfg.PlaceholderSamples <= 0 {
		return fmt.Errorf("invalid amount of placeholder samples: %d", cfg.PlaceholderSamples)
	}
	if cfg.InterArrivalWindow <= 0 {
		return fmt.Errorf("invalid inter-arrival window: %d", cfg.InterArrivalWindow)
	}
	return nil
}
