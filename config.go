// config.go defines the configuration of the relay and its loading from YAML.

package avrelay

import (
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/framechan"
	"github.com/xaionaro-go/avrelay/pipeline/gstreamer"
	"github.com/xaionaro-go/avrelay/sourcetap"
	"github.com/xaionaro-go/avrelay/synchronizer"
	"github.com/xaionaro-go/avrelay/transport/mqtt"
	"github.com/xaionaro-go/avrelay/transport/redis"
	"gopkg.in/yaml.v3"
)

type TransportType string

const (
	TransportTypeRedis = TransportType("redis")
	TransportTypeMQTT  = TransportType("mqtt")
)

func (t TransportType) Validate() error {
	switch t {
	case TransportTypeRedis, TransportTypeMQTT:
		return nil
	default:
		return fmt.Errorf("unknown transport '%s'", string(t))
	}
}

type TransportConfig struct {
	Type  TransportType `yaml:"type"`
	Redis redis.Config  `yaml:"redis"`
	MQTT  mqtt.Config   `yaml:"mqtt"`
}

type MetricsConfig struct {
	// ListenAddr is where the Prometheus metrics are served; empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

type Config struct {
	Video                 frame.VideoFormat `yaml:"video"`
	VideoPlaceholderImage string            `yaml:"video_placeholder_image"`
	Audio                 frame.AudioFormat `yaml:"audio"`

	Sync            synchronizer.Config `yaml:"sync"`
	Channels        sourcetap.Config    `yaml:"channels"`
	ChannelCapacity int                 `yaml:"channel_capacity"`

	Pipeline  gstreamer.Config `yaml:"pipeline"`
	Transport TransportConfig  `yaml:"transport"`
	Metrics   MetricsConfig    `yaml:"metrics"`

	// StatsLogInterval is how often the counters are logged; zero disables it.
	StatsLogInterval time.Duration `yaml:"stats_log_interval"`
}

func DefaultConfig() Config {
	sync := synchronizer.DefaultConfig()
	sync.VideoFrameInterval = 0
	return Config{
		Video:           frame.DefaultVideoFormat(),
		Audio:           frame.DefaultAudioFormat(),
		Sync:            sync,
		Channels:        sourcetap.DefaultConfig(),
		ChannelCapacity: framechan.DefaultCapacity,
		Pipeline:        gstreamer.DefaultConfig(),
		Transport: TransportConfig{
			Type:  TransportTypeRedis,
			Redis: redis.DefaultConfig(),
			MQTT:  mqtt.DefaultConfig(),
		},
		StatsLogInterval: 10 * time.Second,
	}
}

// LoadConfig reads the YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse the config file '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config '%s': %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) String() string {
	if cfg == nil {
		return "<nil>"
	}
	// without the String method, so that spew does not call it back
	type plainConfig Config
	return spew.Sdump(plainConfig(*cfg))
}

// SyncConfig returns the synchronizer parameters; an unset video frame
// interval is derived from the video frame rate.
func (cfg Config) SyncConfig() synchronizer.Config {
	result := cfg.Sync
	if result.VideoFrameInterval == 0 {
		result.VideoFrameInterval = cfg.Video.FrameInterval()
	}
	return result
}

func (cfg Config) Validate() error {
	if err := cfg.Video.Validate(); err != nil {
		return fmt.Errorf("invalid video format: %w", err)
	}
	if err := cfg.Audio.Validate(); err != nil {
		return fmt.Errorf("invalid audio format: %w", err)
	}
	if err := cfg.SyncConfig().Validate(); err != nil {
		return fmt.Errorf("invalid sync config: %w", err)
	}
	if err := cfg.Channels.Validate(); err != nil {
		return fmt.Errorf("invalid channels config: %w", err)
	}
	if cfg.ChannelCapacity <= 0 {
		return fmt.Errorf("invalid channel capacity: %d", cfg.ChannelCapacity)
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := cfg.Transport.Type.Validate(); err != nil {
		return err
	}
	switch cfg.Transport.Type {
	case TransportTypeRedis:
		if err := cfg.Transport.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid Redis config: %w", err)
		}
	case TransportTypeMQTT:
		if err := cfg.Transport.MQTT.Validate(); err != nil {
			return fmt.Errorf("invalid MQTT config: %w", err)
		}
	}
	return nil
}
