// config.go defines the encoders, mixer and sinks of the GStreamer pipeline.

package gstreamer

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/avrelay/urltools"
)

type Config struct {
	VideoEncoder           string         `yaml:"video_encoder"`
	VideoEncoderProperties map[string]any `yaml:"video_encoder_properties"`
	AudioEncoder           string         `yaml:"audio_encoder"`
	AudioEncoderProperties map[string]any `yaml:"audio_encoder_properties"`

	// AudioOutputSampleRate and AudioOutputChannels describe the audio
	// after resampling (what the encoder gets).
	AudioOutputSampleRate int           `yaml:"audio_output_sample_rate"`
	AudioOutputChannels   int           `yaml:"audio_output_channels"`
	AudioMixerLatency     time.Duration `yaml:"audio_mixer_latency"`

	// FilePath is where the muxed stream is recorded; empty disables the recording.
	FilePath string `yaml:"file_path"`

	// RTMPURL is where the muxed stream is broadcast; empty disables broadcasting.
	RTMPURL       string       `yaml:"rtmp_url"`
	RTMPStreamKey types.Secret `yaml:"rtmp_stream_key"`

	// SinkQueueMaxTime bounds the queue in front of every sink; when the
	// bound is hit the oldest buffers are dropped.
	SinkQueueMaxTime time.Duration `yaml:"sink_queue_max_time"`
}

func DefaultConfig() Config {
	return Config{
		VideoEncoder: "x264enc",
		VideoEncoderProperties: map[string]any{
			"bitrate":     uint(2500),
			"key-int-max": uint(60),
		},
		AudioEncoder:          "avenc_aac",
		AudioOutputSampleRate: 44100,
		AudioOutputChannels:   2,
		AudioMixerLatency:     30 * time.Millisecond,
		FilePath:              "output.flv",
		SinkQueueMaxTime:      2 * time.Second,
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
	if cfg.VideoEncoder == "" {
		return fmt.Errorf("the video encoder is not set")
	}
	if cfg.AudioEncoder == "" {
		return fmt.Errorf("the audio encoder is not set")
	}
	if cfg.AudioOutputSampleRate <= 0 || cfg.AudioOutputChannels <= 0 {
		return fmt.Errorf("invalid output audio format: %d Hz, %d channels", cfg.AudioOutputSampleRate, cfg.AudioOutputChannels)
	}
	if cfg.AudioMixerLatency < 0 {
		return fmt.Errorf("invalid mixer latency: %v", cfg.AudioMixerLatency)
	}
	if cfg.SinkQueueMaxTime <= 0 {
		return fmt.Errorf("invalid sink queue max time: %v", cfg.SinkQueueMaxTime)
	}
	if cfg.FilePath != "" {
		if !urltools.IsFileURL(cfg.FilePath) {
			return fmt.Errorf("the file path '%s' is not a file", cfg.FilePath)
		}
		if format := urltools.FormatNameFromFileExtension(cfg.FilePath); format != "" && format != "flv" {
			return fmt.Errorf("the recording is FLV, but the file extension suggests %s: '%s'", format, cfg.FilePath)
		}
	}
	if cfg.RTMPURL != "" {
		if _, err := urltools.RTMPLocation(cfg.RTMPURL, cfg.RTMPStreamKey.Secret()); err != nil {
			return fmt.Errorf("invalid RTMP URL: %w", err)
		}
	}
	return nil
}
