package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avrelay"
	"github.com/xaionaro-go/avrelay/frame"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/transport/mqtt"
	"github.com/xaionaro-go/avrelay/transport/redis"
	"golang.org/x/sync/errgroup"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [--config <path>] [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to the YAML config file of the relay to feed")
	transportType := pflag.String("transport", "", "the pub/sub transport to publish the frames to: redis or mqtt")
	toneFreq := pflag.Float64("tone-frequency", 440, "the frequency of the generated sine tone (Hz)")
	duration := pflag.Duration("duration", 0, "stop after this duration (zero means run until interrupted)")
	pflag.Parse()

	ctx := logger.CtxWithNew(context.Background(), loggerLevel)
	l := logger.FromCtx(ctx)
	defer logger.Flush(ctx)

	cfg := avrelay.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = avrelay.LoadConfig(*configPath)
		if err != nil {
			l.Fatal(err)
		}
	}
	if *transportType != "" {
		cfg.Transport.Type = avrelay.TransportType(*transportType)
	}
	if err := cfg.Validate(); err != nil {
		l.Fatal(err)
	}

	if *duration > 0 {
		var cancelFn context.CancelFunc
		ctx, cancelFn = context.WithTimeout(ctx, *duration)
		defer cancelFn()
	}

	publisher, err := newPublisher(ctx, cfg.Transport)
	if err != nil {
		l.Fatal(err)
	}
	defer publisher.Close(ctx)

	image, err := frame.NewBlankVideo(cfg.Video.Width, cfg.Video.Height, cfg.VideoPlaceholderImage)
	if err != nil {
		l.Fatal(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return publishVideo(ctx, publisher, cfg, image.Payload)
	})
	for _, sourceID := range cfg.Channels.AudioSourceIDs {
		g.Go(func() error {
			return publishTone(ctx, publisher, cfg, sourceID, *toneFreq)
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		l.Fatal(err)
	}
}

func newPublisher(ctx context.Context, cfg avrelay.TransportConfig) (transport.Publisher, error) {
	switch cfg.Type {
	case avrelay.TransportTypeRedis:
		c, err := redis.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the Redis client: %w", err)
		}
		return c, nil
	case avrelay.TransportTypeMQTT:
		c, err := mqtt.New(ctx, cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to the MQTT broker: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport '%s'", cfg.Type)
	}
}

func publishVideo(
	ctx context.Context,
	publisher transport.Publisher,
	cfg avrelay.Config,
	image []byte,
) error {
	payload := transport.WrapVideo(image)
	t := time.NewTicker(cfg.Video.FrameInterval())
	defer t.Stop()
	var count uint64
	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "published %d video frames", count)
			return ctx.Err()
		case <-t.C:
			if err := publisher.Publish(ctx, cfg.Channels.VideoChannel, payload); err != nil {
				return fmt.Errorf("unable to publish a video frame: %w", err)
			}
			count++
		}
	}
}

func publishTone(
	ctx context.Context,
	publisher transport.Publisher,
	cfg avrelay.Config,
	sourceID int,
	freq float64,
) error {
	format := cfg.Audio
	if format.BytesPerSample != 2 {
		return fmt.Errorf("only 16-bit audio is supported by the tone generator, got %d bytes per sample", format.BytesPerSample)
	}
	channel := cfg.Channels.AudioChannelPrefix + strconv.Itoa(sourceID)
	samples := frame.DefaultPlaceholderSamples
	t := time.NewTicker(format.Duration(samples))
	defer t.Stop()

	var pos uint64
	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "published %d samples to '%s'", pos, channel)
			return ctx.Err()
		case <-t.C:
			chunk := sineChunk(format, freq, pos, samples)
			if err := publisher.Publish(ctx, channel, chunk); err != nil {
				return fmt.Errorf("unable to publish an audio chunk to '%s': %w", channel, err)
			}
			pos += uint64(samples)
		}
	}
}

// sineChunk renders interleaved S16LE samples starting at sample position pos.
func sineChunk(format frame.AudioFormat, freq float64, pos uint64, samples int) []byte {
	result := make([]byte, samples*format.FrameSize())
	for i := 0; i < samples; i++ {
		ts := float64(pos+uint64(i)) / float64(format.SampleRate)
		v := int16(math.Sin(2*math.Pi*freq*ts) * math.MaxInt16 / 4)
		for ch := 0; ch < format.Channels; ch++ {
			off := (i*format.Channels + ch) * format.BytesPerSample
			binary.LittleEndian.PutUint16(result[off:], uint16(v))
		}
	}
	return result
}
