package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avrelay"
	"github.com/xaionaro-go/avrelay/metrics"
	"github.com/xaionaro-go/avrelay/pipeline/gstreamer"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/transport/mqtt"
	"github.com/xaionaro-go/avrelay/transport/redis"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/observability"
)

const envRTMPStreamKey = "AVRELAY_RTMP_STREAM_KEY"

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [--config <path>] [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	configPath := pflag.String("config", "", "path to a YAML config file")
	transportType := pflag.String("transport", "", "the pub/sub transport to receive the frames from: redis or mqtt")
	outputFile := pflag.String("output-file", "", "override the path of the recorded FLV file")
	rtmpURL := pflag.String("rtmp-url", "", "override the RTMP URL to broadcast to (the stream key is taken from $"+envRTMPStreamKey+")")
	printStats := pflag.Bool("print-stats", false, "print the statistics as JSON every second")
	metricsAddr := pflag.String("metrics-listen-addr", "", "an address to serve the Prometheus metrics at")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

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
	if *outputFile != "" {
		cfg.Pipeline.FilePath = *outputFile
	}
	if *rtmpURL != "" {
		cfg.Pipeline.RTMPURL = *rtmpURL
	}
	if *metricsAddr != "" {
		cfg.Metrics.ListenAddr = *metricsAddr
	}
	if key := os.Getenv(envRTMPStreamKey); key != "" {
		cfg.Pipeline.RTMPStreamKey = types.NewSecret(key)
	}
	if err := cfg.Validate(); err != nil {
		l.Fatal(err)
	}
	l.Debugf("config: %s", cfg.String())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(addr, mux)) })
	}

	subscriber, err := newSubscriber(ctx, cfg.Transport)
	if err != nil {
		l.Fatal(err)
	}
	defer subscriber.Close(ctx)

	p, err := gstreamer.New(ctx, cfg.Pipeline, cfg.Video, cfg.Audio, cfg.Channels.AudioSourceIDs)
	if err != nil {
		l.Fatal(err)
	}

	relay, err := avrelay.New(ctx, cfg, p, subscriber, m)
	if err != nil {
		l.Fatal(err)
	}

	if *printStats {
		observability.Go(ctx, func(ctx context.Context) {
			t := time.NewTicker(time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					statsJSON, err := json.Marshal(relay.Stats(ctx))
					if err != nil {
						l.Error(err)
						return
					}
					fmt.Printf("%s\n", statsJSON)
				}
			}
		})
	}

	if err := relay.Serve(ctx); err != nil {
		l.Error(err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func newSubscriber(ctx context.Context, cfg avrelay.TransportConfig) (transport.Subscriber, error) {
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
