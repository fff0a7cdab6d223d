// redis.go implements the transport over Redis pub/sub.

// Package redis delivers and publishes relay payloads over Redis pub/sub channels.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/observability"
)

type Config struct {
	Addr           string       `yaml:"addr"`
	Password       types.Secret `yaml:"password"`
	DB             int          `yaml:"db"`
	EventQueueSize int          `yaml:"event_queue_size"`
}

func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:6379",
		EventQueueSize: transport.DefaultEventQueueSize,
	}
}

func (cfg Config) Validate() error {
	if cfg.Addr == "" {
		return fmt.Errorf("the Redis address is not set")
	}
	return nil
}

func newClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Get(),
		DB:       cfg.DB,
	})
}

type Client struct {
	Config Config
	client *redis.Client
}

var (
	_ transport.Subscriber = (*Client)(nil)
	_ transport.Publisher  = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		Config: cfg,
		client: newClient(cfg),
	}, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("Redis(%s/%d)", c.Config.Addr, c.Config.DB)
}

func (c *Client) Subscribe(ctx context.Context, channels ...string) (<-chan transport.Event, error) {
	ps := c.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("unable to subscribe to %v: %w", channels, err)
	}
	logger.Infof(ctx, "subscribed to %v at %s", channels, c.Config.Addr)

	inbox := transport.NewInbox(c.Config.EventQueueSize)
	observability.Go(ctx, func(ctx context.Context) {
		defer inbox.Close(ctx)
		defer func() {
			if err := ps.Close(); err != nil {
				logger.Debugf(ctx, "unable to close the subscription: %v", err)
			}
		}()
		receiveLoop(ctx, ps.Channel(), inbox)
	})
	return inbox.C(), nil
}

func receiveLoop(ctx context.Context, msgs <-chan *redis.Message, inbox *transport.Inbox) {
	logger.Debugf(ctx, "receiveLoop")
	defer func() { logger.Debugf(ctx, "/receiveLoop: %#+v", inbox.Stats()) }()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Warnf(ctx, "the Redis subscription is closed")
				return
			}
			inbox.Deliver(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.client.Publish(ctx, channel, transport.EncodePayload(payload)).Err(); err != nil {
		return fmt.Errorf("unable to publish to '%s': %w", channel, err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Close()
}
