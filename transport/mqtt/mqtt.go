// mqtt.go implements the transport over MQTT topics.

// Package mqtt delivers and publishes relay payloads over an MQTT broker; the
// channel names are used as topics.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/xaionaro-go/avrelay/logger"
	"github.com/xaionaro-go/avrelay/transport"
	"github.com/xaionaro-go/avrelay/types"
	"github.com/xaionaro-go/observability"
)

type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       types.Secret  `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	EventQueueSize int           `yaml:"event_queue_size"`
}

func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://127.0.0.1:1883",
		ConnectTimeout: 5 * time.Second,
		EventQueueSize: transport.DefaultEventQueueSize,
	}
}

func (cfg Config) Validate() error {
	if cfg.Broker == "" {
		return fmt.Errorf("the MQTT broker is not set")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("invalid QoS: %d", cfg.QoS)
	}
	return nil
}

type Client struct {
	Config Config
	client paho.Client
}

var (
	_ transport.Subscriber = (*Client)(nil)
	_ transport.Publisher  = (*Client)(nil)
)

func clientOptions(ctx context.Context, cfg Config) *paho.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "avrelay-" + uuid.NewString()
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password.Get())
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c paho.Client) {
		logger.Infof(ctx, "connected to the MQTT broker %s as '%s'", cfg.Broker, clientID)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		logger.Warnf(ctx, "lost the connection to the MQTT broker %s: %v", cfg.Broker, err)
	}
	return opts
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client := paho.NewClient(clientOptions(ctx, cfg))
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("timed out connecting to the MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("unable to connect to the MQTT broker %s: %w", cfg.Broker, err)
	}
	return &Client{
		Config: cfg,
		client: client,
	}, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("MQTT(%s)", c.Config.Broker)
}

func messageHandler(ctx context.Context, inbox *transport.Inbox) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		inbox.Deliver(ctx, msg.Topic(), msg.Payload())
	}
}

func (c *Client) Subscribe(ctx context.Context, channels ...string) (<-chan transport.Event, error) {
	inbox := transport.NewInbox(c.Config.EventQueueSize)
	filters := make(map[string]byte, len(channels))
	for _, ch := range channels {
		filters[ch] = c.Config.QoS
	}
	token := c.client.SubscribeMultiple(filters, messageHandler(ctx, inbox))
	if !token.WaitTimeout(c.Config.ConnectTimeout) {
		return nil, fmt.Errorf("timed out subscribing to %v", channels)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("unable to subscribe to %v: %w", channels, err)
	}
	logger.Infof(ctx, "subscribed to %v at %s", channels, c.Config.Broker)

	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		c.client.Unsubscribe(channels...).WaitTimeout(c.Config.ConnectTimeout)
		inbox.Close(ctx)
		logger.Debugf(ctx, "unsubscribed from %v: %#+v", channels, inbox.Stats())
	})
	return inbox.C(), nil
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	token := c.client.Publish(channel, c.Config.QoS, false, transport.EncodePayload(payload))
	if !token.WaitTimeout(c.Config.ConnectTimeout) {
		return fmt.Errorf("timed out publishing to '%s'", channel)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unable to publish to '%s': %w", channel, err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	c.client.Disconnect(250)
	return nil
}
