// Package mqtt consumes telemetry from the broker and feeds it into the
// ingestion buffer.
package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/ingest"
)

// DefaultReconnectInterval is the fixed delay between reconnect attempts.
const DefaultReconnectInterval = 5 * time.Second

// Config holds the broker connection settings.
type Config struct {
	// URL is the broker address, e.g. tcp://localhost:1883. Empty means
	// no broker; telemetry then arrives only through the HTTP report
	// endpoint.
	URL string `mapstructure:"url" yaml:"url"`

	// ClientID identifies this consumer to the broker.
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// Username and Password authenticate to the broker when set.
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// ReconnectInterval overrides DefaultReconnectInterval when non-zero.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`

	// ConnectTimeout bounds the initial connect in Start.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// Consumer subscribes to every telemetry topic and routes payloads into
// the buffer. The underlying client reconnects on a fixed interval and
// re-subscribes after every reconnect.
type Consumer struct {
	cfg     Config
	buffer  *ingest.Buffer
	client  paho.Client
	metrics Metrics
}

// NewConsumer returns an unconnected consumer. metrics may be nil.
func NewConsumer(cfg Config, buffer *ingest.Buffer, metrics Metrics) *Consumer {
	if cfg.ClientID == "" {
		cfg.ClientID = "flightd"
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Consumer{cfg: cfg, buffer: buffer, metrics: metrics}
}

// Start connects to the broker. The subscription is installed from the
// on-connect callback so it survives reconnects.
func (c *Consumer) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.URL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(c.cfg.ReconnectInterval).
		SetMaxReconnectInterval(c.cfg.ReconnectInterval).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			if c.metrics != nil {
				c.metrics.ConnectionLost()
			}
			logger.Warn("broker connection lost", logger.Err(err))
		})
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		// Connect retry keeps running in the background; telemetry starts
		// flowing once the broker comes up.
		logger.Warn("broker not reachable yet, retrying in background",
			logger.Topic(c.cfg.URL))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	logger.InfoCtx(ctx, "connected to broker", logger.Topic(c.cfg.URL))
	return nil
}

// Stop disconnects from the broker, allowing in-flight handlers to finish.
func (c *Consumer) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *Consumer) onConnect(client paho.Client) {
	if c.metrics != nil {
		c.metrics.Connected()
	}
	token := client.Subscribe("#", 0, c.handleMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error("subscribing to telemetry topics", logger.Err(err))
		}
	}()
}

func (c *Consumer) handleMessage(_ paho.Client, msg paho.Message) {
	flightID, partIndex, seriesIndex, ok := parseTopic(msg.Topic())
	if !ok {
		logger.Debug("ignoring message on non-telemetry topic",
			logger.Topic(msg.Topic()))
		return
	}
	if c.metrics != nil {
		c.metrics.ObserveMessage()
	}
	c.buffer.Submit(flightID, partIndex, seriesIndex, msg.Payload())
}

// parseTopic splits a telemetry topic of the form
// {flightId}/m/{partIndex}/{seriesIndex}.
func parseTopic(topic string) (flightID string, partIndex, seriesIndex int, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "m" || parts[0] == "" {
		return "", 0, 0, false
	}
	partIndex, err := strconv.Atoi(parts[2])
	if err != nil || partIndex < 0 {
		return "", 0, 0, false
	}
	seriesIndex, err = strconv.Atoi(parts[3])
	if err != nil || seriesIndex < 0 {
		return "", 0, 0, false
	}
	return parts[0], partIndex, seriesIndex, true
}
