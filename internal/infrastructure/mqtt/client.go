package mqtt

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/classroom-core/internal/infrastructure/config"
)

// Logger is the logging the client needs. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one message. It runs on a paho goroutine and
// should return quickly; a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the node's connection to the aggregator's broker.
//
// Besides moving bytes it keeps a retained presence record for the node
// (online on every connect, offline on Close, and a will for crashes) and
// replays subscriptions whenever the broker comes back.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	mu        sync.RWMutex
	connected bool
	lastDrop  string
	subs      map[string]subscription

	connects atomic.Uint64
	drops    atomic.Uint64
}

// Status is a point-in-time view of the broker connection.
type Status struct {
	Connected      bool     `json:"connected"`
	Connects       uint64   `json:"connects"`
	Disconnects    uint64   `json:"disconnects"`
	LastDisconnect string   `json:"last_disconnect,omitempty"`
	Subscriptions  []string `json:"subscriptions"`
}

// Connect dials the broker and waits up to connectTimeout for the first
// connection. Later drops are retried by paho in the background.
//
// Parameters:
//   - cfg: MQTT section of the node config
//   - logger: Receives connection and handler events (may be nil)
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnectionFailed if the broker cannot be reached in time
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := newClient(cfg, logger)

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })
	c.paho = pahomqtt.NewClient(opts)

	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously.
	c.setConnected(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// handleConnect runs on the first connect and on every reconnect.
func (c *Client) handleConnect() {
	n := c.connects.Add(1)
	c.setConnected(true)

	c.resubscribe()
	c.announce(presenceOnline, "")

	if n > 1 {
		c.logger.Info("MQTT reconnected", "connects", n)
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.drops.Add(1)

	c.mu.Lock()
	c.connected = false
	if err != nil {
		c.lastDrop = err.Error()
	}
	c.mu.Unlock()

	c.logger.Warn("MQTT connection lost", "error", err)
}

// resubscribe replays the tracked subscriptions. Failures are left for the
// next reconnect.
func (c *Client) resubscribe() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// announce publishes the node's retained presence record without waiting.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	clientID := c.cfg.Broker.ClientID
	return c.paho.Publish(
		Topics{}.Presence(clientID),
		byte(c.cfg.QoS), //nolint:gosec // validated 0..2
		true,
		presencePayload(clientID, status, reason),
	)
}

// Close marks the node offline and disconnects. Closing a client that
// never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce(presenceOffline, reasonShutdown).WaitTimeout(operationTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMS)
	c.setConnected(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// Status returns the connection counters and the tracked topics, sorted.
func (c *Client) Status() Status {
	connected := c.IsConnected()

	c.mu.RLock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	lastDrop := c.lastDrop
	c.mu.RUnlock()
	sort.Strings(topics)

	return Status{
		Connected:      connected,
		Connects:       c.connects.Load(),
		Disconnects:    c.drops.Load(),
		LastDisconnect: lastDrop,
		Subscriptions:  topics,
	}
}

// wrapHandler adapts handler to paho, logging its errors and recovering
// its panics so one bad message cannot take down the paho router.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
