package remote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/classroom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/room"
)

// MQTTClient is the subset of the MQTT client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// BridgeConfig configures an MQTTBridge.
type BridgeConfig struct {
	DeviceID     string
	StatusTopic  string
	ControlTopic string
	QoS          byte
}

// MQTTBridge mirrors the serial protocol over MQTT. Status payloads are
// published without a prefix; control payloads are bare JSON and go through
// the same validation and dispatch as serial lines.
//
// Publishing happens on a goroutine owned by the bridge. QueueStatus only
// hands the snapshot over, so a slow broker never holds up the caller.
//
// Thread Safety:
//   - QueueStatus and Stats are safe for concurrent use.
//   - Start and Stop must not be called concurrently.
type MQTTBridge struct {
	cfg      BridgeConfig
	client   MQTTClient
	controls Controls
	logger   Logger

	// ctx scopes commands received through the subscription.
	ctx context.Context

	// pending holds at most one snapshot; a newer one replaces it.
	pending chan room.Snapshot
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	published  atomic.Uint64
	failed     atomic.Uint64
	superseded atomic.Uint64
	applied    atomic.Uint64
	rejected   atomic.Uint64
}

// NewMQTTBridge creates a bridge. Start must be called to receive commands.
func NewMQTTBridge(cfg BridgeConfig, client MQTTClient, controls Controls, logger Logger) *MQTTBridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTBridge{
		cfg:      cfg,
		client:   client,
		controls: controls,
		logger:   logger,
		ctx:      context.Background(),
		pending:  make(chan room.Snapshot, 1),
	}
}

// Start subscribes to the control topic and starts the status publisher.
// Commands run under ctx; the publisher stops when ctx is cancelled or
// Stop is called.
func (b *MQTTBridge) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.client.Subscribe(b.cfg.ControlTopic, b.cfg.QoS, b.handleControl); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.cfg.ControlTopic, err)
	}
	b.logger.Info("mqtt control subscription active", "topic", b.cfg.ControlTopic)

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.publishLoop(loopCtx)
	return nil
}

// Stop removes the control subscription and waits for the publisher to
// finish the message it is sending, if any.
func (b *MQTTBridge) Stop() error {
	err := b.client.Unsubscribe(b.cfg.ControlTopic)
	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
		b.cancel = nil
	}
	return err
}

// QueueStatus hands snap to the publisher without waiting for the broker.
// A snapshot still waiting to be sent is replaced, since each one is a
// full copy of the room.
func (b *MQTTBridge) QueueStatus(snap room.Snapshot) {
	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
			b.superseded.Add(1)
		default:
		}
	}
}

// publishLoop sends queued snapshots until ctx is done.
func (b *MQTTBridge) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-b.pending:
			if err := b.publish(snap); err != nil {
				b.failed.Add(1)
				b.logger.Debug("status not published", "error", err)
			}
		}
	}
}

// publish sends snap to the status topic and waits for the client.
func (b *MQTTBridge) publish(snap room.Snapshot) error {
	payload, err := protocol.EncodeStatus(b.cfg.DeviceID, snap)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := b.client.Publish(b.cfg.StatusTopic, payload, b.cfg.QoS, false); err != nil {
		return err
	}
	b.published.Add(1)
	return nil
}

// handleControl is the subscription callback.
func (b *MQTTBridge) handleControl(topic string, payload []byte) error {
	cmd, err := protocol.ParseControl(payload)
	if err != nil {
		b.rejected.Add(1)
		b.logger.Warn("mqtt control command rejected", "topic", topic, "error", err)
		return nil
	}
	if err := Apply(b.ctx, b.controls, cmd, b.logger); err != nil {
		b.rejected.Add(1)
		return nil
	}
	b.applied.Add(1)
	return nil
}

// BridgeStats is a point-in-time copy of the bridge counters.
type BridgeStats struct {
	Published  uint64 `json:"published"`
	Failed     uint64 `json:"failed"`
	Superseded uint64 `json:"superseded"`
	Applied    uint64 `json:"applied"`
	Rejected   uint64 `json:"rejected"`
}

// Stats returns the current counters.
func (b *MQTTBridge) Stats() BridgeStats {
	return BridgeStats{
		Published:  b.published.Load(),
		Failed:     b.failed.Load(),
		Superseded: b.superseded.Load(),
		Applied:    b.applied.Load(),
		Rejected:   b.rejected.Load(),
	}
}
