package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/classroom-core/internal/protocol"
	"github.com/nerrad567/classroom-core/internal/room"
)

// Default channel timings.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultReopenDelay  = time.Second
	DefaultAckTimeout   = 200 * time.Millisecond
	DefaultMaxLine      = 4096
	DefaultQueueSize    = 64
)

// Config configures a Channel.
type Config struct {
	// DeviceID is reported in every status payload.
	DeviceID string

	// PollInterval bounds each wait for inbound bytes.
	PollInterval time.Duration

	// ReopenDelay is the pause before reopening a missing or failed link.
	ReopenDelay time.Duration

	// AckToken, when non-empty, must be read back after every write.
	AckToken   string
	AckTimeout time.Duration

	// MaxLine bounds a single inbound line.
	MaxLine int

	// QueueSize bounds the outbound queue.
	QueueSize int
}

// Stats is a point-in-time copy of the channel counters.
type Stats struct {
	Open         bool   `json:"open"`
	Queued       int    `json:"queued"`
	Opens        uint64 `json:"opens"`
	OpenFailures uint64 `json:"open_failures"`
	Sent         uint64 `json:"sent"`
	SendFailures uint64 `json:"send_failures"`
	QueueDropped uint64 `json:"queue_dropped"`
	Received     uint64 `json:"received"`
	Applied      uint64 `json:"applied"`
	Rejected     uint64 `json:"rejected"`
	Ignored      uint64 `json:"ignored"`
	Overflows    uint64 `json:"overflows"`
}

// Channel runs the serial sync loop.
type Channel struct {
	cfg      Config
	open     Opener
	controls Controls
	queue    *Queue
	logger   Logger

	// Owned by the Run goroutine.
	port   Port
	reader *portReader
	lines  *lineBuffer

	isOpen       atomic.Bool
	opens        atomic.Uint64
	openFailures atomic.Uint64
	sent         atomic.Uint64
	sendFailures atomic.Uint64
	received     atomic.Uint64
	applied      atomic.Uint64
	rejected     atomic.Uint64
	ignored      atomic.Uint64
	overflows    atomic.Uint64
}

// NewChannel creates a channel. Zero config values take the defaults above.
//
// Parameters:
//   - cfg: Channel settings
//   - open: Opens the link (see SerialOpener)
//   - controls: Receives decoded commands, normally the automation controller
//   - logger: Logger instance (may be nil)
func NewChannel(cfg Config, open Opener, controls Controls, logger Logger) *Channel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = DefaultReopenDelay
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.MaxLine <= 0 {
		cfg.MaxLine = DefaultMaxLine
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Channel{
		cfg:      cfg,
		open:     open,
		controls: controls,
		queue:    NewQueue(cfg.QueueSize),
		logger:   logger,
		lines:    newLineBuffer(cfg.MaxLine),
	}
}

// EnqueueStatus serialises snap and queues it for transmission.
func (c *Channel) EnqueueStatus(snap room.Snapshot) error {
	line, err := protocol.StatusLine(c.cfg.DeviceID, snap)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	c.queue.Push(line)
	return nil
}

// Stats returns the current counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Open:         c.isOpen.Load(),
		Queued:       c.queue.Len(),
		Opens:        c.opens.Load(),
		OpenFailures: c.openFailures.Load(),
		Sent:         c.sent.Load(),
		SendFailures: c.sendFailures.Load(),
		QueueDropped: c.queue.Dropped(),
		Received:     c.received.Load(),
		Applied:      c.applied.Load(),
		Rejected:     c.rejected.Load(),
		Ignored:      c.ignored.Load(),
		Overflows:    c.overflows.Load(),
	}
}

// Run keeps the link open and services it until ctx is cancelled.
// It returns nil on cancellation; link failures never end the loop.
func (c *Channel) Run(ctx context.Context) error {
	defer c.closePort()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if c.port == nil {
			if err := c.openPort(); err != nil {
				c.logger.Debug("serial link unavailable", "error", err, "retry_in", c.cfg.ReopenDelay)
				if !sleepCtx(ctx, c.cfg.ReopenDelay) {
					return nil
				}
				continue
			}
		}

		if err := c.drain(ctx); err != nil {
			c.logger.Warn("serial write failed, reopening", "error", err)
			c.closePort()
			continue
		}

		if err := c.poll(ctx, c.cfg.PollInterval); err != nil {
			c.logger.Warn("serial read failed, reopening", "error", err)
			c.closePort()
		}
	}
}

func (c *Channel) openPort() error {
	port, err := c.open()
	if err != nil {
		c.openFailures.Add(1)
		return err
	}
	c.port = port
	c.reader = startPortReader(port)
	c.lines.reset()
	c.isOpen.Store(true)
	c.opens.Add(1)
	c.logger.Info("serial link open")
	return nil
}

func (c *Channel) closePort() {
	if c.port == nil {
		return
	}
	c.reader.stop()
	if err := c.port.Close(); err != nil {
		c.logger.Debug("closing serial link", "error", err)
	}
	c.port = nil
	c.reader = nil
	c.isOpen.Store(false)
}

// drain transmits every queued line. Each entry is popped before it is
// written, so a failure loses it. Only write errors are returned; a failed
// acknowledgement is counted and the loop carries on.
func (c *Channel) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		line, ok := c.queue.Pop()
		if !ok {
			return nil
		}

		if _, err := c.port.Write(line); err != nil {
			c.sendFailures.Add(1)
			return err
		}

		if c.cfg.AckToken != "" {
			if err := c.awaitAck(ctx); err != nil {
				c.sendFailures.Add(1)
				c.logger.Debug("status not acknowledged", "error", err)
				if !errors.Is(err, ErrAckMismatch) && !errors.Is(err, ErrAckTimeout) {
					return err
				}
				continue
			}
		}
		c.sent.Add(1)
	}
	return nil
}

// awaitAck reads until len(AckToken) bytes arrive or AckTimeout expires.
// Bytes after the token, and all bytes of a mismatched reply, are passed on
// to the inbound line buffer.
func (c *Channel) awaitAck(ctx context.Context) error {
	token := []byte(c.cfg.AckToken)
	var got []byte

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	for len(got) < len(token) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			c.feed(ctx, got)
			return ErrAckTimeout
		case res := <-c.reader.results:
			if res.err != nil {
				return res.err
			}
			got = append(got, res.data...)
		}
	}

	if !bytes.Equal(got[:len(token)], token) {
		c.feed(ctx, got)
		return fmt.Errorf("%w: %q", ErrAckMismatch, got[:len(token)])
	}
	c.feed(ctx, got[len(token):])
	return nil
}

// poll waits up to d for inbound bytes and dispatches completed lines.
func (c *Channel) poll(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return nil
	case res := <-c.reader.results:
		if res.err != nil {
			return res.err
		}
		c.feed(ctx, res.data)
		return nil
	}
}

func (c *Channel) feed(ctx context.Context, data []byte) {
	if len(data) == 0 {
		return
	}
	c.lines.feed(data,
		func(line string) { c.dispatch(ctx, line) },
		func() {
			c.overflows.Add(1)
			c.logger.Warn("inbound line discarded", "error", ErrLineTooLong, "max", c.cfg.MaxLine)
		},
	)
}

// dispatch handles one inbound line.
func (c *Channel) dispatch(ctx context.Context, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	c.received.Add(1)

	cmd, err := protocol.ParseControlLine(line)
	switch {
	case errors.Is(err, protocol.ErrUnknownPrefix):
		c.ignored.Add(1)
		c.logger.Debug("ignoring inbound line", "prefix", linePrefix(line))
		return
	case err != nil:
		c.rejected.Add(1)
		c.logger.Warn("control command rejected", "error", err)
		return
	}

	if err := Apply(ctx, c.controls, cmd, c.logger); err != nil {
		c.rejected.Add(1)
		return
	}
	c.applied.Add(1)
}

// linePrefix returns the leading letters of a line for logging.
func linePrefix(line string) string {
	end := strings.IndexFunc(line, func(r rune) bool { return r < 'A' || r > 'Z' })
	if end < 0 {
		end = len(line)
	}
	if end > 16 {
		end = 16
	}
	return line[:end]
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
