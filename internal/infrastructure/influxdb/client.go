package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/classroom-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes room telemetry to one InfluxDB bucket.
//
// Writes never block the caller: points are batched by the library and
// sent in the background. Batch failures are counted, wrapped in
// ErrWriteFailed and handed to the SetOnError callback.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	mu        sync.RWMutex
	connected bool
	lastError string
	onError   func(err error)

	points      atomic.Uint64
	writeErrors atomic.Uint64
}

// Stats is a point-in-time view of the telemetry writer.
type Stats struct {
	Connected   bool   `json:"connected"`
	Bucket      string `json:"bucket"`
	Points      uint64 `json:"points"`
	WriteErrors uint64 `json:"write_errors"`
	LastError   string `json:"last_error,omitempty"`
}

// Connect pings the server and prepares the batching write API.
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled when telemetry is off, ErrConnectionFailed when
//     the server cannot be reached or reports itself unhealthy
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:    cfg.Bucket,
		connected: true,
	}
	go c.collectErrors(c.writeAPI.Errors())
	return c, nil
}

// clientOptions applies batch size and flush interval, falling back to the
// defaults for non-positive values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(time.Duration(flushSeconds) * time.Second / time.Millisecond))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// collectErrors drains the write API's error channel until it is closed.
func (c *Client) collectErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.recordWriteError(err)
	}
}

func (c *Client) recordWriteError(err error) {
	c.writeErrors.Add(1)
	wrapped := fmt.Errorf("%w: %w", ErrWriteFailed, err)

	c.mu.Lock()
	c.lastError = wrapped.Error()
	callback := c.onError
	c.mu.Unlock()

	if callback != nil {
		callback(wrapped)
	}
}

// write queues one point. Points written while disconnected are dropped.
func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
	c.points.Add(1)
}

// Close sends whatever is still batched and releases the client. Closing
// a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is usable. It does not ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for failed batches.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	connected, lastError := c.connected, c.lastError
	c.mu.RUnlock()

	return Stats{
		Connected:   connected,
		Bucket:      c.bucket,
		Points:      c.points.Load(),
		WriteErrors: c.writeErrors.Load(),
		LastError:   lastError,
	}
}
