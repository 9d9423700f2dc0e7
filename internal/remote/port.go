package remote

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open duplex byte stream.
//
// Read may block; Close must unblock a pending Read. A Read that returns
// (0, io.EOF) is treated as "no data yet", which is how a serial port
// reports an expired read timeout.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the link. It is called again after every failure.
type Opener func() (Port, error)

// SerialConfig holds the serial line settings. The line is always 8N1.
type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// SerialOpener returns an Opener for a serial device.
func SerialOpener(cfg SerialConfig) Opener {
	return func() (Port, error) {
		port, err := serial.OpenPort(&serial.Config{
			Name:        cfg.Device,
			Baud:        cfg.Baud,
			ReadTimeout: cfg.ReadTimeout,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
		})
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.Device, err)
		}
		return port, nil
	}
}

// readResult is one chunk read from the port, or the error that ended reading.
type readResult struct {
	data []byte
	err  error
}

// portReader moves blocking reads off the channel loop so that the loop can
// wait on inbound data with a deadline.
type portReader struct {
	results chan readResult
	done    chan struct{}
}

func startPortReader(port Port) *portReader {
	r := &portReader{
		results: make(chan readResult, 16),
		done:    make(chan struct{}),
	}
	go r.run(port)
	return r
}

func (r *portReader) run(port Port) {
	buf := make([]byte, 512)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case r.results <- readResult{data: chunk}:
			case <-r.done:
				return
			}
		}
		if err == nil || (n == 0 && errors.Is(err, io.EOF)) {
			select {
			case <-r.done:
				return
			default:
			}
			continue
		}

		select {
		case r.results <- readResult{err: err}:
		case <-r.done:
		}
		return
	}
}

// stop releases the reader goroutine. The port must be closed as well to
// unblock a pending Read.
func (r *portReader) stop() {
	close(r.done)
}
