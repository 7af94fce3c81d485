// Package source provides the byte sources the telemetry service reads from.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"sportlink/internal/serialport"
)

// Opener opens a byte stream.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Stream reads from whatever Open returns until it fails or ctx is done.
type Stream struct {
	name string
	open Opener
}

func NewStream(name string, open Opener) *Stream {
	return &Stream{name: name, open: open}
}

// NewSerial reads from a serial device. An empty device is auto-detected on
// every (re)open.
func NewSerial(device string, baud int) *Stream {
	device = strings.TrimSpace(device)
	name := "serial:" + device
	if device == "" {
		name = "serial:auto"
	}
	return NewStream(name, func(ctx context.Context) (io.ReadCloser, error) {
		dev := device
		if dev == "" {
			dev = serialport.AutoDetect()
			if dev == "" {
				return nil, fmt.Errorf("serial auto-detect failed: no candidate device found")
			}
		}
		return serialport.Open(dev, baud)
	})
}

// NewTCP reads from a TCP endpoint such as a ser2net bridge.
func NewTCP(addr string) *Stream {
	addr = strings.TrimSpace(addr)
	return NewStream("tcp:"+addr, func(ctx context.Context) (io.ReadCloser, error) {
		d := net.Dialer{Timeout: 5 * time.Second}
		return d.DialContext(ctx, "tcp", addr)
	})
}

func (s *Stream) Name() string { return s.name }

func (s *Stream) Run(ctx context.Context, feed func(p []byte)) error {
	if s.open == nil {
		return errors.New("stream has no opener")
	}
	rc, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	defer rc.Close()

	// Reads happen on their own goroutine so cancellation never waits on a
	// Read that Close cannot interrupt, such as a blocking tty fd.
	type chunk struct {
		p   []byte
		err error
	}
	chunks := make(chan chunk)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			buf := make([]byte, 256)
			n, err := rc.Read(buf)
			select {
			case chunks <- chunk{p: buf[:n], err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-chunks:
			if len(c.p) > 0 {
				feed(c.p)
			}
			if ctx.Err() != nil {
				return nil
			}
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					return fmt.Errorf("%s: %w", s.name, io.ErrUnexpectedEOF)
				}
				return fmt.Errorf("%s read: %w", s.name, c.err)
			}
		}
	}
}
