package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sportlink/internal/sim"
	"sportlink/internal/sport"
)

type collector struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *collector) feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
}

func (c *collector) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func TestStream_ReadsUntilEOF(t *testing.T) {
	payload := sport.Stuff(sport.HubFrame(0x83, sport.GPSLatBPID, 52))
	s := NewStream("test", func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	})

	var c collector
	err := s.Run(context.Background(), c.feed)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, payload, c.bytes())
}

func TestStream_OpenError(t *testing.T) {
	boom := errors.New("no such device")
	s := NewStream("test", func(ctx context.Context) (io.ReadCloser, error) { return nil, boom })
	err := s.Run(context.Background(), func([]byte) {})
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "test: no such device")
}

func TestStream_CancelUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := NewStream("pipe", func(ctx context.Context) (io.ReadCloser, error) { return pr, nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func([]byte) {}) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTCP_ReadsFromListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	payload := sport.Stuff(sport.HubFrame(0x83, sport.GPSLatNSID, 'N'))
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		_ = conn.Close()
	}()

	var c collector
	err = NewTCP(ln.Addr().String()).Run(context.Background(), c.feed)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, payload, c.bytes())
}

func TestReplay_FeedsCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.log")
	require.NoError(t, os.WriteFile(path, []byte("START\n0,7e98\n1000,1012\n"), 0o644))

	var c collector
	r := NewReplay(path, 1, false)
	require.NoError(t, r.Run(context.Background(), c.feed))
	require.Equal(t, []byte{0x7e, 0x98, 0x10, 0x12}, c.bytes())
	require.Equal(t, "replay:"+path, r.Name())
}

func TestReplay_MissingFile(t *testing.T) {
	r := NewReplay(filepath.Join(t.TempDir(), "missing.log"), 1, false)
	require.Error(t, r.Run(context.Background(), func([]byte) {}))
}

func TestSim_FeedsDecodableFrames(t *testing.T) {
	s := NewSim(sim.Target{CenterLatDeg: 52.52, CenterLonDeg: 13.40, AltMeters: 50}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	var st sport.State
	dec := sport.NewDecoder(&st)
	asm := sport.NewAssembler()
	frames := 0
	calls := 0
	err := s.Run(ctx, func(p []byte) {
		calls++
		if calls > 1 {
			return
		}
		asm.Feed(p, func(f *sport.RawFrame) {
			require.NoError(t, dec.Decode(f))
			frames++
		})
		cancel()
	})
	require.NoError(t, err)
	require.Equal(t, 9, frames)
	require.True(t, st.HasLat && st.HasLon && st.HasFix)
	require.InDelta(t, 52.52, float64(st.TargetLatitude())/1e6, 0.01)
}
