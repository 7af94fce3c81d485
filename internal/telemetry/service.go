// Package telemetry runs the S.PORT decoder against a byte source and
// publishes the decoded state as snapshots.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sportlink/internal/sport"
)

// Source delivers downlink bytes in arrival order.
//
// Run blocks until ctx is done, the source fails, or the source is exhausted
// (nil error). feed must not be called after Run returns.
type Source interface {
	Name() string
	Run(ctx context.Context, feed func(p []byte)) error
}

// Recorder receives every chunk of raw bytes before it is decoded.
type Recorder interface {
	Write(now time.Time, data []byte) error
}

type Config struct {
	AltitudeSource sport.AltitudeSource
	// MaxFrameAge abandons partial frames older than this. Zero disables it.
	MaxFrameAge time.Duration
	Recorder    Recorder
	Logger      zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

type Snapshot struct {
	Source string `json:"source,omitempty"`
	Valid  bool   `json:"valid"`
	HasFix bool   `json:"has_fix"`
	HasLat bool   `json:"has_lat"`
	HasLon bool   `json:"has_lon"`

	// Millionths of a degree.
	LatE6     int32   `json:"lat_e6"`
	LonE6     int32   `json:"lon_e6"`
	LatDeg    float64 `json:"lat_deg"`
	LonDeg    float64 `json:"lon_deg"`
	AltMeters int16   `json:"alt_m"`

	AltitudeSource string `json:"altitude_source"`

	BytesRead uint64               `json:"bytes_read"`
	Assembler sport.AssemblerStats `json:"assembler"`
	Decoder   sport.DecoderStats   `json:"decoder"`

	LastFrameUTC string  `json:"last_frame_utc,omitempty"`
	FrameAgeSec  float64 `json:"frame_age_sec,omitempty"`
	LastError    string  `json:"last_error,omitempty"`

	lastFrame time.Time
}

type Service struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time

	// mu serializes the assembler, decoder and state.
	mu        sync.Mutex
	asm       *sport.Assembler
	dec       *sport.Decoder
	state     sport.State
	bytesRead uint64
	lastFrame time.Time
	lastErr   string
	recordErr bool
	source    string

	startMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	last atomic.Value // Snapshot
}

func New(cfg Config) *Service {
	s := &Service{cfg: cfg, log: cfg.Logger, now: cfg.Now}
	if s.now == nil {
		s.now = time.Now
	}
	s.asm = sport.NewAssembler(sport.WithMaxFrameAge(cfg.MaxFrameAge), sport.WithClock(s.now))
	s.dec = sport.NewDecoder(&s.state, sport.WithAltitudeSource(cfg.AltitudeSource))
	s.last.Store(Snapshot{AltitudeSource: cfg.AltitudeSource.String()})
	return s
}

// Feed decodes p and publishes a fresh snapshot. It returns the number of
// frames that passed the checksum.
func (s *Service) Feed(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.cfg.Recorder; rec != nil {
		if err := rec.Write(now, p); err != nil {
			if !s.recordErr {
				s.log.Error().Err(err).Msg("capture write failed")
			}
			s.recordErr = true
		}
	}

	s.bytesRead += uint64(len(p))
	good := 0
	s.asm.Feed(p, func(f *sport.RawFrame) {
		if err := s.dec.Decode(f); err != nil {
			s.log.Debug().Err(err).Hex("frame", f[:]).Msg("frame dropped")
			return
		}
		good++
	})
	if good > 0 {
		s.lastFrame = now
		if s.lastErr != "" {
			s.log.Info().Msg("telemetry data resumed")
			s.lastErr = ""
		}
	}
	s.publishLocked(now)
	return good
}

// State returns a copy of the decoded telemetry.
func (s *Service) State() sport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	snap := v.(Snapshot)
	if !snap.lastFrame.IsZero() {
		snap.FrameAgeSec = s.now().Sub(snap.lastFrame).Seconds()
	}
	return snap
}

// Start runs src in the background, restarting it with backoff when it
// fails. A source that returns nil is done and is not restarted.
func (s *Service) Start(ctx context.Context, src Source) error {
	if s == nil {
		return fmt.Errorf("telemetry service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if src == nil {
		return fmt.Errorf("source is nil")
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("telemetry service already started")
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	s.source = src.Name()
	s.publishLocked(s.now())
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSource(childCtx, src)
	}()
	return nil
}

func (s *Service) runSource(ctx context.Context, src Source) {
	const (
		minBackoff = 250 * time.Millisecond
		maxBackoff = 10 * time.Second
	)
	backoff := minBackoff
	log := s.log.With().Str("source", src.Name()).Logger()
	log.Info().Msg("telemetry source starting")

	for {
		started := s.now()
		err := src.Run(ctx, func(p []byte) { s.Feed(p) })
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			log.Info().Msg("telemetry source finished")
			return
		}

		s.setError(err.Error())
		log.Warn().Err(err).Dur("retry_in", backoff).Msg("telemetry source stopped")

		// A source that ran for a while earns a fresh backoff.
		if s.now().Sub(started) > maxBackoff {
			backoff = minBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Close stops the source and waits for it to return.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.startMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.startMu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.publishLocked(s.now())
}

func (s *Service) publishLocked(now time.Time) {
	st := s.state
	snap := Snapshot{
		Source:         s.source,
		Valid:          st.HasFix && st.HasLat && st.HasLon,
		HasFix:         st.HasFix,
		HasLat:         st.HasLat,
		HasLon:         st.HasLon,
		LatE6:          st.TargetLatitude(),
		LonE6:          st.TargetLongitude(),
		AltMeters:      st.TargetAltitude(),
		AltitudeSource: s.dec.AltitudeSource().String(),
		BytesRead:      s.bytesRead,
		Assembler:      s.asm.Stats(),
		Decoder:        s.dec.Stats(),
		LastError:      s.lastErr,
	}
	snap.LatDeg = float64(snap.LatE6) / 1e6
	snap.LonDeg = float64(snap.LonE6) / 1e6
	if !s.lastFrame.IsZero() {
		snap.lastFrame = s.lastFrame
		snap.LastFrameUTC = s.lastFrame.UTC().Format(time.RFC3339Nano)
		snap.FrameAgeSec = now.Sub(s.lastFrame).Seconds()
	}
	s.last.Store(snap)
}
