// Package publish pushes telemetry snapshots to every configured output on a
// fixed interval.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"sportlink/internal/telemetry"
)

type Sink interface {
	Name() string
	Publish(snap telemetry.Snapshot) error
}

type SnapshotSource interface {
	Snapshot() telemetry.Snapshot
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(telemetry.Snapshot) error
}

func (f SinkFunc) Name() string                          { return f.SinkName }
func (f SinkFunc) Publish(snap telemetry.Snapshot) error { return f.Fn(snap) }

// Sender is anything that ships a byte payload, such as a UDP broadcaster.
type Sender interface {
	Send(payload []byte) error
}

// JSONSink sends each snapshot as one JSON document.
func JSONSink(name string, s Sender) Sink {
	return SinkFunc{SinkName: name, Fn: func(snap telemetry.Snapshot) error {
		b, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return s.Send(b)
	}}
}

// Run publishes until ctx is done. A failing sink is logged once per
// failure streak and does not hold up the others.
func Run(ctx context.Context, src SnapshotSource, interval time.Duration, sinks []Sink, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	failing := make([]bool, len(sinks))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		publishOnce(src.Snapshot(), sinks, failing, log)
	}
}

func publishOnce(snap telemetry.Snapshot, sinks []Sink, failing []bool, log zerolog.Logger) {
	for i, s := range sinks {
		err := s.Publish(snap)
		switch {
		case err != nil && !failing[i]:
			log.Warn().Err(err).Str("sink", s.Name()).Msg("publish failed")
			failing[i] = true
		case err == nil && failing[i]:
			log.Info().Str("sink", s.Name()).Msg("publish recovered")
			failing[i] = false
		}
	}
}
