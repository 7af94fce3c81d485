package source

import (
	"context"
	"time"

	"sportlink/internal/sim"
	"sportlink/internal/sport"
)

// Sim feeds stuffed frames describing a simulated target every interval.
type Sim struct {
	target   sim.Target
	interval time.Duration
	now      func() time.Time
}

func NewSim(target sim.Target, interval time.Duration) *Sim {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Sim{target: target, interval: interval, now: time.Now}
}

func (s *Sim) Name() string { return "sim" }

func (s *Sim) Run(ctx context.Context, feed func(p []byte)) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	var wire []byte
	for {
		wire = wire[:0]
		for _, f := range s.target.Frames(s.now()) {
			wire = sport.AppendStuffed(wire, f)
		}
		feed(wire)

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
