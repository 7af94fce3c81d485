package source

import (
	"context"
	"fmt"
	"time"

	"sportlink/internal/replay"
)

// Replay plays back a capture recorded by replay.Writer.
type Replay struct {
	path    string
	speed   float64
	loop    bool
	sleeper replay.Sleeper
}

func NewReplay(path string, speed float64, loop bool) *Replay {
	return &Replay{path: path, speed: speed, loop: loop}
}

func (r *Replay) Name() string { return "replay:" + r.path }

func (r *Replay) Run(ctx context.Context, feed func(p []byte)) error {
	recs, err := replay.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("replay load: %w", err)
	}
	sleeper := r.sleeper
	if sleeper == nil {
		sleeper = ctxSleeper{ctx}
	}
	err = replay.Play(recs, r.speed, r.loop, sleeper, func(data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		feed(data)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type ctxSleeper struct{ ctx context.Context }

func (s ctxSleeper) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}
