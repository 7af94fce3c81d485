package sport

import "time"

type assemblerState uint8

const (
	stateIdle assemblerState = iota
	stateInFrame
	stateEscaped
)

// AssemblerStats counts stream-level events. None of them are errors.
type AssemblerStats struct {
	Frames  uint64 `json:"frames"`
	Resyncs uint64 `json:"resyncs"`
	Stale   uint64 `json:"stale"`
}

// Assembler recovers frames from the byte-stuffed wire stream.
//
// It is not safe for concurrent use; callers serialize FeedByte.
type Assembler struct {
	buf   RawFrame
	n     int
	state assemblerState

	maxAge  time.Duration
	now     func() time.Time
	started time.Time

	stats AssemblerStats
}

type AssemblerOption func(*Assembler)

// WithMaxFrameAge abandons a partial frame once it has been open longer than
// d. Zero disables the check.
func WithMaxFrameAge(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.maxAge = d
		}
	}
}

// WithClock replaces time.Now for frame age accounting.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FeedByte consumes one received byte. When it completes a frame, the frame
// is returned with ok=true. The returned frame aliases the assembler's buffer
// and is only valid until the next call.
func (a *Assembler) FeedByte(b byte) (frame *RawFrame, ok bool) {
	if a.maxAge > 0 && a.state != stateIdle && a.now().Sub(a.started) > a.maxAge {
		a.stats.Stale++
		a.reset()
	}

	// The delimiter wins over everything, including a pending escape.
	if b == startStop {
		if a.state != stateIdle && a.n > 0 {
			a.stats.Resyncs++
		}
		a.n = 0
		a.state = stateInFrame
		if a.maxAge > 0 {
			a.started = a.now()
		}
		return nil, false
	}

	switch a.state {
	case stateIdle:
		return nil, false
	case stateInFrame:
		if b == byteStuff {
			a.state = stateEscaped
			return nil, false
		}
		a.store(b)
	case stateEscaped:
		a.store(b ^ stuffMask)
		a.state = stateInFrame
	}

	if a.n == FrameSize {
		a.stats.Frames++
		a.reset()
		return &a.buf, true
	}
	return nil, false
}

// Feed runs FeedByte over p and calls fn for every completed frame.
func (a *Assembler) Feed(p []byte, fn func(*RawFrame)) {
	for _, b := range p {
		if f, ok := a.FeedByte(b); ok && fn != nil {
			fn(f)
		}
	}
}

func (a *Assembler) Stats() AssemblerStats { return a.stats }

func (a *Assembler) store(b byte) {
	a.buf[a.n] = b
	a.n++
}

func (a *Assembler) reset() {
	a.n = 0
	a.state = stateIdle
}
