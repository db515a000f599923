package delia

import "time"

// ProbeSnapshot is one completed measurement window: the frames the loop
// committed over a whole number of buffer cycles, the wall-clock time they
// took, and the time they should have taken at the nominal rate.
type ProbeSnapshot struct {
	// Start and End bound the measurement window.
	Start time.Time
	End   time.Time

	// Expected is Frames divided by the nominal rate.
	Expected time.Duration

	// Actual is the observed wall-clock duration of the window.
	Actual time.Duration

	// Drift is Actual minus Expected. Positive means the hardware clock runs
	// slower than nominal, negative faster.
	Drift time.Duration

	// Frames is the number of frames committed in the window.
	Frames int

	// Cycles is the number of buffer cycles the window spans.
	Cycles int
}

// ProbeCallback receives one snapshot per completed window. It runs on the
// transfer loop goroutine and must be non-blocking.
type ProbeCallback func(ProbeSnapshot)

// ProbeOptions configures a Probe. Zero values select the defaults noted on
// each field.
type ProbeOptions struct {
	// BufferCycles is the window length in hardware buffer cycles
	// (default 1). Longer windows average out scheduling jitter.
	BufferCycles int
}

// Probe measures the drift between the hardware clock and the wall clock by
// timing the frames a transfer loop commits. It is passive: it observes
// committed counts and never touches the stream.
//
// A probe binds to one device via Device.AttachProbe and is not reusable
// across devices without a Reset.
type Probe struct {
	fn     ProbeCallback
	cycles int

	rate        int
	windowSize  int // frames per window
	accumulated int
	start       time.Time
	running     bool

	now func() time.Time
}

// NewProbe builds a probe that reports to fn.
func NewProbe(fn ProbeCallback, opts ProbeOptions) *Probe {
	cycles := opts.BufferCycles
	if cycles <= 0 {
		cycles = 1
	}

	return &Probe{fn: fn, cycles: cycles, now: time.Now}
}

// bind records the device geometry the windows are measured against.
func (p *Probe) bind(rate, bufferSize int) {
	p.rate = rate
	p.windowSize = p.cycles * bufferSize
}

// Start opens the first measurement window at the current time. Frames
// observed before Start are ignored.
func (p *Probe) Start() {
	p.start = p.now()
	p.accumulated = 0
	p.running = true
}

// Reset discards the current window and opens a fresh one at the current
// time. A probe that was never started stays stopped.
func (p *Probe) Reset() {
	p.start = p.now()
	p.accumulated = 0
}

// AddFrames feeds n committed frames into the current window. When the window
// fills, the snapshot is delivered and the next window opens at the end time
// of this one, so no interval between windows goes unmeasured.
func (p *Probe) AddFrames(n int) {
	if !p.running || p.windowSize == 0 || n <= 0 {
		return
	}

	p.accumulated += n
	if p.accumulated < p.windowSize {
		return
	}

	end := p.now()
	frames := p.accumulated

	expected := time.Duration(float64(frames) / float64(p.rate) * float64(time.Second))
	actual := end.Sub(p.start)

	p.fn(ProbeSnapshot{
		Start:    p.start,
		End:      end,
		Expected: expected,
		Actual:   actual,
		Drift:    actual - expected,
		Frames:   frames,
		Cycles:   p.cycles,
	})

	p.start = end
	p.accumulated = 0
}
