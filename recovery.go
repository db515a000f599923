package delia

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"
)

// condition classifies the hardware state observed at the top of a loop
// iteration. It is recomputed every cycle and never persisted.
type condition int

const (
	condNormal condition = iota
	condXrun
	condSuspended
	condUnexpected
)

// classify maps a stream state to a loop condition. Prepared and Running are
// the only states the loop treats as normal; anything else it either
// remedies or aborts on.
func classify(s StreamState) condition {
	switch s {
	case StatePrepared, StateRunning:
		return condNormal
	case StateXrun:
		return condXrun
	case StateSuspended:
		return condSuspended
	default:
		return condUnexpected
	}
}

// Suspension recovery budget.
const (
	resumeRetries        = 5
	resumeInitialBackoff = 10 * time.Millisecond
	resumeBackoffFactor  = 1.2
)

// recoverer remedies transient hardware conditions for one stream. sleep is
// replaceable so tests can observe the backoff schedule without waiting it
// out.
type recoverer struct {
	hw    pcmStream
	log   *slog.Logger
	sleep func(time.Duration)
}

func newRecoverer(hw pcmStream, log *slog.Logger) *recoverer {
	return &recoverer{hw: hw, log: log, sleep: time.Sleep}
}

// recoverXrun remedies an underrun or overrun by unconditionally re-issuing
// the hardware prepare transition.
func (r *recoverer) recoverXrun() error {
	r.log.Debug("recovering from xrun")

	if err := r.hw.Prepare(); err != nil {
		return fmt.Errorf("xrun recovery: %w", err)
	}

	return nil
}

// recoverSuspend remedies a suspension by retrying resume with exponential
// backoff. Exhausting the budget while the hardware keeps answering EAGAIN
// surfaces ErrResumeTimeout; any other resume failure means resume will
// never signal success, so preparation is the fallback.
func (r *recoverer) recoverSuspend() error {
	delay := resumeInitialBackoff

	for attempt := 0; attempt < resumeRetries; attempt++ {
		r.sleep(delay)

		err := r.hw.Resume()
		if err == nil {
			r.log.Debug("stream resumed", "attempt", attempt+1)

			return nil
		}

		if !errors.Is(err, syscall.EAGAIN) {
			r.log.Debug("resume not supported, preparing instead", "err", err)

			return r.recoverXrun()
		}

		delay = time.Duration(float64(delay) * resumeBackoffFactor)
	}

	return ErrResumeTimeout
}

// recover dispatches on the classified condition.
func (r *recoverer) recover(c condition) error {
	switch c {
	case condXrun:
		return r.recoverXrun()
	case condSuspended:
		return r.recoverSuspend()
	default:
		return nil
	}
}
