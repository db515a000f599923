package delia

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// loopState tracks the transfer loop's own view of one stream, distinct from
// the hardware state.
type loopState int

const (
	loopStopped loopState = iota
	loopStarted
	loopTransferring
)

// maxZeroCommits is the stall budget: this many consecutive zero-frame
// commits mean the stream is alive but not progressing, which recovery
// cannot fix.
const maxZeroCommits = 5

// loopHalf drives one direction through the per-cycle protocol. The single
// direction loop owns one half; the duplex synchronizer composes two.
type loopHalf struct {
	dev   *Device
	rec   *recoverer
	state loopState
	zero  int
}

func newLoopHalf(d *Device) *loopHalf {
	return &loopHalf{dev: d, rec: newRecoverer(d.hw, d.log)}
}

// checkState classifies the hardware state and remedies recoverable
// conditions in place. Unrecognized states are fatal.
func (h *loopHalf) checkState() error {
	st := h.dev.hw.State()

	switch c := classify(st); c {
	case condNormal:
		return nil
	case condUnexpected:
		return fmt.Errorf("%w: %s", ErrUnexpectedState, st)
	default:
		return h.rec.recover(c)
	}
}

// recoverErr maps an I/O error from the stream to the matching remedy.
// Anything that is not an xrun, a suspension or a preparable state is fatal.
func (h *loopHalf) recoverErr(err error) error {
	switch {
	case errors.Is(err, syscall.EPIPE), errors.Is(err, unix.EBADFD):
		return h.rec.recoverXrun()
	case errors.Is(err, unix.ESTRPIPE):
		return h.rec.recoverSuspend()
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedState, err)
	}
}

// avail queries available frames, recovering in place on failure. The
// retry return asks the caller to restart the iteration.
func (h *loopHalf) avail() (n int, retry bool, err error) {
	n, availErr := h.dev.hw.Avail()
	if availErr != nil {
		if err := h.recoverErr(availErr); err != nil {
			return 0, false, err
		}

		return 0, true, nil
	}

	return n, false, nil
}

// start issues the hardware start trigger and marks the half started.
func (h *loopHalf) start() error {
	if err := h.dev.hw.Start(); err != nil {
		return h.recoverErr(err)
	}

	h.state = loopStarted

	return nil
}

// wait blocks for availability within the configured timeout. A wait error
// triggers recovery and marks the half stopped.
func (h *loopHalf) wait() error {
	if _, err := h.dev.hw.Wait(h.dev.timeout); err != nil {
		h.state = loopStopped

		return h.recoverErr(err)
	}

	return nil
}

// begin maps up to wantFrames of the hardware buffer, verifies the alignment
// invariants and wraps the region in a chunk. frames may be less than
// requested when the region wraps.
func (h *loopHalf) begin(wantFrames int) (c *Chunk, frames int, retry bool, err error) {
	region, offsetBytes, frames, beginErr := h.dev.hw.Begin(wantFrames)
	if beginErr != nil {
		if err := h.recoverErr(beginErr); err != nil {
			return nil, 0, false, err
		}

		return nil, 0, true, nil
	}

	if offsetBytes%h.dev.frameBytes != 0 || len(region)%h.dev.frameBytes != 0 {
		return nil, 0, false, fmt.Errorf("%w: offset %dB, region %dB, frame stride %dB",
			ErrAlignment, offsetBytes, len(region), h.dev.frameBytes)
	}

	return NewChunk(region, h.dev.format, h.dev.channels, h.dev.rate), frames, false, nil
}

// commit finalizes a sub-transfer. countStall controls whether a zero-frame
// commit is charged against the stall budget; a linked slave that has not
// started yet legitimately commits zero frames and is not charged.
func (h *loopHalf) commit(frames int, countStall bool) (committed int, retry bool, err error) {
	committed, commitErr := h.dev.hw.Commit(frames)
	if commitErr != nil {
		if err := h.recoverErr(commitErr); err != nil {
			return 0, false, err
		}

		return 0, true, nil
	}

	if committed == 0 {
		if countStall {
			h.zero++
			if h.zero >= maxZeroCommits {
				return 0, false, fmt.Errorf("%w (%s)", ErrStalled, h.dev.dir)
			}
		}
	} else {
		h.zero = 0
	}

	if h.dev.probe != nil && committed > 0 {
		h.dev.probe.AddFrames(committed)
	}

	// Committing fewer frames than granted means the hardware moved
	// underneath us; recover and let the caller retry.
	if committed < frames {
		if err := h.rec.recoverXrun(); err != nil {
			return committed, false, err
		}

		return committed, true, nil
	}

	return committed, false, nil
}

// transferLoop runs the single-direction protocol.
type transferLoop struct {
	half *loopHalf
}

func newTransferLoop(d *Device) *transferLoop {
	return &transferLoop{half: newLoopHalf(d)}
}

// run drives iterations until ctx is done or a fatal condition surfaces.
// Cancellation is cooperative: the context is observed at the top of each
// iteration, never mid-callback.
func (l *transferLoop) run(ctx context.Context, fn Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.iterate(fn); err != nil {
			return err
		}
	}
}

// iterate performs one cycle: classify state, query availability, start or
// wait when a full period is not yet transferable, otherwise transfer one
// period.
func (l *transferLoop) iterate(fn Handler) error {
	h := l.half

	if err := h.checkState(); err != nil {
		return err
	}

	avail, retry, err := h.avail()
	if err != nil || retry {
		return err
	}

	if avail < h.dev.periodSize {
		if h.state == loopStopped {
			return h.start()
		}

		return h.wait()
	}

	return l.transferPeriod(fn)
}

// transferPeriod moves one period through the callback, possibly as several
// sub-transfers when the mapped region wraps or the hardware grants less
// than requested per begin.
func (l *transferLoop) transferPeriod(fn Handler) error {
	h := l.half
	h.state = loopTransferring
	defer func() {
		if h.state == loopTransferring {
			h.state = loopStarted
		}
	}()

	remaining := h.dev.periodSize
	for remaining > 0 {
		chunk, frames, retry, err := h.begin(remaining)
		if err != nil || retry {
			return err
		}

		if frames > 0 {
			fn(chunk)
		}

		committed, retry, err := h.commit(frames, true)
		if err != nil || retry {
			return err
		}

		if committed == 0 {
			// Nothing moved; yield back to the availability check rather
			// than spinning inside the period.
			return nil
		}

		remaining -= committed
	}

	return nil
}
