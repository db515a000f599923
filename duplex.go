package delia

import (
	"context"
	"fmt"
	"log/slog"
)

// DuplexHandler is invoked once per duplex cycle with the capture chunk first
// and the playback chunk second. Both views are invalid after it returns.
type DuplexHandler func(capture, playback *Chunk)

// DuplexPair owns one playback and one capture device and runs them under a
// synchronization protocol fixed at construction: hardware-linked when both
// directions resolve to the same hardware port and the kernel accepts the
// link, independently polled otherwise.
type DuplexPair struct {
	playback *Device
	capture  *Device

	linked        bool
	channelsMatch bool

	advanced uint64
	log      *slog.Logger
}

// ConfigureDuplex configures both directions and attempts a hardware link
// when they share a port. Failure of either configuration releases whatever
// was opened.
func ConfigureDuplex(playbackOpts, captureOpts Options) (*DuplexPair, error) {
	playbackOpts.Direction = Playback
	captureOpts.Direction = Capture

	pb, err := Configure(playbackOpts)
	if err != nil {
		return nil, fmt.Errorf("duplex playback: %w", err)
	}

	cp, err := Configure(captureOpts)
	if err != nil {
		pb.Teardown()

		return nil, fmt.Errorf("duplex capture: %w", err)
	}

	pair := &DuplexPair{
		playback:      pb,
		capture:       cp,
		channelsMatch: pb.channels == cp.channels,
		log:           pb.log,
	}

	if pb.raw != nil && cp.raw != nil && pb.raw.hardwareID() == cp.raw.hardwareID() {
		if err := pb.raw.Link(cp.raw); err != nil {
			pair.log.Warn("hardware link refused, falling back to unlinked duplex", "err", err)
		} else {
			pair.linked = true
		}
	}

	return pair, nil
}

// Prepare sets software parameters on both directions. On a linked pair only
// the master issues the hardware prepare transition; the slave's software
// parameters are still written but its prepare is suppressed.
func (p *DuplexPair) Prepare() error {
	if p.linked {
		if err := p.capture.prepare(false); err != nil {
			return fmt.Errorf("duplex capture: %w", err)
		}

		return p.playback.prepare(true)
	}

	if err := p.capture.Prepare(); err != nil {
		return fmt.Errorf("duplex capture: %w", err)
	}

	return p.playback.Prepare()
}

// Start runs the duplex loop on the calling goroutine until ctx is done or a
// fatal condition surfaces.
func (p *DuplexPair) Start(ctx context.Context, fn DuplexHandler) error {
	if p.playback.phase != phaseSoftwareConfigured || p.capture.phase != phaseSoftwareConfigured {
		return fmt.Errorf("%w: duplex pair not prepared", ErrSoftwareParams)
	}

	p.playback.phase = phaseRunning
	p.capture.phase = phaseRunning
	defer func() {
		p.playback.phase = phaseSoftwareConfigured
		p.capture.phase = phaseSoftwareConfigured
	}()

	loop := &duplexLoop{
		pair: p,
		play: newLoopHalf(p.playback),
		capt: newLoopHalf(p.capture),
	}

	if p.linked {
		return loop.runLinked(ctx, fn)
	}

	return loop.runUnlinked(ctx, fn)
}

// Teardown unlinks a linked pair and releases both devices.
func (p *DuplexPair) Teardown() {
	if p.linked && p.playback.raw != nil {
		_ = p.playback.raw.Unlink()
		p.linked = false
	}

	p.capture.Teardown()
	p.playback.Teardown()
}

// Linked reports whether the kernel accepted the hardware link.
func (p *DuplexPair) Linked() bool { return p.linked }

// ChannelsMatch reports whether both directions carry the same channel count.
func (p *DuplexPair) ChannelsMatch() bool { return p.channelsMatch }

// FramesAdvanced returns the total frames the pair has advanced by, counting
// min(captureCommitted, playbackCommitted) per cycle.
func (p *DuplexPair) FramesAdvanced() uint64 { return p.advanced }

// Playback returns the playback half.
func (p *DuplexPair) Playback() *Device { return p.playback }

// Capture returns the capture half.
func (p *DuplexPair) Capture() *Device { return p.capture }

// duplexLoop composes two loop halves under one of the two protocols.
type duplexLoop struct {
	pair *DuplexPair
	play *loopHalf
	capt *loopHalf
}

// runLinked drives both streams off the master's (playback's) availability.
// One hardware start trigger starts both in sample-accurate alignment.
func (l *duplexLoop) runLinked(ctx context.Context, fn DuplexHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.play.checkState(); err != nil {
			return err
		}

		avail, retry, err := l.play.avail()
		if err != nil || retry {
			if err != nil {
				return err
			}

			continue
		}

		if avail < l.play.dev.periodSize {
			if l.play.state == loopStopped {
				if err := l.play.start(); err != nil {
					return err
				}

				l.capt.state = loopStarted

				continue
			}

			if err := l.play.wait(); err != nil {
				return err
			}

			continue
		}

		if err := l.transfer(fn, true); err != nil {
			return err
		}
	}
}

// runUnlinked polls, starts and waits on both directions independently and
// transfers only once both report at least one period.
func (l *duplexLoop) runUnlinked(ctx context.Context, fn DuplexHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.capt.checkState(); err != nil {
			return err
		}
		if err := l.play.checkState(); err != nil {
			return err
		}

		captAvail, retry, err := l.capt.avail()
		if err != nil || retry {
			if err != nil {
				return err
			}

			continue
		}

		// A capture stream produces nothing until started; start it as soon
		// as it has room for a period. Playback starts once its buffer has
		// filled, same as the single-direction rule. There is no automatic
		// co-start without a hardware link.
		if captAvail < l.capt.dev.periodSize {
			if l.capt.state == loopStopped {
				if err := l.capt.start(); err != nil {
					return err
				}

				continue
			}

			if err := l.capt.wait(); err != nil {
				return err
			}

			continue
		}

		playAvail, retry, err := l.play.avail()
		if err != nil || retry {
			if err != nil {
				return err
			}

			continue
		}

		if playAvail < l.play.dev.periodSize {
			if l.play.state == loopStopped {
				if err := l.play.start(); err != nil {
					return err
				}

				continue
			}

			if err := l.play.wait(); err != nil {
				return err
			}

			continue
		}

		if err := l.transfer(fn, false); err != nil {
			return err
		}
	}
}

// transfer obtains one capture chunk and one playback chunk, hands both to
// the callback (capture first), commits both and advances the pair by the
// smaller committed count. On a linked pair the slave's zero-frame commits
// before its first start are not charged against the stall budget.
func (l *duplexLoop) transfer(fn DuplexHandler, linked bool) error {
	captChunk, captFrames, retry, err := l.capt.begin(l.capt.dev.periodSize)
	if err != nil || retry {
		return err
	}

	playChunk, playFrames, retry, err := l.play.begin(l.play.dev.periodSize)
	if err != nil || retry {
		return err
	}

	if captFrames == 0 && playFrames == 0 {
		return nil
	}

	fn(captChunk, playChunk)

	captCountStall := true
	if linked {
		captCountStall = l.capt.dev.hw.State() == StateRunning
	}

	captCommitted, retry, err := l.capt.commit(captFrames, captCountStall)
	if err != nil {
		return err
	}
	captRetry := retry

	playCommitted, retry, err := l.play.commit(playFrames, true)
	if err != nil {
		return err
	}

	if captRetry || retry {
		return nil
	}

	if captCommitted < playCommitted {
		l.pair.advanced += uint64(captCommitted)
	} else {
		l.pair.advanced += uint64(playCommitted)
	}

	return nil
}
