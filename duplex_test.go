package delia

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPair(play, capt *fakeStream, periodSize, periodCount int) (*DuplexPair, *duplexLoop) {
	pd := newTestDevice(play, Playback, 48000, periodSize, periodCount)
	cd := newTestDevice(capt, Capture, 48000, periodSize, periodCount)

	pair := &DuplexPair{
		playback:      pd,
		capture:       cd,
		channelsMatch: true,
		log:           discardLogger(),
	}

	loop := &duplexLoop{
		pair: pair,
		play: newLoopHalf(pd),
		capt: newLoopHalf(cd),
	}

	return pair, loop
}

func TestDuplexAdvancesByMinCommitted(t *testing.T) {
	play := newFakeStream(Playback, 4096, 4)
	capt := newFakeStream(Capture, 4096, 4)
	pair, loop := newTestPair(play, capt, 1024, 4)

	// Before the capture side starts it has nothing to grant, so the pair
	// must not advance even though playback commits a full period.
	calls := 0
	require.NoError(t, loop.transfer(func(c, p *Chunk) {
		calls++
		assert.Equal(t, 0, c.Frames())
		assert.Equal(t, 1024, p.Frames())
	}, true))

	assert.Equal(t, 1, calls)
	assert.Zero(t, pair.advanced)

	// Once capture is running and a period has arrived, both sides move and
	// the pair advances by one period.
	capt.state = StateRunning
	capt.hw = capt.appl + 1024

	require.NoError(t, loop.transfer(func(c, p *Chunk) {
		assert.Equal(t, 1024, c.Frames())
	}, true))

	assert.Equal(t, uint64(1024), pair.advanced)
}

func TestDuplexLinkedSlaveZeroCommitsNotStalls(t *testing.T) {
	play := newFakeStream(Playback, 8192, 4)
	capt := newFakeStream(Capture, 8192, 4)
	_, loop := newTestPair(play, capt, 1024, 8)

	// A linked capture slave legitimately commits zero frames until the
	// master's start trigger reaches it. Far more than the stall budget of
	// such cycles must not end the session.
	for i := 0; i < maxZeroCommits*2; i++ {
		require.NoError(t, loop.transfer(func(c, p *Chunk) {}, true))
		play.hw = play.appl // hardware keeps draining the master
	}

	assert.Zero(t, loop.capt.zero, "pre-start zero commits must not count toward the stall budget")
}

func TestDuplexUnlinkedStallCountersAreIndependent(t *testing.T) {
	play := newFakeStream(Playback, 8192, 4)
	capt := newFakeStream(Capture, 8192, 4)
	capt.state = StateRunning
	capt.hw = 1 << 20 // capture always has data
	capt.zeroCommit = true

	pair, loop := newTestPair(play, capt, 1024, 8)

	var err error
	cycles := 0
	for err == nil {
		cycles++
		err = loop.transfer(func(c, p *Chunk) {}, false)
	}

	require.ErrorIs(t, err, ErrStalled)
	assert.Equal(t, maxZeroCommits, cycles, "the stalled side should end the session after its budget")
	assert.Zero(t, loop.play.zero, "the healthy side's counter must stay untouched")
	assert.Zero(t, pair.advanced)
}

func TestDuplexLinkedLoopStartsMaster(t *testing.T) {
	play := newFakeStream(Playback, 4096, 4)
	capt := newFakeStream(Capture, 4096, 4)
	capt.state = StateRunning
	capt.hw = 1 << 20

	pair, loop := newTestPair(play, capt, 1024, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	err := loop.runLinked(ctx, func(c, p *Chunk) {
		cycles++
		if cycles == 6 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, play.starts, "only the master issues the start trigger")
	assert.Zero(t, capt.starts)
	assert.Equal(t, uint64(6*1024), pair.advanced)
}

func TestDuplexUnlinkedLoopStartsBothSides(t *testing.T) {
	play := newFakeStream(Playback, 4096, 4)
	capt := newFakeStream(Capture, 4096, 4)

	pair, loop := newTestPair(play, capt, 1024, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	err := loop.runUnlinked(ctx, func(c, p *Chunk) {
		cycles++
		if cycles == 6 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, capt.starts, "capture must be started explicitly without a link")
	assert.Equal(t, 1, play.starts, "playback starts once its buffer has filled")
	assert.Equal(t, uint64(6*1024), pair.advanced)
}

func TestDuplexStartRequiresPrepare(t *testing.T) {
	play := newFakeStream(Playback, 4096, 4)
	capt := newFakeStream(Capture, 4096, 4)
	pair, _ := newTestPair(play, capt, 1024, 4)
	pair.playback.phase = phaseHardwareConfigured

	err := pair.Start(context.Background(), func(c, p *Chunk) {})
	require.ErrorIs(t, err, ErrSoftwareParams)
}
