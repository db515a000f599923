package delia

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeFiresOncePerWindow(t *testing.T) {
	var snaps []ProbeSnapshot
	p := NewProbe(func(s ProbeSnapshot) { snaps = append(snaps, s) }, ProbeOptions{BufferCycles: 2})
	p.bind(48000, 512)

	base := time.Unix(100, 0)
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()

	clock = base.Add(11 * time.Millisecond)
	p.AddFrames(512)
	require.Empty(t, snaps, "half a window must not fire")

	clock = base.Add(22 * time.Millisecond)
	p.AddFrames(512)
	require.Len(t, snaps, 1, "a full window fires exactly once")

	s := snaps[0]
	assert.Equal(t, 1024, s.Frames)
	assert.Equal(t, 2, s.Cycles)
	assert.Equal(t, base, s.Start)
	assert.Equal(t, base.Add(22*time.Millisecond), s.End)

	frames := float64(1024)
	expected := time.Duration(frames / 48000 * float64(time.Second))
	assert.Equal(t, expected, s.Expected)
	assert.Equal(t, 22*time.Millisecond, s.Actual)
	assert.Equal(t, 22*time.Millisecond-expected, s.Drift)
}

func TestProbeWindowsAreContiguous(t *testing.T) {
	var snaps []ProbeSnapshot
	p := NewProbe(func(s ProbeSnapshot) { snaps = append(snaps, s) }, ProbeOptions{})
	p.bind(48000, 1024)

	base := time.Unix(0, 0)
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()

	clock = base.Add(21 * time.Millisecond)
	p.AddFrames(1024)
	clock = base.Add(43 * time.Millisecond)
	p.AddFrames(1024)

	require.Len(t, snaps, 2)
	assert.Equal(t, snaps[0].End, snaps[1].Start, "the next window opens where the last one closed")
	assert.Equal(t, 22*time.Millisecond, snaps[1].Actual)
}

func TestProbeIgnoresFramesBeforeStart(t *testing.T) {
	fired := 0
	p := NewProbe(func(ProbeSnapshot) { fired++ }, ProbeOptions{})
	p.bind(48000, 512)

	p.AddFrames(4096)
	assert.Zero(t, fired)
}

func TestProbeResetReopensWindow(t *testing.T) {
	var snaps []ProbeSnapshot
	p := NewProbe(func(s ProbeSnapshot) { snaps = append(snaps, s) }, ProbeOptions{})
	p.bind(48000, 512)

	base := time.Unix(100, 0)
	clock := base
	p.now = func() time.Time { return clock }

	p.Start()
	p.AddFrames(256)

	clock = base.Add(5 * time.Millisecond)
	p.Reset()

	p.AddFrames(256)
	require.Empty(t, snaps, "frames before Reset are discarded")

	clock = base.Add(17 * time.Millisecond)
	p.AddFrames(256)
	require.Len(t, snaps, 1)
	assert.Equal(t, 512, snaps[0].Frames)
	assert.Equal(t, base.Add(5*time.Millisecond), snaps[0].Start, "Reset records a fresh baseline")
	assert.Equal(t, 12*time.Millisecond, snaps[0].Actual)
}

func TestProbeResetBeforeStartStaysStopped(t *testing.T) {
	fired := 0
	p := NewProbe(func(ProbeSnapshot) { fired++ }, ProbeOptions{})
	p.bind(48000, 512)

	p.Reset()
	p.AddFrames(4096)

	assert.Zero(t, fired)
}

func TestProbeObservesLoopCommits(t *testing.T) {
	hw := newFakeStream(Capture, 4096, 4)
	hw.state = StateRunning
	hw.hw = 2048

	d := newTestDevice(hw, Capture, 48000, 1024, 2)

	fired := 0
	p := NewProbe(func(s ProbeSnapshot) {
		fired++
		assert.Equal(t, 2048, s.Frames)
	}, ProbeOptions{BufferCycles: 1})

	d.AttachProbe(p)
	p.Start()

	l := newTransferLoop(d)
	require.NoError(t, l.iterate(func(*Chunk) {}))
	assert.Zero(t, fired)
	require.NoError(t, l.iterate(func(*Chunk) {}))
	assert.Equal(t, 1, fired)
}
