package delia_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbotsaris/delia"
)

// findCard searches /proc/asound/cards for the passed device name and returns
// its card number, or -1 if not found.
func findCard(name string) int {
	content, err := os.ReadFile("/proc/asound/cards")
	if err != nil {
		return -1
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, name) {
			var card int
			// The format is " 0 [Loopback       ]: Loopback - Loopback"
			if _, err := fmt.Sscanf(line, " %d", &card); err == nil {
				return card
			}
		}
	}

	return -1
}

// requireLoopback skips the test unless the snd-aloop loopback card is
// loaded.
func requireLoopback(t *testing.T) int {
	t.Helper()

	card := findCard("Loopback")
	if card == -1 {
		t.Skip("ALSA loopback device not found; run: sudo modprobe snd-aloop")
	}

	return card
}

func TestConfigureLoopback(t *testing.T) {
	card := requireLoopback(t)

	d, err := delia.Configure(delia.Options{
		Port:        fmt.Sprintf("hw:%d,0", card),
		Direction:   delia.Playback,
		Rate:        48000,
		Channels:    2,
		Format:      delia.FormatS16LE,
		PeriodSize:  1024,
		PeriodCount: 4,
	})
	require.NoError(t, err)
	defer d.Teardown()

	assert.Equal(t, delia.Playback, d.Direction())
	assert.Equal(t, 48000, d.Rate())
	assert.Equal(t, 2, d.Channels())
	assert.Equal(t, delia.FormatS16LE, d.Format())
	assert.Equal(t, 1024, d.PeriodSize())
	assert.Equal(t, 4, d.PeriodCount())
	assert.Equal(t, 4096, d.BufferSize())
	assert.Equal(t, 4, d.FrameBytes())
	assert.Equal(t, 2048, d.StartThreshold())
}

func TestConfigureRejectsImpossibleRate(t *testing.T) {
	card := requireLoopback(t)

	_, err := delia.Configure(delia.Options{
		Port:      fmt.Sprintf("hw:%d,0", card),
		Direction: delia.Playback,
		Rate:      7,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, delia.ErrSampleRate) || errors.Is(err, delia.ErrOpen),
		"an unsupported rate must fail configuration, got: %v", err)
}

func TestPlaybackSessionLoopback(t *testing.T) {
	card := requireLoopback(t)

	d, err := delia.Configure(delia.Options{
		Port:      fmt.Sprintf("hw:%d,0", card),
		Direction: delia.Playback,
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	defer d.Teardown()

	require.NoError(t, d.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var phase float64
	step := 2 * math.Pi * 440 / float64(d.Rate())

	chunks := 0
	err = d.Start(ctx, func(c *delia.Chunk) {
		chunks++
		for c.Remaining() >= c.Channels() {
			s := math.Sin(phase)
			phase += step
			for i := 0; i < c.Channels(); i++ {
				if c.Write(s) != nil {
					return
				}
			}
		}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, chunks, "the loop should have transferred at least one chunk")
}

func TestCaptureSessionLoopback(t *testing.T) {
	card := requireLoopback(t)

	d, err := delia.Configure(delia.Options{
		Port:      fmt.Sprintf("hw:%d,1", card),
		Direction: delia.Capture,
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	defer d.Teardown()

	require.NoError(t, d.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	frames := 0
	err = d.Start(ctx, func(c *delia.Chunk) {
		frames += c.Frames()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, frames)
}

func TestDuplexLoopback(t *testing.T) {
	card := requireLoopback(t)

	pair, err := delia.ConfigureDuplex(
		delia.Options{Port: fmt.Sprintf("hw:%d,0", card), Timeout: time.Second},
		delia.Options{Port: fmt.Sprintf("hw:%d,1", card), Timeout: time.Second},
	)
	require.NoError(t, err)
	defer pair.Teardown()

	assert.True(t, pair.ChannelsMatch())
	require.NoError(t, pair.Prepare())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = pair.Start(ctx, func(capture, playback *delia.Chunk) {
		// Monitor: whatever arrives goes straight back out.
		for {
			s, ok := capture.Read()
			if !ok {
				break
			}
			if playback.Write(s) != nil {
				break
			}
		}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProbeOnLoopback(t *testing.T) {
	card := requireLoopback(t)

	d, err := delia.Configure(delia.Options{
		Port:      fmt.Sprintf("hw:%d,0", card),
		Direction: delia.Playback,
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	defer d.Teardown()

	var snaps []delia.ProbeSnapshot
	probe := delia.NewProbe(func(s delia.ProbeSnapshot) { snaps = append(snaps, s) }, delia.ProbeOptions{})
	d.AttachProbe(probe)

	require.NoError(t, d.Prepare())
	probe.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = d.Start(ctx, func(c *delia.Chunk) {
		for c.Write(0) == nil {
		}
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotEmpty(t, snaps, "half a second should complete at least one buffer window")
	for _, s := range snaps {
		assert.Equal(t, d.BufferSize(), s.Frames)
		assert.Positive(t, s.Actual)
	}
}

func TestQueryCapabilitiesLoopback(t *testing.T) {
	card := requireLoopback(t)

	caps, err := delia.QueryCapabilities(fmt.Sprintf("hw:%d,0", card), delia.Playback, nil)
	require.NoError(t, err)

	assert.True(t, caps.Supports(delia.FormatS16LE))
	assert.True(t, caps.SupportsRate(48000))
	assert.Contains(t, caps.Rates, 48000)
	assert.Contains(t, caps.Access, delia.AccessMmapInterleaved)
	assert.NotZero(t, caps.Defaults.Rate)
	assert.Positive(t, caps.MaxChannels)
}

func TestDeviceDelayAndStop(t *testing.T) {
	card := requireLoopback(t)

	d, err := delia.Configure(delia.Options{
		Port:      fmt.Sprintf("hw:%d,0", card),
		Direction: delia.Playback,
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	defer d.Teardown()

	require.NoError(t, d.Prepare())

	_, err = d.Delay()
	assert.NoError(t, err)

	assert.NoError(t, d.Stop())
}
