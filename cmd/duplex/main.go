package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbotsaris/delia"
)

// Monitors a capture port on a playback port: every captured sample is
// written straight back out, and a latency probe reports how far the
// hardware clock drifts from the wall clock.
func main() {
	var (
		playPort    string
		capPort     string
		rate        int
		channels    int
		periodSize  int
		periodCount int
		cycles      int
	)

	flag.StringVar(&playPort, "playback", delia.DefaultPort, "The playback port (hw:card,device)")
	flag.StringVar(&capPort, "capture", delia.DefaultPort, "The capture port (hw:card,device)")
	flag.IntVar(&rate, "rate", 48000, "The sample rate in Hz")
	flag.IntVar(&channels, "channels", 2, "The number of channels")
	flag.IntVar(&periodSize, "period-size", 1024, "The size of a period in frames")
	flag.IntVar(&periodCount, "period-count", 4, "The number of periods")
	flag.IntVar(&cycles, "probe-cycles", 4, "Buffer cycles per probe window")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Monitors the capture port on the playback port.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	opts := delia.Options{
		Rate:        rate,
		Channels:    channels,
		PeriodSize:  periodSize,
		PeriodCount: periodCount,
		Timeout:     time.Second,
	}

	playOpts := opts
	playOpts.Port = playPort
	capOpts := opts
	capOpts.Port = capPort

	pair, err := delia.ConfigureDuplex(playOpts, capOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring duplex pair: %v\n", err)
		os.Exit(1)
	}
	defer pair.Teardown()

	mode := "unlinked"
	if pair.Linked() {
		mode = "hardware-linked"
	}
	fmt.Printf("Duplex %s: playback %s, capture %s (%s)\n",
		mode, pair.Playback().Port(), pair.Capture().Port(), pair.Playback().Format())

	probe := delia.NewProbe(func(s delia.ProbeSnapshot) {
		fmt.Printf("probe: %d frames in %v (expected %v, drift %v)\n",
			s.Frames, s.Actual.Round(time.Microsecond),
			s.Expected.Round(time.Microsecond), s.Drift.Round(time.Microsecond))
	}, delia.ProbeOptions{BufferCycles: cycles})
	pair.Playback().AttachProbe(probe)

	if err := pair.Prepare(); err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing duplex pair: %v\n", err)
		os.Exit(1)
	}

	probe.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Monitoring; press Ctrl-C to stop.")

	err = pair.Start(ctx, func(capture, playback *delia.Chunk) {
		for {
			s, ok := capture.Read()
			if !ok {
				break
			}

			if playback.Write(s) != nil {
				break
			}
		}

		// Whatever the capture side could not fill becomes silence.
		for playback.Write(0) == nil {
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Duplex error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Advanced %d frames.\n", pair.FramesAdvanced())
}
