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

func main() {
	var (
		port        string
		periodSize  int
		periodCount int
		channels    int
		rate        int
		formatStr   string
		duration    int
	)

	flag.StringVar(&port, "port", delia.DefaultPort, "The hardware port to capture from (hw:card,device)")
	flag.IntVar(&periodSize, "period-size", 1024, "The size of a period in frames")
	flag.IntVar(&periodCount, "period-count", 4, "The number of periods")
	flag.IntVar(&channels, "channels", 2, "The number of channels")
	flag.IntVar(&rate, "rate", 48000, "The sample rate in Hz")
	flag.StringVar(&formatStr, "format", "s16", "The sample format (s16, s24, s32, f32)")
	flag.IntVar(&duration, "duration", 5, "The duration of the capture in seconds")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <output-wav-file>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	format, err := parseFormat(formatStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	dev, err := delia.Configure(delia.Options{
		Port:        port,
		Direction:   delia.Capture,
		Rate:        rate,
		Channels:    channels,
		Format:      format,
		PeriodSize:  periodSize,
		PeriodCount: periodCount,
		Timeout:     time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring device: %v\n", err)
		os.Exit(1)
	}
	defer dev.Teardown()

	if err := dev.Prepare(); err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing device: %v\n", err)
		os.Exit(1)
	}

	sink := delia.NewWAVSink(out, format, dev.Channels(), dev.Rate())

	fmt.Printf("Capturing %ds from %s: %d Hz, %d channels, %s\n",
		duration, dev.Port(), dev.Rate(), dev.Channels(), dev.Format())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ctx, timeout := context.WithTimeout(ctx, time.Duration(duration)*time.Second)
	defer timeout()

	err = dev.Start(ctx, sink.Handler())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "Capture error: %v\n", err)
		os.Exit(1)
	}

	if err := sink.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error finalizing WAV file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d frames to %s\n", sink.Frames(), flag.Arg(0))
}

func parseFormat(s string) (delia.SampleFormat, error) {
	switch s {
	case "s16":
		return delia.FormatS16LE, nil
	case "s24":
		return delia.FormatS24LE, nil
	case "s32":
		return delia.FormatS32LE, nil
	case "f32":
		return delia.FormatF32LE, nil
	default:
		return 0, fmt.Errorf("unsupported format %q (want s16, s24, s32 or f32)", s)
	}
}
