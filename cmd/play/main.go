package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
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
		formatStr   string
		verbose     bool
	)

	flag.StringVar(&port, "port", delia.DefaultPort, "The hardware port to play on (hw:card,device)")
	flag.IntVar(&periodSize, "period-size", 1024, "The size of a period in frames")
	flag.IntVar(&periodCount, "period-count", 4, "The number of periods")
	flag.StringVar(&formatStr, "format", "s16", "The sample format (s16, s24, s32, f32)")
	flag.BoolVar(&verbose, "verbose", false, "Log engine diagnostics")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav-or-mp3-file>\n", os.Args[0])
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

	src, file, err := openSource(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	dev, err := delia.Configure(delia.Options{
		Port:        port,
		Direction:   delia.Playback,
		Rate:        src.SampleRate(),
		Channels:    src.Channels(),
		Format:      format,
		PeriodSize:  periodSize,
		PeriodCount: periodCount,
		Timeout:     time.Second,
		Logger:      logger,
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

	fmt.Printf("Playing %s on %s: %d Hz, %d channels, %s\n",
		flag.Arg(0), dev.Port(), dev.Rate(), dev.Channels(), dev.Format())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scratch := make([]float64, periodSize*dev.Channels())

	err = dev.Start(ctx, func(c *delia.Chunk) {
		for c.Remaining() > 0 {
			want := c.Remaining()
			if want > len(scratch) {
				want = len(scratch)
			}

			n, err := src.ReadSamples(scratch[:want])
			if n > 0 {
				if _, werr := c.WriteSamples(scratch[:n]); werr != nil {
					return
				}
			}

			if err != nil {
				// Pad the rest of the chunk with silence and stop.
				for c.Write(0) == nil {
				}
				if !errors.Is(err, io.EOF) {
					fmt.Fprintf(os.Stderr, "Decode error: %v\n", err)
				}
				cancel()

				return
			}
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Playback error: %v\n", err)
		os.Exit(1)
	}

	if err := dev.Drain(); err != nil {
		fmt.Fprintf(os.Stderr, "Drain error: %v\n", err)
	}

	fmt.Println("Done.")
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
