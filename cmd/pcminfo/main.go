package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pbotsaris/delia"
)

func main() {
	var (
		port   string
		stream string
	)

	flag.StringVar(&port, "port", delia.DefaultPort, "The hardware port (hw:card,device)")
	flag.StringVar(&stream, "stream", "playback", "The stream direction ('playback' or 'capture')")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Displays the capabilities of a PCM port.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	var dir delia.Direction
	switch strings.ToLower(stream) {
	case "playback":
		dir = delia.Playback
	case "capture":
		dir = delia.Capture
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid stream direction %q. Must be 'playback' or 'capture'.\n", stream)
		os.Exit(1)
	}

	caps, err := delia.QueryCapabilities(port, dir, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying capabilities: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Port %s, stream %s:\n", caps.Port, caps.Direction)

	fmt.Print("  Formats:  ")
	for i, f := range caps.Formats {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(f)
	}
	fmt.Println()

	fmt.Printf("  Rate:     %d - %d Hz\n", caps.MinRate, caps.MaxRate)

	fmt.Print("  Rates:    ")
	for i, r := range caps.Rates {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(r)
	}
	fmt.Println()

	fmt.Printf("  Channels: %d - %d ", caps.MinChannels, caps.MaxChannels)
	fmt.Println(caps.Channels)

	fmt.Print("  Access:   ")
	for i, a := range caps.Access {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(a)
	}
	fmt.Println()

	d := caps.Defaults
	fmt.Printf("  Defaults: %s, %d Hz, %d channels, %s\n", d.Format, d.Rate, d.Channels, d.Access)
}
