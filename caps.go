package delia

import (
	"fmt"
	"log/slog"
)

// standardRates are the rates tried individually during capability probing,
// beyond the min/max range the driver reports.
var standardRates = []int{
	8000, 11025, 16000, 22050, 32000, 44100,
	48000, 64000, 88200, 96000, 176400, 192000,
}

// maxProbedChannels bounds the per-count channel probe. Drivers advertising
// wider layouts still report them through MinChannels/MaxChannels.
const maxProbedChannels = 16

// Capabilities describes what one direction of a port supports, discovered by
// probing the driver one candidate at a time.
type Capabilities struct {
	Port      string
	Direction Direction

	Formats []SampleFormat

	// MinRate and MaxRate are the driver-reported bounds; Rates lists the
	// standard rates the driver accepts exactly.
	MinRate int
	MaxRate int
	Rates   []int

	MinChannels int
	MaxChannels int
	Channels    []int

	Access []AccessType

	Defaults Defaults
}

// Defaults is the configuration the prober recommends: the first discovered
// value on each axis, except access, which prefers memory-mapped interleaved
// whenever the hardware offers it.
type Defaults struct {
	Format   SampleFormat
	Rate     int
	Channels int
	Access   AccessType
}

// Supports reports whether the format was discovered.
func (c Capabilities) Supports(f SampleFormat) bool {
	for _, got := range c.Formats {
		if got == f {
			return true
		}
	}

	return false
}

// SupportsRate reports whether the rate falls in the driver-reported range.
func (c Capabilities) SupportsRate(rate int) bool {
	return rate >= c.MinRate && rate <= c.MaxRate && c.MinRate != 0
}

// QueryCapabilities opens one direction of a port, probes what it supports
// and closes it again. The port is left unconfigured; a later Configure call
// starts from scratch. An unopenable port yields empty capabilities and the
// open error.
func QueryCapabilities(port string, dir Direction, logger *slog.Logger) (Capabilities, error) {
	if logger == nil {
		logger = discardLogger()
	}

	caps := Capabilities{Port: port, Direction: dir}

	s, err := openStream(port, dir)
	if err != nil {
		return caps, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer func() { _ = s.close() }()

	p := &capProber{refine: s.refine, log: logger}
	p.probe(&caps)

	return caps, nil
}

// capProber runs candidate-at-a-time refinement against a driver. The refine
// function is the only driver dependency, so the probing logic is exercised
// without hardware.
type capProber struct {
	refine func(*sndPcmHwParams) error
	log    *slog.Logger
}

// probe fills caps. Every candidate is tested against a fresh, fully open
// parameter space narrowed on that one axis, so a rejection is attributable
// to the candidate alone. Candidate failures are expected and skipped.
func (p *capProber) probe(caps *Capabilities) {
	for _, f := range allFormats {
		if p.tryMask(paramFormat, uint32(f.desc().kernel)) {
			caps.Formats = append(caps.Formats, f)
		} else {
			p.log.Debug("format not supported", "format", f)
		}
	}

	caps.MinRate, caps.MaxRate = p.tryRange(paramRate)

	for _, rate := range standardRates {
		if p.tryInt(paramRate, uint32(rate)) {
			caps.Rates = append(caps.Rates, rate)
		}
	}

	minCh, maxCh := p.tryRange(paramChannels)
	caps.MinChannels = int(minCh)
	caps.MaxChannels = int(maxCh)

	probeMax := caps.MaxChannels
	if probeMax > maxProbedChannels {
		probeMax = maxProbedChannels
	}
	for ch := caps.MinChannels; ch >= 1 && ch <= probeMax; ch++ {
		if p.tryInt(paramChannels, uint32(ch)) {
			caps.Channels = append(caps.Channels, ch)
		}
	}

	for access := AccessMmapInterleaved; access <= AccessRWNonInterleaved; access++ {
		if p.tryMask(paramAccess, uint32(access)) {
			caps.Access = append(caps.Access, access)
		} else {
			p.log.Debug("access type not supported", "access", access)
		}
	}

	caps.Defaults = pickDefaults(*caps)
}

// tryMask tests a single mask candidate.
func (p *capProber) tryMask(param hwParam, bit uint32) bool {
	params := &sndPcmHwParams{}
	paramInit(params)
	paramSetMask(params, param, bit)

	return p.refine(params) == nil
}

// tryInt tests a single exact interval candidate.
func (p *capProber) tryInt(param hwParam, val uint32) bool {
	params := &sndPcmHwParams{}
	paramInit(params)
	paramSetInt(params, param, val)

	return p.refine(params) == nil
}

// tryRange refines an open space and reads back the driver's bounds on one
// interval parameter.
func (p *capProber) tryRange(param hwParam) (minVal, maxVal int) {
	params := &sndPcmHwParams{}
	paramInit(params)

	if err := p.refine(params); err != nil {
		p.log.Debug("open-space refine failed", "err", err)

		return 0, 0
	}

	lo, hi := paramRange(params, param)

	return int(lo), int(hi)
}

// pickDefaults derives the recommended configuration from discovered
// capabilities: the first value found on each axis, except access, which
// prefers memory-mapped interleaved.
func pickDefaults(caps Capabilities) Defaults {
	var d Defaults

	if len(caps.Formats) > 0 {
		d.Format = caps.Formats[0]
	}

	if len(caps.Rates) > 0 {
		d.Rate = caps.Rates[0]
	} else {
		d.Rate = caps.MinRate
	}

	if len(caps.Channels) > 0 {
		d.Channels = caps.Channels[0]
	} else {
		d.Channels = caps.MinChannels
	}

	if len(caps.Access) > 0 {
		d.Access = caps.Access[0]
		for _, a := range caps.Access {
			if a == AccessMmapInterleaved {
				d.Access = AccessMmapInterleaved

				break
			}
		}
	}

	return d
}
