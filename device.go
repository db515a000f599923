package delia

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SNDRV_PCM_INFO_NO_PERIOD_WAKEUP: hardware can run without per-period
// interrupts. Reported in sndPcmHwParams.Info after HW_REFINE.
const pcmInfoNoPeriodWakeup = 0x00800000

// StartPolicy selects how much of the hardware buffer must be queued before
// the kernel may auto-start the stream.
type StartPolicy int

const (
	// StartHalfBuffer starts once half the hardware buffer is queued.
	StartHalfBuffer StartPolicy = iota
	// StartFullBuffer starts only when the whole buffer is queued.
	StartFullBuffer
	// StartOnePeriod starts as soon as one period is queued.
	StartOnePeriod
)

// threshold converts the policy to a frame count.
func (p StartPolicy) threshold(period, buffer int) int {
	switch p {
	case StartFullBuffer:
		return buffer
	case StartOnePeriod:
		return period
	default:
		return buffer / 2
	}
}

// Options configures one direction of one hardware port.
// Zero values select the defaults noted on each field.
type Options struct {
	// Port identifies the hardware port as "hw:card,device". When the port
	// cannot be opened, DefaultPort is tried before giving up.
	Port string

	// Direction selects playback or capture. Playback is the zero value.
	Direction Direction

	// Rate is the sample rate in Hz (default 48000). The hardware must
	// support it exactly; a near match is a configuration error.
	Rate int

	// Channels is the channel count (default 2).
	Channels int

	// Format is the sample format (default FormatS16LE). Fixed for the
	// lifetime of the device.
	Format SampleFormat

	// PeriodSize is the period length in frames (default 1024); the
	// hardware must accept it exactly.
	PeriodSize int

	// PeriodCount is the number of periods in the hardware buffer
	// (default 4); the hardware must accept it exactly.
	PeriodCount int

	// StartPolicy sets the kernel start threshold.
	StartPolicy StartPolicy

	// Timeout bounds each availability wait inside the transfer loop.
	// Zero waits indefinitely. It does not bound the session.
	Timeout time.Duration

	// Logger receives structured diagnostics. Nil discards them.
	Logger *slog.Logger
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Port == "" {
		o.Port = DefaultPort
	}
	if o.Rate == 0 {
		o.Rate = 48000
	}
	if o.Channels == 0 {
		o.Channels = 2
	}
	if o.PeriodSize == 0 {
		o.PeriodSize = 1024
	}
	if o.PeriodCount == 0 {
		o.PeriodCount = 4
	}

	return o
}

// devicePhase tracks the device lifecycle.
type devicePhase int

const (
	phaseUninitialized devicePhase = iota
	phaseHardwareConfigured
	phaseSoftwareConfigured
	phaseRunning
	phaseStopped
)

// Handler is invoked once per mapped sub-transfer with a transient view into
// the hardware buffer. It runs on the transfer loop's own goroutine and must
// be short and non-blocking; the chunk is invalid after it returns.
type Handler func(*Chunk)

// Device is one configured direction of a hardware port: the stream handle,
// the negotiated parameters and the owned scratch transfer buffer.
type Device struct {
	hw  pcmStream
	raw *stream // nil when hw is synthetic

	dir         Direction
	port        string
	format      SampleFormat
	rate        int
	channels    int
	periodSize  int
	periodCount int
	bufferSize  int
	frameBytes  int

	startThreshold int
	stopThreshold  int
	timeout        time.Duration

	scratch []byte
	probe   *Probe
	log     *slog.Logger
	phase   devicePhase
}

// Configure opens one direction of a port and negotiates hardware parameters.
// Negotiation is exact: the hardware is free to propose different values, and
// any deviation from the requested rate, period size or period count fails
// rather than being adapted to. On failure every resource opened along the
// way is released before the error returns.
func Configure(opts Options) (*Device, error) {
	opts = opts.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	s, err := openStream(opts.Port, opts.Direction)
	if err != nil && opts.Port != DefaultPort {
		logger.Warn("port open failed, falling back to default",
			"port", opts.Port, "fallback", DefaultPort, "err", err)
		opts.Port = DefaultPort
		s, err = openStream(opts.Port, opts.Direction)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	d := &Device{
		hw:          s,
		raw:         s,
		dir:         opts.Direction,
		port:        opts.Port,
		format:      opts.Format,
		rate:        opts.Rate,
		channels:    opts.Channels,
		periodSize:  opts.PeriodSize,
		periodCount: opts.PeriodCount,
		timeout:     opts.Timeout,
		log:         logger,
	}

	if err := d.negotiate(s, opts); err != nil {
		_ = s.close()

		return nil, err
	}

	d.startThreshold = opts.StartPolicy.threshold(d.periodSize, d.bufferSize)
	d.stopThreshold = d.bufferSize
	d.scratch = make([]byte, d.channels*d.format.Bytes()*d.periodSize)
	d.phase = phaseHardwareConfigured

	return d, nil
}

// negotiate applies each hardware constraint in order, refining after every
// step so a rejection is attributable to one axis, then commits and verifies
// the committed values by read-back.
func (d *Device) negotiate(s *stream, opts Options) error {
	params := &sndPcmHwParams{}
	paramInit(params)

	// Memory-mapped interleaved access only; this engine has no copy path.
	paramSetMask(params, paramAccess, uint32(AccessMmapInterleaved))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %v", ErrAccessType, err)
	}

	paramSetMask(params, paramFormat, uint32(opts.Format.desc().kernel))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFormat, opts.Format, err)
	}

	paramSetInt(params, paramChannels, uint32(opts.Channels))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %d: %v", ErrChannelCount, opts.Channels, err)
	}

	paramSetInt(params, paramRate, uint32(opts.Rate))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %d Hz: %v", ErrSampleRate, opts.Rate, err)
	}

	bufferSize := opts.PeriodSize * opts.PeriodCount
	paramSetInt(params, paramBufferSize, uint32(bufferSize))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %d frames: %v", ErrBufferSize, bufferSize, err)
	}

	paramSetInt(params, paramPeriodSize, uint32(opts.PeriodSize))
	paramSetInt(params, paramPeriods, uint32(opts.PeriodCount))
	if err := s.refine(params); err != nil {
		return fmt.Errorf("%w: %d x %d: %v", ErrPeriodSize, opts.PeriodSize, opts.PeriodCount, err)
	}

	// The loop polls availability; period interrupts are never waited on,
	// so suppress them when the hardware can run without them.
	if params.Info&pcmInfoNoPeriodWakeup != 0 {
		params.Flags |= hwParamsNoPeriodWakeup
	}

	if err := s.commitHwParams(params); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrOpen, err)
	}

	// The hardware may have chosen values other than the requested ones;
	// that is a configuration error here, never adapted to.
	gotRate := int(paramGetInt(params, paramRate))
	if gotRate != opts.Rate {
		return fmt.Errorf("%w: requested %d Hz, hardware chose %d Hz", ErrSampleRate, opts.Rate, gotRate)
	}

	gotChannels := int(paramGetInt(params, paramChannels))
	if gotChannels != opts.Channels {
		return fmt.Errorf("%w: requested %d, hardware chose %d", ErrChannelCount, opts.Channels, gotChannels)
	}

	gotPeriod := int(paramGetInt(params, paramPeriodSize))
	gotPeriods := int(paramGetInt(params, paramPeriods))
	if gotPeriod != opts.PeriodSize || gotPeriods != opts.PeriodCount {
		return fmt.Errorf("%w: requested %dx%d, hardware chose %dx%d",
			ErrPeriodSize, opts.PeriodSize, opts.PeriodCount, gotPeriod, gotPeriods)
	}

	gotBuffer := int(paramGetInt(params, paramBufferSize))
	if gotBuffer != gotPeriod*gotPeriods || gotBuffer != bufferSize {
		return fmt.Errorf("%w: requested %d frames, hardware chose %d", ErrBufferSize, bufferSize, gotBuffer)
	}

	frameBytes := opts.Format.FrameBytes(opts.Channels)
	gotFrameBits := int(paramGetInt(params, paramFrameBits))
	if gotFrameBits != opts.Format.PhysicalBits()*opts.Channels {
		return fmt.Errorf("%w: frame stride %d bits, expected %d",
			ErrAlignment, gotFrameBits, opts.Format.PhysicalBits()*opts.Channels)
	}

	d.bufferSize = gotBuffer
	d.frameBytes = frameBytes

	if err := s.mapBuffer(gotBuffer, frameBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	if err := s.mapStatusControl(opts.PeriodSize); err != nil {
		return fmt.Errorf("%w: %v", ErrAllocation, err)
	}

	return nil
}

// Prepare sets the software parameters and issues the hardware prepare
// transition. The stream then waits for its start threshold: availability is
// polled at one-period granularity, the stream never stops itself before the
// buffer truly drains, and drained playback regions are silenced.
func (d *Device) Prepare() error {
	return d.prepare(true)
}

// prepare is the internal form; the slave half of a linked pair passes
// issuePrepare=false because only the master transitions explicitly.
func (d *Device) prepare(issuePrepare bool) error {
	if d.phase != phaseHardwareConfigured {
		return fmt.Errorf("%w: device not hardware-configured", ErrSoftwareParams)
	}

	if d.startThreshold <= 0 || d.startThreshold > d.bufferSize {
		return fmt.Errorf("%w: start threshold %d outside (0, %d]",
			ErrThreshold, d.startThreshold, d.bufferSize)
	}

	if d.raw != nil {
		sw := &sndPcmSwParams{
			TstampMode:     tstampEnable,
			PeriodStep:     1,
			AvailMin:       sndPcmUframesT(d.periodSize),
			XferAlign:      1,
			StartThreshold: sndPcmUframesT(d.startThreshold),
			StopThreshold:  sndPcmUframesT(d.stopThreshold),
			SilenceSize:    sndPcmUframesT(d.bufferSize),
		}

		if err := d.raw.setSwParams(sw); err != nil {
			return fmt.Errorf("%w: %v", ErrSoftwareParams, err)
		}

		if err := d.raw.setMonotonicTimestamps(); err != nil {
			return fmt.Errorf("%w: %v", ErrTimestamp, err)
		}
	}

	if issuePrepare {
		if err := d.hw.Prepare(); err != nil {
			return fmt.Errorf("%w: %v", ErrSoftwareParams, err)
		}
	}

	d.phase = phaseSoftwareConfigured

	return nil
}

// Start runs the transfer loop on the calling goroutine, invoking fn once per
// mapped sub-transfer, until ctx is done or a fatal condition surfaces. The
// engine spawns no goroutines; the caller supplies the thread that blocks
// here for the session's lifetime.
func (d *Device) Start(ctx context.Context, fn Handler) error {
	if d.phase != phaseSoftwareConfigured {
		return fmt.Errorf("%w: device not prepared", ErrSoftwareParams)
	}

	d.phase = phaseRunning
	defer func() { d.phase = phaseSoftwareConfigured }()

	loop := newTransferLoop(d)

	return loop.run(ctx, fn)
}

// Teardown stops the stream and releases the handle. The device is unusable
// afterwards.
func (d *Device) Teardown() {
	if d.phase == phaseStopped {
		return
	}

	if d.raw != nil {
		_ = d.raw.Drop()
		_ = d.raw.close()
	}

	d.phase = phaseStopped
}

// AttachProbe observes the loop's committed frames with p. The probe callback
// runs on the loop goroutine and must be non-blocking.
func (d *Device) AttachProbe(p *Probe) {
	p.bind(d.rate, d.bufferSize)
	d.probe = p
}

// Drain blocks until queued playback frames have been played. Capture
// devices have nothing to drain.
func (d *Device) Drain() error {
	if d.raw == nil || d.dir != Playback {
		return nil
	}

	return d.raw.Drain()
}

// Stop drops pending frames and stops the hardware immediately.
func (d *Device) Stop() error {
	if d.raw == nil {
		return nil
	}

	return d.raw.Drop()
}

// Delay reports the current hardware delay in frames.
func (d *Device) Delay() (int, error) {
	if d.raw == nil {
		return 0, nil
	}

	return d.raw.Delay()
}

// Direction returns the configured direction.
func (d *Device) Direction() Direction { return d.dir }

// Port returns the port identifier actually opened.
func (d *Device) Port() string { return d.port }

// Rate returns the negotiated sample rate in Hz.
func (d *Device) Rate() int { return d.rate }

// Channels returns the negotiated channel count.
func (d *Device) Channels() int { return d.channels }

// Format returns the configured sample format.
func (d *Device) Format() SampleFormat { return d.format }

// PeriodSize returns the negotiated period length in frames.
func (d *Device) PeriodSize() int { return d.periodSize }

// PeriodCount returns the negotiated number of periods.
func (d *Device) PeriodCount() int { return d.periodCount }

// BufferSize returns the hardware buffer length in frames; it always equals
// PeriodSize times PeriodCount, verified by read-back at configuration.
func (d *Device) BufferSize() int { return d.bufferSize }

// FrameBytes returns the stride of one frame in bytes.
func (d *Device) FrameBytes() int { return d.frameBytes }

// StartThreshold returns the start threshold in frames derived from the
// configured policy.
func (d *Device) StartThreshold() int { return d.startThreshold }

// PeriodTime returns the duration of one period.
func (d *Device) PeriodTime() time.Duration {
	if d.rate == 0 {
		return 0
	}

	return time.Duration(float64(d.periodSize) / float64(d.rate) * float64(time.Second))
}
