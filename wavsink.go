package delia

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink encodes captured chunks into a RIFF/WAVE stream. It is meant as
// the callback target of a capture session: attach Handler to Device.Start
// and Close the sink once the session ends so the header lengths get
// finalized.
type WAVSink struct {
	enc      *wav.Encoder
	channels int
	rate     int
	depth    int
	max      int64

	frames int
	err    error
}

// wavBitDepth maps a hardware format to a WAV container depth. WAV stores
// 8, 16, 24 or 32 bit PCM; 20-bit samples widen to 24.
func wavBitDepth(f SampleFormat) int {
	switch bits := f.Bits(); {
	case f.Float():
		return 24
	case bits <= 8:
		return 8
	case bits <= 16:
		return 16
	case bits <= 24:
		return 24
	default:
		return 32
	}
}

// NewWAVSink builds a sink writing PCM WAV to w. The seeker is required
// because the RIFF header lengths are patched on Close.
func NewWAVSink(w io.WriteSeeker, format SampleFormat, channels, rate int) *WAVSink {
	depth := wavBitDepth(format)

	return &WAVSink{
		enc:      wav.NewEncoder(w, rate, depth, channels, 1),
		channels: channels,
		rate:     rate,
		depth:    depth,
		max:      int64(1)<<(depth-1) - 1,
	}
}

// Write encodes the chunk's samples from the cursor to the end of the
// region. After the first encoding error the sink drops further writes and
// reports the error from Err and Close.
func (s *WAVSink) Write(c *Chunk) error {
	if s.err != nil {
		return s.err
	}

	data := make([]int, 0, c.Remaining())
	for {
		x, ok := c.Read()
		if !ok {
			break
		}

		data = append(data, scaleToInt(x, s.max))
	}

	if len(data) == 0 {
		return nil
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: s.channels,
			SampleRate:  s.rate,
		},
		Data:           data,
		SourceBitDepth: s.depth,
	}

	if err := s.enc.Write(buf); err != nil {
		s.err = fmt.Errorf("wav encode: %w", err)

		return s.err
	}

	s.frames += len(data) / s.channels

	return nil
}

// Handler adapts the sink to the transfer loop callback signature. Encoding
// errors are sticky and surface from Err and Close.
func (s *WAVSink) Handler() Handler {
	return func(c *Chunk) {
		_ = s.Write(c)
	}
}

// Frames returns the number of frames encoded so far.
func (s *WAVSink) Frames() int { return s.frames }

// Err returns the first encoding error, if any.
func (s *WAVSink) Err() error { return s.err }

// Close finalizes the RIFF header. The sink is unusable afterwards.
func (s *WAVSink) Close() error {
	if err := s.enc.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("wav finalize: %w", err)
	}

	return s.err
}
