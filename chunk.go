package delia

// Chunk is a transient view over a slice of the mapped hardware buffer for one
// transfer sub-cycle. It decodes and encodes normalized float samples in
// [-1, 1] at a cursor that advances one sample at a time.
//
// The bytes belong to the mapped hardware region and are only valid until the
// enclosing sub-cycle commits; a Chunk must never be retained beyond the
// callback invocation that received it.
type Chunk struct {
	data     []byte
	format   SampleFormat
	codec    sampleCodec
	channels int
	rate     int
	pos      int // cursor, in samples
}

// NewChunk wraps a byte region in a Chunk. The transfer loop builds chunks
// over the mapped buffer; callers can build them over ordinary slices, for
// example to pre-render audio or to decode captured bytes.
func NewChunk(data []byte, format SampleFormat, channels, rate int) *Chunk {
	return &Chunk{
		data:     data,
		format:   format,
		codec:    newSampleCodec(format),
		channels: channels,
		rate:     rate,
	}
}

// Format returns the sample format of the region.
func (c *Chunk) Format() SampleFormat { return c.format }

// Channels returns the channel count of the region.
func (c *Chunk) Channels() int { return c.channels }

// Rate returns the sample rate in Hz.
func (c *Chunk) Rate() int { return c.rate }

// Len returns the region capacity in samples.
func (c *Chunk) Len() int { return len(c.data) / c.codec.bytes }

// Frames returns the region capacity in frames.
func (c *Chunk) Frames() int { return c.Len() / c.channels }

// Remaining returns the number of samples between the cursor and the end.
func (c *Chunk) Remaining() int { return c.Len() - c.pos }

// Position returns the cursor position in samples.
func (c *Chunk) Position() int { return c.pos }

// Write encodes one sample at the cursor and advances it. It fails with
// ErrChunkFull when the region cannot hold another sample; nothing is
// written in that case.
func (c *Chunk) Write(x float64) error {
	if c.pos >= c.Len() {
		return ErrChunkFull
	}

	c.codec.encode(c.data[c.pos*c.codec.bytes:], x)
	c.pos++

	return nil
}

// Read decodes one sample at the cursor and advances it. The second return
// is false once the cursor reaches the end of the region; that is not an
// error.
func (c *Chunk) Read() (float64, bool) {
	if c.pos >= c.Len() {
		return 0, false
	}

	x := c.codec.decode(c.data[c.pos*c.codec.bytes:])
	c.pos++

	return x, true
}

// WriteSamples encodes as many samples from xs as fit, returning the count.
// Running out of space mid-slice fails with ErrChunkFull after the samples
// that fit have been written.
func (c *Chunk) WriteSamples(xs []float64) (int, error) {
	for i, x := range xs {
		if err := c.Write(x); err != nil {
			return i, err
		}
	}

	return len(xs), nil
}

// ReadSamples decodes samples into dst until the cursor reaches the end of
// the region or dst is full, returning the count. A region whose length is
// not an exact multiple of the sample size fails with ErrUnexpectedSize;
// correct upstream negotiation never produces such a region.
func (c *Chunk) ReadSamples(dst []float64) (int, error) {
	if len(c.data)%c.codec.bytes != 0 {
		return 0, ErrUnexpectedSize
	}

	for i := range dst {
		x, ok := c.Read()
		if !ok {
			return i, nil
		}
		dst[i] = x
	}

	return len(dst), nil
}

// Seek repositions the cursor to the given sample index. Seeking past the
// end of the region fails with ErrSeekOutOfRange.
func (c *Chunk) Seek(index int) error {
	if index < 0 || index > c.Len() {
		return ErrSeekOutOfRange
	}

	c.pos = index

	return nil
}

// Rewind moves the cursor back to the start of the region.
func (c *Chunk) Rewind() {
	c.pos = 0
}
