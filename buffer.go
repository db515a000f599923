package delia

import (
	"github.com/go-audio/audio"
)

// Bridges between chunks and go-audio buffers, so chunks interoperate with
// the go-audio ecosystem (WAV encoding, transforms) without callers writing
// per-sample loops.

// FloatBuffer decodes every sample from the cursor to the end of the region
// into a go-audio float buffer carrying the chunk's channel layout and rate.
// The cursor is left at the end of the region.
func (c *Chunk) FloatBuffer() *audio.FloatBuffer {
	data := make([]float64, c.Remaining())
	n, _ := c.ReadSamples(data)

	return &audio.FloatBuffer{
		Format: &audio.Format{
			NumChannels: c.channels,
			SampleRate:  c.rate,
		},
		Data: data[:n],
	}
}

// WriteFloatBuffer encodes buf's samples at the cursor, returning how many
// fit. Running out of space fails with ErrChunkFull after the samples that
// fit have been written.
func (c *Chunk) WriteFloatBuffer(buf *audio.FloatBuffer) (int, error) {
	return c.WriteSamples(buf.Data)
}

// IntBuffer decodes every sample from the cursor to the end of the region
// into a go-audio int buffer at the chunk format's significant bit depth.
// The cursor is left at the end of the region.
func (c *Chunk) IntBuffer() *audio.IntBuffer {
	depth := c.format.Bits()
	max := int64(1)<<(depth-1) - 1

	data := make([]int, 0, c.Remaining())
	for {
		x, ok := c.Read()
		if !ok {
			break
		}

		data = append(data, scaleToInt(x, max))
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: c.channels,
			SampleRate:  c.rate,
		},
		Data:           data,
		SourceBitDepth: depth,
	}
}

// WriteIntBuffer encodes buf's integer samples at the cursor, interpreting
// them at buf.SourceBitDepth (16 when unset), returning how many fit.
func (c *Chunk) WriteIntBuffer(buf *audio.IntBuffer) (int, error) {
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	max := int64(1)<<(depth-1) - 1

	for i, v := range buf.Data {
		if err := c.Write(scaleToFloat(int64(v), max)); err != nil {
			return i, err
		}
	}

	return len(buf.Data), nil
}

// scaleToInt converts a normalized sample to an integer at the given
// positive full-scale value, scaling negative values by max+1 to reach the
// full two's-complement range.
func scaleToInt(x float64, max int64) int {
	x = clamp(x)
	if x >= 0 {
		return int(x * float64(max))
	}

	return int(x * float64(max+1))
}

// scaleToFloat is the inverse of scaleToInt.
func scaleToFloat(v, max int64) float64 {
	if v >= 0 {
		return float64(v) / float64(max)
	}

	return float64(v) / float64(max+1)
}
