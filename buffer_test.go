package delia_test

import (
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbotsaris/delia"
)

func TestChunkFloatBufferRoundTrip(t *testing.T) {
	values := []float64{0.1, -0.2, 0.3, -0.4}

	buf := make([]byte, len(values)*2)
	c := delia.NewChunk(buf, delia.FormatS16LE, 2, 44100)
	_, err := c.WriteSamples(values)
	require.NoError(t, err)

	c.Rewind()
	fb := c.FloatBuffer()
	require.Equal(t, 2, fb.Format.NumChannels)
	require.Equal(t, 44100, fb.Format.SampleRate)
	require.Len(t, fb.Data, len(values))
	for i, v := range values {
		assert.InDelta(t, v, fb.Data[i], 1e-4)
	}

	back := delia.NewChunk(make([]byte, len(buf)), delia.FormatS16LE, 2, 44100)
	n, err := back.WriteFloatBuffer(fb)
	require.NoError(t, err)
	assert.Equal(t, len(values), n)

	back.Rewind()
	out := make([]float64, len(values))
	_, err = back.ReadSamples(out)
	require.NoError(t, err)
	for i, v := range values {
		assert.InDelta(t, v, out[i], 1e-4)
	}
}

func TestChunkIntBuffer(t *testing.T) {
	buf := make([]byte, 4)
	c := delia.NewChunk(buf, delia.FormatS16LE, 1, 48000)
	require.NoError(t, c.Write(0.5))
	require.NoError(t, c.Write(-1))

	c.Rewind()
	ib := c.IntBuffer()
	require.Equal(t, 16, ib.SourceBitDepth)
	require.Len(t, ib.Data, 2)
	assert.InDelta(t, 16383, ib.Data[0], 1, "requantization may lose one step")
	assert.Equal(t, -32768, ib.Data[1])
}

func TestChunkWriteIntBuffer(t *testing.T) {
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 48000},
		Data:           []int{16383, -16384},
		SourceBitDepth: 16,
	}

	c := delia.NewChunk(make([]byte, 4), delia.FormatS16LE, 1, 48000)
	n, err := c.WriteIntBuffer(ib)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c.Rewind()
	hi, _ := c.Read()
	lo, _ := c.Read()
	assert.InDelta(t, 0.5, hi, 1e-3)
	assert.InDelta(t, -0.5, lo, 1e-3)
}

func TestChunkWriteIntBufferOverflow(t *testing.T) {
	ib := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: 48000},
		Data:   []int{1, 2, 3},
	}

	c := delia.NewChunk(make([]byte, 4), delia.FormatS16LE, 1, 48000)
	n, err := c.WriteIntBuffer(ib)
	require.ErrorIs(t, err, delia.ErrChunkFull)
	assert.Equal(t, 2, n)
}
