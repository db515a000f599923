package delia_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbotsaris/delia"
)

var allTestFormats = []delia.SampleFormat{
	delia.FormatS8, delia.FormatU8,
	delia.FormatS16LE, delia.FormatS16BE, delia.FormatU16LE, delia.FormatU16BE,
	delia.FormatS20LE, delia.FormatS20BE,
	delia.FormatS24LE, delia.FormatS24BE,
	delia.FormatS32LE, delia.FormatS32BE, delia.FormatU32LE, delia.FormatU32BE,
	delia.FormatF32LE, delia.FormatF32BE, delia.FormatF64LE, delia.FormatF64BE,
}

// roundTripTolerance is the worst-case quantization error for a format: one
// step plus the asymmetric-scaling offset for integers, float precision for
// the float formats.
func roundTripTolerance(f delia.SampleFormat) float64 {
	if f.Float() {
		if f.Bits() == 64 {
			return 1e-12
		}

		return 1e-6
	}

	return 2.0 / float64(int64(1)<<(f.Bits()-1))
}

func TestSampleRoundTrip(t *testing.T) {
	values := []float64{0, 0.5, -0.5, 1, -1, 0.123456, -0.987654, 0.0001, -0.0001}

	for _, f := range allTestFormats {
		t.Run(f.String(), func(t *testing.T) {
			buf := make([]byte, f.Bytes()*len(values))
			c := delia.NewChunk(buf, f, 1, 48000)

			for _, v := range values {
				require.NoError(t, c.Write(v))
			}

			c.Rewind()
			tol := roundTripTolerance(f)
			for _, v := range values {
				got, ok := c.Read()
				require.True(t, ok)
				assert.InDelta(t, v, got, tol, "value %v in %s", v, f)
			}
		})
	}
}

func TestSampleClamping(t *testing.T) {
	// Float formats pass bits through unscaled, so only integer encodings
	// clamp.
	for _, f := range allTestFormats {
		if f.Float() {
			continue
		}

		t.Run(f.String(), func(t *testing.T) {
			buf := make([]byte, f.Bytes()*2)
			c := delia.NewChunk(buf, f, 1, 48000)

			require.NoError(t, c.Write(3.5))
			require.NoError(t, c.Write(-3.5))

			c.Rewind()
			hi, _ := c.Read()
			lo, _ := c.Read()
			assert.InDelta(t, 1.0, hi, 1e-6)
			assert.InDelta(t, -1.0, lo, 1e-6)
		})
	}
}

func TestS16LEWireFormat(t *testing.T) {
	buf := make([]byte, 6)
	c := delia.NewChunk(buf, delia.FormatS16LE, 1, 48000)

	require.NoError(t, c.Write(1))
	require.NoError(t, c.Write(-1))
	require.NoError(t, c.Write(0.5))

	// Full scale is 32767 positive, -32768 negative; 0.5 lands on 16383.
	assert.Equal(t, []byte{0xFF, 0x7F, 0x00, 0x80, 0xFF, 0x3F}, buf)
}

func TestU8WireFormat(t *testing.T) {
	buf := make([]byte, 3)
	c := delia.NewChunk(buf, delia.FormatU8, 1, 48000)

	require.NoError(t, c.Write(1))
	require.NoError(t, c.Write(-1))
	require.NoError(t, c.Write(0))

	assert.Equal(t, []byte{0xFF, 0x00, 0x7F}, buf)
}

func TestS24LEWireFormat(t *testing.T) {
	buf := make([]byte, 8)
	c := delia.NewChunk(buf, delia.FormatS24LE, 1, 48000)

	require.NoError(t, c.Write(1))
	require.NoError(t, c.Write(-1))

	// 24 significant bits in a 32-bit container, low-justified.
	assert.Equal(t, []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x00, 0x80, 0xFF}, buf)
}

func TestS24LEDecodeIgnoresContainerGarbage(t *testing.T) {
	// Hardware may leave junk in the byte above the 24 significant bits; it
	// must not leak into the decoded value.
	buf := []byte{0x00, 0x00, 0x80, 0x5A}
	c := delia.NewChunk(buf, delia.FormatS24LE, 1, 48000)

	got, ok := c.Read()
	require.True(t, ok)
	assert.InDelta(t, -1.0, got, 1e-6)
}

func TestS20LEWireFormat(t *testing.T) {
	buf := make([]byte, 6)
	c := delia.NewChunk(buf, delia.FormatS20LE, 1, 48000)

	require.NoError(t, c.Write(1))
	require.NoError(t, c.Write(-1))

	// 20 significant bits packed in 3 bytes: full scale is 0x7FFFF / -0x80000.
	assert.Equal(t, []byte{0xFF, 0xFF, 0x07, 0x00, 0x00, 0xF8}, buf)
}

func TestFormatProperties(t *testing.T) {
	assert.Equal(t, 16, delia.FormatS16LE.Bits())
	assert.Equal(t, 16, delia.FormatS16LE.PhysicalBits())
	assert.Equal(t, 2, delia.FormatS16LE.Bytes())
	assert.True(t, delia.FormatS16LE.Signed())
	assert.False(t, delia.FormatS16LE.Float())
	assert.False(t, delia.FormatS16LE.BigEndian())
	assert.Equal(t, 4, delia.FormatS16LE.FrameBytes(2))
	assert.Equal(t, "S16_LE", delia.FormatS16LE.String())

	assert.Equal(t, 24, delia.FormatS24LE.Bits())
	assert.Equal(t, 32, delia.FormatS24LE.PhysicalBits())
	assert.Equal(t, 4, delia.FormatS24LE.Bytes())

	assert.Equal(t, 20, delia.FormatS20BE.Bits())
	assert.Equal(t, 24, delia.FormatS20BE.PhysicalBits())
	assert.Equal(t, 3, delia.FormatS20BE.Bytes())
	assert.True(t, delia.FormatS20BE.BigEndian())
	assert.Equal(t, "S20_3BE", delia.FormatS20BE.String())

	assert.False(t, delia.FormatU16LE.Signed())
	assert.True(t, delia.FormatF32LE.Float())
	assert.Equal(t, 8, delia.FormatF64BE.Bytes())
}
