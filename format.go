package delia

import (
	"encoding/binary"
	"math"
)

// SampleFormat identifies one hardware sample encoding: width, signedness,
// integer or float, and byte order.
type SampleFormat int

// FormatS16LE is the zero value so an unset Options.Format selects it.
const (
	FormatS16LE SampleFormat = iota
	FormatS16BE
	FormatS8
	FormatU8
	FormatU16LE
	FormatU16BE
	FormatS20LE // 20 significant bits packed in 3 bytes
	FormatS20BE
	FormatS24LE // 24 significant bits in a 32-bit container
	FormatS24BE
	FormatS32LE
	FormatS32BE
	FormatU32LE
	FormatU32BE
	FormatF32LE
	FormatF32BE
	FormatF64LE
	FormatF64BE
)

// formatDesc describes one sample encoding. bits is the number of significant
// bits; storeBits is the width of the container the sample occupies in memory,
// which is what the frame stride is computed from.
type formatDesc struct {
	name      string
	kernel    int32 // SNDRV_PCM_FORMAT_* value
	bits      uint32
	storeBits uint32
	signed    bool
	float     bool
	bigEndian bool
}

var formatDescs = map[SampleFormat]formatDesc{
	FormatS8:    {name: "S8", kernel: 0, bits: 8, storeBits: 8, signed: true},
	FormatU8:    {name: "U8", kernel: 1, bits: 8, storeBits: 8},
	FormatS16LE: {name: "S16_LE", kernel: 2, bits: 16, storeBits: 16, signed: true},
	FormatS16BE: {name: "S16_BE", kernel: 3, bits: 16, storeBits: 16, signed: true, bigEndian: true},
	FormatU16LE: {name: "U16_LE", kernel: 4, bits: 16, storeBits: 16},
	FormatU16BE: {name: "U16_BE", kernel: 5, bits: 16, storeBits: 16, bigEndian: true},
	FormatS20LE: {name: "S20_3LE", kernel: 36, bits: 20, storeBits: 24, signed: true},
	FormatS20BE: {name: "S20_3BE", kernel: 37, bits: 20, storeBits: 24, signed: true, bigEndian: true},
	FormatS24LE: {name: "S24_LE", kernel: 6, bits: 24, storeBits: 32, signed: true},
	FormatS24BE: {name: "S24_BE", kernel: 7, bits: 24, storeBits: 32, signed: true, bigEndian: true},
	FormatS32LE: {name: "S32_LE", kernel: 10, bits: 32, storeBits: 32, signed: true},
	FormatS32BE: {name: "S32_BE", kernel: 11, bits: 32, storeBits: 32, signed: true, bigEndian: true},
	FormatU32LE: {name: "U32_LE", kernel: 12, bits: 32, storeBits: 32},
	FormatU32BE: {name: "U32_BE", kernel: 13, bits: 32, storeBits: 32, bigEndian: true},
	FormatF32LE: {name: "FLOAT_LE", kernel: 14, bits: 32, storeBits: 32, signed: true, float: true},
	FormatF32BE: {name: "FLOAT_BE", kernel: 15, bits: 32, storeBits: 32, signed: true, float: true, bigEndian: true},
	FormatF64LE: {name: "FLOAT64_LE", kernel: 16, bits: 64, storeBits: 64, signed: true, float: true},
	FormatF64BE: {name: "FLOAT64_BE", kernel: 17, bits: 64, storeBits: 64, signed: true, float: true, bigEndian: true},
}

// allFormats lists every supported format, in kernel enumeration order, for
// capability probing.
var allFormats = []SampleFormat{
	FormatS8, FormatU8,
	FormatS16LE, FormatS16BE, FormatU16LE, FormatU16BE,
	FormatS24LE, FormatS24BE,
	FormatS32LE, FormatS32BE, FormatU32LE, FormatU32BE,
	FormatF32LE, FormatF32BE, FormatF64LE, FormatF64BE,
	FormatS20LE, FormatS20BE,
}

func (f SampleFormat) desc() formatDesc {
	return formatDescs[f]
}

// String implements fmt.Stringer using the ALSA format names.
func (f SampleFormat) String() string {
	d, ok := formatDescs[f]
	if !ok {
		return "INVALID"
	}

	return d.name
}

// Bits returns the number of significant bits per sample.
func (f SampleFormat) Bits() int {
	return int(f.desc().bits)
}

// PhysicalBits returns the width of the container a sample occupies in the
// hardware buffer. For S24 this is 32, for S20 it is 24.
func (f SampleFormat) PhysicalBits() int {
	return int(f.desc().storeBits)
}

// Bytes returns the container size of one sample in bytes.
func (f SampleFormat) Bytes() int {
	return int(f.desc().storeBits / 8)
}

// Signed reports whether the format encodes signed integers or floats.
func (f SampleFormat) Signed() bool {
	return f.desc().signed
}

// Float reports whether the format is a floating-point encoding.
func (f SampleFormat) Float() bool {
	return f.desc().float
}

// BigEndian reports whether samples are stored most significant byte first.
func (f SampleFormat) BigEndian() bool {
	return f.desc().bigEndian
}

// FrameBytes returns the stride of one frame at the given channel count.
func (f SampleFormat) FrameBytes(channels int) int {
	return f.Bytes() * channels
}

// formatFromKernel maps a kernel format value back to a SampleFormat.
func formatFromKernel(code int32) (SampleFormat, bool) {
	for f, d := range formatDescs {
		if d.kernel == code {
			return f, true
		}
	}

	return 0, false
}

// sampleCodec converts between one sample's container bytes and a normalized
// float in [-1, 1]. One codec is selected per stream at configuration time
// and reused for every sample; the strategy is keyed by (width, signedness,
// byte order, is-float) rather than enumerated per format.
type sampleCodec struct {
	bytes  int
	encode func(dst []byte, x float64)
	decode func(src []byte) float64
}

// newSampleCodec builds the codec for a format.
//
// Integer scaling is intentionally asymmetric: positive values scale by max
// and negative values by max+1, preserving the full two's-complement range.
// Round-trips at format boundaries may therefore be off by one least
// significant unit; that behavior is relied upon and must not be "fixed".
// Formats narrower than 24 bits compute in single precision, wider ones in
// double precision.
func newSampleCodec(f SampleFormat) sampleCodec {
	d := f.desc()
	order := byteOrder(d.bigEndian)
	nbytes := int(d.storeBits / 8)

	switch {
	case d.float && d.storeBits == 32:
		return sampleCodec{
			bytes: nbytes,
			encode: func(dst []byte, x float64) {
				order.PutUint32(dst, math.Float32bits(float32(x)))
			},
			decode: func(src []byte) float64 {
				return float64(math.Float32frombits(order.Uint32(src)))
			},
		}

	case d.float:
		return sampleCodec{
			bytes: nbytes,
			encode: func(dst []byte, x float64) {
				order.PutUint64(dst, math.Float64bits(x))
			},
			decode: func(src []byte) float64 {
				return math.Float64frombits(order.Uint64(src))
			},
		}

	case d.signed:
		return signedCodec(d, order, nbytes)

	default:
		return unsignedCodec(d, order, nbytes)
	}
}

func signedCodec(d formatDesc, order binary.ByteOrder, nbytes int) sampleCodec {
	max := int64(1)<<(d.bits-1) - 1
	mask := uint64(1)<<d.storeBits - 1
	sigMask := uint64(1)<<d.bits - 1
	signBit := uint64(1) << (d.bits - 1)
	wide := d.bits >= 24

	return sampleCodec{
		bytes: nbytes,
		encode: func(dst []byte, x float64) {
			x = clamp(x)

			var v int64
			if wide {
				if x >= 0 {
					v = int64(x * float64(max))
				} else {
					v = int64(x * float64(max+1))
				}
			} else {
				f := float32(x)
				if f >= 0 {
					v = int64(f * float32(max))
				} else {
					v = int64(f * float32(max+1))
				}
			}

			putUint(dst, order, nbytes, uint64(v)&mask)
		},
		decode: func(src []byte) float64 {
			// The container may carry sign extension or garbage above the
			// significant bits; re-extend from the true sign bit.
			u := getUint(src, order, nbytes) & sigMask
			if u&signBit != 0 {
				u |= ^sigMask
			}
			v := int64(u)

			if wide {
				if v >= 0 {
					return float64(v) / float64(max)
				}

				return float64(v) / float64(max+1)
			}

			if v >= 0 {
				return float64(float32(v) / float32(max))
			}

			return float64(float32(v) / float32(max+1))
		},
	}
}

func unsignedCodec(d formatDesc, order binary.ByteOrder, nbytes int) sampleCodec {
	max := uint64(1)<<d.bits - 1
	wide := d.bits >= 24

	return sampleCodec{
		bytes: nbytes,
		encode: func(dst []byte, x float64) {
			x = clamp(x)

			var v uint64
			if wide {
				v = uint64((x + 1) / 2 * float64(max))
			} else {
				v = uint64((float32(x) + 1) / 2 * float32(max))
			}

			putUint(dst, order, nbytes, v)
		},
		decode: func(src []byte) float64 {
			u := getUint(src, order, nbytes)

			if wide {
				return float64(u)/float64(max)*2 - 1
			}

			return float64(float32(u)/float32(max)*2 - 1)
		},
	}
}

// clamp limits a normalized sample to [-1, 1] before scaling.
func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}

	return x
}

func byteOrder(big bool) binary.ByteOrder {
	if big {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// putUint stores the low nbytes bytes of v in the given order. The 3-byte
// case covers packed 20-bit containers.
func putUint(dst []byte, order binary.ByteOrder, nbytes int, v uint64) {
	switch nbytes {
	case 1:
		dst[0] = byte(v)
	case 2:
		order.PutUint16(dst, uint16(v))
	case 3:
		if order == binary.BigEndian {
			dst[0] = byte(v >> 16)
			dst[1] = byte(v >> 8)
			dst[2] = byte(v)
		} else {
			dst[0] = byte(v)
			dst[1] = byte(v >> 8)
			dst[2] = byte(v >> 16)
		}
	case 4:
		order.PutUint32(dst, uint32(v))
	case 8:
		order.PutUint64(dst, v)
	}
}

// getUint reads nbytes bytes in the given order, zero extended.
func getUint(src []byte, order binary.ByteOrder, nbytes int) uint64 {
	switch nbytes {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(order.Uint16(src))
	case 3:
		if order == binary.BigEndian {
			return uint64(src[0])<<16 | uint64(src[1])<<8 | uint64(src[2])
		}

		return uint64(src[0]) | uint64(src[1])<<8 | uint64(src[2])<<16
	case 4:
		return uint64(order.Uint32(src))
	case 8:
		return order.Uint64(src)
	}

	return 0
}
