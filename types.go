package delia

// Kernel ABI structures shared between word sizes. Anything whose layout
// depends on the size of a C long lives in types_64bit.go / types_32bit.go.

// sndMask is a bitmask for mask-type hardware parameters.
type sndMask struct {
	Bits [8]uint32
}

// test reports whether a bit is set in the mask.
func (m *sndMask) test(bit uint) bool {
	if bit >= 256 { // SNDRV_MASK_MAX
		return false
	}

	return (m.Bits[bit>>5] & (1 << (bit & 31))) != 0
}

// sndInterval represents a range of values for an interval-type parameter.
type sndInterval struct {
	MinVal uint32
	MaxVal uint32
	Flags  uint32
}

// sndPcmInfo contains general information about a PCM device.
type sndPcmInfo struct {
	Device          uint32
	Subdevice       uint32
	Stream          int32
	Card            int32
	Id              [64]byte
	Name            [80]byte
	Subname         [32]byte
	DevClass        int32
	DevSubclass     int32
	SubdevicesCount uint32
	SubdevicesAvail uint32
	Sync            [16]byte // snd_sync_id_t
	Reserved        [64]byte
}

// sndPcmHwParams carries the full hardware parameter space. The driver
// narrows the masks and intervals in place on HW_REFINE / HW_PARAMS.
type sndPcmHwParams struct {
	Flags     uint32
	Masks     [3]sndMask
	Mres      [5]sndMask // reserved for future use
	Intervals [12]sndInterval
	Ires      [9]sndInterval // reserved for future use
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  sndPcmUframesT
	Reserved  [64]byte
}

// sndPcmMmapControl is the application half of the mapped control page.
type sndPcmMmapControl struct {
	ApplPtr  sndPcmUframesT
	AvailMin sndPcmUframesT
}
