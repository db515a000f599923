// Package delia is a userspace audio I/O engine on top of the Linux ALSA PCM
// subsystem. It negotiates hardware parameters against a PCM device, then moves
// frames between the application and the hardware through the memory-mapped
// buffer rather than copy-based read/write calls. Playback, capture and duplex
// (linked or unlinked) sessions are driven by a synchronous transfer loop that
// hands the caller transient views into the mapped buffer.
package delia

// Direction selects which half of a PCM port a stream drives.
type Direction int

const (
	Playback Direction = iota
	Capture
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}

	return "playback"
}

// deviceSuffix is the stream character in /dev/snd/pcmC<card>D<dev><suffix>.
func (d Direction) deviceSuffix() byte {
	if d == Capture {
		return 'c'
	}

	return 'p'
}

// StreamState mirrors the SNDRV_PCM_STATE_* values reported by the kernel.
type StreamState int32

const (
	StateOpen         StreamState = 0 // Stream is open, no configuration yet.
	StateSetup        StreamState = 1 // Hardware parameters are committed.
	StatePrepared     StreamState = 2 // Stream is ready to start.
	StateRunning      StreamState = 3 // Stream is running.
	StateXrun         StreamState = 4 // Underrun (playback) or overrun (capture).
	StateDraining     StreamState = 5 // Playback buffer is draining.
	StatePaused       StreamState = 6 // Stream is paused.
	StateSuspended    StreamState = 7 // Hardware is suspended.
	StateDisconnected StreamState = 8 // Hardware is gone.
)

// String implements fmt.Stringer.
func (s StreamState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSetup:
		return "setup"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateXrun:
		return "xrun"
	case StateDraining:
		return "draining"
	case StatePaused:
		return "paused"
	case StateSuspended:
		return "suspended"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// AccessType is the hardware transfer discipline for a stream.
// The values mirror SNDRV_PCM_ACCESS_*.
type AccessType int32

const (
	AccessMmapInterleaved    AccessType = 0
	AccessMmapNonInterleaved AccessType = 1
	AccessMmapComplex        AccessType = 2
	AccessRWInterleaved      AccessType = 3
	AccessRWNonInterleaved   AccessType = 4
)

// accessNames indexes by the AccessType value.
var accessNames = []string{
	"MMAP_INTERLEAVED",
	"MMAP_NONINTERLEAVED",
	"MMAP_COMPLEX",
	"RW_INTERLEAVED",
	"RW_NONINTERLEAVED",
}

// String implements fmt.Stringer.
func (a AccessType) String() string {
	if int(a) < 0 || int(a) >= len(accessNames) {
		return "UNKNOWN"
	}

	return accessNames[a]
}

// Hardware parameter identifiers (SNDRV_PCM_HW_PARAM_*). The first three are
// masks, the rest intervals; the interval array in sndPcmHwParams is indexed
// relative to paramSampleBits.
type hwParam int

const (
	paramAccess      hwParam = 0
	paramFormat      hwParam = 1
	paramSubformat   hwParam = 2
	paramSampleBits  hwParam = 8
	paramFrameBits   hwParam = 9
	paramChannels    hwParam = 10
	paramRate        hwParam = 11
	paramPeriodTime  hwParam = 12
	paramPeriodSize  hwParam = 13
	paramPeriodBytes hwParam = 14
	paramPeriods     hwParam = 15
	paramBufferTime  hwParam = 16
	paramBufferSize  hwParam = 17
	paramBufferBytes hwParam = 18
	paramTickTime    hwParam = 19
)

// Bitfields within sndInterval.Flags.
const (
	intervalOpenMin = 1 << 0
	intervalOpenMax = 1 << 1
	intervalInteger = 1 << 2
	intervalEmpty   = 1 << 3
)

// sndPcmHwParams.Flags bits.
const (
	hwParamsNoResample     = 1 << 0
	hwParamsExportBuffer   = 1 << 1
	hwParamsNoPeriodWakeup = 1 << 2
)

// Magic mmap offsets for the kernel status and control pages.
const (
	mmapOffsetStatus  = 0x80000000
	mmapOffsetControl = 0x81000000
)

// Flags for the SYNC_PTR ioctl.
const (
	syncPtrHwsync   = 1 << 0
	syncPtrAppl     = 1 << 1
	syncPtrAvailMin = 1 << 2
)

// Timestamping modes and clock sources.
const (
	tstampEnable        = 1 // SNDRV_PCM_TSTAMP_ENABLE for sw_params
	tstampTypeMonotonic = 1 // SNDRV_PCM_TSTAMP_TYPE_MONOTONIC for TTSTAMP
)
