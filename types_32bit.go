//go:build linux && (386 || arm)

package delia

// sndPcmUframesT is an unsigned long in the ALSA headers, 32-bit here.
type sndPcmUframesT = uint32

// sndPcmSframesT is a signed long in the ALSA headers, 32-bit here.
type sndPcmSframesT = int32

// kernelTimespec matches the kernel timespec used in PCM status structures
// on 32-bit ABIs (two C longs).
type kernelTimespec struct {
	Sec  int32
	Nsec int32
}

// sndPcmMmapStatus is the kernel half of the mapped status page.
type sndPcmMmapStatus struct {
	State          int32 // StreamState
	Pad1           int32
	HwPtr          sndPcmUframesT
	_              [4]byte
	Tstamp         kernelTimespec
	SuspendedState int32 // StreamState
	_              [4]byte
	AudioTstamp    kernelTimespec
}

// sndPcmStatus is the full status snapshot returned by the STATUS ioctl.
type sndPcmStatus struct {
	State          int32 // StreamState
	_              [4]byte
	TriggerTstamp  kernelTimespec
	Tstamp         kernelTimespec
	ApplPtr        sndPcmUframesT
	HwPtr          sndPcmUframesT
	Delay          sndPcmSframesT
	Avail          sndPcmUframesT
	AvailMax       sndPcmUframesT
	Overrange      sndPcmUframesT
	SuspendedState int32 // StreamState
	_              [28]byte // Reserved
}

// sndPcmSyncPtr is the argument of the SYNC_PTR ioctl. The status and control
// members are unions padded to 64 bytes each; field order must match the C
// struct exactly.
type sndPcmSyncPtr struct {
	Flags uint32
	_     [4]byte // Align the unions to 8 bytes (Timespec inside status).
	S     struct {
		sndPcmMmapStatus
		_ [8]byte
	}
	C struct {
		sndPcmMmapControl
		_ [56]byte
	}
}

// sndPcmSwParams contains the software parameters of a PCM stream.
// This layout matches the older 32-bit kernel ABI.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
