//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package delia

import (
	"golang.org/x/sys/unix"
)

// sndPcmUframesT is an unsigned long in the ALSA headers, 64-bit here.
type sndPcmUframesT = uint64

// sndPcmSframesT is a signed long in the ALSA headers, 64-bit here.
type sndPcmSframesT = int64

// kernelTimespec matches the kernel timespec used in PCM status structures.
type kernelTimespec = unix.Timespec

// sndPcmMmapStatus is the kernel half of the mapped status page.
// Padding is required before AudioTstamp for 8-byte alignment.
type sndPcmMmapStatus struct {
	State          int32 // StreamState
	Pad1           int32
	HwPtr          sndPcmUframesT
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
	_     [4]byte // Align the unions to 8 bytes.
	S     struct {
		sndPcmMmapStatus
		_ [8]byte
	}
	C struct {
		sndPcmMmapControl
		_ [48]byte
	}
}

// sndPcmSwParams contains the software parameters of a PCM stream.
// 4 bytes of padding follow SleepMin to align the uframes fields.
type sndPcmSwParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte
	AvailMin         sndPcmUframesT
	XferAlign        sndPcmUframesT
	StartThreshold   sndPcmUframesT
	StopThreshold    sndPcmUframesT
	SilenceThreshold sndPcmUframesT
	SilenceSize      sndPcmUframesT
	Boundary         sndPcmUframesT
	Reserved         [64]byte
}
