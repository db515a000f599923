package delia

import (
	"syscall"
	"unsafe"
)

// ioctl performs a generic ioctl syscall.
func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}

	return nil
}

// Linux ioctl request encoding.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

// ioNone builds an ioctl request code for a command with no data transfer.
// The name io would shadow the io package for the whole package block.
func ioNone(typ, nr uintptr) uintptr {
	return (iocNone << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift)
}

// ior builds a read-only ioctl request code.
func ior(typ, nr, size uintptr) uintptr {
	return (iocRead << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

// iow builds a write-only ioctl request code.
func iow(typ, nr, size uintptr) uintptr {
	return (iocWrite << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

// iowr builds a read-write ioctl request code.
func iowr(typ, nr, size uintptr) uintptr {
	return ((iocRead | iocWrite) << iocDirShift) | (typ << iocTypeShift) | (nr << iocNrShift) | (size << iocSizeShift)
}

// PCM ioctl request codes ('A' is the ALSA PCM ioctl type).
// Sizes depend on the word size of the target, so these are built at init.
var (
	reqPcmInfo     uintptr
	reqHwRefine    uintptr
	reqHwParams    uintptr
	reqHwFree      uintptr
	reqSwParams    uintptr
	reqStatus      uintptr
	reqDelay       uintptr
	reqHwsync      uintptr
	reqSyncPtr     uintptr
	reqTtstamp     uintptr
	reqPrepare     uintptr
	reqStart       uintptr
	reqDrop        uintptr
	reqDrain       uintptr
	reqPause       uintptr
	reqResume      uintptr
	reqLink        uintptr
	reqUnlink      uintptr
)

func init() {
	reqPcmInfo = ior('A', 0x01, unsafe.Sizeof(sndPcmInfo{}))
	reqTtstamp = iow('A', 0x03, unsafe.Sizeof(int32(0)))

	reqHwRefine = iowr('A', 0x10, unsafe.Sizeof(sndPcmHwParams{}))
	reqHwParams = iowr('A', 0x11, unsafe.Sizeof(sndPcmHwParams{}))
	reqHwFree = ioNone('A', 0x12)
	reqSwParams = iowr('A', 0x13, unsafe.Sizeof(sndPcmSwParams{}))

	reqStatus = ior('A', 0x20, unsafe.Sizeof(sndPcmStatus{}))
	reqDelay = ior('A', 0x21, unsafe.Sizeof(sndPcmSframesT(0)))
	reqHwsync = ioNone('A', 0x22)
	reqSyncPtr = iowr('A', 0x23, unsafe.Sizeof(sndPcmSyncPtr{}))

	reqPrepare = ioNone('A', 0x40)
	reqStart = ioNone('A', 0x42)
	reqDrop = ioNone('A', 0x43)
	reqDrain = ioNone('A', 0x44)
	reqPause = iow('A', 0x45, unsafe.Sizeof(int32(0)))
	reqResume = ioNone('A', 0x47)

	reqLink = iow('A', 0x60, unsafe.Sizeof(int32(0)))
	reqUnlink = ioNone('A', 0x61)
}
