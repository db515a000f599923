package delia

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultPort is the port identifier used when the requested one cannot be
// opened.
const DefaultPort = "hw:0,0"

// pcmStream is the boundary between the transfer machinery and the kernel
// PCM layer. The real implementation is *stream; tests drive the loop with
// synthetic implementations.
type pcmStream interface {
	State() StreamState
	Avail() (int, error)
	Start() error
	Prepare() error
	Resume() error
	Wait(timeout time.Duration) (bool, error)
	// Begin grants a contiguous region of the mapped buffer holding up to
	// wantFrames frames. offsetBytes is the region's byte offset from the
	// start of the buffer.
	Begin(wantFrames int) (region []byte, offsetBytes, frames int, err error)
	// Commit advances the application pointer by frames and returns the
	// number of frames actually committed.
	Commit(frames int) (int, error)
}

// parsePort splits a "hw:card,device" port identifier.
func parsePort(name string) (card, device uint, err error) {
	if !strings.HasPrefix(name, "hw:") {
		return 0, 0, fmt.Errorf("invalid port %q: missing 'hw:' prefix", name)
	}

	parts := strings.Split(strings.TrimPrefix(name, "hw:"), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid port %q: expected 'hw:card,device'", name)
	}

	c, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid card number %q: %w", parts[0], err)
	}

	d, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid device number %q: %w", parts[1], err)
	}

	return uint(c), uint(d), nil
}

// stream is an open handle to one direction of one hardware PCM port.
// It owns the device node, the mapped data buffer and the mapped (or
// emulated) status/control pages.
type stream struct {
	file   *os.File
	dir    Direction
	card   uint
	device uint
	info   sndPcmInfo

	frameBytes   int
	bufferFrames int
	boundary     sndPcmUframesT

	mmapBuffer  []byte
	mmapStatus  *sndPcmMmapStatus
	mmapControl *sndPcmMmapControl
	syncPointer *sndPcmSyncPtr
	isMmapped   bool
}

// openStream opens the device node for one direction of a port. Opening is
// always non-blocking first so a busy device cannot wedge us, then the flag
// is cleared for normal blocking waits.
func openStream(port string, dir Direction) (*stream, error) {
	card, device, err := parsePort(port)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, dir.deviceSuffix())

	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	flags, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
	if err == nil {
		_, err = unix.FcntlInt(file.Fd(), unix.F_SETFL, flags&^syscall.O_NONBLOCK)
	}
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("clear O_NONBLOCK on %s: %w", path, err)
	}

	s := &stream{file: file, dir: dir, card: card, device: device}

	if err := ioctl(file.Fd(), reqPcmInfo, uintptr(unsafe.Pointer(&s.info))); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("ioctl INFO on %s: %w", path, err)
	}

	return s, nil
}

// hardwareID identifies the physical port as reported by the kernel, used to
// decide whether a playback/capture pair shares hardware.
func (s *stream) hardwareID() string {
	return fmt.Sprintf("hw:%d,%d", s.info.Card, s.info.Device)
}

func (s *stream) close() error {
	if s == nil || s.file == nil {
		return nil
	}

	s.unmapStatusControl()

	if s.mmapBuffer != nil {
		_ = unix.Munmap(s.mmapBuffer)
		s.mmapBuffer = nil
	}

	err := s.file.Close()
	s.file = nil

	return err
}

// refine asks the driver to narrow the parameter space without committing.
func (s *stream) refine(p *sndPcmHwParams) error {
	return ioctl(s.file.Fd(), reqHwRefine, uintptr(unsafe.Pointer(p)))
}

// commitHwParams commits the parameter space; the driver finalizes every
// interval to a single value in place.
func (s *stream) commitHwParams(p *sndPcmHwParams) error {
	return ioctl(s.file.Fd(), reqHwParams, uintptr(unsafe.Pointer(p)))
}

// setSwParams writes the software parameters and records the driver's
// pointer wrap boundary.
func (s *stream) setSwParams(sw *sndPcmSwParams) error {
	if err := ioctl(s.file.Fd(), reqSwParams, uintptr(unsafe.Pointer(sw))); err != nil {
		return err
	}

	s.boundary = sw.Boundary

	return nil
}

// setMonotonicTimestamps switches hardware timestamping to CLOCK_MONOTONIC.
func (s *stream) setMonotonicTimestamps() error {
	var arg int32 = tstampTypeMonotonic

	return ioctl(s.file.Fd(), reqTtstamp, uintptr(unsafe.Pointer(&arg)))
}

// mapBuffer maps the hardware data buffer. Capture maps read-only; playback
// maps read-write so committed frames remain inspectable.
func (s *stream) mapBuffer(bufferFrames, frameBytes int) error {
	prot := unix.PROT_READ
	if s.dir == Playback {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}

	buf, err := unix.Mmap(int(s.file.Fd()), 0, bufferFrames*frameBytes, prot, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap data buffer: %w", err)
	}

	s.mmapBuffer = buf
	s.bufferFrames = bufferFrames
	s.frameBytes = frameBytes

	return nil
}

// mapStatusControl maps the kernel status and control pages. When the driver
// refuses, local structures backed by the SYNC_PTR ioctl stand in for them.
func (s *stream) mapStatusControl(availMin int) error {
	pageSize := os.Getpagesize()

	s.syncPointer = &sndPcmSyncPtr{}

	statusBuf, err := unix.Mmap(int(s.file.Fd()), mmapOffsetStatus, pageSize, unix.PROT_READ, unix.MAP_SHARED)
	var controlBuf []byte
	if err == nil {
		controlBuf, err = unix.Mmap(int(s.file.Fd()), mmapOffsetControl, pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			_ = unix.Munmap(statusBuf)
		}
	}

	if err != nil {
		s.mmapStatus = &s.syncPointer.S.sndPcmMmapStatus
		s.mmapControl = &s.syncPointer.C.sndPcmMmapControl
		s.isMmapped = false
	} else {
		s.mmapStatus = (*sndPcmMmapStatus)(unsafe.Pointer(&statusBuf[0]))
		s.mmapControl = (*sndPcmMmapControl)(unsafe.Pointer(&controlBuf[0]))
		s.isMmapped = true
	}

	storeUframes(&s.mmapControl.AvailMin, sndPcmUframesT(availMin))

	return nil
}

func (s *stream) unmapStatusControl() {
	if s.isMmapped {
		pageSize := os.Getpagesize()
		if s.mmapStatus != nil {
			_ = unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(s.mmapStatus)), pageSize))
		}
		if s.mmapControl != nil {
			_ = unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(s.mmapControl)), pageSize))
		}
	}

	s.mmapStatus = nil
	s.mmapControl = nil
	s.syncPointer = nil
}

// syncPtr synchronizes the application and hardware pointers with the kernel.
func (s *stream) syncPtr(flags uint32) error {
	if s.syncPointer == nil {
		return fmt.Errorf("sync pointer not initialized")
	}

	if !s.isMmapped {
		s.syncPointer.Flags = flags

		return ioctl(s.file.Fd(), reqSyncPtr, uintptr(unsafe.Pointer(s.syncPointer)))
	}

	if (flags & syncPtrAppl) != 0 {
		s.syncPointer.Flags = flags

		return ioctl(s.file.Fd(), reqSyncPtr, uintptr(unsafe.Pointer(s.syncPointer)))
	}

	if (flags & syncPtrHwsync) != 0 {
		return ioctl(s.file.Fd(), reqHwsync, 0)
	}

	return nil
}

// State returns the current stream state, falling back to the STATUS ioctl
// when pointer synchronization is not possible.
func (s *stream) State() StreamState {
	if err := s.syncPtr(syncPtrHwsync); err == nil {
		return StreamState(atomic.LoadInt32(&s.mmapStatus.State))
	}

	var status sndPcmStatus
	if err := ioctl(s.file.Fd(), reqStatus, uintptr(unsafe.Pointer(&status))); err != nil {
		return StateDisconnected
	}

	return StreamState(status.State)
}

// Avail returns the number of frames the application may transfer: free
// space for playback, readable frames for capture.
func (s *stream) Avail() (int, error) {
	if err := s.syncPtr(syncPtrHwsync); err != nil {
		return 0, err
	}

	applPtr := loadUframes(&s.mmapControl.ApplPtr)
	hwPtr := loadUframes(&s.mmapStatus.HwPtr)

	if s.dir == Capture {
		avail := int64(hwPtr) - int64(applPtr)
		if avail < 0 {
			avail += int64(s.boundary)
		}

		return int(avail), nil
	}

	used := int64(applPtr) - int64(hwPtr)
	if used < 0 {
		used += int64(s.boundary)
	}

	return s.bufferFrames - int(used), nil
}

// Begin grants a contiguous region of the mapped buffer. The hardware may
// grant fewer frames than requested when the region wraps.
func (s *stream) Begin(wantFrames int) (region []byte, offsetBytes, frames int, err error) {
	switch state := s.State(); state {
	case StateXrun:
		return nil, 0, 0, syscall.EPIPE
	case StateSuspended:
		return nil, 0, 0, unix.ESTRPIPE
	case StateDisconnected:
		return nil, 0, 0, syscall.ENODEV
	case StateOpen, StateSetup, StateDraining:
		return nil, 0, 0, unix.EBADFD
	}

	avail, err := s.Avail()
	if err != nil {
		return nil, 0, 0, err
	}

	if wantFrames > avail {
		wantFrames = avail
	}

	applPtr := loadUframes(&s.mmapControl.ApplPtr)
	offsetFrames := int(applPtr % sndPcmUframesT(s.bufferFrames))

	continuous := s.bufferFrames - offsetFrames
	if wantFrames > continuous {
		wantFrames = continuous
	}

	offsetBytes = offsetFrames * s.frameBytes
	byteCount := wantFrames * s.frameBytes

	if offsetBytes+byteCount > len(s.mmapBuffer) {
		return nil, 0, 0, unix.EBADFD
	}

	if byteCount > 0 {
		region = s.mmapBuffer[offsetBytes : offsetBytes+byteCount]
	}

	return region, offsetBytes, wantFrames, nil
}

// Commit advances the application pointer past frames transferred since
// Begin and notifies the kernel.
func (s *stream) Commit(frames int) (int, error) {
	applPtr := loadUframes(&s.mmapControl.ApplPtr)

	newPtr := applPtr + sndPcmUframesT(frames)
	if s.boundary > 0 && newPtr >= s.boundary {
		newPtr -= s.boundary
	}

	storeUframes(&s.mmapControl.ApplPtr, newPtr)

	if err := s.syncPtr(syncPtrAppl | syncPtrHwsync); err != nil {
		return 0, err
	}

	return frames, nil
}

// Wait blocks until the stream is ready for I/O or the timeout expires.
// A non-positive timeout waits indefinitely.
func (s *stream) Wait(timeout time.Duration) (bool, error) {
	timeoutMs := -1
	if timeout > 0 {
		timeoutMs = int(timeout.Milliseconds())
	}

	pfd := []unix.PollFd{{
		Fd:     int32(s.file.Fd()),
		Events: unix.POLLIN | unix.POLLOUT | unix.POLLERR | unix.POLLNVAL,
	}}

	var n int
	var err error
	for {
		n, err = unix.Poll(pfd, timeoutMs)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}

	if err != nil {
		return false, err
	}

	if n == 0 {
		return false, nil // timeout
	}

	if (pfd[0].Revents & (unix.POLLERR | unix.POLLNVAL)) != 0 {
		switch s.State() {
		case StateXrun:
			return false, syscall.EPIPE
		case StateSuspended:
			return false, unix.ESTRPIPE
		case StateDisconnected:
			return false, syscall.ENODEV
		default:
			return false, syscall.EIO
		}
	}

	return true, nil
}

// Prepare readies the stream for I/O; also the remedy for an xrun.
func (s *stream) Prepare() error {
	if err := ioctl(s.file.Fd(), reqPrepare, 0); err != nil {
		return fmt.Errorf("ioctl PREPARE: %w", err)
	}

	return s.syncPtr(syncPtrAppl | syncPtrAvailMin)
}

// Start issues the hardware start trigger.
func (s *stream) Start() error {
	if err := s.syncPtr(0); err != nil {
		return err
	}

	if StreamState(atomic.LoadInt32(&s.mmapStatus.State)) != StateRunning {
		if err := ioctl(s.file.Fd(), reqStart, 0); err != nil {
			return fmt.Errorf("ioctl START: %w", err)
		}
	}

	return nil
}

// Resume resumes a suspended stream. EAGAIN means the hardware has not
// finished resuming and the call should be retried.
func (s *stream) Resume() error {
	return ioctl(s.file.Fd(), reqResume, 0)
}

// Drop stops the stream immediately, discarding pending frames.
func (s *stream) Drop() error {
	if err := ioctl(s.file.Fd(), reqDrop, 0); err != nil {
		return fmt.Errorf("ioctl DROP: %w", err)
	}

	return nil
}

// Drain blocks until pending playback frames have been played.
func (s *stream) Drain() error {
	if err := ioctl(s.file.Fd(), reqDrain, 0); err != nil {
		return fmt.Errorf("ioctl DRAIN: %w", err)
	}

	return nil
}

// Delay returns the distance in frames between application and playback
// positions.
func (s *stream) Delay() (int, error) {
	var delay sndPcmSframesT
	if err := ioctl(s.file.Fd(), reqDelay, uintptr(unsafe.Pointer(&delay))); err != nil {
		return 0, fmt.Errorf("ioctl DELAY: %w", err)
	}

	return int(delay), nil
}

// Link ties this stream's start/stop triggers to another's.
func (s *stream) Link(other *stream) error {
	return ioctl(s.file.Fd(), reqLink, other.file.Fd())
}

// Unlink removes a previously established link.
func (s *stream) Unlink() error {
	return ioctl(s.file.Fd(), reqUnlink, 0)
}

// loadUframes and storeUframes access shared pointer words atomically at the
// native word size.
func loadUframes(p *sndPcmUframesT) sndPcmUframesT {
	if unsafe.Sizeof(sndPcmUframesT(0)) == 8 {
		return sndPcmUframesT(atomic.LoadUint64((*uint64)(unsafe.Pointer(p))))
	}

	return sndPcmUframesT(atomic.LoadUint32((*uint32)(unsafe.Pointer(p))))
}

func storeUframes(p *sndPcmUframesT, v sndPcmUframesT) {
	if unsafe.Sizeof(sndPcmUframesT(0)) == 8 {
		atomic.StoreUint64((*uint64)(unsafe.Pointer(p)), uint64(v))
	} else {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(p)), uint32(v))
	}
}
