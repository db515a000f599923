package delia

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// Request codes without a payload have fixed values in the kernel headers;
// the payload-carrying ones depend on the word size, so those are checked
// against the encoding formula instead.
func TestIoctlRequestCodes(t *testing.T) {
	assert.Equal(t, uintptr(0x4112), reqHwFree)
	assert.Equal(t, uintptr(0x4122), reqHwsync)
	assert.Equal(t, uintptr(0x4140), reqPrepare)
	assert.Equal(t, uintptr(0x4142), reqStart)
	assert.Equal(t, uintptr(0x4143), reqDrop)
	assert.Equal(t, uintptr(0x4144), reqDrain)
	assert.Equal(t, uintptr(0x4147), reqResume)
	assert.Equal(t, uintptr(0x4161), reqUnlink)

	assert.Equal(t, uintptr(0x40044103), reqTtstamp)
	assert.Equal(t, uintptr(0x40044145), reqPause)
	assert.Equal(t, uintptr(0x40044160), reqLink)

	infoSize := unsafe.Sizeof(sndPcmInfo{})
	assert.Equal(t, uintptr(0x80000000)|infoSize<<16|'A'<<8|0x01, reqPcmInfo)

	hwSize := unsafe.Sizeof(sndPcmHwParams{})
	assert.Equal(t, uintptr(0xc0000000)|hwSize<<16|'A'<<8|0x11, reqHwParams)
}
