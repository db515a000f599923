package delia

import "errors"

// Configuration errors. Each negotiation or preparation step fails with its
// own sentinel so a caller can tell which hardware constraint was rejected.
// They are always fatal: retrying Configure with identical options fails
// identically.
var (
	ErrOpen           = errors.New("delia: cannot open pcm device")
	ErrAllocation     = errors.New("delia: cannot allocate transfer buffer")
	ErrAccessType     = errors.New("delia: access type rejected by hardware")
	ErrFormat         = errors.New("delia: sample format rejected by hardware")
	ErrChannelCount   = errors.New("delia: channel count rejected by hardware")
	ErrSampleRate     = errors.New("delia: sample rate rejected by hardware")
	ErrBufferSize     = errors.New("delia: buffer size rejected by hardware")
	ErrPeriodSize     = errors.New("delia: period size rejected by hardware")
	ErrSoftwareParams = errors.New("delia: cannot set software parameters")
	ErrThreshold      = errors.New("delia: cannot set start/stop thresholds")
	ErrTimestamp      = errors.New("delia: cannot enable hardware timestamps")
)

// Transfer loop errors.
var (
	// ErrStalled reports five consecutive zero-frame commits: the stream is
	// alive but not progressing, which recovery cannot fix.
	ErrStalled = errors.New("delia: stream stalled, no frames committed")

	// ErrUnexpectedState reports a stream state the loop cannot classify as
	// normal or recoverable.
	ErrUnexpectedState = errors.New("delia: unexpected stream state")

	// ErrAlignment reports a mapped region that violates the negotiated
	// frame layout. It indicates a negotiation defect and is never worked
	// around.
	ErrAlignment = errors.New("delia: mapped region misaligned")

	// ErrResumeTimeout reports that resume retries were exhausted while the
	// hardware stayed suspended.
	ErrResumeTimeout = errors.New("delia: resume retries exhausted")
)

// Chunk errors, local to one chunk operation.
var (
	// ErrChunkFull reports a write past the end of the mapped region. No
	// partial sample is written.
	ErrChunkFull = errors.New("delia: chunk cannot hold another sample")

	// ErrUnexpectedSize reports a region whose length is not a multiple of
	// the sample size. Correct upstream negotiation never produces this.
	ErrUnexpectedSize = errors.New("delia: region size not a multiple of sample size")

	// ErrSeekOutOfRange reports a seek target past the end of the region.
	ErrSeekOutOfRange = errors.New("delia: seek beyond chunk region")
)
