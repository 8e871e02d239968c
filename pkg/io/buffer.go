package io

import (
	"github.com/tklauser/go-sysconf"
)

const fallbackFrameChunk = 4096

var frameChunk = func() int {
	if v, err := sysconf.Sysconf(sysconf.SC_PAGESIZE); err == nil && v > 0 {
		return int(v)
	}
	return fallbackFrameChunk
}()

// SetFrameChunk overrides the read granularity of newly touched frames.
// Zero restores the page-size default.
func SetFrameChunk(bytes int) {
	if bytes > 0 {
		frameChunk = bytes
		return
	}
	if v, err := sysconf.Sysconf(sysconf.SC_PAGESIZE); err == nil && v > 0 {
		frameChunk = int(v)
	} else {
		frameChunk = fallbackFrameChunk
	}
}

// FileFrame is a lazily extended byte window onto a region of the backing
// store. It owns its storage and tracks the half-open file-offset interval
// it currently caches; any access outside that interval refills or slides
// the window first. Only the owning unit mutates it.
type FileFrame struct {
	file *OpenFile

	buf         []byte
	frameOrigin int64 // file offset of buf[0]
	length      int64 // valid bytes cached from frameOrigin

	dirtyLo int64 // dirty byte range within buf, lo == hi means clean
	dirtyHi int64
}

// NewFileFrame binds a frame to its backing store.
func NewFileFrame(file *OpenFile) FileFrame {
	return FileFrame{file: file}
}

// Frame returns the cached window; index 0 corresponds to the frame origin.
func (fr *FileFrame) Frame() []byte { return fr.buf[:fr.length] }

// FrameOrigin returns the file offset the window starts at.
func (fr *FileFrame) FrameOrigin() int64 { return fr.frameOrigin }

// At returns the cached bytes beginning at the given file offset. The
// offset must lie within the cached interval ensured by a prior ReadFrame
// or WriteFrame.
func (fr *FileFrame) At(at int64) []byte {
	return fr.buf[at-fr.frameOrigin : fr.length]
}

func (fr *FileFrame) ensureCapacity(n int64) {
	if int64(len(fr.buf)) < n {
		grown := make([]byte, roundUp(n, int64(frameChunk)))
		copy(grown, fr.buf)
		fr.buf = grown
	}
}

// ReadFrame ensures [at, at+bytes) is cached and returns how many of those
// bytes the backing store could supply. Reads are widened to the frame
// chunk so sequential scans touch the store once per page.
func (fr *FileFrame) ReadFrame(at, bytes int64, handler *IoErrorHandler) int64 {
	if at < 0 {
		handler.SignalError(IostatCannotReposition)
		return 0
	}
	if at >= fr.frameOrigin && at+bytes <= fr.frameOrigin+fr.length {
		return fr.frameOrigin + fr.length - at
	}
	if at != fr.frameOrigin {
		fr.FlushFrame(handler)
		fr.slideTo(at)
	}
	want := roundUp(bytes, int64(frameChunk))
	fr.ensureCapacity(want)
	got := fr.file.ReadAt(fr.frameOrigin+fr.length, fr.buf[fr.length:want], handler)
	fr.length += int64(got)
	avail := fr.frameOrigin + fr.length - at
	if avail < 0 {
		return 0
	}
	return avail
}

// WriteFrame ensures the window spans [at, at+bytes) for writing and marks
// that range dirty. The caller stores through Frame().
func (fr *FileFrame) WriteFrame(at, bytes int64, handler *IoErrorHandler) {
	if at != fr.frameOrigin {
		fr.FlushFrame(handler)
		fr.slideTo(at)
	}
	fr.ensureCapacity(bytes)
	if bytes > fr.length {
		fr.length = bytes
	}
	if fr.dirtyLo == fr.dirtyHi {
		fr.dirtyLo, fr.dirtyHi = 0, bytes
	} else if bytes > fr.dirtyHi {
		fr.dirtyHi = bytes
	}
}

// slideTo moves the window origin, keeping any cached overlap. On a
// non-positionable store the overlap is the only copy of lookahead bytes
// already consumed from the descriptor, so it must survive the slide.
func (fr *FileFrame) slideTo(at int64) {
	if at > fr.frameOrigin && at < fr.frameOrigin+fr.length {
		keep := fr.frameOrigin + fr.length - at
		copy(fr.buf, fr.buf[at-fr.frameOrigin:fr.length])
		fr.length = keep
	} else {
		fr.length = 0
	}
	fr.frameOrigin = at
}

// FlushFrame writes the dirty range through to the backing store.
func (fr *FileFrame) FlushFrame(handler *IoErrorHandler) {
	if fr.dirtyLo == fr.dirtyHi {
		return
	}
	lo, hi := fr.dirtyLo, fr.dirtyHi
	fr.dirtyLo, fr.dirtyHi = 0, 0
	fr.file.WriteAt(fr.frameOrigin+lo, fr.buf[lo:hi], handler)
}

// Invalidate drops the cached window without flushing.
func (fr *FileFrame) Invalidate() {
	fr.length = 0
	fr.dirtyLo, fr.dirtyHi = 0, 0
}

func roundUp(n, to int64) int64 {
	if to <= 0 {
		return n
	}
	return (n + to - 1) / to * to
}
