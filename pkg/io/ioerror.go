package io

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Flags for the condition-reporting requests a caller may register on a
// statement. An error with a matching request is recorded and the statement
// runs to completion; without one it is fatal.
const (
	hasIoStat = 1 << iota
	hasErr
	hasEnd
	hasEor
	hasIoMsg
)

// IoErrorHandler is the per-statement error context. It decides between
// signaling and aborting, and holds the final condition code and optional
// message. Once a condition of a given priority is recorded, a
// lower-priority one never overwrites it.
type IoErrorHandler struct {
	Terminator
	flags int
	stat  Iostat
	msg   string
}

// NewErrorHandler begins a statement's error context at a source location.
func NewErrorHandler(sourceFile string, sourceLine int) IoErrorHandler {
	return IoErrorHandler{Terminator: NewTerminator(sourceFile, sourceLine)}
}

// Begin resets the handler for a new statement.
func (h *IoErrorHandler) Begin(sourceFile string, sourceLine int) {
	h.flags = 0
	h.stat = IostatOk
	h.msg = ""
	h.SetLocation(sourceFile, sourceLine)
}

func (h *IoErrorHandler) HasIoStat() { h.flags |= hasIoStat }
func (h *IoErrorHandler) HasErr()    { h.flags |= hasErr }
func (h *IoErrorHandler) HasEnd()    { h.flags |= hasEnd }
func (h *IoErrorHandler) HasEor()    { h.flags |= hasEor }
func (h *IoErrorHandler) HasIoMsg()  { h.flags |= hasIoMsg }

// InError reports whether a condition has been recorded.
func (h *IoErrorHandler) InError() bool { return h.stat != IostatOk }

// Iostat returns the condition code recorded so far.
func (h *IoErrorHandler) Iostat() Iostat { return h.stat }

// SignalError records an error condition, or aborts when no handling was
// requested. An already-recorded error keeps priority.
func (h *IoErrorHandler) SignalError(code Iostat) {
	h.SignalErrorf(code, "")
}

// SignalErrorf is SignalError with a formatted message saved for IOMSG=.
func (h *IoErrorHandler) SignalErrorf(code Iostat, format string, args ...any) {
	switch {
	case code == IostatOk:
	case code == IostatEnd:
		h.SignalEnd()
	case code == IostatEor:
		h.SignalEor()
	case h.flags&(hasIoStat|hasErr) != 0:
		if h.stat <= 0 {
			h.stat = code // priority over END= and EOR=
			if format != "" && h.flags&hasIoMsg != 0 {
				h.msg = fmt.Sprintf(format, args...)
			}
		}
	default:
		if format != "" {
			h.Crash(format, args...)
		} else if s := iostatErrorString(code); s != "" {
			h.Crash("%s", s)
		} else {
			h.Crash("I/O error (errno=%d): %s", int(code), syscall.Errno(code).Error())
		}
	}
}

// SignalErrno translates a Go error from the backing store into a condition.
// System errors keep their errno as the positive code; anything else becomes
// the generic error with the error text as its message.
func (h *IoErrorHandler) SignalErrno(err error) {
	if err == nil {
		return
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		h.SignalErrorf(Iostat(errno), "%s", errno.Error())
		return
	}
	h.SignalErrorf(IostatGenericError, "%s", err.Error())
}

// SignalEnd records end-of-file, which outranks end-of-record.
func (h *IoErrorHandler) SignalEnd() {
	if h.flags&hasEnd != 0 {
		if h.stat == IostatOk || h.stat == IostatEor {
			h.stat = IostatEnd
		}
	} else {
		h.signalFatalCondition(IostatEnd)
	}
}

// SignalEor records end-of-record, the lowest-priority condition.
func (h *IoErrorHandler) SignalEor() {
	if h.flags&hasEor != 0 {
		if h.stat == IostatOk {
			h.stat = IostatEor
		}
	} else {
		h.signalFatalCondition(IostatEor)
	}
}

func (h *IoErrorHandler) signalFatalCondition(code Iostat) {
	if h.flags&(hasIoStat|hasErr) != 0 {
		// IOSTAT=/ERR= catch the negative sentinels too.
		if h.stat <= 0 && (h.stat == IostatOk || code > h.stat) {
			h.stat = code
		}
		return
	}
	h.Crash("%s", iostatErrorString(code))
}

// GetIoMsg returns the saved message, or the description of the recorded
// condition code, padded with trailing blanks to the requested width. A
// message longer than the width is truncated.
func (h *IoErrorHandler) GetIoMsg(width int) string {
	msg := h.msg
	if msg == "" {
		msg = iostatErrorString(h.stat)
	}
	if msg == "" && h.stat > 0 {
		msg = syscall.Errno(h.stat).Error()
	}
	if width <= 0 {
		return msg
	}
	if len(msg) >= width {
		return msg[:width]
	}
	return msg + strings.Repeat(" ", width-len(msg))
}
