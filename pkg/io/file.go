package io

import (
	"errors"
	stdio "io"
	"os"

	"golang.org/x/term"
)

// OpenStatus is the STATUS= disposition of an OPEN.
type OpenStatus int

const (
	OpenStatusOld OpenStatus = iota
	OpenStatusNew
	OpenStatusScratch
	OpenStatusReplace
	OpenStatusUnknown
)

func (s OpenStatus) String() string {
	switch s {
	case OpenStatusOld:
		return "OLD"
	case OpenStatusNew:
		return "NEW"
	case OpenStatusScratch:
		return "SCRATCH"
	case OpenStatusReplace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// CloseStatus is the STATUS= disposition of a CLOSE.
type CloseStatus int

const (
	CloseStatusKeep CloseStatus = iota
	CloseStatusDelete
)

// Position is the POSITION= of an OPEN on a sequential file.
type Position int

const (
	PositionAsIs Position = iota
	PositionRewind
	PositionAppend
)

// OpenFile is the open/close/read/write primitive over an external backing
// store. It owns the descriptor and knows what the connection may do with
// it; everything above it addresses bytes by file offset.
type OpenFile struct {
	f    *os.File
	path string

	mayRead     bool
	mayWrite    bool
	mayPosition bool
	isTerminal  bool
	isScratch   bool

	knownSize Int64Opt
}

// Path returns the connected path; scratch and predefined files have none.
func (f *OpenFile) Path() string { return f.path }

// IsOpen reports whether a backing store is connected.
func (f *OpenFile) IsOpen() bool { return f.f != nil }

func (f *OpenFile) MayRead() bool     { return f.mayRead }
func (f *OpenFile) MayWrite() bool    { return f.mayWrite }
func (f *OpenFile) MayPosition() bool { return f.mayPosition }
func (f *OpenFile) IsTerminal() bool  { return f.isTerminal }

// Size returns the backing store's size when it is knowable.
func (f *OpenFile) Size() Int64Opt { return f.knownSize }

func (f *OpenFile) SetPath(path string)      { f.path = path }
func (f *OpenFile) SetMayRead(mayRead bool)  { f.mayRead = mayRead }
func (f *OpenFile) SetMayWrite(mayWrite bool) { f.mayWrite = mayWrite }
func (f *OpenFile) SetMayPosition(ok bool)   { f.mayPosition = ok }

// Open connects the backing store named by the path set with SetPath.
func (f *OpenFile) Open(status OpenStatus, handler *IoErrorHandler) {
	if status == OpenStatusScratch {
		tmp, err := os.CreateTemp("", "f18scratch-*")
		if err != nil {
			handler.SignalErrno(err)
			return
		}
		// Anonymous once unlinked; the data vanishes on close.
		_ = os.Remove(tmp.Name())
		f.f = tmp
		f.path = ""
		f.isScratch = true
		f.mayRead = true
		f.mayWrite = true
		f.mayPosition = true
		f.knownSize = Some(0)
		return
	}
	flags := os.O_RDWR
	switch status {
	case OpenStatusOld:
	case OpenStatusNew:
		flags |= os.O_CREATE | os.O_EXCL
	case OpenStatusReplace:
		flags |= os.O_CREATE | os.O_TRUNC
	case OpenStatusUnknown:
		flags |= os.O_CREATE
	}
	file, err := os.OpenFile(f.path, flags, 0o666)
	f.mayRead = true
	f.mayWrite = true
	if err != nil && status == OpenStatusOld {
		// Fall back to read-only for files we may not write.
		if file, err = os.OpenFile(f.path, os.O_RDONLY, 0); err == nil {
			f.mayWrite = false
		}
	}
	if err != nil {
		handler.SignalErrno(err)
		return
	}
	f.f = file
	f.isTerminal = term.IsTerminal(int(file.Fd()))
	f.mayPosition = !f.isTerminal
	f.knownSize = Int64Opt{}
	if info, err := file.Stat(); err == nil && info.Mode().IsRegular() {
		f.knownSize = Some(info.Size())
	} else {
		f.mayPosition = false
	}
}

// Predefine wraps an already-open descriptor (the standard streams).
func (f *OpenFile) Predefine(fd int, name string) {
	f.f = os.NewFile(uintptr(fd), name)
	f.path = ""
	f.isTerminal = term.IsTerminal(fd)
	f.mayPosition = false
	f.knownSize = Int64Opt{}
}

// Close disconnects per status; scratch files are always deleted.
func (f *OpenFile) Close(status CloseStatus, handler *IoErrorHandler) {
	if f.f == nil {
		return
	}
	path := f.path
	err := f.f.Close()
	f.f = nil
	f.knownSize = Int64Opt{}
	if err != nil {
		handler.SignalErrno(err)
	}
	if status == CloseStatusDelete && !f.isScratch && path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			handler.SignalErrno(err)
		}
	}
	f.path = ""
	f.isScratch = false
}

// ReadAt reads into p from the file offset, returning the bytes obtained.
// Short reads at end of file are not an error; the caller decides whether
// the shortfall matters.
func (f *OpenFile) ReadAt(at int64, p []byte, handler *IoErrorHandler) int {
	if f.f == nil {
		handler.SignalError(IostatUnitNotConnected)
		return 0
	}
	if !f.mayPosition {
		// Non-positionable stores read strictly forward.
		n, err := stdio.ReadFull(f.f, p)
		if err != nil && !errors.Is(err, stdio.EOF) && !errors.Is(err, stdio.ErrUnexpectedEOF) {
			handler.SignalErrno(err)
		}
		return n
	}
	n, err := f.f.ReadAt(p, at)
	if err != nil && !errors.Is(err, stdio.EOF) {
		handler.SignalErrno(err)
	}
	return n
}

// WriteAt writes p at the file offset.
func (f *OpenFile) WriteAt(at int64, p []byte, handler *IoErrorHandler) int {
	if f.f == nil {
		handler.SignalError(IostatUnitNotConnected)
		return 0
	}
	var n int
	var err error
	if f.mayPosition {
		n, err = f.f.WriteAt(p, at)
	} else {
		n, err = f.f.Write(p)
	}
	if err != nil {
		handler.SignalErrno(err)
	}
	if f.knownSize.Ok && at+int64(n) > f.knownSize.Value {
		f.knownSize = Some(at + int64(n))
	}
	return n
}

// Truncate cuts the backing store at the offset (ENDFILE).
func (f *OpenFile) Truncate(at int64, handler *IoErrorHandler) {
	if f.f == nil {
		handler.SignalError(IostatUnitNotConnected)
		return
	}
	if !f.mayPosition {
		handler.SignalError(IostatCannotReposition)
		return
	}
	if err := f.f.Truncate(at); err != nil {
		handler.SignalErrno(err)
		return
	}
	f.knownSize = Some(at)
}

// Sync pushes written data to the store; terminals and pipes ignore it.
func (f *OpenFile) Sync(handler *IoErrorHandler) {
	if f.f == nil || !f.mayWrite {
		return
	}
	if f.mayPosition {
		if err := f.f.Sync(); err != nil {
			handler.SignalErrno(err)
		}
	}
}
