package io

import (
	"bytes"
	"encoding/binary"
	"sync"
)

// Each unformatted sequential record is stored as
//
//	[u32le length][payload][u32le length]
//
// The trailing copy of the length lets BACKSPACE walk records backward
// without an index; header/footer disagreement means the file is corrupt.
const recordHeaderBytes = 4

// ExternalFileUnit is an external-storage connection keyed by a small
// integer unit number. It owns the record-position state machine, a frame
// buffer over the backing store, and the per-unit lock that serializes
// statements against it.
type ExternalFileUnit struct {
	ConnectionState

	unitNumber int
	isReading  bool

	// terminatorBytes is the size of the current formatted record's
	// terminator: 1 for "\n", 2 for "\r\n", 0 for an unterminated final
	// record.
	terminatorBytes int64

	mu     sync.Mutex
	active *IoStatementState

	file  OpenFile
	frame FileFrame
}

func newExternalFileUnit(number int) *ExternalFileUnit {
	u := &ExternalFileUnit{
		ConnectionState: NewConnectionState(),
		unitNumber:      number,
	}
	u.frame = NewFileFrame(&u.file)
	return u
}

// UnitNumber returns the registry key; immutable after creation.
func (u *ExternalFileUnit) UnitNumber() int { return u.unitNumber }

// File exposes the backing-store handle.
func (u *ExternalFileUnit) File() *OpenFile { return &u.file }

// OpenUnit connects the unit. An OPEN of an already-open unit with
// STATUS='OLD' and an unspecified or identical path is a no-op; any other
// combination flushes and closes the current connection first, so an open
// on an open unit means reopen.
func (u *ExternalFileUnit) OpenUnit(status OpenStatus, position Position, path string, handler *IoErrorHandler) {
	if u.file.IsOpen() {
		if status == OpenStatusOld && (path == "" || path == u.file.Path()) {
			return
		}
		u.frame.FlushFrame(handler)
		u.file.Close(CloseStatusKeep, handler)
		u.frame.Invalidate()
	}
	u.file.SetPath(path)
	u.file.Open(status, handler)
	if handler.InError() {
		return
	}
	u.resetPosition()
	if position == PositionAppend && u.file.Size().Ok {
		u.OffsetInFile = u.file.Size().Value
		// The record count of the existing data is unknown but finite;
		// appending starts a fresh record beyond it.
		u.EndfileRecordNumber = Int64Opt{}
	}
}

// CloseUnit flushes pending output and disconnects per status.
func (u *ExternalFileUnit) CloseUnit(status CloseStatus, handler *IoErrorHandler) {
	u.frame.FlushFrame(handler)
	u.frame.Invalidate()
	u.file.Close(status, handler)
}

// DestroyClosed releases a unit previously detached with LookUpForClose.
func (u *ExternalFileUnit) DestroyClosed() {
	getUnitMap().DestroyClosed(u)
}

func (u *ExternalFileUnit) resetPosition() {
	u.OffsetInFile = 0
	u.NextInputRecordFileOffset = 0
	u.CurrentRecordNumber = 1
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	u.terminatorBytes = 0
	u.LeftTabLimit = Int64Opt{}
	if !u.IsFixedRecordLength {
		u.RecordLength = Int64Opt{}
	}
}

// payloadOffset is where record data begins relative to OffsetInFile.
func (u *ExternalFileUnit) payloadOffset() int64 {
	if u.IsUnformatted && u.Access == AccessSequential {
		return recordHeaderBytes
	}
	return 0
}

// recordFootprint is the on-store size of the current record including its
// framing or terminator.
func (u *ExternalFileUnit) recordFootprint() int64 {
	length := u.RecordLength.Or(u.FurthestPositionInRecord)
	if u.IsUnformatted && u.Access == AccessSequential {
		return length + 2*recordHeaderBytes
	}
	if !u.IsUnformatted && u.Access == AccessSequential {
		return length + u.terminatorBytes
	}
	return length
}

// Emit writes bytes at the current position in the current record,
// extending the frame to cover the write and advancing the high-water
// mark. Writing past a fixed record length is a record-write overrun.
func (u *ExternalFileUnit) Emit(data []byte, handler *IoErrorHandler) bool {
	if u.isReading {
		handler.Crash("Emit() called for an input statement on unit %d", u.unitNumber)
		return false
	}
	furthestAfter := u.FurthestPositionInRecord
	if after := u.PositionInRecord + int64(len(data)); after > furthestAfter {
		furthestAfter = after
	}
	if u.RecordLength.Ok && u.IsFixedRecordLength && furthestAfter > u.RecordLength.Value {
		handler.SignalError(IostatRecordWriteOverrun)
		return false
	}
	pad := u.payloadOffset()
	u.frame.WriteFrame(u.OffsetInFile, pad+furthestAfter, handler)
	frame := u.frame.At(u.OffsetInFile)
	if u.PositionInRecord > u.FurthestPositionInRecord {
		fillBlanks(frame[pad+u.FurthestPositionInRecord : pad+u.PositionInRecord])
	}
	copy(frame[pad+u.PositionInRecord:], data)
	u.PositionInRecord += int64(len(data))
	u.FurthestPositionInRecord = furthestAfter
	return true
}

// NextChar returns the character at the current position of a formatted
// read, resolving the record boundary first on sequential input when it is
// not yet known. It does not advance.
func (u *ExternalFileUnit) NextChar(handler *IoErrorHandler) (byte, bool) {
	if u.IsUnformatted {
		handler.Crash("NextChar() called for unformatted input on unit %d", u.unitNumber)
		return 0, false
	}
	if u.Access == AccessSequential && !u.RecordLength.Ok {
		u.beginSequentialInputRecord(handler)
		if handler.InError() || !u.RecordLength.Ok {
			return 0, false
		}
	}
	chunk := int64(256) // stream access pulls a bounded chunk
	if u.RecordLength.Ok {
		if u.PositionInRecord >= u.RecordLength.Value {
			if u.NonAdvancing {
				handler.SignalEor()
			} else {
				handler.SignalError(IostatRecordReadOverrun)
			}
			return 0, false
		}
		chunk = u.RecordLength.Value - u.PositionInRecord
	}
	at := u.OffsetInFile + u.payloadOffset() + u.PositionInRecord
	if u.frame.ReadFrame(at, chunk, handler) < 1 {
		handler.SignalEnd()
		return 0, false
	}
	return u.frame.At(at)[0], true
}

// Read copies the next bytes of an unformatted record into data; the
// mirror of Emit. Short records signal end-of-record.
func (u *ExternalFileUnit) Read(data []byte, handler *IoErrorHandler) bool {
	if !u.isReading {
		handler.Crash("Read() called for an output statement on unit %d", u.unitNumber)
		return false
	}
	if u.Access == AccessSequential && !u.RecordLength.Ok {
		u.beginSequentialInputRecord(handler)
		if handler.InError() || !u.RecordLength.Ok {
			return false
		}
	}
	need := int64(len(data))
	if u.RecordLength.Ok && u.PositionInRecord+need > u.RecordLength.Value {
		if u.NonAdvancing {
			handler.SignalEor()
		} else {
			handler.SignalError(IostatRecordReadOverrun)
		}
		return false
	}
	at := u.OffsetInFile + u.payloadOffset() + u.PositionInRecord
	if u.frame.ReadFrame(at, need, handler) < need {
		handler.SignalEnd()
		return false
	}
	copy(data, u.frame.At(at)[:need])
	u.PositionInRecord += need
	if u.PositionInRecord > u.FurthestPositionInRecord {
		u.FurthestPositionInRecord = u.PositionInRecord
	}
	return true
}

// SetLeftTabLimit forbids a following statement from tabbing left of what
// this non-advancing output already wrote.
func (u *ExternalFileUnit) SetLeftTabLimit() {
	u.LeftTabLimit = Some(u.FurthestPositionInRecord)
	u.PositionInRecord = u.FurthestPositionInRecord
}

// SetPositionInRecord moves within the current record. Positions are
// clamped at zero and at the record length (signaling end-of-record); a
// write positioned past the high-water mark blank-fills the gap first.
func (u *ExternalFileUnit) SetPositionInRecord(n int64, handler *IoErrorHandler) bool {
	if n < 0 {
		n = 0
	}
	ok := true
	if u.RecordLength.Ok && n > u.RecordLength.Value {
		handler.SignalEor()
		n = u.RecordLength.Value
		ok = false
	}
	if !u.isReading && n > u.FurthestPositionInRecord {
		pad := u.payloadOffset()
		u.frame.WriteFrame(u.OffsetInFile, pad+n, handler)
		fillBlanks(u.frame.At(u.OffsetInFile)[pad+u.FurthestPositionInRecord : pad+n])
		u.FurthestPositionInRecord = n
	}
	u.PositionInRecord = n
	return ok
}

// HandleAbsolutePosition tabs to a column, floored at the left-tab limit.
func (u *ExternalFileUnit) HandleAbsolutePosition(n int64, handler *IoErrorHandler) bool {
	if u.LeftTabLimit.Ok && n < u.LeftTabLimit.Value {
		n = u.LeftTabLimit.Value
	}
	return u.SetPositionInRecord(n, handler)
}

// HandleRelativePosition moves by a signed byte count.
func (u *ExternalFileUnit) HandleRelativePosition(n int64, handler *IoErrorHandler) bool {
	return u.SetPositionInRecord(u.PositionInRecord+n, handler)
}

// AdvanceRecord completes the current record and moves to the next one.
func (u *ExternalFileUnit) AdvanceRecord(handler *IoErrorHandler) bool {
	if u.isReading {
		switch u.Access {
		case AccessSequential:
			u.beginSequentialInputRecord(handler)
		case AccessDirect:
			u.finishReadingRecord()
			u.OffsetInFile = (u.CurrentRecordNumber - 1) * u.RecordLength.Or(0)
		case AccessStream:
			// records do not exist under stream access
		}
		u.FurthestPositionInRecord = 0
		u.LeftTabLimit = Int64Opt{}
		return !handler.InError()
	}
	ok := true
	switch {
	case u.IsUnformatted && u.Access == AccessSequential:
		u.flushUnformattedRecord(handler)
	case u.RecordLength.Ok && u.IsFixedRecordLength:
		// pad the fixed-size record out to its length: blanks when
		// formatted, zero bytes when unformatted
		if u.FurthestPositionInRecord < u.RecordLength.Value {
			u.frame.WriteFrame(u.OffsetInFile, u.RecordLength.Value, handler)
			gap := u.frame.At(u.OffsetInFile)[u.FurthestPositionInRecord:u.RecordLength.Value]
			if u.IsUnformatted {
				fillZeroes(gap)
			} else {
				fillBlanks(gap)
			}
		}
		u.OffsetInFile += u.RecordLength.Value
	default:
		// variable-length formatted record: newline terminator
		u.PositionInRecord = u.FurthestPositionInRecord
		ok = u.Emit([]byte{'\n'}, handler)
		u.OffsetInFile += u.FurthestPositionInRecord
	}
	u.CurrentRecordNumber++
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	u.LeftTabLimit = Int64Opt{}
	return ok
}

// flushUnformattedRecord frames the buffered payload with its length
// header and footer and steps past it.
func (u *ExternalFileUnit) flushUnformattedRecord(handler *IoErrorHandler) {
	length := u.FurthestPositionInRecord
	u.frame.WriteFrame(u.OffsetInFile, length+2*recordHeaderBytes, handler)
	frame := u.frame.At(u.OffsetInFile)
	binary.LittleEndian.PutUint32(frame, uint32(length))
	binary.LittleEndian.PutUint32(frame[recordHeaderBytes+length:], uint32(length))
	u.OffsetInFile += length + 2*recordHeaderBytes
}

// finishReadingRecord consumes a fully read record: the next discovery or
// direct positioning starts at the following one.
func (u *ExternalFileUnit) finishReadingRecord() {
	if u.RecordLength.Ok {
		u.OffsetInFile += u.recordFootprint()
		u.CurrentRecordNumber++
		if !u.IsFixedRecordLength {
			u.RecordLength = Int64Opt{}
		}
	}
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	u.terminatorBytes = 0
	u.LeftTabLimit = Int64Opt{}
}

func (u *ExternalFileUnit) beginSequentialInputRecord(handler *IoErrorHandler) {
	if u.IsUnformatted {
		u.nextSequentialUnformattedInputRecord(handler)
	} else {
		u.nextSequentialFormattedInputRecord(handler)
	}
}

func (u *ExternalFileUnit) atEndfile() bool {
	return u.EndfileRecordNumber.Ok && u.CurrentRecordNumber >= u.EndfileRecordNumber.Value
}

// nextSequentialUnformattedInputRecord discovers the next record's
// boundaries: a length header, the payload, and a trailing length footer
// that must match the header.
func (u *ExternalFileUnit) nextSequentialUnformattedInputRecord(handler *IoErrorHandler) {
	if u.RecordLength.Ok {
		// mid-statement advance past the current record
		u.finishReadingRecord()
	}
	if u.atEndfile() {
		handler.SignalEnd()
		return
	}
	got := u.frame.ReadFrame(u.OffsetInFile, recordHeaderBytes, handler)
	if handler.InError() {
		return
	}
	if got < recordHeaderBytes {
		if got == 0 {
			u.EndfileRecordNumber = Some(u.CurrentRecordNumber)
			handler.SignalEnd()
		} else {
			handler.SignalErrorf(IostatBadUnformattedRecord,
				"Unformatted sequential file input failed at record #%d (file offset %d): truncated record header",
				u.CurrentRecordNumber, u.OffsetInFile)
		}
		return
	}
	header := int64(binary.LittleEndian.Uint32(u.frame.At(u.OffsetInFile)))
	need := 2*recordHeaderBytes + header
	if u.frame.ReadFrame(u.OffsetInFile, need, handler) < need {
		handler.SignalErrorf(IostatBadUnformattedRecord,
			"Unformatted sequential file input failed at record #%d (file offset %d): hit EOF reading record with length %d bytes",
			u.CurrentRecordNumber, u.OffsetInFile, header)
		return
	}
	footer := int64(binary.LittleEndian.Uint32(u.frame.At(u.OffsetInFile + recordHeaderBytes + header)))
	if footer != header {
		handler.SignalErrorf(IostatBadUnformattedRecord,
			"Unformatted sequential file input failed at record #%d (file offset %d): record header has length %d that does not match record footer (%d)",
			u.CurrentRecordNumber, u.OffsetInFile, header, footer)
		return
	}
	u.RecordLength = Some(header)
	u.PositionInRecord = 0
}

// nextSequentialFormattedInputRecord scans for the terminating newline,
// stripping an optional preceding carriage return.
func (u *ExternalFileUnit) nextSequentialFormattedInputRecord(handler *IoErrorHandler) {
	if u.RecordLength.Ok {
		u.finishReadingRecord()
	}
	if u.atEndfile() {
		handler.SignalEnd()
		return
	}
	var length int64
	for {
		avail := u.frame.ReadFrame(u.OffsetInFile, length+int64(frameChunk), handler)
		if handler.InError() {
			return
		}
		if avail <= length {
			if avail <= 0 {
				u.EndfileRecordNumber = Some(u.CurrentRecordNumber)
				handler.SignalEnd()
				return
			}
			// unterminated final record
			u.RecordLength = Some(avail)
			u.terminatorBytes = 0
			u.PositionInRecord = 0
			return
		}
		frame := u.frame.At(u.OffsetInFile)[:avail]
		if nl := bytes.IndexByte(frame[length:], '\n'); nl >= 0 {
			recordLength := length + int64(nl)
			u.terminatorBytes = 1
			if recordLength > 0 && frame[recordLength-1] == '\r' {
				recordLength--
				u.terminatorBytes = 2
			}
			u.RecordLength = Some(recordLength)
			u.PositionInRecord = 0
			return
		}
		length = avail
	}
}

// BackspaceRecord positions the unit before the preceding record. For
// unformatted sequential files the trailing length footer is how a record
// can be walked backward; formatted files rescan for the prior newline.
func (u *ExternalFileUnit) BackspaceRecord(handler *IoErrorHandler) bool {
	if !u.file.MayPosition() {
		handler.SignalError(IostatCannotReposition)
		return false
	}
	if u.Access != AccessSequential {
		handler.SignalError(IostatCannotReposition)
		return false
	}
	if u.RecordLength.Ok && !u.IsFixedRecordLength {
		// positioned within a record: back to its start
		u.RecordLength = Int64Opt{}
		u.PositionInRecord = 0
		u.FurthestPositionInRecord = 0
		u.terminatorBytes = 0
		return true
	}
	if u.OffsetInFile == 0 || u.CurrentRecordNumber <= 1 {
		return true
	}
	if u.IsUnformatted {
		return u.backspaceUnformatted(handler)
	}
	return u.backspaceFormatted(handler)
}

func (u *ExternalFileUnit) backspaceUnformatted(handler *IoErrorHandler) bool {
	if u.OffsetInFile < 2*recordHeaderBytes {
		handler.SignalErrorf(IostatBadUnformattedRecord,
			"BACKSPACE failed at record #%d (file offset %d): no room for a record footer",
			u.CurrentRecordNumber, u.OffsetInFile)
		return false
	}
	footerAt := u.OffsetInFile - recordHeaderBytes
	if u.frame.ReadFrame(footerAt, recordHeaderBytes, handler) < recordHeaderBytes {
		handler.SignalErrorf(IostatBadUnformattedRecord,
			"BACKSPACE failed at record #%d (file offset %d): truncated record footer",
			u.CurrentRecordNumber, u.OffsetInFile)
		return false
	}
	length := int64(binary.LittleEndian.Uint32(u.frame.At(footerAt)))
	start := u.OffsetInFile - length - 2*recordHeaderBytes
	if start < 0 {
		handler.SignalErrorf(IostatBadUnformattedRecord,
			"BACKSPACE failed at record #%d (file offset %d): footer length %d overruns start of file",
			u.CurrentRecordNumber, u.OffsetInFile, length)
		return false
	}
	u.OffsetInFile = start
	u.CurrentRecordNumber--
	u.RecordLength = Int64Opt{}
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	return true
}

func (u *ExternalFileUnit) backspaceFormatted(handler *IoErrorHandler) bool {
	// The byte before OffsetInFile is the previous record's newline; the
	// record starts after the newline before that, or at the file start.
	end := u.OffsetInFile - 1
	scanEnd := end // exclusive, skips the terminator itself
	if scanEnd > 0 {
		// tolerate "\r\n"
		if u.frame.ReadFrame(scanEnd-1, 1, handler) >= 1 && u.frame.At(scanEnd-1)[0] == '\r' {
			scanEnd--
		}
	}
	start := int64(0)
	for lo := scanEnd; lo > 0; {
		chunk := minInt64(int64(frameChunk), lo)
		lo -= chunk
		if u.frame.ReadFrame(lo, chunk, handler) < chunk {
			handler.SignalErrorf(IostatGenericError,
				"BACKSPACE could not re-read the preceding record (file offset %d)", lo)
			return false
		}
		window := u.frame.At(lo)[:chunk]
		if nl := bytes.LastIndexByte(window, '\n'); nl >= 0 {
			start = lo + int64(nl) + 1
			break
		}
	}
	u.OffsetInFile = start
	u.CurrentRecordNumber--
	u.RecordLength = Int64Opt{}
	u.terminatorBytes = 0
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	return true
}

// Rewind repositions the unit at its first record.
func (u *ExternalFileUnit) Rewind(handler *IoErrorHandler) bool {
	if !u.file.MayPosition() {
		handler.SignalError(IostatCannotReposition)
		return false
	}
	u.frame.FlushFrame(handler)
	u.resetPosition()
	return !handler.InError()
}

// Endfile truncates the file at the current position and marks the current
// record number as the endfile record.
func (u *ExternalFileUnit) Endfile(handler *IoErrorHandler) bool {
	u.frame.FlushFrame(handler)
	u.file.Truncate(u.OffsetInFile, handler)
	if handler.InError() {
		return false
	}
	u.EndfileRecordNumber = Some(u.CurrentRecordNumber)
	u.RecordLength = Int64Opt{}
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	return true
}

// SetDirectRecord positions a direct-access unit at a record number.
func (u *ExternalFileUnit) SetDirectRecord(record int64, handler *IoErrorHandler) bool {
	if u.Access != AccessDirect || !u.RecordLength.Ok {
		handler.SignalError(IostatCannotReposition)
		return false
	}
	if record < 1 {
		handler.SignalError(IostatBadDirectAccessRecord)
		return false
	}
	u.CurrentRecordNumber = record
	u.OffsetInFile = (record - 1) * u.RecordLength.Value
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	return true
}

// Flush pushes buffered frames and synced data to the store.
func (u *ExternalFileUnit) Flush(handler *IoErrorHandler) {
	u.frame.FlushFrame(handler)
	u.file.Sync(handler)
}

// FlushIfTerminal flushes interactive units so prompts appear promptly.
func (u *ExternalFileUnit) FlushIfTerminal(handler *IoErrorHandler) {
	if u.file.IsTerminal() {
		u.frame.FlushFrame(handler)
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
