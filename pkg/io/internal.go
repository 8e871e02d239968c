package io

// InternalDescriptorUnit is an internal-storage connection: a data-transfer
// statement reading from or writing to a character buffer rather than a
// file. Each element of the underlying descriptor is one fixed-length
// record. The unit is scoped to a single statement and needs no locking.
type InternalDescriptorUnit struct {
	ConnectionState
	isInput bool
	d       Descriptor
	at      []int64
}

// NewInternalUnitForScalar overlays a single flat record.
func NewInternalUnitForScalar(record []byte, isInput bool) *InternalDescriptorUnit {
	u := &InternalDescriptorUnit{
		ConnectionState: NewConnectionState(),
		isInput:         isInput,
		d:               NewCharDescriptor(record, int64(len(record))),
	}
	u.RecordLength = Some(int64(len(record)))
	u.IsFixedRecordLength = true
	u.EndfileRecordNumber = Some(2)
	return u
}

// NewInternalUnit overlays a character array descriptor, one record per
// element.
func NewInternalUnit(d Descriptor, isInput bool) *InternalDescriptorUnit {
	u := &InternalDescriptorUnit{
		ConnectionState: NewConnectionState(),
		isInput:         isInput,
		d:               d,
		at:              make([]int64, d.Rank()),
	}
	d.GetLowerBounds(u.at)
	u.RecordLength = Some(d.ElementBytes())
	u.IsFixedRecordLength = true
	u.EndfileRecordNumber = Some(d.Elements() + 1)
	return u
}

func (u *InternalDescriptorUnit) record() []byte { return u.d.Element(u.at) }

func (u *InternalDescriptorUnit) atEndfile() bool {
	return u.EndfileRecordNumber.Ok && u.CurrentRecordNumber >= u.EndfileRecordNumber.Value
}

// Emit writes bytes into the current record at the current position.
// Overrunning the record is a record-write-overrun condition; running past
// the last record is an internal-write overrun, since the medium's extent
// was fixed at construction.
func (u *InternalDescriptorUnit) Emit(data []byte, handler *IoErrorHandler) bool {
	if u.isInput {
		handler.Crash("Emit() called for an internal input statement")
		return false
	}
	if len(data) == 0 {
		return true
	}
	if u.atEndfile() {
		handler.SignalError(IostatInternalWriteOverrun)
		return false
	}
	record := u.record()
	furthestAfter := u.FurthestPositionInRecord
	if after := u.PositionInRecord + int64(len(data)); after > furthestAfter {
		furthestAfter = after
	}
	ok := true
	if furthestAfter > u.RecordLength.Or(0) {
		handler.SignalError(IostatRecordWriteOverrun)
		furthestAfter = u.RecordLength.Or(0)
		if trimmed := furthestAfter - u.PositionInRecord; trimmed > 0 {
			data = data[:trimmed]
		} else {
			data = nil
		}
		ok = false
	} else if u.PositionInRecord > u.FurthestPositionInRecord {
		fillBlanks(record[u.FurthestPositionInRecord:u.PositionInRecord])
	}
	copy(record[u.PositionInRecord:], data)
	u.PositionInRecord += int64(len(data))
	u.FurthestPositionInRecord = furthestAfter
	return ok
}

// NextChar returns the character at the current position without advancing.
// Reading past the last record is end-of-file; past the record's end it is
// end-of-record, padded with a blank under PAD mode.
func (u *InternalDescriptorUnit) NextChar(handler *IoErrorHandler) (byte, bool) {
	if !u.isInput {
		handler.Crash("NextChar() called for an internal output statement")
		return 0, false
	}
	if u.atEndfile() {
		handler.SignalEnd()
		return 0, false
	}
	if u.PositionInRecord >= u.RecordLength.Or(u.PositionInRecord+1) {
		if u.NonAdvancing {
			handler.SignalEor()
		}
		if u.Modes.Pad {
			return ' ', true
		}
		return 0, false
	}
	return u.record()[u.PositionInRecord], true
}

// AdvanceRecord moves to the next record, blank-filling the remainder of
// the current one on output.
func (u *InternalDescriptorUnit) AdvanceRecord(handler *IoErrorHandler) bool {
	if u.atEndfile() {
		handler.SignalEnd()
		return false
	}
	if !u.isInput && u.FurthestPositionInRecord < u.RecordLength.Or(u.FurthestPositionInRecord) {
		record := u.record()
		fillBlanks(record[u.FurthestPositionInRecord:u.RecordLength.Value])
	}
	u.CurrentRecordNumber++
	u.d.IncrementSubscripts(u.at)
	u.PositionInRecord = 0
	u.FurthestPositionInRecord = 0
	u.LeftTabLimit = Int64Opt{}
	return true
}

// EndIoStatement finishes the statement. Internal output has no notion of a
// file truncated at the current position, so every remaining record is
// blank-filled to keep the buffer well formed.
func (u *InternalDescriptorUnit) EndIoStatement() {
	if u.isInput {
		return
	}
	for !u.atEndfile() {
		record := u.record()
		fillBlanks(record[u.FurthestPositionInRecord:])
		u.FurthestPositionInRecord = 0
		u.CurrentRecordNumber++
		u.d.IncrementSubscripts(u.at)
	}
}

func fillBlanks(p []byte) {
	for j := range p {
		p[j] = ' '
	}
}

func fillZeroes(p []byte) {
	for j := range p {
		p[j] = 0
	}
}
