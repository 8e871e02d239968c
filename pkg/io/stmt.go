package io

import "fmt"

// StatementKind tags the mutually exclusive per-statement states a unit can
// be in. The tag determines which operations are legal; misusing one is a
// fatal invariant violation, not a signalable condition.
type StatementKind int

const (
	StmtNone StatementKind = iota
	StmtOpen
	StmtClose
	StmtExternalFormattedInput
	StmtExternalFormattedOutput
	StmtExternalListInput
	StmtExternalListOutput
	StmtExternalUnformattedInput
	StmtExternalUnformattedOutput
	StmtInternalFormattedInput
	StmtInternalFormattedOutput
	StmtInternalListInput
	StmtInternalListOutput
)

// IsInput reports whether the statement reads.
func (k StatementKind) IsInput() bool {
	switch k {
	case StmtExternalFormattedInput, StmtExternalListInput,
		StmtExternalUnformattedInput, StmtInternalFormattedInput,
		StmtInternalListInput:
		return true
	}
	return false
}

// IsListDirected reports whether fields are delimited by content.
func (k StatementKind) IsListDirected() bool {
	switch k {
	case StmtExternalListInput, StmtExternalListOutput,
		StmtInternalListInput, StmtInternalListOutput:
		return true
	}
	return false
}

func (k StatementKind) isInternal() bool {
	switch k {
	case StmtInternalFormattedInput, StmtInternalFormattedOutput,
		StmtInternalListInput, StmtInternalListOutput:
		return true
	}
	return false
}

// IoStatementState is the per-statement context: the bound unit (external
// or internal), the error handler deciding signal-vs-abort outcomes, the
// statement's mutable copy of the editing modes, and the payload of the
// open/close variants of the state union.
type IoStatementState struct {
	Kind    StatementKind
	handler IoErrorHandler

	unit     *ExternalFileUnit
	internal *InternalDescriptorUnit

	// Modes is the statement's own copy; changes do not outlive it except
	// through an OPEN.
	Modes MutableModes

	// Open statement payload.
	openStatus    OpenStatus
	openPosition  Position
	openPath      string
	openAccess    Access
	hasOpenAccess bool
	openForm      bool // unformatted
	hasOpenForm   bool
	openRecl      Int64Opt

	// Close statement payload.
	closeStatus CloseStatus

	// A condition raised before EnableHandlers could run is held here and
	// signaled once the caller's requests are known.
	pendingStat Iostat
	pendingMsg  string

	ended bool
}

// GetIoErrorHandler returns the statement's error context.
func (s *IoStatementState) GetIoErrorHandler() *IoErrorHandler { return &s.handler }

// EnableHandlers registers which of IOSTAT=/ERR=/END=/EOR=/IOMSG= the
// caller requested. Conditions matching a request are recorded instead of
// aborting.
func (s *IoStatementState) EnableHandlers(ioStat, err, end, eor, ioMsg bool) {
	if ioStat {
		s.handler.HasIoStat()
	}
	if err {
		s.handler.HasErr()
	}
	if end {
		s.handler.HasEnd()
	}
	if eor {
		s.handler.HasEor()
	}
	if ioMsg {
		s.handler.HasIoMsg()
	}
	s.flushPending()
}

func (s *IoStatementState) flushPending() {
	if s.pendingStat != IostatOk {
		stat, msg := s.pendingStat, s.pendingMsg
		s.pendingStat, s.pendingMsg = IostatOk, ""
		s.handler.SignalErrorf(stat, "%s", msg)
	}
}

func beginExternal(kind StatementKind, unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	s := &IoStatementState{Kind: kind, openStatus: OpenStatusUnknown}
	s.handler.Begin(sourceFile, sourceLine)
	var wasExtant bool
	u := LookUpOrCreateUnit(unitNumber, &wasExtant)
	u.mu.Lock()
	u.active = s
	s.unit = u
	if kind != StmtOpen && kind != StmtClose {
		if !wasExtant {
			// implicit preconnection: unit N maps to ./fort.N
			u.OpenUnit(OpenStatusUnknown, PositionAsIs, fmt.Sprintf("fort.%d", unitNumber), &s.handler)
		}
		u.isReading = kind.IsInput()
		u.IsUnformatted = kind == StmtExternalUnformattedInput || kind == StmtExternalUnformattedOutput
		if u.isReading && !u.file.MayRead() {
			s.pendingStat = IostatUnitNotConnected
			s.pendingMsg = fmt.Sprintf("Unit %d is not connected for input", unitNumber)
		}
		if !u.isReading && !u.file.MayWrite() {
			s.pendingStat = IostatUnitNotConnected
			s.pendingMsg = fmt.Sprintf("Unit %d is not connected for output", unitNumber)
		}
	}
	s.Modes = u.Modes
	return s
}

// BeginOpenUnit starts an OPEN statement on the numbered unit.
func BeginOpenUnit(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtOpen, unitNumber, sourceFile, sourceLine)
}

// BeginCloseUnit starts a CLOSE statement; closing an unconnected unit is
// legal and does nothing.
func BeginCloseUnit(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	s := &IoStatementState{Kind: StmtClose}
	s.handler.Begin(sourceFile, sourceLine)
	if u := LookUpUnitForClose(unitNumber); u != nil {
		u.mu.Lock()
		u.active = s
		s.unit = u
		s.Modes = u.Modes
	}
	return s
}

// BeginExternalFormattedOutput starts a formatted WRITE on the unit.
func BeginExternalFormattedOutput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalFormattedOutput, unitNumber, sourceFile, sourceLine)
}

// BeginExternalFormattedInput starts a formatted READ on the unit.
func BeginExternalFormattedInput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalFormattedInput, unitNumber, sourceFile, sourceLine)
}

// BeginExternalListOutput starts a list-directed WRITE on the unit.
func BeginExternalListOutput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalListOutput, unitNumber, sourceFile, sourceLine)
}

// BeginExternalListInput starts a list-directed READ on the unit.
func BeginExternalListInput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalListInput, unitNumber, sourceFile, sourceLine)
}

// BeginExternalUnformattedOutput starts an unformatted WRITE on the unit.
func BeginExternalUnformattedOutput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalUnformattedOutput, unitNumber, sourceFile, sourceLine)
}

// BeginExternalUnformattedInput starts an unformatted READ on the unit.
func BeginExternalUnformattedInput(unitNumber int, sourceFile string, sourceLine int) *IoStatementState {
	return beginExternal(StmtExternalUnformattedInput, unitNumber, sourceFile, sourceLine)
}

func beginInternal(kind StatementKind, iu *InternalDescriptorUnit, sourceFile string, sourceLine int) *IoStatementState {
	s := &IoStatementState{Kind: kind, internal: iu}
	s.handler.Begin(sourceFile, sourceLine)
	if iu.isInput != kind.IsInput() {
		s.handler.Crash("internal unit direction does not match the statement")
	}
	s.Modes = iu.Modes
	return s
}

// BeginInternalFormattedOutput starts a formatted write into an internal
// unit.
func BeginInternalFormattedOutput(iu *InternalDescriptorUnit, sourceFile string, sourceLine int) *IoStatementState {
	return beginInternal(StmtInternalFormattedOutput, iu, sourceFile, sourceLine)
}

// BeginInternalFormattedInput starts a formatted read from an internal
// unit.
func BeginInternalFormattedInput(iu *InternalDescriptorUnit, sourceFile string, sourceLine int) *IoStatementState {
	return beginInternal(StmtInternalFormattedInput, iu, sourceFile, sourceLine)
}

// BeginInternalListOutput starts a list-directed write into an internal
// unit.
func BeginInternalListOutput(iu *InternalDescriptorUnit, sourceFile string, sourceLine int) *IoStatementState {
	return beginInternal(StmtInternalListOutput, iu, sourceFile, sourceLine)
}

// BeginInternalListInput starts a list-directed read from an internal
// unit.
func BeginInternalListInput(iu *InternalDescriptorUnit, sourceFile string, sourceLine int) *IoStatementState {
	return beginInternal(StmtInternalListInput, iu, sourceFile, sourceLine)
}

//-----------------------------------------------------------------------------
// OPEN/CLOSE statement payload setters
//-----------------------------------------------------------------------------

func (s *IoStatementState) checkKind(want StatementKind, op string) {
	if s.Kind != want {
		s.handler.Crash("%s used outside its statement", op)
	}
}

// SetStatus sets the STATUS= of an OPEN.
func (s *IoStatementState) SetStatus(status OpenStatus) {
	s.checkKind(StmtOpen, "SetStatus()")
	s.openStatus = status
}

// SetPosition sets the POSITION= of an OPEN.
func (s *IoStatementState) SetPosition(position Position) {
	s.checkKind(StmtOpen, "SetPosition()")
	s.openPosition = position
}

// SetFile sets the FILE= of an OPEN.
func (s *IoStatementState) SetFile(path string) {
	s.checkKind(StmtOpen, "SetFile()")
	s.openPath = path
}

// SetAccess sets the ACCESS= of an OPEN.
func (s *IoStatementState) SetAccess(access Access) {
	s.checkKind(StmtOpen, "SetAccess()")
	s.openAccess = access
	s.hasOpenAccess = true
}

// SetUnformatted sets the FORM= of an OPEN.
func (s *IoStatementState) SetUnformatted(unformatted bool) {
	s.checkKind(StmtOpen, "SetUnformatted()")
	s.openForm = unformatted
	s.hasOpenForm = true
}

// SetRecordLength sets the RECL= of an OPEN, fixing the record length.
func (s *IoStatementState) SetRecordLength(recl int64) {
	s.checkKind(StmtOpen, "SetRecordLength()")
	if recl <= 0 {
		s.handler.SignalErrorf(IostatErrorInKeyword, "RECL=%d is not positive", recl)
		return
	}
	s.openRecl = Some(recl)
}

// SetCloseStatus sets the STATUS= of a CLOSE.
func (s *IoStatementState) SetCloseStatus(status CloseStatus) {
	s.checkKind(StmtClose, "SetCloseStatus()")
	s.closeStatus = status
}

// SetAdvancing selects non-advancing transfer for this statement.
func (s *IoStatementState) SetAdvancing(advancing bool) {
	if s.unit != nil {
		s.unit.NonAdvancing = !advancing
	}
	if s.internal != nil {
		s.internal.NonAdvancing = !advancing
	}
}

//-----------------------------------------------------------------------------
// Transfers
//-----------------------------------------------------------------------------

// Emit writes bytes through the bound unit.
func (s *IoStatementState) Emit(data []byte) bool {
	if s.Kind.IsInput() {
		s.handler.Crash("Emit() called for an input statement")
		return false
	}
	if s.internal != nil {
		return s.internal.Emit(data, &s.handler)
	}
	return s.unit.Emit(data, &s.handler)
}

// Receive reads bytes of an unformatted record into data.
func (s *IoStatementState) Receive(data []byte) bool {
	if s.Kind != StmtExternalUnformattedInput {
		s.handler.Crash("Receive() called outside an unformatted input statement")
		return false
	}
	return s.unit.Read(data, &s.handler)
}

// GetCurrentChar returns the character at the current position without
// advancing; false at end of record or file.
func (s *IoStatementState) GetCurrentChar() (byte, bool) {
	if s.internal != nil {
		return s.internal.NextChar(&s.handler)
	}
	return s.unit.NextChar(&s.handler)
}

// NextChar returns the current character and advances past it.
func (s *IoStatementState) NextChar() (byte, bool) {
	ch, ok := s.GetCurrentChar()
	if ok {
		s.HandleRelativePosition(1)
	}
	return ch, ok
}

// AdvanceRecord moves the bound unit to its next record.
func (s *IoStatementState) AdvanceRecord() bool {
	if s.internal != nil {
		return s.internal.AdvanceRecord(&s.handler)
	}
	return s.unit.AdvanceRecord(&s.handler)
}

// BackspaceRecord steps the external unit back one record.
func (s *IoStatementState) BackspaceRecord() bool {
	if s.unit == nil {
		s.handler.Crash("BackspaceRecord() called on an internal unit")
		return false
	}
	return s.unit.BackspaceRecord(&s.handler)
}

// HandleAbsolutePosition tabs to a column of the current record.
func (s *IoStatementState) HandleAbsolutePosition(n int64) bool {
	if iu := s.internal; iu != nil {
		if iu.LeftTabLimit.Ok && n < iu.LeftTabLimit.Value {
			n = iu.LeftTabLimit.Value
		}
		if n < 0 {
			n = 0
		}
		iu.PositionInRecord = n
		return true
	}
	return s.unit.HandleAbsolutePosition(n, &s.handler)
}

// HandleRelativePosition moves by a signed count within the record.
func (s *IoStatementState) HandleRelativePosition(n int64) bool {
	if s.internal != nil {
		p := s.internal.PositionInRecord + n
		if p < 0 {
			p = 0
		}
		s.internal.PositionInRecord = p
		return true
	}
	return s.unit.HandleRelativePosition(n, &s.handler)
}

func (s *IoStatementState) connection() *ConnectionState {
	if s.internal != nil {
		return &s.internal.ConnectionState
	}
	return &s.unit.ConnectionState
}

func (s *IoStatementState) atRecordEnd() bool {
	c := s.connection()
	return c.RecordLength.Ok && c.PositionInRecord >= c.RecordLength.Value
}

// NextInField yields the next character of the current field. With a
// remaining width it counts the field down, reading short records as
// blanks under PAD; with none (list-directed or 0-width editing) the field
// ends at a value separator or the record's end.
func (s *IoStatementState) NextInField(remaining *int) (byte, bool) {
	if remaining == nil {
		if s.atRecordEnd() {
			return 0, false
		}
		ch, ok := s.GetCurrentChar()
		if !ok {
			return 0, false
		}
		switch ch {
		case ' ', '/', '\n', '\t':
			return 0, false
		case ',':
			// under decimal-comma mode the comma is the decimal separator
			// and ';' delimits values instead
			if !s.Modes.DecimalComma {
				return 0, false
			}
		case ';':
			if s.Modes.DecimalComma {
				return 0, false
			}
		}
		s.HandleRelativePosition(1)
		return ch, true
	}
	if *remaining <= 0 {
		return 0, false
	}
	if s.atRecordEnd() {
		if s.Modes.Pad {
			*remaining--
			return ' ', true
		}
		s.handler.SignalEor()
		return 0, false
	}
	ch, ok := s.GetCurrentChar()
	if !ok {
		if s.Modes.Pad && !s.handler.InError() {
			*remaining--
			return ' ', true
		}
		return 0, false
	}
	s.HandleRelativePosition(1)
	*remaining--
	return ch, true
}

// SkipSpaces consumes blanks at the current position of the field.
func (s *IoStatementState) SkipSpaces(remaining *int) {
	for {
		if remaining != nil && *remaining <= 0 {
			return
		}
		if s.atRecordEnd() {
			return
		}
		ch, ok := s.GetCurrentChar()
		if !ok || ch != ' ' {
			return
		}
		s.HandleRelativePosition(1)
		if remaining != nil {
			*remaining--
		}
	}
}

// EndIoStatement completes the statement: OPEN/CLOSE take effect, an
// advancing output terminates its record, an advancing input consumes the
// rest of its record. It returns the final condition code and releases the
// unit.
func (s *IoStatementState) EndIoStatement() Iostat {
	if s.ended {
		return s.handler.Iostat()
	}
	s.ended = true
	s.flushPending()
	switch {
	case s.Kind == StmtOpen:
		u := s.unit
		u.OpenUnit(s.openStatus, s.openPosition, s.openPath, &s.handler)
		if !s.handler.InError() {
			if s.hasOpenAccess {
				u.Access = s.openAccess
			}
			if s.hasOpenForm {
				u.IsUnformatted = s.openForm
			}
			if s.openRecl.Ok {
				u.RecordLength = s.openRecl
				u.IsFixedRecordLength = true
			}
			u.Modes = s.Modes
		}
	case s.Kind == StmtClose:
		if u := s.unit; u != nil {
			u.CloseUnit(s.closeStatus, &s.handler)
		}
	case s.Kind.isInternal():
		s.internal.EndIoStatement()
	case s.Kind.IsInput():
		u := s.unit
		if !u.NonAdvancing && u.Access == AccessSequential && u.RecordLength.Ok {
			u.finishReadingRecord()
		}
		u.NonAdvancing = false
	default:
		u := s.unit
		if u.NonAdvancing {
			u.SetLeftTabLimit()
		} else {
			// an empty unformatted WRITE still frames a zero-length record
			u.AdvanceRecord(&s.handler)
		}
		u.NonAdvancing = false
		u.FlushIfTerminal(&s.handler)
	}
	stat := s.handler.Iostat()
	if u := s.unit; u != nil {
		u.active = nil
		u.mu.Unlock()
		if s.Kind == StmtClose {
			u.DestroyClosed()
		}
	}
	return stat
}
