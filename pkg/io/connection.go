package io

// Access selects the record addressing discipline of a connection.
type Access int

const (
	AccessSequential Access = iota
	AccessDirect
	AccessStream
)

func (a Access) String() string {
	switch a {
	case AccessSequential:
		return "SEQUENTIAL"
	case AccessDirect:
		return "DIRECT"
	case AccessStream:
		return "STREAM"
	default:
		return "UNKNOWN"
	}
}

// RoundingMode names the rounding rule active for real editing.
type RoundingMode int

const (
	RoundNearest RoundingMode = iota
	RoundToZero
	RoundUp
	RoundDown
	RoundCompatible // ties away from zero
)

// MutableModes are the run-time-selectable editing modes a statement can
// change mid-transfer (BN/BZ, DC/DP, kP, rounding, PAD=). A copy is bound
// into every DataEdit so one data item's edit is immutable.
type MutableModes struct {
	BlankZero    bool // BZ: treat embedded blanks as zero digits
	DecimalComma bool // DC: ',' is the decimal separator
	Pad          bool // PAD='YES': short input records read as blanks
	Round        RoundingMode
	Scale        int // kP scale factor
}

var defaultModes = MutableModes{Pad: true}

// DefaultModes returns the modes a fresh connection starts with.
func DefaultModes() MutableModes { return defaultModes }

// SetDefaultModes changes the modes fresh connections start with. Existing
// connections keep the modes they were created with.
func SetDefaultModes(modes MutableModes) { defaultModes = modes }

// Int64Opt is an optional 64-bit value; record lengths and positions use it
// where "not yet known" is a meaningful state.
type Int64Opt struct {
	Value int64
	Ok    bool
}

// Some returns a present optional.
func Some(v int64) Int64Opt { return Int64Opt{Value: v, Ok: true} }

// Or returns the value, or the fallback when absent.
func (o Int64Opt) Or(fallback int64) int64 {
	if o.Ok {
		return o.Value
	}
	return fallback
}

// ConnectionState carries the transfer-mode attributes a unit shares across
// statements, plus the position within the current record.
type ConnectionState struct {
	Access              Access
	IsUnformatted       bool
	IsFixedRecordLength bool
	NonAdvancing        bool

	// RecordLength is absent mid-read on a sequential file before the next
	// record's boundary has been discovered.
	RecordLength Int64Opt

	// CurrentRecordNumber is 1-based.
	CurrentRecordNumber int64

	// EndfileRecordNumber, when known, is the record number at and after
	// which reads signal end-of-file.
	EndfileRecordNumber Int64Opt

	PositionInRecord int64

	// FurthestPositionInRecord is the high-water mark of bytes written so
	// far in the current record; output blank-fills up to it.
	FurthestPositionInRecord int64

	// LeftTabLimit forbids absolute positioning left of a prior
	// non-advancing output's end.
	LeftTabLimit Int64Opt

	OffsetInFile              int64
	NextInputRecordFileOffset int64

	// Modes seed every statement's mutable modes.
	Modes MutableModes
}

// NewConnectionState returns a connection with default modes and the record
// counter at its first record.
func NewConnectionState() ConnectionState {
	return ConnectionState{CurrentRecordNumber: 1, Modes: DefaultModes()}
}

// EffectiveRecordLength is the record length, or the high-water mark when
// the length is not fixed.
func (c *ConnectionState) EffectiveRecordLength() int64 {
	return c.RecordLength.Or(c.FurthestPositionInRecord)
}
