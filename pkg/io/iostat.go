package io

import "fmt"

// Iostat is the condition code a statement reports through IOSTAT=.
// Zero is success, positive codes are errors, and the two negative
// sentinels mark end-of-file and end-of-record. When more than one
// condition arises in a statement the priority is
// error > end-of-file > end-of-record.
type Iostat int

const (
	IostatOk  Iostat = 0
	IostatEnd Iostat = -1
	IostatEor Iostat = -2

	// IostatGenericError always carries a formatted message.
	IostatGenericError Iostat = iota + 97 // 100
	IostatRecordReadOverrun
	IostatRecordWriteOverrun
	IostatInternalWriteOverrun
	IostatErrorInFormat
	IostatErrorInKeyword
	IostatUnitNotConnected
	IostatBadUnformattedRecord
	IostatBadInputField
	IostatOpenFailed
	IostatCloseFailed
	IostatCannotReposition
	IostatUnflushable
	IostatBadDirectAccessRecord
)

// iostatErrorString returns the fixed diagnostic for a known condition code,
// or "" when the code is a raw system error number.
func iostatErrorString(code Iostat) string {
	switch code {
	case IostatEnd:
		return "End of file during input"
	case IostatEor:
		return "End of record during non-advancing input"
	case IostatGenericError:
		return "I/O error" // placeholder; a message is always attached
	case IostatRecordReadOverrun:
		return "Excessive input from fixed-size record"
	case IostatRecordWriteOverrun:
		return "Excessive output to fixed-size record"
	case IostatInternalWriteOverrun:
		return "Internal write overran available records"
	case IostatErrorInFormat:
		return "Invalid edit descriptor"
	case IostatErrorInKeyword:
		return "Bad keyword argument value"
	case IostatUnitNotConnected:
		return "Unit is not connected to a file"
	case IostatBadUnformattedRecord:
		return "Malformed unformatted sequential record"
	case IostatBadInputField:
		return "Malformed numeric input field"
	case IostatOpenFailed:
		return "OPEN failed"
	case IostatCloseFailed:
		return "CLOSE failed"
	case IostatCannotReposition:
		return "Unit cannot be repositioned"
	case IostatUnflushable:
		return "FLUSH not possible"
	case IostatBadDirectAccessRecord:
		return "Direct-access record number out of range"
	default:
		return ""
	}
}

func (code Iostat) String() string {
	if code == IostatOk {
		return "Ok"
	}
	if s := iostatErrorString(code); s != "" {
		return s
	}
	return fmt.Sprintf("system error %d", int(code))
}
