package io

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/pmccormick/f18/pkg/decimal"
)

// scanNumericPrefix skips leading blanks and consumes an optional sign,
// returning the first significant character. allowSign is false for BOZ
// editing, which stores raw bit patterns and has no sign semantics.
func scanNumericPrefix(s *IoStatementState, remaining *int, allowSign bool) (next byte, ok, negative bool) {
	s.SkipSpaces(remaining)
	next, ok = s.NextInField(remaining)
	for ok && next == ' ' {
		next, ok = s.NextInField(remaining)
	}
	if ok && allowSign {
		negative = next == '-'
		if negative || next == '+' {
			next, ok = s.NextInField(remaining)
		}
	}
	return next, ok, negative
}

func fieldWidth(s *IoStatementState, edit DataEdit) *int {
	if edit.Descriptor != ListDirected && edit.Width > 0 {
		w := edit.Width
		return &w
	}
	// list-directed, or nonstandard 0-width editing: the field is
	// delimited by the statement's own tokenizer
	return nil
}

func editBase(descriptor byte) (base int, boz bool, ok bool) {
	switch descriptor {
	case ListDirected, DescriptorG, DescriptorI:
		return 10, false, true
	case DescriptorB:
		return 2, true, true
	case DescriptorO:
		return 8, true, true
	case DescriptorZ:
		return 16, true, true
	default:
		return 0, false, false
	}
}

func digitValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'A' && ch <= 'Z':
		return int(ch-'A') + 10
	case ch >= 'a' && ch <= 'z':
		return int(ch-'a') + 10
	default:
		return -1
	}
}

// EditIntegerInput converts the next field to a binary integer, storing
// its little-endian bit pattern into n, whose length selects the kind
// (1, 2, 4, 8, or 16 bytes). The descriptor selects the base; blanks are
// skipped, or treated as zero digits under BZ mode; BOZ descriptors bypass
// sign handling and store the raw pattern. An empty field is zero.
func EditIntegerInput(s *IoStatementState, edit DataEdit, n []byte) bool {
	switch len(n) {
	case 1, 2, 4, 8, 16:
	default:
		s.handler.Crash("EditIntegerInput: bad INTEGER kind %d", len(n))
		return false
	}
	base, boz, ok := editBase(edit.Descriptor)
	if !ok {
		s.handler.SignalErrorf(IostatErrorInFormat,
			"Data edit descriptor '%c' may not be used with an INTEGER data item", edit.Descriptor)
		return false
	}
	remaining := fieldWidth(s, edit)
	next, got, negate := scanNumericPrefix(s, remaining, !boz)
	var value UInt128
	for ; got; next, got = s.NextInField(remaining) {
		ch := next
		if ch == ' ' {
			if edit.Modes.BlankZero {
				ch = '0' // BZ mode: a blank is a zero digit in place
			} else {
				continue
			}
		}
		digit := digitValue(ch)
		if digit < 0 || digit >= base {
			s.handler.SignalErrorf(IostatBadInputField,
				"Bad character '%c' in INTEGER input field", ch)
			return false
		}
		value = value.MulAdd(uint64(base), uint64(digit))
	}
	if s.handler.InError() {
		return false
	}
	if negate {
		value = value.Negate()
	}
	value.StoreLittleEndian(n)
	return true
}

// scanRealInput normalizes the next field into a synthetic decimal string
// (sign, a literal point, then the significant digits) and the decimal
// exponent that positions the point. It reports how many significant
// digits were kept and whether more arrived than the buffer could hold.
func scanRealInput(s *IoStatementState, edit DataEdit, maxDigits int) (text string, exponent int, ok, hadExtra bool) {
	var b strings.Builder
	remaining := fieldWidth(s, edit)
	next, got, negative := scanNumericPrefix(s, remaining, true)
	if negative {
		b.WriteByte('-')
	}
	if !got {
		// an empty field conventionally reads as zero
		return b.String(), 0, true, false
	}
	decimalPoint := byte('.')
	if edit.Modes.DecimalComma {
		decimalPoint = ','
	}
	if isLetter(next) {
		// NaN or Infinity, case-normalized to upper case
		for ; got && isLetter(next); next, got = s.NextInField(remaining) {
			b.WriteByte(upper(next))
		}
		drainField(s, remaining)
		return b.String(), 0, !s.handler.InError(), false
	}
	b.WriteByte('.')
	digits := 0    // significant digits seen, counting dropped extras
	fracCount := 0 // digits seen after the decimal point
	sawPoint := false
	for ; got; next, got = s.NextInField(remaining) {
		ch := next
		if ch == ' ' {
			if edit.Modes.BlankZero {
				ch = '0'
			} else {
				continue
			}
		}
		if ch >= '0' && ch <= '9' {
			if sawPoint {
				fracCount++
			}
			if ch == '0' && digits == 0 {
				continue // strip leading zeros
			}
			if digits < maxDigits {
				b.WriteByte(ch)
			} else {
				hadExtra = true
			}
			digits++
		} else if ch == decimalPoint && !sawPoint {
			sawPoint = true
		} else {
			break
		}
	}
	hadExponentLetter := false
	switch next {
	case 'e', 'E', 'd', 'D', 'q', 'Q':
		if got {
			hadExponentLetter = true
			next, got = s.NextInField(remaining)
			for got && next == ' ' {
				next, got = s.NextInField(remaining)
			}
		}
	}
	// The P scale factor shifts values read without an explicit exponent.
	exponent = -edit.Modes.Scale
	if got && (next == '-' || next == '+' || (hadExponentLetter && next >= '0' && next <= '9')) {
		negExpo := next == '-'
		if negExpo || next == '+' {
			next, got = s.NextInField(remaining)
		}
		exponent = 0
		for ; got && next >= '0' && next <= '9'; next, got = s.NextInField(remaining) {
			exponent = 10*exponent + int(next-'0')
		}
		if negExpo {
			exponent = -exponent
		}
	}
	if sawPoint {
		exponent -= fracCount
	} else {
		// With no point in the field, the descriptor's d counts the
		// digits to the right of the assumed point.
		exponent -= edit.Digits
	}
	// The synthetic string carries its digits entirely to the right of
	// the point, so restore their integer magnitude; dropped extra
	// digits count here too.
	exponent += digits
	if got && next != ' ' {
		s.handler.SignalErrorf(IostatBadInputField,
			"Bad character '%c' after REAL input field", next)
		return "", 0, false, false
	}
	drainField(s, remaining)
	return b.String(), exponent, !s.handler.InError(), hadExtra
}

// drainField consumes the rest of a fixed-width field, rejecting trailing
// non-blank characters.
func drainField(s *IoStatementState, remaining *int) {
	for {
		next, got := s.NextInField(remaining)
		if !got {
			return
		}
		if next != ' ' {
			s.handler.SignalErrorf(IostatBadInputField,
				"Bad character '%c' after input field", next)
			return
		}
	}
}

// EditRealInput converts the next field to a binary real of the kind
// selected by len(n) (4 or 8 bytes), storing the little-endian bit
// pattern. A field with more significant digits than the target precision
// holds is converted inexactly, never silently truncated to a different
// value.
func EditRealInput(s *IoStatementState, edit DataEdit, n []byte) bool {
	var precision uint
	switch len(n) {
	case 4:
		precision = 24
	case 8:
		precision = 53
	default:
		s.handler.Crash("EditRealInput: bad REAL kind %d", len(n))
		return false
	}
	maxDigits := decimal.MaxDecimalConversionDigits(precision)
	text, exponent, ok, hadExtra := scanRealInput(s, edit, maxDigits)
	if !ok {
		return false
	}
	negative := strings.HasPrefix(text, "-")
	letters := strings.TrimPrefix(text, "-")
	if letters != "" && letters[0] != '.' {
		return storeRealSpecial(s, letters, negative, n)
	}
	if text == "" || text == "." {
		text = "0"
	} else if text == "-" || text == "-." {
		text = "-0"
	} else if exponent != 0 {
		text = fmt.Sprintf("%se%d", text, exponent)
	}
	converted, err := decimal.ConvertToBinary(text, precision, roundingToDecimal(edit.Modes.Round))
	if err != nil {
		s.handler.SignalErrorf(IostatBadInputField, "%s", err.Error())
		return false
	}
	if hadExtra {
		converted.Flags |= decimal.Inexact
	}
	switch len(n) {
	case 4:
		v, _ := converted.Float32()
		binary.LittleEndian.PutUint32(n, math.Float32bits(v))
	case 8:
		v, _ := converted.Float64()
		binary.LittleEndian.PutUint64(n, math.Float64bits(v))
	}
	return true
}

func storeRealSpecial(s *IoStatementState, letters string, negative bool, n []byte) bool {
	var v float64
	switch letters {
	case "NAN":
		v = math.NaN()
	case "INF", "INFINITY":
		v = math.Inf(1)
		if negative {
			v = math.Inf(-1)
		}
	default:
		s.handler.SignalErrorf(IostatBadInputField,
			"Unrecognized REAL input field %q", letters)
		return false
	}
	switch len(n) {
	case 4:
		binary.LittleEndian.PutUint32(n, math.Float32bits(float32(v)))
	case 8:
		binary.LittleEndian.PutUint64(n, math.Float64bits(v))
	}
	return true
}

func roundingToDecimal(r RoundingMode) decimal.Rounding {
	switch r {
	case RoundToZero:
		return decimal.RoundToZero
	case RoundUp:
		return decimal.RoundUp
	case RoundDown:
		return decimal.RoundDown
	case RoundCompatible:
		return decimal.RoundTiesAwayFromZero
	default:
		return decimal.RoundNearest
	}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func upper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - 'a' + 'A'
	}
	return ch
}
