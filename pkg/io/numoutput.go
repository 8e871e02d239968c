package io

import (
	"math"
	"strconv"
	"strings"
)

// emitField writes a converted value into its output field: right-justified
// and blank-padded when a width is given, star-filled when the value cannot
// fit, and as-is for width-free editing.
func emitField(s *IoStatementState, text string, width int) bool {
	if width <= 0 {
		return s.Emit([]byte(text))
	}
	if len(text) > width {
		return s.Emit([]byte(strings.Repeat("*", width)))
	}
	if pad := width - len(text); pad > 0 {
		if !s.Emit([]byte(strings.Repeat(" ", pad))) {
			return false
		}
	}
	return s.Emit([]byte(text))
}

// EditIntegerOutput converts a (sign-extended) integer value under an
// I, B, O, Z, or G edit descriptor. BOZ descriptors format the two's
// complement bit pattern and never emit a sign.
func EditIntegerOutput(s *IoStatementState, edit DataEdit, value int64) bool {
	var text string
	switch edit.Descriptor {
	case ListDirected, DescriptorG, DescriptorI:
		digits := strconv.FormatUint(uint64(absInt64(value)), 10)
		if edit.Digits > len(digits) { // Iw.m minimum digit count
			digits = strings.Repeat("0", edit.Digits-len(digits)) + digits
		}
		if value < 0 {
			text = "-" + digits
		} else {
			text = digits
		}
		if edit.IsListDirected() {
			text = " " + text
		}
	case DescriptorB:
		text = strconv.FormatUint(uint64(value), 2)
	case DescriptorO:
		text = strconv.FormatUint(uint64(value), 8)
	case DescriptorZ:
		text = strings.ToUpper(strconv.FormatUint(uint64(value), 16))
	default:
		s.handler.SignalErrorf(IostatErrorInFormat,
			"Data edit descriptor '%c' may not be used with an INTEGER data item", edit.Descriptor)
		return false
	}
	return emitField(s, text, edit.Width)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// EditRealOutput converts a real value under an F, E, D, G, or
// list-directed edit descriptor.
func EditRealOutput(s *IoStatementState, edit DataEdit, value float64) bool {
	switch edit.Descriptor {
	case DescriptorF:
		return editRealF(s, edit, value)
	case DescriptorE, DescriptorD:
		return editRealE(s, edit, value)
	case ListDirected, DescriptorG:
		return editRealG(s, edit, value)
	default:
		s.handler.SignalErrorf(IostatErrorInFormat,
			"Data edit descriptor '%c' may not be used with a REAL data item", edit.Descriptor)
		return false
	}
}

func realSpecialText(value float64, width int) (string, bool) {
	switch {
	case math.IsNaN(value):
		return "NaN", true
	case math.IsInf(value, 1):
		if width > 0 && width < 8 {
			return "Inf", true
		}
		return "Infinity", true
	case math.IsInf(value, -1):
		if width > 0 && width < 9 {
			return "-Inf", true
		}
		return "-Infinity", true
	}
	return "", false
}

func editRealF(s *IoStatementState, edit DataEdit, value float64) bool {
	if text, special := realSpecialText(value, edit.Width); special {
		return emitField(s, text, edit.Width)
	}
	if k := edit.Modes.Scale; k != 0 {
		value *= math.Pow(10, float64(k))
	}
	text := strconv.FormatFloat(value, 'f', edit.Digits, 64)
	if edit.Digits == 0 {
		text += "."
	}
	if edit.Width > 0 && len(text) == edit.Width+1 {
		// dropping an optional leading zero can save the field
		if strings.HasPrefix(text, "0.") {
			text = text[1:]
		} else if strings.HasPrefix(text, "-0.") {
			text = "-" + text[2:]
		}
	}
	return emitField(s, text, edit.Width)
}

// editRealE renders ±0.d…dE±ee, honoring the kP scale factor: a positive k
// moves k digits before the point, a negative k prefixes |k| zeros after it.
// Exponents beyond two digits drop the exponent letter.
func editRealE(s *IoStatementState, edit DataEdit, value float64) bool {
	if text, special := realSpecialText(value, edit.Width); special {
		return emitField(s, text, edit.Width)
	}
	k := edit.Modes.Scale
	significant := edit.Digits
	if k > 0 {
		significant = edit.Digits + 1
	} else {
		significant += k
	}
	if significant < 1 {
		s.handler.SignalErrorf(IostatErrorInFormat,
			"Scale factor %dP is out of range for E%d.%d output", k, edit.Width, edit.Digits)
		return false
	}
	var digits string
	var decExpo int
	if value == 0 {
		digits = strings.Repeat("0", significant)
		decExpo = 0
	} else {
		formatted := strconv.FormatFloat(value, 'e', significant-1, 64)
		mantissa, expoText, _ := strings.Cut(formatted, "e")
		parsed, _ := strconv.Atoi(expoText)
		digits = strings.ReplaceAll(mantissa, ".", "")
		decExpo = parsed + 1 - k
	}
	var b strings.Builder
	if strings.HasPrefix(digits, "-") {
		b.WriteByte('-')
		digits = digits[1:]
	}
	if k > 0 {
		b.WriteString(digits[:k])
		b.WriteByte('.')
		b.WriteString(digits[k:])
	} else {
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -k))
		b.WriteString(digits)
	}
	letter := byte('E')
	if edit.Descriptor == DescriptorD {
		letter = 'D'
	}
	expoSign := byte('+')
	expoMag := decExpo
	if expoMag < 0 {
		expoSign = '-'
		expoMag = -expoMag
	}
	if expoMag > 99 {
		b.WriteByte(expoSign)
		b.WriteString(strconv.Itoa(expoMag))
	} else {
		b.WriteByte(letter)
		b.WriteByte(expoSign)
		expoText := strconv.Itoa(expoMag)
		if len(expoText) < 2 {
			b.WriteByte('0')
		}
		b.WriteString(expoText)
	}
	return emitField(s, b.String(), edit.Width)
}

// editRealG chooses F editing with trailing blanks when the value fits the
// descriptor's digit budget, and E editing otherwise.
func editRealG(s *IoStatementState, edit DataEdit, value float64) bool {
	if edit.IsListDirected() {
		if !s.Emit([]byte{' '}) {
			return false
		}
		text := strconv.FormatFloat(value, 'g', -1, 64)
		return s.Emit([]byte(text))
	}
	if text, special := realSpecialText(value, edit.Width); special {
		return emitField(s, text, edit.Width)
	}
	mag := math.Abs(value)
	if value != 0 {
		// round to d significant digits before classifying
		rounded, _ := strconv.ParseFloat(strconv.FormatFloat(mag, 'e', edit.Digits-1, 64), 64)
		mag = rounded
	}
	if value == 0 || (mag >= 0.1 && mag < math.Pow(10, float64(edit.Digits))) {
		decExpo := 0
		if mag >= 1 {
			decExpo = int(math.Floor(math.Log10(mag))) + 1
		}
		fEdit := edit
		fEdit.Descriptor = DescriptorF
		fEdit.Width = edit.Width - 4
		fEdit.Digits = edit.Digits - decExpo
		fEdit.Modes.Scale = 0
		if !editRealF(s, fEdit, value) {
			return false
		}
		return s.Emit([]byte("    "))
	}
	eEdit := edit
	eEdit.Descriptor = DescriptorE
	return editRealE(s, eEdit, value)
}

// EditLogicalOutput emits T or F, right-justified.
func EditLogicalOutput(s *IoStatementState, edit DataEdit, truth bool) bool {
	text := "F"
	if truth {
		text = "T"
	}
	if edit.IsListDirected() {
		text = " " + text
	}
	return emitField(s, text, edit.Width)
}

// EditLogicalInput accepts an optional leading period and then T or F in
// either case, as in ".TRUE.", "t", or "F"; the rest of the field is
// ignored.
func EditLogicalInput(s *IoStatementState, edit DataEdit, truth *bool) bool {
	remaining := fieldWidth(s, edit)
	s.SkipSpaces(remaining)
	next, ok := s.NextInField(remaining)
	for ok && next == ' ' {
		next, ok = s.NextInField(remaining)
	}
	if ok && next == '.' {
		next, ok = s.NextInField(remaining)
	}
	if !ok {
		s.handler.SignalErrorf(IostatBadInputField, "Empty LOGICAL input field")
		return false
	}
	switch upper(next) {
	case 'T':
		*truth = true
	case 'F':
		*truth = false
	default:
		s.handler.SignalErrorf(IostatBadInputField,
			"Bad character '%c' in LOGICAL input field", next)
		return false
	}
	for ok {
		_, ok = s.NextInField(remaining)
	}
	return true
}

// EditCharacterOutput emits character data under an A descriptor:
// right-justified when the field is wider than the datum, truncated from
// the right when narrower.
func EditCharacterOutput(s *IoStatementState, edit DataEdit, x []byte) bool {
	if edit.Width <= 0 {
		return s.Emit(x)
	}
	if len(x) >= edit.Width {
		return s.Emit(x[:edit.Width])
	}
	if !s.Emit([]byte(strings.Repeat(" ", edit.Width-len(x)))) {
		return false
	}
	return s.Emit(x)
}

// EditCharacterInput fills x from an A-edited field, taking the rightmost
// len(x) characters of a wider field and blank-padding a narrower one.
func EditCharacterInput(s *IoStatementState, edit DataEdit, x []byte) bool {
	width := edit.Width
	if width <= 0 {
		width = len(x)
	}
	skip := 0
	if width > len(x) {
		skip = width - len(x)
	}
	at := 0
	remaining := width
	for remaining > 0 {
		next, ok := s.NextInField(&remaining)
		if !ok {
			break
		}
		if skip > 0 {
			skip--
			continue
		}
		if at < len(x) {
			x[at] = next
			at++
		}
	}
	for ; at < len(x); at++ {
		x[at] = ' '
	}
	return !s.handler.InError()
}
