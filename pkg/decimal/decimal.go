// Package decimal converts between decimal character representations and
// binary floating-point values at a selectable binary precision. The I/O
// runtime hands it normalized fields ("-.31416e1") and stores the result
// into the data item's kind.
package decimal

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Rounding selects the rule applied when a value cannot be represented
// exactly at the target precision.
type Rounding int

const (
	RoundNearest Rounding = iota // round to nearest, ties to even
	RoundToZero
	RoundUp
	RoundDown
	RoundTiesAwayFromZero
)

func (r Rounding) mode() big.RoundingMode {
	switch r {
	case RoundToZero:
		return big.ToZero
	case RoundUp:
		return big.ToPositiveInf
	case RoundDown:
		return big.ToNegativeInf
	case RoundTiesAwayFromZero:
		return big.ToNearestAway
	default:
		return big.ToNearestEven
	}
}

// ConversionResultFlags report what happened during a conversion.
type ConversionResultFlags int

const (
	Exact    ConversionResultFlags = 0
	Inexact  ConversionResultFlags = 1 << iota
	Overflow
	Invalid
)

// The supported binary precisions are the mantissa bit counts of the
// IEEE-754 interchange formats (plus x87's 64).
var validPrecisions = map[uint]bool{8: true, 11: true, 24: true, 53: true, 64: true, 112: true}

// MaxDecimalConversionDigits is the number of significant decimal digits
// that can matter when converting to the given binary precision; further
// digits only make the result inexact.
func MaxDecimalConversionDigits(binaryPrecision uint) int {
	switch binaryPrecision {
	case 8:
		return 4
	case 11:
		return 5
	case 24:
		return 9
	case 53:
		return 17
	case 64:
		return 21
	case 112:
		return 36
	default:
		return 17
	}
}

// ConversionToBinaryResult is a converted value plus its flags.
type ConversionToBinaryResult struct {
	Binary *big.Float
	Flags  ConversionResultFlags
}

// ConvertToBinary parses a decimal string (optional sign, digits with an
// optional point, optional e/E exponent) at the requested binary
// precision.
func ConvertToBinary(text string, binaryPrecision uint, round Rounding) (ConversionToBinaryResult, error) {
	if !validPrecisions[binaryPrecision] {
		return ConversionToBinaryResult{Flags: Invalid},
			fmt.Errorf("decimal: unsupported binary precision %d", binaryPrecision)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "0"
	}
	f := new(big.Float).SetPrec(binaryPrecision).SetMode(round.mode())
	if _, ok := f.SetString(text); !ok {
		return ConversionToBinaryResult{Flags: Invalid},
			fmt.Errorf("decimal: malformed decimal value %q", text)
	}
	var flags ConversionResultFlags
	// Reparse at higher precision to detect rounding.
	check := new(big.Float).SetPrec(binaryPrecision + 64)
	if _, ok := check.SetString(text); ok && f.Cmp(check) != 0 {
		flags |= Inexact
	}
	return ConversionToBinaryResult{Binary: f, Flags: flags}, nil
}

// Float64 stores the result as a 64-bit value, raising Overflow when the
// magnitude leaves the format.
func (r ConversionToBinaryResult) Float64() (float64, ConversionResultFlags) {
	flags := r.Flags
	if r.Binary == nil {
		return 0, flags | Invalid
	}
	v, acc := r.Binary.Float64()
	if acc != big.Exact {
		flags |= Inexact
	}
	if math.IsInf(v, 0) && !r.Binary.IsInf() {
		flags |= Overflow
	}
	return v, flags
}

// Float32 stores the result as a 32-bit value.
func (r ConversionToBinaryResult) Float32() (float32, ConversionResultFlags) {
	flags := r.Flags
	if r.Binary == nil {
		return 0, flags | Invalid
	}
	v, acc := r.Binary.Float32()
	if acc != big.Exact {
		flags |= Inexact
	}
	if math.IsInf(float64(v), 0) && !r.Binary.IsInf() {
		flags |= Overflow
	}
	return v, flags
}
