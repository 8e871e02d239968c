package io

import (
	"encoding/binary"
	"math/bits"
)

// UInt128 is the unsigned 128-bit accumulator for integer input of any
// supported width, built from two 64-bit halves. Multiply-by-small-base
// and add is the only arithmetic the codec needs; negation covers signed
// storage.
type UInt128 struct {
	lo, hi uint64
}

// Low returns the low 64 bits.
func (u UInt128) Low() uint64 { return u.lo }

// High returns the high 64 bits.
func (u UInt128) High() uint64 { return u.hi }

// MulAdd returns u*base + digit.
func (u UInt128) MulAdd(base, digit uint64) UInt128 {
	hi, lo := bits.Mul64(u.lo, base)
	hi += u.hi * base
	lo, carry := bits.Add64(lo, digit, 0)
	return UInt128{lo: lo, hi: hi + carry}
}

// Negate returns the two's complement.
func (u UInt128) Negate() UInt128 {
	lo, borrow := bits.Sub64(0, u.lo, 0)
	hi, _ := bits.Sub64(0, u.hi, borrow)
	return UInt128{lo: lo, hi: hi}
}

// StoreLittleEndian truncates the value into dest, which must be 1, 2, 4,
// 8, or 16 bytes long.
func (u UInt128) StoreLittleEndian(dest []byte) {
	var full [16]byte
	binary.LittleEndian.PutUint64(full[:8], u.lo)
	binary.LittleEndian.PutUint64(full[8:], u.hi)
	copy(dest, full[:len(dest)])
}
