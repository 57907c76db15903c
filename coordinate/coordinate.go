// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// latticearc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package coordinate implements the six-digit, radix-60 coordinate
// system used to address cells of the lattice, plus overflow
// accounting into "universes" when arithmetic carries past the top
// digit or borrows past the bottom one.
package coordinate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Digits is the width of a coordinate: six base-60 positions.
const Digits = 6

// Base is the radix of each digit.
const Base = 60

// Size is the total number of addressable cells in one universe: 60**6.
const Size uint64 = 46_656_000_000

// ErrInvalidCoordinate is returned by Parse when the input string is not
// exactly six whitespace-separated decimal integers in [0,59].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a 6-tuple of base-60 digits plus a signed overflow
// counter. Digits are stored least-significant first (digits[0] == d0);
// the canonical string form is most-significant first ("d5 d4 d3 d2 d1 d0").
//
// Coordinate is a small value type: copy it freely, there is no hidden
// mutable state and no heap allocation in the hot paths (Format/Parse
// operate on a fixed array).
type Coordinate struct {
	digits   [Digits]uint8
	universe int64
}

// Zero is the origin coordinate "0 0 0 0 0 0".
func Zero() Coordinate {
	return Coordinate{}
}

// Parse accepts exactly six whitespace-separated decimal integers, each
// in [0,59], most-significant digit first, and returns the Coordinate.
func Parse(s string) (Coordinate, error) {
	fields := strings.Fields(s)
	if len(fields) != Digits {
		return Coordinate{}, errors.Wrapf(ErrInvalidCoordinate, "expected %d space-separated digits, got %d in %q", Digits, len(fields), s)
	}
	var c Coordinate
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n >= Base {
			return Coordinate{}, errors.Wrapf(ErrInvalidCoordinate, "digit %q out of range [0,%d) in %q", f, Base, s)
		}
		// fields[0] is d5 (most significant); digits[5] holds d5.
		c.digits[Digits-1-i] = uint8(n)
	}
	return c, nil
}

// Format renders the coordinate most-significant digit first:
// "d5 d4 d3 d2 d1 d0".
func (c Coordinate) Format() string {
	var b strings.Builder
	for i := Digits - 1; i >= 0; i-- {
		if i != Digits-1 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(int(c.digits[i])))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (c Coordinate) String() string { return c.Format() }

// Digit returns the i-th digit, where i=0 is least significant (d0).
func (c Coordinate) Digit(i int) uint8 { return c.digits[i] }

// Universe returns the signed overflow counter U.
func (c Coordinate) Universe() int64 { return c.universe }

// ToBase10 computes sum(d_i * 60^i), a value in [0, Size).
func (c Coordinate) ToBase10() uint64 {
	var n uint64
	pow := uint64(1)
	for i := 0; i < Digits; i++ {
		n += uint64(c.digits[i]) * pow
		pow *= Base
	}
	return n
}

// FromBase10 reduces n mod Size, then fills digits least-significant
// first via repeated divmod by 60, zero-padding to six digits. The
// overflow counter starts at zero; FromBase10 never observes an
// out-of-range n, it only ever sees the reduced value.
func FromBase10(n uint64) Coordinate {
	n %= Size
	var c Coordinate
	for i := 0; i < Digits; i++ {
		c.digits[i] = uint8(n % Base)
		n /= Base
	}
	return c
}

// Increment advances the coordinate by one, rippling carry through the
// digits. Overflow past the top digit increments the universe counter;
// wrap at any other digit leaves it unchanged.
func (c Coordinate) Increment() Coordinate { return c.delta(1) }

// Decrement steps the coordinate back by one, with the mirror-image
// borrow behavior of Increment.
func (c Coordinate) Decrement() Coordinate { return c.delta(-1) }

func (c Coordinate) delta(d int) Coordinate {
	out := c
	for i := 0; i < Digits; i++ {
		v := int(out.digits[i]) + d
		switch {
		case d > 0 && v == Base:
			out.digits[i] = 0
			if i == Digits-1 {
				out.universe++
			}
			continue
		case d < 0 && v == -1:
			out.digits[i] = Base - 1
			if i == Digits-1 {
				out.universe--
			}
			continue
		default:
			out.digits[i] = uint8(v)
			return out
		}
	}
	return out
}

// Distance returns the 6-digit representation of (to.ToBase10() -
// c.ToBase10()) mod Size.
func (c Coordinate) Distance(to Coordinate) Coordinate {
	diff := (to.ToBase10() + Size - c.ToBase10()%Size) % Size
	return FromBase10(diff)
}

// Equal reports whether two coordinates address the same cell,
// ignoring the universe counter (which is a bookkeeping artifact of
// how the value was reached, not part of cell identity).
func (c Coordinate) Equal(other Coordinate) bool {
	return c.digits == other.digits
}

// ValidateDigits returns an error if any digit lies outside [0, Base),
// the invariant every increment/decrement/from-base-10 path must
// preserve (spec "walk closure" property).
func (c Coordinate) ValidateDigits() error {
	for i, d := range c.digits {
		if d >= Base {
			return errors.Wrapf(ErrInvalidCoordinate, "digit %d (%d) out of range [0,%d)", i, d, Base)
		}
	}
	return nil
}

// GoString supports %#v debug formatting with the base-10 value shown
// alongside the canonical string, which is handy when diffing walker
// traces in tests.
func (c Coordinate) GoString() string {
	return fmt.Sprintf("coordinate.Coordinate{%q, base10=%d, universe=%d}", c.Format(), c.ToBase10(), c.universe)
}
