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

// Package mathutil holds small, allocation-free integer helpers; the
// modular ones back pathwalker's real-step recurrence. It is adapted from the
// teacher's erigon-lib/common/math integer helpers (SafeAdd/SafeMul
// via math/bits, CeilDiv), generalized here to the modular arithmetic
// the coordinate space needs instead of overflow-checked arithmetic.
package mathutil

import "math/bits"

// CeilDiv returns ceil(x/y), or 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// SafeMul returns x*y and reports whether the multiplication
// overflowed a uint64.
func SafeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// AddMod returns (a+b) mod m without risking uint64 overflow,
// assuming a < m and b < m.
func AddMod(a, b, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	a %= m
	b %= m
	if a >= m-b {
		return a - (m - b)
	}
	return a + b
}

// MulMod returns (a*b) mod m using double-and-add reduction so the
// product never needs to be materialized in a width wider than
// uint64. This trades a per-call O(64) loop for avoiding both
// overflow and any heap allocation — appropriate for the walker's
// real-step recurrence, which calls MulMod twice per Step and must
// stay allocation-free per the coordinate space's design notes.
func MulMod(a, b, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	a %= m
	b %= m
	var result uint64
	for b > 0 {
		if b&1 == 1 {
			result = AddMod(result, a, m)
		}
		a = AddMod(a, a, m)
		b >>= 1
	}
	return result
}

// SubMod returns (a-b) mod m, handling the case where b > a by
// wrapping through m exactly once (both a and b are assumed < m).
func SubMod(a, b, m uint64) uint64 {
	if m == 0 {
		return 0
	}
	a %= m
	b %= m
	if a >= b {
		return a - b
	}
	return m - (b - a)
}
