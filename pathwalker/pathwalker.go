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

// Package pathwalker produces the deterministic coordinate trajectory
// a conversation is placed along: a hash-seeded quadratic recurrence
// over the coordinate space (the "real" step), paired with a second
// xor-mixed stream (the "imaginary" step) that tags each visited
// coordinate with a disambiguating universe number.
//
// Walker is a value, not an object: it holds three integers and
// mutates only itself on Step. It owns no persistent state — it is a
// pure function of (start, key) plus the number of times Step has been
// called.
package pathwalker

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/internal/mathutil"
)

const (
	// m is the modulus of the imaginary register, 2**32.
	m = uint64(1) << 32
	// a is the golden-ratio mix multiplier used in the imaginary step.
	a = uint64(0x9E3779B9)
	// mask32 truncates a value to 32 bits.
	mask32 = uint64(0xFFFFFFFF)
)

// Walker holds the minimal state needed to continue a walk: the
// current coordinate (as a base-10 integer mod coordinate.Size), the
// evolving 32-bit imaginary register, and the static per-key space
// offset X computed at seed time.
type Walker struct {
	coordDec uint64
	imag     uint32
	x        uint64
}

// New seeds a Walker from a starting coordinate and a key (the
// conversation ID). Seeding is deterministic: the same (start, key)
// always yields the same Walker state and therefore the same future
// sequence of Step outputs.
func New(start coordinate.Coordinate, key string) Walker {
	coordDec := start.ToBase10()
	return Walker{
		coordDec: coordDec,
		imag:     seedImag(start, key),
		x:        seedX(coordDec, key),
	}
}

// seedImag computes imag0 = low 64 bits of BLAKE2b-64(start.Format() ||
// "|" || key) mod M.
func seedImag(start coordinate.Coordinate, key string) uint32 {
	h := blake2b64(start.Format() + "|" + key)
	return uint32(h % m)
}

// seedX computes X = low 64 bits of BLAKE2b-64(decimal(coordDec) ||
// "|" || key) mod coordinate.Size.
func seedX(coordDec uint64, key string) uint64 {
	h := blake2b64(decimalString(coordDec) + "|" + key)
	return h % coordinate.Size
}

// blake2b64 hashes s with BLAKE2b to an 8-byte digest and interprets
// it as a big-endian uint64 — the "low 64 bits" the spec describes,
// taken from an 8-byte (64-bit) BLAKE2b output.
func blake2b64(s string) uint64 {
	h, err := blake2b.New(8, nil)
	if err != nil {
		// blake2b.New only errors on an invalid key or out-of-range
		// size; 8 bytes and a nil key are always valid.
		panic(err)
	}
	_, _ = h.Write([]byte(s))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum)
}

// decimalString renders n as a plain base-10 string, matching the
// Python source's f"{coord_dec}|{key}" seeding input.
func decimalString(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Coordinate returns the walker's current coordinate.
func (w Walker) Coordinate() coordinate.Coordinate {
	return coordinate.FromBase10(w.coordDec)
}

// Imag returns the walker's current imaginary register, which doubles
// as the universe tag for whatever is written at the current
// coordinate.
func (w Walker) Imag() uint32 {
	return w.imag
}

// coordConst computes C(d0..d5) = (13*d0 + 17*d1 + 19*d2 + 23*d3 +
// 29*d4 + 31*d5) & 0xFFFFFFFF.
func coordConst(c coordinate.Coordinate) uint32 {
	weights := [coordinate.Digits]uint64{13, 17, 19, 23, 29, 31}
	var sum uint64
	for i, wgt := range weights {
		sum += uint64(c.Digit(i)) * wgt
	}
	return uint32(sum & mask32)
}

// Step advances the walker by one and returns the new coordinate. The
// real step is (coordDec^2 - imag^2 + X) mod Size; the imaginary step
// xor-mixes the previous and current coordinate constants into the
// register and then runs it through the golden-ratio multiplier.
//
// Step never fails. It can be called forever; callers bound iteration
// by conversation length or by a known end coordinate (retrace).
func (w *Walker) Step() coordinate.Coordinate {
	prev := coordinate.FromBase10(w.coordDec)

	w.coordDec = realStep(w.coordDec, uint64(w.imag), w.x)
	curr := coordinate.FromBase10(w.coordDec)

	mix := uint64(w.imag) ^ uint64(coordConst(prev)) ^ uint64(coordConst(curr))
	w.imag = uint32((mix*a + 1) & mask32)

	return curr
}

// realStep computes (real^2 - imag^2 + x) mod coordinate.Size. Size is
// just over 2**35, so real*real would overflow a uint64; mathutil.MulMod
// reduces modulo Size without ever materializing the full product,
// keeping this allocation-free per the coordinate space's design notes.
func realStep(real, imag, x uint64) uint64 {
	r := real % coordinate.Size
	i := imag % coordinate.Size
	rr := mathutil.MulMod(r, r, coordinate.Size)
	ii := mathutil.MulMod(i, i, coordinate.Size)
	diff := mathutil.SubMod(rr, ii, coordinate.Size)
	return mathutil.AddMod(diff, x%coordinate.Size, coordinate.Size)
}
