// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package address implements the 160-bit ring identifier used to place
// nodes and keys on the overlay and the signed-distance arithmetic the
// router and connection table are built on.
package address

import (
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/bfix/ringnet/util"
)

// NumBits is the width of the address ring.
const NumBits = 160

// NumBytes is the byte length of a marshalled address.
const NumBytes = NumBits / 8

var (
	// Full is the modulus of the ring: 2^160.
	Full = new(big.Int).Lsh(big.NewInt(1), NumBits)
	// half is FULL/2, the antipode threshold used by DistanceTo.
	half = new(big.Int).Rsh(Full, 1)
)

// ErrOddAddress signals that a byte slice encodes an address with its
// low-order bit set, violating the parity invariant enforced on every
// constructor.
var ErrOddAddress = errors.New("address: low-order bit must be zero")

// Address is a 160-bit unsigned integer on the overlay ring. The
// low-order bit is always clear; callers must never construct one by
// any means other than the functions in this package.
type Address struct {
	val *big.Int
}

// clamp folds v into [0,Full) and clears its low-order bit.
func clamp(v *big.Int) *big.Int {
	r := new(big.Int).Mod(v, Full)
	if r.Sign() < 0 {
		r.Add(r, Full)
	}
	r.SetBit(r, 0, 0)
	return r
}

// New builds an address from an arbitrary big integer, reducing it
// modulo Full and clearing the parity bit.
func New(v *big.Int) *Address {
	return &Address{val: clamp(v)}
}

// Random returns a uniformly distributed address drawn from a
// cryptographic RNG, per the split between a non-cryptographic PRNG
// for edge-id allocation and a crypto RNG for address generation.
func Random() *Address {
	buf := util.NewRndArray(NumBytes)
	return New(new(big.Int).SetBytes(buf))
}

// FromBytes parses a big-endian NumBytes-long encoding of an address.
// Returns ErrOddAddress if the parity invariant is violated.
func FromBytes(b []byte) (*Address, error) {
	v := new(big.Int).SetBytes(b)
	if v.Bit(0) != 0 {
		return nil, ErrOddAddress
	}
	return &Address{val: clamp(v)}, nil
}

// Bytes returns the big-endian, NumBytes-long encoding of a.
func (a *Address) Bytes() []byte {
	buf := make([]byte, NumBytes)
	util.ToBuffer(a.val, buf, NumBytes)
	return buf
}

// String returns a hex representation of the address.
func (a *Address) String() string {
	return hex.EncodeToString(a.Bytes())
}

// Base32 returns a Crockford base32 encoding of the address, for
// contexts (config files, command-line arguments) where a shorter,
// case-insensitive token is preferable to hex.
func (a *Address) Base32() string {
	return util.EncodeBinaryToString(a.Bytes())
}

// FromBase32 parses an address previously rendered by Base32.
func FromBase32(s string) (*Address, error) {
	b, err := util.DecodeStringToBinary(s, NumBytes)
	if err != nil {
		return nil, err
	}
	return FromBytes(b)
}

// Equals reports whether two addresses denote the same ring point.
func (a *Address) Equals(b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.val.Cmp(b.val) == 0
}

// Add returns (a + d) mod Full, d a possibly-negative offset.
func (a *Address) Add(d *big.Int) *Address {
	return New(new(big.Int).Add(a.val, d))
}

// DistanceTo returns the signed minimum-magnitude ring offset such
// that a.Add(dist) equals b, i.e. the value in (-Full/2, Full/2] with
// a + dist ≡ b (mod Full). Exact antipodes resolve to the positive
// direction.
func (a *Address) DistanceTo(b *Address) *big.Int {
	d := new(big.Int).Sub(b.val, a.val)
	d.Mod(d, Full)
	if d.Sign() < 0 {
		d.Add(d, Full)
	}
	// d is now in [0, Full); fold the upper half to negative offsets,
	// leaving the exact antipode (d == half) positive.
	if d.Cmp(half) > 0 {
		d.Sub(d, Full)
	}
	return d
}

// AbsDistanceTo returns the unsigned magnitude of DistanceTo.
func (a *Address) AbsDistanceTo(b *Address) *big.Int {
	d := a.DistanceTo(b)
	return new(big.Int).Abs(d)
}

// IsLeftOf reports whether b lies clockwise (in the positive
// direction) from a, consistent with the sign of DistanceTo.
func (a *Address) IsLeftOf(b *Address) bool {
	return a.DistanceTo(b).Sign() > 0
}

// Cmp orders two addresses by their ring value (not by distance); it
// is used to keep per-class connection lists sorted.
func (a *Address) Cmp(b *Address) int {
	return a.val.Cmp(b.val)
}
