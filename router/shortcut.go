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

package router

import (
	"math"
	"math/big"
	mrand "math/rand"

	"github.com/bfix/ringnet/address"
)

// SampleShortcut draws a long-range shortcut target from local
// following the 1/d harmonic (Kleinberg) distribution, using the
// current network-size estimate n. The exponent is split into integer
// and fractional parts, and the distance 2^exI * 2^exF is computed as a
// big.Float and truncated toward zero when converted to an integer.
//
// Unlike address generation (which must use a cryptographic source,
// see address.Random), the sampler's draws are not security
// sensitive: they only steer which long-range link gets formed, so a
// plain math/rand source is used here.
func SampleShortcut(local *address.Address, n int64) *address.Address {
	if n < 2 {
		n = 2
	}
	p := mrand.Float64()
	log2N := math.Log2(float64(n))
	ex := float64(address.NumBits) - (1-p)*log2N

	exI := int(ex) // truncation toward zero
	exF := ex - float64(exI)
	if exI < 0 {
		exI = 0
	}
	if exI >= address.NumBits {
		exI = address.NumBits - 1
	}

	base := new(big.Int).Lsh(big.NewInt(1), uint(exI))
	frac := math.Pow(2, exF)

	prec := uint(address.NumBits + 64)
	dFloat := new(big.Float).SetPrec(prec).Mul(
		new(big.Float).SetPrec(prec).SetInt(base),
		new(big.Float).SetPrec(prec).SetFloat64(frac),
	)
	d, _ := dFloat.Int(nil) // Float.Int always truncates toward zero

	if mrand.Intn(2) == 0 {
		d.Neg(d)
	}
	return local.Add(d)
}
