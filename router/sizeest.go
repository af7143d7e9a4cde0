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
	"math/big"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/table"
)

// EstimateSize returns a density-based estimate of the network size
// from the Near connections of tbl, as seen from local.
func EstimateSize(local *address.Address, tbl *table.Table) *big.Int {
	near := tbl.GetConnections(table.Near)
	count := int64(len(near))
	if count < 2 {
		return big.NewInt(count + 1)
	}

	var least, greatest *big.Int
	for _, c := range near {
		d := local.AbsDistanceTo(c.Address)
		if least == nil || d.Cmp(least) < 0 {
			least = d
		}
		if greatest == nil || d.Cmp(greatest) > 0 {
			greatest = d
		}
	}
	if greatest.Cmp(least) <= 0 {
		return big.NewInt(count + 1)
	}

	width := new(big.Int).Sub(greatest, least)
	// N = Full / (width / count) = Full * count / width
	num := new(big.Int).Mul(address.Full, big.NewInt(count))
	n := new(big.Int).Quo(num, width)

	floor := big.NewInt(count + 1)
	if n.Cmp(floor) < 0 {
		return floor
	}
	return n
}
