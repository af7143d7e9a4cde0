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

// Package router computes next-hop routing decisions (greedy, exact
// and annealing) over a connection table, and provides the shortcut
// sampler and network-size estimator that feed the table's long-range
// and near-neighbor classes.
package router

import (
	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/table"
)

// Mode selects the routing algorithm NextHop applies.
type Mode int

// Routing modes.
const (
	Greedy Mode = iota
	Exact
	Annealing
)

// MaxTTL bounds the number of hops a packet may travel.
const MaxTTL = 30

// MaxUphillHops bounds the number of hops annealing may spend moving
// away from the destination before it must make forward progress.
const MaxUphillHops = 1

// Packet is the routing-relevant header of an in-flight message.
type Packet struct {
	Src  *address.Address
	Dst  *address.Address
	Mode Mode
	Hops int
}

// NextHop decides where to forward pkt (or whether to deliver it
// locally), given the previous hop's address (nil at the source) and
// the local connection table.
func NextHop(local *address.Address, tbl *table.Table, from *address.Address, pkt *Packet) (next *address.Address, deliverLocally bool) {
	if pkt.Hops > MaxTTL {
		return nil, false
	}
	if local.Equals(pkt.Dst) {
		return nil, true
	}
	if idx := tbl.IndexOf(pkt.Dst); idx >= 0 {
		return pkt.Dst, false
	}
	if tbl.Size() == 0 {
		return nil, true
	}

	if pkt.Mode == Greedy {
		return nextHopGreedy(local, tbl, from, pkt)
	}
	next, deliverLocally = nextHopAnnealing(local, tbl, from, pkt)
	if pkt.Mode == Exact {
		// Exact mode terminates only at the exact destination; the
		// early local==dst check above already covers that case, so
		// anything reaching here is a forwarding decision, never a
		// local delivery.
		deliverLocally = false
	}
	return next, deliverLocally
}

// neighborsOf returns the ring-adjacent (left, right) connections
// that would flank addr if it were inserted into tbl.
func neighborsOf(tbl *table.Table, addr *address.Address) (left, right *table.Connection) {
	insPoint := ^tbl.IndexOf(addr)
	right = tbl.GetByIndex(insPoint - 1)
	left = tbl.GetByIndex(insPoint)
	return
}

func nextHopGreedy(local *address.Address, tbl *table.Table, from *address.Address, pkt *Packet) (*address.Address, bool) {
	left, right := neighborsOf(tbl, pkt.Dst)
	closest, _ := closerOf(pkt.Dst, left, right)

	ourDist := local.AbsDistanceTo(pkt.Dst)
	closestDist := pkt.Dst.AbsDistanceTo(closest.Address)
	if closestDist.Cmp(ourDist) < 0 && !closest.Address.Equals(from) {
		return closest.Address, false
	}
	return nil, true
}

func nextHopAnnealing(local *address.Address, tbl *table.Table, from *address.Address, pkt *Packet) (*address.Address, bool) {
	left, right := neighborsOf(tbl, pkt.Dst)
	closest, other := closerOf(pkt.Dst, left, right)

	dstLeft := tbl.GetLeftStructuredNeighborOf(pkt.Dst)
	localLeft := tbl.GetLeftStructuredNeighborOf(local)
	if dstLeft != nil && localLeft != nil && dstLeft.Address.Equals(localLeft.Address) {
		next := right.Address
		if !local.IsLeftOf(pkt.Dst) {
			next = left.Address
		}
		return next, true
	}

	if pkt.Hops == 0 {
		return closest.Address, false
	}

	if pkt.Hops <= MaxUphillHops {
		if !closest.Address.Equals(from) {
			return closest.Address, false
		}
		second := secondBeyond(tbl, closest, left, right)
		cand := other
		if second != nil {
			if pkt.Dst.AbsDistanceTo(second.Address).Cmp(pkt.Dst.AbsDistanceTo(other.Address)) < 0 {
				cand = second
			}
		}
		if cand == nil || cand.Address.Equals(from) {
			return nil, false
		}
		return cand.Address, false
	}

	// The packet has turned the corner: enforce strict progress.
	prevDist := pkt.Dst.AbsDistanceTo(from)
	closestDist := pkt.Dst.AbsDistanceTo(closest.Address)
	if closestDist.Cmp(prevDist) < 0 {
		return closest.Address, false
	}
	return nil, false
}

// closerOf returns (closest, other) ordered by absolute ring distance
// to dst, breaking the left/right tie towards left.
func closerOf(dst *address.Address, left, right *table.Connection) (closest, other *table.Connection) {
	lDist := dst.AbsDistanceTo(left.Address)
	rDist := dst.AbsDistanceTo(right.Address)
	if lDist.Cmp(rDist) <= 0 {
		return left, right
	}
	return right, left
}

// secondBeyond returns the connection one ring position beyond
// closest, on whichever side (left or right of dst) closest came
// from.
func secondBeyond(tbl *table.Table, closest, left, right *table.Connection) *table.Connection {
	if closest == left {
		idx := tbl.IndexOf(left.Address)
		if idx < 0 {
			return nil
		}
		return tbl.GetByIndex(idx + 1)
	}
	idx := tbl.IndexOf(right.Address)
	if idx < 0 {
		return nil
	}
	return tbl.GetByIndex(idx - 1)
}
