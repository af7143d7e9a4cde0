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

// Package table implements the Connection Table: a sorted set of
// neighbor addresses per connection class, plus a global sorted view,
// with nearest-to-X and left/right structured-neighbor queries. The
// per-class sorted-list and closest-distance comparison idiom is
// carried over from the teacher's DHT routing table bucket design,
// generalized from Kademlia XOR-distance buckets to a Chord-style
// sorted ring.
package table

import (
	"sort"
	"sync"

	gmath "github.com/bfix/gospel/math"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/edge"
	"github.com/bfix/ringnet/ta"
)

// Class identifies a neighbor's connection role.
type Class int

// Connection classes.
const (
	Near Class = iota
	Shortcut
	Leaf
)

var classNames = map[Class]string{Near: "near", Shortcut: "shortcut", Leaf: "leaf"}

func (c Class) String() string { return classNames[c] }

// Connection relates a neighbor's ring address to its transport
// address, connection class and associated edge.
type Connection struct {
	Address *address.Address
	TA      *ta.TransportAddress
	Class   Class
	Edge    *edge.Edge

	// StatusEndpoint is the peer's "host:port" status-RPC HTTP
	// endpoint, learned from the address-announcement handshake
	// (node.awaitPeerAddress). Empty if the peer never advertised one
	// (e.g. it predates the handshake extension, or its status server
	// is disabled). This is deliberately NOT TA: TA is the overlay UDP
	// endpoint the edge is multiplexed over, which an HTTP client
	// cannot dial.
	StatusEndpoint string
}

// EventFunc is invoked after a connection or disconnection event has
// already become visible to new readers of the table.
type EventFunc func(c *Connection)

// Table is the connection table: one sorted list per class plus a
// sorted global view across all classes. All mutations are serialized
// by mtx; readers take a snapshot copy so they are never blocked for
// long and never observe a partially-applied mutation.
type Table struct {
	mtx    sync.RWMutex
	local  *address.Address
	byCls  map[Class][]*Connection
	global []*Connection

	onConnect    []EventFunc
	onDisconnect []EventFunc
}

// New creates an empty connection table for the given local address.
func New(local *address.Address) *Table {
	return &Table{
		local: local,
		byCls: map[Class][]*Connection{
			Near:     {},
			Shortcut: {},
			Leaf:     {},
		},
	}
}

// OnConnect registers a callback fired after every successful Add.
func (t *Table) OnConnect(f EventFunc) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.onConnect = append(t.onConnect, f)
}

// OnDisconnect registers a callback fired after every successful Remove.
func (t *Table) OnDisconnect(f EventFunc) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.onDisconnect = append(t.onDisconnect, f)
}

// insertSorted inserts c into a slice kept sorted by ring address,
// returning the updated slice and whether the insertion happened
// (false if an equal address was already present).
func insertSorted(list []*Connection, c *Connection) ([]*Connection, bool) {
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Address.Cmp(c.Address) >= 0
	})
	if i < len(list) && list[i].Address.Cmp(c.Address) == 0 {
		return list, false
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = c
	return list, true
}

// removeAt deletes the element at index i and returns the new slice.
func removeAt(list []*Connection, i int) []*Connection {
	return append(list[:i], list[i+1:]...)
}

// Add inserts a new connection, preserving sorted order in both its
// class list and the global view. Returns false if the address is
// already present in that class.
func (t *Table) Add(c *Connection) bool {
	t.mtx.Lock()
	cls, ok1 := insertSorted(t.byCls[c.Class], c)
	if !ok1 {
		t.mtx.Unlock()
		return false
	}
	t.byCls[c.Class] = cls
	glob, _ := insertSorted(t.global, c)
	t.global = glob
	handlers := append([]EventFunc(nil), t.onConnect...)
	t.mtx.Unlock()

	for _, f := range handlers {
		f(c)
	}
	return true
}

// Remove deletes any connection matching addr from all class and
// global indices atomically from readers' perspective.
func (t *Table) Remove(addr *address.Address) bool {
	t.mtx.Lock()
	i := sort.Search(len(t.global), func(i int) bool {
		return t.global[i].Address.Cmp(addr) >= 0
	})
	if i >= len(t.global) || t.global[i].Address.Cmp(addr) != 0 {
		t.mtx.Unlock()
		return false
	}
	c := t.global[i]
	t.global = removeAt(t.global, i)

	for k, cls := range t.byCls {
		j := sort.Search(len(cls), func(j int) bool {
			return cls[j].Address.Cmp(addr) >= 0
		})
		if j < len(cls) && cls[j].Address.Cmp(addr) == 0 {
			t.byCls[k] = removeAt(cls, j)
		}
	}
	handlers := append([]EventFunc(nil), t.onDisconnect...)
	t.mtx.Unlock()

	for _, f := range handlers {
		f(c)
	}
	return true
}

// GetByIndex returns the global-view connection at index i, applying
// Python-style modular wrap for negative or out-of-range indices. Nil
// only if the table is empty.
func (t *Table) GetByIndex(i int) *Connection {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	n := len(t.global)
	if n == 0 {
		return nil
	}
	idx := ((i % n) + n) % n
	return t.global[idx]
}

// IndexOf returns the nonnegative position of addr in the global view
// if present, or the bitwise complement of its insertion point if
// absent (the classical binary-search convention).
func (t *Table) IndexOf(addr *address.Address) int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	i := sort.Search(len(t.global), func(i int) bool {
		return t.global[i].Address.Cmp(addr) >= 0
	})
	if i < len(t.global) && t.global[i].Address.Cmp(addr) == 0 {
		return i
	}
	return ^i
}

// Size returns the number of connections across all classes.
func (t *Table) Size() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return len(t.global)
}

// GetConnections returns a snapshot copy of a class's connection list.
func (t *Table) GetConnections(cls Class) []*Connection {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	src := t.byCls[cls]
	out := make([]*Connection, len(src))
	copy(out, src)
	return out
}

// nearStructured returns a sorted snapshot of the Near-class list,
// used by the left/right structured-neighbor queries and the size
// estimator.
func (t *Table) nearStructured() []*Connection {
	return t.GetConnections(Near)
}

// GetLeftStructuredNeighborOf returns the Near-class neighbor
// immediately to the left (negative-distance side) of a, excluding a
// itself if present. Nil if there is no such neighbor.
func (t *Table) GetLeftStructuredNeighborOf(a *address.Address) *Connection {
	near := t.nearStructured()
	if len(near) == 0 {
		return nil
	}
	i := sort.Search(len(near), func(i int) bool {
		return near[i].Address.Cmp(a) >= 0
	})
	i--
	if i < 0 {
		i = len(near) - 1
	}
	if near[i].Address.Cmp(a) == 0 {
		i--
		if i < 0 {
			i = len(near) - 1
		}
		if near[i].Address.Cmp(a) == 0 {
			return nil // a is the only Near entry
		}
	}
	return near[i]
}

// GetRightStructuredNeighborOf returns the Near-class neighbor
// immediately to the right (positive-distance side) of a, excluding a
// itself if present. Nil if there is no such neighbor.
func (t *Table) GetRightStructuredNeighborOf(a *address.Address) *Connection {
	near := t.nearStructured()
	if len(near) == 0 {
		return nil
	}
	i := sort.Search(len(near), func(i int) bool {
		return near[i].Address.Cmp(a) > 0
	})
	if i >= len(near) {
		i = 0
	}
	if near[i].Address.Cmp(a) == 0 {
		i++
		if i >= len(near) {
			i = 0
		}
		if near[i].Address.Cmp(a) == 0 {
			return nil // a is the only Near entry
		}
	}
	return near[i]
}

// GetNearestTo returns the k connections (across all classes) whose
// absolute ring distance to a is smallest, in increasing-distance
// order. Mirrors the teacher's SelectClosestPeer: a small candidate
// list is maintained in sorted order by repeated Cmp comparison
// rather than a full sort-then-slice, since k is always small.
func (t *Table) GetNearestTo(a *address.Address, k int) []*Connection {
	t.mtx.RLock()
	all := make([]*Connection, len(t.global))
	copy(all, t.global)
	t.mtx.RUnlock()

	type scored struct {
		c *Connection
		d *gmath.Int
	}
	var best []scored
	for _, c := range all {
		dist := gmath.NewIntFromBytes(a.AbsDistanceTo(c.Address).Bytes())
		pos := sort.Search(len(best), func(i int) bool {
			return best[i].d.Cmp(dist) >= 0
		})
		best = append(best, scored{})
		copy(best[pos+1:], best[pos:])
		best[pos] = scored{c: c, d: dist}
		if len(best) > k {
			best = best[:k]
		}
	}
	out := make([]*Connection, len(best))
	for i, s := range best {
		out[i] = s.c
	}
	return out
}
