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

// Package natlist implements the append-only NAT history of edge
// events and the ranked list of advertised local transport addresses
// derived from it. The ranked list is swapped as a whole reference so
// readers always observe a consistent snapshot, matching the
// teacher's copy-on-write conventions elsewhere in the codebase
// (PeerAddrList in util/address.go).
package natlist

import (
	"sync"
	"sync/atomic"

	"github.com/bfix/gospel/logger"

	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/util"
)

// Kind identifies the category of a NAT history data point.
type Kind int

// NAT history event kinds.
const (
	NewEdge Kind = iota
	EdgeClose
	LocalMappingChange
	RemoteMappingChange
)

// DataPoint is a single, timestamped entry in the history.
type DataPoint struct {
	Timestamp util.AbsoluteTime
	Kind      Kind
	LocalID   int32
	TA        *ta.TransportAddress // optional, nil for EdgeClose
}

// History is the append-only NAT event log for a single listener,
// plus the ranked TA list derived from it.
type History struct {
	mtx    sync.Mutex
	points []DataPoint
	ranked atomic.Value // []*ta.TransportAddress

	journal *journal // optional on-disk mirror, see store.go
}

// New creates an empty history seeded with the listener's statically
// configured local TAs (highest-ranked by construction, since they
// were never superseded by a mapping-change observation).
func New(seed []*ta.TransportAddress) *History {
	h := &History{}
	initial := make([]*ta.TransportAddress, len(seed))
	copy(initial, seed)
	h.ranked.Store(initial)
	return h
}

// Append records a new data point and, if it is a LocalMappingChange
// (the only kind whose TA is this node's own address rather than a
// peer's), recomputes the ranked TA list from the full history and
// atomically publishes it. Never mutates prior entries.
func (h *History) Append(dp DataPoint) {
	h.mtx.Lock()
	h.points = append(h.points, dp)
	var snapshot []DataPoint
	if dp.Kind == LocalMappingChange {
		snapshot = append(snapshot, h.points...)
	}
	j := h.journal
	h.mtx.Unlock()

	if j != nil {
		j.write(dp)
	}
	if snapshot != nil {
		h.ranked.Store(rank(snapshot))
	}
}

// rank derives a ranked TA list from a history snapshot: the most
// recently observed distinct LocalMappingChange TA is kept,
// most-recent-first, deduplicated by string form. Other kinds
// (NewEdge, EdgeClose, RemoteMappingChange) carry a peer's address,
// not ours, and must never feed this node's self-advertised TA list.
func rank(points []DataPoint) []*ta.TransportAddress {
	seen := make(map[string]bool)
	var out []*ta.TransportAddress
	for i := len(points) - 1; i >= 0; i-- {
		dp := points[i]
		if dp.TA == nil || dp.Kind != LocalMappingChange {
			continue
		}
		key := dp.TA.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, dp.TA)
	}
	return out
}

// RankedTAs returns the current ranked list of advertised local
// transport addresses, most-preferred first.
func (h *History) RankedTAs() []*ta.TransportAddress {
	v := h.ranked.Load()
	if v == nil {
		return nil
	}
	return v.([]*ta.TransportAddress)
}

// Len returns the number of recorded data points.
func (h *History) Len() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.points)
}

// AttachJournal enables on-disk persistence of future Append calls.
// Closing the returned history's journal is the caller's
// responsibility via CloseJournal.
func (h *History) AttachJournal(j *journal) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.journal = j
}

// CloseJournal closes the attached journal, if any, logging (rather
// than propagating) any close error, matching the listener's
// best-effort treatment of persistence failures.
func (h *History) CloseJournal() {
	h.mtx.Lock()
	j := h.journal
	h.journal = nil
	h.mtx.Unlock()
	if j == nil {
		return
	}
	if err := j.close(); err != nil {
		logger.Printf(logger.WARN, "[natlist] journal close failed: %s\n", err.Error())
	}
}
