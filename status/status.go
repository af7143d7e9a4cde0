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

// Package status implements the status exchange: on each structured
// connection event, the nearest MAX_NEIGHBORS connections around the
// new neighbor are pushed to its left/right structured neighbors via
// an RPC call, best-effort. Registration against the connection table
// mirrors the teacher's module.Run(ctx, hdlr, filter) event-handler
// pattern in service/module.go, generalized from a channel-filtered
// event bus to direct OnConnect/OnDisconnect callbacks.
package status

import (
	"github.com/bfix/gospel/logger"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/table"
)

// MaxNeighbors is the default size of the neighbor list carried in a
// status message.
const MaxNeighbors = 4

// NeighborInfo is one entry of a StatusMessage's neighbor list.
type NeighborInfo struct {
	Address string `json:"address"`
	TA      string `json:"ta"`
	Class   string `json:"class"`
}

// Message is the payload pushed to sys:link.GetStatus.
type Message struct {
	From      string         `json:"from"`
	Neighbors []NeighborInfo `json:"neighbors"`
}

// Pusher delivers a status message to a peer, asynchronously and
// best-effort. Implemented by the RPC client in this package's rpc.go.
type Pusher interface {
	PushStatus(dest string, msg *Message)
}

// Exchange wires status pushes to a connection table's events.
type Exchange struct {
	local *address.Address
	tbl   *table.Table
	push  Pusher
	n     int
}

// New creates a status Exchange bound to tbl, pushing via push.
// maxNeighbors <= 0 defaults to MaxNeighbors.
func New(local *address.Address, tbl *table.Table, push Pusher, maxNeighbors int) *Exchange {
	if maxNeighbors <= 0 {
		maxNeighbors = MaxNeighbors
	}
	ex := &Exchange{local: local, tbl: tbl, push: push, n: maxNeighbors}
	tbl.OnConnect(ex.onEvent)
	tbl.OnDisconnect(ex.onEvent)
	return ex
}

// onEvent is the table callback: for c, find its left/right
// structured neighbors and push each a status message centered on c.
func (ex *Exchange) onEvent(c *table.Connection) {
	lc := ex.tbl.GetLeftStructuredNeighborOf(c.Address)
	rc := ex.tbl.GetRightStructuredNeighborOf(c.Address)

	targets := make(map[string]*table.Connection)
	if lc != nil {
		targets[lc.Address.String()] = lc
	}
	if rc != nil {
		targets[rc.Address.String()] = rc
	}

	msg := ex.buildMessage(c.Address)
	for _, target := range targets {
		if target.StatusEndpoint == "" {
			// No known status-RPC endpoint for this peer (e.g. it
			// never completed the address-announcement handshake's
			// endpoint exchange): nothing reachable to push to.
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Printf(logger.WARN, "[status] push to %s panicked: %v\n", target.Address, r)
				}
			}()
			ex.push.PushStatus(target.StatusEndpoint, msg)
		}()
	}
}

func (ex *Exchange) buildMessage(center *address.Address) *Message {
	near := ex.tbl.GetNearestTo(center, ex.n)
	infos := make([]NeighborInfo, 0, len(near))
	for _, c := range near {
		ta := ""
		if c.TA != nil {
			ta = c.TA.String()
		}
		infos = append(infos, NeighborInfo{
			Address: c.Address.String(),
			TA:      ta,
			Class:   c.Class.String(),
		})
	}
	return &Message{From: ex.local.String(), Neighbors: infos}
}
