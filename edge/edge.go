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

// Package edge implements the logical bidirectional channel multiplexed
// over a listener's single UDP socket: a local/remote id pair, the
// remote endpoint, open/closed state and an inbound-packet callback.
package edge

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bfix/ringnet/ta"
)

// State is the lifecycle state of an Edge. A Closed edge never
// transitions back to Open.
type State int32

// Edge lifecycle states.
const (
	Open State = iota
	Closed
)

// ErrClosed is returned by Send when the edge is no longer open.
var ErrClosed = errors.New("edge: send on closed edge")

// SendHandler is the capability an Edge uses to push a datagram back
// out through its owning listener. Edges hold only this narrow
// interface rather than a back-reference to the listener itself.
type SendHandler interface {
	SendTo(localID, remoteID int32, dest *ta.TransportAddress, payload []byte) error
}

// ReceiveFunc is invoked for every application payload delivered on
// an edge, in wire-arrival order.
type ReceiveFunc func(payload []byte)

// CloseFunc is invoked exactly once when an edge transitions to Closed.
type CloseFunc func()

// Edge is a logical channel to a single remote peer, identified on the
// wire by a (local id, remote id) pair.
type Edge struct {
	LocalID    int32
	IsInbound  bool
	End        *ta.TransportAddress // current remote endpoint
	LocalTA    *ta.TransportAddress // peer's view of our local TA
	remoteID   int32                // set once via SetRemoteID; 0 until then
	state      int32                // atomic State
	handler    SendHandler
	onReceive  ReceiveFunc
	onClose    CloseFunc
	mtx        sync.Mutex
}

// New constructs an Edge bound to localID with the given remote
// endpoint and send capability. localID must be nonzero.
func New(localID int32, inbound bool, end *ta.TransportAddress, handler SendHandler) *Edge {
	return &Edge{
		LocalID:   localID,
		IsInbound: inbound,
		End:       end,
		handler:   handler,
	}
}

// OnReceive registers the callback for inbound application payloads.
func (e *Edge) OnReceive(f ReceiveFunc) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.onReceive = f
}

// OnClose registers the callback fired on transition to Closed.
func (e *Edge) OnClose(f CloseFunc) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.onClose = f
}

// RemoteID returns the currently-known remote id (0 until the
// handshake completes on an outbound edge).
func (e *Edge) RemoteID() int32 {
	return atomic.LoadInt32(&e.remoteID)
}

// SetRemoteID sets the remote id exactly once; a later call with a
// different value fails silently, matching the edge's monotonic-id
// invariant. Returns true if this call performed the (one-time) set.
func (e *Edge) SetRemoteID(id int32) bool {
	return atomic.CompareAndSwapInt32(&e.remoteID, 0, id)
}

// State returns the current lifecycle state.
func (e *Edge) State() State {
	return State(atomic.LoadInt32(&e.state))
}

// IsOpen reports whether the edge has not yet been closed.
func (e *Edge) IsOpen() bool {
	return e.State() == Open
}

// Deliver hands an inbound application payload to the registered
// callback, in wire-arrival order (the caller is the listener's
// single reader thread, so no additional serialization is needed
// here).
func (e *Edge) Deliver(payload []byte) {
	e.mtx.Lock()
	cb := e.onReceive
	e.mtx.Unlock()
	if cb != nil {
		cb(payload)
	}
}

// Send transmits an application payload to the current remote
// endpoint via the owning listener's send queue. Returns ErrClosed if
// the edge is no longer open.
func (e *Edge) Send(payload []byte) error {
	if !e.IsOpen() {
		return ErrClosed
	}
	return e.handler.SendTo(e.LocalID, e.RemoteID(), e.End, payload)
}

// Close transitions the edge to Closed and fires the close callback
// at most once. Safe to call multiple times.
func (e *Edge) Close() {
	if !atomic.CompareAndSwapInt32(&e.state, int32(Open), int32(Closed)) {
		return
	}
	e.mtx.Lock()
	cb := e.onClose
	e.mtx.Unlock()
	if cb != nil {
		cb()
	}
}
