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

package transport

import "net"

// outMsg is a single queued datagram: wire header plus payload and
// destination. A nil outMsg pointer sent over the queue's channel is
// the shutdown sentinel.
type outMsg struct {
	header  []byte
	payload []byte
	dest    *net.UDPAddr
}

// sendQueue is a bounded FIFO with blocking dequeue and a soft cap:
// once full, Enqueue drops the new message rather than blocking the
// caller. Back-pressure from an overloaded socket must not stall
// application threads, and loss is already tolerated at this layer.
type sendQueue struct {
	ch chan *outMsg
}

func newSendQueue(softCap int) *sendQueue {
	return &sendQueue{ch: make(chan *outMsg, softCap)}
}

// Enqueue attempts to add msg without blocking; returns false if the
// queue was full and the message was dropped.
func (q *sendQueue) Enqueue(msg *outMsg) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// Dequeue blocks until a message (or the nil shutdown sentinel) is
// available.
func (q *sendQueue) Dequeue() *outMsg {
	return <-q.ch
}

// Shutdown enqueues the sentinel, blocking if necessary so the
// writer thread is guaranteed to observe it.
func (q *sendQueue) Shutdown() {
	q.ch <- nil
}
