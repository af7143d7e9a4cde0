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

package status

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/table"
)

func addr(v int64) *address.Address { return address.New(big.NewInt(v)) }

func mkConn(v int64, port int) *table.Connection {
	return &table.Connection{
		Address:        addr(v),
		TA:             ta.New(ta.Udp, "127.0.0.1", port),
		Class:          table.Near,
		StatusEndpoint: fmt.Sprintf("127.0.0.1:%d", port+1),
	}
}

type recordingPusher struct {
	mtx   sync.Mutex
	calls []struct {
		dest string
		msg  *Message
	}
}

func (p *recordingPusher) PushStatus(dest string, msg *Message) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.calls = append(p.calls, struct {
		dest string
		msg  *Message
	}{dest, msg})
}

func (p *recordingPusher) count() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.calls)
}

func TestNewConnectionPushesToBothNeighbors(t *testing.T) {
	tbl := table.New(addr(0x50))
	tbl.Add(mkConn(0x10, 9010))
	tbl.Add(mkConn(0xA0, 9020))

	pusher := &recordingPusher{}
	New(addr(0x50), tbl, pusher, 0)

	// a new connection between the two existing near neighbors should
	// trigger a push to both of its structured neighbors (0x10, 0xA0).
	tbl.Add(mkConn(0x70, 9030))

	if got := pusher.count(); got != 2 {
		t.Fatalf("expected 2 pushes (left+right neighbor), got %d", got)
	}
	for _, call := range pusher.calls {
		if call.dest == "brunet.udp://127.0.0.1:9010" || call.dest == "brunet.udp://127.0.0.1:9020" {
			t.Fatalf("pushed to the overlay transport address %q instead of a dialable status endpoint", call.dest)
		}
	}
}

func TestConnectionWithoutStatusEndpointIsNotPushedTo(t *testing.T) {
	tbl := table.New(addr(0x50))
	left := mkConn(0x10, 9010)
	left.StatusEndpoint = ""
	right := mkConn(0xA0, 9020)
	right.StatusEndpoint = ""
	tbl.Add(left)
	tbl.Add(right)

	pusher := &recordingPusher{}
	New(addr(0x50), tbl, pusher, 0)

	tbl.Add(mkConn(0x70, 9030))

	if got := pusher.count(); got != 0 {
		t.Fatalf("expected no pushes when neighbors never advertised a status endpoint, got %d", got)
	}
}

func TestBuildMessageCarriesNearestConnections(t *testing.T) {
	tbl := table.New(addr(0))
	tbl.Add(mkConn(0x10, 9010))
	tbl.Add(mkConn(0x20, 9020))
	tbl.Add(mkConn(0x30, 9030))

	ex := &Exchange{local: addr(0), tbl: tbl, n: 2}
	msg := ex.buildMessage(addr(0x11))
	if len(msg.Neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(msg.Neighbors))
	}
}

func TestDisconnectAlsoTriggersPush(t *testing.T) {
	tbl := table.New(addr(0x50))
	tbl.Add(mkConn(0x10, 9010))
	tbl.Add(mkConn(0xA0, 9020))
	mid := mkConn(0x70, 9030)
	tbl.Add(mid)

	pusher := &recordingPusher{}
	New(addr(0x50), tbl, pusher, 0)

	tbl.Remove(mid.Address)
	if got := pusher.count(); got == 0 {
		t.Fatalf("expected at least one push on disconnect")
	}
}
