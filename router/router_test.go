package router

import (
	"math/big"
	"testing"

	"github.com/bfix/ringnet/address"
	"github.com/bfix/ringnet/table"
)

func addr(v int64) *address.Address { return address.New(big.NewInt(v)) }

func ring3(local int64) (*table.Table, *address.Address) {
	tbl := table.New(addr(local))
	for _, v := range []int64{0x10, 0x50, 0xA0} {
		if v == local {
			continue
		}
		tbl.Add(&table.Connection{Address: addr(v), Class: table.Near})
	}
	return tbl, addr(local)
}

// S1: exact routing from 0x10 to 0xA0, both near-connected directly.
func TestS1ExactDirectHop(t *testing.T) {
	tbl, local := ring3(0x10)
	pkt := &Packet{Src: local, Dst: addr(0xA0), Mode: Exact, Hops: 0}
	next, deliver := NextHop(local, tbl, nil, pkt)
	if deliver {
		t.Fatalf("expected a forwarding hop, not local delivery")
	}
	if next == nil || next.Cmp(addr(0xA0)) != 0 {
		t.Fatalf("expected direct hop to 0xA0, got %v", next)
	}
}

// S2: greedy routing from 0x10 toward key 0x90 with 0x10<->0xA0 omitted;
// 0xA0 is the closer live node to 0x90 and should be the terminus.
func TestS2GreedyDisconnectedSegment(t *testing.T) {
	tbl := table.New(addr(0x10))
	tbl.Add(&table.Connection{Address: addr(0x50), Class: table.Near})
	tbl.Add(&table.Connection{Address: addr(0xA0), Class: table.Near})

	local := addr(0x10)
	pkt := &Packet{Src: local, Dst: addr(0x90), Mode: Greedy, Hops: 0}
	next, deliver := NextHop(local, tbl, nil, pkt)
	if deliver {
		t.Fatalf("0x10 should forward, not deliver locally")
	}
	if next.Cmp(addr(0xA0)) != 0 {
		t.Fatalf("expected greedy hop to 0xA0, got %v", next)
	}

	// at 0xA0, nothing is closer to 0x90 than 0xA0 itself: deliver locally.
	tblAtDst, localAtDst := ring3(0xA0)
	pkt2 := &Packet{Src: addr(0x10), Dst: addr(0x90), Mode: Greedy, Hops: 1}
	_, deliver2 := NextHop(localAtDst, tblAtDst, addr(0x10), pkt2)
	if !deliver2 {
		t.Fatalf("expected 0xA0 to deliver locally as the closest live node")
	}
}

func TestNextHopDropsPastMaxTTL(t *testing.T) {
	tbl, local := ring3(0x10)
	pkt := &Packet{Src: local, Dst: addr(0x50), Mode: Exact, Hops: MaxTTL + 1}
	next, deliver := NextHop(local, tbl, nil, pkt)
	if next != nil || deliver {
		t.Fatalf("expected packet to be dropped past MaxTTL")
	}
}

func TestLocalDestinationDeliversLocally(t *testing.T) {
	tbl, local := ring3(0x50)
	pkt := &Packet{Src: local, Dst: local, Mode: Exact, Hops: 0}
	next, deliver := NextHop(local, tbl, nil, pkt)
	if next != nil || !deliver {
		t.Fatalf("expected local delivery when local == dst")
	}
}

func TestSizeEstimateMinimum(t *testing.T) {
	tbl := table.New(addr(0))
	tbl.Add(&table.Connection{Address: addr(10), Class: table.Near})
	n := EstimateSize(addr(0), tbl)
	if n.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected count+1=2 with a single Near connection, got %s", n)
	}
}

func TestShortcutStaysOnRing(t *testing.T) {
	local := address.Random()
	for i := 0; i < 20; i++ {
		target := SampleShortcut(local, 1000)
		if _, err := address.FromBytes(target.Bytes()); err != nil {
			t.Fatalf("shortcut target violates the address invariant: %s", target)
		}
	}
}
