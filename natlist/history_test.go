package natlist

import (
	"testing"

	"github.com/bfix/ringnet/ta"
	"github.com/bfix/ringnet/util"
)

func TestRankedTAsUpdatesOnLocalMappingChange(t *testing.T) {
	seed := []*ta.TransportAddress{ta.New(ta.Udp, "seed", 1)}
	h := New(seed)
	if len(h.RankedTAs()) != 1 {
		t.Fatalf("expected seeded ranked list of length 1")
	}
	h.Append(DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      LocalMappingChange,
		LocalID:   5,
		TA:        ta.New(ta.Udp, "newhost", 2),
	})
	ranked := h.RankedTAs()
	if len(ranked) == 0 || ranked[0].String() != "brunet.udp://newhost:2" {
		t.Fatalf("expected newest TA first, got %v", ranked)
	}
}

func TestRemoteMappingChangeDoesNotCorruptRankedList(t *testing.T) {
	seed := []*ta.TransportAddress{ta.New(ta.Udp, "seed", 1)}
	h := New(seed)
	h.Append(DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      RemoteMappingChange,
		LocalID:   5,
		TA:        ta.New(ta.Udp, "peer-c", 2),
	})
	ranked := h.RankedTAs()
	if len(ranked) != 1 || ranked[0].String() != "brunet.udp://seed:1" {
		t.Fatalf("a peer's own address must never enter the local ranked TA list, got %v", ranked)
	}
}

func TestNewEdgeDoesNotCorruptRankedList(t *testing.T) {
	h := New(nil)
	h.Append(DataPoint{
		Timestamp: util.AbsoluteTimeNow(),
		Kind:      NewEdge,
		LocalID:   7,
		TA:        ta.New(ta.Udp, "connecting-peer", 9),
	})
	if len(h.RankedTAs()) != 0 {
		t.Fatalf("a new edge's remote TA must never enter the local ranked TA list, got %v", h.RankedTAs())
	}
}

func TestCloseEventDoesNotTouchRankedList(t *testing.T) {
	h := New(nil)
	h.Append(DataPoint{Timestamp: util.AbsoluteTimeNow(), Kind: EdgeClose, LocalID: 3})
	if len(h.RankedTAs()) != 0 {
		t.Fatalf("EdgeClose without a TA should not affect the ranked list")
	}
	if h.Len() != 1 {
		t.Fatalf("expected history to record the close event, got len %d", h.Len())
	}
}
