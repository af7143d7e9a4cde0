package transport

import (
	"testing"
	"time"

	"github.com/bfix/ringnet/edge"
	"github.com/bfix/ringnet/ta"
)

func newTestListener() *Listener {
	return New(0, nil, nil, 16)
}

func remoteTAFor(port int) *ta.TransportAddress {
	return ta.New(ta.Udp, "127.0.0.1", uint16(port))
}

// S4: two simultaneous inbound handshake datagrams from the same
// endpoint produce exactly one new edge; the second is delivered on it.
func TestDuplicateFirstPacketCreatesOneEdge(t *testing.T) {
	l := newTestListener()
	peer := remoteTAFor(4000)

	l.handleData(header{remoteID: 7, localID: 0}, []byte("a"), peer)
	l.handleData(header{remoteID: 7, localID: 0}, []byte("b"), peer)

	l.mtx.Lock()
	n := len(l.remoteHT)
	l.mtx.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one registered remote edge, got %d", n)
	}
}

// S5: a datagram whose remote id mismatches the edge's established
// remote id is dropped and an EdgeClosed control is queued.
func TestWrongRemoteIDSendsEdgeClosed(t *testing.T) {
	l := newTestListener()
	peer := remoteTAFor(4001)
	l.handleData(header{remoteID: 9, localID: 0}, []byte("hello"), peer)

	l.mtx.Lock()
	e := l.remoteHT[9]
	l.mtx.Unlock()
	if e == nil {
		t.Fatalf("expected edge registered under remote id 9")
	}
	// the new inbound edge was announced to its peer; drain that
	// EdgeDataAnnounce so the next queued message is the reply under test
	<-l.queue.ch

	l.handleData(header{remoteID: 11, localID: e.LocalID}, []byte("x"), peer)

	select {
	case msg := <-l.queue.ch:
		code, _, err := decodeControlBody(msg.payload)
		if err != nil {
			t.Fatalf("decodeControlBody: %v", err)
		}
		if code != CtrlEdgeClosed {
			t.Fatalf("expected EdgeClosed control, got code %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an EdgeClosed control to be queued")
	}
}

// S3: the remote endpoint changing mid-session updates edge.End and
// records a RemoteMappingChange, without closing the edge.
func TestNATRemapUpdatesEndpoint(t *testing.T) {
	l := newTestListener()
	peer1 := remoteTAFor(4002)
	l.handleData(header{remoteID: 9, localID: 0}, []byte("first"), peer1)

	l.mtx.Lock()
	e := l.remoteHT[9]
	l.mtx.Unlock()
	if e == nil {
		t.Fatalf("expected edge registered under remote id 9")
	}

	peer2 := remoteTAFor(4003)
	l.handleData(header{remoteID: 9, localID: e.LocalID}, []byte("remapped"), peer2)

	if !e.End.Equals(peer2) {
		t.Fatalf("expected edge.End updated to %s, got %s", peer2, e.End)
	}
	if !e.IsOpen() {
		t.Fatalf("edge should survive a NAT remap")
	}
}

func (l *Listener) firstEdgeForTest() *edge.Edge {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	for _, e := range l.idHT {
		if e != nil {
			return e
		}
	}
	return nil
}

// End-to-end: two real listeners on loopback complete a handshake and
// exchange an application payload.
func TestEndToEndHandshakeAndDelivery(t *testing.T) {
	a := newTestListener()
	b := newTestListener()
	if err := a.Start(); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	defer a.Stop()
	if err := b.Start(); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	defer b.Stop()

	bTA := ta.New(ta.Udp, "127.0.0.1", uint16(b.Port()))

	done := make(chan struct{})
	var outErr error
	a.CreateEdgeTo(bTA, func(ae *edge.Edge, err error) {
		outErr = err
		close(done)
	})
	<-done
	if outErr != nil {
		t.Fatalf("CreateEdgeTo: %v", outErr)
	}

	var bEdge *edge.Edge
	deadline := time.Now().Add(2 * time.Second)
	for bEdge == nil && time.Now().Before(deadline) {
		bEdge = b.firstEdgeForTest()
		if bEdge == nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if bEdge == nil {
		t.Fatalf("timed out waiting for inbound edge on b")
	}

	gotOnB := make(chan string, 1)
	bEdge.OnReceive(func(p []byte) { gotOnB <- string(p) })

	aEdge := a.firstEdgeForTest()
	if aEdge == nil {
		t.Fatalf("expected a's outbound edge to be registered")
	}
	if err := aEdge.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-gotOnB:
		if msg != "ping" {
			t.Fatalf("got %q, want ping", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery on b")
	}
}
