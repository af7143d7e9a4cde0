package edge

import (
	"testing"

	"github.com/bfix/ringnet/ta"
)

type fakeHandler struct {
	sent [][]byte
}

func (f *fakeHandler) SendTo(localID, remoteID int32, dest *ta.TransportAddress, payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func TestRemoteIDMonotonic(t *testing.T) {
	e := New(1, true, ta.New(ta.Udp, "h", 1), &fakeHandler{})
	if !e.SetRemoteID(9) {
		t.Fatalf("first SetRemoteID should succeed")
	}
	if e.SetRemoteID(11) {
		t.Fatalf("second SetRemoteID should fail silently")
	}
	if e.RemoteID() != 9 {
		t.Fatalf("remote id changed after being set, got %d", e.RemoteID())
	}
}

func TestCloseIsOneShotAndNeverReopens(t *testing.T) {
	e := New(1, false, ta.New(ta.Udp, "h", 1), &fakeHandler{})
	count := 0
	e.OnClose(func() { count++ })
	e.Close()
	e.Close()
	if count != 1 {
		t.Fatalf("expected close callback exactly once, got %d", count)
	}
	if e.IsOpen() {
		t.Fatalf("edge did not transition to closed")
	}
}

func TestSendOnClosedEdgeFails(t *testing.T) {
	h := &fakeHandler{}
	e := New(1, false, ta.New(ta.Udp, "h", 1), h)
	e.Close()
	if err := e.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDeliverInvokesCallback(t *testing.T) {
	e := New(1, false, ta.New(ta.Udp, "h", 1), &fakeHandler{})
	var got []byte
	e.OnReceive(func(p []byte) { got = p })
	e.Deliver([]byte("hello"))
	if string(got) != "hello" {
		t.Fatalf("callback did not receive payload, got %q", got)
	}
}
