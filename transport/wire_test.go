package transport

import "testing"

func TestDataHeaderRoundTrip(t *testing.T) {
	hdr := encodeDataHeader(5, 9)
	h, payload, err := decodeHeader(append(hdr, []byte("hi")...))
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if h.isControl() {
		t.Fatalf("data header misclassified as control")
	}
	if h.remoteID != 5 || h.localID != 9 {
		t.Fatalf("got (%d,%d), want (5,9)", h.remoteID, h.localID)
	}
	if string(payload) != "hi" {
		t.Fatalf("payload mismatch: %q", payload)
	}
}

func TestControlHeaderRecoversLocalID(t *testing.T) {
	// sender's local id is 5, its view of the peer's id is 9; from the
	// receiver's side, ourLocalID() must recover 9.
	hdr := encodeControlHeader(5, 9)
	h, _, err := decodeHeader(hdr)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if !h.isControl() {
		t.Fatalf("control header not recognized as control")
	}
	if got := h.ourLocalID(); got != 9 {
		t.Fatalf("ourLocalID() = %d, want 9", got)
	}
}

func TestControlBodyRoundTrip(t *testing.T) {
	body := encodeEdgeDataAnnounce("brunet.udp://1.2.3.4:5", "brunet.udp://5.6.7.8:9")
	payload := encodeControlBody(CtrlEdgeDataAnnounce, body)
	code, rest, err := decodeControlBody(payload)
	if err != nil {
		t.Fatalf("decodeControlBody: %v", err)
	}
	if code != CtrlEdgeDataAnnounce {
		t.Fatalf("code = %d, want %d", code, CtrlEdgeDataAnnounce)
	}
	ann, err := decodeEdgeDataAnnounce(rest)
	if err != nil {
		t.Fatalf("decodeEdgeDataAnnounce: %v", err)
	}
	if ann.RemoteTA != "brunet.udp://1.2.3.4:5" || ann.LocalTA != "brunet.udp://5.6.7.8:9" {
		t.Fatalf("unexpected announce body: %+v", ann)
	}
}

func TestMalformedDatagramRejected(t *testing.T) {
	if _, _, err := decodeHeader([]byte{1, 2, 3}); err != ErrMalformedDatagram {
		t.Fatalf("expected ErrMalformedDatagram, got %v", err)
	}
}
