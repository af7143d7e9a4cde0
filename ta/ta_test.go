package ta

import "testing"

func TestParseRoundTrip(t *testing.T) {
	orig := New(Udp, "10.0.0.1", 4000)
	s := orig.String()
	parsed, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	if !orig.Equals(parsed) {
		t.Fatalf("round trip mismatch: %v != %v", orig, parsed)
	}
}

func TestParseRejectsMissingPort(t *testing.T) {
	if _, err := Parse("brunet.udp://10.0.0.1"); err == nil {
		t.Fatalf("expected error for missing port")
	}
}

func TestEqualsStructural(t *testing.T) {
	a := New(Udp, "host", 1)
	b := New(Udp, "host", 1)
	c := New(Tcp, "host", 1)
	if !a.Equals(b) {
		t.Fatalf("expected equal")
	}
	if a.Equals(c) {
		t.Fatalf("expected different types to differ")
	}
}
