package address

import (
	"math/big"
	"testing"
)

func TestParityInvariant(t *testing.T) {
	a := New(big.NewInt(7))
	if a.val.Bit(0) != 0 {
		t.Fatalf("New did not clear the low-order bit: %s", a)
	}
	if _, err := FromBytes([]byte{0x01}); err != ErrOddAddress {
		t.Fatalf("expected ErrOddAddress, got %v", err)
	}
}

func TestDistanceSign(t *testing.T) {
	a := New(big.NewInt(0x10))
	b := New(big.NewInt(0x50))
	d := a.DistanceTo(b)
	if d.Sign() <= 0 {
		t.Fatalf("expected positive distance from %s to %s, got %s", a, b, d)
	}
	if !a.IsLeftOf(b) {
		t.Fatalf("IsLeftOf disagrees with DistanceTo sign")
	}
	back := b.DistanceTo(a)
	if back.Sign() >= 0 {
		t.Fatalf("expected negative distance from %s to %s, got %s", b, a, back)
	}
}

func TestDistanceWrap(t *testing.T) {
	// near the top of the ring, wrapping forward should still be "left of"
	top := New(new(big.Int).Sub(Full, big.NewInt(4)))
	low := New(big.NewInt(4))
	if !top.IsLeftOf(low) {
		t.Fatalf("expected wraparound distance to be positive")
	}
	d := top.AbsDistanceTo(low)
	if d.Cmp(big.NewInt(8)) != 0 {
		t.Fatalf("expected wraparound magnitude 8, got %s", d)
	}
}

func TestAddRoundTrip(t *testing.T) {
	a := Random()
	b := a.Add(big.NewInt(1024))
	d := a.DistanceTo(b)
	if d.Cmp(big.NewInt(1024)) != 0 {
		t.Fatalf("Add/DistanceTo round trip failed: got %s, want 1024", d)
	}
}

func TestBase32RoundTrip(t *testing.T) {
	a := Random()
	b, err := FromBase32(a.Base32())
	if err != nil {
		t.Fatalf("FromBase32 failed: %s", err)
	}
	if !a.Equals(b) {
		t.Fatalf("Base32 round trip mismatch: %s != %s", a, b)
	}
}
