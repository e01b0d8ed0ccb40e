package hlc

import "testing"

func TestNowIsMonotonicOnSameDevice(t *testing.T) {
	c := New("dev-a")
	prev := c.Now()
	for i := 0; i < 50; i++ {
		next := c.Now()
		if !Less(prev, next) {
			t.Fatalf("expected %q < %q", prev, next)
		}
		prev = next
	}
}

func TestNowOrdersAcrossCallsEvenAtSameWallMillis(t *testing.T) {
	c := New("dev-a")
	// A last wall time far in the future pins both calls to that same
	// millisecond, so only the logical counter can order them.
	c.lastWall = 9999999999999
	c.logical = 0

	first := c.Now()
	second := c.Now()
	if !Less(first, second) {
		t.Fatalf("timestamps generated before one another on the same device must sort before: %q, %q", first, second)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	s := Format(1700000000123, 42, "dev-b")
	wall, logical, deviceID, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if wall != 1700000000123 || logical != 42 || deviceID != "dev-b" {
		t.Fatalf("round trip mismatch: wall=%d logical=%d deviceID=%q", wall, logical, deviceID)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	if _, _, _, err := Parse("not-an-hlc"); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
	if _, _, _, err := Parse("abc-00000-dev-a"); err == nil {
		t.Fatal("expected error for non-numeric wall component")
	}
}

func TestLessIsLexicographicOverTheWholeString(t *testing.T) {
	a := Format(1700000000000, 0, "dev-a")
	b := Format(1700000000000, 1, "dev-a")
	if !Less(a, b) {
		t.Fatalf("expected %q < %q (same wall, higher logical)", a, b)
	}
	c := Format(1700000000001, 0, "dev-a")
	if !Less(b, c) {
		t.Fatalf("expected %q < %q (later wall millis)", b, c)
	}
}

func TestObserveAdvancesPastAFutureReceivedTimestamp(t *testing.T) {
	c := New("dev-a")
	future := Format(9999999999999, 7, "dev-b")
	if err := c.Observe(future); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	next := c.Now()
	if !Less(future, next) {
		t.Fatalf("expected a timestamp observed from a peer to causally precede this device's next Now: %q, %q", future, next)
	}
}

func TestObserveRejectsMalformedInput(t *testing.T) {
	c := New("dev-a")
	if err := c.Observe("garbage"); err == nil {
		t.Fatal("expected error observing a malformed timestamp")
	}
}
