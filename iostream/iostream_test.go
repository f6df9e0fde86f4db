package iostream

import "testing"

func TestCtrlXCounter(t *testing.T) {
	var c CtrlXCounter
	for i := 0; i < 4; i++ {
		if c.Feed(0x18) {
			t.Fatalf("cancelled too early at byte %d", i)
		}
	}
	if !c.Feed(0x18) {
		t.Fatal("expected cancel on fifth Ctrl-X")
	}
}

func TestCtrlXCounterResets(t *testing.T) {
	var c CtrlXCounter
	c.Feed(0x18)
	c.Feed(0x18)
	c.Feed('A')
	if c.Feed(0x18) {
		t.Fatal("counter should have reset after non Ctrl-X byte")
	}
}

func TestHexRoundTrip(t *testing.T) {
	var buf [2]byte
	ToHex(0xAB, buf[:])
	got, err := FromHex(buf[0], buf[1])
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xAB {
		t.Errorf("got 0x%02x, want 0xAB", got)
	}
}

func TestEncodeByteMapMandatory(t *testing.T) {
	m := NewEncodeByteMap(false, false)
	if !m.MustEscape(0x18) {
		t.Error("Ctrl-X must always be escaped")
	}
	if m.MustEscape('A') {
		t.Error("'A' should not be escaped by default")
	}
}

func TestEncodeByteMapControl(t *testing.T) {
	m := NewEncodeByteMap(true, false)
	if !m.MustEscape(0x01) {
		t.Error("control chars should be escaped when escapeControl is set")
	}
}
