package random

import "testing"

func TestSourceIsDeterministicForSeed(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 20; i++ {
		x, y := a.Intn(100), b.Intn(100)
		if x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
		if x < 0 || x >= 100 {
			t.Fatalf("draw %d out of range: %d", i, x)
		}
	}
	if got := a.Intn(0); got != 0 {
		t.Fatalf("Intn(0)=%d", got)
	}
}

func TestScriptCyclesAndClamps(t *testing.T) {
	s := NewScript(5, 250, -3)
	want := []int{5, 99, 0, 5}
	for i, w := range want {
		if got := s.Intn(100); got != w {
			t.Fatalf("draw %d=%d, want %d", i, got, w)
		}
	}
	if got := NewScript().Intn(10); got != 0 {
		t.Fatalf("empty script=%d", got)
	}
}

func TestNewSeeded(t *testing.T) {
	s, err := NewSeeded()
	if err != nil {
		t.Fatalf("new seeded: %v", err)
	}
	if v := s.Intn(6); v < 0 || v >= 6 {
		t.Fatalf("draw out of range: %d", v)
	}
}
