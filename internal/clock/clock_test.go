package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 7, 21, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("expected %v, got %v", start, got)
	}

	got := c.Advance(90 * time.Second)
	if want := start.Add(90 * time.Second); !got.Equal(want) || !c.Now().Equal(want) {
		t.Fatalf("expected %v after advance, got %v", want, got)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected clock reset to %v, got %v", start, c.Now())
	}
}
