package notify

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestCenter_AutoDismiss(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New(0).WithClock(clk.now)

	n := c.Notify(Error, "feedback failed")
	if n.ExpiresAt.Sub(n.CreatedAt) != DefaultTTL {
		t.Errorf("ttl = %v, want %v", n.ExpiresAt.Sub(n.CreatedAt), DefaultTTL)
	}
	if got := c.Active(); len(got) != 1 || got[0].Message != "feedback failed" {
		t.Fatalf("Active() = %+v", got)
	}

	clk.t = clk.t.Add(DefaultTTL)
	if got := c.Active(); len(got) != 0 {
		t.Errorf("expected expiry, got %+v", got)
	}
}

func TestCenter_Dismiss(t *testing.T) {
	c := New(time.Minute)
	a := c.Notify(Info, "a")
	c.Notify(Info, "b")

	if !c.Dismiss(a.ID) {
		t.Fatal("Dismiss returned false")
	}
	if c.Dismiss(a.ID) {
		t.Error("second Dismiss should return false")
	}
	if got := c.Active(); len(got) != 1 || got[0].Message != "b" {
		t.Errorf("Active() = %+v", got)
	}
}

func TestCenter_Bounded(t *testing.T) {
	c := New(time.Hour)
	for i := 0; i < maxActive+5; i++ {
		c.Notify(Info, "x")
	}
	if got := len(c.Active()); got != maxActive {
		t.Errorf("active = %d, want %d", got, maxActive)
	}
}
