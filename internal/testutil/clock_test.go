package testutil

import (
	"testing"
	"time"
)

func TestFakeClock_FiresInOrder(t *testing.T) {
	c := NewFakeClock()
	var order []string
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	c.Advance(1500 * time.Millisecond)
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("after 1.5s order = %v, want [a]", order)
	}

	c.Advance(time.Second)
	if len(order) != 2 || order[1] != "b" {
		t.Fatalf("after 2.5s order = %v, want [a b]", order)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", c.Pending())
	}
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock()
	fired := false
	stop := c.AfterFunc(time.Second, func() { fired = true })

	if !stop() {
		t.Error("first stop should report the timer was pending")
	}
	if stop() {
		t.Error("second stop should report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	c := NewFakeClock()
	stop := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	if stop() {
		t.Error("stop after fire should report false")
	}
}

func TestFakeClock_Delays(t *testing.T) {
	c := NewFakeClock()
	c.AfterFunc(time.Second, func() {})
	c.AfterFunc(4*time.Second, func() {})

	got := c.Delays()
	if len(got) != 2 || got[0] != time.Second || got[1] != 4*time.Second {
		t.Errorf("Delays() = %v", got)
	}
}
