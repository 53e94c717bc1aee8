package main

import "testing"

func TestStationCycleSnapshotIsolation(t *testing.T) {
	source := []string{"farm_1", "farm_2", "farm_3"}
	var c StationCycle
	c.Load(source)

	source[0] = "changed"
	source = append(source, "farm_4")

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if got := c.Current(); got != "farm_1" {
		t.Errorf("Current() = %q, want farm_1", got)
	}

	out := c.Stations()
	out[1] = "mutated"
	c.Advance()
	if got := c.Current(); got != "farm_2" {
		t.Errorf("Current() after Advance = %q, want farm_2", got)
	}
}

func TestStationCycleAdvanceWrapsOnce(t *testing.T) {
	var c StationCycle
	c.Load([]string{"a", "b", "c", "d", "e"})

	falses := 0
	for i := 0; i < 5; i++ {
		if i == 4 && !c.IsLast() {
			t.Errorf("IsLast() = false on the final station")
		}
		if !c.Advance() {
			falses++
		}
	}
	if falses != 1 {
		t.Errorf("Advance returned false %d times over one pass, want 1", falses)
	}
	if c.Index() != 0 {
		t.Errorf("Index() after wrap = %d, want 0", c.Index())
	}
}

func TestStationCycleEmpty(t *testing.T) {
	var c StationCycle
	c.Load(nil)
	if c.Current() != "" {
		t.Errorf("Current() = %q, want empty", c.Current())
	}
	if c.Advance() {
		t.Error("Advance() on empty cycle = true")
	}
	if c.IsLast() {
		t.Error("IsLast() on empty cycle = true")
	}
}

func TestStationCycleReset(t *testing.T) {
	var c StationCycle
	c.Load([]string{"a", "b", "c"})
	c.Advance()
	c.Advance()
	c.Reset()
	if c.Index() != 0 || c.Current() != "a" {
		t.Errorf("after Reset: index %d current %q", c.Index(), c.Current())
	}
}
