package main

import (
	"context"
	"testing"
	"time"
)

// timedPanel is a PanelObserver whose answer depends on a fake clock
type timedPanel struct {
	now    *time.Time
	script func(elapsed time.Duration) RawPanel
	start  time.Time
}

func (p *timedPanel) CurrentPanel() RawPanel {
	return p.script(p.now.Sub(p.start))
}

type staticPanel RawPanel

func (p staticPanel) CurrentPanel() RawPanel { return RawPanel(p) }

func TestClassifyPanel(t *testing.T) {
	keywords := []string{"station", "croissance"}
	tests := []struct {
		name string
		raw  RawPanel
		want PanelType
	}{
		{"closed", RawPanel{}, PanelNone},
		{"single chest", RawPanel{IsOpen: true, SlotCount: 27}, PanelChest},
		{"double chest", RawPanel{IsOpen: true, SlotCount: 54}, PanelChest},
		{"dispenser", RawPanel{IsOpen: true, SlotCount: 9}, PanelDispenser},
		{"hopper", RawPanel{IsOpen: true, SlotCount: 5}, PanelHopper},
		{"furnace", RawPanel{IsOpen: true, SlotCount: 3}, PanelFurnace},
		{"crafting", RawPanel{IsOpen: true, SlotCount: 10}, PanelCrafting},
		{"enchanting", RawPanel{IsOpen: true, SlotCount: 2}, PanelEnchanting},
		{"beacon", RawPanel{IsOpen: true, SlotCount: 1}, PanelBeacon},
		{"generic rows", RawPanel{IsOpen: true, SlotCount: 36}, PanelGenericContainer},
		{"unknown count", RawPanel{IsOpen: true, SlotCount: 7}, PanelUnknown},
		{"title wins over count", RawPanel{IsOpen: true, SlotCount: 27, Title: "Furnace"}, PanelFurnace},
		{"french chest title", RawPanel{IsOpen: true, SlotCount: 36, Title: "Grand coffre"}, PanelChest},
		{"station title", RawPanel{IsOpen: true, SlotCount: 27, Title: "Station de Croissance"}, PanelGenericContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPanel(tt.raw, keywords)
			if got.Type != tt.want {
				t.Errorf("type = %s, want %s", got.Type, tt.want)
			}
		})
	}
}

func TestIsFullyLoaded(t *testing.T) {
	tests := []struct {
		raw  RawPanel
		want bool
	}{
		{RawPanel{}, false},
		{RawPanel{IsOpen: true, SlotCount: 27}, false},
		{RawPanel{IsOpen: true, SyncID: 3}, false},
		{RawPanel{IsOpen: true, SlotCount: 27, SyncID: 3}, true},
	}
	for _, tt := range tests {
		d := NewPanelDetector(staticPanel(tt.raw), nil)
		if got := d.IsFullyLoaded(); got != tt.want {
			t.Errorf("IsFullyLoaded(%+v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestPanelPredicates(t *testing.T) {
	chest := PanelInfo{Type: PanelChest}
	menu := PanelInfo{Type: PanelGenericContainer}
	furnace := PanelInfo{Type: PanelFurnace}

	if !IsChestPanel(chest) || IsChestPanel(menu) {
		t.Error("IsChestPanel mismatch")
	}
	if !IsGenericMenu(menu) || !IsGenericMenu(chest) || IsGenericMenu(furnace) {
		t.Error("IsGenericMenu mismatch")
	}
}

// runWait polls w every 50ms of fake time and returns the outcome and when
// it was decided.
func runWait(t *testing.T, now *time.Time, w *PanelWait, limit time.Duration) (Disposition, time.Duration) {
	t.Helper()
	start := *now
	for *now = start; now.Sub(start) <= limit; *now = now.Add(50 * time.Millisecond) {
		if d := w.Poll(*now); d != DispositionPending {
			return d, now.Sub(start)
		}
	}
	t.Fatalf("wait still pending after %v", limit)
	return DispositionPending, 0
}

func TestPanelWaitTwoPhase(t *testing.T) {
	const (
		timeout = 5 * time.Second
		poll    = 50 * time.Millisecond
		stab    = 2 * time.Second
	)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		script func(time.Duration) RawPanel
		want   Disposition
		at     time.Duration
	}{
		{
			// Open at 1s, synchronized at 1.5s: the delay runs from 1.5s.
			name: "opens then synchronizes",
			script: func(e time.Duration) RawPanel {
				switch {
				case e < time.Second:
					return RawPanel{}
				case e < 1500*time.Millisecond:
					return RawPanel{IsOpen: true, SlotCount: 27}
				default:
					return RawPanel{IsOpen: true, SlotCount: 27, SyncID: 7}
				}
			},
			want: DispositionSuccess,
			at:   3500 * time.Millisecond,
		},
		{
			name: "never opens",
			script: func(time.Duration) RawPanel {
				return RawPanel{}
			},
			want: DispositionTimeout,
			at:   timeout,
		},
		{
			name: "closes during stabilization",
			script: func(e time.Duration) RawPanel {
				if e >= time.Second && e < 2*time.Second {
					return RawPanel{IsOpen: true, SlotCount: 27, SyncID: 1}
				}
				return RawPanel{}
			},
			want: DispositionTimeout,
			at:   2 * time.Second,
		},
		{
			name: "never synchronizes",
			script: func(e time.Duration) RawPanel {
				return RawPanel{IsOpen: true, SlotCount: 27}
			},
			want: DispositionTimeout,
			at:   timeout,
		},
		{
			// Synchronized at 1s, resynchronizing from 2s to 2.5s: the
			// delay starts over at 2.5s.
			name: "reloads during stabilization",
			script: func(e time.Duration) RawPanel {
				if e >= 2*time.Second && e < 2500*time.Millisecond {
					return RawPanel{IsOpen: true, SlotCount: 27}
				}
				if e < time.Second {
					return RawPanel{}
				}
				return RawPanel{IsOpen: true, SlotCount: 27, SyncID: 2}
			},
			want: DispositionSuccess,
			at:   4500 * time.Millisecond,
		},
		{
			name: "wrong panel type",
			script: func(time.Duration) RawPanel {
				return RawPanel{IsOpen: true, SlotCount: 3, SyncID: 1}
			},
			want: DispositionTimeout,
			at:   timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := base
			obs := &timedPanel{now: &now, script: tt.script, start: base}
			d := NewPanelDetector(obs, nil)
			w := d.Begin(now, IsChestPanel, timeout, poll, stab)

			got, at := runWait(t, &now, w, 2*timeout)
			if got != tt.want || at != tt.at {
				t.Errorf("Poll = %s at %v, want %s at %v", got, at, tt.want, tt.at)
			}
			if again := w.Poll(now.Add(time.Minute)); again != got {
				t.Errorf("finished wait changed outcome to %s", again)
			}
		})
	}
}

// A station menu recognized by its title before the server sent its
// slots must not count as stable until the slots arrived.
func TestPanelWaitStabilizesFromLoadedPoint(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := base
	obs := &timedPanel{now: &now, start: base, script: func(e time.Duration) RawPanel {
		if e < time.Second {
			return RawPanel{IsOpen: true, Title: "Station de Croissance"}
		}
		return RawPanel{IsOpen: true, SlotCount: 27, SyncID: 3, Title: "Station de Croissance"}
	}}
	d := NewPanelDetector(obs, []string{"station", "croissance"})
	w := d.Begin(now, IsGenericMenu, 5*time.Second, 50*time.Millisecond, 2*time.Second)

	got, at := runWait(t, &now, w, 10*time.Second)
	if got != DispositionSuccess {
		t.Fatalf("Poll = %s, want Success", got)
	}
	if at < 3*time.Second {
		t.Errorf("succeeded at %v, before 2s of stabilization past the 1s load", at)
	}
	if at != 3*time.Second {
		t.Errorf("succeeded at %v, want 3s", at)
	}
}

func TestPanelWaitNoStabilization(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	d := NewPanelDetector(staticPanel{IsOpen: true, SlotCount: 54, SyncID: 2}, nil)
	w := d.Begin(now, IsChestPanel, time.Second, 0, 0)
	if got := w.Poll(now); got != DispositionSuccess {
		t.Errorf("Poll = %s, want Success on the first poll", got)
	}
}

func TestWaitForOpenBlocking(t *testing.T) {
	d := NewPanelDetector(staticPanel{IsOpen: true, SlotCount: 27, SyncID: 1}, nil)
	if !d.WaitForChestOpen(context.Background(), time.Second, 20*time.Millisecond) {
		t.Error("WaitForChestOpen = false for an open chest")
	}
	if d.WaitForGenericMenuOpen(context.Background(), 0, 0) != true {
		t.Error("a chest layout must be accepted as a generic menu")
	}

	closed := NewPanelDetector(staticPanel{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if closed.WaitForOpen(ctx, IsChestPanel, time.Minute, 10*time.Millisecond, 0) {
		t.Error("WaitForOpen = true with a cancelled context")
	}
	if closed.WaitForChestOpen(context.Background(), 60*time.Millisecond, 0) {
		t.Error("WaitForChestOpen = true for a closed panel")
	}
}
