package main

import (
	"testing"
	"time"
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 3, 14, hh, mm, ss, 0, time.Local)
}

func defaultGate(t *testing.T) *ScheduleGate {
	t.Helper()
	g, err := NewScheduleGate(DefaultConfig().Schedule)
	if err != nil {
		t.Fatalf("NewScheduleGate: %v", err)
	}
	return g
}

func TestCurrentPeriod(t *testing.T) {
	g := defaultGate(t)
	tests := []struct {
		now  time.Time
		want PeriodID
	}{
		{at(0, 0, 0), PeriodDay},
		{at(6, 29, 59), PeriodDay},
		{at(6, 30, 0), PeriodMorning},
		{at(11, 29, 59), PeriodMorning},
		{at(11, 30, 0), PeriodDay},
		{at(23, 59, 59), PeriodDay},
	}
	for _, tt := range tests {
		if got := g.CurrentPeriod(tt.now); got != tt.want {
			t.Errorf("CurrentPeriod(%s) = %s, want %s", tt.now.Format("15:04:05"), got, tt.want)
		}
	}
}

func TestPeriodAction(t *testing.T) {
	g := defaultGate(t)
	if got := g.PeriodAction(PeriodMorning); got != CarrierDeposit {
		t.Errorf("Morning action = %s, want deposit", got)
	}
	if got := g.PeriodAction(PeriodDay); got != CarrierWithdraw {
		t.Errorf("Day action = %s, want withdraw", got)
	}
	if got := g.PeriodAction("Night"); got != CarrierNone {
		t.Errorf("unknown period action = %s, want none", got)
	}
}

func TestRestartWindow(t *testing.T) {
	g := defaultGate(t)
	tests := []struct {
		now  time.Time
		want bool
	}{
		{at(5, 49, 59), false},
		{at(5, 50, 0), true},
		{at(6, 15, 0), true},
		{at(6, 29, 59), true},
		{at(6, 30, 0), false},
	}
	for _, tt := range tests {
		if got := g.IsRestartWindow(tt.now); got != tt.want {
			t.Errorf("IsRestartWindow(%s) = %v, want %v", tt.now.Format("15:04:05"), got, tt.want)
		}
	}

	clear := g.WaitUntilRestartWindowClears(at(6, 0, 0))
	if !clear.Equal(at(6, 30, 0)) {
		t.Errorf("WaitUntilRestartWindowClears(06:00) = %s, want 06:30", clear.Format("15:04:05"))
	}
	outside := at(9, 0, 0)
	if got := g.WaitUntilRestartWindowClears(outside); !got.Equal(outside) {
		t.Errorf("WaitUntilRestartWindowClears outside the window moved to %s", got)
	}
}

func TestRestartWindowAcrossMidnight(t *testing.T) {
	cfg := DefaultConfig().Schedule
	cfg.RestartWindow = WindowConfig{Start: "23:30", End: "00:15"}
	g, err := NewScheduleGate(cfg)
	if err != nil {
		t.Fatalf("NewScheduleGate: %v", err)
	}
	if !g.IsRestartWindow(at(23, 45, 0)) || !g.IsRestartWindow(at(0, 5, 0)) {
		t.Error("window crossing midnight not detected")
	}
	if g.IsRestartWindow(at(0, 15, 0)) || g.IsRestartWindow(at(23, 29, 0)) {
		t.Error("instant outside the window reported inside")
	}
	clear := g.WaitUntilRestartWindowClears(at(23, 45, 0))
	want := at(0, 15, 0).AddDate(0, 0, 1)
	if !clear.Equal(want) {
		t.Errorf("clears at %s, want %s", clear, want)
	}
}

func TestEmptyRestartWindow(t *testing.T) {
	cfg := DefaultConfig().Schedule
	cfg.RestartWindow = WindowConfig{Start: "06:00", End: "06:00"}
	g, err := NewScheduleGate(cfg)
	if err != nil {
		t.Fatalf("NewScheduleGate: %v", err)
	}
	if g.IsRestartWindow(at(6, 0, 0)) {
		t.Error("start == end must be an empty window")
	}
}

func TestNewScheduleGateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  ScheduleConfig
	}{
		{"no periods", ScheduleConfig{}},
		{"duplicate", ScheduleConfig{Periods: []PeriodConfig{{Name: "Day", Start: "06:00"}, {Name: "Day", Start: "12:00"}}}},
		{"bad clock", ScheduleConfig{Periods: []PeriodConfig{{Name: "Day", Start: "6h30"}}}},
		{"bad window", ScheduleConfig{
			Periods:       []PeriodConfig{{Name: "Day", Start: "06:00"}},
			RestartWindow: WindowConfig{Start: "05:00", End: "later"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduleGate(tt.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// An hour of 50ms ticks across the 06:30 boundary must report exactly one
// transition when the caller stores what it is given.
func TestDetectTransitionFiresOnce(t *testing.T) {
	g := defaultGate(t)
	previous := PeriodDay
	fired := 0
	start := at(6, 0, 0)
	for now := start; now.Before(start.Add(time.Hour)); now = now.Add(50 * time.Millisecond) {
		if next, ok := g.DetectTransition(previous, now); ok {
			fired++
			if next != PeriodMorning {
				t.Fatalf("transition to %s at %s, want Morning", next, now.Format("15:04:05"))
			}
			if now.Before(at(6, 30, 0)) {
				t.Fatalf("transition fired early at %s", now.Format("15:04:05.000"))
			}
			previous = next
		}
	}
	if fired != 1 {
		t.Errorf("transition fired %d times, want 1", fired)
	}
}

func TestDetectTransitionAfterRestart(t *testing.T) {
	g := defaultGate(t)
	// The persisted period already matches: a restart must not fire again.
	if _, ok := g.DetectTransition(PeriodMorning, at(7, 0, 0)); ok {
		t.Error("transition fired for an already stored period")
	}
	if next, ok := g.DetectTransition(PeriodMorning, at(12, 0, 0)); !ok || next != PeriodDay {
		t.Errorf("DetectTransition(Morning, 12:00) = %s, %v; want Day, true", next, ok)
	}
}
