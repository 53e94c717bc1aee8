// Package main - schedule.go
//
// ScheduleGate maps wall-clock time to named periods and guards the daily
// server restart window.
//
// Periods are ordered by start time. The time before the first boundary of
// the day belongs to the last period, so the schedule wraps over midnight.
// The restart window is [start, end) and may also cross midnight.
//
// The gate is stateless: the controller persists the previous period and
// passes it back to DetectTransition, which is what makes a boundary fire
// once even across restarts.
package main

import (
	"fmt"
	"sort"
	"time"
)

// PeriodID names a schedule period
type PeriodID string

const (
	PeriodMorning PeriodID = "Morning"
	PeriodDay     PeriodID = "Day"
)

// CarrierAction is what the controller does with carriers when a period begins
type CarrierAction string

const (
	CarrierNone     CarrierAction = "none"
	CarrierDeposit  CarrierAction = "deposit"
	CarrierWithdraw CarrierAction = "withdraw"
)

const secondsPerDay = 24 * 60 * 60

type period struct {
	id     PeriodID
	start  int // seconds of day
	action CarrierAction
}

// ScheduleGate answers time-of-day questions for the controller
type ScheduleGate struct {
	periods     []period
	windowStart int
	windowEnd   int
}

// parseClock parses "HH:MM" into seconds of day
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// NewScheduleGate builds a gate from the schedule configuration
func NewScheduleGate(cfg ScheduleConfig) (*ScheduleGate, error) {
	if len(cfg.Periods) == 0 {
		return nil, fmt.Errorf("schedule has no periods")
	}

	g := &ScheduleGate{}
	seen := make(map[string]bool)
	for _, p := range cfg.Periods {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate period %q", p.Name)
		}
		seen[p.Name] = true

		start, err := parseClock(p.Start)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", p.Name, err)
		}
		action := CarrierAction(p.Carriers)
		if action == "" {
			action = CarrierNone
		}
		g.periods = append(g.periods, period{id: PeriodID(p.Name), start: start, action: action})
	}
	sort.SliceStable(g.periods, func(i, j int) bool {
		return g.periods[i].start < g.periods[j].start
	})

	if cfg.RestartWindow.Start != "" || cfg.RestartWindow.End != "" {
		var err error
		if g.windowStart, err = parseClock(cfg.RestartWindow.Start); err != nil {
			return nil, fmt.Errorf("restart window: %w", err)
		}
		if g.windowEnd, err = parseClock(cfg.RestartWindow.End); err != nil {
			return nil, fmt.Errorf("restart window: %w", err)
		}
	}
	return g, nil
}

func (g *ScheduleGate) periodAt(now time.Time) period {
	sec := secondsOfDay(now)
	current := g.periods[len(g.periods)-1]
	for _, p := range g.periods {
		if p.start <= sec {
			current = p
		}
	}
	return current
}

// CurrentPeriod returns the period active at now
func (g *ScheduleGate) CurrentPeriod(now time.Time) PeriodID {
	return g.periodAt(now).id
}

// PeriodAction returns the carrier action configured for a period
func (g *ScheduleGate) PeriodAction(id PeriodID) CarrierAction {
	for _, p := range g.periods {
		if p.id == id {
			return p.action
		}
	}
	return CarrierNone
}

// IsRestartWindow reports whether now falls inside the restart window
func (g *ScheduleGate) IsRestartWindow(now time.Time) bool {
	if g.windowStart == g.windowEnd {
		return false
	}
	sec := secondsOfDay(now)
	if g.windowStart < g.windowEnd {
		return sec >= g.windowStart && sec < g.windowEnd
	}
	// Crosses midnight
	return sec >= g.windowStart || sec < g.windowEnd
}

// WaitUntilRestartWindowClears returns the earliest instant at or after
// now that lies outside the restart window.
func (g *ScheduleGate) WaitUntilRestartWindowClears(now time.Time) time.Time {
	if !g.IsRestartWindow(now) {
		return now
	}
	sec := secondsOfDay(now)
	wait := g.windowEnd - sec
	if wait <= 0 {
		wait += secondsPerDay
	}
	clear := now.Add(time.Duration(wait) * time.Second)
	// Drop sub-second residue so the result lands on the boundary
	return clear.Truncate(time.Second)
}

// DetectTransition returns the period active at now when it differs from
// previous. The caller persists the returned period.
func (g *ScheduleGate) DetectTransition(previous PeriodID, now time.Time) (PeriodID, bool) {
	current := g.CurrentPeriod(now)
	if current == previous {
		return "", false
	}
	return current, true
}
