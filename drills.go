// Package main - drills.go
//
// Drills are one-shot runs used to check a setup piece by piece before
// leaving the bot alone. Each one connects, does a single part of a
// session, then disconnects and stops:
//   - Transition: route carriers for one period (deposit or withdraw)
//   - Station: a full session limited to the first station
//   - Tour: teleport to every station without touching it
//   - Chat: stay connected for a while with the auto-reply running
package main

import (
	"fmt"
	"strings"
	"time"
)

// DrillKind selects a one-shot run
type DrillKind int

const (
	DrillNone DrillKind = iota
	DrillTransition
	DrillStation
	DrillTour
	DrillChat
)

// String returns the string representation of the drill kind
func (k DrillKind) String() string {
	switch k {
	case DrillNone:
		return "none"
	case DrillTransition:
		return "transition"
	case DrillStation:
		return "station"
	case DrillTour:
		return "tour"
	case DrillChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Drill describes a one-shot run
type Drill struct {
	Kind     DrillKind
	Phase    PeriodID      // DrillTransition
	Duration time.Duration // DrillChat
}

// TransitionDrill routes carriers for the named period. The name must be
// one of the configured periods, case-insensitive.
func TransitionDrill(cfg *Config, name string) (Drill, error) {
	for _, p := range cfg.Schedule.Periods {
		if strings.EqualFold(p.Name, name) {
			return Drill{Kind: DrillTransition, Phase: PeriodID(p.Name)}, nil
		}
	}
	names := make([]string, 0, len(cfg.Schedule.Periods))
	for _, p := range cfg.Schedule.Periods {
		names = append(names, p.Name)
	}
	return Drill{}, fmt.Errorf("unknown period %q (configured: %s)", name, strings.Join(names, ", "))
}

// stations returns the stations the drill visits
func (d Drill) stations(all []string) []string {
	if d.Kind == DrillStation && len(all) > 1 {
		return all[:1]
	}
	return all
}

// Waters reports whether the run may pour water
func (d Drill) Waters() bool {
	return d.Kind == DrillNone || d.Kind == DrillStation
}

// Harvests reports whether the run schedules the next harvest
func (d Drill) Harvests() bool {
	return d.Kind == DrillNone || d.Kind == DrillStation
}

// StartDrill runs a single drill session. Call it before the first tick.
func (c *BotController) StartDrill(d Drill) {
	c.drill = d
	LogInfo("Drill %s requested", d.Kind)
	c.Start(true)
}

// ChatIdle reports whether chat input cannot disturb the run: the player
// waits on a teleport or idles through a chat drill (tick goroutine only).
func (c *BotController) ChatIdle() bool {
	switch c.s.State {
	case StateWaitingTeleport:
		return true
	case StateWaitingConnection:
		return c.drill.Kind == DrillChat && c.step == 2
	}
	return false
}
