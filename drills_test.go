package main

import (
	"strings"
	"testing"
	"time"
)

// runDrillSession ticks until the drill session ends
func (f *farmFixture) runDrillSession(d Drill, limit time.Duration) {
	f.t.Helper()
	f.ctrl.StartDrill(d)
	done := f.runUntil(50*time.Millisecond, limit, func() bool {
		return f.ctrl.State() == StateIdle && !f.ctrl.Running()
	})
	if !done {
		f.t.Fatalf("drill %s still in %s after %v\n%s", d.Kind, f.ctrl.State(), limit, f.path())
	}
	f.assertValidTransitions()
}

func TestTransitionDrillRoutesCarriersOnly(t *testing.T) {
	f := newFarmFixture(t, func(_ *Config, rec *LedgerRecord) {
		rec.CarrierMode = 1
	})
	d, err := TransitionDrill(f.cfg, "day")
	if err != nil {
		t.Fatal(err)
	}
	f.runDrillSession(d, 5*time.Minute)

	if got := strings.Join(f.game.teleports, ","); got != "coffre2" {
		t.Errorf("teleports = %s, want the supply chest only", got)
	}
	if got := f.model.HotbarSlot(0); got.Count != 16 {
		t.Errorf("hotbar[0] = %+v, want 16 carriers", got)
	}
	if f.store.rec.PreviousPeriod != PeriodDay || f.store.rec.CarrierMode != 16 {
		t.Errorf("record period %s carrier mode %d", f.store.rec.PreviousPeriod, f.store.rec.CarrierMode)
	}
	if f.game.connects != 1 || f.game.disconnects != 1 {
		t.Errorf("connects %d disconnects %d", f.game.connects, f.game.disconnects)
	}
	if f.entered(StateTeleporting) != 0 {
		t.Error("transition drill visited a station")
	}
	if len(f.journal.recs) != 1 || f.journal.recs[0].StationsCompleted != 0 {
		t.Errorf("journal = %+v", f.journal.recs)
	}
}

func TestTransitionDrillRejectsUnknownPeriod(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := TransitionDrill(cfg, "noon"); err == nil || !strings.Contains(err.Error(), "Morning, Day") {
		t.Errorf("err = %v", err)
	}
	d, err := TransitionDrill(cfg, "MORNING")
	if err != nil || d.Phase != PeriodMorning || d.Kind != DrillTransition {
		t.Errorf("drill = %+v, %v", d, err)
	}
}

func TestStationDrillVisitsFirstStation(t *testing.T) {
	f := newFarmFixture(t, nil)
	f.runDrillSession(Drill{Kind: DrillStation}, 5*time.Minute)

	if got := strings.Join(f.game.teleports, ","); got != "ferme1" {
		t.Errorf("teleports = %s", got)
	}
	s := f.ctrl.Session()
	if s.StationsCompleted != 1 || s.TotalStations != 1 {
		t.Errorf("completed %d of %d, want 1 of 1", s.StationsCompleted, s.TotalStations)
	}
	if f.game.pours["ferme1"] != 3 || f.entered(StateHarvesting) != 1 {
		t.Errorf("pours %d harvests %d", f.game.pours["ferme1"], f.entered(StateHarvesting))
	}
}

func TestTourDrillTeleportsWithoutFarming(t *testing.T) {
	f := newFarmFixture(t, func(cfg *Config, _ *LedgerRecord) {
		cfg.Plant.Type = "Tomates"
	})
	refilledAt := f.store.rec.LastWaterRefillTime
	f.runDrillSession(Drill{Kind: DrillTour}, 5*time.Minute)

	if got := strings.Join(f.game.teleports, ","); got != "ferme1,ferme2,ferme3,ferme4,ferme5" {
		t.Errorf("teleports = %s", got)
	}
	if n := f.entered(StateOpeningStation) + f.entered(StateFillingWater); n != 0 {
		t.Errorf("tour touched stations %d times", n)
	}
	if len(f.game.pours) != 0 {
		t.Errorf("pours = %v", f.game.pours)
	}
	if s := f.ctrl.Session(); s.StationsCompleted != 0 || s.RefillWater {
		t.Errorf("completed %d refill %v", s.StationsCompleted, s.RefillWater)
	}
	if !f.store.rec.LastWaterRefillTime.Equal(refilledAt) || !f.store.rec.NextHarvestDue.IsZero() {
		t.Errorf("tour changed the water or harvest schedule: %+v", f.store.rec)
	}
	if f.game.disconnects != 1 {
		t.Errorf("disconnects = %d", f.game.disconnects)
	}
}

func TestChatDrillStaysConnected(t *testing.T) {
	f := newFarmFixture(t, nil)
	f.ctrl.StartDrill(Drill{Kind: DrillChat, Duration: 2 * time.Minute})

	f.runUntil(50*time.Millisecond, time.Minute, func() bool { return f.ctrl.ChatIdle() })
	if !f.ctrl.ChatIdle() || f.ctrl.State() != StateWaitingConnection {
		t.Fatalf("state %s chat idle %v", f.ctrl.State(), f.ctrl.ChatIdle())
	}
	joined := f.ctrl.ConnectedAt()

	f.runUntilState(StateDisconnecting, 5*time.Minute)
	if stay := f.game.now.Sub(joined); stay < 2*time.Minute || stay > 2*time.Minute+time.Second {
		t.Errorf("stayed %v, want 2m", stay)
	}
	f.runUntilState(StateIdle, time.Minute)
	if len(f.game.teleports) != 0 || f.ctrl.Running() {
		t.Errorf("teleports %v running %v", f.game.teleports, f.ctrl.Running())
	}
	f.assertValidTransitions()
}

func TestChatIdleOnlyWhileWaiting(t *testing.T) {
	f := newFarmFixture(t, nil)
	f.ctrl.Start(true)

	idle := map[BotState]bool{}
	f.runUntil(50*time.Millisecond, 10*time.Minute, func() bool {
		if f.ctrl.ChatIdle() {
			idle[f.ctrl.State()] = true
		}
		return f.ctrl.State() == StateIdle && !f.ctrl.Running()
	})
	if len(idle) != 1 || !idle[StateWaitingTeleport] {
		t.Errorf("chat idle in %v, want WaitingTeleport only", idle)
	}
}
