// Package main - farming.go
//
// This file implements the BotController: the tick-driven state machine
// that runs farming sessions.
//
// Session Lifecycle:
//   Idle -> WaitingStartup (first start only) -> Connecting -> WaitingConnection
//   WaitingConnection -> ManagingBuckets (period changed since last session)
//   WaitingConnection -> RecoveringBuckets (reconnect after crash or event)
//   WaitingConnection -> Teleporting
//
// Station Loop (one pass per configured station):
//   Teleporting -> WaitingTeleport -> OpeningStation -> Harvesting -> Planting
//   Planting -> FillingWater (refill session) or NextStation
//   Planting -> FetchingSeeds -> Teleporting (seed slot empty)
//   FillingWater <-> RefillingBuckets (carriers used up mid-station)
//   WaitingTeleport -> FillingWater (water-only session)
//   NextStation -> Teleporting, or EmptyingRemainingBuckets after the last one
//
// Session End:
//   EmptyingRemainingBuckets -> Disconnecting -> Paused -> Idle -> next session
//
// Recovery:
//   - Unexpected disconnect in a connected state: Paused (crash backoff),
//     then Connecting, keeping the station cursor
//   - Server event line in the log: Disconnecting, Paused (event pause),
//     then Connecting with a full water refill owed
//   - Retryable error: back to a checkpoint state, up to max_retries
//   - Too many retries: Error -> Paused (error backoff)
//   - Supply exhausted or config error: Error -> Idle, run stopped
//
// Every transition goes through setState, which rejects edges that are
// not in the transitions table.
//
// Timing:
// One Tick per 50ms. No state blocks; waits are deadlines checked on
// later ticks (wait/waitCooldown) and panel waits are polled PanelWaits.
package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BotState is the active state of the controller
type BotState int

const (
	StateIdle BotState = iota
	StateWaitingStartup
	StateConnecting
	StateWaitingConnection
	StateManagingBuckets
	StateTeleporting
	StateWaitingTeleport
	StateOpeningStation
	StateHarvesting
	StatePlanting
	StateFillingWater
	StateRefillingBuckets
	StateNextStation
	StateEmptyingRemainingBuckets
	StateRecoveringBuckets
	StateFetchingSeeds
	StateDisconnecting
	StatePaused
	StateError
)

// String returns the string representation of the state
func (s BotState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWaitingStartup:
		return "WaitingStartup"
	case StateConnecting:
		return "Connecting"
	case StateWaitingConnection:
		return "WaitingConnection"
	case StateManagingBuckets:
		return "ManagingBuckets"
	case StateTeleporting:
		return "Teleporting"
	case StateWaitingTeleport:
		return "WaitingTeleport"
	case StateOpeningStation:
		return "OpeningStation"
	case StateHarvesting:
		return "Harvesting"
	case StatePlanting:
		return "Planting"
	case StateFillingWater:
		return "FillingWater"
	case StateRefillingBuckets:
		return "RefillingBuckets"
	case StateNextStation:
		return "NextStation"
	case StateEmptyingRemainingBuckets:
		return "EmptyingRemainingBuckets"
	case StateRecoveringBuckets:
		return "RecoveringBuckets"
	case StateFetchingSeeds:
		return "FetchingSeeds"
	case StateDisconnecting:
		return "Disconnecting"
	case StatePaused:
		return "Paused"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// connected reports whether the state runs while logged in to the server
func (s BotState) connected() bool {
	return s >= StateWaitingConnection && s <= StateDisconnecting
}

// transitions lists every allowed edge. Error is reachable from every state.
var transitions = map[BotState][]BotState{
	StateIdle:                     {StateWaitingStartup, StateConnecting},
	StateWaitingStartup:           {StateConnecting, StateIdle},
	StateConnecting:               {StateWaitingConnection, StateIdle},
	StateWaitingConnection:        {StateManagingBuckets, StateRecoveringBuckets, StateTeleporting, StateConnecting, StateDisconnecting, StatePaused},
	StateManagingBuckets:          {StateManagingBuckets, StateTeleporting, StateDisconnecting, StatePaused},
	StateTeleporting:              {StateWaitingTeleport, StateDisconnecting, StatePaused},
	StateWaitingTeleport:          {StateOpeningStation, StateFillingWater, StateNextStation, StateTeleporting, StateDisconnecting, StatePaused},
	StateOpeningStation:           {StateHarvesting, StateNextStation, StateTeleporting, StateDisconnecting, StatePaused},
	StateHarvesting:               {StatePlanting, StateTeleporting, StateDisconnecting, StatePaused},
	StatePlanting:                 {StateFillingWater, StateNextStation, StateFetchingSeeds, StateTeleporting, StateDisconnecting, StatePaused},
	StateFillingWater:             {StateNextStation, StateRefillingBuckets, StateTeleporting, StateDisconnecting, StatePaused},
	StateRefillingBuckets:         {StateFillingWater, StateTeleporting, StateDisconnecting, StatePaused},
	StateNextStation:              {StateTeleporting, StateEmptyingRemainingBuckets, StateDisconnecting, StatePaused},
	StateEmptyingRemainingBuckets: {StateDisconnecting, StatePaused},
	StateRecoveringBuckets:        {StateRecoveringBuckets, StateTeleporting, StateDisconnecting, StatePaused},
	StateFetchingSeeds:            {StateFetchingSeeds, StateTeleporting, StateDisconnecting, StatePaused},
	StateDisconnecting:            {StatePaused, StateIdle},
	StatePaused:                   {StateIdle, StateConnecting},
	StateError:                    {StateIdle, StatePaused},
}

// CanTransition reports whether from -> to is an edge of the state machine
func CanTransition(from, to BotState) bool {
	if to == StateError && from != StateError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PositionSource reports the player position when the integration can
type PositionSource interface {
	Position() (Point3, bool)
}

// Collaborators are the adapters the controller talks to
type Collaborators struct {
	Actuator  Actuator
	Panels    PanelObserver
	Inventory InventoryView
	Logs      LogWatcher
	Position  PositionSource // optional
}

// SessionState is the controller's mutable state. Only the controller's
// own tick touches it.
type SessionState struct {
	State             BotState
	StationIndex      int
	TotalStations     int
	StationsCompleted int

	SessionStartTime time.Time
	CycleStartTime   time.Time
	PauseEndTime     time.Time
	StartupEndTime   time.Time

	IsWaterOnlySession      bool
	RefillWater             bool
	WaterRefillsRemaining   int
	IsFirstStationOfSession bool

	PositionBeforeTeleport *Point3

	IsEventPause           bool
	CanReconnectAfterEvent bool
	ForceFullWaterRefill   bool

	IsCrashReconnectPause bool
	StateBeforeCrash      *BotState

	ErrorMessage    string
	ErrorType       ErrorKind
	ErrorRetryCount int

	CachedStations []string
}

// Status is the read-only snapshot shown by the tray, the status feed and
// the CLI.
type Status struct {
	State             string    `json:"state"`
	Running           bool      `json:"running"`
	Station           string    `json:"station"`
	StationIndex      int       `json:"station_index"`
	TotalStations     int       `json:"total_stations"`
	StationsCompleted int       `json:"stations_completed"`
	WaterOnly         bool      `json:"water_only"`
	RefillWater       bool      `json:"refill_water"`
	ErrorKind         string    `json:"error_kind"`
	ErrorMessage      string    `json:"error_message"`
	RetryCount        int       `json:"retry_count"`
	PauseEnd          time.Time `json:"pause_end"`
	Period            string    `json:"period"`
	CarriersFull      int       `json:"carriers_full"`
	CarriersEmpty     int       `json:"carriers_empty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BotController runs farming sessions
type BotController struct {
	cfgSrc  func() *Config
	cfg     *Config // session snapshot
	col     Collaborators
	store   LedgerStore
	journal SessionRecorder
	stats   *Statistics

	panels   *PanelDetector
	ledger   *ResourceLedger
	schedule *ScheduleGate
	cycle    StationCycle

	s      SessionState
	record LedgerRecord

	now          time.Time
	tick         uint64
	enteredAt    time.Time
	step         int
	waitUntil    time.Time
	panelWait    *PanelWait
	visit        *chestVisit
	held         map[string]bool
	startupDone  bool
	stopHandled  bool
	stationSkip  bool // current station failed; not counted as completed
	faultKind    ErrorKind
	faultMsg     string // last station failure of the session, for the journal
	resumed      bool // session continues after a crash or event reconnect
	connectAt    time.Time
	connectedAt  time.Time
	eventSeenAt  time.Time
	teleportAt   time.Time
	fillSince    time.Time
	pours        int
	pendingPhase PeriodID
	errorFrom    BotState
	drill        Drill

	stopRequested atomic.Bool
	running       atomic.Bool
	once          bool

	// OnTransition is called after every state change, on the tick goroutine
	OnTransition func(from, to BotState)

	status   Status
	statusMu sync.RWMutex
}

// NewBotController creates a controller. cfgSrc is read once per session.
func NewBotController(cfgSrc func() *Config, col Collaborators, store LedgerStore, journal SessionRecorder, stats *Statistics) (*BotController, error) {
	cfg := cfgSrc()
	schedule, err := NewScheduleGate(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if stats == nil {
		stats = NewStatistics()
	}

	c := &BotController{
		cfgSrc:   cfgSrc,
		cfg:      cfg,
		col:      col,
		store:    store,
		journal:  journal,
		stats:    stats,
		schedule: schedule,
		held:     make(map[string]bool),
	}
	c.record = store.Load()
	c.s.WaterRefillsRemaining = c.record.WaterRefillsRemaining
	c.s.ForceFullWaterRefill = c.record.ForceFullWaterRefill
	c.buildSessionParts(cfg)
	c.ledger.Restore(c.record.CarrierSlot)
	c.publishStatus()
	return c, nil
}

func (c *BotController) buildSessionParts(cfg *Config) {
	c.panels = NewPanelDetector(c.col.Panels, cfg.Screen.StationTitles)
	c.ledger = NewResourceLedger(c.col.Inventory, c.col.Actuator, cfg.Inventory.CarrierSlots,
		cfg.Inventory.FullKind, cfg.Inventory.EmptyKind)
	c.ledger.SetOnChange(func() {
		c.record.CarrierSlot = c.ledger.Selected()
		c.persist()
	})
}

// Start lets the controller run sessions. once stops after one session.
func (c *BotController) Start(once bool) {
	c.once = once
	c.stopRequested.Store(false)
	c.running.Store(true)
	LogInfo("Bot started (single session: %v)", once)
}

// RequestStop asks the controller to wind down at the next tick
func (c *BotController) RequestStop() {
	if c.running.Load() {
		LogInfo("Stop requested")
	}
	c.stopRequested.Store(true)
}

// Running reports whether sessions are enabled
func (c *BotController) Running() bool {
	return c.running.Load()
}

// State returns the active state (tick goroutine only)
func (c *BotController) State() BotState {
	return c.s.State
}

// ConnectedAt returns when the last login was confirmed (tick goroutine only)
func (c *BotController) ConnectedAt() time.Time {
	return c.connectedAt
}

// Session returns a copy of the session state (tick goroutine only)
func (c *BotController) Session() SessionState {
	out := c.s
	out.CachedStations = append([]string(nil), c.s.CachedStations...)
	return out
}

// Status returns the latest snapshot. Safe from any goroutine.
func (c *BotController) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Tick advances the state machine by one step
func (c *BotController) Tick(now time.Time) {
	c.now = now
	c.tick++

	defer c.publishStatus()

	if c.stopRequested.Load() {
		if c.handleStop() {
			return
		}
	}

	if c.s.State.connected() && c.s.State != StateWaitingConnection && c.s.State != StateDisconnecting {
		if c.checkCrash() || c.checkEvent() {
			return
		}
	}

	if c.waitCooldown() {
		return
	}

	c.runStateMachine()
}

func (c *BotController) runStateMachine() {
	switch c.s.State {
	case StateIdle:
		c.onIdle()
	case StateWaitingStartup:
		c.onWaitingStartup()
	case StateConnecting:
		c.onConnecting()
	case StateWaitingConnection:
		c.onWaitingConnection()
	case StateManagingBuckets:
		c.onManagingBuckets()
	case StateTeleporting:
		c.onTeleporting()
	case StateWaitingTeleport:
		c.onWaitingTeleport()
	case StateOpeningStation:
		c.onOpeningStation()
	case StateHarvesting:
		c.onHarvesting()
	case StatePlanting:
		c.onPlanting()
	case StateFillingWater:
		c.onFillingWater()
	case StateRefillingBuckets:
		c.onRefillingBuckets()
	case StateNextStation:
		c.onNextStation()
	case StateEmptyingRemainingBuckets:
		c.onEmptyingRemainingBuckets()
	case StateRecoveringBuckets:
		c.onRecoveringBuckets()
	case StateFetchingSeeds:
		c.onFetchingSeeds()
	case StateDisconnecting:
		c.onDisconnecting()
	case StatePaused:
		c.onPaused()
	case StateError:
		c.onError()
	}
}

// setState moves to a new state along a table edge and resets the
// per-state scratch fields.
func (c *BotController) setState(to BotState) {
	from := c.s.State
	if !CanTransition(from, to) {
		LogError("Rejected transition %s -> %s", from, to)
		c.s.ErrorType = ErrorUnknown
		c.s.ErrorMessage = fmt.Sprintf("invalid transition %s -> %s", from, to)
		to = StateError
	}

	if to == StateError && from != StateError {
		c.errorFrom = from
	}
	c.s.State = to
	c.enteredAt = c.now
	c.step = 0
	c.panelWait = nil
	c.visit = nil
	if to == StateFillingWater && from != StateRefillingBuckets {
		c.fillSince = c.now
		c.pours = 0
	}

	if from != to {
		LogDebug("State %s -> %s", from, to)
	}
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

// wait defers the next state step
func (c *BotController) wait(d time.Duration) {
	until := c.now.Add(d)
	if until.After(c.waitUntil) {
		c.waitUntil = until
	}
}

func (c *BotController) waitCooldown() bool {
	return c.now.Before(c.waitUntil)
}

func (c *BotController) clearWait() {
	c.waitUntil = time.Time{}
}

func (c *BotController) press(key string) {
	c.col.Actuator.PressKey(key)
}

func (c *BotController) hold(key string) {
	c.held[key] = true
	c.col.Actuator.HoldKey(key)
}

func (c *BotController) release(key string) {
	delete(c.held, key)
	c.col.Actuator.ReleaseKey(key)
}

func (c *BotController) releaseAll() {
	for key := range c.held {
		c.release(key)
	}
}

func (c *BotController) persist() {
	c.record.WaterRefillsRemaining = c.s.WaterRefillsRemaining
	c.record.ForceFullWaterRefill = c.s.ForceFullWaterRefill
	if err := c.store.Save(c.record); err != nil {
		LogError("Failed to save state: %v", err)
	}
}

// handleStop fast-paths to Disconnecting (connected) or Idle. It returns
// true when the tick was consumed.
func (c *BotController) handleStop() bool {
	switch {
	case c.s.State == StateIdle:
		c.running.Store(false)
		return true
	case c.s.State == StateDisconnecting, c.s.State == StateError:
		// onError still has to disconnect and record the session
		return false
	case c.s.State.connected():
		if c.stopHandled {
			return false
		}
		c.stopHandled = true
		LogInfo("Stopping: disconnecting from %s", c.s.State)
		c.releaseAll()
		c.clearWait()
		c.setState(StateDisconnecting)
		return true
	default:
		LogInfo("Stopping from %s", c.s.State)
		c.releaseAll()
		c.clearWait()
		c.running.Store(false)
		c.setState(StateIdle)
		return true
	}
}

// checkCrash looks for an unexpected disconnect since the connection was
// confirmed.
func (c *BotController) checkCrash() bool {
	if !c.col.Logs.ObservedSince(c.connectedAt, c.cfg.Patterns.Disconnected) {
		return false
	}

	before := c.s.State
	LogWarn("Connection lost during %s (station %d/%d)", before, c.s.StationIndex+1, c.s.TotalStations)

	c.s.StateBeforeCrash = &before
	c.s.IsCrashReconnectPause = true
	c.s.PauseEndTime = c.now.Add(time.Duration(c.cfg.Recovery.CrashBackoff) * time.Second)
	c.releaseAll()
	c.clearWait()
	c.persist()
	c.setState(StatePaused)
	return true
}

// checkEvent looks for the configured server event line (forced teleport,
// world event) and pauses the session.
func (c *BotController) checkEvent() bool {
	since := c.connectedAt
	if c.eventSeenAt.After(since) {
		since = c.eventSeenAt
	}
	if !c.col.Logs.ObservedSince(since, c.cfg.Patterns.Event) {
		return false
	}

	LogWarn("Server event during %s, pausing %ds", c.s.State, c.cfg.Recovery.EventPause)
	c.eventSeenAt = c.now.Add(time.Millisecond)
	c.s.IsEventPause = true
	c.s.CanReconnectAfterEvent = true
	c.s.ForceFullWaterRefill = true
	c.releaseAll()
	c.clearWait()
	c.persist()
	c.setState(StateDisconnecting)
	return true
}

// fail classifies err and applies the recovery policy
func (c *BotController) fail(err error) {
	c.handleError(ClassifyErr(err), err.Error())
}

// handleError records an error and either retries from a checkpoint or
// escalates to the Error state.
func (c *BotController) handleError(kind ErrorKind, msg string) {
	c.s.ErrorType = kind
	c.s.ErrorMessage = msg
	c.releaseAll()

	if !kind.Recoverable() {
		LogError("%s: %s", kind, msg)
		c.setState(StateError)
		return
	}

	c.s.ErrorRetryCount++
	if c.s.ErrorRetryCount > c.cfg.Recovery.MaxRetries {
		LogError("%s: %s (retry cap %d reached)", kind, msg, c.cfg.Recovery.MaxRetries)
		c.setState(StateError)
		return
	}

	checkpoint := c.checkpoint()
	LogWarn("%s: %s (retry %d/%d from %s)", kind, msg, c.s.ErrorRetryCount, c.cfg.Recovery.MaxRetries, checkpoint)
	if c.s.State.connected() && c.panels.Classify().Type != PanelNone {
		c.press(c.cfg.Keys.Escape)
	}
	c.wait(ms(c.cfg.Timing.ActionDelay))
	c.setState(checkpoint)
}

// checkpoint returns the state a retry restarts from
func (c *BotController) checkpoint() BotState {
	switch c.s.State {
	case StateConnecting, StateWaitingConnection:
		return StateConnecting
	case StateManagingBuckets, StateRecoveringBuckets, StateFetchingSeeds:
		return c.s.State
	case StateTeleporting, StateWaitingTeleport, StateOpeningStation, StateHarvesting,
		StatePlanting, StateFillingWater, StateRefillingBuckets, StateNextStation:
		return StateTeleporting
	default:
		return StateError
	}
}

func (c *BotController) clearError() {
	c.s.ErrorType = ErrorNone
	c.s.ErrorMessage = ""
	c.s.ErrorRetryCount = 0
}

// onIdle starts a session when the bot is running
func (c *BotController) onIdle() {
	if !c.running.Load() {
		return
	}

	if !c.startupDone {
		c.startupDone = true
		delay := time.Duration(c.cfgSrc().StartupDelay) * time.Second
		if delay > 0 {
			c.s.StartupEndTime = c.now.Add(delay)
			LogInfo("Starting in %v", delay)
			c.setState(StateWaitingStartup)
			return
		}
	}

	if c.deferForRestartWindow() {
		return
	}
	if c.beginSession() {
		c.setState(StateConnecting)
	}
}

func (c *BotController) onWaitingStartup() {
	if c.now.Before(c.s.StartupEndTime) {
		return
	}
	if c.deferForRestartWindow() {
		return
	}
	if c.beginSession() {
		c.setState(StateConnecting)
	}
}

// deferForRestartWindow waits out the server restart window
func (c *BotController) deferForRestartWindow() bool {
	if !c.schedule.IsRestartWindow(c.now) {
		return false
	}
	clear := c.schedule.WaitUntilRestartWindowClears(c.now)
	LogInfo("Server restart window, waiting until %s", clear.Format("15:04"))
	c.waitUntil = clear
	return true
}

// beginSession snapshots the configuration and resets the per-session
// counters. It returns false when the session cannot start.
func (c *BotController) beginSession() bool {
	cfg := c.cfgSrc()
	schedule, err := NewScheduleGate(cfg.Schedule)
	if err != nil {
		c.s.ErrorType = ErrorConfig
		c.s.ErrorMessage = fmt.Sprintf("invalid config: %v", err)
		c.setState(StateError)
		return false
	}
	c.cfg = cfg
	c.schedule = schedule
	c.buildSessionParts(cfg)
	c.ledger.Restore(c.record.CarrierSlot)

	if len(cfg.Stations) == 0 {
		c.s.ErrorType = ErrorConfig
		c.s.ErrorMessage = ErrNoStations.Error()
		LogError("%s", ErrNoStations)
		c.setState(StateError)
		return false
	}

	c.cycle.Load(c.drill.stations(cfg.Stations))
	c.s.CachedStations = c.cycle.Stations()
	c.s.TotalStations = c.cycle.Len()
	c.s.StationIndex = 0
	c.s.StationsCompleted = 0
	c.s.SessionStartTime = c.now
	c.s.CycleStartTime = time.Time{}
	c.s.IsFirstStationOfSession = true
	c.s.IsCrashReconnectPause = false
	c.s.StateBeforeCrash = nil
	c.s.IsEventPause = false
	c.s.CanReconnectAfterEvent = false
	c.stopHandled = false
	c.resumed = false
	c.stationSkip = false
	c.faultKind, c.faultMsg = ErrorNone, ""
	c.clearError()

	c.s.IsWaterOnlySession = !c.record.NextHarvestDue.IsZero() && c.now.Before(c.record.NextHarvestDue.Add(-time.Minute))
	if c.drill.Waters() {
		c.decideWaterRefill()
	} else {
		c.s.RefillWater = false
	}

	LogInfo("Session starting: %d stations, water refill=%v, water only=%v",
		c.s.TotalStations, c.s.RefillWater, c.s.IsWaterOnlySession)
	return true
}

// decideWaterRefill decides whether this session pours water. Water lasts
// water.duration_hours; a session refills when the water would run out
// (minus the margin) before the session after it.
func (c *BotController) decideWaterRefill() {
	cfg := c.cfg
	refill := false

	switch {
	case c.record.LastWaterRefillTime.IsZero():
		// First run: the stations are assumed watered now
		c.record.LastWaterRefillTime = c.now
		LogInfo("No water refill recorded, assuming stations are full")
	case c.s.IsWaterOnlySession, c.s.ForceFullWaterRefill:
		refill = true
	case c.s.WaterRefillsRemaining > 0:
		refill = true
	default:
		elapsed := c.now.Sub(c.record.LastWaterRefillTime)
		refill = elapsed+cfg.SessionPauseDuration() >= cfg.WaterDuration()-cfg.WaterMargin()
	}

	c.s.RefillWater = refill
	if refill {
		c.s.WaterRefillsRemaining = c.s.TotalStations
		c.record.LastWaterRefillTime = c.now
	}
	c.persist()
}

func (c *BotController) onConnecting() {
	c.connectAt = c.now
	LogInfo("Connecting to server")
	c.col.Actuator.Connect()
	c.setState(StateWaitingConnection)
}

func (c *BotController) onWaitingConnection() {
	switch c.step {
	case 0:
		if c.col.Logs.ObservedSince(c.connectAt, c.cfg.Patterns.Connected) {
			c.connectedAt = c.now
			LogInfo("Connected after %v", c.now.Sub(c.connectAt))
			if c.cfg.LoginPassword != "" {
				c.col.Actuator.ChatCommand("/login " + c.cfg.LoginPassword)
			}
			c.wait(2 * time.Second)
			c.step = 1
			return
		}
		if c.col.Logs.ObservedSince(c.connectAt, c.cfg.Patterns.Disconnected) {
			c.fail(fmt.Errorf("network: disconnected while connecting"))
			return
		}
		if c.now.Sub(c.connectAt) >= ms(c.cfg.Timing.ConnectTimeout) {
			c.fail(fmt.Errorf("connection timed out after %v", ms(c.cfg.Timing.ConnectTimeout)))
		}
	case 1:
		// Close the chat left open by the login command
		c.press(c.cfg.Keys.Chat)
		c.press(c.cfg.Keys.Escape)
		c.wait(ms(c.cfg.Timing.ActionDelay))

		if c.resumed {
			c.setState(StateRecoveringBuckets)
			return
		}
		switch c.drill.Kind {
		case DrillTransition:
			c.pendingPhase = c.drill.Phase
			LogInfo("Drill: routing carriers for %s", c.pendingPhase)
			c.setState(StateManagingBuckets)
			return
		case DrillChat:
			LogInfo("Drill: staying connected for %v", c.drill.Duration)
			c.step = 2
			return
		}
		if phase, changed := c.schedule.DetectTransition(c.record.PreviousPeriod, c.now); changed {
			c.pendingPhase = phase
			LogInfo("Period changed %s -> %s", c.record.PreviousPeriod, phase)
			c.setState(StateManagingBuckets)
			return
		}
		c.setState(StateTeleporting)
	case 2:
		if c.now.Sub(c.connectedAt) >= c.drill.Duration {
			c.setState(StateDisconnecting)
		}
	}
}

func (c *BotController) onTeleporting() {
	station := c.cycle.Current()
	c.s.StationIndex = c.cycle.Index()
	if c.s.IsFirstStationOfSession && c.s.CycleStartTime.IsZero() {
		c.s.CycleStartTime = c.now
	}

	c.s.PositionBeforeTeleport = nil
	if c.col.Position != nil {
		if pos, ok := c.col.Position.Position(); ok {
			c.s.PositionBeforeTeleport = &pos
		}
	}

	LogInfo("Station %d/%d: %s", c.s.StationIndex+1, c.s.TotalStations, station)
	c.teleportAt = c.now
	c.col.Actuator.TeleportCommand(station)
	c.setState(StateWaitingTeleport)
}

// arrived reports whether the teleport is confirmed
func (c *BotController) arrived() bool {
	if c.s.PositionBeforeTeleport != nil && c.col.Position != nil {
		if pos, ok := c.col.Position.Position(); ok && pos.Distance(*c.s.PositionBeforeTeleport) >= c.cfg.Water.TeleportDistance {
			return true
		}
	}
	if c.col.Logs.ObservedSince(c.teleportAt, c.cfg.Patterns.Teleported) {
		return true
	}
	// Without a signal, arrival is assumed once the timeout elapsed
	return c.now.Sub(c.teleportAt) >= ms(c.cfg.Timing.TeleportTimeout)
}

func (c *BotController) onWaitingTeleport() {
	if !c.arrived() {
		return
	}
	c.wait(ms(c.cfg.Timing.ActionDelay))
	if c.drill.Kind == DrillTour {
		c.stationSkip = true
		c.setState(StateNextStation)
		return
	}
	if c.s.IsWaterOnlySession {
		c.setState(StateFillingWater)
		return
	}
	c.setState(StateOpeningStation)
}

func (c *BotController) onOpeningStation() {
	if c.panelWait == nil {
		c.press(c.cfg.Keys.Seed)
		c.col.Actuator.Click(ButtonRight)
		c.panelWait = c.panels.Begin(c.now, IsGenericMenu,
			ms(c.cfg.Timing.PanelTimeout), ms(c.cfg.Timing.PanelPoll), ms(c.cfg.Timing.Stabilization))
		return
	}

	switch c.panelWait.Poll(c.now) {
	case DispositionPending:
		return
	case DispositionSuccess:
		c.setState(StateHarvesting)
	default:
		// A station that does not open is skipped, not retried
		c.stationFault(ErrorStation, fmt.Sprintf("station %s menu did not open", c.cycle.Current()))
		c.s.ErrorRetryCount++
		LogWarn("%s, skipping (retry %d/%d)", c.s.ErrorMessage, c.s.ErrorRetryCount, c.cfg.Recovery.MaxRetries)
		if c.s.ErrorRetryCount > c.cfg.Recovery.MaxRetries {
			c.setState(StateError)
			return
		}
		c.setState(StateNextStation)
	}
}

func (c *BotController) onHarvesting() {
	panel := c.panels.Classify()
	if !IsGenericMenu(panel) {
		c.fail(fmt.Errorf("station panel closed before harvest"))
		return
	}

	slot := c.findHarvestSlot(panel)
	if slot >= 0 {
		button, known := HarvestButton(c.cfg.Plant.Type)
		c.col.Actuator.ClickSlot(panel.SyncID, slot, button, ClickPickup)
		if !known {
			c.col.Actuator.ClickSlot(panel.SyncID, slot, ButtonLeft, ClickPickup)
		}
		LogDebug("Harvested slot %d (%s)", slot, button)
	} else {
		LogDebug("Nothing to harvest at %s", c.cycle.Current())
	}

	c.press(c.cfg.Keys.Escape)
	c.wait(ms(c.cfg.Timing.ActionDelay))
	c.setState(StatePlanting)
}

// findHarvestSlot returns the container slot holding the harvest marker,
// preferring the configured one.
func (c *BotController) findHarvestSlot(panel PanelInfo) int {
	marker := c.cfg.Inventory.HarvestMarker
	if s := c.cfg.Inventory.HarvestSlot; s >= 0 && s < panel.SlotCount {
		if c.col.Inventory.PanelSlot(s).Kind == marker {
			return s
		}
	}
	for i := 0; i < panel.SlotCount; i++ {
		if c.col.Inventory.PanelSlot(i).Kind == marker {
			return i
		}
	}
	return -1
}

func (c *BotController) onPlanting() {
	inv := c.cfg.Inventory
	if inv.SeedSlot >= 0 {
		seeds := c.col.Inventory.HotbarSlot(inv.SeedSlot)
		if seeds.IsEmpty() || seeds.Kind != inv.SeedKind {
			if c.cfg.Homes.SeedSupply == "" {
				c.fail(ErrOutOfSeeds)
				return
			}
			LogInfo("Seed slot empty, fetching seeds at %s", c.cfg.Homes.SeedSupply)
			c.setState(StateFetchingSeeds)
			return
		}
	}

	c.press(c.cfg.Keys.Seed)
	c.hold(c.cfg.Keys.Crouch)
	c.col.Actuator.Click(ButtonRight)
	c.release(c.cfg.Keys.Crouch)
	c.wait(ms(c.cfg.Timing.ActionDelay))

	if c.s.RefillWater {
		c.setState(StateFillingWater)
		return
	}
	c.setState(StateNextStation)
}

// fillCap returns the pour cap for the carrier mode
func (c *BotController) fillCap(single bool) int {
	if single {
		return c.cfg.Water.SingleCarrierCap
	}
	return c.cfg.Water.MultiCarrierCap
}

func (c *BotController) onFillingWater() {
	if c.col.Logs.ObservedSince(c.fillSince, c.cfg.Patterns.StationFull) {
		LogInfo("Station %s full after %d pours", c.cycle.Current(), c.pours)
		c.setState(StateNextStation)
		return
	}

	scan := c.ledger.Scan(c.tick)
	single := scan.Total() <= 1

	if c.pours >= c.fillCap(single) {
		c.stationFault(ErrorTimeout, fmt.Sprintf("station %s not full after %d pours", c.cycle.Current(), c.pours))
		c.s.ForceFullWaterRefill = true
		LogWarn("%s, moving on", c.s.ErrorMessage)
		c.setState(StateNextStation)
		return
	}

	if single {
		// One carrier: the refill macro fills it before every pour
		if !c.ledger.SelectFirstFull(c.tick) && !c.ledger.SelectFirstEmpty(c.tick) {
			c.fail(ErrCarriersExhausted)
			return
		}
		c.press(c.cfg.Keys.Refill)
	} else if !c.ledger.SelectFirstFull(c.tick) {
		if scan.EmptyCount > 0 {
			c.setState(StateRefillingBuckets)
			return
		}
		c.fail(ErrCarriersExhausted)
		return
	}

	c.col.Actuator.Click(ButtonRight)
	c.ledger.Invalidate()
	c.pours++
	c.stats.AddPour()
	c.wait(ms(c.cfg.Timing.PourInterval))
}

// stationFault marks the current station as failed without retrying it.
// The error stays in the status until a later station succeeds and in the
// journal record of the session.
func (c *BotController) stationFault(kind ErrorKind, msg string) {
	c.s.ErrorType = kind
	c.s.ErrorMessage = msg
	c.faultKind, c.faultMsg = kind, msg
	c.stationSkip = true
}

func (c *BotController) onRefillingBuckets() {
	if !c.ledger.SelectFirstEmpty(c.tick) {
		c.setState(StateFillingWater)
		return
	}
	LogDebug("Refilling carriers in slot %d", c.ledger.Selected())
	c.press(c.cfg.Keys.Refill)
	c.ledger.Invalidate()
	c.wait(ms(c.cfg.Timing.RefillDelay))
	c.setState(StateFillingWater)
}

func (c *BotController) onNextStation() {
	if c.stationSkip {
		c.stationSkip = false
	} else {
		c.s.StationsCompleted++
		c.stats.AddStation()
		c.record.CountStation(c.now)
		c.clearError()
	}
	if c.s.RefillWater && c.s.WaterRefillsRemaining > 0 {
		c.s.WaterRefillsRemaining--
	}
	c.s.IsFirstStationOfSession = false
	c.persist()

	if c.cycle.Advance() {
		c.s.StationIndex = c.cycle.Index()
		c.setState(StateTeleporting)
		return
	}
	c.setState(StateEmptyingRemainingBuckets)
}

func (c *BotController) onEmptyingRemainingBuckets() {
	scan := c.ledger.Scan(c.tick)
	if c.s.RefillWater && scan.Total() > 1 && c.ledger.SelectFirstFull(c.tick) {
		c.col.Actuator.Click(ButtonRight)
		c.ledger.Invalidate()
		c.wait(ms(c.cfg.Timing.ActionDelay))
		return
	}

	c.press(c.cfg.Keys.Chat)
	c.press(c.cfg.Keys.Escape)
	c.wait(ms(c.cfg.Timing.ActionDelay))
	c.setState(StateDisconnecting)
}

func (c *BotController) onDisconnecting() {
	if c.step == 0 {
		c.releaseAll()
		c.col.Actuator.Disconnect()
		c.step = 1
		c.wait(ms(c.cfg.Timing.ActionDelay))
		return
	}

	end := c.now
	eventPause := c.s.IsEventPause && c.s.CanReconnectAfterEvent
	completed := c.s.StationsCompleted > 0 && !eventPause && c.cycle.Index() == 0

	c.record.LastSessionEndTime = end
	if completed && c.s.RefillWater && !c.resumed && c.s.WaterRefillsRemaining == 0 && c.faultKind == ErrorNone {
		c.s.ForceFullWaterRefill = false
	}

	switch {
	case eventPause:
		c.s.PauseEndTime = end.Add(time.Duration(c.cfg.Recovery.EventPause) * time.Second)
	default:
		pause := c.cfg.SessionPauseDuration()
		c.s.PauseEndTime = end.Add(pause)
		if !c.record.LastWaterRefillTime.IsZero() {
			expiry := c.record.LastWaterRefillTime.Add(c.cfg.WaterDuration() - c.cfg.WaterMargin())
			if expiry.After(end) && expiry.Before(c.s.PauseEndTime) {
				LogInfo("Water runs out before the crops are ready, next session only waters")
				c.s.PauseEndTime = expiry
			}
		}
		if c.cfg.Plant.Type != "" && c.drill.Harvests() {
			c.record.NextHarvestDue = end.Add(pause)
		}
	}
	c.persist()

	c.recordSession(end)
	if !eventPause {
		c.stats.AddSession()
	}

	if c.stopRequested.Load() || (c.once && !eventPause) {
		LogInfo("Session finished, bot stopped")
		c.running.Store(false)
		c.setState(StateIdle)
		return
	}

	LogInfo("Session finished: %d/%d stations, next session at %s",
		c.s.StationsCompleted, c.s.TotalStations, c.s.PauseEndTime.Format("15:04:05"))
	c.setState(StatePaused)
}

func (c *BotController) recordSession(end time.Time) {
	if c.journal == nil {
		return
	}
	rec := SessionRecord{
		StartedAt:         c.s.SessionStartTime,
		EndedAt:           end,
		StationsCompleted: c.s.StationsCompleted,
		TotalStations:     c.s.TotalStations,
		WaterRefilled:     c.s.RefillWater,
		WaterOnly:         c.s.IsWaterOnlySession,
		ErrorKind:         c.s.ErrorType,
		ErrorMessage:      c.s.ErrorMessage,
	}
	switch {
	case c.s.IsEventPause:
		rec.ErrorMessage = "paused by server event"
	case rec.ErrorKind == ErrorNone && c.faultKind != ErrorNone:
		rec.ErrorKind, rec.ErrorMessage = c.faultKind, c.faultMsg
	}
	if err := c.journal.RecordSession(context.Background(), rec); err != nil {
		LogWarn("Failed to record session: %v", err)
	}
}

func (c *BotController) onPaused() {
	if c.now.Before(c.s.PauseEndTime) {
		return
	}
	if c.deferForRestartWindow() {
		return
	}

	if c.s.IsCrashReconnectPause || (c.s.IsEventPause && c.s.CanReconnectAfterEvent) {
		LogInfo("Reconnecting to resume at station %d/%d", c.s.StationIndex+1, c.s.TotalStations)
		c.resumed = true
		c.stopHandled = false
		c.stationSkip = false
		if c.s.ForceFullWaterRefill && !c.s.RefillWater {
			c.s.RefillWater = true
			c.s.WaterRefillsRemaining = c.s.TotalStations - c.s.StationIndex
			c.persist()
		}
		c.setState(StateConnecting)
		return
	}
	c.setState(StateIdle)
}

func (c *BotController) onError() {
	kind := c.s.ErrorType
	c.releaseAll()
	if c.errorFrom.connected() {
		c.col.Actuator.Disconnect()
		c.recordSession(c.now)
	}
	c.persist()

	if !kind.Recoverable() || c.stopRequested.Load() {
		LogError("Bot stopped: %s (%s)", c.s.ErrorMessage, kind)
		c.running.Store(false)
		c.setState(StateIdle)
		return
	}

	backoff := time.Duration(c.cfg.Recovery.ErrorBackoff) * time.Second
	LogWarn("Pausing %v after repeated errors", backoff)
	c.s.PauseEndTime = c.now.Add(backoff)
	c.s.IsCrashReconnectPause = false
	c.s.IsEventPause = false
	c.setState(StatePaused)
}

func (c *BotController) publishStatus() {
	st := Status{
		State:             c.s.State.String(),
		Running:           c.running.Load(),
		StationIndex:      c.s.StationIndex,
		TotalStations:     c.s.TotalStations,
		StationsCompleted: c.s.StationsCompleted,
		WaterOnly:         c.s.IsWaterOnlySession,
		RefillWater:       c.s.RefillWater,
		ErrorKind:         c.s.ErrorType.String(),
		ErrorMessage:      c.s.ErrorMessage,
		RetryCount:        c.s.ErrorRetryCount,
		PauseEnd:          c.s.PauseEndTime,
		Period:            string(c.record.PreviousPeriod),
		UpdatedAt:         c.now,
	}
	if c.cycle.Len() > 0 {
		st.Station = c.cycle.Current()
	}
	if c.s.State.connected() {
		scan := c.ledger.Scan(c.tick)
		st.CarriersFull = scan.FullCount
		st.CarriersEmpty = scan.EmptyCount
	}

	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()
}
