// Package main - tray.go
//
// This file implements the system tray: a read-only status view plus the
// few controls a farming run needs. Uses getlantern/systray.
//
// Menu Structure:
//
//	Agri Bot
//	├─ State: <state> (read-only)
//	├─ Station: <name> (i/n) | done k (read-only)
//	├─ Error: <kind> <message> (read-only, hidden text when none)
//	├─ Next session: <time> (read-only, while paused)
//	├─ Statistics: sessions | stations | pours | uptime (read-only)
//	├─ Start
//	├─ Stop (disconnect, then idle)
//	├─ Reload config
//	└─ Quit
//
// Concurrency Model:
// One goroutine refreshes the read-only items every second from the
// controller snapshot; one goroutine handles clicks. Neither touches the
// controller state directly.
//
// Lifecycle:
//  1. NewTrayApp: Create instance with bot reference
//  2. Run: Start systray (blocking, must be on the main goroutine)
//  3. onReady: Build the menu, start the refresh and click goroutines
//  4. Quit: stop the bot, then systray.Quit; onExit runs the caller's hook
package main

import (
	"fmt"
	"time"

	"github.com/getlantern/systray"
)

// TrayApp manages the system tray menu
type TrayApp struct {
	bot    *Bot
	onExit func()

	statusItem  *systray.MenuItem
	stationItem *systray.MenuItem
	errorItem   *systray.MenuItem
	pauseItem   *systray.MenuItem
	statsItem   *systray.MenuItem

	startItem  *systray.MenuItem
	stopItem   *systray.MenuItem
	reloadItem *systray.MenuItem
	quitItem   *systray.MenuItem

	done chan struct{}
}

// NewTrayApp creates a new tray application. onExit runs once the tray
// has closed.
func NewTrayApp(bot *Bot, onExit func()) *TrayApp {
	return &TrayApp{
		bot:    bot,
		onExit: onExit,
		done:   make(chan struct{}),
	}
}

// Run starts the tray application and blocks until Quit
func (t *TrayApp) Run() {
	LogInfo("Starting system tray application")
	systray.Run(t.onReady, func() {
		LogInfo("System tray onExit callback triggered")
		close(t.done)
		if t.onExit != nil {
			t.onExit()
		}
	})
	LogInfo("System tray Run() returned")
}

// Quit closes the tray from any goroutine
func (t *TrayApp) Quit() {
	systray.Quit()
}

func (t *TrayApp) onReady() {
	systray.SetTitle("Agri Bot")
	systray.SetTooltip("Agri Bot")

	t.statusItem = systray.AddMenuItem("State: Idle", "Controller state")
	t.statusItem.Disable()
	t.stationItem = systray.AddMenuItem("Station: -", "Current station")
	t.stationItem.Disable()
	t.errorItem = systray.AddMenuItem("Error: none", "Last error")
	t.errorItem.Disable()
	t.pauseItem = systray.AddMenuItem("Next session: -", "End of the pause")
	t.pauseItem.Disable()
	t.statsItem = systray.AddMenuItem("Statistics: -", "Counters since start")
	t.statsItem.Disable()

	systray.AddSeparator()
	t.startItem = systray.AddMenuItem("Start", "Start farming sessions")
	t.stopItem = systray.AddMenuItem("Stop", "Disconnect and stay idle")
	t.reloadItem = systray.AddMenuItem("Reload config", "Re-read the config file for the next session")

	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop the bot and exit")

	SafeGo(t.refreshLoop)
	SafeGo(t.handleEvents)
	LogInfo("System tray ready")
}

// refreshLoop keeps the read-only items current
func (t *TrayApp) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		t.UpdateStatus()
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
	}
}

// handleEvents handles tray menu clicks
func (t *TrayApp) handleEvents() {
	for {
		select {
		case <-t.done:
			return
		case <-t.startItem.ClickedCh:
			LogInfo("Start requested from tray")
			t.bot.Start()
		case <-t.stopItem.ClickedCh:
			LogInfo("Stop requested from tray")
			t.bot.Stop()
		case <-t.reloadItem.ClickedCh:
			if err := t.bot.ReloadConfig(); err != nil {
				LogError("Config reload failed: %v", err)
				t.errorItem.SetTitle(fmt.Sprintf("Error: %v", err))
			}
		case <-t.quitItem.ClickedCh:
			LogInfo("Quit requested by user")
			t.bot.Stop()
			systray.Quit()
			return
		}
	}
}

// UpdateStatus refreshes the read-only items from the bot snapshot
func (t *TrayApp) UpdateStatus() {
	st := t.bot.Status()
	lines := trayLines(st, t.bot.Statistics(), time.Now())

	t.statusItem.SetTitle(lines.state)
	t.stationItem.SetTitle(lines.station)
	t.errorItem.SetTitle(lines.err)
	t.pauseItem.SetTitle(lines.pause)
	t.statsItem.SetTitle(lines.stats)
	systray.SetTooltip(lines.tooltip)

	if st.Running {
		t.startItem.Disable()
		t.stopItem.Enable()
	} else {
		t.startItem.Enable()
		t.stopItem.Disable()
	}
}

// trayText holds the menu titles for one snapshot
type trayText struct {
	state   string
	station string
	err     string
	pause   string
	stats   string
	tooltip string
}

func trayLines(st Status, stats *Statistics, now time.Time) trayText {
	var out trayText

	run := "stopped"
	if st.Running {
		run = "running"
	}
	out.state = fmt.Sprintf("State: %s (%s)", st.State, run)
	if st.Period != "" {
		out.state += " | " + st.Period
	}

	if st.TotalStations > 0 {
		out.station = fmt.Sprintf("Station: %s (%d/%d) | done %d",
			st.Station, st.StationIndex+1, st.TotalStations, st.StationsCompleted)
	} else {
		out.station = "Station: -"
	}
	if st.WaterOnly {
		out.station += " | water only"
	}

	if st.ErrorMessage != "" {
		out.err = fmt.Sprintf("Error: %s %s (retry %d)", st.ErrorKind, st.ErrorMessage, st.RetryCount)
	} else {
		out.err = "Error: none"
	}

	if st.State == StatePaused.String() && !st.PauseEnd.IsZero() {
		left := st.PauseEnd.Sub(now)
		if left < 0 {
			left = 0
		}
		out.pause = fmt.Sprintf("Next session: %s (in %s)", st.PauseEnd.Format("15:04"), FormatDuration(left))
	} else {
		out.pause = "Next session: -"
	}

	sessions, stations, pours, uptime := stats.GetStats()
	out.stats = fmt.Sprintf("Statistics: %d sessions | %d stations | %d pours | %s",
		sessions, stations, pours, uptime)

	out.tooltip = fmt.Sprintf("Agri Bot: %s", st.State)
	if st.TotalStations > 0 && st.State != StateIdle.String() && st.State != StatePaused.String() {
		out.tooltip += fmt.Sprintf(" %d/%d", st.StationIndex+1, st.TotalStations)
	}
	return out
}
