// Package main - bot.go
//
// Bot wires the adapters to the controller and supervises the goroutines
// of a run.
//
// Goroutines (one errgroup, first error cancels the rest):
//   - Tick loop: polls the game log, then advances the controller every
//     timing.tick_ms (50ms by default) and lets the auto-reply answer chat
//   - Input queue: plays mouse/keyboard steps on the desktop
//   - Status feed: HTTP + websocket status on a loopback address
//   - Hotkeys: global start/stop keys
//
// The system tray, when enabled, owns the main thread and talks to the
// Bot through Start/Stop/ReloadConfig/Status only.
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Bot owns every runtime component of a farming run
type Bot struct {
	configs    *ConfigStore
	stats      *Statistics
	queue      *InputQueue
	observer   *ScreenPanelObserver
	logs       *FileLogWatcher
	journal    *Journal
	controller *BotController
	feed       *StatusFeed
	hotkeys    *HotkeyListener
	input      *InputActuator
	replier    *AutoReplier // nil when auto_reply is off

	once     bool
	joinedAt time.Time
}

// NewBot creates the runtime components from the config file at path.
//
// Initialization:
//  1. Load and validate the config (defaults when the file is missing)
//  2. Open the durable record and the session journal in data_dir
//  3. Build the screen observer, input queue and tracked actuator
//  4. Create the controller
//
// The caller must Close the returned Bot.
func NewBot(ctx context.Context, path string) (*Bot, error) {
	LogInfo("Initializing bot components...")

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	configs := NewConfigStore(path, cfg)

	journal, err := OpenJournal(ctx, cfg.DataPath(journalFile))
	if err != nil {
		return nil, err
	}

	logs, err := NewFileLogWatcher(cfg.LogPath, cfg.LogEncoding)
	if err != nil {
		journal.Close()
		return nil, err
	}

	store := NewFileLedgerStore(cfg.DataPath(stateFile))
	record := store.Load()

	observer := NewScreenPanelObserver(cfg)
	queue := NewInputQueue(robotgoBackend{}, ms(cfg.Timing.ActionDelay)/3)
	input := NewInputActuator(queue, cfg, observer)
	model := NewInventoryModel(cfg, observer, record.CarrierMode, observer.Ripe)
	LogDebug("Inventory model created (%d carriers in hand)", record.CarrierMode)

	stats := NewStatistics()
	col := Collaborators{
		Actuator:  NewTrackingActuator(input, model),
		Panels:    observer,
		Inventory: model,
		Logs:      logs,
	}
	controller, err := NewBotController(configs.Snapshot, col, store, journal, stats)
	if err != nil {
		journal.Close()
		return nil, err
	}

	b := &Bot{
		configs:    configs,
		stats:      stats,
		queue:      queue,
		observer:   observer,
		logs:       logs,
		journal:    journal,
		controller: controller,
		input:      input,
	}
	if cfg.AutoReply.Enabled {
		b.replier = NewAutoReplier(cfg.AutoReply, input.ChatCommand)
	}
	b.feed = NewStatusFeed(cfg.StatusAddr, controller.Status)
	b.hotkeys = NewHotkeyListener(cfg.Hotkeys, b.Start, b.Stop)

	LogInfo("Bot components initialized successfully")
	return b, nil
}

// Close releases the journal
func (b *Bot) Close() {
	if b.journal != nil {
		if err := b.journal.Close(); err != nil {
			LogWarn("Failed to close journal: %v", err)
		}
	}
}

// Run supervises every goroutine until ctx is cancelled or one fails.
// With once set, the bot starts immediately and Run returns after a
// single session.
func (b *Bot) Run(ctx context.Context, once bool) error {
	b.once = once
	b.logs.Start()
	if b.replier != nil {
		b.replier.Skip(b.logs)
	}
	if once {
		b.Start()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.queue.Run(ctx)
	})

	if b.configs.Snapshot().StatusAddr != "" {
		g.Go(func() error {
			return b.feed.Run(ctx)
		})
	}

	g.Go(func() error {
		return b.hotkeys.Run(ctx)
	})

	g.Go(func() error {
		return b.tickLoop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, errSessionDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errSessionDone = errors.New("single session finished")

// tickLoop drives the controller from a ticker
func (b *Bot) tickLoop(ctx context.Context) error {
	interval := ms(b.configs.Snapshot().Timing.Tick)
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	LogInfo("Main loop started (tick %v)", interval)
	defer LogInfo("Main loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := b.tick(now); err != nil {
				return err
			}
		}
	}
}

func (b *Bot) tick(now time.Time) (err error) {
	defer recoverInto("tick", &err)

	if err := b.logs.Poll(); err != nil {
		LogDebug("Game log poll failed: %v", err)
	}
	b.controller.Tick(now)

	if b.replier != nil {
		if at := b.controller.ConnectedAt(); !at.Equal(b.joinedAt) {
			b.joinedAt = at
			b.replier.Joined(at)
		}
		b.replier.Tick(now, b.logs, b.controller.ChatIdle())
	}

	if b.once && !b.controller.Running() && b.controller.State() == StateIdle {
		return errSessionDone
	}
	return nil
}

// RunDrill runs a single drill session in the foreground. A chat drill
// turns the auto-reply on even when the config leaves it off.
func (b *Bot) RunDrill(ctx context.Context, d Drill) error {
	if d.Kind == DrillChat && b.replier == nil {
		cfg := b.configs.Snapshot()
		if strings.TrimSpace(cfg.AutoReply.Player) == "" {
			return errors.New("chat drill needs auto_reply.player")
		}
		b.replier = NewAutoReplier(cfg.AutoReply, b.input.ChatCommand)
	}
	b.controller.StartDrill(d)
	return b.Run(ctx, true)
}

// Start enables farming sessions. Safe from any goroutine.
func (b *Bot) Start() {
	b.controller.Start(b.once)
}

// Stop asks the controller to disconnect and go idle. Safe from any goroutine.
func (b *Bot) Stop() {
	b.controller.RequestStop()
}

// ReloadConfig re-reads the config file; the next session uses it
func (b *Bot) ReloadConfig() error {
	if err := b.configs.Reload(); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	return nil
}

// Status returns the controller snapshot
func (b *Bot) Status() Status {
	return b.controller.Status()
}

// Statistics returns the counters of this run
func (b *Bot) Statistics() *Statistics {
	return b.stats
}
