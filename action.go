// Package main - action.go
//
// This file implements the Actuator: the only way the bot touches the game.
//
// Architecture:
//   - Actuator: the input vocabulary the controller speaks (clicks, slot
//     clicks, keys, chat commands, connect and disconnect)
//   - InputActuator: translates each call into low-level input steps
//     (mouse moves, button clicks, key taps) and enqueues them on the
//     InputQueue (movement.go), which plays them with robotgo
//
// Fire and Forget:
// Actuator methods return immediately. The queue applies steps strictly in
// the order they were issued, so two calls made in the same tick land in
// that order. Failures are logged by the queue; the controller notices
// their effect through the panel, inventory and log observers.
//
// Slot Geometry:
// Slot i of an open panel is located from the configured slot grid:
//   - Container slots: 9 per row from the grid origin
//   - Player main inventory: 3 rows below the container, after PlayerOffset
//   - Hotbar: one row below the main inventory, after HotbarOffset
//
// Chat Commands:
// Commands are typed by opening chat, pasting from the clipboard and
// pressing enter. Pasting is immune to keyboard layout differences
// (AZERTY clients break robotgo.TypeStr on "/" and digits).
package main

import (
	"fmt"
	"runtime"
	"time"
)

// Actuator injects input into the game client
type Actuator interface {
	Click(button MouseButton)
	ClickSlot(syncID, slot int, button MouseButton, mode ClickMode)
	PressKey(key string)
	HoldKey(key string)
	ReleaseKey(key string)
	TeleportCommand(destination string)
	ChatCommand(text string)
	Connect()
	Disconnect()
}

// inputBackend is the platform input layer (robotgo in production)
type inputBackend interface {
	Move(x, y int)
	Click(button string)
	KeyTap(key string, modifiers ...string) error
	KeyToggle(key string, down bool) error
	Paste(text string) error
}

// InputActuator implements Actuator on top of an InputQueue
type InputActuator struct {
	queue     *InputQueue
	positions PositionsConfig
	keys      KeysConfig
	panels    PanelObserver
	held      map[string]bool
}

// NewInputActuator creates an actuator. The panel observer supplies the
// container size needed to place player-side slots.
func NewInputActuator(queue *InputQueue, cfg *Config, panels PanelObserver) *InputActuator {
	return &InputActuator{
		queue:     queue,
		positions: cfg.Positions,
		keys:      cfg.Keys,
		panels:    panels,
		held:      make(map[string]bool),
	}
}

// slotPosition returns the screen center of panel slot `slot` in a panel
// whose container side has containerSlots slots.
func slotPosition(grid SlotGrid, containerSlots, slot int) Point {
	size := grid.Size
	if size <= 0 {
		size = 36
	}
	containerRows := (containerSlots + 8) / 9

	var row, col, extra int
	switch {
	case slot < containerSlots:
		row, col = slot/9, slot%9
	case slot < containerSlots+playerMainSlots:
		i := slot - containerSlots
		row, col = containerRows+i/9, i%9
		extra = grid.PlayerOffset
	default:
		i := slot - containerSlots - playerMainSlots
		row, col = containerRows+3, i%9
		extra = grid.PlayerOffset + grid.HotbarOffset
	}

	return Point{
		X: grid.Origin.X + col*size,
		Y: grid.Origin.Y + row*size + extra,
	}
}

// Click clicks at the current cursor position
func (a *InputActuator) Click(button MouseButton) {
	name := button.String()
	a.queue.Enqueue("click "+name, func(b inputBackend) error {
		b.Click(name)
		return nil
	})
}

// ClickSlot clicks a slot of the open panel. syncID is recorded in the log
// only; the screen backend has no way to address a panel by id.
func (a *InputActuator) ClickSlot(syncID, slot int, button MouseButton, mode ClickMode) {
	raw := a.panels.CurrentPanel()
	p := slotPosition(a.positions.SlotGrid, raw.SlotCount, slot)
	name := button.String()
	label := fmt.Sprintf("slot %d %s %s (sync %d)", slot, name, mode, syncID)

	a.queue.Enqueue(label, func(b inputBackend) error {
		b.Move(p.X, p.Y)
		if mode == ClickQuickMove {
			if err := b.KeyToggle("shift", true); err != nil {
				return err
			}
			b.Click(name)
			return b.KeyToggle("shift", false)
		}
		b.Click(name)
		return nil
	})
}

// PressKey taps a key
func (a *InputActuator) PressKey(key string) {
	a.queue.Enqueue("key "+key, func(b inputBackend) error {
		return b.KeyTap(key)
	})
}

// HoldKey presses a key without releasing it
func (a *InputActuator) HoldKey(key string) {
	a.held[key] = true
	a.queue.Enqueue("hold "+key, func(b inputBackend) error {
		return b.KeyToggle(key, true)
	})
}

// ReleaseKey releases a held key
func (a *InputActuator) ReleaseKey(key string) {
	delete(a.held, key)
	a.queue.Enqueue("release "+key, func(b inputBackend) error {
		return b.KeyToggle(key, false)
	})
}

// ReleaseAll releases every key still held
func (a *InputActuator) ReleaseAll() {
	for key := range a.held {
		a.ReleaseKey(key)
	}
}

// ChatCommand sends a chat line (a "/" command or plain text)
func (a *InputActuator) ChatCommand(text string) {
	chat := a.keys.Chat
	a.queue.Enqueue("chat", func(b inputBackend) error {
		if err := b.KeyTap(chat); err != nil {
			return err
		}
		time.Sleep(150 * time.Millisecond)
		if err := b.Paste(text); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
		return b.KeyTap("enter")
	})
}

// TeleportCommand teleports to a named home
func (a *InputActuator) TeleportCommand(destination string) {
	a.ChatCommand("/home " + destination)
}

// Connect joins the server from the multiplayer screen
func (a *InputActuator) Connect() {
	pos := a.positions
	a.queue.Enqueue("connect", func(b inputBackend) error {
		b.Move(pos.ServerConnect.X, pos.ServerConnect.Y)
		b.Click("left")
		time.Sleep(500 * time.Millisecond)
		if err := b.KeyTap("down"); err != nil {
			return err
		}
		b.Click("right")
		time.Sleep(500 * time.Millisecond)
		if !pos.ServerConfirm.IsZero() {
			b.Move(pos.ServerConfirm.X, pos.ServerConfirm.Y)
			b.Click("left")
		}
		return nil
	})
}

// Disconnect leaves the server through the pause menu
func (a *InputActuator) Disconnect() {
	a.ReleaseAll()
	pos := a.positions.Disconnect
	esc := a.keys.Escape
	a.queue.Enqueue("disconnect", func(b inputBackend) error {
		if err := b.KeyTap(esc); err != nil {
			return err
		}
		time.Sleep(time.Second)
		b.Move(pos.X, pos.Y)
		b.Click("left")
		return nil
	})
}

// pasteModifier returns the clipboard modifier of the platform
func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
