// Package main - hotkey.go
//
// Global keyboard hotkeys, caught even while the game window has focus.
// The stop key winds the bot down (disconnect, then idle); the start key
// enables sessions again.
package main

import (
	"context"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// HotkeyListener binds the configured keys to start/stop callbacks
type HotkeyListener struct {
	keys    HotkeysConfig
	onStart func()
	onStop  func()

	mu      sync.Mutex
	pressed map[string]int
}

// NewHotkeyListener creates a listener; empty keys are not bound
func NewHotkeyListener(keys HotkeysConfig, onStart, onStop func()) *HotkeyListener {
	return &HotkeyListener{
		keys:    keys,
		onStart: onStart,
		onStop:  onStop,
		pressed: make(map[string]int),
	}
}

// bindings returns the key to action name table
func (h *HotkeyListener) bindings() map[string]string {
	out := make(map[string]string, 2)
	if k := strings.ToLower(strings.TrimSpace(h.keys.Start)); k != "" {
		out[k] = "start"
	}
	if k := strings.ToLower(strings.TrimSpace(h.keys.Stop)); k != "" {
		out[k] = "stop"
	}
	return out
}

// handle runs the action bound to key
func (h *HotkeyListener) handle(action string) {
	h.mu.Lock()
	h.pressed[action]++
	h.mu.Unlock()

	switch action {
	case "start":
		LogInfo("Start hotkey pressed")
		if h.onStart != nil {
			h.onStart()
		}
	case "stop":
		LogInfo("Stop hotkey pressed")
		if h.onStop != nil {
			h.onStop()
		}
	}
}

// Presses returns how often an action fired
func (h *HotkeyListener) Presses(action string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pressed[action]
}

// Run registers the hotkeys and processes keyboard events until ctx is done
func (h *HotkeyListener) Run(ctx context.Context) error {
	bindings := h.bindings()
	if len(bindings) == 0 {
		<-ctx.Done()
		return nil
	}

	for key, action := range bindings {
		action := action
		hook.Register(hook.KeyDown, []string{key}, func(e hook.Event) {
			h.handle(action)
		})
		LogInfo("Hotkey %s bound to %s", strings.ToUpper(key), action)
	}

	s := hook.Start()
	done := hook.Process(s)

	select {
	case <-ctx.Done():
		hook.End()
		<-done
	case <-done:
		LogWarn("Hotkey listener ended")
	}
	return nil
}
