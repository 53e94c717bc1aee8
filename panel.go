// Package main - panel.go
//
// PanelDetector classifies the UI panel currently open in the game client
// and waits for panels to open and finish loading.
//
// Two-Phase Wait:
// A panel appears on screen before the server has filled its slots. Acting
// on the first sighting clicks into stale or empty slots, so every wait
// runs in two phases:
//  1. Poll the observer until the predicate matches (or time out)
//  2. Wait the stabilization delay, then require predicate AND fully loaded
//
// PanelWait runs the two phases across controller ticks without blocking.
// WaitForOpen wraps it in a blocking loop for the CLI probe command.
//
// A timeout is a Disposition (or false), never an error. The caller decides
// what a missed panel means.
package main

import (
	"context"
	"strings"
	"time"
)

// PanelObserver reports the raw state of the open panel
type PanelObserver interface {
	CurrentPanel() RawPanel
}

// PanelPredicate selects the panels a wait accepts
type PanelPredicate func(PanelInfo) bool

// titleRules map title keywords (English and French client) to a type.
// Checked before slot counts so a titled furnace never reads as a chest.
var titleRules = []struct {
	panel    PanelType
	keywords []string
}{
	{PanelFurnace, []string{"furnace", "smoker", "four", "fumoir"}},
	{PanelBrewing, []string{"brewing", "alambic"}},
	{PanelEnchanting, []string{"enchant"}},
	{PanelAnvil, []string{"anvil", "enclume"}},
	{PanelBeacon, []string{"beacon", "balise"}},
	{PanelHopper, []string{"hopper", "entonnoir"}},
	{PanelDispenser, []string{"dispenser", "dropper", "distributeur", "lanceur"}},
	{PanelCrafting, []string{"crafting", "fabrication", "artisanat"}},
	{PanelChest, []string{"chest", "coffre", "barrel", "tonneau"}},
}

// PanelDetector classifies panels reported by a PanelObserver
type PanelDetector struct {
	observer        PanelObserver
	stationKeywords []string
}

// NewPanelDetector creates a detector. Station keywords are title
// fragments of the station menus; they classify as GenericContainer.
func NewPanelDetector(observer PanelObserver, stationKeywords []string) *PanelDetector {
	kw := make([]string, 0, len(stationKeywords))
	for _, k := range stationKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &PanelDetector{observer: observer, stationKeywords: kw}
}

// Classify inspects the live panel. The result is never cached.
func (d *PanelDetector) Classify() PanelInfo {
	return classifyPanel(d.observer.CurrentPanel(), d.stationKeywords)
}

// IsFullyLoaded reports whether the open panel is synchronized with the server
func (d *PanelDetector) IsFullyLoaded() bool {
	return d.Classify().IsFullyLoaded
}

func classifyPanel(raw RawPanel, stationKeywords []string) PanelInfo {
	if !raw.IsOpen {
		return PanelInfo{Type: PanelNone}
	}

	info := PanelInfo{
		Type:          panelTypeFor(raw, stationKeywords),
		SlotCount:     raw.SlotCount,
		Title:         raw.Title,
		SyncID:        raw.SyncID,
		IsFullyLoaded: raw.SlotCount > 0 && raw.SyncID > 0,
	}
	return info
}

func panelTypeFor(raw RawPanel, stationKeywords []string) PanelType {
	title := strings.ToLower(raw.Title)
	if title != "" {
		for _, kw := range stationKeywords {
			if strings.Contains(title, kw) {
				return PanelGenericContainer
			}
		}
		for _, rule := range titleRules {
			for _, kw := range rule.keywords {
				if strings.Contains(title, kw) {
					return rule.panel
				}
			}
		}
	}

	switch n := raw.SlotCount; {
	case n == 27 || n == 54:
		return PanelChest
	case n == 9:
		return PanelDispenser
	case n == 5:
		return PanelHopper
	case n == 3:
		return PanelFurnace
	case n == 10:
		return PanelCrafting
	case n == 2:
		return PanelEnchanting
	case n == 1:
		return PanelBeacon
	case n > 0 && n%9 == 0:
		return PanelGenericContainer
	default:
		return PanelUnknown
	}
}

// IsChestPanel matches chests (single and double)
func IsChestPanel(p PanelInfo) bool {
	return p.Type == PanelChest
}

// IsGenericMenu matches station menus. Servers often render custom menus
// with a chest layout, so chests are accepted too.
func IsGenericMenu(p PanelInfo) bool {
	return p.Type == PanelGenericContainer || p.Type == PanelChest
}

// PanelWait is one in-flight two-phase wait, polled once per tick
type PanelWait struct {
	detector      *PanelDetector
	predicate     PanelPredicate
	timeout       time.Duration
	pollInterval  time.Duration
	stabilization time.Duration

	started  time.Time
	lastPoll time.Time
	matched  bool
	loadedAt time.Time // first poll of the current fully-loaded streak
	done     Disposition
}

// Begin starts a wait at now
func (d *PanelDetector) Begin(now time.Time, pred PanelPredicate, timeout, poll, stabilization time.Duration) *PanelWait {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &PanelWait{
		detector:      d,
		predicate:     pred,
		timeout:       timeout,
		pollInterval:  poll,
		stabilization: stabilization,
		started:       now,
		done:          DispositionPending,
	}
}

// Poll advances the wait. It returns Pending until the panel matched,
// reported fully loaded, and stayed that way for the stabilization delay
// (Success), or until the wait gave up (Timeout). The delay counts from
// the fully-loaded point, not from the first sighting; a panel that goes
// back to loading restarts it. A matched panel that stops matching ends
// the wait at once. A finished wait keeps returning its outcome.
func (w *PanelWait) Poll(now time.Time) Disposition {
	if w.done != DispositionPending {
		return w.done
	}
	if !w.lastPoll.IsZero() && now.Sub(w.lastPoll) < w.pollInterval {
		return DispositionPending
	}
	w.lastPoll = now

	info := w.detector.Classify()
	if !w.predicate(info) {
		if w.matched {
			LogDebug("Panel lost after %v (type=%s)", now.Sub(w.started), info.Type)
			w.done = DispositionTimeout
		} else if now.Sub(w.started) >= w.timeout {
			LogDebug("Panel wait timed out after %v", now.Sub(w.started))
			w.done = DispositionTimeout
		}
		return w.done
	}
	if !w.matched {
		w.matched = true
		LogDebug("Panel matched after %v (type=%s slots=%d)", now.Sub(w.started), info.Type, info.SlotCount)
	}

	if !info.IsFullyLoaded {
		w.loadedAt = time.Time{}
		if now.Sub(w.started) >= w.timeout {
			LogDebug("Panel not loaded after %v (type=%s slots=%d sync=%d)",
				now.Sub(w.started), info.Type, info.SlotCount, info.SyncID)
			w.done = DispositionTimeout
		}
		return w.done
	}
	if w.loadedAt.IsZero() {
		w.loadedAt = now
		LogDebug("Panel loaded after %v, stabilizing %v", now.Sub(w.started), w.stabilization)
	}
	if now.Sub(w.loadedAt) >= w.stabilization {
		w.done = DispositionSuccess
	}
	return w.done
}

// WaitForOpen blocks until the two-phase wait finishes or ctx is done
func (d *PanelDetector) WaitForOpen(ctx context.Context, pred PanelPredicate, timeout, poll, stabilization time.Duration) bool {
	w := d.Begin(time.Now(), pred, timeout, poll, stabilization)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		switch w.Poll(time.Now()) {
		case DispositionSuccess:
			return true
		case DispositionTimeout, DispositionFailure:
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// WaitForChestOpen waits for a chest panel
func (d *PanelDetector) WaitForChestOpen(ctx context.Context, timeout, stabilization time.Duration) bool {
	return d.WaitForOpen(ctx, IsChestPanel, timeout, 50*time.Millisecond, stabilization)
}

// WaitForGenericMenuOpen waits for a station menu
func (d *PanelDetector) WaitForGenericMenuOpen(ctx context.Context, timeout, stabilization time.Duration) bool {
	return d.WaitForOpen(ctx, IsGenericMenu, timeout, 50*time.Millisecond, stabilization)
}
