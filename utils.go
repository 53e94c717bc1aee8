// Package main - utils.go
//
// Small helpers shared across the bot: timing, duration formatting and
// panic-safe goroutines.
package main

import (
	"fmt"
	"time"
)

// stopwatch returns a func that logs label when more than budget has
// passed since stopwatch was called. Meant for defer.
func stopwatch(label string, budget time.Duration) func() {
	start := time.Now()
	return func() {
		if took := time.Since(start); took > budget {
			LogDebug("Slow %s: %v (budget %v)", label, took.Round(time.Millisecond), budget)
		}
	}
}

// FormatDuration renders d as "1h 2m 3s", "2m 3s" or "3s". Negative
// durations read as zero.
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs/60%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatMinutes formats a minute count as "1h 20m", "2h" or "40m"
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// SafeGo starts fn on its own goroutine; a panic is logged instead of
// taking the process down.
func SafeGo(fn func()) {
	go func() {
		var err error
		defer recoverInto("goroutine", &err)
		fn()
	}()
}

// recoverInto turns a panic of the calling goroutine into *err. It must be
// deferred directly.
func recoverInto(name string, err *error) {
	if r := recover(); r != nil {
		LogError("Panic recovered in %s: %v", name, r)
		*err = fmt.Errorf("%s panicked: %v", name, r)
	}
}
