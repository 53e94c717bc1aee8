// Package main - movement.go
//
// This file implements the InputQueue that plays input steps on the
// desktop with robotgo, one after the other, on a dedicated goroutine.
//
// Key Responsibilities:
//   - Ordering: steps run in the order they were enqueued, never interleaved
//   - Pacing: a short gap after every step so the client registers it
//   - Isolation: the controller tick never waits on input; a slow or
//     failing step only delays the steps behind it
//
// Control Scheme (game client):
//   - 1-9: Hotbar slots (carriers in the first slots)
//   - Seed key (default 0): seed slot
//   - Refill key (default F7): server macro filling the carriers in hand
//   - Crouch key (default Q): held while planting
//   - T: Chat, Escape: close panel / pause menu
//
// Architecture:
// Same producer/worker split as a buffered overlay worker: producers
// append under a mutex and signal; the worker drains the pending steps.
// The pending list is unbounded so Enqueue never blocks the tick loop.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
)

// inputStep is one unit of work for the queue
type inputStep struct {
	label string
	run   func(inputBackend) error
}

// InputQueue serializes input steps onto a single goroutine
type InputQueue struct {
	backend inputBackend
	gap     time.Duration

	pending []inputStep
	signal  chan struct{}
	idle    chan struct{} // closed while nothing is pending or running
	busy    bool
	mu      sync.Mutex
}

// NewInputQueue creates a queue playing steps on backend with gap between steps
func NewInputQueue(backend inputBackend, gap time.Duration) *InputQueue {
	idle := make(chan struct{})
	close(idle)
	return &InputQueue{
		backend: backend,
		gap:     gap,
		signal:  make(chan struct{}, 1),
		idle:    idle,
	}
}

// Enqueue appends a step. It never blocks.
func (q *InputQueue) Enqueue(label string, run func(inputBackend) error) {
	q.mu.Lock()
	if len(q.pending) == 0 && !q.busy {
		q.idle = make(chan struct{})
	}
	q.pending = append(q.pending, inputStep{label: label, run: run})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// WaitIdle blocks until every enqueued step has run or ctx is done
func (q *InputQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InputQueue) next() (inputStep, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		if q.busy {
			q.busy = false
			close(q.idle)
		}
		return inputStep{}, false
	}
	step := q.pending[0]
	q.pending[0] = inputStep{}
	q.pending = q.pending[1:]
	q.busy = true
	return step, true
}

// Run plays steps until ctx is cancelled
func (q *InputQueue) Run(ctx context.Context) error {
	LogInfo("Input queue started (gap %v)", q.gap)
	defer LogInfo("Input queue stopped")

	for {
		for {
			step, ok := q.next()
			if !ok {
				break
			}
			q.play(step)
			if q.gap > 0 {
				select {
				case <-time.After(q.gap):
				case <-ctx.Done():
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-q.signal:
		}
	}
}

func (q *InputQueue) play(step inputStep) {
	defer stopwatch("input "+step.label, 2*time.Second)()

	var err error
	func() {
		defer recoverInto("input "+step.label, &err)
		err = step.run(q.backend)
	}()
	if err != nil {
		LogWarn("Input step %q failed: %v", step.label, err)
		return
	}
	LogDebug("Input: %s", step.label)
}

// robotgoBackend drives the real mouse and keyboard
type robotgoBackend struct{}

func (robotgoBackend) Move(x, y int) {
	robotgo.Move(x, y)
	robotgo.MilliSleep(30)
}

func (robotgoBackend) Click(button string) {
	robotgo.Click(button)
}

func (robotgoBackend) KeyTap(key string, modifiers ...string) error {
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

func (robotgoBackend) KeyToggle(key string, down bool) error {
	state := "up"
	if down {
		state = "down"
	}
	return robotgo.KeyToggle(key, state)
}

// Paste puts text on the clipboard and pastes it into the focused field
func (b robotgoBackend) Paste(text string) error {
	if err := robotgo.WriteAll(text); err != nil {
		return err
	}
	robotgo.MilliSleep(50)
	return b.KeyTap("v", pasteModifier())
}
