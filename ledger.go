// Package main - ledger.go
//
// ResourceLedger tracks water carriers (full and empty buckets) in the
// hotbar and moves them in and out of containers.
//
// Scan Cache:
// A scan is keyed by the controller's tick counter and never read across
// ticks. Every mutating operation drops the cache and fires the change
// hook, which the controller uses to persist its durable record.
//
// Transfers:
// Deposits use single-unit placement (pick up the stack, right-click one
// unit at a time into the target, put the rest back). Withdrawals use
// quick-move clicks. All clicks go through the Actuator and land in the
// order they were issued.
package main

import (
	"strconv"
)

// InventoryView reads slot contents
type InventoryView interface {
	// HotbarSlot returns hotbar slot i (0..8)
	HotbarSlot(i int) ItemStack
	// PanelSlot returns slot i of the open panel, container side first
	PanelSlot(i int) ItemStack
}

// CarrierScan is the result of one hotbar pass
type CarrierScan struct {
	FullSlots  []CarrierSlotInfo
	EmptySlots []CarrierSlotInfo
	FullCount  int // units, not slots
	EmptyCount int
}

// Total returns every carrier unit found
func (s CarrierScan) Total() int {
	return s.FullCount + s.EmptyCount
}

// ResourceLedger owns carrier bookkeeping for the controller
type ResourceLedger struct {
	inv       InventoryView
	act       Actuator
	slots     int
	fullKind  string
	emptyKind string

	cacheTick  uint64
	cacheValid bool
	cached     CarrierScan

	selected int
	onChange func()
}

// NewResourceLedger creates a ledger over the first `slots` hotbar slots
func NewResourceLedger(inv InventoryView, act Actuator, slots int, fullKind, emptyKind string) *ResourceLedger {
	if slots <= 0 || slots > hotbarSlots {
		slots = hotbarSlots
	}
	return &ResourceLedger{
		inv:       inv,
		act:       act,
		slots:     slots,
		fullKind:  fullKind,
		emptyKind: emptyKind,
		selected:  -1,
	}
}

// SetOnChange installs the hook fired after every mutating operation
func (l *ResourceLedger) SetOnChange(fn func()) {
	l.onChange = fn
}

// Selected returns the hotbar slot last selected by the ledger, -1 if none
func (l *ResourceLedger) Selected() int {
	return l.selected
}

// Restore sets the selected slot from the durable record
func (l *ResourceLedger) Restore(slot int) {
	if slot >= l.slots {
		slot = -1
	}
	l.selected = slot
}

// Invalidate drops the cached scan
func (l *ResourceLedger) Invalidate() {
	l.cacheValid = false
}

func (l *ResourceLedger) changed() {
	l.cacheValid = false
	if l.onChange != nil {
		l.onChange()
	}
}

// Scan counts carriers in the carrier slots. Repeated calls within the
// same tick reuse the first result.
func (l *ResourceLedger) Scan(tick uint64) CarrierScan {
	if l.cacheValid && l.cacheTick == tick {
		return l.cached
	}

	var scan CarrierScan
	for i := 0; i < l.slots; i++ {
		stack := l.inv.HotbarSlot(i)
		if stack.IsEmpty() {
			continue
		}
		switch stack.Kind {
		case l.fullKind:
			scan.FullSlots = append(scan.FullSlots, CarrierSlotInfo{SlotIndex: i, Count: stack.Count, IsFull: true})
			scan.FullCount += stack.Count
		case l.emptyKind:
			scan.EmptySlots = append(scan.EmptySlots, CarrierSlotInfo{SlotIndex: i, Count: stack.Count})
			scan.EmptyCount += stack.Count
		}
	}

	l.cached = scan
	l.cacheTick = tick
	l.cacheValid = true
	return scan
}

func (l *ResourceLedger) selectSlot(slot int) {
	l.act.PressKey(strconv.Itoa(slot + 1))
	if l.selected != slot {
		l.selected = slot
		l.changed()
	}
}

// SelectFirstFull selects the lowest hotbar slot holding full carriers
func (l *ResourceLedger) SelectFirstFull(tick uint64) bool {
	scan := l.Scan(tick)
	if len(scan.FullSlots) == 0 {
		return false
	}
	l.selectSlot(scan.FullSlots[0].SlotIndex)
	return true
}

// SelectFirstEmpty selects the lowest hotbar slot holding empty carriers
func (l *ResourceLedger) SelectFirstEmpty(tick uint64) bool {
	scan := l.Scan(tick)
	if len(scan.EmptySlots) == 0 {
		return false
	}
	l.selectSlot(scan.EmptySlots[0].SlotIndex)
	return true
}

// findPlayerCarrier locates the carrier stack on the player side of an
// open container, hotbar first. Empty carriers are preferred since they
// are the ones that stack.
func (l *ResourceLedger) findPlayerCarrier(panel PanelInfo) (int, ItemStack, bool) {
	order := make([]int, 0, playerSlots)
	for i := playerMainSlots; i < playerSlots; i++ {
		order = append(order, i)
	}
	for i := 0; i < playerMainSlots; i++ {
		order = append(order, i)
	}

	for _, kind := range []string{l.emptyKind, l.fullKind} {
		for _, i := range order {
			slot := panel.PlayerSlot(i)
			stack := l.inv.PanelSlot(slot)
			if !stack.IsEmpty() && stack.Kind == kind {
				return slot, stack, true
			}
		}
	}
	return -1, ItemStack{}, false
}

func (l *ResourceLedger) findEmptyContainerSlot(panel PanelInfo) int {
	for i := 0; i < panel.SlotCount; i++ {
		if l.inv.PanelSlot(i).IsEmpty() {
			return i
		}
	}
	return -1
}

// DepositExcessKeepingOne moves all but one carrier of the player's stack
// into an empty slot of the open container and returns the units moved.
//
// No carriers found deposits nothing; it is an error only when the caller
// required at least minRequired >= 1. A full container fails before any
// click is sent.
func (l *ResourceLedger) DepositExcessKeepingOne(panel PanelInfo, minRequired int) (int, error) {
	src, stack, ok := l.findPlayerCarrier(panel)
	if !ok {
		if minRequired >= 1 {
			return 0, ErrCarrierNotFound
		}
		return 0, nil
	}

	excess := stack.Count - 1
	if excess <= 0 {
		return 0, nil
	}

	dst := l.findEmptyContainerSlot(panel)
	if dst < 0 {
		return 0, ErrNoFreeSlot
	}

	LogInfo("Depositing %d %s from slot %d into container slot %d", excess, stack.Kind, src, dst)

	l.act.ClickSlot(panel.SyncID, src, ButtonLeft, ClickPickup)
	for i := 0; i < excess; i++ {
		l.act.ClickSlot(panel.SyncID, dst, ButtonRight, ClickPickup)
	}
	l.act.ClickSlot(panel.SyncID, src, ButtonLeft, ClickPickup)

	l.changed()
	return excess, nil
}

// WithdrawKind quick-moves every container slot holding kind to the
// player side and returns the units moved.
func (l *ResourceLedger) WithdrawKind(panel PanelInfo, kind string) int {
	moved := 0
	for i := 0; i < panel.SlotCount; i++ {
		stack := l.inv.PanelSlot(i)
		if stack.IsEmpty() || stack.Kind != kind {
			continue
		}
		l.act.ClickSlot(panel.SyncID, i, ButtonLeft, ClickQuickMove)
		moved += stack.Count
	}
	if moved > 0 {
		LogInfo("Withdrew %d %s from container", moved, kind)
		l.changed()
	}
	return moved
}

// WithdrawAll takes every carrier, full or empty, out of the open container
func (l *ResourceLedger) WithdrawAll(panel PanelInfo) int {
	return l.WithdrawKind(panel, l.emptyKind) + l.WithdrawKind(panel, l.fullKind)
}
