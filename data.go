// Package main - data.go
//
// This file defines the core data structures shared by the farming bot.
// It provides screen geometry, the item/panel descriptors reported by the
// game observers, and runtime statistics.
//
// Major Data Categories:
//
// 1. Geometric Types:
//    - Point / Bounds: screen coordinates used by the input and screen adapters
//    - Point3: player position in the world (teleport confirmation)
//
// 2. Game Surface:
//    - ItemStack: content of one inventory or panel slot
//    - RawPanel: what the panel observer sees (open, slots, title, sync id)
//    - PanelType / PanelInfo: classified panel
//    - CarrierSlotInfo: one carrier slot in the hotbar scan
//    - MouseButton / ClickMode: input vocabulary of the Actuator
//
// 3. Statistics:
//    - Statistics: sessions, stations and pours since startup
//
// Slot Layout:
// An open container panel exposes its own slots first (0..SlotCount-1),
// followed by the 27 player main inventory slots and the 9 hotbar slots.
package main

import (
	"image"
	"math"
	"sync"
	"time"
)

const (
	playerMainSlots = 27
	hotbarSlots     = 9
	playerSlots     = playerMainSlots + hotbarSlots
)

// Point represents a 2D coordinate in screen space.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// IsZero reports whether the point was never configured
func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Bounds represents a rectangular screen area
type Bounds struct {
	X int `yaml:"x" json:"x"` // Top-left X coordinate
	Y int `yaml:"y" json:"y"` // Top-left Y coordinate
	W int `yaml:"w" json:"w"` // Width
	H int `yaml:"h" json:"h"` // Height
}

// Rect converts the bounds to an image rectangle
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Point3 is a world position reported by a PositionSource
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// Distance calculates Euclidean distance to another position
func (p Point3) Distance(other Point3) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Color represents an RGB color
type Color struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

// Matches checks if another color matches within tolerance
func (c Color) Matches(other Color, tolerance uint8) bool {
	return absDiff(c.R, other.R) <= tolerance &&
		absDiff(c.G, other.G) <= tolerance &&
		absDiff(c.B, other.B) <= tolerance
}

// absDiff returns absolute difference between two uint8 values
func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// MouseButton identifies a mouse button
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
)

// String returns the robotgo name of the button
func (b MouseButton) String() string {
	if b == ButtonRight {
		return "right"
	}
	return "left"
}

// ClickMode selects how a slot click moves items
type ClickMode int

const (
	ClickPickup    ClickMode = iota // Plain click: pick up / place on cursor
	ClickQuickMove                  // Shift-click: move stack to the other side of the panel
)

// String returns the string representation of the mode
func (m ClickMode) String() string {
	if m == ClickQuickMove {
		return "quick-move"
	}
	return "pickup"
}

// ItemStack is the content of one slot
type ItemStack struct {
	Kind  string
	Count int
}

// IsEmpty reports whether the slot holds nothing
func (s ItemStack) IsEmpty() bool {
	return s.Kind == "" || s.Count <= 0
}

// RawPanel is the unclassified descriptor reported by a PanelObserver.
// SlotCount counts the container side only.
type RawPanel struct {
	IsOpen    bool
	SlotCount int
	Title     string
	SyncID    int
}

// PanelType is the classified kind of the open panel
type PanelType int

const (
	PanelNone PanelType = iota
	PanelChest
	PanelGenericContainer
	PanelHopper
	PanelDispenser
	PanelFurnace
	PanelCrafting
	PanelBrewing
	PanelEnchanting
	PanelAnvil
	PanelBeacon
	PanelUnknown
)

// String returns the string representation of the panel type
func (t PanelType) String() string {
	switch t {
	case PanelNone:
		return "None"
	case PanelChest:
		return "Chest"
	case PanelGenericContainer:
		return "GenericContainer"
	case PanelHopper:
		return "Hopper"
	case PanelDispenser:
		return "Dispenser"
	case PanelFurnace:
		return "Furnace"
	case PanelCrafting:
		return "Crafting"
	case PanelBrewing:
		return "Brewing"
	case PanelEnchanting:
		return "Enchanting"
	case PanelAnvil:
		return "Anvil"
	case PanelBeacon:
		return "Beacon"
	default:
		return "Unknown"
	}
}

// PanelInfo is a classified panel. It is rebuilt on every query.
type PanelInfo struct {
	Type          PanelType
	SlotCount     int
	Title         string
	SyncID        int
	IsFullyLoaded bool
}

// PlayerSlot returns the panel index of player inventory slot i
// (0..26 main inventory, 27..35 hotbar).
func (p PanelInfo) PlayerSlot(i int) int {
	return p.SlotCount + i
}

// CarrierSlotInfo describes one hotbar slot holding carriers
type CarrierSlotInfo struct {
	SlotIndex int
	Count     int
	IsFull    bool
}

// Statistics holds runtime statistics
type Statistics struct {
	StartTime         time.Time
	Sessions          int
	StationsCompleted int
	Pours             int
	mu                sync.RWMutex
}

// NewStatistics creates new statistics
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// AddSession records a finished session
func (s *Statistics) AddSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sessions++
}

// AddStation records a completed station
func (s *Statistics) AddStation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StationsCompleted++
}

// AddPour records one poured carrier
func (s *Statistics) AddPour() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pours++
}

// GetStats returns formatted statistics
func (s *Statistics) GetStats() (sessions, stations, pours int, uptime string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Sessions, s.StationsCompleted, s.Pours, FormatDuration(time.Since(s.StartTime))
}
