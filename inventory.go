// Package main - inventory.go
//
// InventoryModel is a dead-reckoned picture of the player's inventory and
// of the containers the bot uses. The client gives no way to read item
// stacks from outside, so the model starts from the configured layout and
// replays every input the bot sends through TrackingActuator.
//
// Click Semantics (container screens):
//   - Left click, empty cursor: pick up the whole stack
//   - Left click, holding items: place all (merge, or swap with another kind)
//   - Right click, holding items: place one unit
//   - Right click, empty cursor: pick up half
//   - Shift click: move the stack to the other side of the screen
//
// World Interactions:
//   - Hotbar key 1-9 selects a slot
//   - Refill key fills the carriers in the selected slot
//   - Right click with a full carrier selected pours it (one unit)
//   - Crouch + right click with the seed slot selected plants one seed
//   - Teleporting changes which container a later panel shows
//
// The model never guesses what another player did to a chest; the
// controller re-verifies by opening panels and treats missing items as a
// resource error.
package main

import (
	"strconv"
	"sync"
)

const containerSize = 27

// InventoryModel implements InventoryView from replayed input
type InventoryModel struct {
	cfg    InventoryConfig
	keys   KeysConfig
	homes  HomesConfig
	panels PanelObserver
	ripe   func() bool

	hotbar     [hotbarSlots]ItemStack
	main       [playerMainSlots]ItemStack
	containers map[string][]ItemStack
	location   string
	cursor     ItemStack
	selected   int
	seedHeld   bool // seed key pressed since the last hotbar selection
	crouching  bool
	harvested  bool // harvest marker cleared since the last teleport

	mu sync.Mutex
}

// NewInventoryModel creates a model with the configured starting layout.
// carriers is the number of carriers the player holds (1 or the full set);
// the rest wait in the carrier supply chest. ripe reports whether the
// station in front of the player has a crop to harvest.
func NewInventoryModel(cfg *Config, panels PanelObserver, carriers int, ripe func() bool) *InventoryModel {
	m := &InventoryModel{
		cfg:        cfg.Inventory,
		keys:       cfg.Keys,
		homes:      cfg.Homes,
		panels:     panels,
		ripe:       ripe,
		containers: make(map[string][]ItemStack),
		selected:   0,
	}
	if m.ripe == nil {
		m.ripe = func() bool { return true }
	}

	total := cfg.Inventory.Carriers
	if carriers <= 0 || carriers > total {
		carriers = total
	}
	if carriers > 0 {
		m.hotbar[0] = ItemStack{Kind: cfg.Inventory.EmptyKind, Count: carriers}
	}
	if rest := total - carriers; rest > 0 && cfg.Homes.BucketSupply != "" {
		supply := make([]ItemStack, containerSize)
		slot := cfg.Inventory.SupplySlot
		if slot < 0 || slot >= containerSize {
			slot = 0
		}
		supply[slot] = ItemStack{Kind: cfg.Inventory.EmptyKind, Count: rest}
		m.containers[cfg.Homes.BucketSupply] = supply
	}

	if s := cfg.Inventory.SeedSlot; s >= 0 && s < hotbarSlots {
		m.hotbar[s] = ItemStack{Kind: cfg.Inventory.SeedKind, Count: cfg.Inventory.SeedCount}
	}
	if cfg.Homes.SeedSupply != "" {
		seeds := make([]ItemStack, containerSize)
		for i := range seeds {
			seeds[i] = ItemStack{Kind: cfg.Inventory.SeedKind, Count: 64}
		}
		m.containers[cfg.Homes.SeedSupply] = seeds
	}
	return m
}

// SetContainer replaces the contents of the container at a home
func (m *InventoryModel) SetContainer(home string, stacks []ItemStack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers[home] = append([]ItemStack(nil), stacks...)
}

// Location returns the last teleport destination
func (m *InventoryModel) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location
}

// HotbarSlot returns hotbar slot i
func (m *InventoryModel) HotbarSlot(i int) ItemStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= hotbarSlots {
		return ItemStack{}
	}
	return m.hotbar[i]
}

// PanelSlot returns slot i of the open panel
func (m *InventoryModel) PanelSlot(i int) ItemStack {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.slotRef(i); p != nil {
		return *p
	}
	return ItemStack{}
}

func (m *InventoryModel) isStation(loc string) bool {
	return loc != "" && loc != m.homes.BucketDrop && loc != m.homes.BucketSupply && loc != m.homes.SeedSupply
}

// container returns the contents of the container at the current location,
// grown to n slots.
func (m *InventoryModel) container(n int) []ItemStack {
	c := m.containers[m.location]
	if len(c) < n {
		grown := make([]ItemStack, n)
		copy(grown, c)
		c = grown
		m.containers[m.location] = c
	}
	if m.isStation(m.location) {
		marker := m.cfg.HarvestSlot
		if marker >= 0 && marker < len(c) {
			if !m.harvested && m.ripe() {
				c[marker] = ItemStack{Kind: m.cfg.HarvestMarker, Count: 1}
			} else if c[marker].Kind == m.cfg.HarvestMarker {
				c[marker] = ItemStack{}
			}
		}
	}
	return c
}

// slotRef resolves a panel slot index to the stack it designates
func (m *InventoryModel) slotRef(i int) *ItemStack {
	raw := m.panels.CurrentPanel()
	if !raw.IsOpen || i < 0 {
		return nil
	}
	n := raw.SlotCount
	switch {
	case i < n:
		return &m.container(n)[i]
	case i < n+playerMainSlots:
		return &m.main[i-n]
	case i < n+playerSlots:
		return &m.hotbar[i-n-playerMainSlots]
	}
	return nil
}

func (m *InventoryModel) onContainerSide(i int) bool {
	return i < m.panels.CurrentPanel().SlotCount
}

func (m *InventoryModel) applySlotClick(slot int, button MouseButton, mode ClickMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := m.slotRef(slot)
	if ref == nil {
		return
	}

	if m.isStation(m.location) && slot == m.cfg.HarvestSlot && ref.Kind == m.cfg.HarvestMarker {
		m.harvested = true
		*ref = ItemStack{}
		return
	}

	if mode == ClickQuickMove {
		m.quickMove(slot, ref)
		return
	}

	switch button {
	case ButtonLeft:
		switch {
		case m.cursor.IsEmpty():
			m.cursor, *ref = *ref, ItemStack{}
		case ref.IsEmpty():
			*ref, m.cursor = m.cursor, ItemStack{}
		case ref.Kind == m.cursor.Kind:
			ref.Count += m.cursor.Count
			m.cursor = ItemStack{}
		default:
			m.cursor, *ref = *ref, m.cursor
		}
	case ButtonRight:
		switch {
		case m.cursor.IsEmpty():
			if ref.IsEmpty() {
				return
			}
			half := (ref.Count + 1) / 2
			m.cursor = ItemStack{Kind: ref.Kind, Count: half}
			ref.Count -= half
			if ref.Count == 0 {
				*ref = ItemStack{}
			}
		case ref.IsEmpty() || ref.Kind == m.cursor.Kind:
			ref.Kind = m.cursor.Kind
			ref.Count++
			m.cursor.Count--
			if m.cursor.Count == 0 {
				m.cursor = ItemStack{}
			}
		default:
			m.cursor, *ref = *ref, m.cursor
		}
	}
}

// quickMove moves a stack across the screen: container stacks go to the
// hotbar first (merging), player stacks go to the first free container slot.
func (m *InventoryModel) quickMove(slot int, ref *ItemStack) {
	if ref.IsEmpty() {
		return
	}
	stack := *ref

	if m.onContainerSide(slot) {
		if s := m.cfg.SeedSlot; s >= 0 && stack.Kind == m.cfg.SeedKind && m.hotbar[s].IsEmpty() {
			m.hotbar[s] = stack
			*ref = ItemStack{}
			return
		}
		targets := make([]*ItemStack, 0, playerSlots)
		for i := range m.hotbar {
			targets = append(targets, &m.hotbar[i])
		}
		for i := range m.main {
			targets = append(targets, &m.main[i])
		}
		for _, t := range targets {
			if t.Kind == stack.Kind && !t.IsEmpty() {
				t.Count += stack.Count
				*ref = ItemStack{}
				return
			}
		}
		for _, t := range targets {
			if t.IsEmpty() {
				*t = stack
				*ref = ItemStack{}
				return
			}
		}
		return
	}

	c := m.container(m.panels.CurrentPanel().SlotCount)
	for i := range c {
		if c[i].IsEmpty() {
			c[i] = stack
			*ref = ItemStack{}
			return
		}
	}
}

func (m *InventoryModel) applyKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= hotbarSlots && key != m.keys.Seed {
		m.selected = n - 1
		m.seedHeld = false
		return
	}

	switch key {
	case m.keys.Seed:
		m.seedHeld = true
		if s := m.cfg.SeedSlot; s >= 0 {
			m.selected = s
		}
	case m.keys.Refill:
		if st := &m.hotbar[m.selected]; st.Kind == m.cfg.EmptyKind && st.Count > 0 {
			st.Kind = m.cfg.FullKind
		}
	}
}

func (m *InventoryModel) applyHold(key string, down bool) {
	if key != m.keys.Crouch {
		return
	}
	m.mu.Lock()
	m.crouching = down
	m.mu.Unlock()
}

// applyUse replays a right click in the world
func (m *InventoryModel) applyUse() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panels.CurrentPanel().IsOpen {
		return
	}

	// With the seed slot in hand a right click opens the station or plants
	if m.seedHeld {
		if !m.crouching {
			return
		}
		if s := m.cfg.SeedSlot; s >= 0 && m.hotbar[s].Kind == m.cfg.SeedKind && m.hotbar[s].Count > 0 {
			m.hotbar[s].Count--
			if m.hotbar[s].Count == 0 {
				m.hotbar[s] = ItemStack{}
			}
		}
		return
	}

	st := &m.hotbar[m.selected]
	if st.Kind != m.cfg.FullKind || st.Count <= 0 {
		return
	}
	if st.Count == 1 {
		st.Kind = m.cfg.EmptyKind
		return
	}
	st.Count--
	m.addEmptyCarrier()
}

// addEmptyCarrier stores one emptied carrier, merging with an empty stack
// in the carrier slots when possible.
func (m *InventoryModel) addEmptyCarrier() {
	limit := m.cfg.CarrierSlots
	if limit <= 0 || limit > hotbarSlots {
		limit = hotbarSlots
	}
	for i := 0; i < limit; i++ {
		if m.hotbar[i].Kind == m.cfg.EmptyKind && m.hotbar[i].Count > 0 {
			m.hotbar[i].Count++
			return
		}
	}
	for i := 0; i < limit; i++ {
		if m.hotbar[i].IsEmpty() {
			m.hotbar[i] = ItemStack{Kind: m.cfg.EmptyKind, Count: 1}
			return
		}
	}
}

func (m *InventoryModel) applyTeleport(destination string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.location = destination
	m.harvested = false
}

// TrackingActuator replays every call into an InventoryModel before
// passing it on
type TrackingActuator struct {
	next  Actuator
	model *InventoryModel
}

// NewTrackingActuator wraps next
func NewTrackingActuator(next Actuator, model *InventoryModel) *TrackingActuator {
	return &TrackingActuator{next: next, model: model}
}

func (t *TrackingActuator) Click(button MouseButton) {
	if button == ButtonRight {
		t.model.applyUse()
	}
	t.next.Click(button)
}

func (t *TrackingActuator) ClickSlot(syncID, slot int, button MouseButton, mode ClickMode) {
	t.model.applySlotClick(slot, button, mode)
	t.next.ClickSlot(syncID, slot, button, mode)
}

func (t *TrackingActuator) PressKey(key string) {
	t.model.applyKey(key)
	t.next.PressKey(key)
}

func (t *TrackingActuator) HoldKey(key string) {
	t.model.applyHold(key, true)
	t.next.HoldKey(key)
}

func (t *TrackingActuator) ReleaseKey(key string) {
	t.model.applyHold(key, false)
	t.next.ReleaseKey(key)
}

func (t *TrackingActuator) TeleportCommand(destination string) {
	t.model.applyTeleport(destination)
	t.next.TeleportCommand(destination)
}

func (t *TrackingActuator) ChatCommand(text string) {
	t.next.ChatCommand(text)
}

func (t *TrackingActuator) Connect() {
	t.next.Connect()
}

func (t *TrackingActuator) Disconnect() {
	t.model.applyHold(t.model.keys.Crouch, false)
	t.next.Disconnect()
}
