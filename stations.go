package main

// StationCycle owns the ordered station list of one session and the cursor
// into it. The list is a private copy taken by Load.
type StationCycle struct {
	stations []string
	cursor   int
}

// Load snapshots the station list and rewinds the cursor
func (c *StationCycle) Load(stations []string) {
	c.stations = append([]string(nil), stations...)
	c.cursor = 0
}

// Current returns the station under the cursor, "" when empty
func (c *StationCycle) Current() string {
	if len(c.stations) == 0 {
		return ""
	}
	return c.stations[c.cursor]
}

// Advance moves to the next station. It returns false when the cursor
// wrapped past the last station, which ends the session.
func (c *StationCycle) Advance() bool {
	if len(c.stations) == 0 {
		return false
	}
	c.cursor++
	if c.cursor >= len(c.stations) {
		c.cursor = 0
		return false
	}
	return true
}

// Reset rewinds the cursor to the first station
func (c *StationCycle) Reset() {
	c.cursor = 0
}

// Index returns the cursor position
func (c *StationCycle) Index() int {
	return c.cursor
}

// Len returns the number of stations in the snapshot
func (c *StationCycle) Len() int {
	return len(c.stations)
}

// IsLast reports whether the cursor is on the final station
func (c *StationCycle) IsLast() bool {
	return len(c.stations) > 0 && c.cursor == len(c.stations)-1
}

// Stations returns a copy of the snapshot
func (c *StationCycle) Stations() []string {
	return append([]string(nil), c.stations...)
}
