// Package main - persistence.go
//
// This file implements the durable ledger record: the handful of session
// fields that must survive a crash or a restart of the bot.
//
// Persistent Data:
//   - Schedule: the last period the carriers were routed for
//   - Water: refills still owed to stations, last refill time, forced refill flag
//   - Carriers: selected hotbar slot, carrier mode (1 or 16)
//   - Progress: stations completed today, last session end, next harvest
//
// File Format:
// JSON with 2-space indentation (state.json in the data directory):
// {
//   "previous_period": "Day",
//   "water_refills_remaining": 0,
//   "carrier_slot": 0,
//   "carrier_mode": 16,
//   ...
// }
//
// Save Triggers:
//   - Every ledger mutation (deposit, withdraw, slot change)
//   - Period transition handled
//   - Station completed, session ended
//
// Load Behavior:
//   - If the file exists: load it
//   - If the file doesn't exist: defaults (Day period, no carriers assumed)
//   - If the file is corrupted: log a warning, use defaults
//
// Writes go to a temporary file which is then renamed over the record, so
// a crash mid-write leaves the previous record intact.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFile = "state.json"

// LedgerRecord is the durable part of the session state
type LedgerRecord struct {
	PreviousPeriod         PeriodID  `json:"previous_period"`
	WaterRefillsRemaining  int       `json:"water_refills_remaining"`
	CarrierSlot            int       `json:"carrier_slot"`
	CarrierMode            int       `json:"carrier_mode"`
	StationsCompletedToday int       `json:"stations_completed_today"`
	Day                    string    `json:"day"` // YYYY-MM-DD the counter above belongs to
	LastSessionEndTime     time.Time `json:"last_session_end_time"`
	LastWaterRefillTime    time.Time `json:"last_water_refill_time"`
	ForceFullWaterRefill   bool      `json:"force_full_water_refill"`
	NextHarvestDue         time.Time `json:"next_harvest_due"`
}

// DefaultLedgerRecord returns the safe fallback record
func DefaultLedgerRecord() LedgerRecord {
	return LedgerRecord{
		PreviousPeriod: PeriodDay,
		CarrierSlot:    -1,
	}
}

// CountStation adds a completed station to today's counter, resetting it
// when the day changed.
func (r *LedgerRecord) CountStation(now time.Time) {
	day := now.Format("2006-01-02")
	if r.Day != day {
		r.Day = day
		r.StationsCompletedToday = 0
	}
	r.StationsCompletedToday++
}

// LedgerStore loads and saves the durable record
type LedgerStore interface {
	Load() LedgerRecord
	Save(LedgerRecord) error
}

// FileLedgerStore keeps the record in a JSON file
type FileLedgerStore struct {
	path string
}

// NewFileLedgerStore creates a store writing to path
func NewFileLedgerStore(path string) *FileLedgerStore {
	return &FileLedgerStore{path: path}
}

// Load reads the record.
//
// Returns:
//   - LedgerRecord: loaded record, or DefaultLedgerRecord when the file is
//     missing or unreadable
//
// Load never fails. A broken file must not keep the bot from starting.
func (s *FileLedgerStore) Load() LedgerRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogInfo("No state file at %s, starting from defaults", s.path)
		} else {
			LogWarn("Failed to read state file %s: %v, using defaults", s.path, err)
		}
		return DefaultLedgerRecord()
	}

	record := DefaultLedgerRecord()
	if err := json.Unmarshal(data, &record); err != nil {
		LogWarn("State file %s is corrupted: %v, using defaults", s.path, err)
		return DefaultLedgerRecord()
	}

	if record.PreviousPeriod == "" {
		record.PreviousPeriod = PeriodDay
	}
	if record.WaterRefillsRemaining < 0 {
		record.WaterRefillsRemaining = 0
	}

	LogInfo("State loaded from %s (period=%s, refills owed=%d)",
		s.path, record.PreviousPeriod, record.WaterRefillsRemaining)
	return record
}

// Save writes the record atomically.
//
// File Operations:
//  1. Encode with 2-space indent
//  2. Write and sync a temporary file next to the record
//  3. Rename it over the record
func (s *FileLedgerStore) Save(record LedgerRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}

	LogDebug("State saved to %s", s.path)
	return nil
}
