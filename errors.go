// Package main - errors.go
//
// Error taxonomy of the bot controller.
//
// Every failure the controller sees ends up as an ErrorKind, derived from
// the error message by an ordered keyword table (first match wins).
// SupplyExhausted and ConfigError cannot be fixed by retrying; every other
// kind is retried up to the configured cap.
package main

import (
	"errors"
	"strings"
)

// ErrorKind classifies a controller failure
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNetwork
	ErrorTimeout
	ErrorPanel
	ErrorStation
	ErrorResource
	ErrorSupplyExhausted
	ErrorConfig
	ErrorUnknown
)

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "None"
	case ErrorNetwork:
		return "NetworkError"
	case ErrorTimeout:
		return "TimeoutError"
	case ErrorPanel:
		return "PanelError"
	case ErrorStation:
		return "StationError"
	case ErrorResource:
		return "ResourceError"
	case ErrorSupplyExhausted:
		return "SupplyExhausted"
	case ErrorConfig:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// Recoverable reports whether the controller may retry after this kind
func (k ErrorKind) Recoverable() bool {
	return k != ErrorSupplyExhausted && k != ErrorConfig
}

// errorRules is ordered: supply and config problems must win over the
// generic words they often contain ("no carriers left at station ...").
var errorRules = []struct {
	kind     ErrorKind
	keywords []string
}{
	{ErrorSupplyExhausted, []string{"supply exhausted", "no seeds", "out of seeds", "no buckets", "no carriers left"}},
	{ErrorConfig, []string{"config", "no stations", "invalid"}},
	{ErrorNetwork, []string{"network", "connection", "disconnect"}},
	{ErrorTimeout, []string{"timeout", "timed out"}},
	{ErrorPanel, []string{"panel", "menu", "container", "chest"}},
	{ErrorStation, []string{"station", "teleport", "home"}},
	{ErrorResource, []string{"bucket", "carrier", "resource", "slot"}},
}

// ClassifyError maps a free-text error message to an ErrorKind
func ClassifyError(message string) ErrorKind {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return ErrorNone
	}
	for _, rule := range errorRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return rule.kind
			}
		}
	}
	return ErrorUnknown
}

// ClassifyErr classifies an error value
func ClassifyErr(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	return ClassifyError(err.Error())
}

// Sentinel errors returned by the ledger and the controller.
var (
	ErrNoFreeSlot        = errors.New("no free slot to deposit carriers")
	ErrCarrierNotFound   = errors.New("carrier stack not found in player inventory")
	ErrCarriersExhausted = errors.New("supply exhausted: no carriers left")
	ErrOutOfSeeds        = errors.New("out of seeds and no seed supply home configured")
	ErrNoStations        = errors.New("no stations configured")
)

// Disposition is the outcome of one state-level operation
type Disposition int

const (
	DispositionPending Disposition = iota
	DispositionSuccess
	DispositionTimeout
	DispositionFailure
)

// String returns the string representation of the disposition
func (d Disposition) String() string {
	switch d {
	case DispositionPending:
		return "Pending"
	case DispositionSuccess:
		return "Success"
	case DispositionTimeout:
		return "Timeout"
	default:
		return "Failure"
	}
}
