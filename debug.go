// Package main - debug.go
//
// This file implements centralized logging for the bot.
//
// Logging System:
//   - Thread-safe file logging (agribot.log by default)
//   - Four log levels: DEBUG, INFO, WARN, ERROR
//   - Microsecond timestamps for timing analysis
//   - File is truncated (cleared) on each startup
//   - Optional mirror to stderr (--verbose)
//   - DEBUG lines are dropped unless enabled (--debug)
//
// Logging Practices:
//   - DEBUG: Per-tick details (panel polls, slot clicks, log matches)
//   - INFO: Session lifecycle (connect, station done, pause)
//   - WARN: Recoverable problems (retries, corrupt state file)
//   - ERROR: Failures that end a session or stop the bot
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// logLevel orders the four tags; lines below the logger's floor are dropped
type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

var levelTags = [...]string{"[DEBUG] ", "[INFO] ", "[WARN] ", "[ERROR] "}

// Logger writes tagged lines to the bot log file.
//
// The controller tick loop, the tray, the hotkey listener and the status
// feed all log through the same instance, so every write holds the mutex.
type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	file  *os.File
	floor logLevel
}

// current is swapped by InitLogger and CloseLogger while goroutines may
// still be logging.
var current atomic.Pointer[Logger]

// LogOptions configures InitLogger
type LogOptions struct {
	Path    string // log file, created or truncated
	Verbose bool   // mirror to stderr
	Debug   bool   // keep DEBUG lines
}

// InitLogger opens (and clears) the log file and installs the logger used
// by LogDebug, LogInfo, LogWarn and LogError.
func InitLogger(opts LogOptions) error {
	path := opts.Path
	if path == "" {
		path = "agribot.log"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating log dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = file
	if opts.Verbose {
		w = io.MultiWriter(file, os.Stderr)
	}
	l := &Logger{
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		file:  file,
		floor: levelInfo,
	}
	if opts.Debug {
		l.floor = levelDebug
	}
	if old := current.Swap(l); old != nil {
		old.close()
	}

	l.logf(levelInfo, "Log file %s cleared (debug=%v)", path, opts.Debug)
	return nil
}

// CloseLogger flushes a last line and closes the log file. Later Log calls
// are dropped.
func CloseLogger() {
	if l := current.Swap(nil); l != nil {
		l.logf(levelInfo, "Log closed")
		l.close()
	}
}

func (l *Logger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) logf(level logLevel, format string, v ...interface{}) {
	if level < l.floor {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	l.out.Printf(levelTags[level]+format, v...)
}

func logAt(level logLevel, format string, v ...interface{}) {
	if l := current.Load(); l != nil {
		l.logf(level, format, v...)
	}
}

// LogDebug logs per-tick detail; dropped unless --debug
func LogDebug(format string, v ...interface{}) { logAt(levelDebug, format, v...) }

// LogInfo logs session lifecycle events
func LogInfo(format string, v ...interface{}) { logAt(levelInfo, format, v...) }

// LogWarn logs recoverable problems
func LogWarn(format string, v ...interface{}) { logAt(levelWarn, format, v...) }

// LogError logs failures that end a session or stop the bot
func LogError(format string, v ...interface{}) { logAt(levelError, format, v...) }
