// Package main - logwatch.go
//
// FileLogWatcher tails the game client's log file (latest.log) and answers
// "has a line matching this pattern appeared since t?" without blocking.
//
// Tailing:
//   - Start positions the reader at the end of the file; older lines are ignored
//   - Each Poll reads what was appended since the last one
//   - A file shorter than the read offset was rotated or truncated: reading
//     restarts at 0
//   - An unterminated last line is kept until its newline arrives
//
// Lines are stamped with the time they were read. The client writes its
// own timestamps in local time without a date, so the read time is the
// only reliable ordering key.
//
// The Windows client writes the log in the system code page; lines are
// decoded from windows-1252 when configured so accented server messages
// ("déjà pleine d'eau") match.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// LogWatcher checks the game log for patterns
type LogWatcher interface {
	ObservedSince(since time.Time, pattern string) bool
}

const logRingSize = 512

type logLine struct {
	at   time.Time
	text string
}

// FileLogWatcher tails a text file
type FileLogWatcher struct {
	path    string
	decoder *encoding.Decoder
	now     func() time.Time

	offset  int64
	partial []byte
	ring    [logRingSize]logLine
	head    int // next write position
	size    int
	total   uint64 // lines pushed since creation

	patterns map[string]*regexp.Regexp
	mu       sync.Mutex
}

// NewFileLogWatcher creates a watcher. encodingName is "utf-8" (or empty)
// or "windows-1252".
func NewFileLogWatcher(path, encodingName string) (*FileLogWatcher, error) {
	w := &FileLogWatcher{
		path:     path,
		now:      time.Now,
		patterns: make(map[string]*regexp.Regexp),
	}
	switch strings.ToLower(encodingName) {
	case "", "utf-8", "utf8":
	case "windows-1252", "cp1252":
		w.decoder = charmap.Windows1252.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported log encoding %q", encodingName)
	}
	return w, nil
}

// Start skips everything already in the file
func (w *FileLogWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seekEnd()
}

// Reset forgets buffered lines and skips to the end of the file
func (w *FileLogWatcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.head, w.size = 0, 0
	w.seekEnd()
}

func (w *FileLogWatcher) seekEnd() {
	w.partial = w.partial[:0]
	info, err := os.Stat(w.path)
	if err != nil {
		w.offset = 0
		return
	}
	w.offset = info.Size()
}

// Poll reads newly appended lines
func (w *FileLogWatcher) Poll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.poll()
}

func (w *FileLogWatcher) poll() error {
	f, err := os.Open(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open game log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat game log: %w", err)
	}
	if info.Size() < w.offset {
		LogInfo("Game log truncated, reading from start")
		w.offset = 0
		w.partial = w.partial[:0]
	}
	if info.Size() == w.offset {
		return nil
	}

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek game log: %w", err)
	}
	chunk, err := io.ReadAll(io.LimitReader(f, info.Size()-w.offset))
	if err != nil {
		return fmt.Errorf("read game log: %w", err)
	}
	w.offset += int64(len(chunk))

	data := append(w.partial, chunk...)
	at := w.now()
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.push(at, data[:i])
		data = data[i+1:]
	}
	w.partial = append(w.partial[:0:0], data...)
	return nil
}

func (w *FileLogWatcher) push(at time.Time, raw []byte) {
	raw = bytes.TrimRight(raw, "\r")
	text := string(raw)
	if w.decoder != nil {
		if decoded, err := w.decoder.Bytes(raw); err == nil {
			text = string(decoded)
		}
	}
	w.ring[w.head] = logLine{at: at, text: text}
	w.head = (w.head + 1) % logRingSize
	if w.size < logRingSize {
		w.size++
	}
	w.total++
}

// LinesAfter returns the buffered lines pushed after cursor, oldest first,
// and the cursor to pass next time. Lines that left the ring are skipped.
// It does not poll the file.
func (w *FileLogWatcher) LinesAfter(cursor uint64) ([]string, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cursor >= w.total {
		return nil, w.total
	}
	n := w.total - cursor
	if n > uint64(w.size) {
		n = uint64(w.size)
	}
	out := make([]string, 0, n)
	for i := int(n); i > 0; i-- {
		out = append(out, w.ring[(w.head-i+logRingSize)%logRingSize].text)
	}
	return out, w.total
}

func (w *FileLogWatcher) compile(pattern string) *regexp.Regexp {
	if re, ok := w.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		LogWarn("Invalid log pattern %q (%v), matching it literally", pattern, err)
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}
	w.patterns[pattern] = re
	return re
}

// ObservedSince polls the file and reports whether a line read at or
// after since matches pattern. An empty pattern never matches.
func (w *FileLogWatcher) ObservedSince(since time.Time, pattern string) bool {
	if pattern == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.poll(); err != nil {
		LogDebug("Game log poll failed: %v", err)
	}

	re := w.compile(pattern)
	for n := 0; n < w.size; n++ {
		line := w.ring[(w.head-1-n+logRingSize)%logRingSize]
		if line.at.Before(since) {
			break
		}
		if re.MatchString(line.text) {
			return true
		}
	}
	return false
}
