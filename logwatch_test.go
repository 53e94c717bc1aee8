package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type logFixture struct {
	t    *testing.T
	path string
	now  time.Time
	w    *FileLogWatcher
}

func newLogFixture(t *testing.T, enc string) *logFixture {
	t.Helper()
	f := &logFixture{
		t:    t,
		path: filepath.Join(t.TempDir(), "latest.log"),
		now:  time.Date(2026, 3, 14, 6, 30, 0, 0, time.UTC),
	}
	w, err := NewFileLogWatcher(f.path, enc)
	if err != nil {
		t.Fatalf("NewFileLogWatcher: %v", err)
	}
	w.now = func() time.Time { return f.now }
	f.w = w
	return f
}

func (f *logFixture) append(data string) {
	f.t.Helper()
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		f.t.Fatal(err)
	}
	defer file.Close()
	if _, err := file.WriteString(data); err != nil {
		f.t.Fatal(err)
	}
}

func TestLogWatcherSkipsExistingLines(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.append("[06:29:00] [Client thread/INFO]: Connecting to play.example.net\n")
	f.w.Start()

	since := f.now
	if f.w.ObservedSince(since, "Connecting to") {
		t.Error("matched a line written before Start")
	}

	f.now = f.now.Add(time.Second)
	f.append("[06:30:01] [Client thread/INFO]: Connecting to play.example.net\n")
	if !f.w.ObservedSince(since, "Connecting to") {
		t.Error("missed an appended line")
	}
	if f.w.ObservedSince(f.now.Add(time.Second), "Connecting to") {
		t.Error("matched a line read before since")
	}
}

func TestLogWatcherPartialLine(t *testing.T) {
	f := newLogFixture(t, "")
	f.w.Start()

	f.append("[CHAT] Teleportation en cou")
	if f.w.ObservedSince(f.now, `Teleportation en cours`) {
		t.Error("matched an unterminated line")
	}
	f.append("rs\r\n")
	if !f.w.ObservedSince(f.now, `Teleportation en cours$`) {
		t.Error("joined line did not match (CR should be trimmed)")
	}
}

func TestLogWatcherTruncation(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.append("old line one\nold line two\n")
	f.w.Start()

	if err := os.WriteFile(f.path, []byte("Disconnected\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !f.w.ObservedSince(f.now, "Disconnected") {
		t.Error("line after truncation not seen")
	}
}

func TestLogWatcherWindows1252(t *testing.T) {
	f := newLogFixture(t, "windows-1252")
	f.w.Start()

	// "déjà pleine d'eau" in cp1252
	f.append("[CHAT] Station d\xe9j\xe0 pleine d'eau\n")
	if !f.w.ObservedSince(f.now, "déjà pleine") {
		t.Error("decoded line did not match")
	}
}

func TestLogWatcherPatterns(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.w.Start()
	f.append("Lost connection: Timed out (x2)\n")

	if f.w.ObservedSince(f.now, "") {
		t.Error("empty pattern matched")
	}
	if !f.w.ObservedSince(f.now, `(?i)lost connection|kicked`) {
		t.Error("regexp pattern did not match")
	}
	// an invalid regexp is matched literally
	if !f.w.ObservedSince(f.now, "(x2") {
		t.Error("invalid pattern did not fall back to a literal match")
	}
}

func TestLogWatcherResetAndMissingFile(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.w.Start()
	if err := f.w.Poll(); err != nil {
		t.Fatalf("Poll on missing file: %v", err)
	}

	f.append("Connection refused\n")
	if !f.w.ObservedSince(f.now, "refused") {
		t.Fatal("line not seen")
	}
	f.w.Reset()
	if f.w.ObservedSince(f.now, "refused") {
		t.Error("line still seen after Reset")
	}
}

func TestLogWatcherRejectsEncoding(t *testing.T) {
	if _, err := NewFileLogWatcher("latest.log", "ebcdic"); err == nil {
		t.Error("unknown encoding accepted")
	}
}

func TestLinesAfterReturnsNewLinesOnce(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.w.Start()

	lines, cursor := f.w.LinesAfter(0)
	if len(lines) != 0 || cursor != 0 {
		t.Fatalf("empty log gave %q at %d", lines, cursor)
	}

	f.append("[12:00:01] [Render thread/INFO]: [CHAT] Bob: salut\n[12:00:02] [Render thread/INFO]: [CHAT] Alice: yo\n")
	if err := f.w.Poll(); err != nil {
		t.Fatal(err)
	}
	lines, cursor = f.w.LinesAfter(cursor)
	if len(lines) != 2 || cursor != 2 {
		t.Fatalf("got %q at %d", lines, cursor)
	}
	if lines[0] != "[12:00:01] [Render thread/INFO]: [CHAT] Bob: salut" {
		t.Errorf("first line = %q", lines[0])
	}

	lines, cursor = f.w.LinesAfter(cursor)
	if len(lines) != 0 || cursor != 2 {
		t.Errorf("read again: %q at %d", lines, cursor)
	}
}

func TestLinesAfterSkipsOverwrittenLines(t *testing.T) {
	f := newLogFixture(t, "utf-8")
	f.w.Start()

	var data []byte
	for i := 0; i < logRingSize+10; i++ {
		data = append(data, "line\n"...)
	}
	f.append(string(data))
	if err := f.w.Poll(); err != nil {
		t.Fatal(err)
	}

	lines, cursor := f.w.LinesAfter(0)
	if len(lines) != logRingSize {
		t.Errorf("lines = %d, want %d", len(lines), logRingSize)
	}
	if cursor != logRingSize+10 {
		t.Errorf("cursor = %d", cursor)
	}
}
