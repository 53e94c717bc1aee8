package main

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{0, "0s"},
		{1500 * time.Millisecond, "1s"},
		{15 * time.Minute, "15m 0s"},
		{4*time.Minute + 7*time.Second, "4m 7s"},
		{70 * time.Minute, "1h 10m 0s"},
		{25*time.Hour + 2*time.Second, "25h 0m 2s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := map[int]string{0: "0m", 40: "40m", 60: "1h", 70: "1h 10m", 180: "3h"}
	for in, want := range tests {
		if got := FormatMinutes(in); got != want {
			t.Errorf("FormatMinutes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSafeGoRecovers(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() {
		defer close(done)
		panic("boom")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestRecoverInto(t *testing.T) {
	run := func() (err error) {
		defer recoverInto("step", &err)
		panic("bad input")
	}
	if err := run(); err == nil || err.Error() != "step panicked: bad input" {
		t.Errorf("err = %v", err)
	}
}
