package main

import (
	"image"
	"sync"
	"testing"
	"time"
)

// switchingScreen serves whichever screenshot is current
type switchingScreen struct {
	mu  sync.Mutex
	img *image.RGBA
}

func (s *switchingScreen) show(img *image.RGBA) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

func (s *switchingScreen) capture(r image.Rectangle) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.SubImage(r).(*image.RGBA), nil
}

func TestTitleReadQueuedWhileBusy(t *testing.T) {
	cfg := calibrationConfig()
	cfg.Screen.TitleRegion = Bounds{X: 30, Y: 30, W: 40, H: 10}

	screen := &switchingScreen{img: image.NewRGBA(image.Rect(0, 0, 400, 400))}
	release := make(chan struct{})
	started := make(chan int, 4)
	var mu sync.Mutex
	calls := 0

	observer := &ScreenPanelObserver{
		cfg:     cfg.Screen,
		grid:    cfg.Positions.SlotGrid,
		capture: screen.capture,
		ocr: func(image.Image, []string) (string, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			started <- n
			if n == 1 {
				<-release
				return "Coffre ferme1", nil
			}
			return "Coffre ferme2", nil
		},
		ripeSeq: -1,
	}

	// first panel opens and its read blocks
	screen.show(syntheticScreen(cfg, 3))
	observer.CurrentPanel()
	if n := <-started; n != 1 {
		t.Fatalf("first read = call %d", n)
	}

	// it closes and a second panel opens while the read is still running
	screen.show(image.NewRGBA(image.Rect(0, 0, 400, 400)))
	if raw := observer.CurrentPanel(); raw.IsOpen {
		t.Fatalf("closed screen reported %+v", raw)
	}
	screen.show(syntheticScreen(cfg, 3))
	observer.CurrentPanel()

	close(release)
	select {
	case n := <-started:
		if n != 2 {
			t.Fatalf("queued read = call %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second panel title was never read")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		raw := observer.CurrentPanel()
		if raw.Title == "Coffre ferme2" {
			break
		}
		if raw.Title == "Coffre ferme1" {
			t.Fatalf("stale title from the first panel")
		}
		if time.Now().After(deadline) {
			t.Fatalf("title = %q", raw.Title)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("ocr calls = %d, want 2", calls)
	}
}

func TestTitleReadSkippedForClosedPanel(t *testing.T) {
	cfg := calibrationConfig()
	cfg.Screen.TitleRegion = Bounds{X: 30, Y: 30, W: 40, H: 10}

	screen := &switchingScreen{img: syntheticScreen(cfg, 3)}
	release := make(chan struct{})
	done := make(chan struct{}, 4)
	var mu sync.Mutex
	calls := 0

	observer := &ScreenPanelObserver{
		cfg:     cfg.Screen,
		grid:    cfg.Positions.SlotGrid,
		capture: screen.capture,
		ocr: func(image.Image, []string) (string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			done <- struct{}{}
			return "Coffre", nil
		},
		ripeSeq: -1,
	}

	observer.CurrentPanel()
	screen.show(image.NewRGBA(image.Rect(0, 0, 400, 400)))
	observer.CurrentPanel()
	screen.show(syntheticScreen(cfg, 3))
	observer.CurrentPanel()
	// the queued panel is gone before the busy read returns
	screen.show(image.NewRGBA(image.Rect(0, 0, 400, 400)))
	observer.CurrentPanel()

	close(release)
	<-done
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("ocr calls = %d, want 1", calls)
	}
	if raw := observer.CurrentPanel(); raw.IsOpen || raw.Title != "" {
		t.Errorf("panel = %+v", raw)
	}
}
