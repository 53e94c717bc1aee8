// Package main - analyzer.go
//
// Screen analysis for the game client window.
// Implements PanelObserver from screenshots.
//
// Key responsibilities:
//   - Panel open detection (panel background color at a probe point)
//   - Container size: count 9-slot rows down the slot grid
//   - Synchronization: a panel is reported synced once its row count held
//     for two consecutive captures, with a sync id unique per opening
//   - Panel title OCR (tesseract), read once per opening in the background
//   - Ripe crop probe for the harvest marker
package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/otiai10/gosseract"
)

const maxContainerRows = 6

// captureFunc grabs a screen region
type captureFunc func(image.Rectangle) (*image.RGBA, error)

// titleReader extracts text from an image
type titleReader func(img image.Image, languages []string) (string, error)

// ScreenPanelObserver reads panel state from screen captures
type ScreenPanelObserver struct {
	cfg     ScreenConfig
	grid    SlotGrid
	capture captureFunc
	ocr     titleReader

	mu           sync.Mutex
	wasOpen      bool
	openSeq      int
	rows         int
	stable       int
	title        string
	titleBusy    bool
	titleNext    *image.RGBA // panel opened while a read was running
	titleNextSeq int
	ripeSeq      int
	ripe         bool

	// Slot reads ask for the panel many times per tick; captures closer
	// than cacheFor reuse the last result.
	cacheFor time.Duration
	lastAt   time.Time
	last     RawPanel
}

// NewScreenPanelObserver creates an observer capturing the real screen
func NewScreenPanelObserver(cfg *Config) *ScreenPanelObserver {
	return &ScreenPanelObserver{
		cfg:      cfg.Screen,
		grid:     cfg.Positions.SlotGrid,
		capture:  screenshot.CaptureRect,
		ocr:      ocrText,
		ripeSeq:  -1,
		cacheFor: 30 * time.Millisecond,
	}
}

// probeRegion returns the smallest rectangle covering every probe point
func (o *ScreenPanelObserver) probeRegion() image.Rectangle {
	size := o.grid.Size
	if size <= 0 {
		size = 36
	}
	r := image.Rect(o.grid.Origin.X-size/2, o.grid.Origin.Y-size/2,
		o.grid.Origin.X+1, o.grid.Origin.Y+maxContainerRows*size)
	p := o.cfg.PanelProbe
	r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	h := o.cfg.HarvestProbe
	if !h.IsZero() {
		r = r.Union(image.Rect(h.X, h.Y, h.X+1, h.Y+1))
	}
	return r
}

func pixelAt(img *image.RGBA, p Point) Color {
	if !(image.Point{X: p.X, Y: p.Y}).In(img.Bounds()) {
		return Color{}
	}
	c := img.RGBAAt(p.X, p.Y)
	return Color{R: c.R, G: c.G, B: c.B}
}

// countRows counts consecutive slot rows starting at the grid origin. The
// probe sits on the left border of the first slot of each row.
func (o *ScreenPanelObserver) countRows(img *image.RGBA) int {
	size := o.grid.Size
	if size <= 0 {
		size = 36
	}
	rows := 0
	for r := 0; r < maxContainerRows; r++ {
		p := Point{X: o.grid.Origin.X - size/2 + 1, Y: o.grid.Origin.Y + r*size}
		if !pixelAt(img, p).Matches(o.cfg.SlotColor, o.cfg.Tolerance) {
			break
		}
		rows++
	}
	return rows
}

// analyze derives the raw panel from one capture
func (o *ScreenPanelObserver) analyze(img *image.RGBA) RawPanel {
	open := pixelAt(img, o.cfg.PanelProbe).Matches(o.cfg.PanelColor, o.cfg.Tolerance)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !open {
		o.wasOpen = false
		o.rows, o.stable = 0, 0
		o.title = ""
		return RawPanel{}
	}

	if !o.wasOpen {
		o.wasOpen = true
		o.openSeq++
		o.rows, o.stable = 0, 0
		o.title = ""
		o.readTitle(img, o.openSeq)
	}

	rows := o.countRows(img)
	if rows == o.rows && rows > 0 {
		o.stable++
	} else {
		o.rows = rows
		o.stable = 0
	}

	raw := RawPanel{
		IsOpen:    true,
		SlotCount: rows * 9,
		Title:     o.title,
	}
	if o.stable >= 1 {
		raw.SyncID = o.openSeq
	}
	return raw
}

// readTitle runs OCR off the tick goroutine. Caller holds o.mu. Only one
// read runs at a time; a panel that opens meanwhile is read when the
// running one returns.
func (o *ScreenPanelObserver) readTitle(img *image.RGBA, seq int) {
	region := o.cfg.TitleRegion
	if region.W <= 0 || region.H <= 0 || o.ocr == nil {
		return
	}
	if o.titleBusy {
		o.titleNext, o.titleNextSeq = img, seq
		return
	}
	sub := img.SubImage(region.Rect())
	if sub.Bounds().Empty() {
		return
	}
	o.titleBusy = true
	SafeGo(func() {
		text, err := o.ocr(sub, o.cfg.OCRLanguages)
		o.mu.Lock()
		defer o.mu.Unlock()
		o.titleBusy = false

		switch {
		case err != nil:
			LogDebug("Panel title OCR failed: %v", err)
		case o.openSeq == seq && o.wasOpen:
			o.title = strings.TrimSpace(text)
			LogDebug("Panel title: %q", o.title)
		}

		if next := o.titleNext; next != nil {
			nextSeq := o.titleNextSeq
			o.titleNext = nil
			if o.openSeq == nextSeq && o.wasOpen {
				o.readTitle(next, nextSeq)
			}
		}
	})
}

// anchor places a zero-based capture at its screen position so probes
// can use screen coordinates.
func anchor(img *image.RGBA, at image.Point) *image.RGBA {
	if img.Rect.Min == (image.Point{}) && at != (image.Point{}) {
		img.Rect = img.Rect.Add(at)
	}
	return img
}

// CurrentPanel captures the probe region and reports the open panel
func (o *ScreenPanelObserver) CurrentPanel() RawPanel {
	if o.cacheFor > 0 {
		o.mu.Lock()
		if !o.lastAt.IsZero() && time.Since(o.lastAt) < o.cacheFor {
			defer o.mu.Unlock()
			return o.last
		}
		o.mu.Unlock()
	}

	region := o.probeRegion()
	img, err := o.capture(region)
	if err != nil {
		LogDebug("Screen capture failed: %v", err)
		return RawPanel{}
	}
	raw := o.analyze(anchor(img, region.Min))

	o.mu.Lock()
	o.last, o.lastAt = raw, time.Now()
	o.mu.Unlock()
	return raw
}

// Ripe reports whether the crop probe shows a ripe crop. The answer is
// computed once per panel opening.
func (o *ScreenPanelObserver) Ripe() bool {
	if o.cfg.HarvestAlways || o.cfg.HarvestProbe.IsZero() {
		return true
	}

	o.mu.Lock()
	seq := o.openSeq
	if o.ripeSeq == seq {
		defer o.mu.Unlock()
		return o.ripe
	}
	o.mu.Unlock()

	p := o.cfg.HarvestProbe
	img, err := o.capture(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	if err != nil {
		LogDebug("Harvest probe capture failed: %v", err)
		return true
	}
	ripe := pixelAt(anchor(img, image.Pt(p.X, p.Y)), p).Matches(o.cfg.HarvestColor, o.cfg.Tolerance)

	o.mu.Lock()
	o.ripeSeq = seq
	o.ripe = ripe
	o.mu.Unlock()
	return ripe
}

// ocrText reads text from an image with tesseract
func ocrText(img image.Image, languages []string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return client.Text()
}

// toRGBA converts any image to RGBA
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.RGBAModel.Convert(img.At(x, y)))
		}
	}
	return out
}
