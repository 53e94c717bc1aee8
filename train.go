// Package main - train.go
//
// Calibration mode for the screen probes.
// Takes a screenshot (or loads one), runs the panel observer on it, and
// saves a copy with every configured probe drawn on top.
//
// Usage:
//  1. Open a chest or a station menu in the game client
//  2. Run: agribot calibrate (or: agribot calibrate --from shot.png)
//  3. Check calibrate.png: probes that match are green, misses are red
//  4. Adjust the screen / positions sections of the config and repeat
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/kbinani/screenshot"
)

var (
	markHit   = color.RGBA{R: 40, G: 220, B: 40, A: 255}
	markMiss  = color.RGBA{R: 230, G: 30, B: 30, A: 255}
	markInfo  = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	markClick = color.RGBA{R: 255, G: 200, B: 0, A: 255}
)

// ProbeSample is one probe compared against its configured colour
type ProbeSample struct {
	Name  string
	At    Point
	Seen  Color
	Want  Color
	Match bool
}

// CalibrationReport summarizes what the observer made of a screenshot
type CalibrationReport struct {
	Panel   RawPanel
	Type    PanelType
	Rows    int
	Ripe    bool
	Samples []ProbeSample
}

// CaptureScreen grabs the primary display
func CaptureScreen() (*image.RGBA, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fmt.Errorf("no active display")
	}
	return screenshot.CaptureDisplay(0)
}

// Calibrate runs the observer on img and draws the probes.
//
// Parameters:
//   - cfg: configuration holding the probe positions and colours
//   - img: screenshot in screen coordinates
//   - ocr: title reader, nil to skip OCR
//
// Returns:
//   - *image.RGBA: copy of img with the probes drawn
//   - CalibrationReport: sampled colours and the classified panel
func Calibrate(cfg *Config, img *image.RGBA, ocr titleReader) (*image.RGBA, CalibrationReport) {
	observer := &ScreenPanelObserver{
		cfg:  cfg.Screen,
		grid: cfg.Positions.SlotGrid,
		capture: func(r image.Rectangle) (*image.RGBA, error) {
			sub, ok := img.SubImage(r).(*image.RGBA)
			if !ok || sub.Bounds().Empty() {
				return nil, fmt.Errorf("region %v outside screenshot", r)
			}
			return sub, nil
		},
		ripeSeq: -1,
	}

	// Two captures settle the row count so the panel reports a sync id.
	observer.CurrentPanel()
	raw := observer.CurrentPanel()
	if ocr != nil && cfg.Screen.TitleRegion.W > 0 {
		if text, err := ocr(img.SubImage(cfg.Screen.TitleRegion.Rect()), cfg.Screen.OCRLanguages); err == nil {
			raw.Title = text
		} else {
			LogWarn("Title OCR failed: %v", err)
		}
	}

	report := CalibrationReport{
		Panel: raw,
		Type:  classifyPanel(raw, cfg.Screen.StationTitles).Type,
		Rows:  observer.countRows(img),
		Ripe:  observer.Ripe(),
	}

	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)

	sample := func(name string, at Point, want Color) {
		seen := pixelAt(img, at)
		s := ProbeSample{Name: name, At: at, Seen: seen, Want: want, Match: seen.Matches(want, cfg.Screen.Tolerance)}
		report.Samples = append(report.Samples, s)
		mark := markMiss
		if s.Match {
			mark = markHit
		}
		drawCross(out, at, mark, 6)
	}

	sample("panel", cfg.Screen.PanelProbe, cfg.Screen.PanelColor)

	grid := cfg.Positions.SlotGrid
	size := grid.Size
	if size <= 0 {
		size = 36
	}
	for r := 0; r < maxContainerRows; r++ {
		at := Point{X: grid.Origin.X - size/2 + 1, Y: grid.Origin.Y + r*size}
		sample(fmt.Sprintf("row %d", r+1), at, cfg.Screen.SlotColor)
	}
	if !cfg.Screen.HarvestProbe.IsZero() {
		sample("harvest", cfg.Screen.HarvestProbe, cfg.Screen.HarvestColor)
	}

	if cfg.Screen.TitleRegion.W > 0 {
		drawRect(out, cfg.Screen.TitleRegion, markInfo, 1)
	}
	if raw.SlotCount > 0 {
		for slot := 0; slot < raw.SlotCount+playerSlots; slot++ {
			p := slotPosition(grid, raw.SlotCount, slot)
			drawRect(out, Bounds{X: p.X - 2, Y: p.Y - 2, W: 5, H: 5}, markInfo, 1)
		}
	}
	for _, p := range []Point{cfg.Positions.ServerConnect, cfg.Positions.ServerConfirm, cfg.Positions.Disconnect} {
		if !p.IsZero() {
			drawCross(out, p, markClick, 10)
		}
	}

	LogInfo("Calibration: panel open=%v slots=%d type=%s rows=%d ripe=%v",
		raw.IsOpen, raw.SlotCount, report.Type, report.Rows, report.Ripe)
	for _, s := range report.Samples {
		LogDebug("Probe %s at (%d,%d): seen %v want %v match %v", s.Name, s.At.X, s.At.Y, s.Seen, s.Want, s.Match)
	}
	return out, report
}

// loadPNG loads a PNG image from file
func loadPNG(filename string) (*image.RGBA, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

// savePNG saves an image to PNG file
func savePNG(filename string, img image.Image) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// drawRect draws a rectangle outline
func drawRect(img *image.RGBA, bounds Bounds, col color.RGBA, thickness int) {
	r := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := bounds.X; x < bounds.X+bounds.W; x++ {
			setClipped(img, r, x, bounds.Y+t, col)
			setClipped(img, r, x, bounds.Y+bounds.H-t-1, col)
		}
		for y := bounds.Y; y < bounds.Y+bounds.H; y++ {
			setClipped(img, r, bounds.X+t, y, col)
			setClipped(img, r, bounds.X+bounds.W-t-1, y, col)
		}
	}
}

// drawCross draws a plus sign centred on p
func drawCross(img *image.RGBA, p Point, col color.RGBA, arm int) {
	r := img.Bounds()
	for d := -arm; d <= arm; d++ {
		setClipped(img, r, p.X+d, p.Y, col)
		setClipped(img, r, p.X, p.Y+d, col)
	}
}

func setClipped(img *image.RGBA, r image.Rectangle, x, y int, col color.RGBA) {
	if (image.Point{X: x, Y: y}).In(r) {
		img.SetRGBA(x, y, col)
	}
}
