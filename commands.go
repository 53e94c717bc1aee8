// Package main - commands.go
//
// Offline and inspection commands: status, history, plants, config,
// probe and calibrate. None of them drives the game except probe, which
// only watches the screen.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// loadConfigForCommand reads the config, falling back to defaults
func loadConfigForCommand() (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", configPath, err)
	}
	return cfg, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live status of a running bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigForCommand()
		if err != nil {
			return err
		}
		if cfg.StatusAddr == "" {
			return fmt.Errorf("status feed disabled (status_addr is empty)")
		}
		st, err := fetchStatus(cmd.Context(), "http://"+cfg.StatusAddr+"/status")
		if err != nil {
			return fmt.Errorf("bot not reachable at %s: %w", cfg.StatusAddr, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderStatus(st, time.Now()))
		return nil
	},
}

// fetchStatus reads one snapshot from a running bot
func fetchStatus(ctx context.Context, url string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Status{}, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decoding status: %w", err)
	}
	return st, nil
}

func renderStatus(st Status, now time.Time) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + " " + value + "\n")
	}

	b.WriteString(titleStyle.Render("Agri Bot Status") + "\n\n")
	running := dimStyle.Render("stopped")
	if st.Running {
		running = okStyle.Render("running")
	}
	row("State", st.State+" ("+running+")")
	if st.Period != "" {
		row("Period", st.Period)
	}
	if st.TotalStations > 0 {
		row("Station", fmt.Sprintf("%s (%d/%d)", st.Station, st.StationIndex+1, st.TotalStations))
		row("Completed", fmt.Sprintf("%d", st.StationsCompleted))
	}
	if st.WaterOnly {
		row("Session", "water only")
	} else if st.RefillWater {
		row("Session", "harvest + water")
	}
	if st.CarriersFull+st.CarriersEmpty > 0 {
		row("Carriers", fmt.Sprintf("%d full, %d empty", st.CarriersFull, st.CarriersEmpty))
	}
	if !st.PauseEnd.IsZero() && st.PauseEnd.After(now) {
		row("Next session", fmt.Sprintf("%s (in %s)", st.PauseEnd.Format("15:04:05"), FormatDuration(st.PauseEnd.Sub(now))))
	}
	if st.ErrorMessage != "" {
		row("Error", errStyle.Render(fmt.Sprintf("%s: %s (retry %d)", st.ErrorKind, st.ErrorMessage, st.RetryCount)))
	}
	return b.String()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished sessions from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := loadConfigForCommand()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		journal, err := OpenJournal(ctx, cfg.DataPath(journalFile))
		if err != nil {
			return err
		}
		defer journal.Close()

		records, err := journal.Recent(ctx, limit)
		if err != nil {
			return err
		}
		totals, err := journal.Totals(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderHistory(records, totals))
		return nil
	},
}

func renderHistory(records []SessionRecord, totals JournalTotals) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session History") + "\n\n")
	if len(records) == 0 {
		b.WriteString(dimStyle.Render("  no sessions recorded yet") + "\n")
	}
	for _, r := range records {
		kind := "harvest"
		if r.WaterOnly {
			kind = "water"
		}
		if r.WaterRefilled && !r.WaterOnly {
			kind += "+water"
		}
		result := okStyle.Render("ok")
		if r.ErrorMessage != "" {
			result = errStyle.Render(r.ErrorKind.String() + ": " + r.ErrorMessage)
		}
		fmt.Fprintf(&b, "  %s  %-8s  %2d/%-2d  %-13s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			FormatDuration(r.Duration()),
			r.StationsCompleted, r.TotalStations,
			kind, result)
	}
	fmt.Fprintf(&b, "\n%s %d sessions, %d stations, %d failed\n",
		labelStyle.Render("Total"), totals.Sessions, totals.Stations, totals.Failed)
	return b.String()
}

var plantsCmd = &cobra.Command{
	Use:   "plants",
	Short: "List the plant catalog with growth times",
	RunE: func(cmd *cobra.Command, args []string) error {
		boost, _ := cmd.Flags().GetFloat64("boost")
		if !cmd.Flags().Changed("boost") {
			if cfg, err := LoadConfig(configPath); err == nil {
				boost = cfg.Plant.GrowthBoost
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Plants (growth boost %.0f%%)", boost)))
		for _, name := range PlantNames() {
			button, _ := HarvestButton(name)
			fmt.Fprintf(out, "  %-22s %8s  %s click\n", name, FormatMinutes(GrowthMinutes(name, boost)), button)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write or check the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(configPath); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		if err := WriteConfig(configPath, DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configPath)
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s not found (create it with: agribot config init)", configPath)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("valid"), configPath)
		fmt.Fprintf(out, "  %d stations, pause %s\n", len(cfg.Stations), FormatDuration(cfg.SessionPauseDuration()))
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait for a panel to open and print what was detected",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, err := loadConfigForCommand()
		if err != nil {
			return err
		}
		detector := NewPanelDetector(NewScreenPanelObserver(cfg), cfg.Screen.StationTitles)
		stabilization := ms(cfg.Timing.Stabilization)

		ctx := cmd.Context()
		var ok bool
		switch kind {
		case "chest":
			ok = detector.WaitForChestOpen(ctx, timeout, stabilization)
		case "menu":
			ok = detector.WaitForGenericMenuOpen(ctx, timeout, stabilization)
		case "any":
			ok = detector.WaitForOpen(ctx, func(p PanelInfo) bool { return p.Type != PanelNone },
				timeout, ms(cfg.Timing.PanelPoll), stabilization)
		default:
			return fmt.Errorf("unknown panel kind %q (chest, menu or any)", kind)
		}

		panel := detector.Classify()
		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s no %s panel within %v (saw %s)\n", errStyle.Render("timeout"), kind, timeout, panel.Type)
			return nil
		}
		fmt.Fprintf(out, "%s %s: %d slots, title %q, sync %d\n",
			okStyle.Render("open"), panel.Type, panel.SlotCount, panel.Title, panel.SyncID)
		return nil
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Draw the screen probes on a screenshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		outPath, _ := cmd.Flags().GetString("out")
		useOCR, _ := cmd.Flags().GetBool("ocr")

		cfg, err := loadConfigForCommand()
		if err != nil {
			return err
		}

		var shot *image.RGBA
		if from != "" {
			shot, err = loadPNG(from)
		} else {
			shot, err = CaptureScreen()
		}
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}

		var ocr titleReader
		if useOCR {
			ocr = ocrText
		}
		marked, report := Calibrate(cfg, shot, ocr)
		if err := savePNG(outPath, marked); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("Calibration"))
		fmt.Fprintf(out, "  panel: open=%v type=%s slots=%d rows=%d title=%q\n",
			report.Panel.IsOpen, report.Type, report.Panel.SlotCount, report.Rows, report.Panel.Title)
		for _, s := range report.Samples {
			mark := okStyle.Render("match")
			if !s.Match {
				mark = errStyle.Render("miss ")
			}
			fmt.Fprintf(out, "  %s %-8s (%d,%d) seen #%02x%02x%02x want #%02x%02x%02x\n",
				mark, s.Name, s.At.X, s.At.Y, s.Seen.R, s.Seen.G, s.Seen.B, s.Want.R, s.Want.G, s.Want.B)
		}
		fmt.Fprintf(out, "Saved %s\n", outPath)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of sessions to show")
	plantsCmd.Flags().Float64("boost", 0, "growth boost in percent (default: from config)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	probeCmd.Flags().String("kind", "any", "panel to wait for: chest, menu or any")
	probeCmd.Flags().Duration("timeout", 10*time.Second, "how long to wait")
	calibrateCmd.Flags().String("from", "", "PNG screenshot to use instead of capturing the screen")
	calibrateCmd.Flags().String("out", "calibrate.png", "output image")
	calibrateCmd.Flags().Bool("ocr", false, "read the panel title with tesseract")
}
