// Package main implements agribot, an automated farming bot for a
// Minecraft growth-station server.
//
// Architecture Overview:
// A single goroutine drives the BotController state machine from a 50ms
// ticker. Everything that blocks (desktop input, screen capture, OCR, the
// status feed, global hotkeys) runs on its own goroutine under one
// errgroup; those goroutines only exchange data with the controller
// through mutex-guarded snapshots and atomic flags.
//
// Session Loop:
//
//	Idle → Connecting → WaitingConnection → Teleporting → WaitingTeleport
//	→ OpeningStation → Harvesting → Planting → FillingWater → NextStation
//	→ ... → Disconnecting → Paused → Connecting → ...
//
// Commands:
//   - run:        tray + hotkeys + status feed, sessions start from the tray
//   - session:    one session in the foreground, then exit
//   - status:     print the live status of a running bot
//   - history:    print the session journal
//   - plants:     list the plant catalog with growth times
//   - config:     write or check the config file
//   - probe:      wait for a panel to open and print what was detected
//   - calibrate:  draw the screen probes on a screenshot
//   - test:       one transition, one station, a teleport tour or a chat check
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logPath    string
	verbose    bool
	debug      bool
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "agribot",
	Short: "Automated growth-station farming bot",
	Long: `agribot connects to the server, walks the configured growth stations,
harvests, replants and waters them, then disconnects and waits for the
crops to grow before the next session.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return InitLogger(LogOptions{Path: logPath, Verbose: verbose, Debug: debug})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		CloseLogger()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot with the system tray",
	Long: `Start the bot with the system tray, the global hotkeys and the status
feed. Sessions start from the tray or the start hotkey.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noTray, _ := cmd.Flags().GetBool("no-tray")
		autostart, _ := cmd.Flags().GetBool("start")
		return runBot(false, noTray, autostart)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run a single session in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot(true, true, true)
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run one part of a session to check the setup",
	Long: `Each test connects, runs a single part of a session in the foreground,
then disconnects and exits. The state file and the journal are updated as
for a normal session.`,
}

var testTransitionCmd = &cobra.Command{
	Use:   "transition <period>",
	Short: "Route the carriers for a period (deposit or withdraw)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(func(cfg *Config) (Drill, error) {
			return TransitionDrill(cfg, args[0])
		})
	},
}

var testStationCmd = &cobra.Command{
	Use:   "station",
	Short: "Run a full session on the first station only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(func(cfg *Config) (Drill, error) {
			return Drill{Kind: DrillStation}, nil
		})
	},
}

var testTourCmd = &cobra.Command{
	Use:   "tour",
	Short: "Teleport to every station without touching it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(func(cfg *Config) (Drill, error) {
			return Drill{Kind: DrillTour}, nil
		})
	},
}

var testChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Stay connected and answer greetings with the auto-reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _ := cmd.Flags().GetDuration("for")
		return runDrill(func(cfg *Config) (Drill, error) {
			if strings.TrimSpace(cfg.AutoReply.Player) == "" {
				return Drill{}, errors.New("set auto_reply.player first")
			}
			return Drill{Kind: DrillChat, Duration: d}, nil
		})
	},
}

// runDrill builds the Bot and runs one drill session without the tray
func runDrill(build func(cfg *Config) (Drill, error)) error {
	cfg, err := loadConfigForCommand()
	if err != nil {
		return err
	}
	drill, err := build(cfg)
	if err != nil {
		return err
	}
	LogInfo("=== Agri Bot %s test: %s ===", version, drill.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := NewBot(ctx, configPath)
	if err != nil {
		LogError("Failed to initialize bot: %v", err)
		return err
	}
	defer bot.Close()

	handleSignals(bot, cancel)
	if err := bot.RunDrill(ctx, drill); err != nil {
		LogError("Test %s failed: %v", drill.Kind, err)
		return err
	}
	LogInfo("=== Test %s finished ===", drill.Kind)
	return nil
}

// runBot builds the Bot and runs it until the tray quits, a signal
// arrives, or the single session ends.
func runBot(once, noTray, autostart bool) error {
	LogInfo("=== Agri Bot %s starting ===", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := NewBot(ctx, configPath)
	if err != nil {
		LogError("Failed to initialize bot: %v", err)
		return err
	}
	defer bot.Close()

	handleSignals(bot, cancel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx, once)
	}()
	if autostart && !once {
		bot.Start()
	}

	if noTray {
		err = <-errCh
	} else {
		tray := NewTrayApp(bot, cancel)
		SafeGo(func() {
			// A failing run closes the tray as well.
			err := <-errCh
			errCh <- err
			tray.Quit()
		})
		tray.Run()
		cancel()
		err = <-errCh
	}

	if err != nil {
		LogError("Bot stopped with error: %v", err)
		return err
	}
	LogInfo("=== Agri Bot stopped ===")
	return nil
}

// handleSignals stops the bot on the first SIGINT/SIGTERM and exits
// hard on the second. After the first signal the bot has 30s to
// disconnect cleanly.
func handleSignals(bot *Bot, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	SafeGo(func() {
		sig := <-sigCh
		LogInfo("Received signal %v, stopping", sig)
		bot.Stop()

		deadline := time.After(30 * time.Second)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-sigCh:
				LogWarn("Second signal, exiting now")
				cancel()
				return
			case <-deadline:
				LogWarn("Bot did not stop in time")
				cancel()
				return
			case <-ticker.C:
				st := bot.Status()
				if !st.Running && st.State == StateIdle.String() {
					cancel()
					return
				}
			}
		}
	})
}

func main() {
	// The tray needs the main thread on macOS.
	runtime.LockOSThread()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agribot.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "agribot.log", "log file, cleared at startup")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Mirror the log to stderr")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log DEBUG lines")

	runCmd.Flags().Bool("no-tray", false, "run without the system tray")
	runCmd.Flags().Bool("start", false, "start sessions immediately")
	testChatCmd.Flags().Duration("for", 5*time.Minute, "how long to stay connected")

	testCmd.AddCommand(testTransitionCmd)
	testCmd.AddCommand(testStationCmd)
	testCmd.AddCommand(testTourCmd)
	testCmd.AddCommand(testChatCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(plantsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(testCmd)
}
