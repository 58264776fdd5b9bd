package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haskel/pstated/internal/config"
	"github.com/haskel/pstated/internal/hostinfo"
	"github.com/haskel/pstated/internal/logger"
	"github.com/haskel/pstated/internal/pstate"
	"github.com/haskel/pstated/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller in the foreground",
	Long: `Run the controller in the foreground until SIGINT or SIGTERM.

Exit codes:
  0  Clean shutdown, every managed GPU returned to automatic control
  1  An error occurred at any stage`,
	Example: `  pstated run
  pstated run --ids 0,2 --temperature-threshold 75
  pstated run --simulate 2 --sleep-interval 500`,
	Args: cobra.NoArgs,
	RunE: runController,
}

func init() {
	addControllerFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runController(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	return serve(ctx, cfg, ctlFlags.simulate)
}

// serve runs the controller until ctx is cancelled. It is shared by the
// console commands and the Windows service host.
func serve(ctx context.Context, cfg *config.Config, simulate int) error {
	log, closer, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("pstated starting",
		"version", Version,
		"config", cfgFile,
	)
	if h, err := hostinfo.Collect(); err != nil {
		log.Warn("failed to collect host info", "error", err)
	} else {
		log.Info("host", "host", h)
	}

	ctl, mon, err := openLibraries(cfg, simulate)
	if err != nil {
		return err
	}

	// Write PID file if configured
	if cfg.Service.PIDFile != "" {
		if err := writePIDFile(cfg.Service.PIDFile); err != nil {
			log.Warn("failed to write PID file", "error", err)
		} else {
			defer os.Remove(cfg.Service.PIDFile)
		}
	}

	sched := scheduler.New(ctl, mon, schedulerConfig(cfg), log)
	err = sched.Run(ctx)
	if err != nil {
		log.Error("pstated stopped with errors", "error", err, "stats", sched.Stats())
		return fmt.Errorf("pstated: %w", err)
	}

	log.Info("pstated stopped", "stats", sched.Stats())
	return nil
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	c := cfg.Controller
	return scheduler.Config{
		Controller: pstate.Config{
			Levels: pstate.Levels{
				Low:       c.PerformanceStateLow,
				High:      c.PerformanceStateHigh,
				Automatic: pstate.VendorAutomatic,
			},
			TemperatureThreshold:   c.TemperatureThreshold,
			UtilizationThreshold:   c.UtilizationThreshold,
			IterationsBeforeSwitch: c.IterationsBeforeSwitch,
		},
		IDs:      c.ManagedIDs(),
		Interval: cfg.SleepInterval(),
	}
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", pid)), 0644)
}
