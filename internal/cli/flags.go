package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haskel/pstated/internal/config"
)

// controllerFlags mirrors the controller section of the config file.
// Flags only override the file when set explicitly.
type controllerFlags struct {
	ids                    []int
	iterationsBeforeSwitch int
	performanceStateHigh   uint32
	performanceStateLow    uint32
	sleepInterval          int
	temperatureThreshold   uint32
	utilizationThreshold   uint32
	monitoringBackend      string
	pidFile                string
	simulate               int
}

var ctlFlags controllerFlags

func addControllerFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	def := config.Default()

	fs.IntSliceVar(&ctlFlags.ids, "ids", nil, "indexes of the GPUs to manage (default: all)")
	fs.IntVar(&ctlFlags.iterationsBeforeSwitch, "iterations-before-switch", def.Controller.IterationsBeforeSwitch,
		"idle polls to wait before switching a GPU to the low state")
	fs.Uint32Var(&ctlFlags.performanceStateHigh, "performance-state-high", def.Controller.PerformanceStateHigh,
		"pstate used while a GPU is busy")
	fs.Uint32Var(&ctlFlags.performanceStateLow, "performance-state-low", def.Controller.PerformanceStateLow,
		"pstate used while a GPU is idle")
	fs.IntVar(&ctlFlags.sleepInterval, "sleep-interval", def.Controller.SleepIntervalMS,
		"milliseconds between utilization checks")
	fs.Uint32Var(&ctlFlags.temperatureThreshold, "temperature-threshold", def.Controller.TemperatureThreshold,
		"degrees C above which a GPU is kept in the low state")
	fs.Uint32Var(&ctlFlags.utilizationThreshold, "utilization-threshold", def.Controller.UtilizationThreshold,
		"utilization percent above which a GPU is switched to the high state")
	fs.StringVar(&ctlFlags.pidFile, "pid-file", "", "PID file path (overrides config)")

	addLibraryFlags(cmd)
}

// addLibraryFlags registers the flags that choose the vendor backends.
func addLibraryFlags(cmd *cobra.Command) {
	fs := cmd.Flags()

	fs.StringVar(&ctlFlags.monitoringBackend, "monitoring-backend", config.BackendDynamic,
		"monitoring backend: dynamic or go-nvml")
	fs.IntVar(&ctlFlags.simulate, "simulate", 0, "use N simulated GPUs instead of the NVIDIA libraries")
}

// applyControllerFlags copies explicitly set flags over cfg.
func applyControllerFlags(fs *pflag.FlagSet, cfg *config.Config) {
	c := &cfg.Controller

	if fs.Changed("ids") {
		c.IDs = ctlFlags.ids
	}
	if fs.Changed("iterations-before-switch") {
		c.IterationsBeforeSwitch = ctlFlags.iterationsBeforeSwitch
	}
	if fs.Changed("performance-state-high") {
		c.PerformanceStateHigh = ctlFlags.performanceStateHigh
	}
	if fs.Changed("performance-state-low") {
		c.PerformanceStateLow = ctlFlags.performanceStateLow
	}
	if fs.Changed("sleep-interval") {
		c.SleepIntervalMS = ctlFlags.sleepInterval
	}
	if fs.Changed("temperature-threshold") {
		c.TemperatureThreshold = ctlFlags.temperatureThreshold
	}
	if fs.Changed("utilization-threshold") {
		c.UtilizationThreshold = ctlFlags.utilizationThreshold
	}
	if fs.Changed("monitoring-backend") {
		cfg.Libraries.MonitoringBackend = ctlFlags.monitoringBackend
	}
	if fs.Changed("pid-file") {
		cfg.Service.PIDFile = ctlFlags.pidFile
	}
}

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadOptional(cfgFile)
	if err != nil {
		return nil, err
	}

	applyControllerFlags(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
