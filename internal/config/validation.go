package config

import (
	"errors"
	"fmt"
)

// MaxPerformanceState is the highest pstate number the control API accepts.
const MaxPerformanceState = 16

func (c *Config) Validate() error {
	var errs []error

	if err := c.Controller.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("controller: %w", err))
	}

	if err := c.Libraries.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("libraries: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

func (c *ControllerConfig) Validate() error {
	var errs []error

	if c.IterationsBeforeSwitch < 0 {
		errs = append(errs, fmt.Errorf("iterations_before_switch must be non-negative, got %d", c.IterationsBeforeSwitch))
	}

	if c.PerformanceStateHigh > MaxPerformanceState {
		errs = append(errs, fmt.Errorf("performance_state_high must be between 0 and %d, got %d", MaxPerformanceState, c.PerformanceStateHigh))
	}

	if c.PerformanceStateLow > MaxPerformanceState {
		errs = append(errs, fmt.Errorf("performance_state_low must be between 0 and %d, got %d", MaxPerformanceState, c.PerformanceStateLow))
	}

	if c.SleepIntervalMS < 1 {
		errs = append(errs, fmt.Errorf("sleep_interval_ms must be at least 1, got %d", c.SleepIntervalMS))
	}

	if c.UtilizationThreshold > 100 {
		errs = append(errs, fmt.Errorf("utilization_threshold must be between 0 and 100, got %d", c.UtilizationThreshold))
	}

	return errors.Join(errs...)
}

func (l *LibrariesConfig) Validate() error {
	validBackends := map[string]bool{
		BackendDynamic: true,
		BackendGoNVML:  true,
	}
	if !validBackends[l.MonitoringBackend] {
		return fmt.Errorf("invalid monitoring_backend: %s (valid: %s, %s)", l.MonitoringBackend, BackendDynamic, BackendGoNVML)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}
