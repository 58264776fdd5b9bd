// Package pstate decides which performance state each GPU should be forced
// into, based on its temperature and utilization.
package pstate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/haskel/pstated/internal/device"
	"github.com/haskel/pstated/internal/domain"
)

// Level is a synthetic performance level.
type Level int

const (
	LevelUnset Level = iota
	LevelLow
	LevelHigh
	LevelAutomatic
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelHigh:
		return "high"
	case LevelAutomatic:
		return "automatic"
	default:
		return "unset"
	}
}

// VendorAutomatic is the pstate that hands control back to the driver.
const VendorAutomatic = 16

// Levels maps synthetic levels to vendor pstate numbers.
type Levels struct {
	Low       uint32
	High      uint32
	Automatic uint32
}

// DefaultLevels returns pstate 8 for idle and 16 for load.
func DefaultLevels() Levels {
	return Levels{Low: 8, High: 16, Automatic: VendorAutomatic}
}

func (l Levels) pstate(level Level) (uint32, error) {
	switch level {
	case LevelLow:
		return l.Low, nil
	case LevelHigh:
		return l.High, nil
	case LevelAutomatic:
		return l.Automatic, nil
	default:
		return 0, fmt.Errorf("no pstate for level %s", level)
	}
}

// Config holds the decision parameters.
type Config struct {
	Levels Levels
	// TemperatureThreshold in degrees C. Above it a GPU is forced low.
	TemperatureThreshold uint32
	// UtilizationThreshold in percent. Above it a GPU is forced high.
	UtilizationThreshold uint32
	// IterationsBeforeSwitch is the number of idle ticks tolerated before
	// a GPU is demoted.
	IterationsBeforeSwitch int
}

// DefaultConfig returns the built-in decision parameters.
func DefaultConfig() Config {
	return Config{
		Levels:                 DefaultLevels(),
		TemperatureThreshold:   80,
		UtilizationThreshold:   0,
		IterationsBeforeSwitch: 30,
	}
}

// GPUState is the per-device record. Level always reflects the last pstate
// successfully requested of the control API.
type GPUState struct {
	DebounceCount int
	Level         Level
	Managed       bool
}

// Controller owns the state of every correlated GPU. It is not safe for
// concurrent use; the scheduler drives it from a single goroutine.
type Controller struct {
	cfg    Config
	ctl    domain.ControlLibrary
	mon    domain.MonitoringLibrary
	topo   *device.Topology
	states []GPUState
	logger *slog.Logger
}

// NewController creates a controller for topo. managed must have one entry
// per device.
func NewController(cfg Config, ctl domain.ControlLibrary, mon domain.MonitoringLibrary,
	topo *device.Topology, managed []bool, logger *slog.Logger) (*Controller, error) {
	if len(managed) != topo.Len() {
		return nil, fmt.Errorf("managed set has %d entries for %d devices", len(managed), topo.Len())
	}
	if logger == nil {
		logger = slog.Default()
	}

	states := make([]GPUState, topo.Len())
	for i, m := range managed {
		states[i].Managed = m
	}

	return &Controller{
		cfg:    cfg,
		ctl:    ctl,
		mon:    mon,
		topo:   topo,
		states: states,
		logger: logger,
	}, nil
}

// Len returns the number of devices.
func (c *Controller) Len() int {
	return len(c.states)
}

// State returns a copy of the record of device i.
func (c *Controller) State(i int) GPUState {
	return c.states[i]
}

// Managed returns the indexes of managed devices.
func (c *Controller) Managed() []int {
	var out []int
	for i, s := range c.states {
		if s.Managed {
			out = append(out, i)
		}
	}
	return out
}

// Tick samples device i once and requests a transition if needed.
// Thermal protection wins over load promotion, which wins over debounced
// demotion. Unmanaged devices are not sampled.
func (c *Controller) Tick(i int) error {
	st := &c.states[i]
	if !st.Managed {
		return nil
	}
	h := c.topo.Monitor[i]

	temp, err := c.mon.Temperature(h)
	if err != nil {
		return fmt.Errorf("gpu %d temperature: %w", i, err)
	}

	if temp > c.cfg.TemperatureThreshold {
		if st.Level != LevelLow {
			c.logger.Warn("gpu over temperature threshold",
				"gpu", i,
				"temperature", temp,
				"threshold", c.cfg.TemperatureThreshold,
			)
			return c.Transition(i, LevelLow)
		}
		return nil
	}

	util, err := c.mon.Utilization(h)
	if err != nil {
		return fmt.Errorf("gpu %d utilization: %w", i, err)
	}

	if util > c.cfg.UtilizationThreshold {
		if st.Level != LevelHigh {
			return c.Transition(i, LevelHigh)
		}
		st.DebounceCount = 0
		return nil
	}

	if st.Level == LevelLow {
		return nil
	}
	st.DebounceCount++
	if st.DebounceCount > c.cfg.IterationsBeforeSwitch {
		return c.Transition(i, LevelLow)
	}
	return nil
}

// TickAll runs Tick for every managed device and stops at the first error.
func (c *Controller) TickAll() error {
	for i := range c.states {
		if err := c.Tick(i); err != nil {
			return err
		}
	}
	return nil
}

// Transition forces device i into level. Unmanaged devices are left alone
// and the request succeeds without a vendor call. On success the level is
// recorded and the debounce counter reset; on failure the record is left
// untouched.
func (c *Controller) Transition(i int, level Level) error {
	st := &c.states[i]
	if !st.Managed {
		return nil
	}

	pstate, err := c.cfg.Levels.pstate(level)
	if err != nil {
		return fmt.Errorf("gpu %d: %w", i, err)
	}

	if err := c.ctl.SetPerformanceState(c.topo.Control[i], pstate); err != nil {
		return fmt.Errorf("gpu %d enter pstate %d: %w", i, pstate, err)
	}

	st.Level = level
	st.DebounceCount = 0
	c.logger.Info("gpu entered performance state", "gpu", i, "pstate", pstate, "level", level.String())
	return nil
}

// ApplyAll forces every managed device into level and stops at the first
// failure.
func (c *Controller) ApplyAll(level Level) error {
	for i := range c.states {
		if err := c.Transition(i, level); err != nil {
			return err
		}
	}
	return nil
}

// Drain returns every managed device to vendor automatic control. All
// devices are attempted and the failures joined.
func (c *Controller) Drain() error {
	var errs []error
	for i := range c.states {
		if err := c.Transition(i, LevelAutomatic); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
