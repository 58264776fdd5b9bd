// Package scheduler runs the controller lifecycle: bind both vendor
// libraries, correlate devices, poll until cancelled, hand the GPUs back to
// the driver and release the libraries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haskel/pstated/internal/device"
	"github.com/haskel/pstated/internal/domain"
	"github.com/haskel/pstated/internal/pstate"
)

// Phase is a stage of the scheduler lifecycle.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSetup
	PhasePolling
	PhaseDraining
	PhaseCleanup
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseSetup:
		return "setup"
	case PhasePolling:
		return "polling"
	case PhaseDraining:
		return "draining"
	case PhaseCleanup:
		return "cleanup"
	case PhaseTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config holds scheduler configuration.
type Config struct {
	Controller pstate.Config
	// IDs selects managed devices by index. Nil manages every device.
	IDs []int
	// Interval is the sleep between polling rounds.
	Interval time.Duration
	// OnPhase, if set, is called on every phase change.
	OnPhase func(Phase)
}

// Scheduler owns the vendor libraries and the controller for one run.
type Scheduler struct {
	ctl    domain.ControlLibrary
	mon    domain.MonitoringLibrary
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	phase      Phase
	controller *pstate.Controller
	managed    int
	ctlBound   bool
	monBound   bool

	rounds atomic.Int64
}

// New creates a scheduler. It does not touch the libraries until Run.
func New(ctl domain.ControlLibrary, mon domain.MonitoringLibrary, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		ctl:    ctl,
		mon:    mon,
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes the whole lifecycle and blocks until ctx is cancelled or a
// fatal error occurs. Draining and cleanup always run. The returned error
// joins every failure seen on the way; nil means a clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	var errs []error

	s.setPhase(PhaseSetup)
	if err := s.setup(); err != nil {
		s.logger.Error("setup failed", "error", err)
		errs = append(errs, err)
	} else {
		s.setPhase(PhasePolling)
		if err := s.poll(ctx); err != nil {
			s.logger.Error("polling failed", "error", err)
			errs = append(errs, err)
		}
	}

	s.setPhase(PhaseDraining)
	if c := s.Controller(); c != nil {
		if err := c.Drain(); err != nil {
			s.logger.Error("failed to return gpus to automatic control", "error", err)
			errs = append(errs, err)
		}
	}

	s.setPhase(PhaseCleanup)
	if err := s.cleanup(); err != nil {
		s.logger.Error("cleanup failed", "error", err)
		errs = append(errs, err)
	}

	s.setPhase(PhaseTerminal)
	return errors.Join(errs...)
}

func (s *Scheduler) setup() error {
	if err := s.ctl.Initialize(); err != nil {
		return fmt.Errorf("initialize control library: %w", err)
	}
	s.mu.Lock()
	s.ctlBound = true
	s.mu.Unlock()
	s.logger.Info("control library bound", "library", libraryName(s.ctl))

	if err := s.mon.Init(); err != nil {
		return fmt.Errorf("initialize monitoring library: %w", err)
	}
	s.mu.Lock()
	s.monBound = true
	s.mu.Unlock()
	s.logger.Info("monitoring library bound", "library", libraryName(s.mon))

	topo, err := device.Discover(s.ctl, s.mon)
	if err != nil {
		return err
	}

	managed, invalid, err := device.Select(topo.Len(), s.cfg.IDs)
	for _, id := range invalid {
		s.logger.Warn("skipping device", "error", device.InvalidIndexError(id, topo.Len()))
	}
	if err != nil {
		return err
	}

	c, err := pstate.NewController(s.cfg.Controller, s.ctl, s.mon, topo, managed, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.controller = c
	s.managed = len(c.Managed())
	s.mu.Unlock()

	s.logger.Info("managing gpus",
		"managed", s.managed,
		"devices", topo.Len(),
		"iterations_before_switch", s.cfg.Controller.IterationsBeforeSwitch,
		"performance_state_high", s.cfg.Controller.Levels.High,
		"performance_state_low", s.cfg.Controller.Levels.Low,
		"sleep_interval", s.cfg.Interval,
		"temperature_threshold", s.cfg.Controller.TemperatureThreshold,
		"utilization_threshold", s.cfg.Controller.UtilizationThreshold,
	)

	return c.ApplyAll(pstate.LevelLow)
}

// libraryName reports the file a vendor library was loaded from, when the
// backend knows it.
func libraryName(lib any) string {
	if n, ok := lib.(interface{ LibraryName() string }); ok {
		return n.LibraryName()
	}
	return "unknown"
}

// poll ticks every managed device, then sleeps. Cancellation is observed
// once per round.
func (s *Scheduler) poll(ctx context.Context) error {
	c := s.Controller()

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for ctx.Err() == nil {
		if err := c.TickAll(); err != nil {
			return err
		}
		s.rounds.Add(1)

		timer.Reset(s.cfg.Interval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return nil
}

// cleanup releases both libraries independently.
func (s *Scheduler) cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.ctlBound {
		if err := s.ctl.Unload(); err != nil {
			errs = append(errs, fmt.Errorf("unload control library: %w", err))
		} else {
			s.ctlBound = false
		}
	}
	if s.monBound {
		if err := s.mon.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown monitoring library: %w", err))
		} else {
			s.monBound = false
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()

	s.logger.Info("phase changed", "from", prev.String(), "to", p.String())
	if s.cfg.OnPhase != nil {
		s.cfg.OnPhase(p)
	}
}

// Controller returns the controller built during setup, or nil.
func (s *Scheduler) Controller() *pstate.Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controller
}

// Stats describes the progress of a run.
type Stats struct {
	Phase   Phase
	Rounds  int64
	Managed int
}

// LogValue renders the stats as an slog group.
func (st Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("phase", st.Phase.String()),
		slog.Int64("rounds", st.Rounds),
		slog.Int("managed", st.Managed),
	)
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Phase:   s.phase,
		Rounds:  s.rounds.Load(),
		Managed: s.managed,
	}
}
