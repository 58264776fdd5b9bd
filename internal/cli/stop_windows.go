//go:build windows

package cli

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/haskel/pstated/internal/config"
)

// requestStop asks the service manager to stop the controller service.
// Windows has no signal a console process could drain on, so a controller
// started from a console is never killed from here.
func requestStop(cfg *config.Config, proc *process.Process) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(cfg.Service.Name)
	if err != nil {
		return fmt.Errorf("process %d is not running as service %s, stop it with Ctrl+C: %w", proc.Pid, cfg.Service.Name, err)
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return fmt.Errorf("failed to query service %s: %w", cfg.Service.Name, err)
	}
	if status.State != svc.Running || status.ProcessId != uint32(proc.Pid) {
		return fmt.Errorf("process %d is not the running %s service, stop it with Ctrl+C", proc.Pid, cfg.Service.Name)
	}

	if _, err := s.Control(svc.Stop); err != nil {
		return fmt.Errorf("failed to stop service %s: %w", cfg.Service.Name, err)
	}
	return nil
}
