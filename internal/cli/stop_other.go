//go:build !windows

package cli

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/haskel/pstated/internal/config"
)

// requestStop sends SIGTERM. The controller treats it like an interrupt and
// drains before exiting.
func requestStop(_ *config.Config, proc *process.Process) error {
	if err := proc.Terminate(); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", proc.Pid, err)
	}
	return nil
}
