package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"

	"github.com/haskel/pstated/internal/config"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running controller",
	Long: `Stop the controller recorded in the PID file.
The controller hands every managed GPU back to the driver before exiting.

On Linux the process receives SIGTERM. On Windows the controller must run as
a service and the service manager is asked to stop it.`,
	RunE: runStop,
}

var pidFile string

func init() {
	stopCmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file path (overrides config)")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg := config.LoadOrDefault(cfgFile)

	// Determine PID file path
	pidPath := pidFile
	if pidPath == "" {
		pidPath = cfg.Service.PIDFile
	}

	if pidPath == "" {
		return fmt.Errorf("no PID file specified (use --pid-file or configure in config)")
	}

	pid, err := readPIDFile(pidPath)
	if err != nil {
		return err
	}

	proc, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d not running (stale PID file %s): %w", pid, pidPath, err)
	}

	if name, err := proc.Name(); err == nil && !strings.HasPrefix(name, "pstated") {
		return fmt.Errorf("process %d is %q, not pstated (stale PID file %s)", pid, name, pidPath)
	}

	if err := requestStop(cfg, proc); err != nil {
		return err
	}

	if !jsonOut {
		fmt.Printf("Sent stop request to process %d\n", pid)
	} else {
		fmt.Printf(`{"status":"stopped","pid":%d}`+"\n", pid)
	}

	return nil
}

func readPIDFile(path string) (int32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("PID file not found: %s (pstated may not be running)", path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.ParseInt(pidStr, 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %s", pidStr)
	}
	return int32(pid), nil
}
