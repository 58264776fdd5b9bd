//go:build windows

package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/windows/svc"

	"github.com/haskel/pstated/internal/config"
)

// runAsService runs the controller under the service control manager when
// the process was started by it. It reports false for console sessions.
func runAsService() (bool, error) {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false, fmt.Errorf("failed to detect service mode: %w", err)
	}
	if !isService {
		return false, nil
	}

	// Service arguments are configured with sc.exe, e.g. binPath= "pstated.exe -c C:\pstated.yaml".
	if err := rootCmd.ParseFlags(os.Args[1:]); err != nil {
		return true, err
	}
	cfg, err := loadConfig(rootCmd.Flags())
	if err != nil {
		return true, err
	}

	h := &serviceHandler{cfg: cfg}
	if err := svc.Run(cfg.Service.Name, h); err != nil {
		return true, fmt.Errorf("service %s: %w", cfg.Service.Name, err)
	}
	return true, h.err
}

type serviceHandler struct {
	cfg *config.Config
	err error
}

// Execute implements svc.Handler. Stop and Shutdown cancel the controller,
// which then drains and releases the libraries before reporting Stopped.
func (h *serviceHandler) Execute(args []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	status <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, h.cfg, 0)
	}()

	status <- svc.Status{State: svc.Running, Accepts: accepted}

	for {
		select {
		case err := <-done:
			h.err = err
			status <- svc.Status{State: svc.StopPending}
			if err != nil {
				return true, 1
			}
			return false, 0
		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
			}
		}
	}
}
