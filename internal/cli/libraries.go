package cli

import (
	"fmt"

	"github.com/haskel/pstated/internal/adapters/nvapi"
	"github.com/haskel/pstated/internal/adapters/nvml"
	"github.com/haskel/pstated/internal/adapters/simulated"
	"github.com/haskel/pstated/internal/config"
	"github.com/haskel/pstated/internal/domain"
)

// openLibraries builds the control and monitoring libraries selected by the
// config. Nothing is loaded until the scheduler initializes them.
func openLibraries(cfg *config.Config, simulate int) (domain.ControlLibrary, domain.MonitoringLibrary, error) {
	if simulate > 0 {
		if simulate > domain.MaxPhysicalGPUs {
			return nil, nil, fmt.Errorf("--simulate must be at most %d", domain.MaxPhysicalGPUs)
		}
		sys := simulated.Default(simulate)
		return sys.Control(), sys.Monitoring(), nil
	}

	ctl := nvapi.New(cfg.Libraries.NvAPI)

	switch cfg.Libraries.MonitoringBackend {
	case config.BackendGoNVML:
		if !nvml.GoBackendAvailable {
			return nil, nil, fmt.Errorf("monitoring backend %s is not available in this build", config.BackendGoNVML)
		}
		return ctl, nvml.NewGo(cfg.Libraries.NVML), nil
	default:
		return ctl, nvml.New(cfg.Libraries.NVML), nil
	}
}
