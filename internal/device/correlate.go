package device

import (
	"fmt"

	"github.com/haskel/pstated/internal/domain"
)

// Correlate reorders ctlHandles so that position i holds the control handle of
// the device behind monHandles[i]. Devices are matched by PCI bus number.
//
// Every monitoring device must match exactly one control device. A count
// difference, a bus present in only one domain or a bus seen twice in the
// same domain is reported as ErrCorrelationMismatch.
func Correlate(
	ctl domain.ControlLibrary,
	mon domain.MonitoringLibrary,
	ctlHandles []domain.ControlHandle,
	monHandles []domain.MonitorHandle,
) ([]domain.ControlHandle, error) {
	if len(ctlHandles) != len(monHandles) {
		return nil, fmt.Errorf("%w: %d control devices, %d monitoring devices",
			domain.ErrCorrelationMismatch, len(ctlHandles), len(monHandles))
	}

	ctlKeys := make([]uint32, len(ctlHandles))
	seen := make(map[uint32]int, len(ctlHandles))
	for i, h := range ctlHandles {
		bus, err := ctl.BusID(h)
		if err != nil {
			return nil, fmt.Errorf("control device %d bus id: %w", i, err)
		}
		if j, dup := seen[bus]; dup {
			return nil, fmt.Errorf("%w: control devices %d and %d share bus %d",
				domain.ErrCorrelationMismatch, j, i, bus)
		}
		seen[bus] = i
		ctlKeys[i] = bus
	}

	out := make([]domain.ControlHandle, len(monHandles))
	matched := make(map[uint32]int, len(monHandles))
	for i, h := range monHandles {
		bus, err := mon.BusID(h)
		if err != nil {
			return nil, fmt.Errorf("monitoring device %d bus id: %w", i, err)
		}
		if j, dup := matched[bus]; dup {
			return nil, fmt.Errorf("%w: monitoring devices %d and %d share bus %d",
				domain.ErrCorrelationMismatch, j, i, bus)
		}

		found := false
		for k, key := range ctlKeys {
			if key == bus {
				out[i] = ctlHandles[k]
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: monitoring device %d on bus %d has no control device",
				domain.ErrCorrelationMismatch, i, bus)
		}
		matched[bus] = i
	}

	return out, nil
}
