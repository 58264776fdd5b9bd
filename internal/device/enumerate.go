// Package device enumerates GPUs through the control and monitoring APIs and
// reconciles both enumerations into one index space.
package device

import (
	"errors"
	"fmt"

	"github.com/haskel/pstated/internal/domain"
)

// EnumerateControl returns the control handles of every physical GPU.
func EnumerateControl(ctl domain.ControlLibrary) ([]domain.ControlHandle, error) {
	handles, err := ctl.EnumeratePhysicalGPUs()
	if err != nil {
		return nil, fmt.Errorf("enumerate control devices: %w", err)
	}
	return handles, nil
}

// EnumerateMonitoring fetches count monitoring handles one index at a time.
// When the monitoring API can count devices itself, that count must agree
// with count.
func EnumerateMonitoring(mon domain.MonitoringLibrary, count int) ([]domain.MonitorHandle, error) {
	if count < 0 || count > domain.MaxPhysicalGPUs {
		return nil, fmt.Errorf("enumerate monitoring devices: count %d outside 0..%d", count, domain.MaxPhysicalGPUs)
	}

	n, err := mon.DeviceCount()
	switch {
	case errors.Is(err, domain.ErrNotInitialized):
		// optional operation
	case err != nil:
		return nil, fmt.Errorf("enumerate monitoring devices: %w", err)
	case n != count:
		return nil, fmt.Errorf("%w: control API reports %d devices, monitoring API reports %d",
			domain.ErrCorrelationMismatch, count, n)
	}

	handles := make([]domain.MonitorHandle, count)
	for i := range handles {
		h, err := mon.DeviceHandle(i)
		if err != nil {
			return nil, fmt.Errorf("enumerate monitoring device %d: %w", i, err)
		}
		handles[i] = h
	}
	return handles, nil
}

// Topology is the correlated view of all GPUs. Control[i] and Monitor[i]
// refer to the same physical device.
type Topology struct {
	Control []domain.ControlHandle
	Monitor []domain.MonitorHandle
}

// Len returns the number of correlated devices.
func (t *Topology) Len() int {
	return len(t.Monitor)
}

// Discover enumerates both APIs and correlates the results.
func Discover(ctl domain.ControlLibrary, mon domain.MonitoringLibrary) (*Topology, error) {
	ctlHandles, err := EnumerateControl(ctl)
	if err != nil {
		return nil, err
	}

	monHandles, err := EnumerateMonitoring(mon, len(ctlHandles))
	if err != nil {
		return nil, err
	}

	ordered, err := Correlate(ctl, mon, ctlHandles, monHandles)
	if err != nil {
		return nil, err
	}

	return &Topology{Control: ordered, Monitor: monHandles}, nil
}
