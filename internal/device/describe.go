package device

import (
	"fmt"

	"github.com/haskel/pstated/internal/domain"
)

// Info is a snapshot of one correlated device.
type Info struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Bus         uint32 `json:"bus"`
	Temperature uint32 `json:"temperature"`
	Utilization uint32 `json:"utilization"`
}

// Describe reads the name, bus, temperature and utilization of every device
// in the topology.
func Describe(mon domain.MonitoringLibrary, topo *Topology) ([]Info, error) {
	infos := make([]Info, 0, topo.Len())

	for i, h := range topo.Monitor {
		info := Info{Index: i}
		var err error

		if info.Name, err = mon.Name(h); err != nil {
			return nil, fmt.Errorf("device %d name: %w", i, err)
		}
		if info.Bus, err = mon.BusID(h); err != nil {
			return nil, fmt.Errorf("device %d bus id: %w", i, err)
		}
		if info.Temperature, err = mon.Temperature(h); err != nil {
			return nil, fmt.Errorf("device %d temperature: %w", i, err)
		}
		if info.Utilization, err = mon.Utilization(h); err != nil {
			return nil, fmt.Errorf("device %d utilization: %w", i, err)
		}

		infos = append(infos, info)
	}

	return infos, nil
}
