// Package hostinfo describes the machine the controller runs on.
package hostinfo

import (
	"log/slog"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Host is a static snapshot taken at startup.
type Host struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	CPUModel        string `json:"cpu_model,omitempty"`
	Cores           int    `json:"cores"`
	MemoryTotal     uint64 `json:"memory_total_bytes"`
}

// Collect gathers what gopsutil can report. Only the host query is
// required; CPU and memory details are left empty when unavailable.
func Collect() (*Host, error) {
	info, err := host.Info()
	if err != nil {
		return nil, err
	}

	h := &Host{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
	}

	if cores, err := cpu.Counts(true); err == nil {
		h.Cores = cores
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		h.CPUModel = infos[0].ModelName
	}
	if v, err := mem.VirtualMemory(); err == nil {
		h.MemoryTotal = v.Total
	}

	return h, nil
}

// LogValue implements slog.LogValuer.
func (h *Host) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("hostname", h.Hostname),
		slog.String("os", h.OS),
		slog.String("platform", h.Platform+" "+h.PlatformVersion),
		slog.String("kernel", h.KernelVersion),
		slog.String("arch", h.Arch),
		slog.String("cpu", h.CPUModel),
		slog.Int("cores", h.Cores),
		slog.Uint64("memory_total_bytes", h.MemoryTotal),
	)
}
