package config

import "time"

type Config struct {
	Controller ControllerConfig `yaml:"controller" json:"controller"`
	Libraries  LibrariesConfig  `yaml:"libraries" json:"libraries"`
	Service    ServiceConfig    `yaml:"service" json:"service"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ControllerConfig holds the power-state decision parameters.
type ControllerConfig struct {
	// IDs lists the managed device indexes. Empty manages every device.
	IDs []int `yaml:"ids" json:"ids"`

	// IterationsBeforeSwitch is the number of idle polls tolerated before
	// a busy GPU is demoted.
	IterationsBeforeSwitch int `yaml:"iterations_before_switch" json:"iterations_before_switch"`

	PerformanceStateHigh uint32 `yaml:"performance_state_high" json:"performance_state_high"`
	PerformanceStateLow  uint32 `yaml:"performance_state_low" json:"performance_state_low"`
	SleepIntervalMS      int    `yaml:"sleep_interval_ms" json:"sleep_interval_ms"`

	// TemperatureThreshold in degrees C. Hotter GPUs are forced low.
	TemperatureThreshold uint32 `yaml:"temperature_threshold" json:"temperature_threshold"`

	// UtilizationThreshold in percent. Busier GPUs are forced high.
	UtilizationThreshold uint32 `yaml:"utilization_threshold" json:"utilization_threshold"`
}

// LibrariesConfig overrides the vendor library names tried at startup.
type LibrariesConfig struct {
	NvAPI []string `yaml:"nvapi" json:"nvapi"`
	NVML  []string `yaml:"nvml" json:"nvml"`

	// MonitoringBackend: dynamic, go-nvml
	MonitoringBackend string `yaml:"monitoring_backend" json:"monitoring_backend"`
}

type ServiceConfig struct {
	Name    string `yaml:"name" json:"name"`
	PIDFile string `yaml:"pid_file" json:"pid_file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	// Output is stderr, stdout or a file path. Services have no console,
	// so a file is the usual choice there.
	Output string `yaml:"output" json:"output"`
}

func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.Controller.SleepIntervalMS) * time.Millisecond
}

// ManagedIDs returns the configured ids, or nil when every device is managed.
func (c *ControllerConfig) ManagedIDs() []int {
	if len(c.IDs) == 0 {
		return nil
	}
	return c.IDs
}
