package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	BackendDynamic = "dynamic"
	BackendGoNVML  = "go-nvml"
)

func Default() *Config {
	return &Config{
		Controller: ControllerConfig{
			IterationsBeforeSwitch: 30,
			PerformanceStateHigh:   16,
			PerformanceStateLow:    8,
			SleepIntervalMS:        100,
			TemperatureThreshold:   80,
			UtilizationThreshold:   0,
		},
		Libraries: LibrariesConfig{
			MonitoringBackend: BackendDynamic,
		},
		Service: ServiceConfig{
			Name:    "pstated",
			PIDFile: defaultPIDFile(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

func defaultPIDFile() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.TempDir(), "pstated.pid")
	}
	return "/var/run/pstated.pid"
}
