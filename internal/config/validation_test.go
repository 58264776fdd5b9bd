package config

import (
	"testing"
)

func TestValidateDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateController(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ControllerConfig)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *ControllerConfig) {},
			wantErr: false,
		},
		{
			name: "zero iterations",
			modify: func(c *ControllerConfig) {
				c.IterationsBeforeSwitch = 0
			},
			wantErr: false,
		},
		{
			name: "negative iterations",
			modify: func(c *ControllerConfig) {
				c.IterationsBeforeSwitch = -1
			},
			wantErr: true,
		},
		{
			name: "high pstate over 16",
			modify: func(c *ControllerConfig) {
				c.PerformanceStateHigh = 17
			},
			wantErr: true,
		},
		{
			name: "low pstate over 16",
			modify: func(c *ControllerConfig) {
				c.PerformanceStateLow = 20
			},
			wantErr: true,
		},
		{
			name: "zero sleep interval",
			modify: func(c *ControllerConfig) {
				c.SleepIntervalMS = 0
			},
			wantErr: true,
		},
		{
			name: "utilization over 100",
			modify: func(c *ControllerConfig) {
				c.UtilizationThreshold = 101
			},
			wantErr: true,
		},
		{
			name: "negative id is checked at runtime",
			modify: func(c *ControllerConfig) {
				c.IDs = []int{0, -3}
			},
			wantErr: false,
		},
		{
			name: "out of range id is checked at runtime",
			modify: func(c *ControllerConfig) {
				c.IDs = []int{0, 99}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg.Controller)
			err := cfg.Controller.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateLibraries(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendDynamic, false},
		{BackendGoNVML, false},
		{"", true},
		{"cuda", true},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Libraries.MonitoringBackend = tt.backend
		err := cfg.Libraries.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("backend=%q: wantErr=%v, got %v", tt.backend, tt.wantErr, err)
		}
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"debug", "json", false},
		{"info", "json", false},
		{"warn", "json", false},
		{"error", "json", false},
		{"info", "text", false},
		{"invalid", "json", true},
		{"info", "invalid", true},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Logging.Level = tt.level
		cfg.Logging.Format = tt.format
		err := cfg.Logging.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("level=%s format=%s: wantErr=%v, got %v", tt.level, tt.format, tt.wantErr, err)
		}
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Controller.SleepIntervalMS = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok || len(joined.Unwrap()) != 2 {
		t.Errorf("expected two joined errors, got %v", err)
	}
}
