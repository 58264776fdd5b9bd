package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/pstated/internal/adapters/nvapi"
	"github.com/haskel/pstated/internal/adapters/nvml"
	"github.com/haskel/pstated/internal/adapters/simulated"
	"github.com/haskel/pstated/internal/config"
	"github.com/haskel/pstated/internal/pstate"
)

func TestIsJSON(t *testing.T) {
	jsonOut = false
	if IsJSON() {
		t.Error("expected false")
	}

	jsonOut = true
	if !IsJSON() {
		t.Error("expected true")
	}

	// Reset
	jsonOut = false
}

func TestGetConfigFile(t *testing.T) {
	cfgFile = ""
	if GetConfigFile() != "" {
		t.Error("expected empty config file")
	}

	cfgFile = "/path/to/config.yaml"
	if GetConfigFile() != "/path/to/config.yaml" {
		t.Errorf("expected /path/to/config.yaml, got %s", GetConfigFile())
	}

	// Reset
	cfgFile = ""
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3")

	if Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", Version)
	}

	// Reset
	Version = "0.1.0"
}

func TestControllerFlags(t *testing.T) {
	names := []string{
		"ids",
		"iterations-before-switch",
		"performance-state-high",
		"performance-state-low",
		"sleep-interval",
		"temperature-threshold",
		"utilization-threshold",
		"monitoring-backend",
		"pid-file",
		"simulate",
	}

	for _, cmd := range []*cobra.Command{rootCmd, runCmd, configCmd} {
		for _, name := range names {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: flag %s should exist", cmd.Name(), name)
			}
		}
	}
}

func TestApplyControllerFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addControllerFlags(cmd)

	err := cmd.Flags().Parse([]string{
		"--ids", "0,2",
		"--temperature-threshold", "70",
		"--sleep-interval", "250",
		"--monitoring-backend", "go-nvml",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := config.Default()
	applyControllerFlags(cmd.Flags(), cfg)

	if ids := cfg.Controller.ManagedIDs(); len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Errorf("expected ids [0 2], got %v", ids)
	}
	if cfg.Controller.TemperatureThreshold != 70 {
		t.Errorf("expected temperature threshold 70, got %d", cfg.Controller.TemperatureThreshold)
	}
	if cfg.SleepInterval() != 250*time.Millisecond {
		t.Errorf("expected sleep interval 250ms, got %s", cfg.SleepInterval())
	}
	if cfg.Libraries.MonitoringBackend != config.BackendGoNVML {
		t.Errorf("expected go-nvml backend, got %s", cfg.Libraries.MonitoringBackend)
	}

	// Unset flags keep config values
	if cfg.Controller.PerformanceStateLow != 8 {
		t.Errorf("expected low pstate 8, got %d", cfg.Controller.PerformanceStateLow)
	}

	ctlFlags = controllerFlags{}
}

func TestLoadConfig_NegativeIDIsNotFatal(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addControllerFlags(cmd)
	defer func() { ctlFlags = controllerFlags{} }()

	if err := cmd.Flags().Parse([]string{"--ids", "0,-1"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		t.Fatalf("negative id must be skipped at setup, not rejected: %v", err)
	}
	if ids := cfg.Controller.ManagedIDs(); len(ids) != 2 || ids[1] != -1 {
		t.Errorf("expected ids [0 -1], got %v", ids)
	}
}

func TestSchedulerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Controller.PerformanceStateHigh = 0
	cfg.Controller.IDs = []int{1}

	sc := schedulerConfig(cfg)

	want := pstate.Levels{Low: 8, High: 0, Automatic: pstate.VendorAutomatic}
	if sc.Controller.Levels != want {
		t.Errorf("expected levels %+v, got %+v", want, sc.Controller.Levels)
	}
	if sc.Controller.IterationsBeforeSwitch != 30 || sc.Controller.TemperatureThreshold != 80 {
		t.Errorf("unexpected controller config %+v", sc.Controller)
	}
	if len(sc.IDs) != 1 || sc.IDs[0] != 1 {
		t.Errorf("expected ids [1], got %v", sc.IDs)
	}
	if sc.Interval != 100*time.Millisecond {
		t.Errorf("expected 100ms interval, got %s", sc.Interval)
	}
}

func TestOpenLibraries(t *testing.T) {
	cfg := config.Default()

	ctl, mon, err := openLibraries(cfg, 2)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if _, ok := ctl.(*simulated.Control); !ok {
		t.Errorf("expected simulated control, got %T", ctl)
	}
	if _, ok := mon.(*simulated.Monitoring); !ok {
		t.Errorf("expected simulated monitoring, got %T", mon)
	}

	if _, _, err := openLibraries(cfg, 65); err == nil {
		t.Error("expected error above the device limit")
	}

	ctl, mon, err = openLibraries(cfg, 0)
	if err != nil {
		t.Fatalf("dynamic: %v", err)
	}
	if l, ok := ctl.(*nvapi.Library); !ok || l.Loaded() {
		t.Errorf("expected unloaded nvapi library, got %T", ctl)
	}
	if l, ok := mon.(*nvml.Library); !ok || l.Loaded() {
		t.Errorf("expected unloaded nvml library, got %T", mon)
	}
}

func TestListDevices(t *testing.T) {
	sys := simulated.NewSystem(
		simulated.GPU{Name: "NVIDIA GeForce RTX 3090", Bus: 1, Temperature: 45},
		simulated.GPU{Name: "NVIDIA GeForce RTX 3080", Bus: 33, Temperature: 85, Utilization: 99},
	)

	infos, err := listDevices(sys.Control(), sys.Monitoring())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[1].Bus != 33 {
		t.Fatalf("unexpected infos %+v", infos)
	}
	if sys.Control().Loaded() || sys.Monitoring().Loaded() {
		t.Error("libraries left loaded")
	}
	if sys.CallCount("SetPerformanceState") != 0 {
		t.Error("devices must not change performance states")
	}

	cfg := config.Default()
	cfg.Controller.IDs = []int{1}

	var buf bytes.Buffer
	renderDevices(&buf, infos, cfg)
	out := buf.String()

	for _, want := range []string{"RTX 3090", "RTX 3080", "MANAGED"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasSuffix(strings.TrimSpace(lines[len(lines)-1]), "yes") {
		t.Errorf("expected last gpu managed:\n%s", out)
	}
}

func TestListDevices_InitFailureReleasesControl(t *testing.T) {
	sys := simulated.NewSystem(simulated.GPU{Bus: 1})
	sys.Fail("Init", os.ErrNotExist)

	if _, err := listDevices(sys.Control(), sys.Monitoring()); err == nil {
		t.Fatal("expected error")
	}
	if sys.Control().Loaded() {
		t.Error("control library left loaded")
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.pid")
	os.WriteFile(good, []byte("1234\n"), 0644)
	pid, err := readPIDFile(good)
	if err != nil || pid != 1234 {
		t.Errorf("expected 1234, got %d (%v)", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	os.WriteFile(bad, []byte("abc"), 0644)
	if _, err := readPIDFile(bad); err == nil {
		t.Error("expected error for invalid PID")
	}

	if _, err := readPIDFile(filepath.Join(dir, "missing.pid")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigCommandJSON(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"config", "--json", "--temperature-threshold", "65"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		jsonOut = false
		ctlFlags = controllerFlags{}
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var cfg config.Config
	if err := json.Unmarshal(buf.Bytes(), &cfg); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if cfg.Controller.TemperatureThreshold != 65 {
		t.Errorf("expected flag override 65, got %d", cfg.Controller.TemperatureThreshold)
	}
}

func TestServeSimulated(t *testing.T) {
	cfg := config.Default()
	cfg.Service.PIDFile = filepath.Join(t.TempDir(), "pstated.pid")
	cfg.Logging.Output = filepath.Join(t.TempDir(), "pstated.log")
	cfg.Controller.SleepIntervalMS = 5

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := serve(ctx, cfg, 2); err != nil {
		t.Fatalf("serve: %v", err)
	}

	if _, err := os.Stat(cfg.Service.PIDFile); !os.IsNotExist(err) {
		t.Error("PID file not removed on exit")
	}

	data, err := os.ReadFile(cfg.Logging.Output)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{
		"gpu entered performance state",
		"pstated stopped",
		"stats.phase=terminal",
		"stats.managed=2",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in log", want)
		}
	}
}
