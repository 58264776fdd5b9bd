package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "test_value")
	defer os.Unsetenv("TEST_VAR")

	input := []byte("value: ${TEST_VAR}")
	expected := []byte("value: test_value")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsMultiple(t *testing.T) {
	os.Setenv("VAR1", "value1")
	os.Setenv("VAR2", "value2")
	defer os.Unsetenv("VAR1")
	defer os.Unsetenv("VAR2")

	input := []byte("first: ${VAR1}\nsecond: ${VAR2}")
	expected := []byte("first: value1\nsecond: value2")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsNotSet(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	input := []byte("value: ${NONEXISTENT_VAR}")
	expected := []byte("value: ${NONEXISTENT_VAR}") // unchanged

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsNoVars(t *testing.T) {
	input := []byte("value: plain_text")
	expected := []byte("value: plain_text")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_PID_FILE", "/run/pstated/test.pid")
	os.Setenv("TEST_LOG_LEVEL", "warn")
	defer os.Unsetenv("TEST_PID_FILE")
	defer os.Unsetenv("TEST_LOG_LEVEL")

	content := `
service:
  pid_file: "${TEST_PID_FILE}"

logging:
  level: "${TEST_LOG_LEVEL}"
  format: "json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Service.PIDFile != "/run/pstated/test.pid" {
		t.Errorf("expected pid file /run/pstated/test.pid, got %s", cfg.Service.PIDFile)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
}
