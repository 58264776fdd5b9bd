//go:build !linux || !cgo || nonvml

package nvml

import (
	"fmt"

	"github.com/haskel/pstated/internal/domain"
)

// GoLibrary stub - used when building without cgo or with the nonvml tag.
type GoLibrary struct{}

// NewGo returns a stub whose Init always fails.
func NewGo(candidates []string) *GoLibrary {
	return &GoLibrary{}
}

func (l *GoLibrary) Loaded() bool { return false }

func (l *GoLibrary) LibraryName() string { return "" }

func (l *GoLibrary) Init() error {
	return fmt.Errorf("nvml: go-nvml backend not available in this build: %w", domain.ErrLibraryNotFound)
}

func (l *GoLibrary) Shutdown() error { return nil }

func (l *GoLibrary) DeviceCount() (int, error) {
	return 0, fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

func (l *GoLibrary) DeviceHandle(index int) (domain.MonitorHandle, error) {
	return 0, fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

func (l *GoLibrary) BusID(h domain.MonitorHandle) (uint32, error) {
	return 0, fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

func (l *GoLibrary) Temperature(h domain.MonitorHandle) (uint32, error) {
	return 0, fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

func (l *GoLibrary) Utilization(h domain.MonitorHandle) (uint32, error) {
	return 0, fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

func (l *GoLibrary) Name(h domain.MonitorHandle) (string, error) {
	return "", fmt.Errorf("nvml: %w", domain.ErrNotInitialized)
}

// GoBackendAvailable reports whether this build includes the go-nvml backend.
const GoBackendAvailable = false

// Compile-time interface check
var _ domain.MonitoringLibrary = (*GoLibrary)(nil)
