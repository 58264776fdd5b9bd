//go:build linux && cgo && !nonvml

package nvml

import (
	"fmt"

	gonvml "github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/haskel/pstated/internal/domain"
)

// GoLibrary implements the monitoring API on top of github.com/NVIDIA/go-nvml.
// Handles are 1-based positions in the list of devices fetched so far.
type GoLibrary struct {
	candidates []string
	newLib     func(opts ...gonvml.LibraryOption) gonvml.Interface

	lib     gonvml.Interface
	path    string
	devices []gonvml.Device
}

// NewGo creates an unbound go-nvml backed library.
func NewGo(candidates []string) *GoLibrary {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	return &GoLibrary{candidates: candidates, newLib: gonvml.New}
}

// LibraryName returns the candidate path go-nvml loaded.
func (l *GoLibrary) LibraryName() string {
	return l.path
}

// Loaded reports whether NVML was initialized.
func (l *GoLibrary) Loaded() bool {
	return l.lib != nil
}

// Init tries each candidate path until go-nvml manages to load one.
func (l *GoLibrary) Init() error {
	if l.lib != nil {
		return nil
	}

	for _, path := range l.candidates {
		lib := l.newLib(gonvml.WithLibraryPath(path))
		ret := lib.Init()
		if ret == gonvml.SUCCESS {
			l.lib = lib
			l.path = path
			return nil
		}
		if ret != gonvml.ERROR_LIBRARY_NOT_FOUND {
			return goError(lib, "nvmlInit", ret)
		}
	}
	return fmt.Errorf("nvml: %w: tried %v", domain.ErrLibraryNotFound, l.candidates)
}

// Shutdown releases NVML. Only a successful shutdown forgets the library.
func (l *GoLibrary) Shutdown() error {
	if l.lib == nil {
		return nil
	}
	if ret := l.lib.Shutdown(); ret != gonvml.SUCCESS {
		return goError(l.lib, "nvmlShutdown", ret)
	}
	l.lib = nil
	l.path = ""
	l.devices = nil
	return nil
}

func (l *GoLibrary) DeviceCount() (int, error) {
	if l.lib == nil {
		return 0, errUninitialized("nvmlDeviceGetCount")
	}
	count, ret := l.lib.DeviceGetCount()
	if ret != gonvml.SUCCESS {
		return 0, goError(l.lib, "nvmlDeviceGetCount", ret)
	}
	return count, nil
}

func (l *GoLibrary) DeviceHandle(index int) (domain.MonitorHandle, error) {
	if l.lib == nil {
		return 0, errUninitialized("nvmlDeviceGetHandleByIndex")
	}
	dev, ret := l.lib.DeviceGetHandleByIndex(index)
	if ret != gonvml.SUCCESS {
		return 0, goError(l.lib, "nvmlDeviceGetHandleByIndex", ret)
	}
	l.devices = append(l.devices, dev)
	return domain.MonitorHandle(len(l.devices)), nil
}

func (l *GoLibrary) BusID(h domain.MonitorHandle) (uint32, error) {
	dev, err := l.device(h, "nvmlDeviceGetPciInfo")
	if err != nil {
		return 0, err
	}
	pci, ret := dev.GetPciInfo()
	if ret != gonvml.SUCCESS {
		return 0, goError(l.lib, "nvmlDeviceGetPciInfo", ret)
	}
	return pci.Bus, nil
}

func (l *GoLibrary) Temperature(h domain.MonitorHandle) (uint32, error) {
	dev, err := l.device(h, "nvmlDeviceGetTemperature")
	if err != nil {
		return 0, err
	}
	temp, ret := dev.GetTemperature(gonvml.TEMPERATURE_GPU)
	if ret != gonvml.SUCCESS {
		return 0, goError(l.lib, "nvmlDeviceGetTemperature", ret)
	}
	return temp, nil
}

func (l *GoLibrary) Utilization(h domain.MonitorHandle) (uint32, error) {
	dev, err := l.device(h, "nvmlDeviceGetUtilizationRates")
	if err != nil {
		return 0, err
	}
	util, ret := dev.GetUtilizationRates()
	if ret != gonvml.SUCCESS {
		return 0, goError(l.lib, "nvmlDeviceGetUtilizationRates", ret)
	}
	return util.Gpu, nil
}

func (l *GoLibrary) Name(h domain.MonitorHandle) (string, error) {
	dev, err := l.device(h, "nvmlDeviceGetName")
	if err != nil {
		return "", err
	}
	name, ret := dev.GetName()
	if ret != gonvml.SUCCESS {
		return "", goError(l.lib, "nvmlDeviceGetName", ret)
	}
	return name, nil
}

func (l *GoLibrary) device(h domain.MonitorHandle, call string) (gonvml.Device, error) {
	if l.lib == nil {
		return nil, errUninitialized(call)
	}
	i := int(h) - 1
	if i < 0 || i >= len(l.devices) {
		return nil, &domain.NativeCallError{
			API:     "nvml",
			Call:    call,
			Code:    int32(gonvml.ERROR_INVALID_ARGUMENT),
			Message: l.lib.ErrorString(gonvml.ERROR_INVALID_ARGUMENT),
		}
	}
	return l.devices[i], nil
}

func goError(lib gonvml.Interface, call string, ret gonvml.Return) error {
	err := &domain.NativeCallError{
		API:     "nvml",
		Call:    call,
		Code:    int32(ret),
		Message: lib.ErrorString(ret),
	}
	switch ret {
	case gonvml.ERROR_UNINITIALIZED, gonvml.ERROR_FUNCTION_NOT_FOUND:
		err.Err = domain.ErrNotInitialized
	case gonvml.ERROR_LIBRARY_NOT_FOUND:
		err.Err = domain.ErrLibraryNotFound
	}
	return err
}

func errUninitialized(call string) error {
	return &domain.NativeCallError{
		API:     "nvml",
		Call:    call,
		Code:    int32(gonvml.ERROR_UNINITIALIZED),
		Message: errorStringFallback,
		Err:     domain.ErrNotInitialized,
	}
}

// GoBackendAvailable reports whether this build includes the go-nvml backend.
const GoBackendAvailable = true

var _ domain.MonitoringLibrary = (*GoLibrary)(nil)
