// Package nvml binds the NVIDIA Management Library at runtime.
//
// Entry points are resolved directly by symbol name. Where NVML ships several
// versions of a call the newest symbol is preferred.
package nvml

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/haskel/pstated/internal/binding"
	"github.com/haskel/pstated/internal/domain"
)

// Return is an nvmlReturn_t code.
type Return int32

const (
	Success             Return = 0
	ErrorUninitialized  Return = 1
	ErrorInvalidArg     Return = 2
	ErrorNotSupported   Return = 3
	ErrorLibraryMissing Return = 12
	ErrorFunctionAbsent Return = 13
)

const (
	temperatureGPU = 0
	nameBufferSize = 96
)

const errorStringFallback = "<nvmlErrorString() call failed>"

type op int

const (
	opInit op = iota
	opShutdown
	opErrorString
	opDeviceGetCount
	opDeviceGetHandleByIndex
	opDeviceGetTemperature
	opDeviceGetUtilizationRates
	opDeviceGetPciInfo
	opDeviceGetName
)

var symbols = map[op][]string{
	opInit:                      {"nvmlInit_v2", "nvmlInit"},
	opShutdown:                  {"nvmlShutdown"},
	opErrorString:               {"nvmlErrorString"},
	opDeviceGetCount:            {"nvmlDeviceGetCount_v2", "nvmlDeviceGetCount"},
	opDeviceGetHandleByIndex:    {"nvmlDeviceGetHandleByIndex_v2", "nvmlDeviceGetHandleByIndex"},
	opDeviceGetTemperature:      {"nvmlDeviceGetTemperature"},
	opDeviceGetUtilizationRates: {"nvmlDeviceGetUtilizationRates"},
	opDeviceGetPciInfo:          {"nvmlDeviceGetPciInfo_v3", "nvmlDeviceGetPciInfo_v2", "nvmlDeviceGetPciInfo"},
	opDeviceGetName:             {"nvmlDeviceGetName"},
}

// utilization mirrors nvmlUtilization_t.
type utilization struct {
	GPU    uint32
	Memory uint32
}

// pciInfo mirrors nvmlPciInfo_t.
type pciInfo struct {
	BusIDLegacy    [16]byte
	Domain         uint32
	Bus            uint32
	Device         uint32
	PciDeviceID    uint32
	PciSubSystemID uint32
	BusID          [32]byte
}

type functions struct {
	init                      func() int32
	shutdown                  func() int32
	errorString               func(ret int32) string
	deviceGetCount            func(count *uint32) int32
	deviceGetHandleByIndex    func(index uint32, device *uintptr) int32
	deviceGetTemperature      func(device uintptr, sensor uint32, temp *uint32) int32
	deviceGetUtilizationRates func(device uintptr, util *utilization) int32
	deviceGetPciInfo          func(device uintptr, pci *pciInfo) int32
	deviceGetName             func(device uintptr, name *byte, length uint32) int32
}

// Library is the NVML capability table.
type Library struct {
	candidates []string
	open       binding.Opener

	lib  binding.Library
	name string
	fn   functions
}

// DefaultCandidates returns the platform library names in load order.
func DefaultCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"nvml64.dll", "nvml.dll"}
	}
	return []string{"libnvidia-ml.so.1", "libnvidia-ml.so"}
}

// New creates an unbound library. An empty candidate list uses DefaultCandidates.
func New(candidates []string) *Library {
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}
	return &Library{candidates: candidates}
}

// LibraryName returns the library file that was loaded.
func (l *Library) LibraryName() string {
	return l.name
}

// Loaded reports whether the capability table is populated.
func (l *Library) Loaded() bool {
	return l.lib != nil
}

// Init loads the library, resolves every symbol and calls nvmlInit.
func (l *Library) Init() error {
	if l.lib == nil {
		var (
			lib  binding.Library
			name string
			err  error
		)
		if l.open != nil {
			lib, name, err = binding.OpenWith(l.open, l.candidates)
		} else {
			lib, name, err = binding.Open(l.candidates)
		}
		if err != nil {
			return fmt.Errorf("nvml: %w", err)
		}

		l.lib = lib
		l.name = name
		l.bind(binding.NewSymbolResolver(lib, symbols))
	}

	return l.check("nvmlInit", l.call0(l.fn.init))
}

func (l *Library) bind(r binding.Resolver[op]) {
	binding.Bind(r, opInit, &l.fn.init)
	binding.Bind(r, opShutdown, &l.fn.shutdown)
	binding.Bind(r, opErrorString, &l.fn.errorString)
	binding.Bind(r, opDeviceGetCount, &l.fn.deviceGetCount)
	binding.Bind(r, opDeviceGetHandleByIndex, &l.fn.deviceGetHandleByIndex)
	binding.Bind(r, opDeviceGetTemperature, &l.fn.deviceGetTemperature)
	binding.Bind(r, opDeviceGetUtilizationRates, &l.fn.deviceGetUtilizationRates)
	binding.Bind(r, opDeviceGetPciInfo, &l.fn.deviceGetPciInfo)
	binding.Bind(r, opDeviceGetName, &l.fn.deviceGetName)
}

// Shutdown calls nvmlShutdown and, only if it succeeds, clears every slot and
// releases the library. Shutting down a released library is a no-op.
func (l *Library) Shutdown() error {
	if l.lib == nil {
		return nil
	}

	if err := l.check("nvmlShutdown", l.call0(l.fn.shutdown)); err != nil {
		return err
	}

	lib := l.lib
	l.fn = functions{}
	l.lib = nil
	if err := lib.Close(); err != nil {
		return fmt.Errorf("nvml: %w", err)
	}
	return nil
}

// DeviceCount returns the number of GPUs NVML can see.
func (l *Library) DeviceCount() (int, error) {
	var count uint32

	ret := ErrorUninitialized
	if l.fn.deviceGetCount != nil {
		ret = Return(l.fn.deviceGetCount(&count))
	}
	if err := l.check("nvmlDeviceGetCount", ret); err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeviceHandle returns the handle of the GPU at index.
func (l *Library) DeviceHandle(index int) (domain.MonitorHandle, error) {
	var device uintptr

	ret := ErrorUninitialized
	if l.fn.deviceGetHandleByIndex != nil {
		ret = Return(l.fn.deviceGetHandleByIndex(uint32(index), &device))
	}
	if err := l.check("nvmlDeviceGetHandleByIndex", ret); err != nil {
		return 0, err
	}
	return domain.MonitorHandle(device), nil
}

// BusID returns the PCI bus number of a GPU.
func (l *Library) BusID(h domain.MonitorHandle) (uint32, error) {
	var pci pciInfo

	ret := ErrorUninitialized
	if l.fn.deviceGetPciInfo != nil {
		ret = Return(l.fn.deviceGetPciInfo(uintptr(h), &pci))
	}
	if err := l.check("nvmlDeviceGetPciInfo", ret); err != nil {
		return 0, err
	}
	return pci.Bus, nil
}

// Temperature returns the GPU core temperature in degrees C.
func (l *Library) Temperature(h domain.MonitorHandle) (uint32, error) {
	var temp uint32

	ret := ErrorUninitialized
	if l.fn.deviceGetTemperature != nil {
		ret = Return(l.fn.deviceGetTemperature(uintptr(h), temperatureGPU, &temp))
	}
	if err := l.check("nvmlDeviceGetTemperature", ret); err != nil {
		return 0, err
	}
	return temp, nil
}

// Utilization returns the GPU utilization in percent.
func (l *Library) Utilization(h domain.MonitorHandle) (uint32, error) {
	var util utilization

	ret := ErrorUninitialized
	if l.fn.deviceGetUtilizationRates != nil {
		ret = Return(l.fn.deviceGetUtilizationRates(uintptr(h), &util))
	}
	if err := l.check("nvmlDeviceGetUtilizationRates", ret); err != nil {
		return 0, err
	}
	return util.GPU, nil
}

// Name returns the product name of a GPU.
func (l *Library) Name(h domain.MonitorHandle) (string, error) {
	var buf [nameBufferSize]byte

	ret := ErrorUninitialized
	if l.fn.deviceGetName != nil {
		ret = Return(l.fn.deviceGetName(uintptr(h), &buf[0], nameBufferSize))
	}
	if err := l.check("nvmlDeviceGetName", ret); err != nil {
		return "", err
	}
	if n := bytes.IndexByte(buf[:], 0); n >= 0 {
		return string(buf[:n]), nil
	}
	return string(buf[:]), nil
}

// ErrorString returns the vendor description of ret.
func (l *Library) ErrorString(ret Return) string {
	if l.fn.errorString == nil {
		return errorStringFallback
	}
	if s := l.fn.errorString(int32(ret)); s != "" {
		return s
	}
	return errorStringFallback
}

func (l *Library) call0(fn func() int32) Return {
	if fn == nil {
		return ErrorUninitialized
	}
	return Return(fn())
}

func (l *Library) check(call string, ret Return) error {
	if ret == Success {
		return nil
	}

	err := &domain.NativeCallError{
		API:     "nvml",
		Call:    call,
		Code:    int32(ret),
		Message: l.ErrorString(ret),
	}
	switch ret {
	case ErrorUninitialized, ErrorFunctionAbsent:
		err.Err = domain.ErrNotInitialized
	case ErrorLibraryMissing:
		err.Err = domain.ErrLibraryNotFound
	}
	return err
}

var _ domain.MonitoringLibrary = (*Library)(nil)
