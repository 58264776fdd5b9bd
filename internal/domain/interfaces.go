package domain

// MaxPhysicalGPUs is the hardware-imposed upper bound on enumerated devices.
const MaxPhysicalGPUs = 64

// ControlHandle identifies a GPU in the control API. It is only valid between
// a successful enumeration and the library being unloaded.
type ControlHandle uintptr

// MonitorHandle identifies a GPU in the monitoring API. It is not
// interchangeable with ControlHandle even when both refer to the same device.
type MonitorHandle uintptr

// ControlLibrary abstracts the vendor API used to force performance states.
type ControlLibrary interface {
	// Initialize loads the library and resolves its entry points.
	Initialize() error
	// Unload releases the library. Calling it again after success is a no-op.
	Unload() error
	// EnumeratePhysicalGPUs returns the control handles of all GPUs.
	EnumeratePhysicalGPUs() ([]ControlHandle, error)
	// BusID returns the PCI bus number of a GPU.
	BusID(h ControlHandle) (uint32, error)
	// SetPerformanceState forces a GPU into the given pstate.
	SetPerformanceState(h ControlHandle, pstate uint32) error
}

// MonitoringLibrary abstracts the vendor API used to read GPU metrics.
type MonitoringLibrary interface {
	// Init loads the library and resolves its entry points.
	Init() error
	// Shutdown releases the library. Calling it again after success is a no-op.
	Shutdown() error
	// DeviceCount returns the number of GPUs. Implementations that cannot
	// count devices return an error wrapping ErrNotInitialized.
	DeviceCount() (int, error)
	// DeviceHandle returns the monitoring handle of the GPU at index.
	DeviceHandle(index int) (MonitorHandle, error)
	// BusID returns the PCI bus number of a GPU.
	BusID(h MonitorHandle) (uint32, error)
	// Temperature returns the GPU core temperature in degrees C.
	Temperature(h MonitorHandle) (uint32, error)
	// Utilization returns the GPU utilization in percent.
	Utilization(h MonitorHandle) (uint32, error)
	// Name returns the product name of a GPU.
	Name(h MonitorHandle) (string, error)
}
