//go:build !darwin && !freebsd && !linux && !windows

package binding

// Register is a no-op on platforms without a native call bridge; every slot
// stays absent.
func Register(fptr any, addr uintptr) {}
