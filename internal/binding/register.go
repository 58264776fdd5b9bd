//go:build darwin || freebsd || linux || windows

package binding

import "github.com/ebitengine/purego"

// Register turns a native entry point into a Go func stored in fptr.
// A zero address leaves the slot untouched.
func Register(fptr any, addr uintptr) {
	if addr == 0 {
		return
	}
	purego.RegisterFunc(fptr, addr)
}
