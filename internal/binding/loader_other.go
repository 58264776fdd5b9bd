//go:build !darwin && !freebsd && !linux && !windows

package binding

import (
	"fmt"
	"runtime"
)

func openPlatform(name string) (Library, error) {
	return nil, fmt.Errorf("GOOS=%s is not supported", runtime.GOOS)
}
