//go:build darwin || freebsd || linux

package binding

import (
	"fmt"

	"github.com/ebitengine/purego"
)

type dlLibrary struct {
	name   string
	handle uintptr
}

func openPlatform(name string) (Library, error) {
	handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s failed: %w", name, err)
	}
	return &dlLibrary{name: name, handle: handle}, nil
}

func (l *dlLibrary) Lookup(symbol string) (uintptr, error) {
	if l.handle == 0 {
		return 0, fmt.Errorf("%s: %w", l.name, ErrNotInitialized)
	}
	return purego.Dlsym(l.handle, symbol)
}

func (l *dlLibrary) Close() error {
	if l.handle == 0 {
		return nil
	}
	if err := purego.Dlclose(l.handle); err != nil {
		return fmt.Errorf("dlclose %s failed: %w", l.name, err)
	}
	l.handle = 0
	return nil
}
