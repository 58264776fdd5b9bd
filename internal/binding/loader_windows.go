//go:build windows

package binding

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type dllLibrary struct {
	name   string
	handle windows.Handle
}

func openPlatform(name string) (Library, error) {
	handle, err := windows.LoadLibrary(name)
	if err != nil {
		return nil, fmt.Errorf("LoadLibrary %s failed: %w", name, err)
	}
	return &dllLibrary{name: name, handle: handle}, nil
}

func (l *dllLibrary) Lookup(symbol string) (uintptr, error) {
	if l.handle == 0 {
		return 0, fmt.Errorf("%s: %w", l.name, ErrNotInitialized)
	}
	return windows.GetProcAddress(l.handle, symbol)
}

func (l *dllLibrary) Close() error {
	if l.handle == 0 {
		return nil
	}
	if err := windows.FreeLibrary(l.handle); err != nil {
		return fmt.Errorf("FreeLibrary %s failed: %w", l.name, err)
	}
	l.handle = 0
	return nil
}
