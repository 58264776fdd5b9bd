// Package binding resolves vendor library entry points at runtime.
//
// A library is located by trying an ordered list of candidate names. Entry
// points are then resolved either directly by symbol name or indirectly
// through a single dispatch function keyed by numeric ids. Callers keep the
// resolved addresses as typed func slots; a nil slot means the operation is
// unavailable.
package binding

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLibraryNotFound is returned when none of the candidate libraries could be loaded.
	ErrLibraryNotFound = errors.New("library not found")

	// ErrSymbolUnresolved is returned when a required symbol is missing from a loaded library.
	ErrSymbolUnresolved = errors.New("symbol unresolved")

	// ErrNotInitialized is returned when an operation is invoked through an absent slot.
	ErrNotInitialized = errors.New("not initialized")
)

// Library is a loaded native shared library.
type Library interface {
	// Lookup returns the address of the named symbol.
	Lookup(symbol string) (uintptr, error)
	// Close releases the library.
	Close() error
}

// Opener loads a single library by name.
type Opener func(name string) (Library, error)

// Open tries each candidate with the platform loader and returns the first
// library that loads, together with the name that worked.
func Open(candidates []string) (Library, string, error) {
	return OpenWith(openPlatform, candidates)
}

// OpenWith is Open with an explicit loader.
func OpenWith(open Opener, candidates []string) (Library, string, error) {
	var lastErr error
	for _, name := range candidates {
		if name == "" {
			continue
		}
		lib, err := open(name)
		if err == nil {
			return lib, name, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, "", fmt.Errorf("%w: no candidates given", ErrLibraryNotFound)
	}
	return nil, "", fmt.Errorf("%w: tried %s: %w", ErrLibraryNotFound, strings.Join(candidates, ", "), lastErr)
}

// Resolver maps an operation to the address of its entry point.
type Resolver[O comparable] interface {
	Resolve(op O) (uintptr, bool)
}

// SymbolResolver resolves operations directly by symbol name. Each operation
// lists its symbol variants in order of preference, newest first.
type SymbolResolver[O comparable] struct {
	lib     Library
	symbols map[O][]string
}

// NewSymbolResolver creates a resolver over lib.
func NewSymbolResolver[O comparable](lib Library, symbols map[O][]string) *SymbolResolver[O] {
	return &SymbolResolver[O]{lib: lib, symbols: symbols}
}

// Resolve returns the first symbol variant present in the library.
func (r *SymbolResolver[O]) Resolve(op O) (uintptr, bool) {
	for _, name := range r.symbols[op] {
		addr, err := r.lib.Lookup(name)
		if err == nil && addr != 0 {
			return addr, true
		}
	}
	return 0, false
}

// DispatchResolver resolves operations through a vendor dispatch function
// that maps stable 32-bit ids to entry points.
type DispatchResolver[O comparable] struct {
	query func(id uint32) uintptr
	ids   map[O]uint32
}

// NewDispatchResolver looks up the dispatch symbol in lib and wraps it.
func NewDispatchResolver[O comparable](lib Library, symbol string, ids map[O]uint32) (*DispatchResolver[O], error) {
	addr, err := lib.Lookup(symbol)
	if err != nil || addr == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolUnresolved, symbol)
	}

	var query func(id uint32) uintptr
	Register(&query, addr)

	return NewDispatchResolverFunc(query, ids), nil
}

// NewDispatchResolverFunc creates a resolver around an already bound dispatch function.
func NewDispatchResolverFunc[O comparable](query func(id uint32) uintptr, ids map[O]uint32) *DispatchResolver[O] {
	return &DispatchResolver[O]{query: query, ids: ids}
}

// Resolve calls the dispatch function with the id registered for op.
func (r *DispatchResolver[O]) Resolve(op O) (uintptr, bool) {
	id, ok := r.ids[op]
	if !ok || r.query == nil {
		return 0, false
	}
	addr := r.query(id)
	return addr, addr != 0
}

// Bind resolves op and, when present, stores a typed func for it in fptr.
// fptr must be a pointer to a nil func variable. It reports whether the
// slot was filled.
func Bind[O comparable](r Resolver[O], op O, fptr any) bool {
	addr, ok := r.Resolve(op)
	if !ok {
		return false
	}
	Register(fptr, addr)
	return true
}
