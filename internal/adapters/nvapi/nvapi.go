// Package nvapi binds the NVIDIA control API at runtime.
//
// NvAPI does not export per-operation symbols. Every entry point is obtained
// from nvapi_QueryInterface using a stable numeric id.
package nvapi

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/haskel/pstated/internal/binding"
	"github.com/haskel/pstated/internal/domain"
)

// Status is an NvAPI_Status code.
type Status int32

const (
	StatusOK                Status = 0
	StatusError             Status = -1
	StatusLibraryNotFound   Status = -2
	StatusNoImplementation  Status = -3
	StatusAPINotInitialized Status = -4
)

type op int

const (
	opInitialize op = iota
	opUnload
	opEnumPhysicalGPUs
	opSetForcePstate
	opGetErrorMessage
	opGetBusID
)

const queryInterfaceSymbol = "nvapi_QueryInterface"

var interfaceIDs = map[op]uint32{
	opInitialize:       0x0150e828,
	opUnload:           0xd22bdd7e,
	opEnumPhysicalGPUs: 0xe5ac921f,
	opSetForcePstate:   0x025bfb10,
	opGetErrorMessage:  0x6c2d048c,
	opGetBusID:         0x1be0b8e5,
}

// FallbackState is passed to SetForcePstate as the state to use when the
// requested one is unavailable.
const FallbackState = 2

const errorMessageFallback = "<NvAPI_GetErrorMessage() call failed>"

// shortString mirrors NvAPI_ShortString.
type shortString [64]byte

type functions struct {
	initialize       func() int32
	unload           func() int32
	enumPhysicalGPUs func(handles *[domain.MaxPhysicalGPUs]uintptr, count *uint32) int32
	setForcePstate   func(handle uintptr, pstate uint32, fallback uint32) int32
	getErrorMessage  func(status int32, desc *shortString) int32
	getBusID         func(handle uintptr, busID *uint32) int32
}

// Library is the NvAPI capability table.
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
		return []string{"nvapi64.dll", "nvapi.dll"}
	}
	return []string{"libnvidia-api.so.1", "libnvidia-api.so"}
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

// Initialize loads the library, resolves every operation through
// nvapi_QueryInterface and calls NvAPI_Initialize.
func (l *Library) Initialize() error {
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
			return fmt.Errorf("nvapi: %w", err)
		}

		resolver, err := binding.NewDispatchResolver(lib, queryInterfaceSymbol, interfaceIDs)
		if err != nil {
			_ = lib.Close()
			return fmt.Errorf("nvapi: %s: %w", name, err)
		}

		l.lib = lib
		l.name = name
		l.bind(resolver)
	}

	return l.check("NvAPI_Initialize", l.initialize())
}

func (l *Library) bind(r binding.Resolver[op]) {
	binding.Bind(r, opInitialize, &l.fn.initialize)
	binding.Bind(r, opUnload, &l.fn.unload)
	binding.Bind(r, opEnumPhysicalGPUs, &l.fn.enumPhysicalGPUs)
	binding.Bind(r, opSetForcePstate, &l.fn.setForcePstate)
	binding.Bind(r, opGetErrorMessage, &l.fn.getErrorMessage)
	binding.Bind(r, opGetBusID, &l.fn.getBusID)
}

// Unload calls NvAPI_Unload and, only if it succeeds, clears every slot and
// releases the library. A failed unload leaves the table intact so it can be
// retried. Unloading an already released library is a no-op.
func (l *Library) Unload() error {
	if l.lib == nil {
		return nil
	}

	if err := l.check("NvAPI_Unload", l.unload()); err != nil {
		return err
	}

	lib := l.lib
	l.fn = functions{}
	l.lib = nil
	if err := lib.Close(); err != nil {
		return fmt.Errorf("nvapi: %w", err)
	}
	return nil
}

// EnumeratePhysicalGPUs returns the handles of all physical GPUs.
func (l *Library) EnumeratePhysicalGPUs() ([]domain.ControlHandle, error) {
	var handles [domain.MaxPhysicalGPUs]uintptr
	var count uint32

	st := StatusAPINotInitialized
	if l.fn.enumPhysicalGPUs != nil {
		st = Status(l.fn.enumPhysicalGPUs(&handles, &count))
	}
	if err := l.check("NvAPI_EnumPhysicalGPUs", st); err != nil {
		return nil, err
	}
	if count > domain.MaxPhysicalGPUs {
		return nil, fmt.Errorf("nvapi: NvAPI_EnumPhysicalGPUs reported %d GPUs, limit is %d", count, domain.MaxPhysicalGPUs)
	}

	out := make([]domain.ControlHandle, count)
	for i := range out {
		out[i] = domain.ControlHandle(handles[i])
	}
	return out, nil
}

// BusID returns the PCI bus number of a GPU.
func (l *Library) BusID(h domain.ControlHandle) (uint32, error) {
	var bus uint32

	st := StatusAPINotInitialized
	if l.fn.getBusID != nil {
		st = Status(l.fn.getBusID(uintptr(h), &bus))
	}
	if err := l.check("NvAPI_GPU_GetBusId", st); err != nil {
		return 0, err
	}
	return bus, nil
}

// SetPerformanceState forces a GPU into pstate.
func (l *Library) SetPerformanceState(h domain.ControlHandle, pstate uint32) error {
	st := StatusAPINotInitialized
	if l.fn.setForcePstate != nil {
		st = Status(l.fn.setForcePstate(uintptr(h), pstate, FallbackState))
	}
	return l.check("NvAPI_GPU_SetForcePstate", st)
}

// ErrorMessage returns the vendor description of st, or a fixed fallback
// when the lookup itself fails.
func (l *Library) ErrorMessage(st Status) string {
	if l.fn.getErrorMessage == nil {
		return errorMessageFallback
	}

	var desc shortString
	if Status(l.fn.getErrorMessage(int32(st), &desc)) != StatusOK {
		return errorMessageFallback
	}
	if n := bytes.IndexByte(desc[:], 0); n >= 0 {
		return string(desc[:n])
	}
	return string(desc[:])
}

func (l *Library) initialize() Status {
	if l.fn.initialize == nil {
		return StatusAPINotInitialized
	}
	return Status(l.fn.initialize())
}

func (l *Library) unload() Status {
	if l.fn.unload == nil {
		return StatusAPINotInitialized
	}
	return Status(l.fn.unload())
}

func (l *Library) check(call string, st Status) error {
	if st == StatusOK {
		return nil
	}

	err := &domain.NativeCallError{
		API:     "nvapi",
		Call:    call,
		Code:    int32(st),
		Message: l.ErrorMessage(st),
	}
	switch st {
	case StatusAPINotInitialized:
		err.Err = domain.ErrNotInitialized
	case StatusLibraryNotFound:
		err.Err = domain.ErrLibraryNotFound
	}
	return err
}

var _ domain.ControlLibrary = (*Library)(nil)
