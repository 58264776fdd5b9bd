package domain

import (
	"errors"
	"fmt"

	"github.com/haskel/pstated/internal/binding"
)

var (
	// ErrLibraryNotFound means no candidate vendor library could be loaded.
	ErrLibraryNotFound = binding.ErrLibraryNotFound

	// ErrNotInitialized means an operation was invoked through an absent slot.
	ErrNotInitialized = binding.ErrNotInitialized

	// ErrCorrelationMismatch means the control and monitoring enumerations do
	// not describe the same set of physical devices.
	ErrCorrelationMismatch = errors.New("correlation mismatch")

	// ErrInvalidManagedIndex means a requested device index is out of range.
	ErrInvalidManagedIndex = errors.New("invalid managed device index")

	// ErrNoManagedDevices means device selection produced an empty set.
	ErrNoManagedDevices = errors.New("no managed devices")
)

// NativeCallError is a non-success status returned by a vendor call.
type NativeCallError struct {
	API     string
	Call    string
	Code    int32
	Message string
	// Err is an optional sentinel the status maps to, such as ErrNotInitialized.
	Err error
}

func (e *NativeCallError) Error() string {
	return fmt.Sprintf("%s: %s: %s (%d)", e.API, e.Call, e.Message, e.Code)
}

func (e *NativeCallError) Unwrap() error {
	return e.Err
}
