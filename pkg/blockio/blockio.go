// Copyright 2025 Ochránce Project
//
// Package blockio defines the Block I/O Port: the external boundary
// Ochránce expects a storage collaborator to implement (spec.md section
// 6). All three operations return a negative ErrorCode on failure and
// zero on success, mirroring a syscall-style device driver contract
// rather than Go's (value, error) idiom, because the collaborator on the
// other side of this port is expected to be a thin cgo or ioctl shim.
package blockio

import "fmt"

// ErrorCode is a negative failure code returned by a Block I/O Port
// operation; zero means success.
type ErrorCode int

const (
	OK                  ErrorCode = 0
	ErrBadDescriptor    ErrorCode = -1
	ErrIOFailure        ErrorCode = -2
	ErrInvalidArgument  ErrorCode = -3
	ErrPermissionDenied ErrorCode = -4
	ErrReadOnlyDevice   ErrorCode = -5
	ErrAccessFault      ErrorCode = -6
)

// Describe renders a code per spec.md section 6: the six named codes get
// their name, anything else is surfaced verbatim as unknown(code).
func (c ErrorCode) Describe() string {
	switch c {
	case OK:
		return "ok"
	case ErrBadDescriptor:
		return "bad-descriptor"
	case ErrIOFailure:
		return "io-failure"
	case ErrInvalidArgument:
		return "invalid-argument"
	case ErrPermissionDenied:
		return "permission-denied"
	case ErrReadOnlyDevice:
		return "read-only-device"
	case ErrAccessFault:
		return "access-fault"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

func (c ErrorCode) Error() string { return c.Describe() }

// AsError returns nil for OK and an error otherwise, to let callers fold
// the port's syscall-style return value into ordinary Go error handling
// at the boundary where blockio meets the rest of the engine.
func (c ErrorCode) AsError() error {
	if c == OK {
		return nil
	}
	return c
}

// Health is the fixed-layout telemetry struct read back for a device
// path (spec.md section 6, Block I/O port operation (a)).
type Health struct {
	CriticalWarning      uint8
	CompositeTemperature uint16
	AvailableSparePct    uint8
	UsedPct              uint8
	DataUnitsRead        uint64
	DataUnitsWritten     uint64
	PowerOnHours         uint64
	UnsafeShutdowns      uint64
	MediaErrors          uint64
}

// Port is the three-operation external boundary a storage collaborator
// implements.
type Port interface {
	// ReadHealth reads health telemetry for devicePath.
	ReadHealth(devicePath string) (Health, ErrorCode)

	// ReadBlock reads one logical block at lba into buf, which must be
	// exactly len(buf) bytes; the implementation is expected to fail with
	// ErrInvalidArgument if buf's declared size disagrees with the
	// device's block size.
	ReadBlock(devicePath string, lba uint64, buf []byte) ErrorCode

	// WriteBlock writes one logical block at lba from buf.
	WriteBlock(devicePath string, lba uint64, buf []byte) ErrorCode
}
