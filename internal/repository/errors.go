// Package repository contains data access logic separated from HTTP
// handlers.  Sentinel errors defined here let higher layers distinguish
// failure scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrLeaseNotFound is returned when no lease matches the requested
// key/phone/date lookup.  Handlers should translate this into 404.
var ErrLeaseNotFound = errors.New("lease not found")

// ErrStaleLease is returned when a guarded status update matched the lease
// id but not its expected current status, meaning another request changed
// the lease between read and write.
var ErrStaleLease = errors.New("lease modified concurrently")
