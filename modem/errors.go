// Package modem implements the command coordinator and lifecycle described
// in the design this module ports: it turns atproto's byte-level engine and
// event latch into the small set of blocking operations (bring-up,
// network join, server connect, transmit) a caller actually wants.
package modem

import "github.com/pkg/errors"

var (
	// ErrClosed indicates a read from the driver's transport has failed (for
	// example because it was closed); every command, Init included, fails
	// with this from then on.
	ErrClosed = errors.New("modem: driver is closed")

	// ErrNotInitialized indicates an operation was attempted before Init
	// completed successfully.
	ErrNotInitialized = errors.New("modem: driver is not initialized")

	// ErrAlreadyInitialized indicates Init was called on a driver that is
	// already up.
	ErrAlreadyInitialized = errors.New("modem: driver is already initialized")

	// ErrTimeout indicates a command's event latch never saw a pass or fail
	// flag before its deadline.
	ErrTimeout = errors.New("modem: command timed out")

	// ErrCommandFailed indicates the modem answered with one of the
	// command's fail-mask flags rather than a pass-mask flag.
	ErrCommandFailed = errors.New("modem: command failed")

	// ErrOutOfRange indicates a Transmit payload fell outside the 1-1024
	// byte bound §4.D enforces before ever touching the modem.
	ErrOutOfRange = errors.New("modem: payload size out of range")

	// ErrNotConnected indicates a server operation was attempted with no
	// open TCP connection.
	ErrNotConnected = errors.New("modem: not connected")
)
