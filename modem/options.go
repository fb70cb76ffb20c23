package modem

import (
	"log"
	"time"
)

// Timeouts holds the per-step deadlines §4.D assigns to each command. The
// zero value is not meaningful; use DefaultTimeouts.
type Timeouts struct {
	Ping              time.Duration
	DisableEcho       time.Duration
	ManualConnect     time.Duration
	TransferMode      time.Duration
	GetVersion        time.Duration
	NetworkConnect    time.Duration
	NetworkDisconnect time.Duration
	ServerConnect     time.Duration
	ServerDisconnect  time.Duration
	Transmit          time.Duration
}

// DefaultTimeouts returns the deadlines observed in the firmware this
// coordinator ports: short for the bring-up handshake, long for operations
// that wait on a DHCP lease or a remote TCP handshake.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Ping:              100 * time.Millisecond,
		DisableEcho:       1000 * time.Millisecond,
		ManualConnect:     1000 * time.Millisecond,
		TransferMode:      1000 * time.Millisecond,
		GetVersion:        1000 * time.Millisecond,
		NetworkConnect:    30000 * time.Millisecond,
		NetworkDisconnect: 1000 * time.Millisecond,
		ServerConnect:     30000 * time.Millisecond,
		ServerDisconnect:  1000 * time.Millisecond,
		Transmit:          10000 * time.Millisecond,
	}
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithTimeouts overrides the full set of per-step deadlines, e.g. to
// shorten them for tests against a mock modem.
func WithTimeouts(t Timeouts) Option {
	return func(d *Driver) {
		d.timeouts = t
	}
}

// WithResetter installs the GPIO bring-up collaborator. Without one, Init
// skips hardware reset and talks to the modem assuming it is already
// powered and idle — useful when driving a mock modem in tests.
func WithResetter(r Resetter) Option {
	return func(d *Driver) {
		d.resetter = r
	}
}

// WithReceiveSink installs the callback that receives each byte of inbound
// +IPD payload data, equivalent to calling SetReceiveSink after New.
func WithReceiveSink(fn func(byte)) Option {
	return func(d *Driver) {
		d.sink = fn
	}
}

// WithLogger installs a diagnostic logger. When set, the driver logs a
// warning on every command timeout or fail outcome and, on Deinit, the
// accumulated invalid-byte and outbound-segment counts. Without one,
// these diagnostics are silently discarded, the same weak optional-logger
// idiom trace.New uses with no WithLogger.
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}
