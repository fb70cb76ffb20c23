package modem

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/simplerobot/rlm3wifi/atproto"
)

// Driver is the command coordinator and lifecycle manager described in
// §4.D and §4.E: it turns the byte-level receive state machine and event
// latch into the small set of blocking operations a caller actually wants.
//
// A Driver owns exactly one AT session against modem. Only one command may
// be in flight at a time; the underlying EventLatch panics if that
// invariant is violated, mirroring the single client-task assertion the
// firmware this coordinator ports relies on.
type Driver struct {
	rw      io.ReadWriter
	machine *atproto.Machine
	latch   *atproto.EventLatch
	pump    *atproto.TxPump

	resetter Resetter
	sleeper  sleeper
	timeouts Timeouts
	sink     func(byte)
	logger   *log.Logger

	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	initialized bool

	onError func(error)
}

// New creates a Driver bound to modem, an already-open transport (typically
// a serial.Port wrapped in trace.New for diagnostics). The driver starts
// reading from modem immediately; call Init to run the bring-up handshake
// before issuing any other command.
func New(modem io.ReadWriter, opts ...Option) *Driver {
	d := &Driver{
		rw:       modem,
		latch:    atproto.NewEventLatch(),
		pump:     atproto.NewTxPump(),
		sleeper:  realSleeper{},
		timeouts: DefaultTimeouts(),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.machine = atproto.NewMachine(d.latch, func(b byte) {
		d.mu.Lock()
		sink := d.sink
		d.mu.Unlock()
		if sink != nil {
			sink(b)
		}
	})
	d.machine.OnInvalidLine(func(line []byte) {
		d.logf("modem: discarded invalid line: %q", line)
	})
	go d.readLoop()
	return d
}

// SetReceiveSink installs the callback invoked once per inbound +IPD
// payload byte, per §6's receive_sink hook. Safe to call at any time; nil
// discards inbound payload bytes.
func (d *Driver) SetReceiveSink(fn func(byte)) {
	d.mu.Lock()
	d.sink = fn
	d.mu.Unlock()
}

// OnError installs a hook that receives each error the transport returns
// from a write. Diagnostic only: the command whose write failed also returns
// that error to its caller.
func (d *Driver) OnError(fn func(error)) {
	d.mu.Lock()
	d.onError = fn
	d.mu.Unlock()
}

func (d *Driver) reportError(err error) {
	d.mu.Lock()
	fn := d.onError
	d.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// readLoop stands in for the UART receive ISR: it owns the sole call site
// of Machine.OnByte for the lifetime of the driver, reading the transport
// in chunks but always feeding the machine one byte per call, exactly as
// the interrupt this replaces would.
func (d *Driver) readLoop() {
	var buf [4096]byte
	for {
		n, err := d.rw.Read(buf[:])
		for i := 0; i < n; i++ {
			d.machine.OnByte(buf[i])
		}
		if err != nil {
			d.closeOnce.Do(func() { close(d.closed) })
			return
		}
	}
}

// send hands job to the transmit pump, draining it into a single write.
// The pump still owns per-byte pacing semantics (§4.A); collapsing the
// drained bytes into one io.Writer call is the natural adaptation for a
// transport that is a Go io.Writer rather than a byte-interrupt register.
func (d *Driver) send(job *atproto.TxJob) error {
	done := d.pump.Submit(job)
	var buf []byte
	for {
		b, ok := d.pump.NextByte()
		if !ok {
			break
		}
		buf = append(buf, b)
	}
	<-done
	if len(buf) == 0 {
		return nil
	}
	_, err := d.rw.Write(buf)
	if err != nil {
		d.reportError(err)
	}
	return errors.Wrap(err, "modem: write")
}

// logf writes a diagnostic line if a logger was installed via WithLogger,
// matching the C source's LOG_WARN/LOG_ERROR calls on timeout, fail, and
// FSM desync recovery.
func (d *Driver) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// classify turns a latch Outcome into the sentinel error API callers see,
// logging a warning on anything but Pass.
func (d *Driver) classify(out atproto.Outcome) error {
	switch out {
	case atproto.Pass:
		return nil
	case atproto.Fail:
		d.logf("modem: command failed")
		return ErrCommandFailed
	default:
		d.logf("modem: command timed out")
		return ErrTimeout
	}
}

// session runs fn inside a Begin/End bracket around the driver's event
// latch, so every submit/wait pair fn performs shares one sticky flag
// accumulation window, matching §4.D's "wraps ... inside begin()/end()".
func (d *Driver) session(fn func(s *cmdSession) error) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}
	d.latch.Begin()
	defer d.latch.End()
	return fn(&cmdSession{d: d})
}

type cmdSession struct {
	d *Driver
}

func (s *cmdSession) submit(job *atproto.TxJob) error {
	return s.d.send(job)
}

func (s *cmdSession) wait(ctx context.Context, timeout time.Duration, pass, fail atproto.Flag) atproto.Outcome {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.d.latch.Wait(cctx, pass, fail)
}

// step submits job (if non-nil) then waits for a pass/fail outcome,
// returning the classified error.
func (s *cmdSession) step(ctx context.Context, job *atproto.TxJob, timeout time.Duration, pass, fail atproto.Flag) error {
	if job != nil {
		if err := s.submit(job); err != nil {
			return err
		}
	}
	return s.d.classify(s.wait(ctx, timeout, pass, fail))
}

// standardCmd runs a single AT command line and requires OK, used for the
// four bring-up steps and the simple single-round-trip commands.
func (d *Driver) standardCmd(ctx context.Context, cmd string, timeout time.Duration) error {
	return d.session(func(s *cmdSession) error {
		return s.step(ctx, atproto.Segments(cmd, "\r\n"), timeout, atproto.OK, atproto.Error|atproto.Fail)
	})
}

// Init resets the receive state machine, then runs the GPIO reset sequence
// and the bring-up handshake: ping, disable_echo, manual_connect,
// transfer_mode, per §4.E. The machine reset discards any link/version
// state left over from a prior Init/Deinit cycle, matching the C source's
// RLM3_WIFI_Init clearing g_state/g_wifi_connected/g_wifi_has_ip/
// g_tcp_connected/g_segment_count on every call. Any failure aborts and
// leaves the driver uninitialized.
func (d *Driver) Init(ctx context.Context) error {
	d.mu.Lock()
	if d.initialized {
		d.mu.Unlock()
		return ErrAlreadyInitialized
	}
	d.mu.Unlock()

	d.machine.Reset()

	if err := bringUp(ctx, d.resetter, d.sleeper); err != nil {
		return errors.Wrap(err, "modem: bring-up")
	}

	steps := []struct {
		cmd     string
		timeout time.Duration
	}{
		{"AT", d.timeouts.Ping},
		{"ATE0", d.timeouts.DisableEcho},
		{"AT+CWAUTOCONN=0", d.timeouts.ManualConnect},
		{"AT+CIPMODE=0", d.timeouts.TransferMode},
	}
	for _, st := range steps {
		if err := d.standardCmd(ctx, st.cmd, st.timeout); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()
	return nil
}

// Deinit marks the driver uninitialized and parks the GPIOs low, per
// §4.E. It does not close the underlying transport; the caller owns that.
//
// It also reports the accumulated invalid-byte and outbound-segment
// diagnostic counts, mirroring the C source's compile-time-optional
// invalid_count/error_count reporting at shutdown (§4.B, §12) — here
// carried unconditionally since logging it costs nothing in a hosted port.
func (d *Driver) Deinit() {
	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
	if d.resetter != nil {
		d.resetter.SetEnable(false)
		d.resetter.SetReset(false)
		d.resetter.SetBootMode(false)
	}
	d.logf("modem: deinit: invalid_count=%d segment_count=%d",
		d.machine.InvalidCount(), d.machine.SegmentCount())
}

// IsInit reports whether Init has completed successfully and Deinit has
// not since been called.
func (d *Driver) IsInit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

func (d *Driver) checkInit() error {
	if !d.IsInit() {
		return ErrNotInitialized
	}
	return nil
}

// GetVersion issues AT+GMR and returns the packed AT and SDK version words
// the receive state machine decoded as a side effect of parsing the
// response, per §4.D's get_version row.
func (d *Driver) GetVersion(ctx context.Context) (atVersion, sdkVersion uint32, err error) {
	if err = d.checkInit(); err != nil {
		return 0, 0, err
	}
	err = d.standardCmd(ctx, "AT+GMR", d.timeouts.GetVersion)
	if err != nil {
		return 0, 0, err
	}
	atVersion, sdkVersion = d.machine.Versions()
	return atVersion, sdkVersion, nil
}

// IsNetworkConnected reports whether the modem has both associated with an
// access point and obtained an IP address.
func (d *Driver) IsNetworkConnected() bool {
	status := d.machine.Status()
	return status.WifiAssociated && status.WifiHasIP
}

// IsServerConnected reports whether a TCP connection is currently open.
func (d *Driver) IsServerConnected() bool {
	return d.machine.Status().TCPOpen
}

// Status returns the raw link-status snapshot, for callers (such as
// metrics.Collector) that need the three booleans individually rather than
// IsNetworkConnected/IsServerConnected's combined view.
func (d *Driver) Status() atproto.LinkStatus {
	return d.machine.Status()
}

// SegmentCount returns the diagnostic count of outbound segments sent but
// not yet settled by a trailing SEND OK, per §3.
func (d *Driver) SegmentCount() int {
	return d.machine.SegmentCount()
}

// InvalidCount returns the diagnostic count of bytes the receive state
// machine has discarded as unrecognised since construction or the last
// Init (which resets the machine), per §4.B.
func (d *Driver) InvalidCount() uint64 {
	return d.machine.InvalidCount()
}

// connectionFailMask is the fail set for network_connect's later waits,
// per §4.D. AlreadyConnected belongs here only: the C source's
// tcp_connect_c wait (RLM3_WIFI_ServerConnect) omits
// COMMAND_ALREADY_CONNECTED from its fail set, so server_connect must not
// reuse this mask.
const connectionFailMask = atproto.ConnectionTimeout | atproto.ConnectionWrongPassword |
	atproto.ConnectionMissingAP | atproto.ConnectionFailed | atproto.AlreadyConnected | atproto.WifiDisconnect

// serverConnectFailMask is the fail set for server_connect's wait, per
// §4.D: the same connection-failure reasons as connectionFailMask, minus
// AlreadyConnected, plus Closed and DnsFail.
const serverConnectFailMask = atproto.ConnectionTimeout | atproto.ConnectionWrongPassword |
	atproto.ConnectionMissingAP | atproto.ConnectionFailed | atproto.WifiDisconnect |
	atproto.Closed | atproto.DnsFail

// NetworkConnect joins ssid with pwd. It first disconnects to normalize
// state (§4.D's re-entrancy rule), then waits for OK, WifiConnected and
// WifiGotIP in sequence within a single command bracket.
func (d *Driver) NetworkConnect(ctx context.Context, ssid, pwd string) error {
	if err := d.checkInit(); err != nil {
		return err
	}
	_ = d.NetworkDisconnect(ctx)

	cmd := fmt.Sprintf(`AT+CWJAP_CUR="%s","%s"`, ssid, pwd)
	return d.session(func(s *cmdSession) error {
		if err := s.step(ctx, atproto.Segments(cmd, "\r\n"), d.timeouts.NetworkConnect, atproto.OK, atproto.Error|atproto.Fail); err != nil {
			return err
		}
		if err := s.d.classify(s.wait(ctx, d.timeouts.NetworkConnect, atproto.WifiConnected, connectionFailMask)); err != nil {
			return err
		}
		return s.d.classify(s.wait(ctx, d.timeouts.NetworkConnect, atproto.WifiGotIP, connectionFailMask))
	})
}

// NetworkDisconnect leaves the current access point, if associated. A no-op
// returning nil when the modem is not currently associated, matching the
// firmware's "only if associated" guard.
func (d *Driver) NetworkDisconnect(ctx context.Context) error {
	if err := d.checkInit(); err != nil {
		return err
	}
	if !d.machine.Status().WifiAssociated {
		return nil
	}
	return d.session(func(s *cmdSession) error {
		if err := s.step(ctx, atproto.Segments("AT+CWQAP", "\r\n"), d.timeouts.NetworkDisconnect, atproto.OK, atproto.Error|atproto.Fail); err != nil {
			return err
		}
		s.wait(ctx, d.timeouts.NetworkDisconnect, atproto.WifiDisconnect, 0)
		return nil
	})
}

// ServerConnect opens a TCP connection to host:port.
func (d *Driver) ServerConnect(ctx context.Context, host, port string) error {
	if err := d.checkInit(); err != nil {
		return err
	}
	if err := d.ServerDisconnect(ctx); err != nil && err != ErrNotConnected {
		return err
	}

	cmd := fmt.Sprintf(`AT+CIPSTART="TCP","%s",%s`, host, port)
	return d.session(func(s *cmdSession) error {
		if err := s.step(ctx, atproto.Segments(cmd, "\r\n"), d.timeouts.ServerConnect, atproto.OK, atproto.Error|atproto.Fail); err != nil {
			return err
		}
		return s.d.classify(s.wait(ctx, d.timeouts.ServerConnect, atproto.Connect, serverConnectFailMask))
	})
}

// ServerDisconnect closes the current TCP connection, if one is open.
func (d *Driver) ServerDisconnect(ctx context.Context) error {
	if err := d.checkInit(); err != nil {
		return err
	}
	if !d.machine.Status().TCPOpen {
		return ErrNotConnected
	}
	return d.session(func(s *cmdSession) error {
		if err := s.step(ctx, atproto.Segments("AT+CIPCLOSE", "\r\n"), d.timeouts.ServerDisconnect, atproto.OK, atproto.Error|atproto.Fail); err != nil {
			return err
		}
		s.wait(ctx, d.timeouts.ServerDisconnect, atproto.Closed, 0)
		return nil
	})
}

// Transmit sends data, 1 to 1024 bytes, over the open TCP connection.
// Out-of-range sizes return ErrOutOfRange without touching the modem,
// per §7's local sequencing error handling.
func (d *Driver) Transmit(ctx context.Context, data []byte) error {
	if err := d.checkInit(); err != nil {
		return err
	}
	if len(data) < 1 || len(data) > 1024 {
		return ErrOutOfRange
	}

	cmd := fmt.Sprintf("AT+CIPSEND=%d", len(data))
	return d.session(func(s *cmdSession) error {
		if err := s.step(ctx, atproto.Segments(cmd, "\r\n"), d.timeouts.Transmit, atproto.OK, atproto.Error|atproto.Fail); err != nil {
			return err
		}
		if err := s.d.classify(s.wait(ctx, d.timeouts.Transmit, atproto.GoAhead, atproto.Error|atproto.Fail)); err != nil {
			return err
		}
		if err := s.submit(atproto.Binary(data)); err != nil {
			return err
		}
		if err := s.d.classify(s.wait(ctx, d.timeouts.Transmit, atproto.BytesReceived, atproto.Error|atproto.Fail)); err != nil {
			return err
		}
		return s.d.classify(s.wait(ctx, d.timeouts.Transmit, atproto.SendOK, atproto.Error|atproto.Fail|atproto.SendFail))
	})
}
