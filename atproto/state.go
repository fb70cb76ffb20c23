package atproto

import "sync"

// state is the receive FSM's current position. It is a closed tagged
// enumeration: every named state corresponds to a prefix of one recognised
// modem utterance, matched a byte at a time against State.
type state int

const (
	stateInitial state = iota
	stateInvalid
	stateEnd
	stateIgnoreNextLine
	stateReadData

	stateA
	stateAlreadySpaceConnect
	stateAT
	stateATSpaceVersionColonNN
	stateBusySpace
	stateBusySpacePDotDotDot
	stateBusySpaceSDotDotDot
	stateC
	stateClosed
	stateConnect
	stateDNSSpaceFail
	stateError
	stateFail
	stateNN
	stateNNCommaSendSpaceOK
	stateNoSpaceIP
	stateOK
	statePlus
	statePlusC
	statePlusCWJAPColon
	statePlusIPDCommaNN
	stateRecvSpaceNN
	stateRecvSpaceNNSpaceBytes
	stateS
	stateSDKSpaceVersionColonNN
	stateSendSpace
	stateSendSpaceFail
	stateSendSpaceOK
	stateWifiSpace
	stateWifiSpaceConnected
	stateWifiSpaceDisconnect
	stateWifiSpaceGotSpaceIP
)

const invalidBufferSize = 32

// Machine is the receive state machine plus the link-status snapshot and
// version accumulators it updates as it classifies modem utterances.
// The zero value is not usable; construct with NewMachine.
type Machine struct {
	// mu guards the fields Status, Versions, SegmentCount and InvalidCount
	// publish to the client task. OnByte (plus Reset, between commands) is
	// the writer and is never called concurrently with itself; the lock
	// exists only to give the client task's reads a defined happens-before
	// relationship with the byte-processing goroutine, since Go (unlike
	// the architecture this machine was ported from) makes no promise
	// about unsynchronized word-sized reads and writes.
	mu sync.Mutex

	state    state
	expected string // remaining bytes of a literal token yet to be matched

	receiveLength int
	subVersion    uint32
	atVersion     uint32
	sdkVersion    uint32

	wifiAssociated bool
	wifiHasIP      bool
	tcpOpen        bool
	segmentCount   int

	latch *EventLatch
	sink  func(byte)

	invalidBuf    [invalidBufferSize]byte
	invalidLen    int
	invalidCount  uint64
	onInvalidLine func(line []byte)
}

// NewMachine creates a receive state machine that latches events on latch
// and forwards ReadData payload bytes to sink (sink may be nil, in which
// case inbound TCP data is discarded).
func NewMachine(latch *EventLatch, sink func(byte)) *Machine {
	return &Machine{latch: latch, sink: sink, state: stateInitial}
}

// OnInvalidLine installs a hook invoked once per recovered desync run, with
// the raw bytes that could not be classified; a run longer than 32 bytes is
// delivered in 32-byte pieces as the buffer fills. Used only for diagnostics;
// never required for correctness.
func (m *Machine) OnInvalidLine(fn func(line []byte)) {
	m.onInvalidLine = fn
}

// Reset returns the machine to its power-on state, as done by Driver.Init
// before a fresh bring-up sequence.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateInitial
	m.expected = ""
	m.receiveLength = 0
	m.subVersion = 0
	m.atVersion = 0
	m.sdkVersion = 0
	m.wifiAssociated = false
	m.wifiHasIP = false
	m.tcpOpen = false
	m.segmentCount = 0
	m.invalidLen = 0
	m.invalidCount = 0
}

// LinkStatus is the snapshot of §3's three link-status booleans.
type LinkStatus struct {
	WifiAssociated bool
	WifiHasIP      bool
	TCPOpen        bool
}

// Status returns the current link-status snapshot. Safe to call from the
// client task while OnByte runs in the simulated ISR context, since all
// three fields are updated together under the same "ISR is sole writer"
// discipline OnByte observes.
func (m *Machine) Status() LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LinkStatus{
		WifiAssociated: m.wifiAssociated,
		WifiHasIP:      m.wifiHasIP,
		TCPOpen:        m.tcpOpen,
	}
}

// SegmentCount returns the diagnostic count of outbound segments the modem
// has acknowledged as sent but not yet settled by a trailing "<n>,SEND OK".
func (m *Machine) SegmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.segmentCount
}

// Versions returns the packed AT and SDK version numbers last decoded from
// an "AT+GMR" response.
func (m *Machine) Versions() (at, sdk uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atVersion, m.sdkVersion
}

// InvalidCount returns the number of bytes that have landed in the invalid
// state since the machine was constructed or last Reset (diagnostic only).
func (m *Machine) InvalidCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidCount
}

func (m *Machine) notify(f Flag) {
	if m.latch != nil {
		m.latch.Latch(f)
	}
}

// OnByte consumes one byte received from the modem. It must be called
// exactly once per byte, from the single context that owns the UART's
// receive path, and must never be re-entered. The receive sink, if
// installed, is invoked synchronously from within OnByte and must not call
// back into the Machine.
func (m *Machine) OnByte(x byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Regime 1: a literal expectation is outstanding; every byte is
	// matched against it and FSM dispatch is suppressed until it resolves.
	if m.expected != "" {
		expected := m.expected[0]
		if x != expected {
			m.expected = ""
			m.transition(stateInvalid, x)
			return
		}
		m.expected = m.expected[1:]
		return
	}

	// Regime 2: bulk data forwarding for +IPD payloads.
	if m.state == stateReadData {
		if m.sink != nil {
			m.sink(x)
		}
		m.receiveLength--
		if m.receiveLength == 0 {
			m.transition(stateInitial, x)
		} else {
			m.transition(stateReadData, x)
		}
		return
	}

	// Regime 3: FSM dispatch.
	next := m.dispatch(x)
	m.transition(next, x)
}

// transition records the invalid-byte ring buffer bookkeeping and commits
// the next state. Kept separate from dispatch so every path through OnByte
// — including the two regimes that bypass dispatch — shares the same
// recovery accounting.
func (m *Machine) transition(next state, x byte) {
	if next == stateInvalid {
		m.invalidCount++
		if m.invalidLen == len(m.invalidBuf) {
			if m.onInvalidLine != nil {
				m.onInvalidLine(append([]byte(nil), m.invalidBuf[:m.invalidLen]...))
			}
			m.invalidLen = 0
		}
		m.invalidBuf[m.invalidLen] = x
		m.invalidLen++
	} else if m.invalidLen > 0 {
		if m.onInvalidLine != nil {
			m.onInvalidLine(append([]byte(nil), m.invalidBuf[:m.invalidLen]...))
		}
		m.invalidLen = 0
	}
	m.state = next
}

// dispatch implements regime 3: the FSM's per-state byte classification.
// Each case mirrors one row of the transition table in the design this
// engine ports; side effects (latching flags, updating link status,
// installing the next literal expectation) happen inline, exactly where
// the terminating byte is recognised.
func (m *Machine) dispatch(x byte) state {
	switch m.state {
	case stateInvalid:
		if x == '\r' || x == '\n' {
			return stateInitial
		}
		return stateInvalid

	case stateEnd:
		if x == '\n' {
			return stateInitial
		}
		return stateEnd

	case stateIgnoreNextLine:
		if x == '\n' {
			return stateEnd
		}
		return stateIgnoreNextLine

	case stateInitial:
		switch {
		case x == ' ' || x == '\r' || x == '\n' || x == 0xFE || x == 0xFF:
			return stateInitial
		case x == '+':
			return statePlus
		case x == '>':
			m.notify(GoAhead)
			return stateInitial
		case x == 'A':
			return stateA
		case x == 'B':
			m.expected = "in version"
			return stateEnd
		case x == 'b':
			m.expected = "usy "
			return stateBusySpace
		case x == 'c':
			m.expected = "ompile time"
			return stateEnd
		case x == 'C':
			return stateC
		case x == 'D':
			m.expected = "NS Fail"
			return stateDNSSpaceFail
		case x == 'E':
			m.expected = "RROR"
			return stateError
		case x == 'F':
			m.expected = "AIL"
			return stateFail
		case x == 'n':
			m.expected = "o ip"
			return stateNoSpaceIP
		case x == 'O':
			m.expected = "K"
			return stateOK
		case x == 'R':
			m.expected = "ecv "
			return stateRecvSpaceNN
		case x == 'S':
			return stateS
		case x == 'W':
			m.expected = "IFI "
			return stateWifiSpace
		case x >= '0' && x <= '9':
			return stateNN
		}
		return stateInvalid

	case statePlus:
		switch x {
		case 'I':
			m.expected = "PD,"
			m.receiveLength = 0
			return statePlusIPDCommaNN
		case 'C':
			return statePlusC
		}
		return stateInvalid

	case stateA:
		switch x {
		case 'T':
			return stateAT
		case 'L':
			m.expected = "READY CONNECT"
			return stateAlreadySpaceConnect
		case 'i':
			m.expected = "-Thinker"
			return stateIgnoreNextLine
		}
		return stateInvalid

	case stateAT:
		if x == ' ' {
			m.expected = "version:"
			m.atVersion = 0
			m.subVersion = 0
			return stateATSpaceVersionColonNN
		}
		return stateEnd

	case stateATSpaceVersionColonNN:
		return m.versionDigit(x, &m.atVersion)

	case stateAlreadySpaceConnect:
		if x == '\r' {
			m.notify(AlreadyConnected)
			return stateEnd
		}
		return stateInvalid

	case stateBusySpace:
		switch x {
		case 's':
			m.expected = "..."
			return stateBusySpaceSDotDotDot
		case 'p':
			m.expected = "..."
			return stateBusySpacePDotDotDot
		}
		return stateInvalid

	case stateBusySpaceSDotDotDot:
		if x == '\r' {
			return stateEnd
		}
		return stateInvalid

	case stateBusySpacePDotDotDot:
		if x == '\r' {
			return stateEnd
		}
		return stateInvalid

	case stateC:
		switch x {
		case 'L':
			m.expected = "OSED"
			return stateClosed
		case 'O':
			m.expected = "NNECT"
			return stateConnect
		}
		return stateInvalid

	case stateClosed:
		if x == '\r' {
			m.tcpOpen = false
			m.notify(Closed)
			return stateEnd
		}
		return stateInvalid

	case stateConnect:
		if x == '\r' {
			m.tcpOpen = true
			m.notify(Connect)
			return stateEnd
		}
		return stateInvalid

	case stateDNSSpaceFail:
		if x == '\r' {
			m.notify(DnsFail)
			return stateEnd
		}
		return stateInvalid

	case stateError:
		if x == '\r' {
			m.notify(Error)
			return stateEnd
		}
		return stateInvalid

	case stateFail:
		if x == '\r' {
			m.notify(Fail)
			return stateEnd
		}
		return stateInvalid

	case stateNoSpaceIP:
		if x == '\r' {
			m.wifiHasIP = false
			m.tcpOpen = false
			return stateEnd
		}
		return stateInvalid

	case stateOK:
		if x == '\r' {
			m.notify(OK)
			return stateEnd
		}
		return stateInvalid

	case stateRecvSpaceNN:
		switch {
		case x >= '0' && x <= '9':
			return stateRecvSpaceNN
		case x == ' ':
			m.expected = "bytes"
			return stateRecvSpaceNNSpaceBytes
		}
		return stateInvalid

	case stateRecvSpaceNNSpaceBytes:
		if x == '\r' {
			m.segmentCount++
			m.notify(BytesReceived)
			return stateEnd
		}
		return stateInvalid

	case stateS:
		switch x {
		case 'E':
			m.expected = "ND "
			return stateSendSpace
		case 'D':
			m.expected = "K version:"
			m.sdkVersion = 0
			m.subVersion = 0
			return stateSDKSpaceVersionColonNN
		case 'T':
			m.expected = "ATUS:"
			return stateEnd
		}
		return stateInvalid

	case stateSendSpace:
		switch x {
		case 'O':
			m.expected = "K"
			return stateSendSpaceOK
		case 'F':
			m.expected = "AIL"
			return stateSendSpaceFail
		}
		return stateInvalid

	case stateSendSpaceOK:
		if x == '\r' {
			m.notify(SendOK)
			return stateEnd
		}
		return stateInvalid

	case stateSendSpaceFail:
		if x == '\r' {
			m.notify(SendFail)
			return stateEnd
		}
		return stateInvalid

	case stateSDKSpaceVersionColonNN:
		return m.versionDigit(x, &m.sdkVersion)

	case statePlusIPDCommaNN:
		switch {
		case x >= '0' && x <= '9':
			m.receiveLength = 10*m.receiveLength + int(x-'0')
			return statePlusIPDCommaNN
		case x == ':':
			return stateReadData
		}
		return stateInvalid

	case statePlusC:
		switch x {
		case 'I':
			return stateEnd
		case 'W':
			m.expected = "JAP:"
			return statePlusCWJAPColon
		}
		return stateInvalid

	case statePlusCWJAPColon:
		m.notify(connectionFailureReason(x))
		return stateEnd

	case stateWifiSpace:
		switch x {
		case 'C':
			m.expected = "ONNECTED"
			return stateWifiSpaceConnected
		case 'D':
			m.expected = "ISCONNECT"
			return stateWifiSpaceDisconnect
		case 'G':
			m.expected = "OT IP"
			return stateWifiSpaceGotSpaceIP
		}
		return stateInvalid

	case stateWifiSpaceConnected:
		if x == '\r' {
			m.wifiAssociated = true
			m.notify(WifiConnected)
			return stateEnd
		}
		return stateInvalid

	case stateWifiSpaceDisconnect:
		if x == '\r' {
			m.wifiAssociated = false
			m.wifiHasIP = false
			m.tcpOpen = false
			m.notify(WifiDisconnect)
			return stateEnd
		}
		return stateInvalid

	case stateWifiSpaceGotSpaceIP:
		if x == '\r' {
			m.wifiHasIP = true
			m.notify(WifiGotIP)
			return stateEnd
		}
		return stateInvalid

	case stateNN:
		switch {
		case x >= '0' && x <= '9':
			return stateNN
		case x == ',':
			m.expected = "SEND OK"
			return stateNNCommaSendSpaceOK
		}
		return stateInvalid

	case stateNNCommaSendSpaceOK:
		if x == '\r' {
			m.segmentCount--
			return stateEnd
		}
		return stateInvalid
	}

	return stateInvalid
}

// versionDigit implements the shared digit-run accumulator used by both the
// "AT version:" and "SDK version:" sub-states: each dotted component is
// summed in subVersion and, on a separator or terminator, shifted into the
// packed 32-bit accumulator eight bits at a time.
func (m *Machine) versionDigit(x byte, accumulator *uint32) state {
	switch {
	case x >= '0' && x <= '9':
		m.subVersion = 10*m.subVersion + uint32(x-'0')
		return m.state
	case x == 'v':
		return m.state
	case x == '.':
		*accumulator = (*accumulator << 8) | (m.subVersion & 0xFF)
		m.subVersion = 0
		return m.state
	case x == '(', x == '-', x == '\r':
		*accumulator = (*accumulator << 8) | (m.subVersion & 0xFF)
		m.subVersion = 0
		return stateEnd
	}
	return stateInvalid
}
