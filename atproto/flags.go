// Package atproto implements the AT-protocol engine for an ESP8266-style
// WiFi modem: a byte-at-a-time receive parser and the sticky event latch
// that a command coordinator waits on.
//
// Machine.OnByte is written to be driven from a single goroutine standing
// in for the interrupt context this engine was ported from: it must be
// called once per received byte, never re-entered, and it never blocks or
// allocates on its hot path.
package atproto

import "strings"

// Flag is a sticky event bit latched by the receive state machine and
// observed by a command coordinator's Wait call.
type Flag uint32

// The complete set of events the receive state machine can latch. Several
// are mutually exclusive outcomes of the same command (OK vs. Error vs.
// Fail); others report asynchronous modem state changes that can interleave
// with any in-flight command (WifiDisconnect, Closed).
const (
	OK Flag = 1 << iota
	Error
	Fail
	ConnectionTimeout
	ConnectionWrongPassword
	ConnectionMissingAP
	ConnectionFailed
	SendOK
	SendFail
	GoAhead
	AlreadyConnected
	WifiConnected
	WifiDisconnect
	WifiGotIP
	Closed
	Connect
	BytesReceived
	DnsFail
)

// connectionFailureReason decodes the single digit following "+CWJAP:"
// into the corresponding flag. Any value outside 1-4 falls back to
// ConnectionTimeout; whether that fallback is intentional or merely
// defensive in the firmware this engine mirrors is unresolved (DESIGN.md).
func connectionFailureReason(digit byte) Flag {
	switch digit {
	case '1':
		return ConnectionTimeout
	case '2':
		return ConnectionWrongPassword
	case '3':
		return ConnectionMissingAP
	case '4':
		return ConnectionFailed
	default:
		return ConnectionTimeout
	}
}

// names pairs each flag with a label for logging and test failure messages.
var names = []struct {
	f Flag
	s string
}{
	{OK, "OK"},
	{Error, "ERROR"},
	{Fail, "FAIL"},
	{ConnectionTimeout, "ConnectionTimeout"},
	{ConnectionWrongPassword, "ConnectionWrongPassword"},
	{ConnectionMissingAP, "ConnectionMissingAP"},
	{ConnectionFailed, "ConnectionFailed"},
	{SendOK, "SendOK"},
	{SendFail, "SendFail"},
	{GoAhead, "GoAhead"},
	{AlreadyConnected, "AlreadyConnected"},
	{WifiConnected, "WifiConnected"},
	{WifiDisconnect, "WifiDisconnect"},
	{WifiGotIP, "WifiGotIP"},
	{Closed, "Closed"},
	{Connect, "Connect"},
	{BytesReceived, "BytesReceived"},
	{DnsFail, "DnsFail"},
}

// String renders the set bits of f as a "|" joined list, e.g. "OK|Connect".
func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range names {
		if f&n.f != 0 {
			parts = append(parts, n.s)
		}
	}
	return strings.Join(parts, "|")
}
