package atproto

import "sync"

// TxJob is an outbound job submitted to a TxPump: either a sequence of
// NUL-terminated command segments or a single counted binary buffer, never
// both. Constructed by the caller and owned by the pump until drained.
type TxJob struct {
	segments []string // segmented text mode; nil for counted binary mode
	binary   []byte   // counted binary mode; nil for segmented text mode

	segIdx  int
	byteIdx int
}

// Segments builds a job that sends each segment as-is, one after another,
// with no separator injected between them. Corresponds to §4.A's
// "segmented text" mode: the caller is responsible for including any
// literal "\r\n" as a trailing segment, matching the way rlm3-wifi.c always
// appends "\r\n" as the final element of its argument list.
func Segments(segments ...string) *TxJob {
	return &TxJob{segments: segments}
}

// Binary builds a job that sends exactly len(data) bytes verbatim.
// Corresponds to §4.A's "counted binary" mode, used to push the payload of
// a CIPSEND after the go-ahead prompt.
func Binary(data []byte) *TxJob {
	return &TxJob{binary: data}
}

// drained reports whether no bytes remain to be sent, without consuming
// them. Used right after a successful nextByte to detect, in the same
// callback that returns the final byte, that the job is now complete —
// matching the original firmware, which signals completion in the same
// transmit interrupt that sends the last byte rather than waiting for one
// more empty callback.
func (j *TxJob) drained() bool {
	if j.binary != nil {
		return j.byteIdx >= len(j.binary)
	}
	idx, bidx := j.segIdx, j.byteIdx
	for idx < len(j.segments) {
		if bidx < len(j.segments[idx]) {
			return false
		}
		idx++
		bidx = 0
	}
	return true
}

// nextByte returns the next outbound byte and whether one was available.
func (j *TxJob) nextByte() (byte, bool) {
	if j.binary != nil {
		if j.byteIdx >= len(j.binary) {
			return 0, false
		}
		b := j.binary[j.byteIdx]
		j.byteIdx++
		return b, true
	}
	for j.segIdx < len(j.segments) {
		seg := j.segments[j.segIdx]
		if j.byteIdx < len(seg) {
			b := seg[j.byteIdx]
			j.byteIdx++
			return b, true
		}
		j.segIdx++
		j.byteIdx = 0
	}
	return 0, false
}

// TxPump feeds outbound bytes to a UART one byte per callback, as described
// in §4.A. NextByte is the callback contract the UART driver invokes
// whenever it can accept another byte; it never blocks and never
// allocates.
type TxPump struct {
	mu   sync.Mutex
	job  *TxJob
	done chan struct{}
}

// NewTxPump creates an idle pump.
func NewTxPump() *TxPump {
	return &TxPump{}
}

// Submit installs job as the current outbound job and returns a channel
// that is closed once the job is fully drained. Calling Submit while a
// previous job is still outstanding replaces that job; the replaced job's
// done channel is never closed.
func (p *TxPump) Submit(job *TxJob) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.job = job
	p.done = make(chan struct{})
	return p.done
}

// NextByte is the UART transmit-callback contract: it returns the next
// outbound byte, or ok=false once the current job is drained (or no job is
// outstanding), signalling the UART to stop requesting bytes.
func (p *TxPump) NextByte() (b byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.job == nil {
		return 0, false
	}
	b, ok = p.job.nextByte()
	if !ok {
		p.finishLocked()
		return 0, false
	}
	if p.job.drained() {
		// The byte just returned was the job's last; signal completion now
		// so the waiting task can proceed without an extra empty callback.
		p.finishLocked()
	}
	return b, true
}

func (p *TxPump) finishLocked() {
	if p.job == nil {
		return
	}
	p.job = nil
	close(p.done)
	p.done = nil
}
