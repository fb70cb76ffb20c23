package atproto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplerobot/rlm3wifi/atproto"
)

func drainAll(p *atproto.TxPump) []byte {
	var out []byte
	for {
		b, ok := p.NextByte()
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

func TestTxPump_Segments(t *testing.T) {
	p := atproto.NewTxPump()
	done := p.Submit(atproto.Segments("AT", "\r\n"))
	out := drainAll(p)
	assert.Equal(t, []byte("AT\r\n"), out)
	select {
	case <-done:
	default:
		t.Fatal("done channel not closed after draining segments")
	}
}

func TestTxPump_Binary(t *testing.T) {
	p := atproto.NewTxPump()
	payload := []byte{0x01, 0x02, 0x03}
	done := p.Submit(atproto.Binary(payload))
	out := drainAll(p)
	assert.Equal(t, payload, out)
	select {
	case <-done:
	default:
		t.Fatal("done channel not closed after draining binary payload")
	}
}

func TestTxPump_CompletesOnFinalByteCallback(t *testing.T) {
	p := atproto.NewTxPump()
	done := p.Submit(atproto.Segments("AB"))

	b, ok := p.NextByte()
	assert.True(t, ok)
	assert.Equal(t, byte('A'), b)
	select {
	case <-done:
		t.Fatal("done closed before final byte was sent")
	default:
	}

	b, ok = p.NextByte()
	assert.True(t, ok)
	assert.Equal(t, byte('B'), b)
	select {
	case <-done:
	default:
		t.Fatal("done not closed in the same call that returned the final byte")
	}

	_, ok = p.NextByte()
	assert.False(t, ok)
}

func TestTxPump_EmptySegmentsSkipped(t *testing.T) {
	p := atproto.NewTxPump()
	p.Submit(atproto.Segments("", "A", "", "B", ""))
	out := drainAll(p)
	assert.Equal(t, []byte("AB"), out)
}

func TestTxPump_AllEmptySegmentsDrainsImmediately(t *testing.T) {
	p := atproto.NewTxPump()
	done := p.Submit(atproto.Segments("", ""))
	_, ok := p.NextByte()
	assert.False(t, ok)
	select {
	case <-done:
	default:
		t.Fatal("done not closed for an all-empty job")
	}
}

func TestTxPump_EmptyBinaryDrainsImmediately(t *testing.T) {
	p := atproto.NewTxPump()
	done := p.Submit(atproto.Binary(nil))
	_, ok := p.NextByte()
	assert.False(t, ok)
	select {
	case <-done:
	default:
		t.Fatal("done not closed for an empty binary job")
	}
}

func TestTxPump_IdleReturnsNotOK(t *testing.T) {
	p := atproto.NewTxPump()
	_, ok := p.NextByte()
	assert.False(t, ok)
}

func TestTxPump_SecondSubmitReplacesJob(t *testing.T) {
	p := atproto.NewTxPump()
	firstDone := p.Submit(atproto.Segments("AT\r\n"))
	secondDone := p.Submit(atproto.Segments("AT+RST\r\n"))
	out := drainAll(p)
	assert.Equal(t, []byte("AT+RST\r\n"), out)
	select {
	case <-secondDone:
	default:
		t.Fatal("second job's done channel should close once drained")
	}
	_ = firstDone
}
