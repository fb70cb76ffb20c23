package metrics_test

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplerobot/rlm3wifi/metrics"
	"github.com/simplerobot/rlm3wifi/modem"
)

// loopbackModem answers every write with nothing; its Read blocks until
// fed, which is all the Collector tests need since they never call Init.
type loopbackModem struct {
	r chan []byte
}

func (m *loopbackModem) Read(p []byte) (int, error) {
	data := <-m.r
	return copy(p, data), nil
}

func (m *loopbackModem) Write(p []byte) (int, error) {
	return len(p), nil
}

func TestCollector_UninitializedGauges(t *testing.T) {
	mm := &loopbackModem{r: make(chan []byte)}
	d := modem.New(mm)
	c := metrics.NewCollector(d, nil)

	require.NoError(t, testutil.CollectAndCompare(c, bytes.NewBufferString(`
# HELP rlm3wifi_initialized 1 if the driver has completed Init and not since Deinit.
# TYPE rlm3wifi_initialized gauge
rlm3wifi_initialized 0
# HELP rlm3wifi_invalid_bytes_total Bytes discarded by the receive state machine as unrecognised.
# TYPE rlm3wifi_invalid_bytes_total gauge
rlm3wifi_invalid_bytes_total 0
# HELP rlm3wifi_segment_count Outbound segments sent but not yet settled by SEND OK.
# TYPE rlm3wifi_segment_count gauge
rlm3wifi_segment_count 0
# HELP rlm3wifi_tcp_open 1 if a TCP connection to the server is currently open.
# TYPE rlm3wifi_tcp_open gauge
rlm3wifi_tcp_open 0
# HELP rlm3wifi_wifi_associated 1 if the modem is associated with an access point.
# TYPE rlm3wifi_wifi_associated gauge
rlm3wifi_wifi_associated 0
# HELP rlm3wifi_wifi_has_ip 1 if the modem has obtained an IP address.
# TYPE rlm3wifi_wifi_has_ip gauge
rlm3wifi_wifi_has_ip 0
`)))
}

func TestCollector_ConstLabels(t *testing.T) {
	mm := &loopbackModem{r: make(chan []byte)}
	d := modem.New(mm)
	c := metrics.NewCollector(d, prometheus.Labels{"device": "/dev/ttyUSB0"})

	count := testutil.CollectAndCount(c)
	assert.Equal(t, 6, count)
}
