// Package metrics exposes a modem.Driver's link status and diagnostic
// counters as Prometheus gauges, for the "used only diagnostically"
// counters named in §3 and §4.B.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simplerobot/rlm3wifi/modem"
)

// Collector is a prometheus.Collector over a single modem.Driver. Unlike a
// typical Collector it holds no mutable state of its own: every Collect
// call reads straight through to the driver's own synchronized accessors,
// so there is nothing here to race against.
type Collector struct {
	driver *modem.Driver

	initialized    *prometheus.Desc
	wifiAssociated *prometheus.Desc
	wifiHasIP      *prometheus.Desc
	tcpOpen        *prometheus.Desc
	segmentCount   *prometheus.Desc
	invalidCount   *prometheus.Desc
}

// NewCollector builds a Collector over driver. constLabels attaches to
// every metric this Collector exports, e.g. a modem instance or device
// path label when more than one Driver shares a registry.
func NewCollector(driver *modem.Driver, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("rlm3wifi_"+name, help, nil, constLabels)
	}
	return &Collector{
		driver:         driver,
		initialized:    desc("initialized", "1 if the driver has completed Init and not since Deinit."),
		wifiAssociated: desc("wifi_associated", "1 if the modem is associated with an access point."),
		wifiHasIP:      desc("wifi_has_ip", "1 if the modem has obtained an IP address."),
		tcpOpen:        desc("tcp_open", "1 if a TCP connection to the server is currently open."),
		segmentCount:   desc("segment_count", "Outbound segments sent but not yet settled by SEND OK."),
		invalidCount:   desc("invalid_bytes_total", "Bytes discarded by the receive state machine as unrecognised."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.initialized
	descs <- c.wifiAssociated
	descs <- c.wifiHasIP
	descs <- c.tcpOpen
	descs <- c.segmentCount
	descs <- c.invalidCount
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	status := c.driver.Status()
	metrics <- prometheus.MustNewConstMetric(c.initialized, prometheus.GaugeValue, boolValue(c.driver.IsInit()))
	metrics <- prometheus.MustNewConstMetric(c.wifiAssociated, prometheus.GaugeValue, boolValue(status.WifiAssociated))
	metrics <- prometheus.MustNewConstMetric(c.wifiHasIP, prometheus.GaugeValue, boolValue(status.WifiHasIP))
	metrics <- prometheus.MustNewConstMetric(c.tcpOpen, prometheus.GaugeValue, boolValue(status.TCPOpen))
	metrics <- prometheus.MustNewConstMetric(c.segmentCount, prometheus.GaugeValue, float64(c.driver.SegmentCount()))
	metrics <- prometheus.MustNewConstMetric(c.invalidCount, prometheus.GaugeValue, float64(c.driver.InvalidCount()))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
