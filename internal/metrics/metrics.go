// Package metrics exposes the TFTP engine's runtime counters as
// Prometheus metrics, grounded on the collector pattern used by
// runZeroInc-conniver/sockstats's pkg/exporter package: a handful of
// prometheus.Desc values built once, populated from an Observer
// implementation wired into the dispatcher.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wjholden/tftpd/internal/tftp"
)

// Collector implements both prometheus.Collector and tftp.Observer: it
// is handed directly to tftp.NewServer as the Observer and registered
// with a prometheus.Registry to serve /metrics.
type Collector struct {
	mu sync.Mutex

	transfersStarted   map[tftp.Mode]uint64
	transfersCompleted uint64
	transfersTimedOut  uint64
	retransmissions    uint64
	bytesSent          uint64
	activeSessions     int

	descStarted     *prometheus.Desc
	descCompleted   *prometheus.Desc
	descTimedOut    *prometheus.Desc
	descRetransmits *prometheus.Desc
	descBytesSent   *prometheus.Desc
	descActive      *prometheus.Desc
}

// NewCollector builds a Collector with metric names under the
// "tftp_" prefix.
func NewCollector() *Collector {
	return &Collector{
		transfersStarted: make(map[tftp.Mode]uint64),
		descStarted: prometheus.NewDesc("tftp_transfers_started_total",
			"Read transfers started, by mode.", []string{"mode"}, nil),
		descCompleted: prometheus.NewDesc("tftp_transfers_completed_total",
			"Read transfers completed successfully.", nil, nil),
		descTimedOut: prometheus.NewDesc("tftp_transfers_timed_out_total",
			"Sessions evicted for inactivity.", nil, nil),
		descRetransmits: prometheus.NewDesc("tftp_retransmissions_total",
			"DATA packets resent due to a mismatched ACK or a duplicate first-block RRQ.", nil, nil),
		descBytesSent: prometheus.NewDesc("tftp_bytes_sent_total",
			"Total payload bytes written to the socket, including retransmissions.", nil, nil),
		descActive: prometheus.NewDesc("tftp_active_sessions",
			"Sessions currently in the session table.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.descStarted
	ch <- c.descCompleted
	ch <- c.descTimedOut
	ch <- c.descRetransmits
	ch <- c.descBytesSent
	ch <- c.descActive
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for mode, n := range c.transfersStarted {
		ch <- prometheus.MustNewConstMetric(c.descStarted, prometheus.CounterValue, float64(n), mode.String())
	}
	ch <- prometheus.MustNewConstMetric(c.descCompleted, prometheus.CounterValue, float64(c.transfersCompleted))
	ch <- prometheus.MustNewConstMetric(c.descTimedOut, prometheus.CounterValue, float64(c.transfersTimedOut))
	ch <- prometheus.MustNewConstMetric(c.descRetransmits, prometheus.CounterValue, float64(c.retransmissions))
	ch <- prometheus.MustNewConstMetric(c.descBytesSent, prometheus.CounterValue, float64(c.bytesSent))
	ch <- prometheus.MustNewConstMetric(c.descActive, prometheus.GaugeValue, float64(c.activeSessions))
}

// The following methods implement tftp.Observer.

func (c *Collector) TransferStarted(mode tftp.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfersStarted[mode]++
}

func (c *Collector) TransferCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfersCompleted++
}

func (c *Collector) TransferTimedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfersTimedOut++
}

func (c *Collector) Retransmission() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retransmissions++
}

func (c *Collector) BytesSent(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytesSent += uint64(n)
}

func (c *Collector) SessionCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeSessions = n
}

var _ tftp.Observer = (*Collector)(nil)
