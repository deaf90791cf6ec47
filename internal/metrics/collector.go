// Package metrics exposes node state (C5) as a Prometheus collector,
// grounded on the Describe/Collect shape the teacher's exporter package
// uses for its own TCPInfoCollector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
)

// Collector adapts a node.State and output.Worker pair into Prometheus
// metrics: it holds no state of its own, reading both on every Collect.
type Collector struct {
	state  *node.State
	worker *output.Worker

	adopted          *prometheus.Desc
	uptimeSeconds    *prometheus.Desc
	badCRC           *prometheus.Desc
	framesNoMem      *prometheus.Desc
	framesNotAdopted *prometheus.Desc
	syncDropped      *prometheus.Desc
	fbCapacityBytes  *prometheus.Desc
	fbFreeBytes      *prometheus.Desc
}

// New builds a Collector over state and worker, labeling every metric
// with instance=<state.InstanceID>, constLabels for anything that never
// varies per scrape.
func New(state *node.State, worker *output.Worker, constLabels prometheus.Labels) *Collector {
	labels := prometheus.Labels{"instance": state.InstanceID.String()}
	for k, v := range constLabels {
		labels[k] = v
	}

	ns := "lichtenstein_client"
	return &Collector{
		state:  state,
		worker: worker,

		adopted:          prometheus.NewDesc(ns+"_adopted", "Whether the node is currently adopted by a controller (1) or not (0).", nil, labels),
		uptimeSeconds:    prometheus.NewDesc(ns+"_uptime_seconds", "Seconds since the client process started.", nil, labels),
		badCRC:           prometheus.NewDesc(ns+"_bad_crc_total", "Datagrams dropped for failing checksum verification.", nil, labels),
		framesNoMem:      prometheus.NewDesc(ns+"_frames_dropped_no_mem_total", "Frames nacked for lack of framebuffer memory or a peripheral I/O error.", nil, labels),
		framesNotAdopted: prometheus.NewDesc(ns+"_frames_dropped_not_adopted_total", "Frames nacked because the node was not adopted.", nil, labels),
		syncDropped:      prometheus.NewDesc(ns+"_sync_dropped_total", "Sync-output commands nacked or dropped.", nil, labels),
		fbCapacityBytes:  prometheus.NewDesc(ns+"_framebuffer_capacity_bytes", "Total peripheral framebuffer capacity.", nil, labels),
		fbFreeBytes:      prometheus.NewDesc(ns+"_framebuffer_free_bytes", "Free peripheral framebuffer bytes.", nil, labels),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.adopted
	descs <- c.uptimeSeconds
	descs <- c.badCRC
	descs <- c.framesNoMem
	descs <- c.framesNotAdopted
	descs <- c.syncDropped
	descs <- c.fbCapacityBytes
	descs <- c.fbFreeBytes
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	counters := c.state.Snapshot()
	stats := c.worker.Stats()

	adoptedVal := 0.0
	if c.state.Adopted() {
		adoptedVal = 1.0
	}

	metrics <- prometheus.MustNewConstMetric(c.adopted, prometheus.GaugeValue, adoptedVal)
	metrics <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.GaugeValue, c.state.Uptime().Seconds())
	metrics <- prometheus.MustNewConstMetric(c.badCRC, prometheus.CounterValue, float64(counters.BadCRC))
	metrics <- prometheus.MustNewConstMetric(c.framesNoMem, prometheus.CounterValue, float64(counters.FramesDroppedNoMem))
	metrics <- prometheus.MustNewConstMetric(c.framesNotAdopted, prometheus.CounterValue, float64(counters.FramesDroppedNotAdopted))
	metrics <- prometheus.MustNewConstMetric(c.syncDropped, prometheus.CounterValue, float64(counters.SyncDropped))
	metrics <- prometheus.MustNewConstMetric(c.fbCapacityBytes, prometheus.GaugeValue, float64(stats.Capacity))
	metrics <- prometheus.MustNewConstMetric(c.fbFreeBytes, prometheus.GaugeValue, float64(stats.FreeBytes))
}
