// Package metrics exposes a logging engine's counters and queue state in
// Prometheus format, for hosts that want to scrape device-side log health.
package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flashlog/log"
)

// Collector implements prometheus.Collector over a live engine. It reads
// the engine's lock-free counters and queue getters at scrape time, so
// collection never touches the log pipeline itself.
type Collector struct {
	eng *log.Engine

	entries      *prometheus.Desc
	dropped      *prometheus.Desc
	rotations    *prometheus.Desc
	logLines     *prometheus.Desc
	queueFree    *prometheus.Desc
	queueWaiting *prometheus.Desc
}

// NewCollector builds a collector for eng. Register it with a
// prometheus.Registerer; one collector per engine instance.
func NewCollector(eng *log.Engine) *Collector {
	return &Collector{
		eng: eng,
		entries: prometheus.NewDesc(
			"flashlog_entries_total",
			"Log submissions by severity, counted before any filtering.",
			[]string{"level"}, nil,
		),
		dropped: prometheus.NewDesc(
			"flashlog_dropped_total",
			"Entries discarded because the queue stayed full under backpressure.",
			nil, nil,
		),
		rotations: prometheus.NewDesc(
			"flashlog_rotations_total",
			"Completed keep-latest log rotations.",
			nil, nil,
		),
		logLines: prometheus.NewDesc(
			"flashlog_file_lines",
			"Terminated records currently in the log file.",
			nil, nil,
		),
		queueFree: prometheus.NewDesc(
			"flashlog_queue_spaces_available",
			"Free slots in the bounded entry queue.",
			nil, nil,
		),
		queueWaiting: prometheus.NewDesc(
			"flashlog_queue_messages_waiting",
			"Entries buffered in the queue awaiting the consumer task.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.dropped
	ch <- c.rotations
	ch <- c.logLines
	ch <- c.queueFree
	ch <- c.queueWaiting
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for lv := log.VerboseLevel; lv <= log.FatalLevel; lv++ {
		ch <- prometheus.MustNewConstMetric(
			c.entries, prometheus.CounterValue, float64(c.eng.Count(lv)), lv.String())
	}
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.eng.DroppedCount()))
	ch <- prometheus.MustNewConstMetric(c.rotations, prometheus.CounterValue, float64(c.eng.Rotations()))
	ch <- prometheus.MustNewConstMetric(c.logLines, prometheus.GaugeValue, float64(c.eng.LogLines()))
	ch <- prometheus.MustNewConstMetric(c.queueFree, prometheus.GaugeValue, float64(c.eng.QueueSpacesAvailable()))
	ch <- prometheus.MustNewConstMetric(c.queueWaiting, prometheus.GaugeValue, float64(c.eng.QueueMessagesWaiting()))
}

// Serve registers the collector on a fresh registry and starts an HTTP
// server exposing /metrics on addr (":0" picks a free port). It returns the
// server and the bound address; the caller owns shutdown.
func Serve(addr string, c *Collector) (*http.Server, net.Addr, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, nil, fmt.Errorf("register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}
	go srv.Serve(l)

	return srv, l.Addr(), nil
}
