package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tvstream"

var (
	once sync.Once

	// FramesReceived counts frame payloads split out of inbound messages.
	FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "frames_received_total",
		Help:      "Total number of frame payloads received",
	})

	// FramesSent counts frames written to the socket.
	FramesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "frames_sent_total",
		Help:      "Total number of frames written to the socket",
	})

	// DecodeErrors counts inbound data that could not be decoded, by kind.
	DecodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "decode_errors_total",
		Help:      "Total number of inbound payloads that failed to decode",
	}, []string{"kind"})

	// Heartbeats counts server pings.
	Heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "heartbeats_total",
		Help:      "Total number of heartbeats received",
	})

	// ProcessorErrors counts processor failures, including recovered panics.
	ProcessorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "processor_errors_total",
		Help:      "Total number of processor errors",
	})

	// WorkQueueDepth is the number of units waiting for dispatch.
	WorkQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "work_queue_depth",
		Help:      "Units waiting in the dispatch queue",
	})

	// QuoteUpdates counts quote records applied to the symbol store.
	QuoteUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quote",
		Name:      "updates_total",
		Help:      "Total number of quote records applied",
	})

	// RowsWritten counts quote rows inserted by the quote writer.
	RowsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "rows_written_total",
		Help:      "Total number of quote rows written to the database",
	})

	// RowsDropped counts quote updates discarded because the writer buffer
	// was full.
	RowsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "rows_dropped_total",
		Help:      "Total number of quote rows dropped on a full writer buffer",
	})

	// WriteErrors counts failed quote writer batches.
	WriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "writer",
		Name:      "write_errors_total",
		Help:      "Total number of failed batch writes",
	})

	// SessionState is the numeric session state (0 created, 1 connected,
	// 2 streaming, 3 closed).
	SessionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "state",
		Help:      "Current session state",
	})
)

// Register registers all metrics with the given registerer, or with
// prometheus.DefaultRegisterer when none is passed. Only the first call
// has an effect.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FramesReceived,
			FramesSent,
			DecodeErrors,
			Heartbeats,
			ProcessorErrors,
			WorkQueueDepth,
			QuoteUpdates,
			RowsWritten,
			RowsDropped,
			WriteErrors,
			SessionState,
		)
	})
}

// Handler returns the HTTP handler serving the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}
