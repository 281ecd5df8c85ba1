package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/processor"
	"github.com/rickgao/tvstream/internal/protocol"
)

// Router queues decoded units and dispatches them to processors.
//
// Each unit is paired with the registry snapshot taken when it is routed,
// so a processor registered later never sees earlier units. One dispatch
// worker runs the processors of a unit sequentially, in registration
// order, before moving to the next unit.
type Router interface {
	// Route queues a unit. It blocks while the work queue is at its
	// ceiling and returns false once the router is closed.
	Route(unit protocol.Unit) bool

	// ReportDecodeError records inbound data that produced no unit.
	ReportDecodeError(kind string, err error)

	// Run is the dispatch worker. It returns after Close (or ctx
	// cancellation) once the queue is drained.
	Run(ctx context.Context, out processor.Sender) error

	// Close stops accepting units.
	Close()

	// Stats returns current router statistics.
	Stats() RouterStats
}

// router is the internal implementation.
type router struct {
	cfg      RouterConfig
	registry *processor.Registry
	logger   *slog.Logger
	queue    *GrowableBuffer[work]

	received        atomic.Int64
	dispatched      atomic.Int64
	decodeErrors    atomic.Int64
	processorErrors atomic.Int64
	panics          atomic.Int64
}

// NewRouter creates a dispatch router over registry.
func NewRouter(cfg RouterConfig, registry *processor.Registry, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = processor.NewRegistry()
	}

	return &router{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		queue:    NewBoundedBuffer[work](cfg.InitialBufferSize, cfg.MaxBufferSize),
	}
}

func (r *router) Route(unit protocol.Unit) bool {
	if unit.Kind == protocol.KindHeartbeat {
		metrics.Heartbeats.Inc()
	}
	if !r.queue.Send(work{unit: unit, procs: r.registry.Processors()}) {
		return false
	}
	r.received.Add(1)
	metrics.WorkQueueDepth.Set(float64(r.queue.Len()))
	return true
}

func (r *router) ReportDecodeError(kind string, err error) {
	r.decodeErrors.Add(1)
	metrics.DecodeErrors.WithLabelValues(kind).Inc()
	r.logger.Warn("failed to decode inbound data", "kind", kind, "error", err)
}

func (r *router) Run(ctx context.Context, out processor.Sender) error {
	stop := context.AfterFunc(ctx, r.queue.Close)
	defer stop()

	for {
		w, ok := r.queue.Receive()
		if !ok {
			r.logger.Debug("dispatch queue closed")
			return nil
		}
		metrics.WorkQueueDepth.Set(float64(r.queue.Len()))
		r.dispatch(ctx, w, out)
	}
}

func (r *router) Close() {
	r.queue.Close()
}

func (r *router) Stats() RouterStats {
	return RouterStats{
		UnitsReceived:   r.received.Load(),
		UnitsDispatched: r.dispatched.Load(),
		DecodeErrors:    r.decodeErrors.Load(),
		ProcessorErrors: r.processorErrors.Load(),
		ProcessorPanics: r.panics.Load(),
		WorkQueue:       r.queue.Stats(),
	}
}

// dispatch runs every processor of w in order. A failing processor does
// not stop the others.
func (r *router) dispatch(ctx context.Context, w work, out processor.Sender) {
	for i, p := range w.procs {
		if err := r.safeProcess(ctx, p, w.unit, out); err != nil {
			r.processorErrors.Add(1)
			metrics.ProcessorErrors.Inc()
			r.logger.Warn("processor failed",
				"index", i,
				"kind", w.unit.Kind.String(),
				"error", err,
			)
		}
	}
	r.dispatched.Add(1)
}

func (r *router) safeProcess(ctx context.Context, p processor.Processor, unit protocol.Unit, out processor.Sender) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			err = fmt.Errorf("processor panic: %v", rec)
		}
	}()
	return p.Process(ctx, unit, out)
}
