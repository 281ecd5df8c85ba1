package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rickgao/tvstream/internal/protocol"
)

// Errors
var (
	ErrSinkClosed = errors.New("quote sink closed")
)

// Sender enqueues a serialized frame for the writer.
type Sender interface {
	Send(ctx context.Context, frame string) error
}

// Processor handles one decoded unit.
type Processor interface {
	Process(ctx context.Context, unit protocol.Unit, out Sender) error
}

// ProcessorFunc is a function adapter for Processor.
type ProcessorFunc func(ctx context.Context, unit protocol.Unit, out Sender) error

func (f ProcessorFunc) Process(ctx context.Context, unit protocol.Unit, out Sender) error {
	return f(ctx, unit, out)
}

// Registry is an append-only, ordered list of processors. Readers get an
// immutable snapshot, so registering never blocks dispatch.
type Registry struct {
	mu    sync.Mutex
	procs atomic.Pointer[[]Processor]
}

// NewRegistry creates a registry holding procs in order.
func NewRegistry(procs ...Processor) *Registry {
	r := &Registry{}
	list := append([]Processor(nil), procs...)
	r.procs.Store(&list)
	return r
}

// Register appends p. It applies to units routed after the call returns.
func (r *Registry) Register(p Processor) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.procs.Load()
	next := make([]Processor, len(old), len(old)+1)
	copy(next, old)
	next = append(next, p)
	r.procs.Store(&next)
}

// Processors returns the current snapshot. Callers must not modify it.
func (r *Registry) Processors() []Processor {
	return *r.procs.Load()
}

// Len returns the number of registered processors.
func (r *Registry) Len() int {
	return len(r.Processors())
}
