package router

import (
	"github.com/rickgao/tvstream/internal/processor"
	"github.com/rickgao/tvstream/internal/protocol"
)

// RouterConfig holds configuration for the dispatch router.
type RouterConfig struct {
	InitialBufferSize int // Default: 64
	MaxBufferSize     int // Default: 4096, 0 means unbounded
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		InitialBufferSize: 64,
		MaxBufferSize:     4096,
	}
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	UnitsReceived   int64
	UnitsDispatched int64
	DecodeErrors    int64
	ProcessorErrors int64
	ProcessorPanics int64
	WorkQueue       BufferStats
}

// work is one queued unit paired with the processors registered when it
// was routed.
type work struct {
	unit  protocol.Unit
	procs []processor.Processor
}
