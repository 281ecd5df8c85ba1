package processor

import (
	"context"

	"github.com/rickgao/tvstream/internal/protocol"
)

// Heartbeat echoes every ~h~<n> ping back to the server.
type Heartbeat struct{}

// Process implements Processor.
func (Heartbeat) Process(ctx context.Context, unit protocol.Unit, out Sender) error {
	if unit.Kind != protocol.KindHeartbeat {
		return nil
	}
	return out.Send(ctx, protocol.FormatPing(unit.Heartbeat))
}
