package processor

import (
	"context"
	"log/slog"

	"github.com/rickgao/tvstream/internal/protocol"
)

// ServerLog logs server side errors at Warn and opaque payloads at Debug.
type ServerLog struct {
	logger *slog.Logger
}

// NewServerLog creates a ServerLog processor.
func NewServerLog(logger *slog.Logger) *ServerLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerLog{logger: logger}
}

// Process implements Processor.
func (s *ServerLog) Process(ctx context.Context, unit protocol.Unit, out Sender) error {
	switch unit.Kind {
	case protocol.KindOpaque:
		s.logger.Debug("opaque payload", "text", unit.Text)
	case protocol.KindMessage:
		switch unit.Message.Method {
		case protocol.MethodProtocolError, protocol.MethodCriticalError:
			s.logger.Warn("server reported error",
				"method", unit.Message.Method,
				"params", len(unit.Message.Params),
			)
		case protocol.MethodQuoteData:
			for _, rec := range unit.Message.Quotes() {
				if rec.Status != "" && rec.Status != "ok" {
					s.logger.Warn("symbol error", "symbol", rec.Name, "status", rec.Status)
				}
			}
		}
	}
	return nil
}
