package session

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/rickgao/tvstream/internal/connection"
	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/protocol"
)

// frameWriter is the write half of the socket.
type frameWriter interface {
	Send(data []byte) error
}

// writeLoop transmits queued frames in order until the queue is closed and
// drained. A write failure ends the loop.
func (s *Session) writeLoop(w frameWriter) error {
	for {
		frame, ok := s.queue.Receive()
		if !ok {
			return nil
		}
		if err := w.Send([]byte(frame)); err != nil {
			return err
		}
		metrics.FramesSent.Inc()
		s.logger.Debug("frame sent", "frame", frame)
	}
}

// readLoop decodes inbound messages until the stream ends or ctx is
// cancelled.
func (s *Session) readLoop(ctx context.Context, msgs <-chan connection.TimestampedMessage, errs <-chan error) error {
	s.setState(StateStreaming)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return ErrStreamEnded
				}
			}
			if !s.handleMessage(msg) {
				return nil
			}
		}
	}
}

// handleMessage decodes one inbound message and routes its units. Units
// that fail to decode are reported and skipped. It returns false once the
// router stops accepting units.
func (s *Session) handleMessage(msg connection.TimestampedMessage) bool {
	if msg.Binary {
		s.router.ReportDecodeError("binary", errors.New("binary message"))
		return true
	}
	if !utf8.Valid(msg.Data) {
		s.router.ReportDecodeError("utf8", errors.New("invalid utf-8 in message"))
		return true
	}

	text := string(msg.Data)
	s.logger.Debug("message received", "data", text)

	units, decodeErrs := protocol.Decode(text)
	metrics.FramesReceived.Add(float64(len(units) + len(decodeErrs)))

	for _, err := range decodeErrs {
		kind := "frame"
		if errors.Is(err, protocol.ErrMalformedHeartbeat) {
			kind = "heartbeat"
		}
		s.router.ReportDecodeError(kind, err)
	}
	for _, u := range units {
		if !s.router.Route(u) {
			return false
		}
	}
	return true
}
