package protocol

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrFrameDecode        = errors.New("frame decode")
	ErrMalformedHeartbeat = errors.New("malformed heartbeat")
	ErrStructuredParse    = errors.New("payload does not match message schema")
)

// FrameDecodeError reports a payload that could not be decoded. The stream
// skips the payload and continues.
type FrameDecodeError struct {
	Payload string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", truncate(e.Payload, 64), e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFrameDecode) match any FrameDecodeError.
func (e *FrameDecodeError) Is(target error) bool {
	return target == ErrFrameDecode
}

// StructuredParseError reports a payload that is not a valid message.
// Classify demotes these to opaque units.
type StructuredParseError struct {
	Payload string
	Err     error
}

func (e *StructuredParseError) Error() string {
	return fmt.Sprintf("parse message %q: %v", truncate(e.Payload, 64), e.Err)
}

func (e *StructuredParseError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
