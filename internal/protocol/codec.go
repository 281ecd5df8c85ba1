package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	frameMarker     = "~m~"
	heartbeatMarker = "~h~"
)

// Encode serializes p and wraps it in a frame.
func Encode(p Packet) (string, error) {
	data, err := marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", p.Method, err)
	}
	return Frame(string(data)), nil
}

// Frame prefixes payload with its byte length marker.
func Frame(payload string) string {
	return frameMarker + strconv.Itoa(len(payload)) + frameMarker + payload
}

// FormatPing returns the heartbeat reply for ping number n.
// FormatPing(1) == "~m~4~m~~h~1".
func FormatPing(n uint64) string {
	return Frame(heartbeatMarker + strconv.FormatUint(n, 10))
}

// Split returns the payloads of every frame in buffer, in order. Length
// markers and empty segments are dropped.
func Split(buffer string) []string {
	var out []string
	for _, seg := range strings.Split(buffer, frameMarker) {
		if seg == "" || isDigits(seg) {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Classify turns a frame payload into a Unit. Payloads that are neither a
// heartbeat nor a valid message become opaque units. The only error is a
// FrameDecodeError for a heartbeat with a non-numeric counter.
func Classify(payload string) (Unit, error) {
	if strings.Contains(payload, heartbeatMarker) {
		rest := strings.ReplaceAll(payload, heartbeatMarker, "")
		n, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return Unit{}, &FrameDecodeError{
				Payload: payload,
				Err:     fmt.Errorf("%w: %v", ErrMalformedHeartbeat, err),
			}
		}
		return HeartbeatUnit(n), nil
	}

	p, err := ParsePacket(payload)
	if err != nil {
		return OpaqueUnit(payload), nil
	}
	return MessageUnit(p), nil
}

// ParsePacket parses a payload as a structured message. The payload must be
// a JSON object with a non-empty string "m".
func ParsePacket(payload string) (Packet, error) {
	var p Packet
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Packet{}, &StructuredParseError{Payload: payload, Err: err}
	}
	if p.Method == "" {
		return Packet{}, &StructuredParseError{Payload: payload, Err: ErrStructuredParse}
	}
	return p, nil
}

// Decode splits and classifies a whole websocket message. Payloads that fail
// to decode are returned as errors alongside the units that succeeded.
func Decode(buffer string) ([]Unit, []error) {
	var (
		units []Unit
		errs  []error
	)
	for _, payload := range Split(buffer) {
		u, err := Classify(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		units = append(units, u)
	}
	return units, errs
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
