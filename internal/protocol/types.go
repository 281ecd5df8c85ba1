package protocol

// Methods sent by the client.
const (
	MethodQuoteCreateSession = "quote_create_session"
	MethodQuoteSetFields     = "quote_set_fields"
	MethodQuoteAddSymbols    = "quote_add_symbols"
	MethodSetAuthToken       = "set_auth_token"
	MethodChartCreateSession = "chart_create_session"
	MethodChartDeleteSession = "chart_delete_session"
)

// Methods sent by the server.
const (
	MethodQuoteData      = "qsd"
	MethodQuoteCompleted = "quote_completed"
	MethodProtocolError  = "protocol_error"
	MethodCriticalError  = "critical_error"
)

// Packet is a structured message.
type Packet struct {
	Method string  `json:"m"`
	Params []Param `json:"p"`
}

// NewPacket builds a packet whose params are all plain strings.
func NewPacket(method string, params ...string) Packet {
	p := Packet{Method: method, Params: make([]Param, len(params))}
	for i, s := range params {
		p.Params[i] = Text(s)
	}
	return p
}

// Quotes returns the price records carried by the packet, in order.
func (p Packet) Quotes() []*QuoteRecord {
	var out []*QuoteRecord
	for _, param := range p.Params {
		if param.Quote != nil {
			out = append(out, param.Quote)
		}
	}
	return out
}

// UnitKind identifies the shape of a decoded payload.
type UnitKind int

const (
	KindHeartbeat UnitKind = iota + 1
	KindMessage
	KindOpaque
)

func (k UnitKind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindMessage:
		return "message"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Unit is the classified form of one frame payload. Exactly one of
// Heartbeat, Message or Text is meaningful, selected by Kind.
type Unit struct {
	Kind      UnitKind
	Heartbeat uint64
	Message   *Packet
	Text      string
}

// HeartbeatUnit returns a heartbeat unit.
func HeartbeatUnit(n uint64) Unit {
	return Unit{Kind: KindHeartbeat, Heartbeat: n}
}

// MessageUnit returns a structured message unit.
func MessageUnit(p Packet) Unit {
	return Unit{Kind: KindMessage, Message: &p}
}

// OpaqueUnit returns an opaque text unit.
func OpaqueUnit(text string) Unit {
	return Unit{Kind: KindOpaque, Text: text}
}
