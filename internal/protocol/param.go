package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/mitchellh/mapstructure"
)

// Param is one element of a packet's "p" array. It is either a plain
// string (Text), a price record (Quote), or any other JSON value kept
// verbatim (Raw).
type Param struct {
	Text  string
	Quote *QuoteRecord
	Raw   json.RawMessage
}

// Text returns a plain string param.
func Text(s string) Param {
	return Param{Text: s}
}

// Quote returns a price record param.
func Quote(rec QuoteRecord) Param {
	return Param{Quote: &rec}
}

// MarshalJSON implements json.Marshaler.
func (p Param) MarshalJSON() ([]byte, error) {
	switch {
	case p.Quote != nil:
		return marshal(p.Quote)
	case p.Raw != nil:
		return p.Raw, nil
	default:
		return marshal(p.Text)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects carrying a string "n"
// member are decoded as price records; unknown members are ignored.
func (p *Param) UnmarshalJSON(data []byte) error {
	*p = Param{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrStructuredParse
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Text)
	case '{':
		if rec, ok := decodeQuote(data); ok {
			p.Quote = rec
			return nil
		}
	}

	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// QuoteRecord is the nested price record of a "qsd" message.
type QuoteRecord struct {
	Name   string      `json:"n" mapstructure:"n"`
	Status string      `json:"s" mapstructure:"s"`
	Values QuoteValues `json:"v" mapstructure:"v"`

	// DecodeErr lists known fields that had the wrong type. Those fields
	// are left nil; the rest of the record is kept.
	DecodeErr error `json:"-" mapstructure:"-"`
}

// QuoteValues holds the sparse set of quote fields. A nil field was absent
// from the record and is never written to the wire.
type QuoteValues struct {
	LastPrice      *float64 `json:"lp,omitempty" mapstructure:"lp"`
	LastPriceTime  *int64   `json:"lp_time,omitempty" mapstructure:"lp_time"`
	Change         *float64 `json:"ch,omitempty" mapstructure:"ch"`
	ChangePercent  *float64 `json:"chp,omitempty" mapstructure:"chp"`
	HighPrice      *float64 `json:"high_price,omitempty" mapstructure:"high_price"`
	LowPrice       *float64 `json:"low_price,omitempty" mapstructure:"low_price"`
	OpenPrice      *float64 `json:"open_price,omitempty" mapstructure:"open_price"`
	PrevClosePrice *float64 `json:"prev_close_price,omitempty" mapstructure:"prev_close_price"`
	Week52High     *float64 `json:"price_52_week_high,omitempty" mapstructure:"price_52_week_high"`
	Week52Low      *float64 `json:"price_52_week_low,omitempty" mapstructure:"price_52_week_low"`
	Volume         *float64 `json:"volume,omitempty" mapstructure:"volume"`
	Bid            *float64 `json:"bid,omitempty" mapstructure:"bid"`
	Ask            *float64 `json:"ask,omitempty" mapstructure:"ask"`
	Exchange       *string  `json:"exchange,omitempty" mapstructure:"exchange"`
	Description    *string  `json:"description,omitempty" mapstructure:"description"`
	ShortName      *string  `json:"short_name,omitempty" mapstructure:"short_name"`
	CurrencyCode   *string  `json:"currency_code,omitempty" mapstructure:"currency_code"`
	CurrentSession *string  `json:"current_session,omitempty" mapstructure:"current_session"`
	UpdateMode     *string  `json:"update_mode,omitempty" mapstructure:"update_mode"`
	Type           *string  `json:"type,omitempty" mapstructure:"type"`
}

// Float returns the numeric field with the given wire name, if present.
func (v QuoteValues) Float(field string) (float64, bool) {
	var f *float64
	switch field {
	case "lp":
		f = v.LastPrice
	case "ch":
		f = v.Change
	case "chp":
		f = v.ChangePercent
	case "high_price":
		f = v.HighPrice
	case "low_price":
		f = v.LowPrice
	case "open_price":
		f = v.OpenPrice
	case "prev_close_price":
		f = v.PrevClosePrice
	case "price_52_week_high":
		f = v.Week52High
	case "price_52_week_low":
		f = v.Week52Low
	case "volume":
		f = v.Volume
	case "bid":
		f = v.Bid
	case "ask":
		f = v.Ask
	}
	if f == nil {
		return 0, false
	}
	return *f, true
}

// decodeQuote decodes a JSON object into a QuoteRecord. It reports false
// when the object has no string "n" member. Mistyped fields do not reject
// the record; they are recorded in DecodeErr.
func decodeQuote(data []byte) (*QuoteRecord, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	if _, ok := raw["n"].(string); !ok {
		return nil, false
	}

	var rec QuoteRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &rec,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, false
	}
	if err := dec.Decode(raw); err != nil {
		rec.DecodeErr = err
	}
	return &rec, true
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
