package protocol

import "fmt"

// FieldSet selects which quote fields the server streams.
type FieldSet string

const (
	FieldSetPrice FieldSet = "price"
	FieldSetAll   FieldSet = "all"
)

// priceFields is the default field selection, in wire order.
var priceFields = [5]string{
	"lp",
	"high_price",
	"low_price",
	"price_52_week_high",
	"price_52_week_low",
}

// allFields is every quote field the server understands.
var allFields = [48]string{
	"base-currency-logoid",
	"ch",
	"chp",
	"currency-logoid",
	"currency_code",
	"current_session",
	"description",
	"exchange",
	"format",
	"fractional",
	"is_tradable",
	"language",
	"local_description",
	"logoid",
	"lp",
	"lp_time",
	"minmov",
	"minmove2",
	"original_name",
	"pricescale",
	"pro_name",
	"short_name",
	"type",
	"update_mode",
	"volume",
	"ask",
	"bid",
	"fundamentals",
	"high_price",
	"low_price",
	"open_price",
	"prev_close_price",
	"rch",
	"rchp",
	"rtc",
	"rtc_time",
	"status",
	"industry",
	"basic_eps_net_income",
	"beta_1_year",
	"market_cap_basic",
	"earnings_per_share_basic_ttm",
	"price_earnings_ttm",
	"sector",
	"dividends_yield",
	"timezone",
	"country_code",
	"provider_id",
}

// Fields returns a copy of the field names in the set.
func (s FieldSet) Fields() ([]string, error) {
	switch s {
	case FieldSetPrice, "":
		return append([]string(nil), priceFields[:]...), nil
	case FieldSetAll:
		return append([]string(nil), allFields[:]...), nil
	default:
		return nil, fmt.Errorf("unknown field set %q", string(s))
	}
}

// Valid reports whether s names a known field set.
func (s FieldSet) Valid() bool {
	return s == FieldSetPrice || s == FieldSetAll
}
