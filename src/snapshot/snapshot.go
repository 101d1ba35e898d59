// Package snapshot holds the fixed fundamentals record filled by one quote session.
package snapshot

import (
	"bytes"
	"encoding/json"
)

// -----------------------------------------------------------------------------
// Value
// -----------------------------------------------------------------------------

// Value is one field as sent upstream: absent, a scalar, or an array of
// per-period values with index 0 the most recent. The zero Value is absent.
type Value struct {
	raw json.RawMessage
}

// NewValue wraps raw JSON. JSON null yields an absent Value.
func NewValue(raw []byte) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Value{}
	}
	return Value{raw: bytes.Clone(trimmed)}
}

func (v Value) IsSet() bool {
	return len(v.raw) > 0
}

func (v Value) Raw() json.RawMessage {
	return v.raw
}

// IsSeries reports whether the value is a JSON array.
func (v Value) IsSeries() bool {
	return len(v.raw) > 0 && v.raw[0] == '['
}

// Series splits an array value into its elements. Scalars return nil.
func (v Value) Series() []Value {
	if !v.IsSeries() {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v.raw, &items); err != nil {
		return nil
	}
	out := make([]Value, 0, len(items))
	for _, item := range items {
		out = append(out, NewValue(item))
	}
	return out
}

// First returns the most recent period of a series, or absent.
func (v Value) First() Value {
	series := v.Series()
	if len(series) == 0 {
		return Value{}
	}
	return series[0]
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsSet() {
		return []byte("null"), nil
	}
	return v.raw, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	*v = NewValue(data)
	return nil
}

func (v Value) String() string {
	if !v.IsSet() {
		return "<absent>"
	}
	return string(v.raw)
}

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// Snapshot is the accumulated field record for one subject. Only the session
// receiver mutates it; it is handed off once the session ends.
type Snapshot struct {
	Subject string

	BusinessDescription Value
	WebSiteURL          Value

	TotalAssetsFY      Value
	TotalAssetsFQ      Value
	TotalLiabilitiesFY Value
	TotalLiabilitiesFQ Value
	TotalEquityFY      Value
	TotalEquityFQ      Value
	NetDebtFY          Value
	NetDebtFQ          Value

	FiscalPeriodFY    Value
	FiscalPeriodFQ    Value
	FiscalPeriodEndFY Value
	FiscalPeriodEndFQ Value

	TotalSharesOutstandingFY Value
	BookValuePerShareFY      Value
	BookValuePerShareFQ      Value
	EarningsPerShareFY       Value
	EarningsPerShareFQ       Value

	PriceEarningsFY Value
	PriceEarningsFQ Value
	PriceBookFY     Value
	PriceBookFQ     Value

	DividendsAvailability Value
	DividendType          Value
	DividendAmount        Value
	DividendsYieldFY      Value
	DividendPaymentDate   Value
	DividendExDate        Value
}

// -----------------------------------------------------------------------------

type field struct {
	name string
	ref  func(*Snapshot) *Value
}

// fields is the fixed upstream schema, in wire-name order.
var fields = []field{
	{"business_description", func(s *Snapshot) *Value { return &s.BusinessDescription }},
	{"web_site_url", func(s *Snapshot) *Value { return &s.WebSiteURL }},
	{"total_assets_fy_h", func(s *Snapshot) *Value { return &s.TotalAssetsFY }},
	{"total_assets_fq_h", func(s *Snapshot) *Value { return &s.TotalAssetsFQ }},
	{"total_liabilities_fy_h", func(s *Snapshot) *Value { return &s.TotalLiabilitiesFY }},
	{"total_liabilities_fq_h", func(s *Snapshot) *Value { return &s.TotalLiabilitiesFQ }},
	{"total_equity_fy_h", func(s *Snapshot) *Value { return &s.TotalEquityFY }},
	{"total_equity_fq_h", func(s *Snapshot) *Value { return &s.TotalEquityFQ }},
	{"net_debt_fy_h", func(s *Snapshot) *Value { return &s.NetDebtFY }},
	{"net_debt_fq_h", func(s *Snapshot) *Value { return &s.NetDebtFQ }},
	{"fiscal_period_fy_h", func(s *Snapshot) *Value { return &s.FiscalPeriodFY }},
	{"fiscal_period_fq_h", func(s *Snapshot) *Value { return &s.FiscalPeriodFQ }},
	{"fiscal_period_end_fy_h", func(s *Snapshot) *Value { return &s.FiscalPeriodEndFY }},
	{"fiscal_period_end_fq_h", func(s *Snapshot) *Value { return &s.FiscalPeriodEndFQ }},
	{"total_shares_outstanding_fy", func(s *Snapshot) *Value { return &s.TotalSharesOutstandingFY }},
	{"book_value_per_share_fy_h", func(s *Snapshot) *Value { return &s.BookValuePerShareFY }},
	{"book_value_per_share_fq_h", func(s *Snapshot) *Value { return &s.BookValuePerShareFQ }},
	{"earnings_per_share_diluted_fy_h", func(s *Snapshot) *Value { return &s.EarningsPerShareFY }},
	{"earnings_per_share_diluted_fq_h", func(s *Snapshot) *Value { return &s.EarningsPerShareFQ }},
	{"price_earnings_fy_h", func(s *Snapshot) *Value { return &s.PriceEarningsFY }},
	{"price_earnings_fq_h", func(s *Snapshot) *Value { return &s.PriceEarningsFQ }},
	{"price_book_fy_h", func(s *Snapshot) *Value { return &s.PriceBookFY }},
	{"price_book_fq_h", func(s *Snapshot) *Value { return &s.PriceBookFQ }},
	{"dividends_availability", func(s *Snapshot) *Value { return &s.DividendsAvailability }},
	{"dividend_type_h", func(s *Snapshot) *Value { return &s.DividendType }},
	{"dividend_amount_h", func(s *Snapshot) *Value { return &s.DividendAmount }},
	{"dividends_yield_fy_h", func(s *Snapshot) *Value { return &s.DividendsYieldFY }},
	{"dividend_payment_date_h", func(s *Snapshot) *Value { return &s.DividendPaymentDate }},
	{"dividend_ex_date_h", func(s *Snapshot) *Value { return &s.DividendExDate }},
}

// -----------------------------------------------------------------------------

// New returns an empty snapshot for subject.
func New(subject string) *Snapshot {
	return &Snapshot{Subject: subject}
}

// -----------------------------------------------------------------------------

// FieldNames lists the schema in wire order.
func FieldNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// -----------------------------------------------------------------------------

// Merge overwrites every schema field present in delta (last write wins).
// Unknown keys and null values are ignored. It returns how many fields were set.
func (s *Snapshot) Merge(delta map[string]json.RawMessage) int {
	merged := 0
	for _, f := range fields {
		raw, ok := delta[f.name]
		if !ok {
			continue
		}
		v := NewValue(raw)
		if !v.IsSet() {
			continue
		}
		*f.ref(s) = v
		merged++
	}
	return merged
}

// -----------------------------------------------------------------------------

// Get returns the field by wire name. Unknown names are absent.
func (s *Snapshot) Get(name string) Value {
	for _, f := range fields {
		if f.name == name {
			return *f.ref(s)
		}
	}
	return Value{}
}

// -----------------------------------------------------------------------------

// IsEmpty is true when no field besides the subject has been set.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.SetFields()) == 0
}

// -----------------------------------------------------------------------------

// SetFields returns the wire names of the fields that hold data, in schema order.
func (s *Snapshot) SetFields() []string {
	var names []string
	for _, f := range fields {
		if f.ref(s).IsSet() {
			names = append(names, f.name)
		}
	}
	return names
}

// -----------------------------------------------------------------------------

// MarshalJSON emits the subject under "symbol" and only the fields that are set.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(fields)+1)
	subject, err := json.Marshal(s.Subject)
	if err != nil {
		return nil, err
	}
	out["symbol"] = subject
	for _, f := range fields {
		if v := *f.ref(s); v.IsSet() {
			out[f.name] = v.raw
		}
	}
	return json.Marshal(out)
}
