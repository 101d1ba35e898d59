package storage

import (
	"encoding/json"
	"time"

	"financials-sync/src/snapshot"
)

// LastUpdatedKey is written on every successful merge.
const LastUpdatedKey = "lastUpdated"

// documentKey maps one snapshot field onto the stored document. When latest is
// set, index 0 of a series value is also stored under that key.
type documentKey struct {
	field   string
	history string
	latest  string
}

var documentKeys = []documentKey{
	// Company information
	{field: "business_description", history: "businessSummary"},
	{field: "web_site_url", history: "website"},
	{field: "total_shares_outstanding_fy", history: "numberOfShares"},

	// Financial year
	{field: "fiscal_period_fy_h", history: "financialYearHistoryYearly"},
	{field: "fiscal_period_fq_h", history: "financialYearHistoryQuarterly"},
	{field: "fiscal_period_end_fy_h", history: "financialYearEndHistoryYearly"},
	{field: "fiscal_period_end_fq_h", history: "financialYearEndHistoryQuarterly"},

	// Balance sheet
	{field: "total_assets_fy_h", history: "totalAssetsHistoryYearly", latest: "totalAssets"},
	{field: "total_assets_fq_h", history: "totalAssetsHistoryQuarterly"},
	{field: "total_liabilities_fy_h", history: "totalLiabilitiesHistoryYearly", latest: "totalLiabilities"},
	{field: "total_liabilities_fq_h", history: "totalLiabilitiesHistoryQuarterly"},
	{field: "total_equity_fy_h", history: "totalEquityHistoryYearly", latest: "totalEquity"},
	{field: "total_equity_fq_h", history: "totalEquityHistoryQuarterly"},
	{field: "net_debt_fy_h", history: "netDebtHistoryYearly", latest: "netDebt"},
	{field: "net_debt_fq_h", history: "netDebtHistoryQuarterly"},

	// Per share
	{field: "book_value_per_share_fy_h", history: "netAssetsPerShareHistoryYearly", latest: "netAssetsPerShare"},
	{field: "book_value_per_share_fq_h", history: "netAssetsPerShareHistoryQuarterly"},
	{field: "earnings_per_share_diluted_fy_h", history: "earningsPerShareHistoryYearly", latest: "earningsPerShare"},
	{field: "earnings_per_share_diluted_fq_h", history: "earningsPerShareHistoryQuarterly"},

	// Valuation
	{field: "price_book_fy_h", history: "priceToBookValueHistoryYearly", latest: "priceToBookValue"},
	{field: "price_book_fq_h", history: "priceToBookValueHistoryQuarterly"},
	{field: "price_earnings_fy_h", history: "priceEarningsRatioHistoryYearly", latest: "priceEarningsRatio"},
	{field: "price_earnings_fq_h", history: "priceEarningsRatioHistoryQuarterly"},

	// Dividends
	{field: "dividends_availability", history: "dividendAvailability"},
	{field: "dividend_amount_h", history: "dividendPerShareHistory", latest: "dividendPerShare"},
	{field: "dividends_yield_fy_h", history: "dividendYieldHistoryYearly", latest: "dividendYield"},
	{field: "dividend_ex_date_h", history: "dividendXdDateHistory", latest: "dividendXdDate"},
	{field: "dividend_payment_date_h", history: "dividendPaymentDateHistory", latest: "dividendPaymentDate"},
	{field: "dividend_type_h", history: "dividendTypeHistory"},
}

// -----------------------------------------------------------------------------

// Document is the partial update merged into a company's stored data.
type Document map[string]json.RawMessage

// BuildDocument converts the set fields of snap into document keys. Absent
// fields produce no key so stored values survive the merge.
func BuildDocument(snap *snapshot.Snapshot, now time.Time) (Document, error) {
	doc := Document{}
	for _, k := range documentKeys {
		v := snap.Get(k.field)
		if !v.IsSet() {
			continue
		}
		doc[k.history] = v.Raw()
		if k.latest == "" {
			continue
		}
		if first := v.First(); first.IsSet() {
			doc[k.latest] = first.Raw()
		}
	}

	stamp, err := json.Marshal(now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	doc[LastUpdatedKey] = stamp
	return doc, nil
}
