package utils

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// DefaultMIC is the Colombo Stock Exchange.
const DefaultMIC = "xcol"

// fallbackZones gives a timezone to exchanges the calendar library lacks.
var fallbackZones = map[string]string{
	"xcol": "Asia/Colombo",
}

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar returns the calendar for an ISO 10383 MIC. Exchanges the
// library does not know fall back to Mon-Fri in the exchange's timezone.
func GetCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = DefaultMIC
	}

	if cal := calendar.GetCalendar(mic); cal != nil {
		return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
	}

	loc := time.UTC
	if zone, ok := fallbackZones[mic]; ok {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	return &TradingCalendar{MIC: mic, Fallback: true, Timezone: loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	// Normalize to timezone if available
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	// Library handles IsHoliday / IsBusinessDay
	return tc.Calendar.IsBusinessDay(date)
}
