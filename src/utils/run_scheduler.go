package utils

import (
	"context"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/models"
)

// RunScheduler repeats batch runs on a fixed interval, optionally only on
// trading days of one exchange.
type RunScheduler struct {
	Interval        time.Duration
	TradingDaysOnly bool
	Calendar        *TradingCalendar
	Logger          *logger.Logger

	now   func() time.Time
	sleep helpers.SleepFunc
}

// -----------------------------------------------------------------------------

func NewRunScheduler(cfg models.MScheduleConfig, l *logger.Logger) *RunScheduler {
	rs := &RunScheduler{
		Interval:        time.Duration(cfg.IntervalHours * float64(time.Hour)),
		TradingDaysOnly: cfg.TradingDaysOnly,
		Calendar:        GetCalendar(cfg.MIC),
		Logger:          l,
		now:             time.Now,
		sleep:           helpers.SleepContext,
	}
	if rs.Calendar.Fallback {
		l.Info("RunScheduler: no holiday calendar for %s, treating Mon-Fri as trading days", rs.Calendar.MIC)
	}
	return rs
}

// -----------------------------------------------------------------------------

// ShouldRun reports whether a run may start at t.
func (rs *RunScheduler) ShouldRun(t time.Time) bool {
	if !rs.TradingDaysOnly {
		return true
	}
	return rs.Calendar.IsTradingDay(t)
}

// -----------------------------------------------------------------------------

// Loop calls run immediately and then every Interval until ctx is done. With
// no interval it runs once, ignoring the trading-day gate, and returns nil.
func (rs *RunScheduler) Loop(ctx context.Context, run func(ctx context.Context)) error {
	for {
		// A single run always happens; only repeated runs wait for trading days
		if now := rs.now(); rs.Interval <= 0 || rs.ShouldRun(now) {
			run(ctx)
		} else {
			rs.Logger.Info("RunScheduler: %s is not a trading day on %s, skipping run",
				now.In(rs.Calendar.Timezone).Format("2006-01-02"), rs.Calendar.MIC)
		}

		if rs.Interval <= 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rs.Logger.Info("RunScheduler: next run at %s", rs.now().Add(rs.Interval).Format(time.RFC3339))
		if err := rs.sleep(ctx, rs.Interval); err != nil {
			return err
		}
	}
}
