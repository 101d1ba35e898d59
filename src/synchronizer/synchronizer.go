// Package synchronizer drives one quote session per company under a rate
// limit and a bounded retry policy, merging each snapshot into the store.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/quote"
)

// ErrNoMatchingCompany is the attempt error when the sink found no record.
var ErrNoMatchingCompany = errors.New("no matching company in store")

// Options for one run. MaxRetries is the total number of attempts per company.
type Options struct {
	Exchange       string
	RateLimit      time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxCompanies   int
}

// -----------------------------------------------------------------------------

func OptionsFromConfig(cfg *models.MConfig) Options {
	exchange := cfg.Quote.Exchange
	if exchange == "" {
		exchange = quote.DefaultExchange
	}
	return Options{
		Exchange:       exchange,
		RateLimit:      seconds(cfg.Sync.RateLimitSeconds),
		MaxRetries:     cfg.Sync.MaxRetries,
		RetryBaseDelay: seconds(cfg.Sync.RetryDelaySeconds),
		MaxCompanies:   cfg.Sync.MaxCompanies,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// -----------------------------------------------------------------------------

type Synchronizer struct {
	fetcher  interfaces.ISnapshotFetcher
	sink     interfaces.ISnapshotSink
	reporter interfaces.IProgressReporter
	opts     Options
	logger   *logger.Logger

	sleep helpers.SleepFunc
	now   func() time.Time
}

// -----------------------------------------------------------------------------

func NewSynchronizer(fetcher interfaces.ISnapshotFetcher, sink interfaces.ISnapshotSink, reporter interfaces.IProgressReporter, opts Options, log *logger.Logger) *Synchronizer {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Synchronizer{
		fetcher:  fetcher,
		sink:     sink,
		reporter: reporter,
		opts:     opts,
		logger:   log,
		sleep:    helpers.SleepContext,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// Run processes companies in the given order. A failed company never stops the
// run; only cancellation of ctx does, in which case the summary is flagged.
func (s *Synchronizer) Run(ctx context.Context, companies []models.MCompany) models.MSyncSummary {
	started := s.now()
	if s.opts.MaxCompanies > 0 && len(companies) > s.opts.MaxCompanies {
		companies = companies[:s.opts.MaxCompanies]
	}
	total := len(companies)

	s.logger.Info("Starting financial data sync for %d companies", total)
	s.emit(models.MProgressEvent{Type: models.ProgressRunStarted, Total: total})

	var summary models.MSyncSummary
	for i := range companies {
		company := companies[i]
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		summary.Attempted++
		unit := s.syncOne(ctx, i, total, &company)
		if unit.Succeeded {
			summary.Succeeded++
		}
		s.emit(models.MProgressEvent{Type: models.ProgressUnitFinished, Index: i, Total: total, Company: &company, Unit: unit})

		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		// Pace the upstream between companies, never after the last one
		if i < total-1 {
			if err := s.sleep(ctx, s.opts.RateLimit); err != nil {
				summary.Interrupted = true
				break
			}
		}
	}

	summary.DurationSeconds = s.now().Sub(started).Seconds()
	s.emit(models.MProgressEvent{Type: models.ProgressRunFinished, Total: total, Summary: &summary})
	s.logger.Info("Sync completed: %d/%d companies updated (%d failed) in %.1fs",
		summary.Succeeded, summary.Attempted, summary.Failed(), summary.DurationSeconds)
	return summary
}

// -----------------------------------------------------------------------------

// syncOne runs up to MaxRetries attempts for one company.
func (s *Synchronizer) syncOne(ctx context.Context, index, total int, company *models.MCompany) *models.MSyncUnit {
	unit := &models.MSyncUnit{
		Symbol:  company.Symbol,
		Subject: quote.SubjectFor(s.opts.Exchange, company.Symbol),
	}
	s.emit(models.MProgressEvent{Type: models.ProgressUnitStarted, Index: index, Total: total, Company: company, Unit: unit})

	attempts, err := helpers.RetryWithBackoff(ctx, s.opts.MaxRetries, helpers.LinearBackoff(s.opts.RetryBaseDelay), s.sleep,
		func(attempt int) error {
			err := s.attempt(ctx, unit)
			if err != nil {
				unit.LastError = err.Error()
				s.emit(models.MProgressEvent{
					Type:    models.ProgressAttemptFailed,
					Index:   index,
					Total:   total,
					Company: company,
					Unit:    unit,
					Error:   fmt.Sprintf("attempt %d/%d: %v", attempt+1, s.opts.MaxRetries, err),
				})
			}
			return err
		})

	unit.Attempts = attempts
	if err == nil {
		unit.Succeeded = true
		unit.LastError = ""
	} else if unit.LastError == "" {
		unit.LastError = err.Error()
	}
	return unit
}

// -----------------------------------------------------------------------------

// attempt is one session plus one sink merge. Any failure consumes the slot.
func (s *Synchronizer) attempt(ctx context.Context, unit *models.MSyncUnit) error {
	snap, err := s.fetcher.FetchSnapshot(ctx, unit.Subject)
	if err != nil {
		return err
	}
	if snap.IsEmpty() {
		return quote.ErrNoData
	}

	ok, err := s.sink.Upsert(ctx, unit.Symbol, snap)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoMatchingCompany
	}
	return nil
}

// -----------------------------------------------------------------------------

// emit hands reporters a copy of the unit so later attempts do not race them.
func (s *Synchronizer) emit(event models.MProgressEvent) {
	if event.Unit != nil {
		unit := *event.Unit
		event.Unit = &unit
	}
	event.Timestamp = s.now()
	s.reporter.Report(event)
}
