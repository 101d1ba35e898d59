package synchronizer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/quote"
	"financials-sync/src/snapshot"

	"github.com/google/go-cmp/cmp"
)

// stubFetcher returns results[i] for the i-th call, repeating the last one.
type stubFetcher struct {
	results []fetchResult
	calls   []string
}

type fetchResult struct {
	snap *snapshot.Snapshot
	err  error
}

func (f *stubFetcher) FetchSnapshot(ctx context.Context, subject string) (*snapshot.Snapshot, error) {
	f.calls = append(f.calls, subject)
	r := f.results[len(f.results)-1]
	if len(f.calls) <= len(f.results) {
		r = f.results[len(f.calls)-1]
	}
	return r.snap, r.err
}

type upsertCall struct {
	symbol string
	fields []string
}

type stubSink struct {
	ok         bool
	err        error
	calls      []upsertCall
	registered []models.MCompany
}

func (s *stubSink) Initialize(ctx context.Context) error { return nil }

func (s *stubSink) Upsert(ctx context.Context, symbol string, snap *snapshot.Snapshot) (bool, error) {
	s.calls = append(s.calls, upsertCall{symbol: symbol, fields: snap.SetFields()})
	return s.ok, s.err
}

func (s *stubSink) RegisterCompanies(ctx context.Context, companies []models.MCompany) error {
	s.registered = append(s.registered, companies...)
	return nil
}

func (s *stubSink) Close() error { return nil }

type recordingReporter struct {
	mu     sync.Mutex
	events []models.MProgressEvent
}

func (r *recordingReporter) Report(event models.MProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingReporter) count(t models.MProgressType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------

func dataSnapshot(subject string) *snapshot.Snapshot {
	s := snapshot.New(subject)
	s.Merge(map[string]json.RawMessage{"total_assets_fy_h": json.RawMessage(`[1000,900]`)})
	return s
}

func newTestSynchronizer(fetcher *stubFetcher, sink *stubSink, reporter *recordingReporter, opts Options) (*Synchronizer, *[]time.Duration) {
	s := NewSynchronizer(fetcher, sink, reporter, opts, logger.Discard())
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return s, &sleeps
}

var alpha = models.MCompany{ID: 1, Name: "Alpha", Symbol: "ALP.N0000"}

// -----------------------------------------------------------------------------

func TestRunRetryBound(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		fetcher := &stubFetcher{results: []fetchResult{{err: quote.ErrNoData}}}
		sink := &stubSink{ok: true}
		reporter := &recordingReporter{}
		s, sleeps := newTestSynchronizer(fetcher, sink, reporter, Options{Exchange: "CSELK", MaxRetries: n, RetryBaseDelay: time.Second})

		summary := s.Run(context.Background(), []models.MCompany{alpha})

		if len(fetcher.calls) != n {
			t.Errorf("max_retries=%d: %d invocations", n, len(fetcher.calls))
		}
		if summary.Attempted != 1 || summary.Succeeded != 0 || summary.Failed() != 1 {
			t.Errorf("max_retries=%d: summary %+v", n, summary)
		}
		// Linear backoff between attempts only
		var want []time.Duration
		for i := 0; i < n-1; i++ {
			want = append(want, time.Duration(i+1)*time.Second)
		}
		if diff := cmp.Diff(want, *sleeps); diff != "" {
			t.Errorf("max_retries=%d: backoff (-want +got):\n%s", n, diff)
		}
		if got := reporter.count(models.ProgressAttemptFailed); got != n {
			t.Errorf("max_retries=%d: %d attempt-failed events", n, got)
		}
	}
}

func TestRunSuccessShortCircuitsRetries(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{
		{err: errors.New("connection reset")},
		{snap: dataSnapshot("CSELK:ALP.N0000")},
		{snap: dataSnapshot("CSELK:ALP.N0000")},
	}}
	sink := &stubSink{ok: true}
	s, sleeps := newTestSynchronizer(fetcher, sink, &recordingReporter{}, Options{Exchange: "CSELK", MaxRetries: 3, RetryBaseDelay: 2 * time.Second})

	summary := s.Run(context.Background(), []models.MCompany{alpha})

	if len(fetcher.calls) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(fetcher.calls))
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second}, *sleeps); diff != "" {
		t.Fatalf("sleeps (-want +got):\n%s", diff)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("summary %+v", summary)
	}
}

func TestRunRateLimitsBetweenCompanies(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{snap: dataSnapshot("x")}}}
	s, sleeps := newTestSynchronizer(fetcher, &stubSink{ok: true}, &recordingReporter{}, Options{Exchange: "CSELK", MaxRetries: 3, RateLimit: 3 * time.Second})

	companies := []models.MCompany{
		{ID: 1, Symbol: "A.N0000"},
		{ID: 2, Symbol: "B.N0000"},
		{ID: 3, Symbol: "C.N0000"},
	}
	summary := s.Run(context.Background(), companies)

	if diff := cmp.Diff([]time.Duration{3 * time.Second, 3 * time.Second}, *sleeps); diff != "" {
		t.Fatalf("pauses (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"CSELK:A.N0000", "CSELK:B.N0000", "CSELK:C.N0000"}, fetcher.calls); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if summary.Attempted != 3 || summary.Succeeded != 3 {
		t.Fatalf("summary %+v", summary)
	}
}

func TestRunMaxCompaniesTruncates(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{snap: dataSnapshot("x")}}}
	s, sleeps := newTestSynchronizer(fetcher, &stubSink{ok: true}, &recordingReporter{}, Options{MaxRetries: 1, RateLimit: time.Second, MaxCompanies: 2})

	summary := s.Run(context.Background(), []models.MCompany{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}})

	if summary.Attempted != 2 || len(*sleeps) != 1 {
		t.Fatalf("summary %+v, %d pauses", summary, len(*sleeps))
	}
}

func TestRunSinkFailureConsumesRetry(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{snap: dataSnapshot("CSELK:ALP.N0000")}}}
	sink := &stubSink{ok: false}
	reporter := &recordingReporter{}
	s, _ := newTestSynchronizer(fetcher, sink, reporter, Options{Exchange: "CSELK", MaxRetries: 2})

	summary := s.Run(context.Background(), []models.MCompany{alpha})

	if len(fetcher.calls) != 2 || len(sink.calls) != 2 {
		t.Fatalf("fetch calls %d, sink calls %d", len(fetcher.calls), len(sink.calls))
	}
	if summary.Succeeded != 0 {
		t.Fatalf("summary %+v", summary)
	}
	last := reporter.events[len(reporter.events)-2]
	if last.Type != models.ProgressUnitFinished || last.Unit.LastError != ErrNoMatchingCompany.Error() {
		t.Fatalf("unexpected unit finished event %+v", last)
	}
}

func TestRunEndToEndSuccess(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{snap: dataSnapshot("CSELK:ALP.N0000")}}}
	sink := &stubSink{ok: true}
	s, _ := newTestSynchronizer(fetcher, sink, &recordingReporter{}, Options{Exchange: "CSELK", MaxRetries: 3})

	summary := s.Run(context.Background(), []models.MCompany{alpha})

	if summary.Attempted != 1 || summary.Succeeded != 1 {
		t.Fatalf("summary %+v", summary)
	}
	want := []upsertCall{{symbol: "ALP.N0000", fields: []string{"total_assets_fy_h"}}}
	if diff := cmp.Diff(want, sink.calls, cmp.AllowUnexported(upsertCall{})); diff != "" {
		t.Fatalf("sink calls (-want +got):\n%s", diff)
	}
}

func TestRunEndToEndNoData(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{err: quote.ErrNoData}}}
	sink := &stubSink{ok: true}
	s, _ := newTestSynchronizer(fetcher, sink, &recordingReporter{}, Options{Exchange: "CSELK", MaxRetries: 1})

	summary := s.Run(context.Background(), []models.MCompany{alpha})

	if summary.Attempted != 1 || summary.Succeeded != 0 || summary.Interrupted {
		t.Fatalf("summary %+v", summary)
	}
	if len(sink.calls) != 0 {
		t.Fatalf("sink called %d times", len(sink.calls))
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &stubFetcher{results: []fetchResult{{snap: dataSnapshot("x")}}}
	s, _ := newTestSynchronizer(fetcher, &stubSink{ok: true}, &recordingReporter{}, Options{MaxRetries: 1, RateLimit: time.Second})
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	summary := s.Run(ctx, []models.MCompany{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}})

	if !summary.Interrupted || summary.Attempted != 1 {
		t.Fatalf("summary %+v", summary)
	}
}

func TestRunEmitsProgressInOrder(t *testing.T) {
	fetcher := &stubFetcher{results: []fetchResult{{err: quote.ErrNoData}, {snap: dataSnapshot("x")}}}
	reporter := &recordingReporter{}
	s, _ := newTestSynchronizer(fetcher, &stubSink{ok: true}, reporter, Options{MaxRetries: 2})

	s.Run(context.Background(), []models.MCompany{alpha})

	var types []models.MProgressType
	for _, e := range reporter.events {
		types = append(types, e.Type)
	}
	want := []models.MProgressType{
		models.ProgressRunStarted,
		models.ProgressUnitStarted,
		models.ProgressAttemptFailed,
		models.ProgressUnitFinished,
		models.ProgressRunFinished,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	finished := reporter.events[3].Unit
	if !finished.Succeeded || finished.Attempts != 2 || finished.LastError != "" {
		t.Fatalf("finished unit %+v", finished)
	}
}
