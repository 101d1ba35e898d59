package quote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/protocol"

	"github.com/google/go-cmp/cmp"
)

// fakeTransport replays inbound messages, then either blocks until closed
// (end == nil) or returns end.
type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte

	inbound chan []byte
	end     error

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport(end error, messages ...[]byte) *fakeTransport {
	inbound := make(chan []byte, len(messages))
	for _, m := range messages {
		inbound <- m
	}
	close(inbound)
	return &fakeTransport{inbound: inbound, end: end, closed: make(chan struct{})}
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-f.closed:
		return errors.New("write on closed transport")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	if msg, ok := <-f.inbound; ok {
		return msg, nil
	}
	if f.end != nil {
		return nil, f.end
	}
	<-f.closed
	return nil, errors.New("read on closed transport")
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

type fakeDialer struct {
	transport *fakeTransport
	err       error
	dials     int
}

func (d *fakeDialer) Dial(ctx context.Context) (interfaces.ITransport, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

// -----------------------------------------------------------------------------

const testSubject = "CSELK:HAYL.N0000"

func qsdFrame(t *testing.T, subject string, values map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"m": "qsd",
		"p": []any{"qs_test", map[string]any{"n": subject, "s": "ok", "v": values}},
	})
	if err != nil {
		t.Fatalf("marshal delta: %v", err)
	}
	return protocol.Encode(body)
}

func newTestClient(t *testing.T, dialer interfaces.ITransportDialer, timeout time.Duration, firstDelta bool) *QuoteClient {
	t.Helper()
	c, err := NewQuoteClient(models.MQuoteConfig{WebsocketURL: "wss://example.invalid/socket"}, dialer, logger.Discard())
	if err != nil {
		t.Fatalf("NewQuoteClient: %v", err)
	}
	c.opts.Timeout = timeout
	c.opts.CompleteOnFirstDelta = firstDelta
	return c
}

// -----------------------------------------------------------------------------

func TestNewQuoteClientRequiresURL(t *testing.T) {
	_, err := NewQuoteClient(models.MQuoteConfig{}, &fakeDialer{}, logger.Discard())
	var cfgErr *helpers.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewSessionID(t *testing.T) {
	pattern := regexp.MustCompile(`^qs_[a-z0-9]{12}$`)
	a, b := NewSessionID(), NewSessionID()
	if !pattern.MatchString(a) || !pattern.MatchString(b) {
		t.Fatalf("unexpected session ids %q %q", a, b)
	}
	if a == b {
		t.Fatalf("session ids repeat: %q", a)
	}
}

func TestSubjectMapping(t *testing.T) {
	if got := SubjectFor("CSELK", "HAYL.N0000"); got != testSubject {
		t.Fatalf("SubjectFor = %q", got)
	}
	if got := SubjectFor("CSELK", testSubject); got != testSubject {
		t.Fatalf("SubjectFor already qualified = %q", got)
	}
	if got := SymbolOf(testSubject); got != "HAYL.N0000" {
		t.Fatalf("SymbolOf = %q", got)
	}
}

func TestHandshakeOrderAndToken(t *testing.T) {
	transport := newFakeTransport(nil, qsdFrame(t, testSubject, map[string]any{"total_assets_fy_h": []int{1000, 900}}))
	client := newTestClient(t, &fakeDialer{transport: transport}, 200*time.Millisecond, false)

	if _, err := client.FetchSnapshot(context.Background(), testSubject); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}

	var methods []string
	var params [][]string
	for _, raw := range transport.messages() {
		res := protocol.DecodeAll(raw)
		if len(res.Frames) != 1 {
			t.Fatalf("expected one frame per message, got %d", len(res.Frames))
		}
		var msg struct {
			M string   `json:"m"`
			P []string `json:"p"`
		}
		if err := json.Unmarshal(res.Frames[0], &msg); err != nil {
			t.Fatalf("decode sent message: %v", err)
		}
		methods = append(methods, msg.M)
		params = append(params, msg.P)
	}

	want := []string{"set_data_quality", "set_auth_token", "set_locale", "quote_create_session", "quote_add_symbols", "quote_fast_symbols"}
	if diff := cmp.Diff(want, methods); diff != "" {
		t.Fatalf("handshake order (-want +got):\n%s", diff)
	}
	token := params[3][0]
	if params[4][0] != token || params[5][0] != token {
		t.Fatalf("session token differs across messages: %v", params[3:])
	}
	if params[4][1] != testSubject || params[5][1] != testSubject {
		t.Fatalf("subject missing from subscribe messages: %v", params[4:])
	}
}

func TestFetchSnapshotRunsUntilTimeout(t *testing.T) {
	transport := newFakeTransport(nil,
		qsdFrame(t, testSubject, map[string]any{"total_assets_fy_h": []int{1000, 900}}),
		qsdFrame(t, testSubject, map[string]any{"web_site_url": "https://hayleys.com"}),
	)
	client := newTestClient(t, &fakeDialer{transport: transport}, 150*time.Millisecond, false)

	started := time.Now()
	snap, err := client.FetchSnapshot(context.Background(), testSubject)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 150*time.Millisecond {
		t.Fatalf("returned after %s, before the timeout", elapsed)
	}
	if diff := cmp.Diff([]string{"web_site_url", "total_assets_fy_h"}, snap.SetFields()); diff != "" {
		t.Fatalf("set fields (-want +got):\n%s", diff)
	}
}

func TestFetchSnapshotCompletesOnFirstDelta(t *testing.T) {
	transport := newFakeTransport(nil, qsdFrame(t, testSubject, map[string]any{"total_assets_fy_h": []int{1000, 900}}))
	client := newTestClient(t, &fakeDialer{transport: transport}, 5*time.Second, true)

	started := time.Now()
	snap, err := client.FetchSnapshot(context.Background(), testSubject)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("first-delta policy waited %s", elapsed)
	}
	if got := snap.TotalAssetsFY.String(); got != "[1000,900]" {
		t.Fatalf("total_assets_fy_h = %s", got)
	}
}

func TestFetchSnapshotNoData(t *testing.T) {
	heartbeat := protocol.Encode([]byte("~h~1"))
	transport := newFakeTransport(nil, heartbeat)
	client := newTestClient(t, &fakeDialer{transport: transport}, 50*time.Millisecond, false)

	snap, err := client.FetchSnapshot(context.Background(), testSubject)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}
}

func TestFetchSnapshotReadErrorIsTransportError(t *testing.T) {
	transport := newFakeTransport(errors.New("connection reset by peer"))
	client := newTestClient(t, &fakeDialer{transport: transport}, time.Second, false)

	_, err := client.FetchSnapshot(context.Background(), testSubject)
	var transportErr *helpers.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestFetchSnapshotDialError(t *testing.T) {
	client := newTestClient(t, &fakeDialer{err: errors.New("no such host")}, time.Second, false)

	_, err := client.FetchSnapshot(context.Background(), testSubject)
	var transportErr *helpers.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestFetchSnapshotSkipsMalformedSegment(t *testing.T) {
	message := append(protocol.Encode([]byte(`{"m":"qsd","p":[`)),
		qsdFrame(t, testSubject, map[string]any{"net_debt_fy_h": []int{5, 4}})...)
	transport := newFakeTransport(io.EOF, message)
	client := newTestClient(t, &fakeDialer{transport: transport}, time.Second, false)

	snap, err := client.FetchSnapshot(context.Background(), testSubject)
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if got := snap.NetDebtFY.String(); got != "[5,4]" {
		t.Fatalf("net_debt_fy_h = %s", got)
	}
}

func TestFetchSnapshotIgnoresOtherSubjects(t *testing.T) {
	transport := newFakeTransport(io.EOF, qsdFrame(t, "CSELK:JKH.N0000", map[string]any{"net_debt_fy_h": []int{1}}))
	client := newTestClient(t, &fakeDialer{transport: transport}, time.Second, false)

	if _, err := client.FetchSnapshot(context.Background(), testSubject); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestFetchSnapshotHonoursCancellation(t *testing.T) {
	transport := newFakeTransport(nil)
	client := newTestClient(t, &fakeDialer{transport: transport}, 5*time.Second, false)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := client.FetchSnapshot(ctx, testSubject)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSessionStateString(t *testing.T) {
	if StateTimedOut.String() != "TIMED_OUT" || SessionState(42).String() != "UNKNOWN" {
		t.Fatal("unexpected state names")
	}
}
