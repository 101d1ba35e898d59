package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"financials-sync/src/logger"
	"financials-sync/src/models"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

func newTestServer() *StatusServer {
	return NewStatusServer(&models.MConfig{LogLevel: "INFO"}, logger.Discard())
}

func runEvents(s *StatusServer) {
	alpha := &models.MCompany{ID: 1, Name: "Alpha", Symbol: "ALP.N0000"}
	beta := &models.MCompany{ID: 2, Name: "Beta", Symbol: "BET.N0000"}
	s.Report(models.MProgressEvent{Type: models.ProgressRunStarted, Total: 2})
	s.Report(models.MProgressEvent{Type: models.ProgressUnitStarted, Index: 0, Total: 2, Company: alpha, Unit: &models.MSyncUnit{Symbol: "ALP.N0000"}})
	s.Report(models.MProgressEvent{Type: models.ProgressUnitFinished, Index: 0, Total: 2, Company: alpha, Unit: &models.MSyncUnit{Symbol: "ALP.N0000", Attempts: 1, Succeeded: true}})
	s.Report(models.MProgressEvent{Type: models.ProgressUnitStarted, Index: 1, Total: 2, Company: beta, Unit: &models.MSyncUnit{Symbol: "BET.N0000"}})
	s.Report(models.MProgressEvent{Type: models.ProgressUnitFinished, Index: 1, Total: 2, Company: beta, Unit: &models.MSyncUnit{Symbol: "BET.N0000", Attempts: 3, LastError: "no data"}})
}

// -----------------------------------------------------------------------------

func TestProgressEndpointTracksRun(t *testing.T) {
	s := newTestServer()
	runEvents(s)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var got models.MRunStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.MRunStatus{
		Running:   true,
		Total:     2,
		Processed: 2,
		Succeeded: 1,
		Failures:  []models.MSyncUnit{{Symbol: "BET.N0000", Attempts: 3, LastError: "no data"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("progress (-want +got):\n%s", diff)
	}

	summary := &models.MSyncSummary{Attempted: 2, Succeeded: 1}
	s.Report(models.MProgressEvent{Type: models.ProgressRunFinished, Total: 2, Summary: summary})
	if snap := s.Snapshot(); snap.Running || snap.LastSummary == nil || snap.LastSummary.Attempted != 2 {
		t.Fatalf("after run finished: %+v", snap)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestWebSocketReceivesStatusThenProgress(t *testing.T) {
	s := newTestServer()
	go s.handleWebsockets()
	defer s.Stop(context.Background())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial models.MStatusMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if initial.Type != models.MessageStatus || initial.Status == nil {
		t.Fatalf("initial message %+v", initial)
	}

	s.Report(models.MProgressEvent{Type: models.ProgressRunStarted, Total: 7})

	var progress models.MStatusMessage
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.Type != models.MessageProgress || progress.Event == nil || progress.Event.Total != 7 {
		t.Fatalf("progress message %+v", progress)
	}

	if err := conn.WriteJSON(models.MClientCommand{Command: "status"}); err != nil {
		t.Fatalf("write command: %v", err)
	}
	var status models.MStatusMessage
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Status == nil || !status.Status.Running || status.Status.Total != 7 {
		t.Fatalf("status message %+v", status)
	}
}

func TestStopEndsStart(t *testing.T) {
	for _, stopFirst := range []bool{false, true} {
		s := NewStatusServer(&models.MConfig{LogLevel: "INFO", Host: "127.0.0.1", Port: 0}, logger.Discard())
		if stopFirst {
			if err := s.Stop(context.Background()); err != nil {
				t.Fatalf("Stop before Start: %v", err)
			}
		}

		done := make(chan error, 1)
		go func() { done <- s.Start() }()
		if !stopFirst {
			time.Sleep(50 * time.Millisecond)
			if err := s.Stop(context.Background()); err != nil {
				t.Fatalf("Stop: %v", err)
			}
		}

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("stopFirst=%v: Start returned %v", stopFirst, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("stopFirst=%v: Start did not return after Stop", stopFirst)
		}
	}
}
