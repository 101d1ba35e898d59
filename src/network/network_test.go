package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/models"

	"github.com/gorilla/websocket"
)

const testAgent = "Mozilla/5.0 (test)"

func newTestManager() *AsyncNetworkManager {
	log := logger.Discard()
	return NewAsyncNetworkManager(&models.MConfig{}, helpers.NewProxyManager(nil, testAgent, log), log)
}

func TestGetSendsHeadersOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != testAgent {
			t.Errorf("User-Agent = %q", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, err := newTestManager().Get(context.Background(), srv.URL, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "[]" {
		t.Fatalf("body = %q", body)
	}
}

func TestGetReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestManager().Get(context.Background(), srv.URL, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

// -----------------------------------------------------------------------------

func TestWebSocketDialerRequiresURL(t *testing.T) {
	_, err := NewWebSocketDialer(models.MQuoteConfig{}, helpers.NewProxyManager(nil, "", logger.Discard()))
	var cfgErr *helpers.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Origin"); got != DefaultOrigin {
			t.Errorf("Origin = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != testAgent {
			t.Errorf("User-Agent = %q", got)
		}
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, append([]byte("echo:"), msg...))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	cfg := models.MQuoteConfig{WebsocketURL: "wss" + strings.TrimPrefix(srv.URL, "https")}
	dialer, err := NewWebSocketDialer(cfg, helpers.NewProxyManager(nil, testAgent, logger.Discard()))
	if err != nil {
		t.Fatalf("NewWebSocketDialer: %v", err)
	}

	transport, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer transport.Close()

	if err := transport.WriteMessage([]byte("~m~2~m~{}")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	got, err := transport.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(got) != "echo:~m~2~m~{}" {
		t.Fatalf("read %q", got)
	}
	if _, err := transport.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on normal close, got %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Logf("close after peer close: %v", err)
	}
}

func TestWebSocketTransportRejectsOversizedMessage(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		// The client gives up mid-message, so write errors are expected here
		conn.WriteMessage(websocket.TextMessage, make([]byte, MaxReadSize+1))
	}))
	defer srv.Close()

	cfg := models.MQuoteConfig{WebsocketURL: "wss" + strings.TrimPrefix(srv.URL, "https")}
	dialer, err := NewWebSocketDialer(cfg, helpers.NewProxyManager(nil, testAgent, logger.Discard()))
	if err != nil {
		t.Fatalf("NewWebSocketDialer: %v", err)
	}
	transport, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer transport.Close()

	if _, err := transport.ReadMessage(); !errors.Is(err, websocket.ErrReadLimit) {
		t.Fatalf("expected read limit error, got %v", err)
	}
}
