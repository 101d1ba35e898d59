package network

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"sync"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/models"
	"financials-sync/src/protocol"

	"github.com/gorilla/websocket"
)

const (
	DefaultOrigin    = "https://www.tradingview.com"
	handshakeTimeout = 10 * time.Second
	closeGracePeriod = time.Second

	// MaxReadSize caps one inbound websocket message. A message may carry
	// several frames, each at most protocol.MaxFrameSize.
	MaxReadSize = 2 * protocol.MaxFrameSize
)

// -----------------------------------------------------------------------------

// WebSocketDialer opens quote stream connections. Certificate verification is
// disabled for the upstream endpoint.
type WebSocketDialer struct {
	url     string
	origin  string
	proxies interfaces.IProxyManager
	dialer  *websocket.Dialer
}

// -----------------------------------------------------------------------------

func NewWebSocketDialer(cfg models.MQuoteConfig, proxies interfaces.IProxyManager) (*WebSocketDialer, error) {
	if cfg.WebsocketURL == "" {
		return nil, helpers.NewConfigurationError("quote websocket URL is not configured (TRADINGVIEW_WEBSOCKET_URL)")
	}

	origin := cfg.Origin
	if origin == "" {
		origin = DefaultOrigin
	}

	d := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		Proxy:            proxies.ProxyURL,
	}

	return &WebSocketDialer{
		url:     cfg.WebsocketURL,
		origin:  origin,
		proxies: proxies,
		dialer:  d,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *WebSocketDialer) Dial(ctx context.Context) (interfaces.ITransport, error) {
	header := http.Header{}
	header.Set("Origin", d.origin)
	header.Set("User-Agent", d.proxies.GetUserAgent())

	conn, resp, err := d.dialer.DialContext(ctx, d.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxReadSize)
	return &WebSocketTransport{conn: conn}, nil
}

// -----------------------------------------------------------------------------
// WebSocketTransport
// -----------------------------------------------------------------------------

// WebSocketTransport adapts a gorilla connection to ITransport. Reads and
// writes may run on different goroutines; Close may be called from any.
type WebSocketTransport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// -----------------------------------------------------------------------------

func (t *WebSocketTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// -----------------------------------------------------------------------------

// ReadMessage returns io.EOF when the peer closes normally.
func (t *WebSocketTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// -----------------------------------------------------------------------------

func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(closeGracePeriod)
		// Best effort; the peer may already be gone
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
