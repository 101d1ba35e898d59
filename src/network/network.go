package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
)

const defaultRequestTimeout = 30 * time.Second

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: bad status %d", e.URL, e.StatusCode)
}

// -----------------------------------------------------------------------------

type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, proxies interfaces.IProxyManager, log *logger.Logger) *AsyncNetworkManager {
	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: proxies,
		Logger:       log,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		Proxy:           nm.ProxyManager.ProxyURL,
	}

	timeout := defaultRequestTimeout
	if nm.Config != nil && nm.Config.Network.RequestTimeout > 0 {
		timeout = time.Duration(nm.Config.Network.RequestTimeout) * time.Second
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------

// Get performs a single GET request. Callers own any retry policy; a blocked
// response only rotates the proxy for the next call.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		nm.Logger.Warning("Request to %s failed: %v", urlStr, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		nm.Logger.Info("Request blocked (%d). Rotating proxy.", resp.StatusCode)
		nm.ProxyManager.RotateProxy()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}
