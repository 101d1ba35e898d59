// Package quote runs one quote stream session per subject and collects the
// fundamentals it streams back into a snapshot.
package quote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/metrics"
	"financials-sync/src/models"
	"financials-sync/src/protocol"
	"financials-sync/src/snapshot"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned when a session ended without merging a single field.
var ErrNoData = errors.New("quote: session produced no data")

const (
	defaultSessionTimeout = 15 * time.Second
	sessionIDLength       = 12
)

// -----------------------------------------------------------------------------
// Session state
// -----------------------------------------------------------------------------

type SessionState int

const (
	StateOpening SessionState = iota
	StateSubscribing
	StateAccumulating
	StateComplete
	StateTimedOut
	StateErrored
)

func (s SessionState) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateComplete:
		return "COMPLETE"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// -----------------------------------------------------------------------------

// Options controls a single session.
type Options struct {
	Timeout              time.Duration
	CompleteOnFirstDelta bool
	SendInterval         time.Duration
}

// OptionsFromConfig converts the quote config section.
func OptionsFromConfig(cfg models.MQuoteConfig) Options {
	opts := Options{
		Timeout:              time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		CompleteOnFirstDelta: cfg.CompleteOnFirstDelta,
		SendInterval:         time.Duration(cfg.SendIntervalMillis) * time.Millisecond,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSessionTimeout
	}
	return opts
}

// -----------------------------------------------------------------------------

// QuoteClient opens a fresh transport and session token for every call.
type QuoteClient struct {
	dialer interfaces.ITransportDialer
	opts   Options
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewQuoteClient(cfg models.MQuoteConfig, dialer interfaces.ITransportDialer, log *logger.Logger) (*QuoteClient, error) {
	if strings.TrimSpace(cfg.WebsocketURL) == "" {
		return nil, helpers.NewConfigurationError("quote websocket URL is not configured (TRADINGVIEW_WEBSOCKET_URL)")
	}
	if dialer == nil {
		return nil, helpers.NewConfigurationError("quote client requires a transport dialer")
	}
	return &QuoteClient{
		dialer: dialer,
		opts:   OptionsFromConfig(cfg),
		logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

// NewSessionID returns a random quote session token, e.g. "qs_3f9c0a1b2d4e".
func NewSessionID() string {
	return "qs_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDLength]
}

// -----------------------------------------------------------------------------

// receiveResult is the receiver's one-shot hand-off to the session owner.
// A nil err means the receiver stopped on the first merged delta.
type receiveResult struct {
	err error
}

// -----------------------------------------------------------------------------

// FetchSnapshot runs one session for subject. It returns the accumulated
// snapshot, ErrNoData when nothing was merged, or a TransportError.
func (c *QuoteClient) FetchSnapshot(ctx context.Context, subject string) (*snapshot.Snapshot, error) {
	started := time.Now()
	state := StateOpening
	sessionID := NewSessionID()

	finish := func(s SessionState) {
		state = s
		metrics.SessionsTotal.WithLabelValues(s.String()).Inc()
		metrics.SessionDuration.Observe(time.Since(started).Seconds())
		c.logger.Debug("Session %s for %s ended %s after %s", sessionID, subject, s, time.Since(started).Round(time.Millisecond))
	}

	handshake, err := protocol.HandshakeSequence(sessionID, subject)
	if err != nil {
		finish(StateErrored)
		return nil, err
	}

	sessionCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, err := c.dialer.Dial(sessionCtx)
	if err != nil {
		finish(StateErrored)
		return nil, helpers.NewTransportError(fmt.Sprintf("connect for %s", subject), err)
	}
	defer conn.Close()

	state = StateSubscribing
	snap := snapshot.New(subject)
	results := make(chan receiveResult, 1)

	g, gctx := errgroup.WithContext(sessionCtx)
	g.Go(func() error {
		return c.send(gctx, conn, handshake)
	})
	g.Go(func() error {
		results <- c.receive(conn, snap)
		return nil
	})
	state = StateAccumulating

	// Wait for the receiver, or force it out by closing the transport
	var res receiveResult
	var stopCause error
	select {
	case res = <-results:
	case <-gctx.Done():
		stopCause = sessionCtx.Err()
		conn.Close()
		res = <-results
	}
	cancel()
	conn.Close()
	sendErr := g.Wait()

	switch {
	case res.err == nil || errors.Is(res.err, io.EOF):
		finish(StateComplete)
	case errors.Is(stopCause, context.DeadlineExceeded):
		finish(StateTimedOut)
	case errors.Is(stopCause, context.Canceled):
		finish(StateErrored)
		return nil, ctx.Err()
	case sendErr != nil:
		finish(StateErrored)
		return nil, sendErr
	default:
		finish(StateErrored)
		return nil, helpers.NewTransportError(fmt.Sprintf("read for %s", subject), res.err)
	}

	if snap.IsEmpty() {
		return nil, ErrNoData
	}
	c.logger.Debug("Session %s for %s collected %d fields (%s)", sessionID, subject, len(snap.SetFields()), state)
	return snap, nil
}

// -----------------------------------------------------------------------------

// send writes the handshake in order, pacing it when configured. Write
// failures after the session stopped are expected and ignored.
func (c *QuoteClient) send(ctx context.Context, conn interfaces.ITransport, messages [][]byte) error {
	for i, msg := range messages {
		if i > 0 && c.opts.SendInterval > 0 {
			timer := time.NewTimer(c.opts.SendInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := conn.WriteMessage(msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return helpers.NewTransportError(fmt.Sprintf("send handshake message %d", i+1), err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// receive owns the decoder and the snapshot until it returns.
func (c *QuoteClient) receive(conn interfaces.ITransport, snap *snapshot.Snapshot) receiveResult {
	var decoder protocol.Decoder
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return receiveResult{err: err}
		}
		merged := c.consume(&decoder, snap, data)
		if merged > 0 && c.opts.CompleteOnFirstDelta {
			return receiveResult{}
		}
	}
}

// -----------------------------------------------------------------------------

// consume decodes one transport message and merges every quote delta for the
// session's subject. It returns the number of fields written.
func (c *QuoteClient) consume(decoder *protocol.Decoder, snap *snapshot.Snapshot, data []byte) int {
	frames, state := decoder.Feed(data)
	if state == protocol.Unframed {
		metrics.UnframedMessages.Inc()
	}

	merged := 0
	for _, payload := range frames {
		delta, err := protocol.DecodeQuoteDelta(payload)
		if err != nil {
			var malformed *protocol.MalformedPayloadError
			if errors.As(err, &malformed) {
				metrics.MalformedSegments.Inc()
				c.logger.Debug("Skipping malformed segment for %s: %v", snap.Subject, err)
			}
			continue
		}
		if delta.Subject != "" && delta.Subject != snap.Subject {
			continue
		}
		merged += snap.Merge(delta.Values)
	}
	if merged > 0 {
		metrics.FieldsMerged.Add(float64(merged))
	}
	return merged
}
