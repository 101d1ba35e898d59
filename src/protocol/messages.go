package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Outbound method names, in the order the upstream expects them.
const (
	MethodSetDataQuality     = "set_data_quality"
	MethodSetAuthToken       = "set_auth_token"
	MethodSetLocale          = "set_locale"
	MethodQuoteCreateSession = "quote_create_session"
	MethodQuoteAddSymbols    = "quote_add_symbols"
	MethodQuoteFastSymbols   = "quote_fast_symbols"

	// MethodQuoteSnapshotDelta tags inbound field updates.
	MethodQuoteSnapshotDelta = "qsd"

	AnonymousAuthToken = "unauthorized_user_token"
	statusOK           = "ok"
)

// ErrNotQuoteDelta marks well-formed messages that carry no field update
// (session acks, errors for other symbols, status != "ok").
var ErrNotQuoteDelta = errors.New("protocol: not a quote snapshot delta")

// -----------------------------------------------------------------------------

// MalformedPayloadError marks a payload that is not valid JSON or does not have
// the expected shape. Receivers skip these segments.
type MalformedPayloadError struct {
	Cause error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("protocol: malformed payload: %v", e.Cause)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// Message is the JSON envelope used in both directions.
type Message struct {
	Method string            `json:"m"`
	Params []json.RawMessage `json:"p"`
}

// outbound mirrors Message with typed params for encoding.
type outbound struct {
	Method string   `json:"m"`
	Params []string `json:"p"`
}

// -----------------------------------------------------------------------------

// QuoteDelta is the body of a "qsd" message: p[1] = {"n": subject, "s": status, "v": fields}.
type QuoteDelta struct {
	Subject string                     `json:"n"`
	Status  string                     `json:"s"`
	Values  map[string]json.RawMessage `json:"v"`
}

// -----------------------------------------------------------------------------

// EncodeMessage renders one framed outbound message.
func EncodeMessage(method string, params ...string) ([]byte, error) {
	if params == nil {
		params = []string{}
	}
	payload, err := json.Marshal(outbound{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	return Encode(payload), nil
}

// -----------------------------------------------------------------------------

// HandshakeSequence returns the framed messages that open a quote session for
// one subject. Order matters: the session must exist before symbols are added.
func HandshakeSequence(sessionID, subject string) ([][]byte, error) {
	steps := []struct {
		method string
		params []string
	}{
		{MethodSetDataQuality, []string{"low"}},
		{MethodSetAuthToken, []string{AnonymousAuthToken}},
		{MethodSetLocale, []string{"en", "US"}},
		{MethodQuoteCreateSession, []string{sessionID}},
		{MethodQuoteAddSymbols, []string{sessionID, subject}},
		{MethodQuoteFastSymbols, []string{sessionID, subject}},
	}

	out := make([][]byte, 0, len(steps))
	for _, step := range steps {
		msg, err := EncodeMessage(step.method, step.params...)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// DecodeQuoteDelta parses one frame payload. It returns ErrNotQuoteDelta for
// valid messages that carry no update and *MalformedPayloadError when the JSON
// cannot be decoded into the expected shape.
func DecodeQuoteDelta(payload []byte) (QuoteDelta, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return QuoteDelta{}, malformed(err)
	}
	if msg.Method != MethodQuoteSnapshotDelta || len(msg.Params) < 2 {
		return QuoteDelta{}, ErrNotQuoteDelta
	}

	var delta QuoteDelta
	if err := json.Unmarshal(msg.Params[1], &delta); err != nil {
		return QuoteDelta{}, malformed(err)
	}
	if delta.Status != statusOK {
		return QuoteDelta{}, ErrNotQuoteDelta
	}
	return delta, nil
}

// -----------------------------------------------------------------------------

// malformed wraps only JSON decode failures; anything else is returned as is.
func malformed(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &MalformedPayloadError{Cause: err}
	}
	return err
}
