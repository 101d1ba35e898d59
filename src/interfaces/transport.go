package interfaces

import "context"

// -----------------------------------------------------------------------------
// ITransport is one bidirectional message connection (a websocket in production).
// ReadMessage returns io.EOF when the peer closes the connection normally.
// Close may be called concurrently with ReadMessage to unblock it.
// -----------------------------------------------------------------------------

type ITransport interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// -----------------------------------------------------------------------------
// ITransportDialer opens a fresh transport per session.
// -----------------------------------------------------------------------------

type ITransportDialer interface {
	Dial(ctx context.Context) (ITransport, error)
}
