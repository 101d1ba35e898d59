package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for plain HTTP requests.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a single GET request with the given headers.
	// Returns the response body for 2xx responses, an error otherwise.
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}
