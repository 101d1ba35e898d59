package interfaces

import (
	"context"

	"financials-sync/src/models"
	"financials-sync/src/snapshot"
)

// -----------------------------------------------------------------------------
// ISnapshotSink defines the contract for the company document store.
// -----------------------------------------------------------------------------

type ISnapshotSink interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates the schema if needed.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Upsert merges the snapshot's present fields into the company keyed by symbol.
	// It returns false (and no error) when no company matches the symbol.
	Upsert(ctx context.Context, symbol string, snap *snapshot.Snapshot) (bool, error)

	// -----------------------------------------------------------------------------

	// RegisterCompanies inserts or refreshes directory entries.
	RegisterCompanies(ctx context.Context, companies []models.MCompany) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
