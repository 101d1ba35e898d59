package interfaces

import (
	"context"

	"financials-sync/src/models"
	"financials-sync/src/snapshot"
)

// -----------------------------------------------------------------------------
// IDirectorySource supplies the companies to synchronize.
// -----------------------------------------------------------------------------

type IDirectorySource interface {

	// FetchCompanies returns the directory sorted by symbol.
	FetchCompanies(ctx context.Context) ([]models.MCompany, error)
}

// -----------------------------------------------------------------------------
// ISnapshotFetcher runs one quote session for a subject identifier.
// -----------------------------------------------------------------------------

type ISnapshotFetcher interface {

	// FetchSnapshot returns a non-empty snapshot, or an error when the session
	// produced no data or failed. Errors are never fatal to the caller.
	FetchSnapshot(ctx context.Context, subject string) (*snapshot.Snapshot, error)
}
