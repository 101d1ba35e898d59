package interfaces

import "financials-sync/src/models"

// -----------------------------------------------------------------------------
// IProgressReporter receives synchronizer progress as it happens.
// Implementations must not block the caller for long.
// -----------------------------------------------------------------------------

type IProgressReporter interface {
	Report(event models.MProgressEvent)
}
