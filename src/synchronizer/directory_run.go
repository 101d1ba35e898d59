package synchronizer

import (
	"context"

	"financials-sync/src/interfaces"
	"financials-sync/src/models"
)

// -----------------------------------------------------------------------------

// SyncDirectory fetches the company list from dir and runs it. With register
// set, the directory entries are written to the sink first so updates can
// match them. A directory failure aborts before any session is opened.
func (s *Synchronizer) SyncDirectory(ctx context.Context, dir interfaces.IDirectorySource, register bool) (models.MSyncSummary, error) {
	s.logger.Info("Fetching company directory...")
	companies, err := dir.FetchCompanies(ctx)
	if err != nil {
		return models.MSyncSummary{}, err
	}
	s.logger.Info("Directory returned %d companies", len(companies))

	if register && len(companies) > 0 {
		if err := s.sink.RegisterCompanies(ctx, companies); err != nil {
			s.logger.Warning("Company registration failed: %v", err)
		}
	}

	return s.Run(ctx, companies), nil
}
