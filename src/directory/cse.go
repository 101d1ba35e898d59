// Package directory fetches the list of listed companies to synchronize.
package directory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
)

// CSEDirectory reads the exchange's "all company codes" endpoint.
type CSEDirectory struct {
	url     string
	network interfaces.INetworkManager
	logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewCSEDirectory(cfg models.MDirectoryConfig, network interfaces.INetworkManager, log *logger.Logger) (*CSEDirectory, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, helpers.NewConfigurationError("company directory URL is not configured (CSE_ALL_COMPANY_CODES_API_URL)")
	}
	return &CSEDirectory{url: cfg.URL, network: network, logger: log}, nil
}

// -----------------------------------------------------------------------------

// FetchCompanies performs one GET and returns the entries sorted by symbol.
// There is no retry here; the caller aborts the run on error.
func (d *CSEDirectory) FetchCompanies(ctx context.Context) ([]models.MCompany, error) {
	body, err := d.network.Get(ctx, d.url, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, helpers.NewDirectoryError("fetch company codes", err)
	}

	var companies []models.MCompany
	if err := json.Unmarshal(body, &companies); err != nil {
		return nil, helpers.NewDirectoryError("decode company codes", err)
	}

	sort.SliceStable(companies, func(i, j int) bool {
		return companies[i].Symbol < companies[j].Symbol
	})

	d.logger.Info("Fetched %d company codes", len(companies))
	return companies, nil
}
