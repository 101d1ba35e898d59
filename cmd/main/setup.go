package main

import (
	"context"

	"financials-sync/src/directory"
	"financials-sync/src/helpers"
	"financials-sync/src/interfaces"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/network"
	"financials-sync/src/quote"
	"financials-sync/src/storage"
)

// -----------------------------------------------------------------------------

// components bundles everything one synchronization run needs.
type components struct {
	directory interfaces.IDirectorySource
	fetcher   interfaces.ISnapshotFetcher
	sink      interfaces.ISnapshotSink
}

// -----------------------------------------------------------------------------

// setupNetwork builds the proxy pool and the HTTP manager sharing it
func setupNetwork(config *models.MConfig) (*helpers.ProxyManager, interfaces.INetworkManager) {
	proxyLogger := logger.NewLogger(config, "ProxyManager")
	proxies := helpers.NewProxyManager(config.Network.Proxies, config.Quote.UserAgent, proxyLogger)

	networkLogger := logger.NewLogger(config, "NetworkManager")
	return proxies, network.NewAsyncNetworkManager(config, proxies, networkLogger)
}

// -----------------------------------------------------------------------------

// setupQuoteClient wires the websocket dialer into the session client
func setupQuoteClient(config *models.MConfig, proxies interfaces.IProxyManager) (*quote.QuoteClient, error) {
	dialer, err := network.NewWebSocketDialer(config.Quote, proxies)
	if err != nil {
		return nil, err
	}
	return quote.NewQuoteClient(config.Quote, dialer, logger.NewLogger(config, "QuoteClient"))
}

// -----------------------------------------------------------------------------

// setupDatabase opens the configured store and creates its schema
func setupDatabase(ctx context.Context, config *models.MConfig) (interfaces.ISnapshotSink, error) {
	dbLogger := logger.NewLogger(config, "Storage")
	sink, err := storage.NewSnapshotSink(config, dbLogger)
	if err != nil {
		return nil, err
	}
	if err := sink.Initialize(ctx); err != nil {
		sink.Close()
		return nil, err
	}
	return sink, nil
}

// -----------------------------------------------------------------------------

// setupComponents builds every collaborator of a run. Any ConfigurationError
// returned here is fatal at startup.
func setupComponents(ctx context.Context, config *models.MConfig) (*components, error) {
	proxies, networkManager := setupNetwork(config)

	dir, err := directory.NewCSEDirectory(config.Directory, networkManager, logger.NewLogger(config, "Directory"))
	if err != nil {
		return nil, err
	}

	client, err := setupQuoteClient(config, proxies)
	if err != nil {
		return nil, err
	}

	sink, err := setupDatabase(ctx, config)
	if err != nil {
		return nil, err
	}

	return &components{directory: dir, fetcher: client, sink: sink}, nil
}
