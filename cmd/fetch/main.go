// Command fetch runs one quote session for a single company and prints what
// came back, optionally merging it into the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"financials-sync/src/config"
	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/network"
	"financials-sync/src/quote"
	"financials-sync/src/snapshot"
	"financials-sync/src/storage"

	"github.com/spf13/pflag"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := pflag.StringP("config", "c", "config/default.yaml", "path to config file")
	subject := pflag.StringP("symbol", "s", "CSELK:AAF.N0000", "exchange-qualified subject to fetch")
	store := pflag.Bool("store", false, "merge the fetched snapshot into the configured store")
	pflag.Parse()

	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(config, "fetch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxies := helpers.NewProxyManager(config.Network.Proxies, config.Quote.UserAgent, appLogger.Named("ProxyManager"))
	dialer, err := network.NewWebSocketDialer(config.Quote, proxies)
	if err != nil {
		appLogger.Critical("Invalid configuration: %v", err)
	}
	client, err := quote.NewQuoteClient(config.Quote, dialer, appLogger.Named("QuoteClient"))
	if err != nil {
		appLogger.Critical("Invalid configuration: %v", err)
	}

	appLogger.Info("Fetching %s (timeout %ds)", *subject, config.Quote.SessionTimeoutSeconds)
	snap, err := client.FetchSnapshot(ctx, *subject)
	switch {
	case errors.Is(err, quote.ErrNoData):
		snapshot.Print(os.Stdout, nil)
		os.Exit(2)
	case err != nil:
		appLogger.Error("Session failed: %v", err)
		os.Exit(1)
	}
	snapshot.Print(os.Stdout, snap)

	if !*store {
		return
	}

	sink, err := storage.NewSnapshotSink(config.MConfig, appLogger.Named("Storage"))
	if err != nil {
		appLogger.Critical("Invalid configuration: %v", err)
	}
	defer sink.Close()
	if err := sink.Initialize(ctx); err != nil {
		appLogger.Error("Store initialization failed: %v", err)
		return
	}

	symbol := quote.SymbolOf(*subject)
	updated, err := sink.Upsert(ctx, symbol, snap)
	switch {
	case err != nil:
		appLogger.Error("Store update for %s failed: %v", symbol, err)
	case !updated:
		appLogger.Warning("No company with symbol %s in store, nothing updated", symbol)
	default:
		appLogger.Info("Stored %d fields for %s", len(snap.SetFields()), symbol)
	}
}
