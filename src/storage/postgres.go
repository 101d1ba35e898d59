package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/snapshot"

	_ "github.com/lib/pq"
)

var schemaNameRegex = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if strings.TrimSpace(cfg.Storage.DBConnectionString) == "" {
		return nil, helpers.NewConfigurationError("store connection string is not configured (STORE_CONNECTION_STRING)")
	}

	// Schema follows the service name, or the executable name when unset
	name := cfg.Name
	if name == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	}

	return &PostgresDB{
		Config: cfg,
		Schema: schemaNameRegex.ReplaceAllString(name, "_"),
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."companies"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewStoreError("open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewStoreError("ping postgres", err)
	}

	d.DB = db

	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewStoreError(fmt.Sprintf("create schema %s", d.Schema), err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

// createTables never drops: company documents outlive a run.
func (d *PostgresDB) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER,
			name TEXT,
			symbol TEXT PRIMARY KEY,
			trading_view_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			last_updated TIMESTAMPTZ
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStoreError("create companies table", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Upsert merges the snapshot into the company's JSONB document. Keys not in
// the snapshot keep their stored values. Unknown symbols return false.
func (d *PostgresDB) Upsert(ctx context.Context, symbol string, snap *snapshot.Snapshot) (bool, error) {
	if snap.IsEmpty() {
		d.Logger.Warning("No data provided for %s", symbol)
		return false, nil
	}

	now := time.Now().UTC()
	doc, err := BuildDocument(snap, now)
	if err != nil {
		return false, helpers.NewStoreError("build document", err)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return false, helpers.NewStoreError("encode document", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET trading_view_data = COALESCE(trading_view_data, '{}'::jsonb) || $1::jsonb,
			last_updated = $2
		WHERE symbol = $3
	`, d.table())

	res, err := d.DB.ExecContext(ctx, query, string(payload), now, symbol)
	if err != nil {
		return false, helpers.NewStoreError(fmt.Sprintf("update %s", symbol), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, helpers.NewStoreError(fmt.Sprintf("update %s", symbol), err)
	}
	if n == 0 {
		d.Logger.Warning("No matching company found for symbol %s", symbol)
		return false, nil
	}
	return true, nil
}

// -----------------------------------------------------------------------------

// Document returns the stored document for symbol, or nil when unknown.
func (d *PostgresDB) Document(ctx context.Context, symbol string) (Document, error) {
	var raw []byte
	err := d.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT trading_view_data FROM %s WHERE symbol = $1`, d.table()), symbol).Scan(&raw)
	return decodeDocument(raw, err)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
