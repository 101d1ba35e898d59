package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/logger"
	"financials-sync/src/models"
	"financials-sync/src/snapshot"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if strings.TrimSpace(cfg.Storage.DBPath) == "" {
		return nil, helpers.NewConfigurationError("sqlite db_path is not configured")
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return helpers.NewStoreError("open sqlite", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewStoreError("ping sqlite", err)
	}

	// One writer; sessions are sequential anyway
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS companies (
			id INTEGER,
			name TEXT,
			symbol TEXT PRIMARY KEY,
			trading_view_data TEXT NOT NULL DEFAULT '{}',
			last_updated TEXT
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewStoreError("create companies table", err)
	}

	d.Logger.Info("SQLite store initialized at %s", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

// Upsert merges the snapshot into the stored JSON document with json_patch.
func (d *AsyncSQLiteDB) Upsert(ctx context.Context, symbol string, snap *snapshot.Snapshot) (bool, error) {
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

	res, err := d.DB.ExecContext(ctx, `
		UPDATE companies
		SET trading_view_data = json_patch(COALESCE(trading_view_data, '{}'), ?),
			last_updated = ?
		WHERE symbol = ?
	`, string(payload), now.Format(time.RFC3339), symbol)
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

func (d *AsyncSQLiteDB) RegisterCompanies(ctx context.Context, companies []models.MCompany) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewStoreError("begin register", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO companies (id, name, symbol)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			id = excluded.id,
			name = excluded.name
	`)
	if err != nil {
		return helpers.NewStoreError("prepare register", err)
	}
	defer stmt.Close()

	for _, c := range companies {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Symbol); err != nil {
			return helpers.NewStoreError(fmt.Sprintf("register %s", c.Symbol), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewStoreError("commit register", err)
	}
	d.Logger.Info("Registered %d companies", len(companies))
	return nil
}

// -----------------------------------------------------------------------------

// Document returns the stored document for symbol, or nil when unknown.
func (d *AsyncSQLiteDB) Document(ctx context.Context, symbol string) (Document, error) {
	var raw string
	err := d.DB.QueryRowContext(ctx, `SELECT trading_view_data FROM companies WHERE symbol = ?`, symbol).Scan(&raw)
	return decodeDocument([]byte(raw), err)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func decodeDocument(raw []byte, err error) (Document, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewStoreError("read document", err)
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, helpers.NewStoreError("decode document", err)
	}
	return doc, nil
}
