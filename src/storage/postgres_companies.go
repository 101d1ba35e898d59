package storage

import (
	"context"
	"fmt"
	"time"

	"financials-sync/src/helpers"
	"financials-sync/src/models"
)

// RegisterCompanies inserts directory entries, refreshing id and name of
// symbols that already exist. Stored documents are left untouched.
func (d *PostgresDB) RegisterCompanies(ctx context.Context, companies []models.MCompany) error {
	if len(companies) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewStoreError("begin register", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, symbol, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			id = EXCLUDED.id,
			name = EXCLUDED.name
	`, d.table())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return helpers.NewStoreError("prepare register", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range companies {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Symbol, now); err != nil {
			return helpers.NewStoreError(fmt.Sprintf("register %s", c.Symbol), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helpers.NewStoreError("commit register", err)
	}
	d.Logger.Info("Registered %d companies", len(companies))
	return nil
}
