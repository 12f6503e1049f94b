// Package postgres implements the optional persistence adapters over
// sqlx with explicit SQL and JSON-encoded map columns.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"sitegen/domain/core"
	"sitegen/ports"
)

// RunRepository persists RunRecord envelopes via PostgreSQL. A nil db
// makes every method a no-op: persistence is ambient, not required by
// the pipeline.
type RunRepository struct {
	db *sqlx.DB
}

func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) SaveRun(ctx context.Context, record ports.RunRecord) error {
	if r.db == nil {
		return nil
	}
	versions, err := json.Marshal(record.DataVersions)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO generation_runs (run_id, country_code, seed, scenario_hash, data_versions, selected_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`, record.RunID.String(), record.CountryCode, record.Seed, record.ScenarioHash.String(), versions, record.SelectedCount, record.CreatedAt.Time())

	return err
}

func (r *RunRepository) GetRun(ctx context.Context, id core.RunID) (*ports.RunRecord, error) {
	if r.db == nil {
		return nil, nil
	}

	var row struct {
		RunID         string         `db:"run_id"`
		CountryCode   string         `db:"country_code"`
		Seed          string         `db:"seed"`
		ScenarioHash  string         `db:"scenario_hash"`
		DataVersions  []byte         `db:"data_versions"`
		SelectedCount int            `db:"selected_count"`
		CreatedAt     sql.NullTime   `db:"created_at"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT run_id, country_code, seed, scenario_hash, data_versions, selected_count, created_at
		FROM generation_runs
		WHERE run_id = $1
	`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var versions map[string]string
	if err := json.Unmarshal(row.DataVersions, &versions); err != nil {
		return nil, err
	}

	return &ports.RunRecord{
		RunID:         core.RunID(row.RunID),
		CountryCode:   row.CountryCode,
		Seed:          row.Seed,
		ScenarioHash:  core.ScenarioHash(row.ScenarioHash),
		DataVersions:  versions,
		SelectedCount: row.SelectedCount,
		CreatedAt:     core.NewTimestamp(row.CreatedAt.Time),
	}, nil
}

var _ ports.RunRepository = (*RunRepository)(nil)
