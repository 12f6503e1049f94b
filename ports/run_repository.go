package ports

import (
	"context"

	"sitegen/domain/core"
)

// RunRecord is the reproducibility envelope for one completed generation
// run, persisted only for audit purposes. Candidates themselves are never
// persisted between runs.
type RunRecord struct {
	RunID         core.RunID
	CountryCode   string
	Seed          string
	ScenarioHash  core.ScenarioHash
	DataVersions  map[string]string
	SelectedCount int
	CreatedAt     core.Timestamp
}

// RunRepository persists RunRecord envelopes. A nil-DB adapter is a valid,
// no-op implementation: persistence is an ambient capability, not a
// pipeline dependency.
type RunRepository interface {
	SaveRun(ctx context.Context, record RunRecord) error
	GetRun(ctx context.Context, id core.RunID) (*RunRecord, error)
}
