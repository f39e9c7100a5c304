// Package store persists assessment runs, scores, and the dead-letter queue.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/resilience"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status        model.RunStatus `json:"status,omitempty"`
	CompanyDomain string          `json:"company_domain,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	Offset        int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the assessment pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, company model.Company) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SaveScore(ctx context.Context, runID string, score *model.VisibilityScore, costUSD float64) error
	SaveAnswerRecords(ctx context.Context, runID string, records []model.AnswerRecord) error
	MarkRunFailed(ctx context.Context, runID string, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs newest first. Backends may omit Answers from
	// listings; use GetRun for the full record.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Dead-letter queue
	AddDLQ(ctx context.Context, entry resilience.DLQEntry) error
	ListDLQ(ctx context.Context, runID string) ([]resilience.DLQEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the configured backend. Unknown drivers are an error
// rather than a silent sqlite fallback.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
