package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/db"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"save_score":        `UPDATE runs SET score = $1, cost_usd = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"get_run":           `SELECT id, company, status, score, error, cost_usd, created_at, updated_at FROM runs WHERE id = $1`,
	"insert_dlq":        `INSERT INTO dlq (id, run_id, question, error, error_type, retry_count, max_retries, created_at, last_failed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	company    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	score      JSONB,
	error      TEXT,
	cost_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS answers (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	seq           INTEGER NOT NULL,
	question_id   TEXT NOT NULL,
	raw_text      TEXT NOT NULL,
	citation_urls JSONB,
	degraded      BOOLEAN NOT NULL DEFAULT FALSE,
	fetched_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	question       JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_answers_run_id ON answers(run_id);
CREATE INDEX IF NOT EXISTS idx_dlq_run_id ON dlq(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, company model.Company) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal company")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(companyJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Company:   company,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveScore(ctx context.Context, runID string, score *model.VisibilityScore, costUSD float64) error {
	scoreJSON, err := json.Marshal(score)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal score")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET score = $1, cost_usd = $2, status = $3, updated_at = $4 WHERE id = $5`,
		string(scoreJSON), costUSD, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save score %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

// SaveAnswerRecords replaces the run's answer rows using the COPY protocol.
func (s *PostgresStore) SaveAnswerRecords(ctx context.Context, runID string, records []model.AnswerRecord) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear answers %s", runID)
	}

	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		urlsJSON, err := json.Marshal(rec.CitationURLs)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal citation urls")
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, i, rec.QuestionID, rec.RawText,
			string(urlsJSON), rec.Degraded, rec.FetchedAt.UTC(),
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "answers",
		[]string{"id", "run_id", "seq", "question_id", "raw_text", "citation_urls", "degraded", "fetched_at"},
		rows)
	return eris.Wrapf(err, "postgres: save answers %s", runID)
}

func (s *PostgresStore) MarkRunFailed(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark run failed %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company, status, score, error, cost_usd, created_at, updated_at
		 FROM runs WHERE id = $1`,
		runID,
	)

	r, err := scanPgRun(row)
	if err != nil {
		return nil, err
	}

	answers, err := s.loadAnswers(ctx, runID)
	if err != nil {
		return nil, err
	}
	r.Answers = answers
	return r, nil
}

func (s *PostgresStore) loadAnswers(ctx context.Context, runID string) ([]model.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question_id, raw_text, citation_urls, degraded, fetched_at
		 FROM answers WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load answers %s", runID)
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var rec model.AnswerRecord
		var urlsJSON []byte
		if err := rows.Scan(&rec.QuestionID, &rec.RawText, &urlsJSON, &rec.Degraded, &rec.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan answer")
		}
		if len(urlsJSON) > 0 {
			if err := json.Unmarshal(urlsJSON, &rec.CitationURLs); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal citation urls")
			}
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: load answers iterate")
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, company, status, score, error, cost_usd, created_at, updated_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.CompanyDomain != "" {
		args = append(args, filter.CompanyDomain)
		query += ` AND company->>'domain' = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) AddDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	questionJSON, err := json.Marshal(entry.Question)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dlq question")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO dlq (id, run_id, question, error, error_type, retry_count, max_retries, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.RunID, string(questionJSON), entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert dlq entry")
}

func (s *PostgresStore) ListDLQ(ctx context.Context, runID string) ([]resilience.DLQEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, question, error, error_type, retry_count, max_retries, created_at, last_failed_at
		 FROM dlq WHERE run_id = $1 ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var questionJSON []byte
		if err := rows.Scan(&e.ID, &e.RunID, &questionJSON, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if err := json.Unmarshal(questionJSON, &e.Question); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal dlq question")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list dlq iterate")
}

// helpers

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var companyJSON []byte
	var scoreJSON []byte
	var errMsg *string

	err := row.Scan(&r.ID, &companyJSON, &r.Status, &scoreJSON, &errMsg,
		&r.CostUSD, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(companyJSON, &r.Company); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company")
	}
	if len(scoreJSON) > 0 {
		r.Score = &model.VisibilityScore{}
		if err := json.Unmarshal(scoreJSON, r.Score); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal score")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
