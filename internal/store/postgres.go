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

	"github.com/slabworks/grade-cli/internal/db"
	"github.com/slabworks/grade-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Shops running several
// grading stations against one shared collection use this backend.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title         TEXT NOT NULL,
	issue         TEXT NOT NULL,
	publisher     TEXT NOT NULL DEFAULT '',
	year          INTEGER NOT NULL DEFAULT 0,
	key_issue     BOOLEAN NOT NULL DEFAULT false,
	known_defects JSONB,
	grade         DOUBLE PRECISION,
	confidence    INTEGER NOT NULL DEFAULT 0,
	defects       JSONB,
	value         BIGINT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'ungraded',
	decision      JSONB,
	graded_at     TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grading_runs (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES items(id),
	steps      JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_title_issue ON items(lower(title), lower(issue));
CREATE INDEX IF NOT EXISTS idx_grading_runs_item_id ON grading_runs(item_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *model.GradableItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = model.ItemStatusUngraded
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	knownJSON, err := json.Marshal(item.KnownDefects)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal known defects")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO items (id, title, issue, publisher, year, key_issue, known_defects, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.Title, item.Issue, item.Publisher, item.Year,
		item.KeyIssue, string(knownJSON), string(item.Status), now, now,
	)
	return eris.Wrapf(err, "postgres: insert item %s", item.ID)
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.GradableItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	it, err := scanItemPg(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return it, err
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.GradableItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Title != "" {
		query += ` AND lower(title) = lower(` + arg(filter.Title) + `)`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.GradableItem
	for rows.Next() {
		it, err := scanItemPg(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) ImportItems(ctx context.Context, items []model.GradableItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(items))
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		if it.Status == "" {
			it.Status = model.ItemStatusUngraded
		}
		knownJSON, err := json.Marshal(it.KnownDefects)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal known defects")
		}
		rows = append(rows, []any{
			it.ID, it.Title, it.Issue, it.Publisher, it.Year,
			it.KeyIssue, string(knownJSON), string(it.Status), now, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "items",
		[]string{"id", "title", "issue", "publisher", "year", "key_issue", "known_defects", "status", "created_at", "updated_at"},
		rows,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import items")
	}
	return int(n), nil
}

func (s *PostgresStore) SetItemStatus(ctx context.Context, id string, status model.ItemStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set item status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", id)
	}
	return nil
}

func (s *PostgresStore) ApplyDecision(ctx context.Context, id string, d *model.GradingDecision, status model.ItemStatus) error {
	decisionJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision")
	}
	defectsJSON, err := json.Marshal(d.Defects)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal defects")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET grade = $1, confidence = $2, defects = $3, value = $4, status = $5, decision = $6, graded_at = $7, updated_at = $8
		 WHERE id = $9`,
		d.Grade, d.Confidence, string(defectsJSON), d.Value,
		string(status), string(decisionJSON), d.GradedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply decision %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", id)
	}
	return nil
}

func (s *PostgresStore) Recall(ctx context.Context, title, issue string) (*model.RecalledGrade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT grade, confidence, defects, graded_at FROM items
		 WHERE lower(title) = lower($1) AND lower(issue) = lower($2) AND grade IS NOT NULL
		 ORDER BY graded_at DESC LIMIT 1`,
		title, issue,
	)

	var rg model.RecalledGrade
	var defectsJSON *string
	err := row.Scan(&rg.Grade, &rg.Confidence, &defectsJSON, &rg.GradedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recall")
	}
	if defectsJSON != nil {
		if err := json.Unmarshal([]byte(*defectsJSON), &rg.Defects); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal recalled defects")
		}
	}
	return &rg, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.GradingRun) error {
	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO grading_runs (id, item_id, steps, started_at, ended_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET steps = EXCLUDED.steps, ended_at = EXCLUDED.ended_at`,
		run.ID, run.ItemID, string(stepsJSON), run.StartedAt, run.EndedAt,
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.GradingRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, item_id, steps, started_at, ended_at FROM grading_runs WHERE id = $1`,
		id,
	)

	var r model.GradingRun
	var stepsJSON string
	err := row.Scan(&r.ID, &r.ItemID, &stepsJSON, &r.StartedAt, &r.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	if err := json.Unmarshal([]byte(stepsJSON), &r.Steps); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal steps")
	}
	return &r, nil
}

func scanItemPg(row pgx.Row) (*model.GradableItem, error) {
	var it model.GradableItem
	var knownJSON, defectsJSON, decisionJSON *string
	var grade *float64

	err := row.Scan(
		&it.ID, &it.Title, &it.Issue, &it.Publisher, &it.Year, &it.KeyIssue,
		&knownJSON, &grade, &it.Confidence, &defectsJSON, &it.Value,
		&it.Status, &decisionJSON, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	it.Grade = grade
	if knownJSON != nil && *knownJSON != "" {
		if err := json.Unmarshal([]byte(*knownJSON), &it.KnownDefects); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal known defects")
		}
	}
	if defectsJSON != nil && *defectsJSON != "" {
		if err := json.Unmarshal([]byte(*defectsJSON), &it.Defects); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal defects")
		}
	}
	if decisionJSON != nil && *decisionJSON != "" {
		it.Decision = &model.GradingDecision{}
		if err := json.Unmarshal([]byte(*decisionJSON), it.Decision); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
	}
	return &it, nil
}

