package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/slabworks/grade-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the default
// backend for single-operator desk setups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	issue         TEXT NOT NULL,
	publisher     TEXT NOT NULL DEFAULT '',
	year          INTEGER NOT NULL DEFAULT 0,
	key_issue     INTEGER NOT NULL DEFAULT 0,
	known_defects TEXT,
	grade         REAL,
	confidence    INTEGER NOT NULL DEFAULT 0,
	defects       TEXT,
	value         INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'ungraded',
	decision      TEXT,
	graded_at     DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS grading_runs (
	id         TEXT PRIMARY KEY,
	item_id    TEXT NOT NULL REFERENCES items(id),
	steps      TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_title_issue ON items(title, issue);
CREATE INDEX IF NOT EXISTS idx_grading_runs_item_id ON grading_runs(item_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateItem(ctx context.Context, item *model.GradableItem) error {
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
		return eris.Wrap(err, "sqlite: marshal known defects")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, title, issue, publisher, year, key_issue, known_defects, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Issue, item.Publisher, item.Year,
		boolToInt(item.KeyIssue), string(knownJSON), string(item.Status), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert item %s", item.ID)
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*model.GradableItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]model.GradableItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Title != "" {
		query += ` AND lower(title) = lower(?)`
		args = append(args, filter.Title)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.GradableItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) ImportItems(ctx context.Context, items []model.GradableItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	count := 0
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
			return 0, eris.Wrap(err, "sqlite: marshal known defects")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, title, issue, publisher, year, key_issue, known_defects, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.Title, it.Issue, it.Publisher, it.Year,
			boolToInt(it.KeyIssue), string(knownJSON), string(it.Status), now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import item %s #%s", it.Title, it.Issue)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return count, nil
}

func (s *SQLiteStore) SetItemStatus(ctx context.Context, id string, status model.ItemStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set item status %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ApplyDecision(ctx context.Context, id string, d *model.GradingDecision, status model.ItemStatus) error {
	decisionJSON, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}
	defectsJSON, err := json.Marshal(d.Defects)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal defects")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET grade = ?, confidence = ?, defects = ?, value = ?, status = ?, decision = ?, graded_at = ?, updated_at = ?
		 WHERE id = ?`,
		d.Grade, d.Confidence, string(defectsJSON), d.Value,
		string(status), string(decisionJSON), d.GradedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply decision %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) Recall(ctx context.Context, title, issue string) (*model.RecalledGrade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT grade, confidence, defects, graded_at FROM items
		 WHERE lower(title) = lower(?) AND lower(issue) = lower(?) AND grade IS NOT NULL
		 ORDER BY graded_at DESC LIMIT 1`,
		title, issue,
	)

	var rg model.RecalledGrade
	var defectsJSON sql.NullString
	err := row.Scan(&rg.Grade, &rg.Confidence, &defectsJSON, &rg.GradedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recall")
	}
	if defectsJSON.Valid {
		if err := json.Unmarshal([]byte(defectsJSON.String), &rg.Defects); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recalled defects")
		}
	}
	return &rg, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.GradingRun) error {
	stepsJSON, err := json.Marshal(run.Steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grading_runs (id, item_id, steps, started_at, ended_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET steps = excluded.steps, ended_at = excluded.ended_at`,
		run.ID, run.ItemID, string(stepsJSON), run.StartedAt, run.EndedAt,
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.GradingRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, item_id, steps, started_at, ended_at FROM grading_runs WHERE id = ?`,
		id,
	)

	var r model.GradingRun
	var stepsJSON string
	err := row.Scan(&r.ID, &r.ItemID, &stepsJSON, &r.StartedAt, &r.EndedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	if err := json.Unmarshal([]byte(stepsJSON), &r.Steps); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal steps")
	}
	return &r, nil
}

// helpers

const itemColumns = `id, title, issue, publisher, year, key_issue, known_defects, grade, confidence, defects, value, status, decision, created_at, updated_at`

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "item %s", id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*model.GradableItem, error) {
	var it model.GradableItem
	var keyIssue int
	var knownJSON, defectsJSON, decisionJSON sql.NullString
	var grade sql.NullFloat64

	err := row.Scan(
		&it.ID, &it.Title, &it.Issue, &it.Publisher, &it.Year, &keyIssue,
		&knownJSON, &grade, &it.Confidence, &defectsJSON, &it.Value,
		&it.Status, &decisionJSON, &it.CreatedAt, &it.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan item")
	}

	it.KeyIssue = keyIssue != 0
	if grade.Valid {
		g := grade.Float64
		it.Grade = &g
	}
	if knownJSON.Valid && knownJSON.String != "" {
		if err := json.Unmarshal([]byte(knownJSON.String), &it.KnownDefects); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal known defects")
		}
	}
	if defectsJSON.Valid && defectsJSON.String != "" {
		if err := json.Unmarshal([]byte(defectsJSON.String), &it.Defects); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal defects")
		}
	}
	if decisionJSON.Valid && decisionJSON.String != "" {
		it.Decision = &model.GradingDecision{}
		if err := json.Unmarshal([]byte(decisionJSON.String), it.Decision); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
	}
	return &it, nil
}
