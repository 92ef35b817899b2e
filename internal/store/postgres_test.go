package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/grade-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS items").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateItem(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO items").
		WithArgs(pgxmock.AnyArg(), "Werewolf by Night", "32", "Marvel", 1975, true,
			pgxmock.AnyArg(), "ungraded", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	item := &model.GradableItem{Title: "Werewolf by Night", Issue: "32", Publisher: "Marvel", Year: 1975, KeyIssue: true}
	require.NoError(t, s.CreateItem(context.Background(), item))
	assert.NotEmpty(t, item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetItemStatus_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE items SET status").
		WithArgs("grading", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetItemStatus(context.Background(), "missing", model.ItemStatusGrading)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyDecision(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE items SET grade").
		WithArgs(9.4, 82, pgxmock.AnyArg(), int64(60000), "graded",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "item-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	d := &model.GradingDecision{Grade: 9.4, Confidence: 82, Value: 60000, GradedAt: time.Now().UTC()}
	require.NoError(t, s.ApplyDecision(context.Background(), "item-1", d, model.ItemStatusGraded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Recall_Miss(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT grade, confidence, defects, graded_at FROM items").
		WithArgs("Eightball", "22").
		WillReturnError(pgx.ErrNoRows)

	hit, err := s.Recall(context.Background(), "Eightball", "22")
	require.NoError(t, err)
	assert.Nil(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Recall_Hit(t *testing.T) {
	s, mock := newMockStore(t)

	defects := `["corner_wear"]`
	gradedAt := time.Now().UTC()
	mock.ExpectQuery("SELECT grade, confidence, defects, graded_at FROM items").
		WithArgs("Eightball", "22").
		WillReturnRows(pgxmock.NewRows([]string{"grade", "confidence", "defects", "graded_at"}).
			AddRow(8.9, 76, &defects, gradedAt))

	hit, err := s.Recall(context.Background(), "Eightball", "22")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 8.9, hit.Grade)
	assert.Equal(t, []string{"corner_wear"}, hit.Defects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRun(t *testing.T) {
	s, mock := newMockStore(t)

	run := model.NewGradingRun("item-1")
	mock.ExpectExec("INSERT INTO grading_runs").
		WithArgs(run.ID, "item-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}
