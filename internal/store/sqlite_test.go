package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/grade-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "grade.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem() *model.GradableItem {
	return &model.GradableItem{
		Title:     "Werewolf by Night",
		Issue:     "32",
		Publisher: "Marvel",
		Year:      1975,
		KeyIssue:  true,
	}
}

func TestSQLite_CreateAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem()
	item.KnownDefects = []string{"spine stress"}
	require.NoError(t, s.CreateItem(ctx, item))
	require.NotEmpty(t, item.ID)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Werewolf by Night", got.Title)
	assert.Equal(t, "32", got.Issue)
	assert.True(t, got.KeyIssue)
	assert.Equal(t, []string{"spine stress"}, got.KnownDefects)
	assert.Equal(t, model.ItemStatusUngraded, got.Status)
	assert.Nil(t, got.Grade)
}

func TestSQLite_GetItem_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"Eightball", "Hate", "Eightball"} {
		it := &model.GradableItem{Title: title, Issue: "1"}
		require.NoError(t, s.CreateItem(ctx, it))
	}

	all, err := s.ListItems(ctx, ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byTitle, err := s.ListItems(ctx, ItemFilter{Title: "eightball"})
	require.NoError(t, err)
	assert.Len(t, byTitle, 2)

	limited, err := s.ListItems(ctx, ItemFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SetItemStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem()
	require.NoError(t, s.CreateItem(ctx, item))
	require.NoError(t, s.SetItemStatus(ctx, item.ID, model.ItemStatusGrading))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusGrading, got.Status)

	err = s.SetItemStatus(ctx, "missing", model.ItemStatusGrading)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ApplyDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem()
	require.NoError(t, s.CreateItem(ctx, item))

	d := &model.GradingDecision{
		Grade:      9.4,
		Confidence: 82,
		Defects:    []string{"spine_roll"},
		Value:      60000,
		GradedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.ApplyDecision(ctx, item.ID, d, model.ItemStatusGraded))

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Grade)
	assert.Equal(t, 9.4, *got.Grade)
	assert.Equal(t, 82, got.Confidence)
	assert.Equal(t, int64(60000), got.Value)
	assert.Equal(t, model.ItemStatusGraded, got.Status)
	require.NotNil(t, got.Decision)
	assert.Equal(t, 9.4, got.Decision.Grade)
}

func TestSQLite_Recall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	miss, err := s.Recall(ctx, "Werewolf by Night", "32")
	require.NoError(t, err)
	assert.Nil(t, miss)

	item := testItem()
	require.NoError(t, s.CreateItem(ctx, item))
	d := &model.GradingDecision{
		Grade:      8.9,
		Confidence: 76,
		Defects:    []string{"corner_wear"},
		GradedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.ApplyDecision(ctx, item.ID, d, model.ItemStatusGraded))

	// Recall matches title and issue case-insensitively.
	hit, err := s.Recall(ctx, "WEREWOLF BY NIGHT", "32")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, 8.9, hit.Grade)
	assert.Equal(t, 76, hit.Confidence)
	assert.Equal(t, []string{"corner_wear"}, hit.Defects)

	otherIssue, err := s.Recall(ctx, "Werewolf by Night", "33")
	require.NoError(t, err)
	assert.Nil(t, otherIssue)
}

func TestSQLite_ImportItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := []model.GradableItem{
		{Title: "Eightball", Issue: "22", Year: 2001},
		{Title: "Hate", Issue: "30", Year: 1998},
	}
	n, err := s.ImportItems(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := s.ListItems(ctx, ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err = s.ImportItems(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem()
	require.NoError(t, s.CreateItem(ctx, item))

	run := model.NewGradingRun(item.ID)
	run.UpdateStep(model.StepCache, model.StepRunning, "")
	run.UpdateStep(model.StepCache, model.StepComplete, "miss")
	require.NoError(t, s.SaveRun(ctx, run))

	// Saving again after more progress upserts the same row.
	run.UpdateStep(model.StepUpload, model.StepRunning, "")
	run.UpdateStep(model.StepUpload, model.StepError, "bucket denied")
	run.Finish()
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ItemID)
	require.Len(t, got.Steps, 10)
	assert.Equal(t, model.StepComplete, got.Steps[0].Status)
	assert.Equal(t, model.StepError, got.Steps[1].Status)
	assert.Equal(t, "bucket denied", got.Steps[1].Detail)
	assert.NotNil(t, got.EndedAt)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
