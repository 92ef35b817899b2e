package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/slabworks/grade-cli/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = eris.New("store: not found")

// ItemFilter narrows ListItems.
type ItemFilter struct {
	Status model.ItemStatus `json:"status,omitempty"`
	Title  string           `json:"title,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store persists items, grading decisions, and run audit trails. Recall is
// the grade cache: a previously graded copy of the same title and issue
// short-circuits a new run.
type Store interface {
	// Items
	CreateItem(ctx context.Context, item *model.GradableItem) error
	GetItem(ctx context.Context, id string) (*model.GradableItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]model.GradableItem, error)
	ImportItems(ctx context.Context, items []model.GradableItem) (int, error)
	SetItemStatus(ctx context.Context, id string, status model.ItemStatus) error
	ApplyDecision(ctx context.Context, id string, d *model.GradingDecision, status model.ItemStatus) error

	// Recall cache. A miss returns (nil, nil).
	Recall(ctx context.Context, title, issue string) (*model.RecalledGrade, error)

	// Runs
	SaveRun(ctx context.Context, run *model.GradingRun) error
	GetRun(ctx context.Context, id string) (*model.GradingRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
