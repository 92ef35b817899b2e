package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/store"
	"github.com/slabworks/grade-cli/pkg/advisory"
	"github.com/slabworks/grade-cli/pkg/commentary"
	"github.com/slabworks/grade-cli/pkg/council"
	"github.com/slabworks/grade-cli/pkg/debate"
	"github.com/slabworks/grade-cli/pkg/engines"
	"github.com/slabworks/grade-cli/pkg/research"
	"github.com/slabworks/grade-cli/pkg/vision"
)

// --- Store mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateItem(ctx context.Context, item *model.GradableItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockStore) GetItem(ctx context.Context, id string) (*model.GradableItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GradableItem), args.Error(1)
}

func (m *mockStore) ListItems(ctx context.Context, filter store.ItemFilter) ([]model.GradableItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GradableItem), args.Error(1)
}

func (m *mockStore) ImportItems(ctx context.Context, items []model.GradableItem) (int, error) {
	args := m.Called(ctx, items)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) SetItemStatus(ctx context.Context, id string, status model.ItemStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) ApplyDecision(ctx context.Context, id string, d *model.GradingDecision, status model.ItemStatus) error {
	return m.Called(ctx, id, d, status).Error(0)
}

func (m *mockStore) Recall(ctx context.Context, title, issue string) (*model.RecalledGrade, error) {
	args := m.Called(ctx, title, issue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecalledGrade), args.Error(1)
}

func (m *mockStore) SaveRun(ctx context.Context, run *model.GradingRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, id string) (*model.GradingRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GradingRun), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

// --- Vision mock ---

type mockVision struct {
	mock.Mock
}

func (m *mockVision) Run(ctx context.Context, req vision.RunRequest) ([]vision.ModelOpinion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vision.ModelOpinion), args.Error(1)
}

// --- Advisory mock ---

type mockAdvisory struct {
	mock.Mock
}

func (m *mockAdvisory) Consult(ctx context.Context, req advisory.ConsultRequest) (*advisory.Opinion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*advisory.Opinion), args.Error(1)
}

// --- Research mock ---

type mockResearch struct {
	mock.Mock
}

func (m *mockResearch) Research(ctx context.Context, req research.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// --- Engines mock ---

type mockEngines struct {
	mock.Mock
}

func (m *mockEngines) Query(ctx context.Context, engine engines.EngineID, prompt string) (string, error) {
	args := m.Called(ctx, engine, prompt)
	return args.String(0), args.Error(1)
}

// --- Debate mock ---

type mockDebate struct {
	mock.Mock
}

func (m *mockDebate) Debate(ctx context.Context, req debate.Request) (*debate.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*debate.Result), args.Error(1)
}

// --- Council mock ---

type mockCouncil struct {
	mock.Mock
}

func (m *mockCouncil) Decide(ctx context.Context, req council.Request) (*council.Decision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*council.Decision), args.Error(1)
}

// --- Commentary mock ---

type mockCommentary struct {
	mock.Mock
}

func (m *mockCommentary) Comment(ctx context.Context, req commentary.Request) (*commentary.Remark, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commentary.Remark), args.Error(1)
}

// --- Object store mock ---

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) Upload(ctx context.Context, itemID, side string, data []byte) (string, error) {
	args := m.Called(ctx, itemID, side, data)
	return args.String(0), args.Error(1)
}
