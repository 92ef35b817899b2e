package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/slabworks/grade-cli/internal/pipeline"
	"github.com/slabworks/grade-cli/internal/store"
	"github.com/slabworks/grade-cli/internal/valuation"
	"github.com/slabworks/grade-cli/pkg/advisory"
	"github.com/slabworks/grade-cli/pkg/commentary"
	"github.com/slabworks/grade-cli/pkg/council"
	"github.com/slabworks/grade-cli/pkg/debate"
	"github.com/slabworks/grade-cli/pkg/engines"
	"github.com/slabworks/grade-cli/pkg/objectstore"
	"github.com/slabworks/grade-cli/pkg/research"
	"github.com/slabworks/grade-cli/pkg/vision"
)

// gradingEnv holds the store, clients, and pipeline needed by the
// grade/batch/serve commands.
type gradingEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (ge *gradingEnv) Close() {
	if ge.Store != nil {
		_ = ge.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, all grading service clients, the valuation
// tables, and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*gradingEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tables, err := valuation.LoadTables(cfg.Valuation.TablesPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	visionClient := vision.NewClient(cfg.Vision.Key,
		vision.WithBaseURL(cfg.Vision.BaseURL),
		vision.WithRateLimit(cfg.Vision.RateLimit),
	)
	advisoryClient := advisory.NewClient(cfg.Advisory.Key,
		advisory.WithMaxTokens(int64(cfg.Advisory.MaxTokens)),
	)
	researchClient := research.NewClient(cfg.Research.Key,
		research.WithBaseURL(cfg.Research.BaseURL),
		research.WithModel(cfg.Research.Model),
	)
	enginesClient := engines.NewClient(cfg.Engines.Key,
		engines.WithBaseURL(cfg.Engines.BaseURL),
		engines.WithRateLimit(cfg.Engines.RateLimit),
	)
	debateClient := debate.NewClient(cfg.Debate.Key, debate.WithBaseURL(cfg.Debate.BaseURL))
	councilClient := council.NewClient(cfg.Council.Key, council.WithBaseURL(cfg.Council.BaseURL))
	commentaryClient := commentary.NewClient(cfg.Commentary.Key, commentary.WithBaseURL(cfg.Commentary.BaseURL))
	objectsClient := objectstore.NewClient(cfg.ObjectStore.Key, objectstore.WithBaseURL(cfg.ObjectStore.BaseURL))

	p := pipeline.New(cfg, st,
		visionClient, advisoryClient, researchClient, enginesClient,
		debateClient, councilClient, commentaryClient, objectsClient,
		valuation.NewEstimator(tables),
	)

	return &gradingEnv{Store: st, Pipeline: p}, nil
}
