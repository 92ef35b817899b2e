package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/store"
)

// BatchResult summarizes one batch pass.
type BatchResult struct {
	Graded  int
	Skipped int
	Failed  int
}

// RunBatch grades every ungraded item strictly sequentially with a fixed
// pause between runs. Items without captures take the advisory path inside
// each run. One item failing its precondition is skipped, never fatal for
// the batch.
func (p *Pipeline) RunBatch(ctx context.Context) (*BatchResult, error) {
	items, err := p.store.ListItems(ctx, store.ItemFilter{Status: model.ItemStatusUngraded})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list ungraded items")
	}

	pause := time.Duration(p.cfg.Batch.PauseSecs) * time.Second
	result := &BatchResult{}
	log := zap.L()

	for i := range items {
		if ctx.Err() != nil {
			return result, eris.Wrap(ctx.Err(), "pipeline: batch interrupted")
		}

		item := &items[i]
		if !item.Identified() {
			log.Warn("pipeline: skipping unidentified item", zap.String("item_id", item.ID))
			result.Skipped++
			continue
		}

		if err := p.store.SetItemStatus(ctx, item.ID, model.ItemStatusGrading); err != nil {
			log.Warn("pipeline: mark grading", zap.String("item_id", item.ID), zap.Error(err))
		}

		if _, _, err := p.Run(ctx, item, nil); err != nil {
			log.Warn("pipeline: batch item failed",
				zap.String("item_id", item.ID),
				zap.Error(err),
			)
			result.Failed++
		} else {
			result.Graded++
		}

		if i < len(items)-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return result, eris.Wrap(ctx.Err(), "pipeline: batch interrupted")
			case <-time.After(pause):
			}
		}
	}

	log.Info("pipeline: batch finished",
		zap.Int("graded", result.Graded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
