package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/imaging"
	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/pipeline"
)

var (
	gradeItemID    string
	gradeTitle     string
	gradeIssue     string
	gradePublisher string
	gradeYear      int
	gradeKeyIssue  bool
	gradeDefects   []string
	gradeFrontPath string
	gradeBackPath  string
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade a single comic book",
	Long:  "Runs the full grading pipeline for one book, identified by --id or by --title and --issue. Capture images are optional; without a front image the text-only advisory path is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := resolveItem(ctx, env)
		if err != nil {
			return err
		}

		captures, err := loadCaptures()
		if err != nil {
			return err
		}

		decision, run, err := env.Pipeline.Run(ctx, item, captures)
		if err != nil {
			return err
		}

		zap.L().Info("grading complete",
			zap.String("item_id", item.ID),
			zap.Float64("grade", decision.Grade),
			zap.Int64("value", decision.Value),
			zap.Bool("from_cache", decision.FromCache),
		)

		out := struct {
			Item     *model.GradableItem    `json:"item"`
			Decision *model.GradingDecision `json:"decision"`
			RunID    string                 `json:"run_id"`
		}{item, decision, run.ID}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// resolveItem loads the item by ID, or creates one from the identity flags.
func resolveItem(ctx context.Context, env *gradingEnv) (*model.GradableItem, error) {
	if gradeItemID != "" {
		item, err := env.Store.GetItem(ctx, gradeItemID)
		if err != nil {
			return nil, eris.Wrapf(err, "load item %s", gradeItemID)
		}
		return item, nil
	}

	if gradeTitle == "" || gradeIssue == "" {
		return nil, eris.New("either --id or both --title and --issue are required")
	}

	now := time.Now().UTC()
	item := &model.GradableItem{
		ID:           uuid.New().String(),
		Title:        gradeTitle,
		Issue:        gradeIssue,
		Publisher:    gradePublisher,
		Year:         gradeYear,
		KeyIssue:     gradeKeyIssue,
		KnownDefects: gradeDefects,
		Status:       model.ItemStatusUngraded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := env.Store.CreateItem(ctx, item); err != nil {
		return nil, eris.Wrap(err, "create item")
	}
	return item, nil
}

// loadCaptures reads and scores the capture images named by the flags.
func loadCaptures() ([]pipeline.Capture, error) {
	var captures []pipeline.Capture
	for _, side := range []struct {
		name string
		path string
	}{
		{"front", gradeFrontPath},
		{"back", gradeBackPath},
	} {
		if side.path == "" {
			continue
		}
		capture, err := loadCapture(side.name, side.path)
		if err != nil {
			return nil, err
		}
		captures = append(captures, capture)
	}
	return captures, nil
}

func loadCapture(side, path string) (pipeline.Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Capture{}, eris.Wrapf(err, "read %s capture", side)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return pipeline.Capture{}, eris.Wrapf(err, "decode %s capture", side)
	}

	quality, border := imaging.ScoreCapture(imaging.FromImage(img))
	return pipeline.Capture{Side: side, Data: data, Quality: quality, Border: border}, nil
}

func init() {
	gradeCmd.Flags().StringVar(&gradeItemID, "id", "", "grade an existing item by ID")
	gradeCmd.Flags().StringVar(&gradeTitle, "title", "", "series title")
	gradeCmd.Flags().StringVar(&gradeIssue, "issue", "", "issue number")
	gradeCmd.Flags().StringVar(&gradePublisher, "publisher", "", "publisher")
	gradeCmd.Flags().IntVar(&gradeYear, "year", 0, "cover year")
	gradeCmd.Flags().BoolVar(&gradeKeyIssue, "key", false, "mark as a key issue")
	gradeCmd.Flags().StringSliceVar(&gradeDefects, "defect", nil, "known defect (repeatable)")
	gradeCmd.Flags().StringVar(&gradeFrontPath, "front", "", "path to front cover image")
	gradeCmd.Flags().StringVar(&gradeBackPath, "back", "", "path to back cover image")
	rootCmd.AddCommand(gradeCmd)
}
