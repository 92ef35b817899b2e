package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/model"
	"github.com/slabworks/grade-cli/internal/store"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage the item inventory",
}

var (
	itemsListStatus string
	itemsListTitle  string
	itemsListLimit  int
	itemsListOffset int
)

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items, optionally filtered by status or title",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		items, err := st.ListItems(ctx, store.ItemFilter{
			Status: model.ItemStatus(itemsListStatus),
			Title:  itemsListTitle,
			Limit:  itemsListLimit,
			Offset: itemsListOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list items")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

var (
	itemAddTitle     string
	itemAddIssue     string
	itemAddPublisher string
	itemAddYear      int
	itemAddKeyIssue  bool
	itemAddDefects   []string
)

var itemsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one item to the inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		now := time.Now().UTC()
		item := &model.GradableItem{
			ID:           uuid.New().String(),
			Title:        itemAddTitle,
			Issue:        itemAddIssue,
			Publisher:    itemAddPublisher,
			Year:         itemAddYear,
			KeyIssue:     itemAddKeyIssue,
			KnownDefects: itemAddDefects,
			Status:       model.ItemStatusUngraded,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := st.CreateItem(ctx, item); err != nil {
			return eris.Wrap(err, "create item")
		}

		zap.L().Info("item created",
			zap.String("item_id", item.ID),
			zap.String("title", item.Title),
			zap.String("issue", item.Issue),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs <run-id>",
	Short: "Show the step audit trail of a grading run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load run %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	itemsListCmd.Flags().StringVar(&itemsListStatus, "status", "", "filter by status (ungraded, grading, graded, pending_review)")
	itemsListCmd.Flags().StringVar(&itemsListTitle, "title", "", "filter by title (case-insensitive)")
	itemsListCmd.Flags().IntVar(&itemsListLimit, "limit", 0, "maximum items to return")
	itemsListCmd.Flags().IntVar(&itemsListOffset, "offset", 0, "items to skip")

	itemsAddCmd.Flags().StringVar(&itemAddTitle, "title", "", "series title (required)")
	itemsAddCmd.Flags().StringVar(&itemAddIssue, "issue", "", "issue number (required)")
	itemsAddCmd.Flags().StringVar(&itemAddPublisher, "publisher", "", "publisher")
	itemsAddCmd.Flags().IntVar(&itemAddYear, "year", 0, "cover year")
	itemsAddCmd.Flags().BoolVar(&itemAddKeyIssue, "key", false, "mark as a key issue")
	itemsAddCmd.Flags().StringSliceVar(&itemAddDefects, "defect", nil, "known defect (repeatable)")
	_ = itemsAddCmd.MarkFlagRequired("title")
	_ = itemsAddCmd.MarkFlagRequired("issue")

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsAddCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(runsCmd)
}
