package main

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/grade-cli/internal/manifest"
	"github.com/slabworks/grade-cli/internal/model"
)

var (
	importFilePath string
	importSheet    string
	importCharset  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import items from an XLSX or CSV manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := manifest.Options{SheetName: importSheet, Charset: importCharset}

		var items []model.GradableItem
		switch strings.ToLower(filepath.Ext(importFilePath)) {
		case ".xlsx":
			parsed, err := manifest.ReadXLSX(importFilePath, opts)
			if err != nil {
				return err
			}
			items = parsed
		case ".csv":
			parsed, err := manifest.ReadCSV(importFilePath, opts)
			if err != nil {
				return err
			}
			items = parsed
		default:
			return eris.Errorf("unsupported manifest format %q", filepath.Ext(importFilePath))
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		count, err := st.ImportItems(ctx, items)
		if err != nil {
			return eris.Wrap(err, "import items")
		}

		zap.L().Info("import complete",
			zap.Int("imported", count),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to manifest file (.xlsx or .csv, required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	importCmd.Flags().StringVar(&importCharset, "charset", "", "CSV charset, e.g. windows-1252 (default utf-8)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
