package main

import (
	"bytes"
	"encoding/json"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/slabworks/grade-cli/internal/imaging"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Score capture quality and detect the cover border in a local image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return eris.Wrap(err, "decode image")
		}

		quality, border := imaging.ScoreCapture(imaging.FromImage(img))

		out := struct {
			Format  string               `json:"format"`
			Quality imaging.QualityScore `json:"quality"`
			Border  imaging.BorderResult `json:"border"`
		}{format, quality, border}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
