package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lcdct/pkg/dataset"
)

var groundTruthFlags struct {
	data  string
	recon string
	out   string
}

var groundTruthCmd = &cobra.Command{
	Use:   "groundtruth",
	Short: "Estimate a reference image from the highest dose scans",
	Long: `groundtruth locates circular inserts in the mean signal-present minus
signal-absent image of the highest dose level and writes a reference image with
each insert painted at its contrast code.`,
	RunE: runGroundTruth,
}

func init() {
	f := groundTruthCmd.Flags()
	f.StringVar(&groundTruthFlags.data, "data", "", "Dataset root")
	f.StringVar(&groundTruthFlags.recon, "recon", "fbp", "Recon directory to search")
	f.StringVar(&groundTruthFlags.out, "out", "", "Output image (default: <data>/<recon>/ground_truth.png)")
	_ = groundTruthCmd.MarkFlagRequired("data")
}

func runGroundTruth(cmd *cobra.Command, args []string) error {
	reconDir := filepath.Join(groundTruthFlags.data, groundTruthFlags.recon)
	reference, err := estimateReference(reconDir, cfg.LocatorOptions())
	if err != nil {
		return err
	}

	out := groundTruthFlags.out
	if out == "" {
		out = filepath.Join(reconDir, dataset.GroundTruthFile)
	}
	if err := dataset.SaveImage(out, reference, cfg.Dataset.Offset); err != nil {
		return err
	}
	fmt.Printf("Ground truth saved to: %s\n", out)
	return nil
}
