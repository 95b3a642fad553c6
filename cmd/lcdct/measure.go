package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"lcdct/internal/logger"
	"lcdct/internal/models"
	"lcdct/pkg/dataset"
	"lcdct/pkg/inserts"
	"lcdct/pkg/lcd"
)

var measureFlags struct {
	data          string
	recons        []string
	doses         []int
	groundTruth   string
	estimateTruth bool
	out           string
	observers     []string
	readers       int
	seed          int64
}

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Run reader studies for every observer, insert, recon and dose level",
	Example: `  lcdct measure --data ./data --recon fbp,DL_denoised --out results.csv
  lcdct measure --data ./data --recon fbp --dose 25,100 --observers LG_CHO_2D,NPWE_2D`,
	RunE: runMeasure,
}

func init() {
	f := measureCmd.Flags()
	f.StringVar(&measureFlags.data, "data", "", "Dataset root holding one directory per recon")
	f.StringSliceVar(&measureFlags.recons, "recon", []string{"fbp"}, "Recon directories to measure")
	f.IntSliceVar(&measureFlags.doses, "dose", nil, "Dose levels to measure (default: every dose_### directory)")
	f.StringVar(&measureFlags.groundTruth, "ground-truth", "", "Reference image (default: <data>/<first recon>/ground_truth.png)")
	f.BoolVar(&measureFlags.estimateTruth, "estimate-truth", false, "Estimate the reference from the highest dose scans")
	f.StringVar(&measureFlags.out, "out", "", "CSV output file (default: stdout)")
	f.StringSliceVar(&measureFlags.observers, "observers", nil, "Observer families, overrides the config")
	f.IntVar(&measureFlags.readers, "readers", 0, "Reader splits per observer and insert, overrides the config")
	f.Int64Var(&measureFlags.seed, "seed", -1, "Top seed for reproducible studies, overrides the config")
	_ = measureCmd.MarkFlagRequired("data")
}

func runMeasure(cmd *cobra.Command, args []string) error {
	runID := uuid.NewString()[:8]
	log := logger.WithFields(logrus.Fields{"run": runID, "data": measureFlags.data})
	start := time.Now()

	opts := measureOptions()
	specs := lcd.Specs(cfg.Study.Observers...)
	if len(measureFlags.observers) > 0 {
		specs = lcd.Specs(measureFlags.observers...)
	}

	reference, err := loadReference()
	if err != nil {
		return err
	}

	results := models.NewResultTable()
	for _, recon := range measureFlags.recons {
		levels, err := selectDoses(filepath.Join(measureFlags.data, recon))
		if err != nil {
			return err
		}
		for _, level := range levels {
			present, absent, err := dataset.LoadDataset(level.Path, cfg.Dataset.Offset)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"recon": recon, "dose": level.Dose}).Info("Measuring dose level")

			table, err := lcd.Measure(cmd.Context(), present, absent, reference, specs, opts)
			if err != nil {
				return fmt.Errorf("%s dose %d: %w", recon, level.Dose, err)
			}
			table.Annotate("recon", recon)
			table.Annotate("dose_level", strconv.Itoa(level.Dose))
			results.Append(table)
		}
	}

	if err := writeResults(results); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"rows": results.Len(), "seconds": time.Since(start).Seconds()}).Info("Measurement finished")
	return nil
}

// measureOptions merges the config with command line overrides
func measureOptions() lcd.Options {
	opts := lcd.DefaultOptions()
	opts.Readers = cfg.Study.Readers
	opts.SplitFraction = cfg.Study.SplitFraction
	opts.Seed = cfg.Study.Seed
	if cfg.Study.Workers > 0 {
		opts.Workers = cfg.Study.Workers
	}
	opts.Codes = cfg.Inserts.Codes
	opts.Tolerance = cfg.Inserts.Tolerance
	opts.Params = cfg.ObserverParams()
	opts.Logger = logger.Logger

	if measureFlags.readers > 0 {
		opts.Readers = measureFlags.readers
	}
	if measureFlags.seed >= 0 {
		seed := uint64(measureFlags.seed)
		opts.Seed = &seed
	}
	return opts
}

// loadReference resolves the reference image from flags
func loadReference() (*models.Array, error) {
	if measureFlags.groundTruth != "" {
		return dataset.LoadImage(measureFlags.groundTruth, cfg.Dataset.Offset)
	}
	if len(measureFlags.recons) == 0 {
		return nil, fmt.Errorf("at least one --recon is required")
	}
	reconDir := filepath.Join(measureFlags.data, measureFlags.recons[0])
	if measureFlags.estimateTruth {
		return estimateReference(reconDir, cfg.LocatorOptions())
	}
	return dataset.LoadImage(filepath.Join(reconDir, dataset.GroundTruthFile), cfg.Dataset.Offset)
}

// estimateReference searches the highest dose scans of reconDir for inserts
func estimateReference(reconDir string, opts inserts.LocatorOptions) (*models.Array, error) {
	levels, err := dataset.DoseLevels(reconDir)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no dose_### directories in %s", reconDir)
	}
	present, absent, err := dataset.LoadDataset(levels[len(levels)-1].Path, cfg.Dataset.Offset)
	if err != nil {
		return nil, err
	}
	return inserts.ApproximateGroundTruth(present, absent, opts)
}

// selectDoses lists the dose directories of a recon, filtered by --dose
func selectDoses(reconDir string) ([]dataset.DoseDir, error) {
	if len(measureFlags.doses) > 0 {
		var out []dataset.DoseDir
		for _, d := range measureFlags.doses {
			out = append(out, dataset.DoseDir{Dose: d, Path: dataset.DosePath(reconDir, d)})
		}
		return out, nil
	}
	levels, err := dataset.DoseLevels(reconDir)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no dose_### directories in %s", reconDir)
	}
	return levels, nil
}

// writeResults writes the CSV and a summary table. The summary goes to stdout when
// the CSV goes to a file, and to a terminal stderr otherwise.
func writeResults(results *models.ResultTable) error {
	var summary io.Writer
	if measureFlags.out == "" {
		if err := lcd.WriteCSV(os.Stdout, results); err != nil {
			return err
		}
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			summary = os.Stderr
		}
	} else {
		if err := writeCSVFile(measureFlags.out, results); err != nil {
			return err
		}
		fmt.Printf("Results saved to: %s\n", measureFlags.out)
		summary = os.Stdout
	}

	if summary == nil || results.Empty() {
		return nil
	}
	return lcd.WriteSummary(summary, results)
}

func writeCSVFile(path string, results *models.ResultTable) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := lcd.WriteCSV(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
