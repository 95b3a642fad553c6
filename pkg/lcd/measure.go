// Package lcd measures low contrast detectability: it locates every insert in a
// reference image, crops matching regions of interest from signal-present and
// signal-absent stacks and runs a reader study per observer and insert.
package lcd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/logger"
	"lcdct/internal/models"
	"lcdct/internal/telemetry"
	"lcdct/pkg/inserts"
	"lcdct/pkg/observer"
	"lcdct/pkg/study"
)

// ObserverSpec selects an observer either by family name or as a pre-built instance.
type ObserverSpec struct {
	name     string
	instance observer.Observer
}

// Named selects an observer family by name, e.g. "LG_CHO_2D".
func Named(name string) ObserverSpec {
	return ObserverSpec{name: name}
}

// Instance uses obs as a template. It is rebound to each insert's ROIs and never modified.
func Instance(obs observer.Observer) ObserverSpec {
	return ObserverSpec{instance: obs}
}

// DefaultObserver is measured when no observer is requested.
const DefaultObserver = "LG_CHO_2D"

// Specs converts family names into specs.
func Specs(names ...string) []ObserverSpec {
	out := make([]ObserverSpec, len(names))
	for i, n := range names {
		out[i] = Named(n)
	}
	return out
}

func (s ObserverSpec) String() string {
	if s.instance != nil {
		return s.instance.Family().String()
	}
	return s.name
}

// Options control Measure.
type Options struct {
	// Readers is the number of reader splits per observer and insert
	Readers int

	// SplitFraction is the training share of every split
	SplitFraction float64

	// Seed and Seeds make the study reproducible, see study.Config
	Seed  *uint64
	Seeds []uint64

	// Workers bounds observer/insert pairs processed in parallel
	Workers int

	// Codes and Tolerance define the truth masks
	Codes     []float64
	Tolerance float64

	// Params configure observers built from names
	Params observer.Params

	// Logger receives progress entries; nil uses the package logger
	Logger *logrus.Logger
}

// DefaultOptions returns 10 readers, an even split and the standard insert codes.
func DefaultOptions() Options {
	return Options{
		Readers:       10,
		SplitFraction: 0.5,
		Workers:       runtime.GOMAXPROCS(0),
		Codes:         inserts.KnownCodes,
		Tolerance:     inserts.DefaultTolerance,
		Params:        observer.DefaultParams(),
	}
}

// insert is one located insert with its derived properties
type insert struct {
	mask *inserts.Mask
	size float64
	hu   float64
}

// pair is one observer/insert work item
type pair struct {
	spec   ObserverSpec
	family observer.Family
	insert insert
}

// Measure runs a reader study for every observer and every insert found in the
// reference image. Rows are ordered observer-major, insert-minor. When the reference
// holds no insert the table is empty and the error nil. An empty specs list measures
// DefaultObserver.
//
// Parameters:
//   - ctx: Cancels outstanding reader studies
//   - present, absent: (N, Y, X) stacks of signal-present and signal-absent scans
//   - reference: (Y, X) image whose pixels near a code mark that insert
//   - specs: Observers to run, by name or as template instances
//   - opts: Study, insert and concurrency settings
//
// Returns:
//   - One row per observer, insert and reader
//   - A validation error for malformed inputs, a configuration error for an unknown
//     observer, or the first failing study
func Measure(ctx context.Context, present, absent, reference *models.Array, specs []ObserverSpec, opts Options) (*models.ResultTable, error) {
	if err := checkStack("signal_present", present); err != nil {
		return nil, err
	}
	if err := checkStack("signal_absent", absent); err != nil {
		return nil, err
	}
	if present.Height() != absent.Height() || present.Width() != absent.Width() {
		return nil, apperrors.Validationf("signal_present %v and signal_absent %v differ in image size", present.Shape, absent.Shape)
	}
	if reference == nil || reference.Rank() != 2 || reference.Height() != present.Height() || reference.Width() != present.Width() {
		var shape []int
		if reference != nil {
			shape = reference.Shape
		}
		return nil, apperrors.Validationf("reference image must be 2D with the stack image size %dx%d, got shape %v",
			present.Height(), present.Width(), shape)
	}
	if len(specs) == 0 {
		specs = Specs(DefaultObserver)
	}
	opts = withDefaults(opts)
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	found, err := locateInserts(reference, opts)
	if err != nil {
		return nil, err
	}
	telemetry.InsertsFound.Set(float64(len(found)))
	if len(found) == 0 {
		log.Warn("No inserts found in reference image")
		return models.NewResultTable(), nil
	}

	crop := 0.0
	for _, in := range found {
		crop = max(crop, in.size)
	}
	cropWidth := int(2 * crop)

	pairs := make([]pair, 0, len(specs)*len(found))
	for _, spec := range specs {
		family, err := resolveFamily(spec)
		if err != nil {
			return nil, err
		}
		for _, in := range found {
			pairs = append(pairs, pair{spec: spec, family: family, insert: in})
		}
	}

	log.WithFields(logrus.Fields{
		"observers": len(specs),
		"inserts":   len(found),
		"crop":      cropWidth,
		"readers":   opts.Readers,
	}).Info("Starting LCD measurement")

	results := make([][]models.ReaderRecord, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			records, err := runPair(gctx, present, absent, p, cropWidth, opts, log)
			if err != nil {
				return fmt.Errorf("%s insert %g HU: %w", p.spec, p.insert.hu, err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := models.NewResultTable()
	for _, records := range results {
		table.Append(models.NewResultTable(records...))
	}
	return table, nil
}

// runPair crops both stacks around one insert and runs the reader study
func runPair(ctx context.Context, present, absent *models.Array, p pair, cropWidth int, opts Options, log *logrus.Logger) ([]models.ReaderRecord, error) {
	entry := log.WithFields(logrus.Fields{"observer": p.family.String(), "insert_HU": p.insert.hu})

	roiPresent, okP := inserts.CropROI(p.insert.mask, present, cropWidth)
	roiAbsent, okA := inserts.CropROI(p.insert.mask, absent, cropWidth)
	if !okP || !okA || roiPresent.Len() == 0 || roiAbsent.Len() == 0 {
		entry.Debug("Skipping insert with empty crop")
		telemetry.PairsSkipped.WithLabelValues(p.family.String()).Inc()
		return nil, nil
	}

	var obs observer.Observer
	var err error
	if p.spec.instance != nil {
		obs, err = p.spec.instance.WithSamples(roiPresent, roiAbsent, p.insert.size)
	} else {
		obs, err = observer.New(p.family, roiPresent, roiAbsent, p.insert.size, opts.Params)
	}
	if err != nil {
		return nil, err
	}

	records, err := study.Run(ctx, obs, study.Config{
		Readers:       opts.Readers,
		SplitFraction: opts.SplitFraction,
		Seed:          opts.Seed,
		Seeds:         opts.Seeds,
	})
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].InsertHU = p.insert.hu
		records[i].InsertDiameterPix = 2 * p.insert.size
	}
	entry.WithField("readers", len(records)).Debug("Insert measured")
	return records, nil
}

// locateInserts builds truth masks and keeps those holding a region
func locateInserts(reference *models.Array, opts Options) ([]insert, error) {
	masks, err := inserts.TruthMasks(reference, opts.Codes, opts.Tolerance)
	if err != nil {
		return nil, err
	}
	var found []insert
	for _, m := range masks {
		size := inserts.InsertSize(m)
		if size == 0 {
			continue
		}
		found = append(found, insert{mask: m, size: size, hu: inserts.InsertHU(reference, m)})
	}
	return found, nil
}

func resolveFamily(spec ObserverSpec) (observer.Family, error) {
	if spec.instance != nil {
		return spec.instance.Family(), nil
	}
	return observer.ParseFamily(spec.name)
}

func checkStack(name string, arr *models.Array) error {
	if arr == nil {
		return apperrors.Validationf("%s stack is required", name)
	}
	if arr.Rank() != 3 {
		return apperrors.Validationf("%s must be 3D (N, Y, X), got shape %v", name, arr.Shape)
	}
	return nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Readers == 0 {
		opts.Readers = def.Readers
	}
	if opts.SplitFraction == 0 {
		opts.SplitFraction = def.SplitFraction
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Codes == nil {
		opts.Codes = def.Codes
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = def.Tolerance
	}
	return opts
}
