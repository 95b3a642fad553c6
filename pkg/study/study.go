// Package study runs reader studies: repeated randomized train/test splits of one
// observer, each scored independently.
package study

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	apperrors "lcdct/internal/errors"
	"lcdct/internal/logger"
	"lcdct/internal/models"
	"lcdct/internal/telemetry"
	"lcdct/pkg/observer"
)

// Config controls a reader study.
type Config struct {
	// Readers is the number of splits to score
	Readers int

	// SplitFraction is the share of each stack used for training
	SplitFraction float64

	// Seed derives one sub-seed per reader; nil draws a fresh top seed
	Seed *uint64

	// Seeds takes precedence over Seed. With at least Readers values the first
	// Readers are used verbatim; a shorter sequence is folded into a top seed.
	Seeds []uint64
}

// DefaultConfig returns 10 readers with an even split and no fixed seed.
func DefaultConfig() Config {
	return Config{Readers: 10, SplitFraction: 0.5}
}

// DeriveSeed returns the sub-seed of one reader: the reader-th value drawn from a
// fresh generator seeded with top. It keeps no state between calls.
func DeriveSeed(top uint64, reader int) uint64 {
	rng := rand.New(rand.NewSource(top))
	for i := 0; i < reader; i++ {
		rng.Uint64()
	}
	return rng.Uint64()
}

// FoldSeeds reduces a seed sequence to one top seed. Every value and its position
// affect the result, so equal sequences give equal seeds.
func FoldSeeds(seq []uint64) uint64 {
	var top uint64
	for _, s := range seq {
		top = DeriveSeed(top^s, 0)
	}
	return top
}

// ReaderSeeds resolves the per-reader seeds of cfg. Only a config with neither Seed
// nor Seeds draws a fresh, irreproducible top seed.
func ReaderSeeds(cfg Config) []uint64 {
	if len(cfg.Seeds) > 0 && len(cfg.Seeds) >= cfg.Readers {
		return append([]uint64(nil), cfg.Seeds[:cfg.Readers]...)
	}
	var top uint64
	switch {
	case len(cfg.Seeds) > 0:
		top = FoldSeeds(cfg.Seeds)
	case cfg.Seed != nil:
		top = *cfg.Seed
	default:
		top = uint64(time.Now().UnixNano()) ^ rand.Uint64()
	}
	seeds := make([]uint64, cfg.Readers)
	for i := range seeds {
		seeds[i] = DeriveSeed(top, i)
	}
	return seeds
}

// Run scores cfg.Readers splits of obs and returns one record per reader in order.
// The observer is never modified, so one instance may back several studies.
//
// Parameters:
//   - ctx: Checked before every reader; cancellation aborts the study
//   - obs: The observer to score
//   - cfg: Reader count, split fraction and seeds
//
// Returns:
//   - One record per reader carrying the family name, reader index, AUC and SNR
//   - A configuration error for a bad cfg, or the first split or score error
func Run(ctx context.Context, obs observer.Observer, cfg Config) ([]models.ReaderRecord, error) {
	if cfg.Readers < 1 {
		return nil, apperrors.Configurationf("readers must be positive, got %d", cfg.Readers)
	}
	if cfg.SplitFraction <= 0 || cfg.SplitFraction >= 1 {
		return nil, apperrors.Configurationf("split fraction must be in (0, 1), got %g", cfg.SplitFraction)
	}

	name := obs.Family().String()
	timer := time.Now()
	defer func() {
		telemetry.StudyDuration.WithLabelValues(name).Observe(time.Since(timer).Seconds())
	}()

	seeds := ReaderSeeds(cfg)
	records := make([]models.ReaderRecord, 0, cfg.Readers)
	for reader, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		split, err := obs.Split(cfg.SplitFraction, seed)
		if err != nil {
			return nil, fmt.Errorf("reader %d: %w", reader, err)
		}
		m, err := obs.Score(split)
		if err != nil {
			return nil, fmt.Errorf("reader %d: %w", reader, err)
		}

		logger.WithFields(logrus.Fields{
			"observer": name,
			"reader":   reader,
			"auc":      m.AUC,
			"snr":      m.SNR,
		}).Debug("Reader scored")
		telemetry.ReadersScored.WithLabelValues(name).Inc()

		records = append(records, models.ReaderRecord{
			Observer: name,
			Reader:   reader,
			AUC:      m.AUC,
			SNR:      m.SNR,
		})
	}
	return records, nil
}
