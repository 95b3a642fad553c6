// Package telemetry holds the Prometheus metrics recorded while running reader studies.
// Batch runs export them with WriteTextfile for the node exporter textfile collector.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadersScored counts completed reader splits per observer family
	ReadersScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcdct_readers_scored_total",
		Help: "Total reader splits scored by observer family",
	}, []string{"observer"})

	// StudyDuration tracks wall time of one reader study
	StudyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lcdct_study_duration_seconds",
		Help:    "Reader study duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"observer"})

	// InsertsFound records valid inserts located in the last reference image
	InsertsFound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lcdct_inserts_found",
		Help: "Valid inserts found in the most recent reference image",
	})

	// PairsSkipped counts observer/insert pairs dropped for degenerate crops
	PairsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lcdct_pairs_skipped_total",
		Help: "Observer/insert pairs skipped because a crop was empty",
	}, []string{"observer"})
)

// WriteTextfile writes every registered metric in text exposition format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("error writing metrics textfile: %w", err)
	}
	return nil
}
