package observer

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC returns the area under the ROC curve with absent scores as negatives and
// present scores as positives. Tied scores contribute one half. It is NaN when
// either class is empty or any score is NaN.
func AUC(absent, present []float64) float64 {
	if len(absent) == 0 || len(present) == 0 || hasNaN(absent) || hasNaN(present) {
		return math.NaN()
	}
	y := make([]float64, 0, len(absent)+len(present))
	classes := make([]bool, 0, cap(y))
	for _, v := range absent {
		y = append(y, v)
		classes = append(classes, false)
	}
	for _, v := range present {
		y = append(y, v)
		classes = append(classes, true)
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// SNR returns the detectability index
// (mean(present) - mean(absent)) / sqrt((var(present) + var(absent)) / 2)
// with unbiased variances.
func SNR(absent, present []float64) float64 {
	num := stat.Mean(present, nil) - stat.Mean(absent, nil)
	den := math.Sqrt((stat.Variance(present, nil) + stat.Variance(absent, nil)) / 2)
	return num / den
}

// decisionMetrics converts test decision variables into Metrics
func decisionMetrics(absent, present []float64) Metrics {
	return Metrics{AUC: AUC(absent, present), SNR: SNR(absent, present)}
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
