package aggregate

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the spread of deformation distances at a level.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	// Z is each subject's standard score. All zero when StdDev is zero.
	Z map[string]float64
}

// Summarize computes distance statistics. StdDev is the sample standard
// deviation, zero for fewer than two subjects.
func Summarize(ds []Distance) Summary {
	sum := Summary{N: len(ds), Z: make(map[string]float64, len(ds))}
	if len(ds) == 0 {
		return sum
	}

	values := make([]float64, len(ds))
	for i, d := range ds {
		values[i] = d.Value
	}
	sum.Min = floats.Min(values)
	sum.Max = floats.Max(values)

	if len(values) < 2 {
		sum.Mean = values[0]
	} else {
		sum.Mean, sum.StdDev = stat.MeanStdDev(values, nil)
	}

	for _, d := range ds {
		if sum.StdDev == 0 {
			sum.Z[d.Subject] = 0
			continue
		}
		sum.Z[d.Subject] = stat.StdScore(d.Value, sum.Mean, sum.StdDev)
	}
	return sum
}
