package profiling

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"schoolprep/domain/incident"
)

// ErrNoValues is returned when a column has no non-missing values to profile
var ErrNoValues = errors.New("column has no values")

// NumericProfile summarizes the observed distribution of a numeric column
type NumericProfile struct {
	Column   string  `json:"column"`
	Count    int     `json:"count"`
	Missing  int     `json:"missing"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	Skewness float64 `json:"skewness"`
}

// ProfileNumeric computes bounds and moments over the non-missing cells of a column
func ProfileNumeric(t *incident.Table, column string) (NumericProfile, error) {
	profile := NumericProfile{Column: column}
	if !t.Has(column) {
		return profile, fmt.Errorf("unknown column %s", column)
	}

	data := t.Floats(column)
	profile.Count = len(data)
	profile.Missing = t.Len() - len(data)
	if len(data) == 0 {
		return profile, fmt.Errorf("%w: %s", ErrNoValues, column)
	}

	var err error
	if profile.Mean, err = stats.Mean(data); err != nil {
		return profile, err
	}
	if profile.Min, err = stats.Min(data); err != nil {
		return profile, err
	}
	if profile.Max, err = stats.Max(data); err != nil {
		return profile, err
	}
	if profile.Median, err = stats.Median(data); err != nil {
		return profile, err
	}
	if profile.StdDev, err = stats.StandardDeviation(data); err != nil {
		return profile, err
	}
	profile.Skewness = calculateSkewness(data, profile.Mean, profile.StdDev)

	return profile, nil
}

// Contains reports whether x lies in the closed interval [Min, Max]
func (p NumericProfile) Contains(x float64) bool {
	return x >= p.Min && x <= p.Max
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n
	return skewness * math.Sqrt(n*(n-1)) / (n - 2)
}
