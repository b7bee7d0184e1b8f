package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Separation measures how distinguishable two samples of one column are
type Separation struct {
	Column     string  `json:"column"`
	Test       string  `json:"test"`
	Statistic  float64 `json:"statistic"`
	DF         float64 `json:"df"`
	PValue     float64 `json:"p_value"`
	EffectSize float64 `json:"effect_size"`
}

// Describe renders the result in one line
func (s Separation) Describe() string {
	if s.PValue > 0.05 {
		return fmt.Sprintf("no significant difference (%s=%.3f, p=%.3f)", s.Test, s.Statistic, s.PValue)
	}
	return fmt.Sprintf("distributions differ (%s=%.3f, p=%.3g, effect=%.3f)", s.Test, s.Statistic, s.PValue, s.EffectSize)
}

// WelchTTest compares the means of two samples with unequal variances. The
// effect size is Cohen's d with the pooled standard deviation.
func WelchTTest(column string, a, b []float64) (Separation, error) {
	result := Separation{Column: column, Test: "welch_t", PValue: 1}
	if len(a) < 2 || len(b) < 2 {
		return result, fmt.Errorf("%w: welch test needs two values per sample", ErrNoValues)
	}

	n1, n2 := float64(len(a)), float64(len(b))
	mean1, _ := stats.Mean(a)
	mean2, _ := stats.Mean(b)
	var1, _ := stats.SampleVariance(a)
	var2, _ := stats.SampleVariance(b)

	se := math.Sqrt(var1/n1 + var2/n2)
	if se == 0 {
		// both samples constant
		if mean1 != mean2 {
			result.PValue = 0
			result.Statistic = math.Inf(1)
		}
		return result, nil
	}

	result.Statistic = (mean1 - mean2) / se
	result.DF = math.Pow(var1/n1+var2/n2, 2) / (math.Pow(var1/n1, 2)/(n1-1) + math.Pow(var2/n2, 2)/(n2-1))

	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: result.DF}
	result.PValue = 2 * t.Survival(math.Abs(result.Statistic))

	pooledSD := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledSD > 0 {
		result.EffectSize = (mean1 - mean2) / pooledSD
	}
	return result, nil
}

// ChiSquareHomogeneity tests whether two categorical profiles of the same column
// come from one distribution. The effect size is Cramer's V.
func ChiSquareHomogeneity(a, b CategoricalProfile) (Separation, error) {
	result := Separation{Column: a.Column, Test: "chi_square", PValue: 1}
	if a.Total() == 0 || b.Total() == 0 {
		return result, fmt.Errorf("%w: %s", ErrNoValues, a.Column)
	}

	categories := make(map[string][2]float64)
	for i, c := range a.Categories {
		cell := categories[c]
		cell[0] = float64(a.Frequencies[i])
		categories[c] = cell
	}
	for i, c := range b.Categories {
		cell := categories[c]
		cell[1] = float64(b.Frequencies[i])
		categories[c] = cell
	}
	if len(categories) < 2 {
		return result, nil
	}

	totals := [2]float64{float64(a.Total()), float64(b.Total())}
	grand := totals[0] + totals[1]

	chiSq := 0.0
	for _, observed := range categories {
		rowTotal := observed[0] + observed[1]
		for j := 0; j < 2; j++ {
			expected := rowTotal * totals[j] / grand
			if expected > 0 {
				diff := observed[j] - expected
				chiSq += diff * diff / expected
			}
		}
	}

	result.Statistic = chiSq
	result.DF = float64(len(categories) - 1)
	result.PValue = distuv.ChiSquared{K: result.DF}.Survival(chiSq)
	result.EffectSize = math.Sqrt(chiSq / grand)
	return result, nil
}
