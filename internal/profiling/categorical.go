package profiling

import (
	"fmt"
	"sort"

	"schoolprep/domain/incident"
)

// CategoricalProfile is the empirical frequency distribution of a column.
// Categories are sorted by their rendered text so iteration order is stable.
type CategoricalProfile struct {
	Column      string           `json:"column"`
	Missing     int              `json:"missing"`
	Categories  []string         `json:"categories"`
	Frequencies []int            `json:"frequencies"`
	Values      []incident.Value `json:"-"`
}

// ProfileCategorical counts the non-missing values of a column
func ProfileCategorical(t *incident.Table, column string) (CategoricalProfile, error) {
	profile := CategoricalProfile{Column: column}
	cells, err := t.Column(column)
	if err != nil {
		return profile, err
	}
	kind, _ := t.Kind(column)

	counts := make(map[string]int)
	values := make(map[string]incident.Value)
	for _, v := range cells {
		if v.IsMissing() {
			profile.Missing++
			continue
		}
		key := v.Format(kind)
		counts[key]++
		values[key] = v
	}
	if len(counts) == 0 {
		return profile, fmt.Errorf("%w: %s", ErrNoValues, column)
	}

	profile.Categories = make([]string, 0, len(counts))
	for key := range counts {
		profile.Categories = append(profile.Categories, key)
	}
	sort.Strings(profile.Categories)

	profile.Frequencies = make([]int, len(profile.Categories))
	profile.Values = make([]incident.Value, len(profile.Categories))
	for i, key := range profile.Categories {
		profile.Frequencies[i] = counts[key]
		profile.Values[i] = values[key]
	}
	return profile, nil
}

// Total returns the number of non-missing observations
func (p CategoricalProfile) Total() int {
	total := 0
	for _, f := range p.Frequencies {
		total += f
	}
	return total
}

// Weights returns the frequencies as sampling weights
func (p CategoricalProfile) Weights() []float64 {
	w := make([]float64, len(p.Frequencies))
	for i, f := range p.Frequencies {
		w[i] = float64(f)
	}
	return w
}

// Share returns the observed proportion of a category
func (p CategoricalProfile) Share(category string) float64 {
	total := p.Total()
	if total == 0 {
		return 0
	}
	for i, c := range p.Categories {
		if c == category {
			return float64(p.Frequencies[i]) / float64(total)
		}
	}
	return 0
}
