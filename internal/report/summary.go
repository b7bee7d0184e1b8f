package report

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"schoolprep/adapters/datareadiness/synthesizer"
	"schoolprep/domain/incident"
	"schoolprep/internal/dataset"
	"schoolprep/internal/errors"
	"schoolprep/internal/profiling"
)

// Summary file names written next to the analysis dataset
const (
	SummaryMarkdown = "summary.md"
	SummaryHTML     = "summary.html"
)

const title = "School shooting dataset preparation"

// Summary renders a markdown account of one pipeline run
func Summary(result *dataset.Result) (string, error) {
	var b strings.Builder
	m := result.Manifest

	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run: `%s`\n", m.RunID)
	fmt.Fprintf(&b, "- Seed: %d\n", m.Seed)
	fmt.Fprintf(&b, "- Top race mode: %s\n", m.TopRaceMode)
	fmt.Fprintf(&b, "- Content hash: `%s`\n\n", m.ContentHash)

	b.WriteString("## Rows\n\n| Stage | Rows |\n|---|---:|\n")
	fmt.Fprintf(&b, "| source | %d |\n", m.SourceRows)
	fmt.Fprintf(&b, "| excluded | %d |\n", m.ExcludedRows)
	fmt.Fprintf(&b, "| real | %d |\n", m.RealRows)
	fmt.Fprintf(&b, "| synthetic | %d |\n", m.SyntheticRows)
	fmt.Fprintf(&b, "| total | %d |\n\n", m.TotalRows)

	if len(result.Report.Excluded) > 0 {
		b.WriteString("## Exclusions\n\n| Reason | Rows |\n|---|---:|\n")
		counts := result.Report.ExcludedByReason()
		reasons := make([]string, 0, len(counts))
		for r := range counts {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(&b, "| %s | %d |\n", r, counts[dataset.ExclusionReason(r)])
		}
		b.WriteString("\n")
	}

	if len(result.Report.Imputed) > 0 || len(result.Report.SkippedColumns) > 0 {
		b.WriteString("## Mean fill\n\n| Column | Imputed cells |\n|---|---:|\n")
		for _, column := range sortedKeys(result.Report.Imputed) {
			fmt.Fprintf(&b, "| %s | %d |\n", column, result.Report.Imputed[column])
		}
		for _, column := range result.Report.SkippedColumns {
			fmt.Fprintf(&b, "| %s | skipped, no values |\n", column)
		}
		b.WriteString("\n")
	}

	if len(result.Plans) > 0 {
		b.WriteString("## Synthetic columns\n\n| Column | Strategy | Detail |\n|---|---|---|\n")
		for _, plan := range result.Plans {
			if plan.Strategy == synthesizer.StrategyMissing {
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", plan.Column.Name, plan.Strategy, plan.Reasoning)
		}
		b.WriteString("\n")
	}

	comparison, err := compareSources(result.Real, result.Synthetic, result.Plans)
	if err != nil {
		return "", err
	}
	b.WriteString(comparison)

	if len(result.Outputs) > 0 {
		b.WriteString("## Outputs\n\n")
		for _, path := range result.Outputs {
			fmt.Fprintf(&b, "- `%s`\n", path)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// compareSources tabulates the simulated columns per provenance together with
// a test of how separable the synthetic rows are from the real ones
func compareSources(incidents, synthetic *incident.Table, plans []synthesizer.ColumnPlan) (string, error) {
	var b strings.Builder

	numeric := columnsWith(plans, synthesizer.StrategyUniform)
	if len(numeric) > 0 {
		profiler := profiling.NewDataProfiler(numeric, nil)
		realProfile, err := profiler.ProfileTable(incidents)
		if err != nil {
			return "", err
		}
		synthProfile, err := profiler.ProfileTable(synthetic)
		if err != nil {
			return "", err
		}

		b.WriteString("## Real vs synthetic\n\n| Column | Real mean | Synthetic mean | Range | Welch t | p |\n|---|---:|---:|---|---:|---:|\n")
		for _, column := range numeric {
			r, ok := realProfile.Numeric[column]
			if !ok {
				continue
			}
			s := synthProfile.Numeric[column]
			sep, err := profiling.WelchTTest(column, incidents.Floats(column), synthetic.Floats(column))
			if stderrors.Is(err, profiling.ErrNoValues) {
				fmt.Fprintf(&b, "| %s | %.4g | %.4g | [%.4g, %.4g] | | |\n", column, r.Mean, s.Mean, r.Min, r.Max)
				continue
			}
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "| %s | %.4g | %.4g | [%.4g, %.4g] | %.3f | %.3g |\n",
				column, r.Mean, s.Mean, r.Min, r.Max, sep.Statistic, sep.PValue)
		}
		b.WriteString("\n")
	}

	categorical := columnsWith(plans, synthesizer.StrategyCategorical)
	if len(categorical) > 0 {
		b.WriteString("## Categorical resampling\n\n| Column | Categories | Chi-square | p | Cramer's V |\n|---|---:|---:|---:|---:|\n")
		for _, column := range categorical {
			r, err := profiling.ProfileCategorical(incidents, column)
			if err != nil {
				continue
			}
			s, err := profiling.ProfileCategorical(synthetic, column)
			if err != nil {
				continue
			}
			sep, err := profiling.ChiSquareHomogeneity(r, s)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "| %s | %d | %.3f | %.3g | %.3f |\n", column, len(r.Categories), sep.Statistic, sep.PValue, sep.EffectSize)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// ProfileMarkdown renders a table profile, numeric columns first
func ProfileMarkdown(heading string, profile *profiling.TableProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%d rows\n\n", heading, profile.Rows)

	if len(profile.Numeric) > 0 {
		b.WriteString("## Numeric\n\n| Column | Missing | Min | Max | Mean | Median | Std dev | Skew |\n|---|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, column := range sortedKeys(profile.Numeric) {
			p := profile.Numeric[column]
			fmt.Fprintf(&b, "| %s | %d | %.4g | %.4g | %.4g | %.4g | %.4g | %.3f |\n",
				column, p.Missing, p.Min, p.Max, p.Mean, p.Median, p.StdDev, p.Skewness)
		}
		b.WriteString("\n")
	}

	if len(profile.Categorical) > 0 {
		b.WriteString("## Categorical\n\n| Column | Missing | Categories | Most frequent |\n|---|---:|---:|---|\n")
		for _, column := range sortedKeys(profile.Categorical) {
			p := profile.Categorical[column]
			fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", column, p.Missing, len(p.Categories), mode(p))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHTML converts summary markdown into a standalone HTML page
func RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

// WriteSummary writes summary.md and summary.html into dir
func WriteSummary(dir string, md string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError("failed to create output directory", err)
	}
	mdPath := filepath.Join(dir, SummaryMarkdown)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return nil, errors.IOError("failed to write summary", err)
	}
	htmlPath := filepath.Join(dir, SummaryHTML)
	if err := os.WriteFile(htmlPath, RenderHTML(md), 0o644); err != nil {
		return nil, errors.IOError("failed to write summary", err)
	}
	return []string{mdPath, htmlPath}, nil
}

func columnsWith(plans []synthesizer.ColumnPlan, strategy synthesizer.Strategy) []string {
	var columns []string
	for _, plan := range plans {
		if plan.Strategy == strategy {
			columns = append(columns, plan.Column.Name)
		}
	}
	return columns
}

// mode returns the most frequent category; ties go to the first in sorted order
func mode(p profiling.CategoricalProfile) string {
	best, count := "", -1
	for i, c := range p.Categories {
		if p.Frequencies[i] > count {
			best, count = c, p.Frequencies[i]
		}
	}
	return best
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
