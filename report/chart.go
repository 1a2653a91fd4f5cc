// Package report builds the bar charts of a training run and renders them.
//
// Builders turn run results into Chart values; renderers turn charts into
// images.
package report

import (
	"sort"
	"strings"
)

// Chart is a bar chart with one bar per label.
type Chart struct {
	// Name is a file-system friendly identifier.
	Name   string
	Title  string
	XLabel string
	YLabel string

	Labels []string
	Values []float64
}

// Slug returns the chart name normalized for use as a file name.
func (c Chart) Slug() string {
	s := strings.ToLower(strings.TrimSpace(c.Name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "chart"
	}
	return s
}

// Importance is the importance score of one feature.
type Importance struct {
	Feature string
	Score   float64
}

// LabelDistribution counts each distinct label, ordered by descending count.
// Equal counts are ordered by label.
func LabelDistribution(labels []string) Chart {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}

	names := make([]string, 0, len(counts))
	for l := range counts {
		names = append(names, l)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	values := make([]float64, len(names))
	for i, l := range names {
		values[i] = float64(counts[l])
	}

	return Chart{
		Name:   "label_distribution",
		Title:  "Credit score distribution",
		XLabel: "Credit score",
		YLabel: "Customers",
		Labels: names,
		Values: values,
	}
}

// AccuracyComparison plots one bar per model in the given order.
func AccuracyComparison(models []string, scores []float64) Chart {
	return Chart{
		Name:   "model_accuracy",
		Title:  "Model accuracy",
		XLabel: "Model",
		YLabel: "Accuracy",
		Labels: append([]string(nil), models...),
		Values: append([]float64(nil), scores...),
	}
}

// SortImportances orders importances by descending score. Equal scores keep
// their input order.
func SortImportances(imp []Importance) []Importance {
	out := append([]Importance(nil), imp...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// FeatureImportance plots importances sorted by descending score.
func FeatureImportance(imp []Importance) Chart {
	sorted := SortImportances(imp)
	labels := make([]string, len(sorted))
	values := make([]float64, len(sorted))
	for i, fi := range sorted {
		labels[i] = fi.Feature
		values[i] = fi.Score
	}
	return Chart{
		Name:   "feature_importance",
		Title:  "Feature importance",
		XLabel: "Feature",
		YLabel: "Importance (%)",
		Labels: labels,
		Values: values,
	}
}
