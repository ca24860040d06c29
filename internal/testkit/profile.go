package testkit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// outlierZ is the |z| above which a value counts as an anomaly
const outlierZ = 3.0

// ColumnProfile summarizes one column of a cleaned file
type ColumnProfile struct {
	Name     string
	Numeric  bool
	Values   []float64 // numeric columns only
	Raw      []string
	Unique   int
	Top      string
	Mean     float64
	StdDev   float64
	Variance float64
	Skewness float64
	Outliers []float64
}

// ProfileColumns builds one profile per column. A column is numeric when every
// cell parses as a float.
func ProfileColumns(file *CleanedFile) []ColumnProfile {
	profiles := make([]ColumnProfile, len(file.Columns))
	for i, name := range file.Columns {
		raw := make([]string, 0, len(file.Rows))
		for _, row := range file.Rows {
			raw = append(raw, row[i])
		}
		profiles[i] = profileColumn(name, raw)
	}
	return profiles
}

func profileColumn(name string, raw []string) ColumnProfile {
	p := ColumnProfile{Name: name, Raw: raw}
	p.Unique, p.Top = frequency(raw)

	values, numeric := parseNumbers(raw)
	if !numeric {
		return p
	}
	p.Numeric = true
	p.Values = values

	p.Mean, _ = stats.Mean(values)
	p.StdDev, _ = stats.StandardDeviationSample(values)
	p.Variance, _ = stats.SampleVariance(values)
	if len(values) >= 3 && p.StdDev > 0 {
		p.Skewness = stat.Skew(values, nil)
	}
	p.Outliers = zScoreOutliers(values, p.Mean, p.StdDev)
	return p
}

func parseNumbers(raw []string) ([]float64, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	values := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

func zScoreOutliers(values []float64, mean, stdDev float64) []float64 {
	if stdDev == 0 || math.IsNaN(stdDev) {
		return nil
	}
	var out []float64
	for _, v := range values {
		if math.Abs((v-mean)/stdDev) > outlierZ {
			out = append(out, v)
		}
	}
	return out
}

// frequency returns the distinct count and the most frequent value, ties broken
// by first appearance
func frequency(raw []string) (int, string) {
	counts := make(map[string]int, len(raw))
	top, best := "", 0
	for _, v := range raw {
		counts[v]++
		if counts[v] > best {
			top, best = v, counts[v]
		}
	}
	return len(counts), top
}

// RecommendChart mirrors the service's heuristic: histograms for numbers, bar
// charts for low-cardinality categories, box plots otherwise.
func RecommendChart(p ColumnProfile) string {
	switch {
	case p.Numeric:
		return "histogram"
	case p.Unique < 20:
		return "bar"
	default:
		return "box"
	}
}

// Insight is a one-paragraph description of a column
func Insight(p ColumnProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Column '%s' has %d unique values. ", p.Name, p.Unique)
	if p.Numeric {
		fmt.Fprintf(&sb, "Mean: %.2f, Std: %.2f. ", p.Mean, p.StdDev)
		if len(p.Outliers) > 0 {
			fmt.Fprintf(&sb, "Detected %d outlier(s). ", len(p.Outliers))
		}
	} else if p.Top != "" {
		fmt.Fprintf(&sb, "Most frequent: %s. ", p.Top)
	}
	return strings.TrimSpace(sb.String())
}

// Summarize renders the exploratory summary paragraph for a cleaned file
func Summarize(file *CleanedFile) string {
	profiles := ProfileColumns(file)

	var parts []string
	for _, p := range profiles {
		if !p.Numeric {
			if p.Top != "" {
				parts = append(parts, fmt.Sprintf("Most frequent value in '%s' is '%s'.", p.Name, p.Top))
			}
			continue
		}
		if n := len(p.Outliers); n > 0 {
			parts = append(parts, fmt.Sprintf("'%s' has %d outlier(s).", p.Name, n))
		}
		switch {
		case p.Skewness > 1:
			parts = append(parts, fmt.Sprintf("'%s' is highly right-skewed (skew=%.2f).", p.Name, p.Skewness))
		case p.Skewness < -1:
			parts = append(parts, fmt.Sprintf("'%s' is highly left-skewed (skew=%.2f).", p.Name, p.Skewness))
		}
	}

	text := fmt.Sprintf("EDA Summary: Data Overview: %d rows, %d columns. ", len(file.Rows), len(file.Columns))
	if len(parts) == 0 {
		return text + "No significant anomalies or patterns detected."
	}
	return text + strings.Join(parts, " ")
}

// SelectFeatures keeps numeric columns whose sample variance exceeds threshold.
// Columns with undefined variance are reported in neither list.
func SelectFeatures(file *CleanedFile, threshold float64) ([]string, map[string]float64) {
	selected := []string{}
	variances := map[string]float64{}
	for _, p := range ProfileColumns(file) {
		if !p.Numeric || len(p.Values) < 2 || math.IsNaN(p.Variance) {
			continue
		}
		variances[p.Name] = p.Variance
		if p.Variance > threshold {
			selected = append(selected, p.Name)
		}
	}
	return selected, variances
}

// categoryCounts returns value counts in descending order, then by value
func categoryCounts(raw []string) ([]string, []float64) {
	counts := map[string]int{}
	for _, v := range raw {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	heights := make([]float64, len(labels))
	for i, l := range labels {
		heights[i] = float64(counts[l])
	}
	return labels, heights
}
