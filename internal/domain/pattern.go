package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"gonum.org/v1/gonum/stat"
)

// YearSeverity is a mean DAQSI for one year.
type YearSeverity struct {
	Year int     `json:"year"`
	Mean float64 `json:"mean"`
}

// SeverityPattern is one cluster of counties whose DAQSI moved alike over
// the years.
type SeverityPattern struct {
	Cluster    int            `json:"cluster"`
	Counties   []CountyKey    `json:"counties"`
	MeanByYear []YearSeverity `json:"mean_by_year"`
}

// SeverityPatterns clusters counties by their DAQSI trajectory. Each county
// gets one DAQSI per year present in records (years it lacks count as 0,
// repeated county-years are averaged). Every year column is standardized to
// zero mean and unit population deviation before KMeans runs with k and
// iterations. Each pattern reports the mean unstandardized DAQSI per year of
// its members; empty clusters have no means.
func SeverityPatterns(ctx context.Context, records []AQIRecord, w SeverityWeights, k, iterations int) ([]SeverityPattern, error) {
	if w == nil {
		return nil, errors.New("severity patterns: no severity weights")
	}
	if len(records) == 0 {
		return nil, errors.New("severity patterns: no records")
	}

	var years []int
	for _, r := range records {
		if !slices.Contains(years, r.Year) {
			years = append(years, r.Year)
		}
	}
	slices.Sort(years)
	col := make(map[int]int, len(years))
	for j, y := range years {
		col[y] = j
	}

	aggs := AggregateCounties(records)
	pivot := make([][]float64, len(aggs))
	for i, a := range aggs {
		sums := make([]float64, len(years))
		counts := make([]int, len(years))
		for _, r := range a.Records {
			sums[col[r.Year]] += SeverityIndex(r, w)
			counts[col[r.Year]]++
		}
		for j := range sums {
			if counts[j] > 0 {
				sums[j] /= float64(counts[j])
			}
		}
		pivot[i] = sums
	}

	names := make([]string, len(years))
	for j, y := range years {
		names[j] = strconv.Itoa(y)
	}
	entities := make([]cluster.NormalizedEntity, len(aggs))
	for i, a := range aggs {
		entities[i] = cluster.NormalizedEntity{
			Entity: cluster.Entity{ID: a.Key.ID(), Features: make(map[string]float64, len(years))},
			Norm:   make(map[string]float64, len(years)),
		}
		for j, name := range names {
			entities[i].Features[name] = pivot[i][j]
		}
	}
	column := make([]float64, len(aggs))
	for j, name := range names {
		for i := range pivot {
			column[i] = pivot[i][j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		for i := range entities {
			z := 0.0
			if std > 0 {
				z = (pivot[i][j] - mean) / std
			}
			entities[i].Norm[name] = z
		}
	}

	p, err := cluster.KMeans(ctx, entities, k, iterations)
	if err != nil {
		return nil, fmt.Errorf("severity patterns: %w", err)
	}

	patterns := make([]SeverityPattern, len(p.Clusters))
	for c, cl := range p.Clusters {
		pattern := SeverityPattern{Cluster: cl.Index, Counties: make([]CountyKey, len(cl.Members))}
		for i, m := range cl.Members {
			pattern.Counties[i] = ParseCountyID(m.ID)
		}
		if len(cl.Members) > 0 {
			pattern.MeanByYear = make([]YearSeverity, len(years))
			values := make([]float64, len(cl.Members))
			for j, name := range names {
				for i, m := range cl.Members {
					values[i] = m.Features[name]
				}
				pattern.MeanByYear[j] = YearSeverity{Year: years[j], Mean: stat.Mean(values, nil)}
			}
		}
		patterns[c] = pattern
	}
	return patterns, nil
}
