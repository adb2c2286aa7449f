package domain

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RiskTier grades a county by its multi-year extremes.
type RiskTier string

const (
	TierExtreme RiskTier = "extreme"
	TierHigh    RiskTier = "high"
	TierLower   RiskTier = "lower"
)

var tierRank = map[RiskTier]int{TierExtreme: 0, TierHigh: 1, TierLower: 2}

// CountyExtreme summarizes the worst and typical air quality of one county
// over all of its years.
type CountyExtreme struct {
	County            CountyKey `json:"county"`
	Years             int       `json:"years"`
	MaxAQI            float64   `json:"max_aqi"`
	P90AQI            float64   `json:"p90_aqi"`
	MeanMedianAQI     float64   `json:"mean_median_aqi"`
	MeanUnhealthyDays float64   `json:"mean_unhealthy_days"`
	MeanSensitiveDays float64   `json:"mean_sensitive_days"`
	Tier              RiskTier  `json:"tier,omitempty"`
}

// ExtremeThresholds are the cut-offs a county must meet to count as high on
// each extreme.
type ExtremeThresholds struct {
	Quantile float64 `json:"quantile"`
	MaxAQI   float64 `json:"max_aqi"`
	P90AQI   float64 `json:"p90_aqi"`
}

// ExtremeRanking is the tiered list of county extremes.
type ExtremeRanking struct {
	Thresholds ExtremeThresholds `json:"thresholds"`
	Counts     map[RiskTier]int  `json:"counts"`
	Counties   []CountyExtreme   `json:"counties"`
}

// CountyExtremes aggregates records per county in first-seen order: the
// largest Max AQI and 90th percentile AQI of any year, and the yearly means
// of Median AQI, unhealthy days and unhealthy-for-sensitive-groups days.
func CountyExtremes(records []AQIRecord) []CountyExtreme {
	aggs := AggregateCounties(records)
	out := make([]CountyExtreme, len(aggs))
	for i, a := range aggs {
		n := len(a.Records)
		peak := make([]float64, n)
		p90 := make([]float64, n)
		median := make([]float64, n)
		unhealthy := make([]float64, n)
		sensitive := make([]float64, n)
		for j, r := range a.Records {
			peak[j] = float64(r.MaxAQI)
			p90[j] = float64(r.P90AQI)
			median[j] = float64(r.MedianAQI)
			unhealthy[j] = float64(r.UnhealthyDays)
			sensitive[j] = float64(r.SensitiveDays)
		}
		out[i] = CountyExtreme{
			County:            a.Key,
			Years:             n,
			MaxAQI:            floats.Max(peak),
			P90AQI:            floats.Max(p90),
			MeanMedianAQI:     stat.Mean(median, nil),
			MeanUnhealthyDays: stat.Mean(unhealthy, nil),
			MeanSensitiveDays: stat.Mean(sensitive, nil),
		}
	}
	return out
}

// ExtremeThreshold returns the q-quantile of values, interpolating linearly
// between the two sorted values around position q*(n-1). Values are not
// modified.
func ExtremeThreshold(values []float64, q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("extreme threshold: quantile %v outside [0,1]", q)
	}
	if len(values) == 0 {
		return 0, errors.New("extreme threshold: no values")
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// stat.LinInterp places quantile p at position p*n-1; shift q so that
	// position is q*(n-1).
	n := float64(len(sorted))
	return stat.Quantile((q*(n-1)+1)/n, stat.LinInterp, sorted, nil), nil
}

// ClassifyExtremes tiers every county against the q-quantile thresholds of
// MaxAQI and P90AQI: extreme when both are met, high when one is, lower
// otherwise. Counties are ordered by tier, then by P90AQI descending. The
// input slice is not modified.
func ClassifyExtremes(extremes []CountyExtreme, q float64) (ExtremeRanking, error) {
	peak := make([]float64, len(extremes))
	p90 := make([]float64, len(extremes))
	for i, e := range extremes {
		peak[i] = e.MaxAQI
		p90[i] = e.P90AQI
	}
	maxThreshold, err := ExtremeThreshold(peak, q)
	if err != nil {
		return ExtremeRanking{}, fmt.Errorf("classify extremes: %w", err)
	}
	p90Threshold, err := ExtremeThreshold(p90, q)
	if err != nil {
		return ExtremeRanking{}, fmt.Errorf("classify extremes: %w", err)
	}

	ranking := ExtremeRanking{
		Thresholds: ExtremeThresholds{Quantile: q, MaxAQI: maxThreshold, P90AQI: p90Threshold},
		Counts:     map[RiskTier]int{TierExtreme: 0, TierHigh: 0, TierLower: 0},
		Counties:   make([]CountyExtreme, len(extremes)),
	}
	for i, e := range extremes {
		highMax := e.MaxAQI >= maxThreshold
		highP90 := e.P90AQI >= p90Threshold
		switch {
		case highMax && highP90:
			e.Tier = TierExtreme
		case highMax || highP90:
			e.Tier = TierHigh
		default:
			e.Tier = TierLower
		}
		ranking.Counts[e.Tier]++
		ranking.Counties[i] = e
	}
	sort.SliceStable(ranking.Counties, func(i, j int) bool {
		a, b := ranking.Counties[i], ranking.Counties[j]
		if tierRank[a.Tier] != tierRank[b.Tier] {
			return tierRank[a.Tier] < tierRank[b.Tier]
		}
		return a.P90AQI > b.P90AQI
	})
	return ranking, nil
}
