package domain

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeverityCategories are the AQI day categories weighted by the DAQSI, from
// best to worst.
var SeverityCategories = []string{
	ColGoodDays,
	ColModerateDays,
	ColSensitiveDays,
	ColUnhealthyDays,
	ColVeryUnhealthyDays,
	ColHazardousDays,
}

// SeverityWeights maps each day category to its rarity weight in [0,1].
type SeverityWeights map[string]float64

// ComputeSeverityWeights derives DAQSI weights from the category totals of all
// records: w = -ln(share of days), scaled so the largest weight is 1. A
// category with no days at all is treated as the rarest observed one.
func ComputeSeverityWeights(records []AQIRecord) (SeverityWeights, error) {
	totals := make([]float64, len(SeverityCategories))
	for i := range records {
		for j, cat := range SeverityCategories {
			totals[j] += float64(records[i].column(cat))
		}
	}
	sum := floats.Sum(totals)
	if sum == 0 {
		return nil, errors.New("severity weights: no categorized days")
	}

	raw := make([]float64, len(totals))
	rarest := 0.0
	for j, t := range totals {
		if t == 0 {
			raw[j] = math.Inf(1)
			continue
		}
		raw[j] = -math.Log(t / sum)
		rarest = max(rarest, raw[j])
	}
	for j := range raw {
		if math.IsInf(raw[j], 1) {
			raw[j] = rarest
		}
	}
	if rarest > 0 {
		floats.Scale(1/rarest, raw)
	}

	w := make(SeverityWeights, len(SeverityCategories))
	for j, cat := range SeverityCategories {
		w[cat] = raw[j]
	}
	return w, nil
}

// SeverityIndex is the DAQSI of one record: weighted non-good days minus
// weighted good days over total categorized days. Zero when the record has no
// categorized days.
func SeverityIndex(r AQIRecord, w SeverityWeights) float64 {
	var total, score float64
	for _, cat := range SeverityCategories {
		days := float64(r.column(cat))
		total += days
		if cat == ColGoodDays {
			score -= w[cat] * days
			continue
		}
		score += w[cat] * days
	}
	if total == 0 {
		return 0
	}
	return score / total
}

// MeanSeverity averages SeverityIndex over records. Zero for no records or
// nil weights.
func MeanSeverity(records []AQIRecord, w SeverityWeights) float64 {
	if len(records) == 0 || w == nil {
		return 0
	}
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = SeverityIndex(r, w)
	}
	return stat.Mean(values, nil)
}
