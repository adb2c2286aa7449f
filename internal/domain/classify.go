package domain

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GapFeatures are the columns compared between high-risk and other counties.
var GapFeatures = []string{
	ColDaysPM25,
	ColDaysOzone,
	ColDaysNO2,
	ColDaysCO,
	ColDaysPM10,
	ColMedianAQI,
	ColP90AQI,
}

// RiskAssessment is the classification of one county-year record.
type RiskAssessment struct {
	County        CountyKey `json:"county"`
	MaxAQI        int       `json:"max_aqi"`
	UnhealthyDays int       `json:"unhealthy_days"`
	HighRisk      bool      `json:"high_risk"`
}

// FeatureGap compares the mean of one feature between high-risk records and
// the rest.
type FeatureGap struct {
	Feature  string  `json:"feature"`
	Gap      float64 `json:"gap"`
	HighMean float64 `json:"high_mean"`
	LowMean  float64 `json:"low_mean"`
}

// Classification is the single-year high-risk snapshot.
type Classification struct {
	Year               int              `json:"year"`
	Quantile           float64          `json:"quantile"`
	MaxAQIThreshold    int              `json:"max_aqi_threshold"`
	UnhealthyThreshold int              `json:"unhealthy_threshold"`
	HighRiskCount      int              `json:"high_risk_count"`
	Total              int              `json:"total"`
	Gaps               []FeatureGap     `json:"gaps"`
	TopHighRisk        []RiskAssessment `json:"top_high_risk"`
}

// LatestYear returns the largest Year among records, or false when empty.
func LatestYear(records []AQIRecord) (int, bool) {
	if len(records) == 0 {
		return 0, false
	}
	latest := records[0].Year
	for _, r := range records[1:] {
		latest = max(latest, r.Year)
	}
	return latest, true
}

// ClassifyHighRisk labels the latest-year records. The Max AQI and unhealthy
// day thresholds sit at quantile q of their sorted values; a record meeting
// either is high risk. topN limits the TopHighRisk list (by Max AQI).
func ClassifyHighRisk(records []AQIRecord, q float64, topN int) (Classification, []RiskAssessment, error) {
	if q < 0 || q > 1 {
		return Classification{}, nil, fmt.Errorf("classify: quantile %v outside [0,1]", q)
	}
	year, ok := LatestYear(records)
	if !ok {
		return Classification{}, nil, errors.New("classify: no records")
	}

	var latest []AQIRecord
	for _, r := range records {
		if r.Year == year {
			latest = append(latest, r)
		}
	}

	maxValues := make([]int, len(latest))
	unhealthyValues := make([]int, len(latest))
	for i, r := range latest {
		maxValues[i] = r.MaxAQI
		unhealthyValues[i] = r.UnhealthyTotal()
	}
	c := Classification{
		Year:               year,
		Quantile:           q,
		MaxAQIThreshold:    quantileAt(maxValues, q),
		UnhealthyThreshold: quantileAt(unhealthyValues, q),
		Total:              len(latest),
	}

	assessments := make([]RiskAssessment, len(latest))
	var high, low []AQIRecord
	for i, r := range latest {
		a := RiskAssessment{
			County:        r.Key(),
			MaxAQI:        r.MaxAQI,
			UnhealthyDays: r.UnhealthyTotal(),
		}
		a.HighRisk = a.MaxAQI >= c.MaxAQIThreshold || a.UnhealthyDays >= c.UnhealthyThreshold
		assessments[i] = a
		if a.HighRisk {
			high = append(high, r)
		} else {
			low = append(low, r)
		}
	}
	c.HighRiskCount = len(high)
	c.Gaps = featureGaps(high, low)

	var top []RiskAssessment
	for _, a := range assessments {
		if a.HighRisk {
			top = append(top, a)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].MaxAQI > top[j].MaxAQI })
	if topN >= 0 && len(top) > topN {
		top = top[:topN]
	}
	c.TopHighRisk = top

	return c, assessments, nil
}

// quantileAt returns sorted(values)[int(q*(n-1))].
func quantileAt(values []int, q float64) int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	return sorted[int(q*float64(len(sorted)-1))]
}

func featureGaps(high, low []AQIRecord) []FeatureGap {
	gaps := make([]FeatureGap, len(GapFeatures))
	for i, f := range GapFeatures {
		hi := meanColumn(high, f)
		lo := meanColumn(low, f)
		gaps[i] = FeatureGap{Feature: f, Gap: hi - lo, HighMean: hi, LowMean: lo}
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Gap > gaps[j].Gap })
	return gaps
}

func meanColumn(records []AQIRecord, column string) float64 {
	if len(records) == 0 {
		return 0
	}
	values := make([]float64, len(records))
	for i := range records {
		values[i] = float64(records[i].column(column))
	}
	return stat.Mean(values, nil)
}

// column returns the integer value of a numeric column, 0 for unknown names.
func (r *AQIRecord) column(name string) int {
	switch name {
	case ColYear:
		return r.Year
	case ColDaysWithAQI:
		return r.DaysWithAQI
	case ColGoodDays:
		return r.GoodDays
	case ColModerateDays:
		return r.ModerateDays
	case ColSensitiveDays:
		return r.SensitiveDays
	case ColUnhealthyDays:
		return r.UnhealthyDays
	case ColVeryUnhealthyDays:
		return r.VeryUnhealthyDays
	case ColHazardousDays:
		return r.HazardousDays
	case ColMaxAQI:
		return r.MaxAQI
	case ColP90AQI:
		return r.P90AQI
	case ColMedianAQI:
		return r.MedianAQI
	case ColDaysCO:
		return r.DaysCO
	case ColDaysNO2:
		return r.DaysNO2
	case ColDaysOzone:
		return r.DaysOzone
	case ColDaysPM25:
		return r.DaysPM25
	case ColDaysPM10:
		return r.DaysPM10
	}
	return 0
}
