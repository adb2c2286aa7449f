package domain

import (
	"sort"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"gonum.org/v1/gonum/stat"
)

// Feature names of a county entity.
const (
	FeatureMedian    = "median"
	FeatureP90       = "p90"
	FeatureMax       = "max"
	FeatureUnhealthy = "unhealthy"
)

// CountyAggregate is one county with its yearly records and the multi-year
// feature means used for clustering.
type CountyAggregate struct {
	Key     CountyKey
	Records []AQIRecord
	Entity  cluster.Entity
}

// AggregateCounties groups records by county in first-seen order and averages
// each county's features over its years.
func AggregateCounties(records []AQIRecord) []CountyAggregate {
	index := make(map[CountyKey]int)
	var out []CountyAggregate
	for _, r := range records {
		key := r.Key()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CountyAggregate{Key: key})
		}
		out[i].Records = append(out[i].Records, r)
	}

	for i := range out {
		recs := out[i].Records
		median := make([]float64, len(recs))
		p90 := make([]float64, len(recs))
		peak := make([]float64, len(recs))
		unhealthy := make([]float64, len(recs))
		for j, r := range recs {
			median[j] = float64(r.MedianAQI)
			p90[j] = float64(r.P90AQI)
			peak[j] = float64(r.MaxAQI)
			unhealthy[j] = float64(r.UnhealthyTotal())
		}
		out[i].Entity = cluster.Entity{
			ID: out[i].Key.ID(),
			Features: map[string]float64{
				FeatureMedian:    stat.Mean(median, nil),
				FeatureP90:       stat.Mean(p90, nil),
				FeatureMax:       stat.Mean(peak, nil),
				FeatureUnhealthy: stat.Mean(unhealthy, nil),
			},
		}
	}
	return out
}

// Entities returns the cluster entities of aggs in the same order.
func Entities(aggs []CountyAggregate) []cluster.Entity {
	out := make([]cluster.Entity, len(aggs))
	for i, a := range aggs {
		out[i] = a.Entity
	}
	return out
}

// RiskScore is the sum of a county's four raw features. Higher is worse.
func RiskScore(raw map[string]float64) float64 {
	return raw[FeatureMedian] + raw[FeatureP90] + raw[FeatureMax] + raw[FeatureUnhealthy]
}

// CountySummary describes one county of a clustering run.
type CountySummary struct {
	County      CountyKey          `json:"county"`
	Cluster     int                `json:"cluster"`
	Features    map[string]float64 `json:"features"`
	RiskScore   float64            `json:"risk_score"`
	Severity    float64            `json:"severity_index"`
	MedianTrend *float64           `json:"median_trend,omitempty"`

	// Geocoding enrichment fields.
	Lat              float64 `json:"lat,omitempty"`
	Lon              float64 `json:"lon,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "forward", "original", "failed"
}

// HighRiskSample returns up to n members of c ordered by max, then p90, then
// median, all descending. Equal members keep their input order. Counties are
// looked up in aggs to attach the median AQI trend and mean severity index.
func HighRiskSample(c cluster.Cluster, aggs map[string]CountyAggregate, weights SeverityWeights, n int) []CountySummary {
	members := make([]cluster.NormalizedEntity, len(c.Members))
	copy(members, c.Members)
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i].Features, members[j].Features
		if a[FeatureMax] != b[FeatureMax] {
			return a[FeatureMax] > b[FeatureMax]
		}
		if a[FeatureP90] != b[FeatureP90] {
			return a[FeatureP90] > b[FeatureP90]
		}
		return a[FeatureMedian] > b[FeatureMedian]
	})
	if n >= 0 && len(members) > n {
		members = members[:n]
	}

	out := make([]CountySummary, len(members))
	for i, m := range members {
		s := CountySummary{
			County:    ParseCountyID(m.ID),
			Cluster:   c.Index,
			Features:  m.Features,
			RiskScore: RiskScore(m.Features),
		}
		if agg, ok := aggs[m.ID]; ok {
			s.Severity = MeanSeverity(agg.Records, weights)
			if slope, ok := medianTrend(agg.Records); ok {
				s.MedianTrend = &slope
			}
		}
		out[i] = s
	}
	return out
}

func medianTrend(records []AQIRecord) (float64, bool) {
	years := make([]float64, len(records))
	values := make([]float64, len(records))
	for i, r := range records {
		years[i] = float64(r.Year)
		values[i] = float64(r.MedianAQI)
	}
	return TrendSlope(years, values)
}

// TrendSlope is the least-squares slope of values over years. It reports
// false for fewer than three points or when all years are equal.
func TrendSlope(years, values []float64) (float64, bool) {
	if len(years) < 3 || len(years) != len(values) {
		return 0, false
	}
	if stat.Variance(years, nil) == 0 {
		return 0, false
	}
	_, slope := stat.LinearRegression(years, values, nil, false)
	return slope, true
}
