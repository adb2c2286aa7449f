package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CSV column names of the EPA annual AQI by county files.
const (
	ColState             = "State"
	ColCounty            = "County"
	ColYear              = "Year"
	ColDaysWithAQI       = "Days with AQI"
	ColGoodDays          = "Good Days"
	ColModerateDays      = "Moderate Days"
	ColSensitiveDays     = "Unhealthy for Sensitive Groups Days"
	ColUnhealthyDays     = "Unhealthy Days"
	ColVeryUnhealthyDays = "Very Unhealthy Days"
	ColHazardousDays     = "Hazardous Days"
	ColMaxAQI            = "Max AQI"
	ColP90AQI            = "90th Percentile AQI"
	ColMedianAQI         = "Median AQI"
	ColDaysCO            = "Days CO"
	ColDaysNO2           = "Days NO2"
	ColDaysOzone         = "Days Ozone"
	ColDaysPM25          = "Days PM2.5"
	ColDaysPM10          = "Days PM10"
)

// RequiredColumns must be present in every input file header.
var RequiredColumns = []string{ColState, ColCounty, ColYear}

var headerAliases = map[string]string{
	"90th percentile AQI": ColP90AQI,
	"90th Percentile_AQI": ColP90AQI,
	"90th percentile aqi": ColP90AQI,
}

// NormalizeHeader trims a header cell and maps known spelling variants to the
// canonical column name.
func NormalizeHeader(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	if canonical, ok := headerAliases[name]; ok {
		return canonical
	}
	return name
}

// CountyKey identifies a county across years.
type CountyKey struct {
	State  string `json:"state"`
	County string `json:"county"`
}

// ID is the cluster entity identity, "State|County".
func (k CountyKey) ID() string { return k.State + "|" + k.County }

func (k CountyKey) String() string { return k.County + ", " + k.State }

// ParseCountyID reverses CountyKey.ID.
func ParseCountyID(id string) CountyKey {
	state, county, _ := strings.Cut(id, "|")
	return CountyKey{State: state, County: county}
}

// AQIRecord is one county-year row of the dataset.
type AQIRecord struct {
	State  string `json:"state"`
	County string `json:"county"`
	Year   int    `json:"year"`

	DaysWithAQI       int `json:"days_with_aqi"`
	GoodDays          int `json:"good_days"`
	ModerateDays      int `json:"moderate_days"`
	SensitiveDays     int `json:"unhealthy_for_sensitive_groups_days"`
	UnhealthyDays     int `json:"unhealthy_days"`
	VeryUnhealthyDays int `json:"very_unhealthy_days"`
	HazardousDays     int `json:"hazardous_days"`

	MaxAQI    int `json:"max_aqi"`
	P90AQI    int `json:"p90_aqi"`
	MedianAQI int `json:"median_aqi"`

	DaysCO    int `json:"days_co"`
	DaysNO2   int `json:"days_no2"`
	DaysOzone int `json:"days_ozone"`
	DaysPM25  int `json:"days_pm25"`
	DaysPM10  int `json:"days_pm10"`
}

// Key returns the record's county.
func (r AQIRecord) Key() CountyKey { return CountyKey{State: r.State, County: r.County} }

// UnhealthyTotal is Unhealthy + Very Unhealthy + Hazardous days.
func (r AQIRecord) UnhealthyTotal() int {
	return r.UnhealthyDays + r.VeryUnhealthyDays + r.HazardousDays
}

func (r *AQIRecord) numericColumns() []struct {
	name string
	dst  *int
} {
	return []struct {
		name string
		dst  *int
	}{
		{ColYear, &r.Year},
		{ColDaysWithAQI, &r.DaysWithAQI},
		{ColGoodDays, &r.GoodDays},
		{ColModerateDays, &r.ModerateDays},
		{ColSensitiveDays, &r.SensitiveDays},
		{ColUnhealthyDays, &r.UnhealthyDays},
		{ColVeryUnhealthyDays, &r.VeryUnhealthyDays},
		{ColHazardousDays, &r.HazardousDays},
		{ColMaxAQI, &r.MaxAQI},
		{ColP90AQI, &r.P90AQI},
		{ColMedianAQI, &r.MedianAQI},
		{ColDaysCO, &r.DaysCO},
		{ColDaysNO2, &r.DaysNO2},
		{ColDaysOzone, &r.DaysOzone},
		{ColDaysPM25, &r.DaysPM25},
		{ColDaysPM10, &r.DaysPM10},
	}
}

// ParseAQIRow converts a header-keyed CSV row into an AQIRecord. Numeric
// cells are trimmed; empty or absent cells count as zero and fractional
// values are truncated toward zero.
func ParseAQIRow(row map[string]string) (AQIRecord, error) {
	rec := AQIRecord{
		State:  strings.TrimSpace(row[ColState]),
		County: strings.TrimSpace(row[ColCounty]),
	}
	for _, col := range rec.numericColumns() {
		v, err := parseCount(row[col.name])
		if err != nil {
			return AQIRecord{}, fmt.Errorf("parse %q: %w", col.name, err)
		}
		*col.dst = v
	}
	return rec, nil
}

// parseCount parses a numeric cell as an integer, truncating fractions.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return int(v), nil
}
