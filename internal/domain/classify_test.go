package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(county string, year, maxAQI, unhealthy, pm25 int) AQIRecord {
	return AQIRecord{
		State: "TX", County: county, Year: year,
		MaxAQI: maxAQI, UnhealthyDays: unhealthy, DaysPM25: pm25,
	}
}

func TestLatestYear(t *testing.T) {
	_, ok := LatestYear(nil)
	assert.False(t, ok)

	year, ok := LatestYear([]AQIRecord{{Year: 2021}, {Year: 2024}, {Year: 2019}})
	require.True(t, ok)
	assert.Equal(t, 2024, year)
}

func TestClassifyHighRisk(t *testing.T) {
	records := []AQIRecord{
		snapshot("Old", 2022, 999, 99, 0),
		snapshot("A", 2023, 100, 0, 10),
		snapshot("B", 2023, 200, 1, 10),
		snapshot("C", 2023, 300, 2, 100),
		snapshot("D", 2023, 150, 12, 100),
		snapshot("E", 2023, 500, 3, 100),
	}

	c, assessments, err := ClassifyHighRisk(records, 0.9, 10)
	require.NoError(t, err)

	assert.Equal(t, 2023, c.Year)
	assert.Equal(t, 300, c.MaxAQIThreshold)
	assert.Equal(t, 3, c.UnhealthyThreshold)
	assert.Equal(t, 3, c.HighRiskCount)
	assert.Equal(t, 5, c.Total)

	flags := make(map[string]bool)
	for _, a := range assessments {
		flags[a.County.County] = a.HighRisk
	}
	assert.Equal(t, map[string]bool{
		"A": false,
		"B": false,
		"C": true,
		"D": true,
		"E": true,
	}, flags)

	require.Len(t, c.TopHighRisk, 3)
	assert.Equal(t, "E", c.TopHighRisk[0].County.County)
	assert.Equal(t, "C", c.TopHighRisk[1].County.County)
	assert.Equal(t, "D", c.TopHighRisk[2].County.County)

	require.Len(t, c.Gaps, len(GapFeatures))
	assert.Equal(t, FeatureGap{Feature: ColDaysPM25, Gap: 90, HighMean: 100, LowMean: 10}, c.Gaps[0])
	for _, g := range c.Gaps[1:] {
		assert.Equal(t, 0.0, g.Gap, g.Feature)
	}
}

func TestClassifyHighRisk_TopN(t *testing.T) {
	records := []AQIRecord{
		snapshot("A", 2023, 100, 9, 0),
		snapshot("B", 2023, 200, 9, 0),
		snapshot("C", 2023, 300, 9, 0),
	}
	c, _, err := ClassifyHighRisk(records, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, c.HighRiskCount)
	require.Len(t, c.TopHighRisk, 2)
	assert.Equal(t, "C", c.TopHighRisk[0].County.County)
}

func TestClassifyHighRisk_Errors(t *testing.T) {
	_, _, err := ClassifyHighRisk(nil, 0.9, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records")

	_, _, err = ClassifyHighRisk([]AQIRecord{{Year: 2020}}, 1.5, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantile")
}

func TestAQIRecordColumn(t *testing.T) {
	r := AQIRecord{
		Year: 2023, SensitiveDays: 4, UnhealthyDays: 2,
		MaxAQI: 180, P90AQI: 70, MedianAQI: 40, DaysPM25: 120, DaysPM10: 3,
	}
	for _, col := range r.numericColumns() {
		assert.Equal(t, *col.dst, r.column(col.name), col.name)
	}
	assert.Equal(t, 0, r.column("Days Lead"))
}
