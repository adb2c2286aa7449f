package domain

import "sort"

// ExposureRow is one county's pollutant-day totals in the latest year.
type ExposureRow struct {
	County CountyKey `json:"county"`
	PM25   int       `json:"days_pm25"`
	Ozone  int       `json:"days_ozone"`
	NO2    int       `json:"days_no2"`
	Total  int       `json:"total"`
}

// PollutantExposure sums PM2.5, Ozone and NO2 days per county for the latest
// year and returns the topN counties by total, highest first. Counties with
// equal totals keep first-seen order.
func PollutantExposure(records []AQIRecord, topN int) []ExposureRow {
	year, ok := LatestYear(records)
	if !ok {
		return nil
	}

	index := make(map[CountyKey]int)
	var rows []ExposureRow
	for _, r := range records {
		if r.Year != year {
			continue
		}
		i, ok := index[r.Key()]
		if !ok {
			i = len(rows)
			index[r.Key()] = i
			rows = append(rows, ExposureRow{County: r.Key()})
		}
		rows[i].PM25 += r.DaysPM25
		rows[i].Ozone += r.DaysOzone
		rows[i].NO2 += r.DaysNO2
		rows[i].Total += r.DaysPM25 + r.DaysOzone + r.DaysNO2
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	if topN >= 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}
