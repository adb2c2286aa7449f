// Package dashboard renders a cluster report as an HTML page of ECharts
// charts.
package dashboard

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// PageTitle is the HTML title of the dashboard.
const PageTitle = "AQI County Clusters"

// Exposure heatmap colour ramp, low to high.
var exposureColors = []string{"#313695", "#ffffbf", "#a50026"}

var pollutants = []string{"PM2.5", "Ozone", "NO2"}

// Render writes the dashboard for report to w.
func Render(w io.Writer, report domain.ClusterReport) error {
	page := components.NewPage()
	page.PageTitle = PageTitle
	page.AddCharts(
		rankingChart(report),
		sampleChart(report),
		exposureChart(report),
		patternChart(report),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func rankingChart(report domain.ClusterReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Clusters by mean risk score",
			Subtitle: fmt.Sprintf("k=%d, %d counties, run %s", report.K, report.Counties, report.RunID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: pointer(true)}),
	)

	labels := make([]string, len(report.Rankings))
	scores := make([]opts.BarData, len(report.Rankings))
	sizes := make([]opts.BarData, len(report.Rankings))
	for i, r := range report.Rankings {
		labels[i] = fmt.Sprintf("Cluster %d", r.Index)
		scores[i] = opts.BarData{Value: r.MeanScore}
		sizes[i] = opts.BarData{Value: r.Size}
	}
	bar.SetXAxis(labels).
		AddSeries("Mean risk score", scores).
		AddSeries("Counties", sizes)
	return bar
}

func sampleChart(report domain.ClusterReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Highest-risk cluster %d: sample counties", report.HighestRiskCluster),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: pointer(true)}),
	)

	labels := make([]string, len(report.HighRiskSample))
	peak := make([]opts.BarData, len(report.HighRiskSample))
	unhealthy := make([]opts.BarData, len(report.HighRiskSample))
	for i, s := range report.HighRiskSample {
		labels[i] = s.County.String()
		peak[i] = opts.BarData{Value: s.Features[domain.FeatureMax]}
		unhealthy[i] = opts.BarData{Value: s.Features[domain.FeatureUnhealthy]}
	}
	bar.SetXAxis(labels).
		AddSeries("Mean max AQI", peak).
		AddSeries("Mean unhealthy days", unhealthy)
	return bar
}

func exposureChart(report domain.ClusterReport) *charts.HeatMap {
	counties, data, peak := exposureData(report.Exposure)

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Pollutant exposure (days)",
			Subtitle: fmt.Sprintf("Top %d counties, %d", len(counties), report.Classification.Year),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: pointer(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			Data:      pollutants,
			SplitArea: &opts.SplitArea{Show: pointer(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "category",
			Data:      counties,
			SplitArea: &opts.SplitArea{Show: pointer(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: pointer(true),
			Min:        0,
			Max:        float32(peak),
			InRange:    &opts.VisualMapInRange{Color: exposureColors},
		}),
	)
	hm.SetXAxis(pollutants).AddSeries("Days", data)
	return hm
}

func patternChart(report domain.ClusterReport) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Cluster air quality patterns over time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: pointer(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Average DAQSI"}),
	)

	years, series := patternData(report.SeverityPatterns)
	line.SetXAxis(years)
	for _, p := range report.SeverityPatterns {
		if data, ok := series[p.Cluster]; ok {
			line.AddSeries(fmt.Sprintf("Cluster %d", p.Cluster), data)
		}
	}
	return line
}

// patternData returns the year labels of the first non-empty pattern and one
// line per non-empty cluster.
func patternData(patterns []domain.SeverityPattern) ([]string, map[int][]opts.LineData) {
	var years []string
	series := make(map[int][]opts.LineData)
	for _, p := range patterns {
		if len(p.MeanByYear) == 0 {
			continue
		}
		if years == nil {
			for _, y := range p.MeanByYear {
				years = append(years, strconv.Itoa(y.Year))
			}
		}
		data := make([]opts.LineData, len(p.MeanByYear))
		for i, y := range p.MeanByYear {
			data[i] = opts.LineData{Value: y.Mean}
		}
		series[p.Cluster] = data
	}
	return years, series
}

// exposureData lays rows out as [pollutant, county, days] cells and returns
// the county labels and the largest cell value.
func exposureData(rows []domain.ExposureRow) ([]string, []opts.HeatMapData, int) {
	counties := make([]string, len(rows))
	data := make([]opts.HeatMapData, 0, len(rows)*len(pollutants))
	peak := 0
	for y, row := range rows {
		counties[y] = row.County.String()
		for x, days := range []int{row.PM25, row.Ozone, row.NO2} {
			data = append(data, opts.HeatMapData{Value: [3]any{x, y, days}})
			peak = max(peak, days)
		}
	}
	return counties, data, peak
}

func pointer[T any](v T) *T {
	return &v
}
