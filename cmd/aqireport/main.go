// Command aqireport clusters EPA annual AQI by county files once and prints
// the ranked clusters, the highest-risk sample, the single-year high-risk
// classification and the pollutant exposure table.
//
// Usage:
//
//	go run ./cmd/aqireport \
//	  -data data/annual_aqi_by_county_2022.csv,data/annual_aqi_by_county_2023.csv \
//	  -k 4 -iterations 25 \
//	  -html report.html
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/aqi-cluster/internal/adapter/csvfile"
	"github.com/couchcryptid/aqi-cluster/internal/adapter/dashboard"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/couchcryptid/aqi-cluster/internal/pipeline"
)

type options struct {
	paths    []string
	htmlPath string
	verbose  bool
	analyzer pipeline.AnalyzerOptions
}

func main() {
	data := flag.String("data", "", "comma-separated list of annual AQI by county CSV files")
	k := flag.Int("k", 4, "number of clusters")
	iterations := flag.Int("iterations", 25, "k-means iterations")
	earlyStop := flag.Bool("early-stop", false, "stop once no county changes cluster")
	quantile := flag.Float64("quantile", 0.9, "high-risk threshold quantile")
	sample := flag.Int("sample", 10, "counties shown from the highest-risk cluster")
	top := flag.Int("top", 20, "counties shown in the exposure table")
	htmlPath := flag.String("html", "", "write the dashboard HTML to this path")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	if *data == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := options{
		paths:    strings.Split(*data, ","),
		htmlPath: *htmlPath,
		verbose:  *verbose,
		analyzer: pipeline.AnalyzerOptions{
			K:                *k,
			Iterations:       *iterations,
			EarlyStop:        *earlyStop,
			HighRiskQuantile: *quantile,
			SampleSize:       *sample,
			ExposureTopN:     *top,
		},
	}
	if code := run(context.Background(), opts, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	records, err := csvfile.NewReader(opts.paths, logger).ExtractRecords(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load datasets: %v\n", err)
		return 1
	}

	report, err := pipeline.NewAnalyzer(opts.analyzer, nil, logger).Analyze(ctx, records)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: analyze: %v\n", err)
		return 1
	}

	printReport(stdout, report)

	if opts.htmlPath != "" {
		if err := writeDashboard(opts.htmlPath, report); err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nDashboard written to %s\n", opts.htmlPath)
	}
	return 0
}

func writeDashboard(path string, report domain.ClusterReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dashboard file: %w", err)
	}
	if err := dashboard.Render(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(w io.Writer, r domain.ClusterReport) {
	fmt.Fprintln(w, "=== AQI County Clusters ===")
	fmt.Fprintf(w, "Records: %d, counties: %d, k=%d, iterations: %d\n", r.Records, r.Counties, r.K, r.Iterations)
	fmt.Fprintf(w, "Run: %s at %s\n", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintln(w, "\n--- Ranked clusters ---")
	for i, s := range r.Rankings {
		fmt.Fprintf(w, "  #%d  cluster %-3d  mean score %9.2f  size %d\n", i+1, s.Index, s.MeanScore, s.Size)
	}

	fmt.Fprintf(w, "\n--- Highest-risk cluster %d (sample of %d) ---\n", r.HighestRiskCluster, len(r.HighRiskSample))
	for _, s := range r.HighRiskSample {
		trend := "n/a"
		if s.MedianTrend != nil {
			trend = fmt.Sprintf("%+.2f/yr", *s.MedianTrend)
		}
		fmt.Fprintf(w, "  %-36s max %6.1f  p90 %6.1f  median %5.1f  unhealthy %5.1f  DAQSI %+.3f  trend %s\n",
			s.County.String(),
			s.Features[domain.FeatureMax],
			s.Features[domain.FeatureP90],
			s.Features[domain.FeatureMedian],
			s.Features[domain.FeatureUnhealthy],
			s.Severity,
			trend,
		)
	}

	c := r.Classification
	fmt.Fprintf(w, "\n--- High-risk classification %d (q=%.2f) ---\n", c.Year, c.Quantile)
	fmt.Fprintf(w, "  thresholds: max AQI >= %d or unhealthy days >= %d\n", c.MaxAQIThreshold, c.UnhealthyThreshold)
	fmt.Fprintf(w, "  high risk: %d of %d counties\n", c.HighRiskCount, c.Total)
	for _, g := range c.Gaps {
		fmt.Fprintf(w, "  %-22s gap %+8.2f  (high %.2f, other %.2f)\n", g.Feature, g.Gap, g.HighMean, g.LowMean)
	}
	for _, a := range c.TopHighRisk {
		fmt.Fprintf(w, "  %-36s max AQI %4d  unhealthy %3d\n", a.County.String(), a.MaxAQI, a.UnhealthyDays)
	}

	x := r.Extremes
	fmt.Fprintf(w, "\n--- County extremes (q=%.2f) ---\n", x.Thresholds.Quantile)
	fmt.Fprintf(w, "  thresholds: max AQI >= %.1f, p90 AQI >= %.1f\n", x.Thresholds.MaxAQI, x.Thresholds.P90AQI)
	fmt.Fprintf(w, "  extreme: %d  high: %d  lower: %d\n",
		x.Counts[domain.TierExtreme], x.Counts[domain.TierHigh], x.Counts[domain.TierLower])
	for _, e := range x.Counties {
		if e.Tier == domain.TierLower {
			break
		}
		fmt.Fprintf(w, "  %-36s %-8s max %5.0f  p90 %5.0f  median %5.1f\n",
			e.County.String(), e.Tier, e.MaxAQI, e.P90AQI, e.MeanMedianAQI)
	}

	if len(r.SeverityPatterns) > 0 {
		fmt.Fprintln(w, "\n--- DAQSI patterns over time ---")
		for _, p := range r.SeverityPatterns {
			fmt.Fprintf(w, "  cluster %-3d counties %4d ", p.Cluster, len(p.Counties))
			for _, y := range p.MeanByYear {
				fmt.Fprintf(w, " %d:%+.3f", y.Year, y.Mean)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "\n--- Pollutant exposure (days) ---")
	fmt.Fprintf(w, "  %-36s %6s %6s %6s %6s\n", "County", "PM2.5", "Ozone", "NO2", "Total")
	for _, e := range r.Exposure {
		fmt.Fprintf(w, "  %-36s %6d %6d %6d %6d\n", e.County.String(), e.PM25, e.Ozone, e.NO2, e.Total)
	}
}
