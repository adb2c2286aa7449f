package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
)

// AnalyzerOptions holds the clustering and reporting parameters of a run.
type AnalyzerOptions struct {
	K                int
	Iterations       int
	EarlyStop        bool
	HighRiskQuantile float64
	SampleSize       int
	ExposureTopN     int
}

// Analyzer clusters counties and assembles the cluster report.
type Analyzer struct {
	opts     AnalyzerOptions
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer. geocoder may be nil to skip enrichment of
// the high-risk sample.
func NewAnalyzer(opts AnalyzerOptions, geocoder domain.Geocoder, logger *slog.Logger) *Analyzer {
	return &Analyzer{opts: opts, geocoder: geocoder, logger: logger}
}

// Analyze runs aggregation, normalization, k-means and ranking over records,
// then adds the high-risk sample, single-year classification, county extreme
// tiers, severity weights and patterns, and the exposure table.
func (a *Analyzer) Analyze(ctx context.Context, records []domain.AQIRecord) (domain.ClusterReport, error) {
	if len(records) == 0 {
		return domain.ClusterReport{}, fmt.Errorf("%w: no records to analyze", cluster.ErrInvalidInput)
	}

	aggs := domain.AggregateCounties(records)
	byID := make(map[string]domain.CountyAggregate, len(aggs))
	for _, agg := range aggs {
		byID[agg.Entity.ID] = agg
	}

	points, err := cluster.Normalize(domain.Entities(aggs))
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("normalize counties: %w", err)
	}

	var kopts []cluster.Option
	if a.opts.EarlyStop {
		kopts = append(kopts, cluster.WithEarlyStop())
	}
	partition, err := cluster.KMeans(ctx, points, a.opts.K, a.opts.Iterations, kopts...)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("partition %d counties: %w", len(points), err)
	}

	rankings, err := cluster.Rank(partition, domain.RiskScore)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("rank clusters: %w", err)
	}

	weights, err := domain.ComputeSeverityWeights(records)
	if err != nil {
		a.logger.Warn("severity weights unavailable", "error", err)
	}

	classification, _, err := domain.ClassifyHighRisk(records, a.opts.HighRiskQuantile, a.opts.SampleSize)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("classify high risk: %w", err)
	}

	extremes, err := domain.ClassifyExtremes(domain.CountyExtremes(records), a.opts.HighRiskQuantile)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("classify extremes: %w", err)
	}

	var patterns []domain.SeverityPattern
	if weights != nil {
		patterns, err = domain.SeverityPatterns(ctx, records, weights, a.opts.K, a.opts.Iterations)
		if err != nil {
			return domain.ClusterReport{}, fmt.Errorf("severity patterns: %w", err)
		}
	}

	report := domain.NewClusterReport(a.opts.K, partition.Iterations)
	report.Records = len(records)
	report.Counties = len(aggs)
	report.Rankings = rankings
	report.Assignments = domain.AssignmentsFromPartition(partition)
	report.HighestRiskCluster = rankings[0].Index
	report.Classification = classification
	report.Extremes = extremes
	report.SeverityWeights = weights
	report.SeverityPatterns = patterns
	report.Exposure = domain.PollutantExposure(records, a.opts.ExposureTopN)

	sample := domain.HighRiskSample(partition.Clusters[report.HighestRiskCluster], byID, weights, a.opts.SampleSize)
	for i := range sample {
		sample[i] = domain.EnrichWithGeocoding(ctx, sample[i], a.geocoder, a.logger)
	}
	report.HighRiskSample = sample

	a.logger.Debug("partition complete",
		"run_id", report.RunID,
		"counties", report.Counties,
		"iterations", partition.Iterations,
		"highest_risk_cluster", report.HighestRiskCluster,
		"highest_risk_score", rankings[0].MeanScore,
	)
	return report, nil
}
