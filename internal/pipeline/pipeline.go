package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aqi-cluster/internal/cluster"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/couchcryptid/aqi-cluster/internal/observability"
)

// RecordExtractor reads the county-year records of one run.
type RecordExtractor interface {
	ExtractRecords(ctx context.Context) ([]domain.AQIRecord, error)
}

// ReportAnalyzer turns records into a cluster report.
type ReportAnalyzer interface {
	Analyze(ctx context.Context, records []domain.AQIRecord) (domain.ClusterReport, error)
}

// ReportLoader publishes a finished report.
type ReportLoader interface {
	LoadReport(ctx context.Context, report domain.ClusterReport) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline orchestrates the extract-analyze-load cycle.
type Pipeline struct {
	extractor RecordExtractor
	analyzer  ReportAnalyzer
	loader    ReportLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	latest    atomic.Pointer[domain.ClusterReport]
}

// New creates a Pipeline that re-runs every interval. Pass a nil loader to
// skip publishing.
func New(e RecordExtractor, a ReportAnalyzer, l ReportLoader, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Pipeline {
	return &Pipeline{
		extractor: e,
		analyzer:  a,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
	}
}

// CheckReadiness returns nil once a report has been produced.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("no cluster report has been produced yet")
	}
	return nil
}

// Latest returns the most recent successful report.
func (p *Pipeline) Latest() (domain.ClusterReport, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.ClusterReport{}, false
	}
	return *r, true
}

// Run executes RunOnce every interval until the context is cancelled.
// Transient failures are retried with exponential backoff; invalid input
// waits for the next interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			if !errors.Is(err, cluster.ErrInvalidInput) {
				wait = backoff
				backoff = nextBackoff(backoff, maxBackoff)
			}
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce performs a single extract-analyze-load cycle and stores the report
// for Latest.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.ClusterReport, error) {
	start := time.Now()

	records, err := p.extractor.ExtractRecords(ctx)
	if err != nil {
		return domain.ClusterReport{}, p.fail("extract", fmt.Errorf("extract records: %w", err))
	}
	p.metrics.RecordsLoaded.Set(float64(len(records)))

	report, err := p.analyzer.Analyze(ctx, records)
	if err != nil {
		return domain.ClusterReport{}, p.fail("analyze", fmt.Errorf("analyze records: %w", err), "records", len(records))
	}

	if p.loader != nil {
		if err := p.loader.LoadReport(ctx, report); err != nil {
			return domain.ClusterReport{}, p.fail("load", fmt.Errorf("load report: %w", err), "run_id", report.RunID)
		}
	}

	p.latest.Store(&report)
	p.observe(report, time.Since(start))
	p.logger.Info("cluster run complete",
		"run_id", report.RunID,
		"records", report.Records,
		"counties", report.Counties,
		"k", report.K,
		"iterations", report.Iterations,
		"highest_risk_cluster", report.HighestRiskCluster,
		"duration", time.Since(start),
	)
	return report, nil
}

func (p *Pipeline) fail(stage string, err error, attrs ...any) error {
	p.metrics.RunFailures.WithLabelValues(stage).Inc()
	p.logger.Error("cluster run failed", append([]any{"stage", stage, "error", err}, attrs...)...)
	return err
}

func (p *Pipeline) observe(report domain.ClusterReport, d time.Duration) {
	p.metrics.RunsTotal.Inc()
	p.metrics.RunDuration.Observe(d.Seconds())
	p.metrics.CountiesClustered.Set(float64(report.Counties))
	p.metrics.ClusterSize.Reset()
	p.metrics.ClusterRisk.Reset()
	for _, r := range report.Rankings {
		label := strconv.Itoa(r.Index)
		p.metrics.ClusterSize.WithLabelValues(label).Set(float64(r.Size))
		p.metrics.ClusterRisk.WithLabelValues(label).Set(r.MeanScore)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
