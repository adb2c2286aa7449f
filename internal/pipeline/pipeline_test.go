package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"github.com/couchcryptid/aqi-cluster/internal/observability"
	"github.com/couchcryptid/aqi-cluster/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	records []domain.AQIRecord
	errs    []error // returned by successive calls before records
	calls   atomic.Int64
}

func (m *mockExtractor) ExtractRecords(_ context.Context) ([]domain.AQIRecord, error) {
	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return m.records, nil
}

type mockLoader struct {
	loaded []domain.ClusterReport
	err    error
}

func (m *mockLoader) LoadReport(_ context.Context, report domain.ClusterReport) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, report)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use unregistered metrics to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newTestAnalyzer() *pipeline.Analyzer {
	return pipeline.NewAnalyzer(pipeline.AnalyzerOptions{
		K:                2,
		Iterations:       10,
		HighRiskQuantile: 0.9,
		SampleSize:       2,
		ExposureTopN:     3,
	}, nil, slog.Default())
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	ext := &mockExtractor{records: fixtureRecords()}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, newTestAnalyzer(), ldr, slog.Default(), metrics, time.Hour)
	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, report.RunID, ldr.loaded[0].RunID)
	assert.Equal(t, 6, report.Counties)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, report.RunID, latest.RunID)
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunsTotal), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(metrics.CountiesClustered), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.ClusterSize.WithLabelValues("1")), 0)
}

func TestPipeline_RunOnce_NilLoader(t *testing.T) {
	ext := &mockExtractor{records: fixtureRecords()}
	p := pipeline.New(ext, newTestAnalyzer(), nil, slog.Default(), newTestMetrics(), time.Hour)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	_, ok := p.Latest()
	assert.True(t, ok)
}

func TestPipeline_RunOnce_StageFailures(t *testing.T) {
	tests := []struct {
		name  string
		ext   *mockExtractor
		ldr   *mockLoader
		stage string
	}{
		{
			name:  "extract",
			ext:   &mockExtractor{errs: []error{errors.New("disk gone")}},
			ldr:   &mockLoader{},
			stage: "extract",
		},
		{
			name:  "analyze",
			ext:   &mockExtractor{},
			ldr:   &mockLoader{},
			stage: "analyze",
		},
		{
			name:  "load",
			ext:   &mockExtractor{records: fixtureRecords()},
			ldr:   &mockLoader{err: errors.New("broker down")},
			stage: "load",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestMetrics()
			p := pipeline.New(tt.ext, newTestAnalyzer(), tt.ldr, slog.Default(), metrics, time.Hour)

			_, err := p.RunOnce(context.Background())
			require.Error(t, err)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunFailures.WithLabelValues(tt.stage)), 0)
			assert.Error(t, p.CheckReadiness(context.Background()))
		})
	}
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{records: fixtureRecords()}
	ldr := &mockLoader{}

	p := pipeline.New(ext, newTestAnalyzer(), ldr, slog.Default(), newTestMetrics(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_RetriesTransientFailure(t *testing.T) {
	ext := &mockExtractor{
		records: fixtureRecords(),
		errs:    []error{errors.New("temporary"), errors.New("temporary")},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, newTestAnalyzer(), ldr, slog.Default(), newTestMetrics(), time.Hour)

	// Two backoffs (200ms + 400ms) before the third attempt succeeds.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ext.calls.Load())
	assert.Len(t, ldr.loaded, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_InvalidInputWaitsForInterval(t *testing.T) {
	ext := &mockExtractor{} // no records
	ldr := &mockLoader{}

	p := pipeline.New(ext, newTestAnalyzer(), ldr, slog.Default(), newTestMetrics(), time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ext.calls.Load())
	assert.Empty(t, ldr.loaded)
}

// --- helpers ---

// fixtureRecords holds three clean and three polluted counties for 2023,
// interleaved so the first two seeds fall in different groups.
func fixtureRecords() []domain.AQIRecord {
	return []domain.AQIRecord{
		record("Maine", "Low1", 20, 40, 70, 0, 300),
		record("Ohio", "High1", 80, 150, 400, 20, 100),
		record("Maine", "Low2", 25, 45, 80, 0, 290),
		record("Ohio", "High2", 85, 160, 450, 25, 90),
		record("Maine", "Low3", 22, 42, 75, 0, 310),
		record("Ohio", "High3", 78, 140, 380, 18, 110),
	}
}

func record(state, county string, median, p90, peak, unhealthy, good int) domain.AQIRecord {
	return domain.AQIRecord{
		State:         state,
		County:        county,
		Year:          2023,
		DaysWithAQI:   365,
		GoodDays:      good,
		ModerateDays:  365 - good - unhealthy,
		UnhealthyDays: unhealthy,
		MaxAQI:        peak,
		P90AQI:        p90,
		MedianAQI:     median,
		DaysOzone:     100 + unhealthy,
		DaysPM25:      150 + 2*unhealthy,
		DaysNO2:       10,
	}
}
