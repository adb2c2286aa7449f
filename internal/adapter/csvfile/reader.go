// Package csvfile loads EPA annual AQI by county CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/aqi-cluster/internal/domain"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFiles bounds the number of files parsed at once.
const maxConcurrentFiles = 4

// Reader reads AQI records from a fixed list of CSV files.
// It implements pipeline.RecordExtractor.
type Reader struct {
	paths  []string
	logger *slog.Logger
}

// NewReader creates a Reader over paths, read in order on every extraction.
func NewReader(paths []string, logger *slog.Logger) *Reader {
	return &Reader{paths: paths, logger: logger}
}

// ExtractRecords reads every configured file and concatenates their records
// in path order. Files are parsed concurrently.
func (r *Reader) ExtractRecords(ctx context.Context) ([]domain.AQIRecord, error) {
	results := make([][]domain.AQIRecord, len(r.paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, path := range r.paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, skipped, err := readFile(path)
			if err != nil {
				return err
			}
			if skipped > 0 {
				r.logger.Warn("skipped rows without state or county", "path", path, "rows", skipped)
			}
			r.logger.Debug("dataset loaded", "path", path, "records", len(records))
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.AQIRecord
	for _, records := range results {
		all = append(all, records...)
	}
	return all, nil
}

func readFile(path string) ([]domain.AQIRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, skipped, err := Parse(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return records, skipped, nil
}

// Parse reads a header row followed by data rows. Rows with an empty State or
// County are skipped and counted. Errors name the offending line.
func Parse(r io.Reader) ([]domain.AQIRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, errors.New("empty file")
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = domain.NormalizeHeader(header[i])
	}
	if err := checkColumns(header); err != nil {
		return nil, 0, err
	}

	var records []domain.AQIRecord
	skipped := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				fields[name] = row[i]
			}
		}
		rec, err := domain.ParseAQIRow(fields)
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.State == "" || rec.County == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, col := range domain.RequiredColumns {
		if !present[col] {
			return fmt.Errorf("missing required column %q", col)
		}
	}
	return nil
}
