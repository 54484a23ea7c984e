package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CryptoPulse/internal/metrics"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/store"

	"github.com/rs/zerolog"
)

// Window is the trailing span exported per run.
const Window = time.Hour

// Exporter writes the trailing window of each symbol's price points to a
// partition file.
type Exporter struct {
	store   store.PriceStore
	base    string
	now     func() time.Time
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewExporter creates an Exporter rooted at base. now may be nil.
func NewExporter(st store.PriceStore, base string, now func() time.Time, rec *metrics.Recorder, log zerolog.Logger) *Exporter {
	if now == nil {
		now = time.Now
	}
	return &Exporter{
		store:   st,
		base:    base,
		now:     now,
		metrics: rec,
		log:     log.With().Str("component", "archive").Str("base", base).Logger(),
	}
}

// BasePath returns the archive root.
func (e *Exporter) BasePath() string { return e.base }

// Run exports every symbol known to the store. Per-symbol failures are logged
// and skipped. It returns the number of partition files written.
func (e *Exporter) Run(ctx context.Context) (int, error) {
	start := time.Now()
	symbols, err := e.store.Symbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("list symbols: %w", err)
	}

	end := e.now()
	files := 0
	for _, sym := range symbols {
		path, n, err := e.ExportSymbol(ctx, sym, end)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", sym).Msg("export failed for symbol")
			e.metrics.RecordSymbolFailure(metrics.JobExport, sym)
			continue
		}
		if n == 0 {
			e.log.Info().Str("symbol", sym).Msg("no points in window, skipping")
			continue
		}
		e.log.Info().Str("symbol", sym).Int("rows", n).Str("path", path).Msg("partition written")
		files++
	}
	e.metrics.RecordJobRun(metrics.JobExport, time.Since(start).Seconds())
	return files, nil
}

// ExportSymbol writes the points in [end-Window, end] for symbol to the
// partition of end's hour, replacing any existing file. An empty window
// writes nothing and returns n == 0.
func (e *Exporter) ExportSymbol(ctx context.Context, symbol string, end time.Time) (path string, n int, err error) {
	points, err := e.store.PricesInRange(ctx, symbol, end.Add(-Window), end)
	if err != nil {
		return "", 0, fmt.Errorf("query window: %w", err)
	}
	if len(points) == 0 {
		return "", 0, nil
	}

	dir := PartitionDir(e.base, symbol, end)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %v: %w", dir, err, model.ErrArchiveWriteFailure)
	}
	path = filepath.Join(dir, FileName)
	if err := writePartition(path, points); err != nil {
		return "", 0, fmt.Errorf("write %s: %v: %w", path, err, model.ErrArchiveWriteFailure)
	}
	e.metrics.RecordArchivedRows(symbol, len(points))
	return path, len(points), nil
}

// writePartition writes to a temp file in the same directory and renames it
// over path, so readers never see a half-written partition.
func writePartition(path string, points []*model.PricePoint) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prices-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return err
	}
	for _, p := range points {
		if err := w.Write(Row(p)); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
