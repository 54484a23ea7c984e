package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"CryptoPulse/internal/archive"
	"CryptoPulse/internal/calculator"
	"CryptoPulse/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LocalEngine scans partition files on the local file system with a small
// pool of workers.
type LocalEngine struct {
	base    string
	workers int
	log     zerolog.Logger
}

// NewLocalEngine creates an engine reading partitions under base.
func NewLocalEngine(base string, workers int, log zerolog.Logger) *LocalEngine {
	if workers < 1 {
		workers = 1
	}
	return &LocalEngine{
		base:    base,
		workers: workers,
		log:     log.With().Str("component", "batch").Str("engine", "local").Logger(),
	}
}

func (e *LocalEngine) Name() string { return "local" }

func (e *LocalEngine) Aggregate(ctx context.Context, symbol string) (model.PriceStats, error) {
	if err := checkSymbol(symbol); err != nil {
		return model.PriceStats{}, err
	}
	files, err := filepath.Glob(archive.SymbolGlob(e.base, symbol))
	if err != nil {
		return model.PriceStats{}, fmt.Errorf("glob partitions: %w", err)
	}
	if len(files) == 0 {
		return model.PriceStats{}, fmt.Errorf("no partitions for %s: %w", symbol, model.ErrNoDataAvailable)
	}

	jobs := make(chan string)
	results := make(chan scanResult)
	var wg sync.WaitGroup
	for i := 0; i < min(e.workers, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				acc, err := scanPartition(path)
				results <- scanResult{path: path, acc: acc, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		total    calculator.Accumulator
		firstErr error
	)
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("scan %s: %w", r.path, r.err)
			}
			continue
		}
		total.Merge(r.acc)
	}
	if firstErr != nil {
		return model.PriceStats{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return model.PriceStats{}, err
	}

	e.log.Debug().Str("symbol", symbol).Int("files", len(files)).Int64("rows", total.Count()).Msg("partitions scanned")
	stats, err := total.Stats(symbol)
	if errors.Is(err, calculator.ErrEmptySample) {
		return model.PriceStats{}, fmt.Errorf("no rows for %s: %w", symbol, model.ErrNoDataAvailable)
	}
	return stats, err
}

func (e *LocalEngine) Close() error { return nil }

type scanResult struct {
	path string
	acc  *calculator.Accumulator
	err  error
}

func scanPartition(path string) (*calculator.Accumulator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return &calculator.Accumulator{}, nil
		}
		return nil, err
	}
	priceCol := -1
	for i, h := range header {
		if h == "price" {
			priceCol = i
			break
		}
	}
	if priceCol < 0 {
		return nil, errors.New("missing price column")
	}

	acc := &calculator.Accumulator{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(rec[priceCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		acc.Add(price)
	}
	return acc, nil
}
