package scheduler

import (
	"context"
	"fmt"
	"time"

	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/model"
	"CryptoPulse/internal/notifier"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Ingester runs one ingestion pass over the tracked symbols.
type Ingester interface {
	RunAll(ctx context.Context) int
	Symbols() []string
}

// Exporter runs one archival pass.
type Exporter interface {
	Run(ctx context.Context) (int, error)
}

// Forecaster runs one forecast pass over the given symbols.
type Forecaster interface {
	RunAll(ctx context.Context, symbols []string) map[string][]*model.ForecastRecord
}

// Sender delivers forecast summaries. It may be nil.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int, base time.Duration) error
}

// Scheduler manages the ingest, export and forecast cron jobs. Each job skips
// a tick while its previous run is still going; different jobs may overlap.
type Scheduler struct {
	Cron       *cron.Cron
	Ingester   Ingester
	Exporter   Exporter
	Forecaster Forecaster
	Sender     Sender
	Ctx        context.Context
	log        zerolog.Logger
}

// NewScheduler creates a new Scheduler. sender may be nil.
func NewScheduler(ctx context.Context, in Ingester, ex Exporter, fc Forecaster, sender Sender, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := logger.NewCronLogger(log)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Ingester:   in,
		Exporter:   ex,
		Forecaster: fc,
		Sender:     sender,
		Ctx:        ctx,
		log:        log,
	}
}

// RegisterAll registers the ingest, export and forecast tasks.
func (s *Scheduler) RegisterAll(ingestCron, exportCron, forecastCron string) error {
	if _, err := s.Cron.AddFunc(ingestCron, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(exportCron, s.exportTask); err != nil {
		return fmt.Errorf("register export task: %w", err)
	}
	if _, err := s.Cron.AddFunc(forecastCron, s.forecastTask); err != nil {
		return fmt.Errorf("register forecast task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.Cron.Stop().Done()
	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out with jobs still running")
	}
}

// RunIngestNow executes the ingest task immediately (RUN_ON_START).
func (s *Scheduler) RunIngestNow() {
	s.ingestTask()
}

// RunForecastNow executes the forecast task immediately.
func (s *Scheduler) RunForecastNow() {
	s.forecastTask()
}

func (s *Scheduler) ingestTask() {
	s.log.Debug().Msg("running ingest task")
	s.Ingester.RunAll(s.Ctx)
}

func (s *Scheduler) exportTask() {
	s.log.Info().Msg("running export task")
	files, err := s.Exporter.Run(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("export task")
		return
	}
	s.log.Info().Int("files", files).Msg("export task complete")
}

func (s *Scheduler) forecastTask() {
	s.log.Info().Msg("running forecast task")
	symbols := s.Ingester.Symbols()
	results := s.Forecaster.RunAll(s.Ctx, symbols)
	s.log.Info().Int("symbols", len(results)).Msg("forecast task complete")

	if s.Sender == nil {
		return
	}
	for _, sym := range symbols {
		recs, ok := results[sym]
		if !ok {
			continue
		}
		if err := s.Sender.SendWithRetry(s.Ctx, notifier.FormatForecast(sym, recs), 3, time.Second); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("send forecast summary")
		}
	}
}
