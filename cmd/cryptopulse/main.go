package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"CryptoPulse/internal/api"
	"CryptoPulse/internal/archive"
	"CryptoPulse/internal/backfill"
	"CryptoPulse/internal/batch"
	"CryptoPulse/internal/collector"
	"CryptoPulse/internal/config"
	"CryptoPulse/internal/forecast"
	"CryptoPulse/internal/ingest"
	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/metrics"
	"CryptoPulse/internal/notifier"
	"CryptoPulse/internal/pipeline"
	"CryptoPulse/internal/scheduler"
	"CryptoPulse/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		zlog.Fatal().Err(err).Msg("config validation")
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		zlog.Fatal().Err(err).Msg("init logger")
	}
	log.Info().Strs("symbols", cfg.Symbols).Msg("CryptoPulse starting")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("CryptoPulse exited")
	}
	log.Info().Msg("CryptoPulse stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	st, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine, err := openEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("open batch engine: %w", err)
	}
	defer engine.Close()

	client := collector.NewBinanceClient(cfg.Market.BaseURL, cfg.Proxy, cfg.Market.Timeout)
	fetcher := collector.NewFetcher(client, st, nil, log)
	svc := ingest.NewService(fetcher, st, cfg.Symbols, rec, log)
	loader := backfill.NewLoader(fetcher, client, st, cfg.Symbols, backfill.Options{
		Delay:         cfg.Backfill.Delay,
		LookbackHours: cfg.Backfill.LookbackHours,
		Interval:      cfg.Backfill.Interval,
	}, rec, log)
	exporter := archive.NewExporter(st, cfg.Archive.BasePath, nil, rec, log)
	fc := forecast.NewForecaster(engine, st, nil, rec, log)
	pipe := pipeline.New(svc, fc, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		sender scheduler.Sender
		tn     *notifier.TelegramNotifier
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, svc, exporter, fc, sender, log)
	if err := sched.RegisterAll(cfg.Schedule.IngestCron, cfg.Schedule.ExportCron, cfg.Schedule.ForecastCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}

	// The empty-store decision must precede the first ingest write.
	if !cfg.Backfill.Disabled {
		if _, err := loader.Check(ctx); err != nil {
			log.Error().Err(err).Msg("backfill check")
		}
	}
	sched.Start()

	// System ready: seed an empty store once.
	if !cfg.Backfill.Disabled {
		go func() {
			if _, err := loader.Run(ctx); err != nil {
				log.Error().Err(err).Msg("backfill")
			}
		}()
	}

	var srv *api.Server
	if !cfg.Server.Disabled {
		srv = api.NewServer(api.NewHandler(pipe, log), log,
			api.WithPort(cfg.Server.Port),
			api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			api.WithGatherer(reg),
		)
		srv.Start()
	}

	if tn != nil {
		go tn.StartPolling(ctx, notifier.NewCommands(pipe).Handle)
		log.Info().Msg("telegram polling started")
	}

	if cfg.RunOnStart {
		log.Info().Msg("run_on_start enabled, executing ingest task now")
		go sched.RunIngestNow()
	}

	log.Info().Msg("CryptoPulse is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	sched.Stop(stopCtx)
	if srv != nil {
		if err := srv.Stop(context.Background()); err != nil {
			log.Error().Err(err).Msg("stop http server")
		}
	}
	return nil
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Database.SQLitePath == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(cfg.Database.SQLitePath, log)
}

func openEngine(cfg *config.Config, log zerolog.Logger) (batch.Engine, error) {
	if cfg.Batch.Engine != "clickhouse" {
		return batch.NewLocalEngine(cfg.Archive.BasePath, cfg.Batch.Local.Workers, log), nil
	}
	ch := cfg.Batch.ClickHouse
	root := ch.ArchiveRoot
	if root == "" {
		root = cfg.Archive.BasePath
	}
	return batch.NewClickHouseEngine(log,
		batch.WithHost(ch.Host),
		batch.WithPort(ch.Port),
		batch.WithDatabase(ch.Database),
		batch.WithCredentials(ch.User, ch.Password),
		batch.WithHTTP(ch.UseHTTP),
		batch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		batch.WithMaxExecutionTime(ch.MaxExecutionTime),
		batch.WithArchiveRoot(root),
	)
}
