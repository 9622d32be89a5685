package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"mention_collector/internal/collector"
	"mention_collector/internal/config"
	"mention_collector/internal/domain"
	"mention_collector/internal/job"
	"mention_collector/internal/notifier"
	"mention_collector/internal/publisher"
	"mention_collector/internal/scheduler"
	"mention_collector/internal/secrets"
	"mention_collector/internal/source/registry"
	"mention_collector/internal/storage"
	"mention_collector/internal/storage/memory"
	"mention_collector/internal/storage/postgres"
	"mention_collector/internal/storage/redis"
)

const (
	exitFailure    = 1
	exitValidation = 2
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	requestPath := flag.String("request", "", "path to a JSON collection request, - for stdin")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(exitFailure)
	}

	logger = setupLogger(cfg.LogLevel)

	path := *requestPath
	if path == "" {
		path = cfg.Schedule.RequestFile
	}
	req, err := readRequest(path)
	if err != nil {
		logger.Error("failed to read request", "path", path, "error", err)
		os.Exit(exitValidation)
	}

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(exitFailure)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Schedule.Interval > 0 {
		sched := scheduler.NewScheduler(app.collector, req, cfg.Schedule.Interval, cfg.Schedule.RunTimeout, logger)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
			os.Exit(exitFailure)
		}
		return
	}

	runCtx, runCancel := context.WithTimeout(ctx, cfg.Schedule.RunTimeout)
	defer runCancel()

	result, err := app.collector.Collect(runCtx, req)
	if err != nil {
		logger.Error("collection failed", "error", err, "error_kind", domain.ErrorKind(err))
		if errors.Is(err, domain.ErrValidation) {
			os.Exit(exitValidation)
		}
		os.Exit(exitFailure)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to write result", "error", err)
		os.Exit(exitFailure)
	}
}

type app struct {
	collector *collector.Collector
	closers   []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	deps := collector.Deps{Initializer: job.NewInitializer()}

	var db *sqlx.DB
	if cfg.Storage.Driver == "postgres" || cfg.Storage.RecordJobs {
		var err error
		db, err = sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db)
		logger.Info("connected to database")
	}

	var kv storage.KV
	switch cfg.Storage.Driver {
	case "postgres":
		kv = postgres.NewRecordStore(db)
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client)
		kv = redis.NewRecordStore(client, cfg.Redis.KeyPrefix)
	default:
		kv = memory.New()
	}
	deps.Store = storage.NewStore(kv, cfg.Storage.MaxConflictRetry, logger.With("component", "store"))

	if cfg.Storage.RecordJobs {
		deps.Recorder = postgres.NewJobLedger(db)
	}

	reg := registry.New(cfg.Sources, logger)
	deps.Sources = collector.SourceFactoryFunc(func(kind domain.SourceKind, creds domain.Credentials) (collector.Source, error) {
		return reg.New(kind, creds)
	})

	switch cfg.Secrets.Provider {
	case "file":
		f, err := secrets.LoadFile(cfg.Secrets.File)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Credentials = f
	default:
		deps.Credentials = secrets.NewEnv(cfg.Secrets.EnvPrefix, reg.CredentialVendor)
	}

	switch cfg.Notifier.Driver {
	case "log":
		deps.Notifier = notifier.NewLog(logger)
	case "memory":
		deps.Notifier = notifier.NewMemory()
	default:
		deps.Notifier = notifier.NewHTTP(cfg.Notifier.Timeout, cfg.Notifier.UserAgent, logger)
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, pub)
		deps.Publisher = pub
	}

	a.collector = collector.New(deps, cfg.Collector, logger)
	return a, nil
}

func readRequest(path string) (domain.Request, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return domain.Request{}, errors.New("no request given, use -request or schedule.request_file")
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Request{}, err
	}

	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.Request{}, fmt.Errorf("%w: invalid request json: %w", domain.ErrValidation, err)
	}
	return req, nil
}

// setupLogger writes to stderr; stdout carries the result document.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
