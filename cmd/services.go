package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/coursefinder-crawler/internal/api"
	"github.com/JakeFAU/coursefinder-crawler/internal/clock/system"
	"github.com/JakeFAU/coursefinder-crawler/internal/config"
	"github.com/JakeFAU/coursefinder-crawler/internal/coursefinder"
	"github.com/JakeFAU/coursefinder-crawler/internal/crawler"
	"github.com/JakeFAU/coursefinder-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/coursefinder-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/coursefinder-crawler/internal/hash/sha256"
	"github.com/JakeFAU/coursefinder-crawler/internal/id/uuid"
	"github.com/JakeFAU/coursefinder-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/coursefinder-crawler/internal/progress"
	"github.com/JakeFAU/coursefinder-crawler/internal/progress/sinks"
	pubmemory "github.com/JakeFAU/coursefinder-crawler/internal/publisher/memory"
	"github.com/JakeFAU/coursefinder-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/coursefinder-crawler/internal/search"
	"github.com/JakeFAU/coursefinder-crawler/internal/storage/gcs"
	"github.com/JakeFAU/coursefinder-crawler/internal/storage/local"
	"github.com/JakeFAU/coursefinder-crawler/internal/storage/memory"
	"github.com/JakeFAU/coursefinder-crawler/internal/storage/postgres"
	"github.com/JakeFAU/coursefinder-crawler/internal/writer"
)

// metricsRegisterer receives the progress collectors; tests swap in a fresh registry.
var metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

// services is everything one crawl command owns.
type services struct {
	runner  *coursefinder.Runner
	hub     *progress.Hub
	closers []func(context.Context) error
}

// Close flushes progress first so sinks see the final event, then releases
// stores and the monitoring server.
func (s *services) Close(ctx context.Context) error {
	var errs []error
	if s.hub != nil {
		if err := s.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(ctx context.Context, cfg config.Config, logger *zap.Logger, stdout io.Writer) (svc *services, err error) {
	svc = &services{}
	defer func() {
		if err != nil {
			_ = svc.Close(context.Background())
		}
	}()

	clock := system.New()

	f, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	var limiter crawler.Limiter
	if cfg.Crawler.RateLimitRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.RateLimitRPS})
	}
	engine := fetcher.NewEngine(f,
		crawler.NewRetryPolicy(cfg.HTTP.MaxAttempts, cfg.BackoffInitial(), cfg.BackoffMax()),
		limiter, logger.Named("fetch"))
	searcher := search.NewClient(f, search.Config{
		Host:        cfg.Crawler.Host,
		MaxAttempts: cfg.HTTP.SearchMaxAttempts,
		RetryDelay:  cfg.SearchRetryDelay(),
	}, logger.Named("search"))

	w, err := buildWriter(ctx, svc, cfg, clock, logger)
	if err != nil {
		return nil, err
	}

	svc.hub = buildHub(cfg, logger, stdout)

	var tracker coursefinder.Tracker
	if cfg.Server.Port > 0 {
		monitor := api.NewServer(clock, logger.Named("api"))
		if _, err := monitor.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			return nil, fmt.Errorf("start monitoring server: %w", err)
		}
		svc.closers = append(svc.closers, monitor.Shutdown)
		tracker = monitor
	}

	svc.runner, err = coursefinder.New(coursefinder.Config{
		Host:         cfg.Crawler.Host,
		Query:        cfg.Crawler.Query,
		Requirements: cfg.Crawler.Requirements,
		Concurrency:  cfg.Crawler.Concurrency,
		CSVPath:      cfg.Storage.CSVPath,
	}, coursefinder.Deps{
		Searcher: searcher,
		Fetcher:  engine,
		Writer:   w,
		Emitter:  svc.hub,
		Tracker:  tracker,
		IDs:      uuid.New(),
		Clock:    clock,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}
	return svc, nil
}

func buildWriter(ctx context.Context, svc *services, cfg config.Config, clock crawler.Clock, logger *zap.Logger) (*writer.Writer, error) {
	deps := writer.Deps{Hasher: sha256.New(), Clock: clock}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		deps.Blobs = memory.NewBlobStore()
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		svc.closers = append(svc.closers, func(context.Context) error { return store.Close() })
		deps.Blobs = store
	default:
		store, err := local.New(local.Config{BaseDir: cfg.Storage.OutputDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		deps.Blobs = store
	}

	if cfg.DB.DSN != "" {
		store, err := postgres.NewCourseStore(ctx, postgres.CourseStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxConns), //nolint:gosec
		})
		if err != nil {
			return nil, fmt.Errorf("init course store: %w", err)
		}
		svc.closers = append(svc.closers, func(context.Context) error { store.Close(); return nil })
		deps.Courses = store
	}

	topic := ""
	switch {
	case !cfg.PubSub.Enabled():
	case cfg.Storage.Backend == config.BackendMemory:
		// dry runs record notifications instead of publishing them
		pub := pubmemory.New()
		svc.closers = append(svc.closers, func(context.Context) error {
			logger.Info("notifications recorded",
				zap.String("topic", cfg.PubSub.TopicName),
				zap.Int("messages", len(pub.Messages())),
			)
			return nil
		})
		deps.Publisher = pub
		topic = cfg.PubSub.TopicName
	default:
		pub, err := pubsub.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		svc.closers = append(svc.closers, func(context.Context) error { return pub.Close() })
		deps.Publisher = pub
		topic = cfg.PubSub.TopicName
	}

	w, err := writer.New(writer.Config{Prefix: cfg.Storage.Prefix, Topic: topic}, deps, logger.Named("writer"))
	if err != nil {
		return nil, fmt.Errorf("init writer: %w", err)
	}
	return w, nil
}

func buildHub(cfg config.Config, logger *zap.Logger, stdout io.Writer) *progress.Hub {
	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	if promSink, err := sinks.NewPrometheusSink(metricsRegisterer); err != nil {
		logger.Warn("prometheus progress sink disabled", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	if cfg.Progress.Stdout {
		hubSinks = append(hubSinks, sinks.NewPercentSink(stdout))
	}
	return progress.NewHub(progress.Config{Logger: logger.Named("progress")}, hubSinks...)
}
