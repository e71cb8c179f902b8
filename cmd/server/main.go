// Command server runs the strain classification HTTP service. It loads the
// taxonomy reference once at startup and serves classification verdicts
// over REST, with an optional Redis verdict cache, optional Kafka verdict
// events, health probes, and a Prometheus metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/classifier"
	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/internal/events"
	servercache "github.com/hipc-validation/virus-strain-validator/internal/server/cache"
	"github.com/hipc-validation/virus-strain-validator/internal/server/handler"
	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
	"github.com/hipc-validation/virus-strain-validator/pkg/config"
	"github.com/hipc-validation/virus-strain-validator/pkg/health"
	"github.com/hipc-validation/virus-strain-validator/pkg/kafka"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/metrics"
	"github.com/hipc-validation/virus-strain-validator/pkg/middleware"
	"github.com/hipc-validation/virus-strain-validator/pkg/ratelimit"
	pkgredis "github.com/hipc-validation/virus-strain-validator/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting classification service", "port", cfg.Server.Port)

	m := metrics.New()

	start := time.Now()
	graph, err := taxonomy.Load(cfg.Taxonomy)
	if err != nil {
		slog.Error("failed to load taxonomy", "error", err)
		os.Exit(1)
	}
	m.TaxonomyNames.Set(float64(graph.ScientificNameCount()))
	m.TaxonomyLoadSeconds.Set(time.Since(start).Seconds())
	slog.Info("taxonomy loaded",
		"nodes", graph.NodeCount(),
		"scientific_names", graph.ScientificNameCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	e := engine.New(graph).WithMetrics(m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verdictCache *servercache.VerdictCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, verdict caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		verdictCache = servercache.New(redisClient, cfg.Redis).WithMetrics(m)
		slog.Info("verdict cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.VerdictEvents)
		defer producer.Close()
		publisher = events.NewPublisher(producer, 4096)
		publisher.Start(ctx)
		defer publisher.Close()
		slog.Info("verdict events enabled", "topic", cfg.Kafka.Topics.VerdictEvents)
	}

	checker := health.NewChecker()
	checker.Register("taxonomy", func(ctx context.Context) health.ComponentHealth {
		virus, err := classifier.IsVirus(taxonomy.VirusRoot, graph)
		if err != nil || !virus {
			return health.ComponentHealth{Status: health.StatusDown, Message: "taxonomy graph unusable"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d nodes", graph.NodeCount()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(e, verdictCache, publisher)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /healthz", checker.LiveHandler())
	mux.HandleFunc("GET /readyz", checker.ReadyHandler())

	var inner http.Handler = middleware.Timeout(cfg.Server.RequestTimeout)(mux)
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(time.Minute)
		inner = middleware.RateLimit(limiter, cfg.Server.RateLimitPerMinute)(inner)
	}
	chain := middleware.RequestID()(middleware.Metrics(m)(inner))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	go func() {
		slog.Info("classification service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
	slog.Info("classification service stopped")
}
