// Command validate runs the batch validation pipeline: it reads the
// studies-info TSV and the NCBI Taxonomy reference, fetches (or reuses
// cached) study records for the requested endpoints, validates every
// reported and preferred virus strain name, and writes one TSV report per
// endpoint.
//
// ImmPort credentials are read from the IMMPORT_USERNAME and
// IMMPORT_PASSWORD environment variables; without them only cached study
// data can be used.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/internal/fetchcache"
	"github.com/hipc-validation/virus-strain-validator/internal/immport"
	"github.com/hipc-validation/virus-strain-validator/internal/store"
	"github.com/hipc-validation/virus-strain-validator/internal/studies"
	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
	"github.com/hipc-validation/virus-strain-validator/internal/validator"
	"github.com/hipc-validation/virus-strain-validator/pkg/config"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	studiesPath := flag.String("studiesinfo", "", "TSV file with general study information (required)")
	haiIDs := flag.String("hai", "", "comma-separated Hemagglutination Inhibition study ids (empty = all)")
	neutIDs := flag.String("neutAbTiter", "", "comma-separated Virus Neutralization study ids (empty = all)")
	persist := flag.Bool("persist", false, "persist verdicts to postgres")
	flag.Parse()

	if *studiesPath == "" {
		fmt.Fprintln(os.Stderr, "-studiesinfo is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	requests := requestedEndpoints(*haiIDs, *neutIDs)
	if len(requests) == 0 {
		fmt.Fprintln(os.Stderr, "at least one study type must be specified (-hai and/or -neutAbTiter)")
		os.Exit(1)
	}

	start := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("loading taxonomy reference",
		"archive", cfg.Taxonomy.ArchivePath,
		"nodes", cfg.Taxonomy.NodesPath,
		"names", cfg.Taxonomy.NamesPath,
	)
	graph, err := taxonomy.Load(cfg.Taxonomy)
	if err != nil {
		slog.Error("failed to load taxonomy", "error", err)
		os.Exit(1)
	}
	slog.Info("taxonomy loaded",
		"nodes", graph.NodeCount(),
		"scientific_names", graph.ScientificNameCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	studiesFile, err := os.Open(*studiesPath)
	if err != nil {
		slog.Error("failed to open studies info", "path", *studiesPath, "error", err)
		os.Exit(1)
	}
	rows, err := studies.Load(studiesFile)
	studiesFile.Close()
	if err != nil {
		slog.Error("failed to parse studies info", "error", err)
		os.Exit(1)
	}
	slog.Info("studies info loaded", "rows", len(rows))

	client := immport.New(cfg.ImmPort)
	runner := validator.NewRunner(
		engine.New(graph),
		client,
		fetchcache.New(cfg.Validator.CacheDir),
		cfg.Validator.OutputDir,
	)

	username := os.Getenv("IMMPORT_USERNAME")
	password := os.Getenv("IMMPORT_PASSWORD")
	if username != "" && password != "" {
		token, err := client.Authenticate(ctx, username, password)
		if err != nil {
			slog.Error("immport authentication failed", "error", err)
			os.Exit(1)
		}
		runner.Token = token
	} else {
		slog.Warn("IMMPORT_USERNAME/IMMPORT_PASSWORD not set, using cached data only")
	}

	if *persist {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		verdictStore, err := store.New(ctx, db)
		if err != nil {
			slog.Error("failed to initialise verdict store", "error", err)
			os.Exit(1)
		}
		runner.Store = verdictStore
		slog.Info("verdict persistence enabled", "run_id", runner.RunID)
	}

	if err := runner.Run(ctx, rows, requests); err != nil {
		slog.Error("validation run failed", "error", err)
		os.Exit(1)
	}

	if runner.Store != nil {
		counts, err := runner.Store.CountByOutcome(ctx, runner.RunID)
		if err != nil {
			slog.Warn("failed to summarise persisted verdicts", "error", err)
		} else {
			for outcome, count := range counts {
				slog.Info("verdict outcome", "outcome", outcome, "count", count)
			}
		}
	}
	slog.Info("processing completed", "elapsed", time.Since(start).Round(time.Millisecond))
}

// requestedEndpoints maps the id-list flags to validation requests. A flag
// explicitly set to the empty string means every study of that type.
func requestedEndpoints(haiIDs, neutIDs string) []validator.Request {
	var requests []validator.Request
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["hai"] {
		requests = append(requests, validator.Request{
			Endpoint: immport.Endpoints["hai"],
			StudyIDs: splitIDs(haiIDs),
		})
	}
	if set["neutAbTiter"] {
		requests = append(requests, validator.Request{
			Endpoint: immport.Endpoints["neutAbTiter"],
			StudyIDs: splitIDs(neutIDs),
		})
	}
	return requests
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
