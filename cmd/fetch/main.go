// Command fetch pulls assay data from the ImmPort query API into the local
// JSON cache, or dumps previously cached data for an endpoint into a single
// tab-separated table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/fetchcache"
	"github.com/hipc-validation/virus-strain-validator/internal/immport"
	"github.com/hipc-validation/virus-strain-validator/internal/report"
	"github.com/hipc-validation/virus-strain-validator/internal/studies"
	"github.com/hipc-validation/virus-strain-validator/pkg/config"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: fetch [flags] <action>

actions:
  fetch    download study data for an endpoint into the cache
  table    write all cached data for an endpoint as a TSV table to stdout

flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	endpointName := flag.String("endpoint", "", "ImmPort endpoint (hai or neutAbTiter)")
	studiesPath := flag.String("studiesinfo", "", "path to the studies info TSV (required for fetch)")
	studyIDs := flag.String("studies", "", "comma-separated study accessions (default: all for the endpoint)")
	refresh := flag.Bool("refresh", false, "re-download studies already present in the cache")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	action := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	endpoint, ok := immport.Endpoints[*endpointName]
	if !ok {
		known := make([]string, 0, len(immport.Endpoints))
		for name := range immport.Endpoints {
			known = append(known, name)
		}
		sort.Strings(known)
		fmt.Fprintf(os.Stderr, "unknown endpoint %q (known: %s)\n", *endpointName, strings.Join(known, ", "))
		os.Exit(2)
	}

	cache := fetchcache.New(cfg.Validator.CacheDir)

	switch action {
	case "fetch":
		if err := runFetch(cfg, cache, *endpointName, endpoint, *studiesPath, *studyIDs, *refresh); err != nil {
			slog.Error("fetch failed", "error", err)
			os.Exit(1)
		}
	case "table":
		if err := runTable(cache, *endpointName); err != nil {
			slog.Error("table failed", "error", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func runFetch(
	cfg *config.Config,
	cache *fetchcache.Cache,
	name string,
	endpoint immport.Endpoint,
	studiesPath, idList string,
	refresh bool,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ids []string
	if idList != "" {
		for _, id := range strings.Split(idList, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	} else {
		if studiesPath == "" {
			return fmt.Errorf("either -studies or -studiesinfo is required for fetch")
		}
		f, err := os.Open(studiesPath)
		if err != nil {
			return fmt.Errorf("opening studies info: %w", err)
		}
		rows, err := studies.Load(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("loading studies info: %w", err)
		}
		ids, err = studies.IDsForTechnique(rows, endpoint.Description)
		if err != nil {
			return err
		}
	}

	username := os.Getenv("IMMPORT_USERNAME")
	password := os.Getenv("IMMPORT_PASSWORD")
	if username == "" || password == "" {
		return fmt.Errorf("IMMPORT_USERNAME and IMMPORT_PASSWORD must be set")
	}

	client := immport.New(cfg.ImmPort)
	token, err := client.Authenticate(ctx, username, password)
	if err != nil {
		return fmt.Errorf("authenticating with ImmPort: %w", err)
	}

	start := time.Now()
	var fetched, skipped int
	for _, id := range ids {
		if !refresh {
			if _, ok, err := cache.Get(name, id); err != nil {
				return fmt.Errorf("reading cache for %s: %w", id, err)
			} else if ok {
				skipped++
				continue
			}
		}
		records, err := client.FetchStudy(ctx, token, name, id)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", id, err)
		}
		if err := cache.Put(name, id, records); err != nil {
			return fmt.Errorf("caching %s: %w", id, err)
		}
		slog.Info("fetched study", "endpoint", name, "study", id, "records", len(records))
		fetched++
	}
	slog.Info("fetch complete",
		"endpoint", name,
		"fetched", fetched,
		"cached", skipped,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// runTable concatenates every cached study for the endpoint into one table.
// Headers come from the first study that has records; studies whose records
// carry extra fields only contribute the shared columns.
func runTable(cache *fetchcache.Cache, name string) error {
	var headers []string
	w := report.NewRawWriter(os.Stdout)

	err := cache.Walk(name, func(studyID string, records []immport.Record) error {
		if len(records) == 0 {
			return nil
		}
		if headers == nil {
			headers = report.Headers(records)
			if err := w.WriteHeader(headers); err != nil {
				return err
			}
		}
		return w.WriteRecords(headers, records)
	})
	if err != nil {
		return err
	}
	if headers == nil {
		return fmt.Errorf("no cached data for endpoint %q", name)
	}
	return w.Flush()
}
