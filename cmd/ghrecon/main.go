package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reconlab/ghrecon/pkg/cache"
	"github.com/reconlab/ghrecon/pkg/client"
	"github.com/reconlab/ghrecon/pkg/hosts"
	"github.com/reconlab/ghrecon/pkg/logging"
	"github.com/reconlab/ghrecon/pkg/recon"
	"github.com/reconlab/ghrecon/pkg/storage"
)

const usage = `Usage: ghrecon <command> [args]

Commands:
  search <query> [language]   Search repositories via the API and store them
  repo <owner> <name>         Show one repository, fetching if stale
  local <query> [language]    Search stored repositories without the API
  stats                       Summarize stored repositories
  sweep                       Remove cached API responses past the sweep age
  serve                       Expose /health and /metrics over HTTP

Environment:
  GHRECON_DB     SQLite database path (default: ghrecon.db)
  GITHUB_TOKEN   API token for authenticated requests
  REDIS_URL      Optional Redis address for the response cache
  LOG_LEVEL      debug, info, warn or error (default: info)
  PORT           HTTP port for serve (default: 8080)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: true,
		Output: os.Stderr,
	})

	if err := run(os.Args[1], os.Args[2:], logger); err != nil {
		logger.Fatal().Err(err).Msg("Command failed")
	}
}

func run(command string, args []string, logger zerolog.Logger) error {
	db, err := storage.Open(getEnv("GHRECON_DB", "ghrecon.db"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	var store cache.Store = cache.NewSQLStore(db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to Redis at %s: %w", redisURL, err)
		}
		defer redisClient.Close()
		store = cache.NewRedisStore(redisClient)
		logger.Info().Str("addr", redisURL).Msg("Using Redis response cache")
	}

	responseCache := cache.New(store, logger)
	apiClient, err := client.New(client.Config{
		Token:  os.Getenv("GITHUB_TOKEN"),
		Cache:  responseCache,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	svc := recon.NewService(apiClient, hosts.NewStore(db, logger), responseCache, logger)

	switch command {
	case "search":
		if len(args) < 1 {
			return fmt.Errorf("search requires a query")
		}
		return runSearch(ctx, svc, args[0], optionalArg(args, 1))

	case "repo":
		if len(args) < 2 {
			return fmt.Errorf("repo requires <owner> <name>")
		}
		return runRepo(ctx, svc, args[0], args[1])

	case "local":
		if len(args) < 1 {
			return fmt.Errorf("local requires a query")
		}
		return runLocal(ctx, svc, args[0], optionalArg(args, 1))

	case "stats":
		return runStats(ctx, svc)

	case "sweep":
		removed, err := svc.CleanupCache(ctx, cache.DefaultSweepAge)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached responses\n", removed)
		return nil

	case "serve":
		return runServe(logger)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSearch(ctx context.Context, svc *recon.Service, query, language string) error {
	found, err := svc.SearchRepositories(ctx, query, language, client.Options{MaxPages: 3})
	if err != nil {
		// Partial results may have been stored; report both.
		fmt.Fprintf(os.Stderr, "search degraded: %v\n", err)
	}
	for _, h := range found {
		fmt.Printf("%-50s %8d stars  %s\n", h.FullName, h.Stars, h.Language)
	}
	fmt.Printf("%d repositories stored\n", len(found))
	return nil
}

func runRepo(ctx context.Context, svc *recon.Service, owner, name string) error {
	host, err := svc.RepositoryInfo(ctx, owner, name, false)
	if err != nil {
		return err
	}
	if host == nil {
		fmt.Printf("%s/%s not found\n", owner, name)
		return nil
	}
	fmt.Printf("%s\n", host.FullName)
	fmt.Printf("  %s\n", host.Description)
	fmt.Printf("  language: %s  stars: %d  forks: %d\n", host.Language, host.Stars, host.Forks)
	fmt.Printf("  url: %s\n", host.URL)
	fmt.Printf("  pushed: %s  cached: %s\n", host.PushedAt, host.CachedAt.Format(time.RFC3339))
	return nil
}

func runLocal(ctx context.Context, svc *recon.Service, query, language string) error {
	found, err := svc.SearchLocal(ctx, query, language)
	if err != nil {
		return err
	}
	for _, h := range found {
		fmt.Printf("%-50s %8d stars  %s\n", h.FullName, h.Stars, h.Language)
	}
	fmt.Printf("%d repositories matched\n", len(found))
	return nil
}

func runStats(ctx context.Context, svc *recon.Service) error {
	stats, err := svc.Statistics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Total repositories: %d\n\n", stats.TotalHosts)
	fmt.Println("Top languages:")
	for _, lc := range stats.TopLanguages {
		fmt.Printf("  %-20s %d\n", lc.Language, lc.Count)
	}
	fmt.Println("\nMost starred:")
	for _, sh := range stats.MostStarred {
		fmt.Printf("  %-50s %d\n", sh.FullName, sh.Stars)
	}
	return nil
}

func runServe(logger zerolog.Logger) error {
	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().Str("addr", addr).Msg("Starting metrics server")
	return http.ListenAndServe(addr, nil)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
