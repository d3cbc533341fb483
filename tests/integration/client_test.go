//go:build integration

package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reconlab/ghrecon/internal/testutil"
	"github.com/reconlab/ghrecon/pkg/cache"
	"github.com/reconlab/ghrecon/pkg/client"
	"github.com/reconlab/ghrecon/pkg/hosts"
	"github.com/reconlab/ghrecon/pkg/ratelimit"
	"github.com/reconlab/ghrecon/pkg/recon"
	"github.com/reconlab/ghrecon/pkg/storage"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func repoJSON(owner, name string, stars int) string {
	return fmt.Sprintf(`{
		"id": %d,
		"name": %q,
		"owner": {"login": %q},
		"full_name": "%s/%s",
		"description": "integration test repository",
		"html_url": "https://github.com/%s/%s",
		"language": "Go",
		"stargazers_count": %d,
		"forks_count": 2,
		"created_at": "2021-03-01T00:00:00Z",
		"updated_at": "2025-01-15T00:00:00Z",
		"pushed_at": "2025-01-15T00:00:00Z"
	}`, stars, name, owner, owner, name, owner, name, stars)
}

// TestFullFetchPath walks the whole stack: a paginated mock API, a Redis
// response cache, the rate-limited client, and the SQLite host store.
func TestFullFetchPath(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGitHub()
	defer mock.Close()

	mock.SetPaginated("/orgs/acme/repos", []string{
		fmt.Sprintf(`[%s, %s]`, repoJSON("acme", "widget", 120), repoJSON("acme", "gadget", 40)),
		fmt.Sprintf(`[%s]`, repoJSON("acme", "sprocket", 15)),
	})

	db, err := storage.Open(filepath.Join(t.TempDir(), "integration.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()

	logger := zerolog.Nop()
	responseCache := cache.New(cache.NewRedisStore(redisClient), logger)

	limiter := ratelimit.NewLimiter(logger)
	limiter.SetClock(
		func() time.Time { return time.Unix(1000, 0) },
		func(context.Context, time.Duration) error { return nil },
	)

	apiClient, err := client.New(client.Config{
		BaseURL:  mock.URL(),
		Cache:    responseCache,
		Limiter:  limiter,
		Cooldown: time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	ctx := context.Background()

	// First fetch pages through the mock API.
	items, err := apiClient.Fetch(ctx, "/orgs/acme/repos", nil, client.Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Fetch() returned %d items, want 3 across both pages", len(items))
	}
	networkCalls := mock.GetRequestCount()

	// Second fetch is served from Redis with no network activity.
	cached, err := apiClient.Fetch(ctx, "/orgs/acme/repos", nil, client.Options{})
	if err != nil {
		t.Fatalf("cached Fetch() error = %v", err)
	}
	if len(cached) != 3 {
		t.Errorf("cached Fetch() returned %d items, want 3", len(cached))
	}
	if mock.GetRequestCount() != networkCalls {
		t.Errorf("cached Fetch() issued %d network calls, want 0",
			mock.GetRequestCount()-networkCalls)
	}

	// Normalize and persist through the host store.
	store := hosts.NewStore(db, logger)
	for _, raw := range items {
		host, err := hosts.Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize() error = %v", err)
		}
		if _, err := store.Upsert(ctx, host); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	stored, err := store.GetByFullName(ctx, "acme/widget")
	if err != nil {
		t.Fatalf("GetByFullName() error = %v", err)
	}
	if stored == nil || stored.Stars != 120 {
		t.Errorf("stored host = %+v, want acme/widget with 120 stars", stored)
	}
}

// TestServiceWithRedisCache runs the recon service end to end against the
// Redis cache backend.
func TestServiceWithRedisCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGitHub()
	defer mock.Close()

	mock.SetPaginated("/search/repositories", []string{
		fmt.Sprintf(`{"total_count": 1, "items": [%s]}`, repoJSON("acme", "widget", 120)),
	})

	db, err := storage.Open(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	defer db.Close()

	logger := zerolog.Nop()
	responseCache := cache.New(cache.NewRedisStore(redisClient), logger)

	limiter := ratelimit.NewLimiter(logger)
	limiter.SetClock(
		func() time.Time { return time.Unix(1000, 0) },
		func(context.Context, time.Duration) error { return nil },
	)

	apiClient, err := client.New(client.Config{
		BaseURL:  mock.URL(),
		Cache:    responseCache,
		Limiter:  limiter,
		Cooldown: time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	svc := recon.NewService(apiClient, hosts.NewStore(db, logger), responseCache, logger)
	ctx := context.Background()

	found, err := svc.SearchRepositories(ctx, "widget", "go", client.Options{})
	if err != nil {
		t.Fatalf("SearchRepositories() error = %v", err)
	}
	if len(found) != 1 || found[0].FullName != "acme/widget" {
		t.Fatalf("SearchRepositories() = %+v, want acme/widget", found)
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalHosts != 1 {
		t.Errorf("TotalHosts = %d, want 1", stats.TotalHosts)
	}
}
