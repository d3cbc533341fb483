// Package recon is the high-level reconnaissance surface: it drives the API
// client, normalizes what comes back, and persists it through the host store.
package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/reconlab/ghrecon/pkg/cache"
	"github.com/reconlab/ghrecon/pkg/client"
	"github.com/reconlab/ghrecon/pkg/hosts"
)

var (
	hostsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghrecon_hosts_discovered_total",
		Help: "Total number of repository records normalized and stored",
	})

	recordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghrecon_records_skipped_total",
		Help: "Total number of raw records skipped because they could not be normalized",
	})
)

// FreshnessWindow is how long a stored host record is served without
// re-fetching from the API.
const FreshnessWindow = 24 * time.Hour

// Service coordinates API fetches with local persistence.
type Service struct {
	client *client.Client
	store  *hosts.Store
	cache  *cache.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a reconnaissance service. All dependencies are required.
func NewService(cl *client.Client, store *hosts.Store, c *cache.Cache, logger zerolog.Logger) *Service {
	if cl == nil || store == nil || c == nil {
		panic("client, store and cache are required")
	}
	return &Service{
		client: cl,
		store:  store,
		cache:  c,
		logger: logger.With().Str("component", "recon").Logger(),
		now:    time.Now,
	}
}

// SearchRepositories runs a repository search against the API, sorted by
// stars descending, and persists every result it can normalize. A non-empty
// language narrows the search with a language qualifier. Results that were
// fetched before any error occurred are still persisted and returned.
func (s *Service) SearchRepositories(ctx context.Context, query, language string, opts client.Options) ([]*hosts.Host, error) {
	q := query
	if language != "" {
		q = fmt.Sprintf("%s language:%s", query, language)
	}
	params := map[string]string{
		"q":     q,
		"sort":  "stars",
		"order": "desc",
	}

	items, fetchErr := s.client.Fetch(ctx, "/search/repositories", params, opts)
	stored := s.storeAll(ctx, unwrapSearchItems(items))

	s.logger.Info().
		Str("query", q).
		Int("fetched", len(items)).
		Int("stored", len(stored)).
		Msg("Repository search completed")

	return stored, fetchErr
}

// RepositoryInfo returns the record for owner/repo. A stored record younger
// than FreshnessWindow is served without network activity unless forceRefresh
// is set; otherwise the record is fetched, normalized and upserted.
func (s *Service) RepositoryInfo(ctx context.Context, owner, repo string, forceRefresh bool) (*hosts.Host, error) {
	fullName := owner + "/" + repo

	if !forceRefresh {
		stored, err := s.store.GetByFullName(ctx, fullName)
		if err != nil {
			return nil, err
		}
		if stored != nil && stored.Fresh(s.now(), FreshnessWindow) {
			s.logger.Debug().Str("full_name", fullName).Msg("Serving stored host record")
			return stored, nil
		}
	}

	endpoint := fmt.Sprintf("/repos/%s/%s", owner, repo)
	items, err := s.client.Fetch(ctx, endpoint, nil, client.Options{MaxPages: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	host, err := hosts.Normalize(items[0])
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Upsert(ctx, host); err != nil {
		return nil, err
	}
	hostsDiscovered.Inc()

	return host, nil
}

// SearchLocal queries stored host records without touching the API.
func (s *Service) SearchLocal(ctx context.Context, query, language string) ([]*hosts.Host, error) {
	return s.store.Search(ctx, query, language)
}

// Statistics summarizes the stored host records.
func (s *Service) Statistics(ctx context.Context) (*hosts.Statistics, error) {
	return s.store.Statistics(ctx)
}

// CleanupCache removes cached responses older than maxAge and returns how
// many were deleted. Zero maxAge falls back to the default sweep age.
func (s *Service) CleanupCache(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = cache.DefaultSweepAge
	}
	removed, err := s.cache.Sweep(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("removed", removed).Msg("Cache sweep completed")
	return removed, nil
}

// SetClock overrides the freshness clock (for testing).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// storeAll normalizes and upserts raw records, skipping the ones that lack
// an identity. It returns the hosts that were stored.
func (s *Service) storeAll(ctx context.Context, items []json.RawMessage) []*hosts.Host {
	stored := make([]*hosts.Host, 0, len(items))
	for _, raw := range items {
		host, err := hosts.Normalize(raw)
		if err != nil {
			recordsSkipped.Inc()
			if errors.Is(err, hosts.ErrMissingIdentity) {
				s.logger.Warn().Msg("Skipping record without owner or name")
			} else {
				s.logger.Warn().Err(err).Msg("Skipping malformed record")
			}
			continue
		}
		if _, err := s.store.Upsert(ctx, host); err != nil {
			s.logger.Error().Err(err).Str("full_name", host.FullName).Msg("Failed to store host")
			continue
		}
		hostsDiscovered.Inc()
		stored = append(stored, host)
	}
	return stored
}

// searchPage is the envelope the search endpoints wrap results in.
type searchPage struct {
	TotalCount int               `json:"total_count"`
	Items      []json.RawMessage `json:"items"`
}

// unwrapSearchItems expands search envelopes into their items. Records that
// are not envelopes pass through unchanged, so the same path handles both
// search responses and plain list endpoints.
func unwrapSearchItems(items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		var page searchPage
		if err := json.Unmarshal(raw, &page); err == nil && page.Items != nil {
			out = append(out, page.Items...)
			continue
		}
		out = append(out, raw)
	}
	return out
}
