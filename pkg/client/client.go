// Package client implements the paginating GitHub API client: cache
// short-circuit, rate-limiter gating, outcome classification, Link-header
// page traversal, and best-effort partial results on abort.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/reconlab/ghrecon/pkg/cache"
	"github.com/reconlab/ghrecon/pkg/ratelimit"
)

// Prometheus metrics for API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghrecon_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ghrecon_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghrecon_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})

	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghrecon_rate_limit_cooldowns_total",
		Help: "Total rate limit cooldowns inserted during page loops",
	})
)

// DefaultCooldown is how long a fetch pauses after a 403 before retrying
// the same page once.
const DefaultCooldown = 60 * time.Second

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root (default: https://api.github.com).
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// Token is the API token. Empty means unauthenticated requests.
	Token string

	// Cache is the response cache (required).
	Cache *cache.Cache

	// Limiter paces requests. One limiter gates one logical request
	// stream; constructed here when nil.
	Limiter *ratelimit.Limiter

	// Transport issues the HTTP calls (default: HTTPTransport).
	Transport Transport

	// Cooldown is the pause inserted after a 403 before the single retry
	// of the same page (default: DefaultCooldown).
	Cooldown time.Duration

	// Logger for structured output.
	Logger zerolog.Logger
}

// Options controls a single fetch.
type Options struct {
	// MaxPages caps the page count. Zero means unlimited.
	MaxPages int

	// PerPage is the item count requested per page.
	PerPage int

	// Timeout is the per-call deadline passed to the transport.
	Timeout time.Duration

	// CacheTTL is the freshness window for the cache lookup.
	CacheTTL time.Duration
}

// DefaultOptions returns the default fetch options.
func DefaultOptions() Options {
	return Options{
		MaxPages: 0,
		PerPage:  100,
		Timeout:  30 * time.Second,
		CacheTTL: cache.DefaultMaxAge,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PerPage <= 0 {
		o.PerPage = def.PerPage
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = def.CacheTTL
	}
	return o
}

// Client is the paginating API client.
type Client struct {
	baseURL    string
	userAgent  string
	token      string
	cache      *cache.Cache
	limiter    *ratelimit.Limiter
	classifier *Classifier
	transport  Transport
	cooldown   time.Duration
	logger     zerolog.Logger
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("response cache is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ghrecon/1.0"
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter(cfg.Logger)
	}
	if cfg.Transport == nil {
		cfg.Transport = NewHTTPTransport()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		token:      cfg.Token,
		cache:      cfg.Cache,
		limiter:    cfg.Limiter,
		classifier: NewClassifier(cfg.Limiter, cfg.Logger),
		transport:  cfg.Transport,
		cooldown:   cfg.Cooldown,
		logger:     cfg.Logger,
	}, nil
}

// Limiter returns the client's rate limiter.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Fetch walks every page of endpoint and returns the accumulated raw items.
// A fresh cache hit for the same endpoint and parameter set returns
// immediately with no network activity. On abort (fatal status, repeated
// rate limit, transport failure) the items accumulated so far are returned
// alongside the error.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string, opts Options) ([]json.RawMessage, error) {
	opts = opts.withDefaults()
	if params == nil {
		params = map[string]string{}
	}

	payload, err := c.cache.Get(ctx, endpoint, params, opts.CacheTTL)
	switch {
	case err == nil:
		var items []json.RawMessage
		if uerr := json.Unmarshal(payload, &items); uerr != nil {
			errorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
			return nil, fmt.Errorf("%w: cached payload for %s is not a sequence", cache.ErrInvalidRecord, endpoint)
		}
		c.logger.Info().
			Str("endpoint", endpoint).
			Int("items", len(items)).
			Msg("Using cached response")
		return items, nil

	case errors.Is(err, cache.ErrInvalidRecord):
		errorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return nil, fmt.Errorf("cached response for %s: %w", endpoint, err)

	case !errors.Is(err, cache.ErrMiss):
		// Backend trouble is not fatal for the fetch itself.
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
	}

	items, loopErr := c.pageLoop(ctx, endpoint, params, opts)

	if len(items) > 0 {
		merged, merr := json.Marshal(items)
		if merr != nil {
			c.logger.Warn().Err(merr).Str("endpoint", endpoint).Msg("Failed to serialize results for cache")
		} else if perr := c.cache.Put(ctx, endpoint, params, merged); perr != nil {
			c.logger.Warn().Err(perr).Str("endpoint", endpoint).Msg("Failed to cache results")
		}
	}

	return items, loopErr
}

// pageLoop drives the request/classify/advance cycle starting at page 1.
func (c *Client) pageLoop(ctx context.Context, endpoint string, params map[string]string, opts Options) ([]json.RawMessage, error) {
	var items []json.RawMessage
	page := 1
	retried := false

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return items, err
		}

		reqParams := make(map[string]string, len(params)+2)
		for k, v := range params {
			reqParams[k] = v
		}
		reqParams["page"] = strconv.Itoa(page)
		reqParams["per_page"] = strconv.Itoa(opts.PerPage)

		start := time.Now()
		resp, err := c.transport.Get(ctx, Request{
			URL:     c.baseURL + endpoint,
			Headers: c.headers(),
			Params:  reqParams,
			Timeout: opts.Timeout,
		})
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
			requestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
			c.logger.Error().Err(err).
				Str("endpoint", endpoint).
				Int("page", page).
				Msg("Transport failure")
			return items, fmt.Errorf("%w: GET %s page %d: %w", ErrTransport, endpoint, page, err)
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		outcome := c.classifier.Classify(resp.StatusCode, resp.Header, resp.Body)
		switch outcome.Kind {
		case OutcomeEmpty:
			return items, nil

		case OutcomeRateLimited:
			if retried {
				errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("page", page).
					Int("items", len(items)).
					Msg("Rate limited twice on the same page - returning partial results")
				return items, &APIError{
					StatusCode: outcome.StatusCode,
					Message:    outcome.Message,
					Payload:    outcome.Payload,
					Err:        ErrRateLimited,
				}
			}
			retried = true
			cooldownsTotal.Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("page", page).
				Dur("cooldown", c.cooldown).
				Msg("Rate limited - cooling down before retrying page")
			if err := sleepContext(ctx, c.cooldown); err != nil {
				return items, err
			}
			// Retry the same page once.

		case OutcomeFatal:
			errorsTotal.WithLabelValues(string(ErrorClassFatal)).Inc()
			c.logger.Error().
				Str("endpoint", endpoint).
				Int("page", page).
				Int("status", outcome.StatusCode).
				Str("message", outcome.Message).
				Msg("Fatal API response")
			return items, &APIError{
				StatusCode: outcome.StatusCode,
				Message:    outcome.Message,
				Payload:    outcome.Payload,
			}

		case OutcomeSuccess:
			retried = false

			pageItems, err := flattenPayload(outcome.Payload)
			if err != nil {
				errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
				return items, fmt.Errorf("%w: unparseable body on %s page %d: %w", ErrTransport, endpoint, page, err)
			}
			if len(pageItems) == 0 {
				return items, nil
			}
			items = append(items, pageItems...)

			if !hasNextPage(resp.Header) || (opts.MaxPages > 0 && page >= opts.MaxPages) {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("pages", page).
					Int("items", len(items)).
					Msg("Fetch complete")
				return items, nil
			}
			page++
		}
	}
}

// headers returns the standard request headers.
func (c *Client) headers() map[string]string {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": c.userAgent,
	}
	if c.token != "" {
		headers["Authorization"] = "token " + c.token
	}
	return headers
}

// flattenPayload turns a response body into items: a list is flattened, a
// single object counts as one item, and an empty body or empty container
// yields no items.
func flattenPayload(payload json.RawMessage) ([]json.RawMessage, error) {
	var value any
	if len(payload) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		var list []json.RawMessage
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, err
		}
		return list, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
		return []json.RawMessage{payload}, nil
	default:
		return []json.RawMessage{payload}, nil
	}
}

// sleepContext sleeps for d, honoring context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
