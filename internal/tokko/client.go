// Package tokko talks to the Tokko Broker property feed and maps its
// records onto local rows.
package tokko

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
	"golang.org/x/time/rate"
)

// Property fetch limits applied when a caller does not configure its own.
const (
	DefaultLimit = 5
	MaxLimit     = 500
)

// maxErrorBodySize caps how much of an error response is kept.
const maxErrorBodySize = 64 * 1024

// Resource names, used in paths, errors and metrics.
const (
	ResourceProperty   = "property"
	ResourceBranch     = "branch"
	ResourceUser       = "user"
	ResourceOwner      = "owner"
	ResourceLocation   = "location"
	ResourceWebContact = "webcontact"
)

// Feed is the provider API as seen with one credential.
type Feed interface {
	ListProperties(ctx context.Context, req PageRequest) (*Page[PropertyDTO], error)
	ListBranches(ctx context.Context, req PageRequest) (*Page[BranchDTO], error)
	ListUsers(ctx context.Context, req PageRequest) (*Page[UserDTO], error)
	ListOwners(ctx context.Context, req PageRequest) (*Page[OwnerDTO], error)
	GetLocation(ctx context.Context, id int64) (*LocationDTO, error)
	CreateWebContact(ctx context.Context, contact WebContact) error
}

// Config configures a Client.
type Config struct {
	HTTPClient       *http.Client
	BaseURL          string
	Lang             string
	Timeout          time.Duration
	RateLimit        float64
	RateBurst        int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	LocationCacheTTL time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://www.tokkobroker.com/api/v1",
		Lang:             "es_ar",
		Timeout:          30 * time.Second,
		RateLimit:        4,
		RateBurst:        2,
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		LocationCacheTTL: 24 * time.Hour,
	}
}

// Client holds the state shared by every credential: HTTP transport, rate
// limiter, circuit breaker and the location cache.
type Client struct {
	cfg       Config
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[[]byte]
	locations *cache.Cache
	log       *logger.Logger
}

// NewClient creates a Client. Zero config values fall back to
// DefaultConfig.
func NewClient(cfg Config, log *logger.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Lang == "" {
		cfg.Lang = def.Lang
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.LocationCacheTTL <= 0 {
		cfg.LocationCacheTTL = def.LocationCacheTTL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	log = log.WithComponent("tokko")

	return &Client{
		cfg:       cfg,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:   newBreaker(log),
		locations: cache.New(cfg.LocationCacheTTL, 2*cfg.LocationCacheTTL),
		log:       log,
	}
}

// WithKey returns a Feed authenticated with apiKey.
func (c *Client) WithKey(apiKey string) Feed {
	return &session{client: c, key: strings.TrimSpace(apiKey)}
}

// ClampLimit applies the default and bounds to a caller-supplied property
// limit: nil or 0 gives DefaultLimit, anything else is clamped to
// [1, MaxLimit].
func ClampLimit(limit *int) int {
	return ClampLimitWith(limit, DefaultLimit, MaxLimit)
}

// ClampLimitWith is ClampLimit with explicit bounds.
func ClampLimitWith(limit *int, def, maxLimit int) int {
	if limit == nil || *limit == 0 {
		return def
	}
	if *limit < 1 {
		return 1
	}
	if *limit > maxLimit {
		return maxLimit
	}
	return *limit
}

type session struct {
	client *Client
	key    string
}

func (s *session) ListProperties(ctx context.Context, req PageRequest) (*Page[PropertyDTO], error) {
	return list[PropertyDTO](ctx, s, ResourceProperty, req)
}

func (s *session) ListBranches(ctx context.Context, req PageRequest) (*Page[BranchDTO], error) {
	return list[BranchDTO](ctx, s, ResourceBranch, req)
}

func (s *session) ListUsers(ctx context.Context, req PageRequest) (*Page[UserDTO], error) {
	return list[UserDTO](ctx, s, ResourceUser, req)
}

func (s *session) ListOwners(ctx context.Context, req PageRequest) (*Page[OwnerDTO], error) {
	return list[OwnerDTO](ctx, s, ResourceOwner, req)
}

// GetLocation fetches one location. Locations are global to the provider,
// so results are cached across credentials.
func (s *session) GetLocation(ctx context.Context, id int64) (*LocationDTO, error) {
	cacheKey := strconv.FormatInt(id, 10)
	if cached, found := s.client.locations.Get(cacheKey); found {
		if loc, ok := cached.(LocationDTO); ok {
			return &loc, nil
		}
	}

	body, err := s.client.call(ctx, http.MethodGet, ResourceLocation, ResourceLocation+"/"+cacheKey, s.query(nil), nil)
	if err != nil {
		return nil, err
	}

	var loc LocationDTO
	if err := json.Unmarshal(body, &loc); err != nil {
		return nil, malformedError(ResourceLocation, err)
	}

	s.client.locations.SetDefault(cacheKey, loc)
	return &loc, nil
}

// CreateWebContact forwards a lead to the provider.
func (s *session) CreateWebContact(ctx context.Context, contact WebContact) error {
	payload, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to encode web contact: %w", err)
	}

	_, err = s.client.call(ctx, http.MethodPost, ResourceWebContact, ResourceWebContact, s.query(nil), payload)
	return err
}

func (s *session) query(extra url.Values) url.Values {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("key", s.key)
	q.Set("format", "json")
	q.Set("lang", s.client.cfg.Lang)
	return q
}

func list[T any](ctx context.Context, s *session, resource string, req PageRequest) (*Page[T], error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(max(req.Offset, 0)))
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	body, err := s.client.call(ctx, http.MethodGet, resource, resource, s.query(params), nil)
	if err != nil {
		return nil, err
	}

	var page Page[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, malformedError(resource, err)
	}
	return &page, nil
}

// call waits for the rate limiter, then runs the request inside the circuit
// breaker.
func (c *Client) call(ctx context.Context, method, resource, path string, query url.Values, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(resource, "network").Inc()
		return nil, networkError(resource, err)
	}

	reqURL := fmt.Sprintf("%s/%s/?%s", c.cfg.BaseURL, path, query.Encode())

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, method, resource, reqURL, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.FeedRequestsTotal.WithLabelValues(resource, "rejected").Inc()
			return nil, networkError(resource, err)
		}
		metrics.FeedRequestsTotal.WithLabelValues(resource, Kind(err)).Inc()
		return nil, err
	}

	metrics.FeedRequestsTotal.WithLabelValues(resource, "success").Inc()
	return body, nil
}

// doWithRetry retries HTTP 429 with exponential backoff, honoring
// Retry-After when the provider sends it in seconds.
func (c *Client) doWithRetry(ctx context.Context, method, resource, reqURL string, payload []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, networkError(resource, err)
		}

		var reqBody io.Reader = http.NoBody
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, networkError(resource, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, networkError(resource, redact(err))
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			metrics.FeedRateLimitHits.WithLabelValues(resource).Inc()

			if attempt >= c.cfg.MaxRetries {
				return nil, statusError(resource, resp.StatusCode, "rate limit exceeded after retries")
			}

			delay := c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))
			if seconds, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && seconds >= 0 {
				delay = time.Duration(seconds) * time.Second
			}

			c.log.Debug("Provider rate limited, backing off", map[string]interface{}{
				"resource": resource,
				"attempt":  attempt + 1,
				"delay":    delay.String(),
			})

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, networkError(resource, ctx.Err())
			}
		}

		return readResponse(resource, resp)
	}
}

func readResponse(resource string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resource, resp.StatusCode, string(readBodyForError(resp.Body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(resource, err)
	}
	return body, nil
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return bytes.TrimSpace(body)
}

// redact strips the query string, which carries the API key, from
// transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			uerr.URL = u.String()
		}
	}
	return err
}
