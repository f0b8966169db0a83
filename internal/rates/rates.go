// Package rates looks up the peso/dollar exchange rate shown next to
// listing prices.
package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
	"github.com/stwalsh4118/tokkosync/internal/pick"
	"golang.org/x/sync/singleflight"
)

// Sources reported on a Rate.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

const (
	defaultTTL       = 10 * time.Minute
	defaultTimeout   = 10 * time.Second
	refreshTimeout   = 20 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrUnavailable is returned when no provider answered and nothing is
// cached.
var ErrUnavailable = errors.New("exchange rate unavailable")

// Rate is one dollar quote in pesos.
type Rate struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Buy       *float64  `json:"buy,omitempty"`
	Sell      *float64  `json:"sell,omitempty"`
	House     string    `json:"house"`
	Source    string    `json:"source"`
	Value     float64   `json:"value"`
	Stale     bool      `json:"stale"`
}

// Config configures a Service.
type Config struct {
	HTTPClient  *http.Client
	Now         func() time.Time
	PrimaryURL  string
	FallbackURL string
	// House is the quote to prefer among the primary provider's list.
	House string
	TTL   time.Duration
}

// Service serves a single cached rate, refreshing it from the primary
// provider, then the fallback, once the TTL passes. When both fail the
// last known rate is served marked stale.
type Service struct {
	cfg   Config
	log   *logger.Logger
	group singleflight.Group

	mu     sync.Mutex
	cached *Rate
}

// NewService creates a rate service.
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.House == "" {
		cfg.House = "oficial"
	}
	return &Service{cfg: cfg, log: log.WithComponent("rates")}
}

// Get returns the current rate.
func (s *Service) Get(ctx context.Context) (Rate, error) {
	if rate, ok := s.fresh(); ok {
		metrics.RatesLookupsTotal.WithLabelValues("cache").Inc()
		return rate, nil
	}

	// Waiters share one refresh, detached from the caller that started it
	v, err, _ := s.group.Do("rate", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})
	if err != nil {
		return Rate{}, err
	}
	return v.(Rate), nil
}

func (s *Service) fresh() (Rate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil || s.cfg.Now().Sub(s.cached.FetchedAt) >= s.cfg.TTL {
		return Rate{}, false
	}
	return *s.cached, true
}

func (s *Service) refresh(ctx context.Context) (Rate, error) {
	rate, err := s.fetchPrimary(ctx)
	if err != nil {
		s.log.Warn("Primary rate provider failed", map[string]interface{}{"error": err.Error()})

		rate, err = s.fetchFallback(ctx)
		if err != nil {
			s.log.Warn("Fallback rate provider failed", map[string]interface{}{"error": err.Error()})
			return s.stale()
		}
	}

	rate.FetchedAt = s.cfg.Now()
	metrics.RatesLookupsTotal.WithLabelValues(rate.Source).Inc()

	s.mu.Lock()
	s.cached = &rate
	s.mu.Unlock()

	return rate, nil
}

func (s *Service) stale() (Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		return Rate{}, ErrUnavailable
	}
	metrics.RatesLookupsTotal.WithLabelValues("stale").Inc()

	rate := *s.cached
	rate.Stale = true
	return rate, nil
}

type primaryQuote struct {
	Buy   *float64 `json:"compra"`
	Sell  *float64 `json:"venta"`
	House string   `json:"casa"`
}

func (s *Service) fetchPrimary(ctx context.Context) (Rate, error) {
	var quotes []primaryQuote
	if err := s.getJSON(ctx, s.cfg.PrimaryURL, &quotes); err != nil {
		return Rate{}, err
	}

	quote, ok := pick.Preferred(quotes, func(q primaryQuote) string { return q.House }, s.cfg.House)
	if !ok {
		return Rate{}, errors.New("primary provider returned no quotes")
	}

	value, ok := sellElseBuy(quote.Sell, quote.Buy)
	if !ok {
		return Rate{}, fmt.Errorf("quote %q has no value", quote.House)
	}

	return Rate{
		Buy:    quote.Buy,
		Sell:   quote.Sell,
		House:  quote.House,
		Source: SourcePrimary,
		Value:  value,
	}, nil
}

type fallbackQuote struct {
	Avg  *float64 `json:"value_avg"`
	Sell *float64 `json:"value_sell"`
	Buy  *float64 `json:"value_buy"`
}

type fallbackResponse struct {
	Official *fallbackQuote `json:"oficial"`
	Blue     *fallbackQuote `json:"blue"`
}

func (s *Service) fetchFallback(ctx context.Context) (Rate, error) {
	var resp fallbackResponse
	if err := s.getJSON(ctx, s.cfg.FallbackURL, &resp); err != nil {
		return Rate{}, err
	}

	house, quote := "oficial", resp.Official
	if strings.Contains(strings.ToLower(s.cfg.House), "blue") && resp.Blue != nil {
		house, quote = "blue", resp.Blue
	}
	if quote == nil {
		return Rate{}, errors.New("fallback provider returned no quote")
	}

	value, ok := sellElseBuy(quote.Sell, quote.Buy)
	if !ok {
		if quote.Avg == nil {
			return Rate{}, errors.New("fallback quote has no value")
		}
		value = *quote.Avg
	}

	return Rate{
		Buy:    quote.Buy,
		Sell:   quote.Sell,
		House:  house,
		Source: SourceFallback,
		Value:  value,
	}, nil
}

func sellElseBuy(sell, buy *float64) (float64, bool) {
	if sell != nil && *sell > 0 {
		return *sell, true
	}
	if buy != nil && *buy > 0 {
		return *buy, true
	}
	return 0, false
}

func (s *Service) getJSON(ctx context.Context, url string, out interface{}) error {
	if url == "" {
		return errors.New("provider URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}
