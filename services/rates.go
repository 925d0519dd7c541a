package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownAsset = errors.New("no exchange rate configured for asset")
	ErrStaleRate    = errors.New("exchange rate is stale")
)

// RateSource yields the fiat exchange rate for an asset.
type RateSource interface {
	Rate(ctx context.Context, asset string) (float64, error)
}

// FixedRateSource serves rates from a static table.
type FixedRateSource map[string]float64

func (s FixedRateSource) Rate(_ context.Context, asset string) (float64, error) {
	rate, ok := s[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return rate, nil
}

// RateFetcher pulls a fresh rate from the upstream source.
type RateFetcher interface {
	Fetch(ctx context.Context, asset string) (float64, error)
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// CachedRateSource caches fetched rates and refuses to serve quotes older
// than maxAge: a checkout must never be priced on stale data.
type CachedRateSource struct {
	fetcher RateFetcher
	maxAge  time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedRate
}

func NewCachedRateSource(fetcher RateFetcher, maxAge time.Duration, log *zap.Logger) *CachedRateSource {
	return &CachedRateSource{
		fetcher: fetcher,
		maxAge:  maxAge,
		log:     log,
		now:     time.Now,
		cache:   make(map[string]cachedRate),
	}
}

func (s *CachedRateSource) Rate(ctx context.Context, asset string) (float64, error) {
	s.mu.Lock()
	cached, ok := s.cache[asset]
	s.mu.Unlock()

	if ok && s.now().Sub(cached.fetchedAt) < s.maxAge {
		return cached.rate, nil
	}

	rate, err := s.fetcher.Fetch(ctx, asset)
	if err != nil {
		if ok {
			// refresh failed and the cached quote has aged out
			s.log.Warn("Rate refresh failed with stale cache",
				zap.String("asset", asset),
				zap.Error(err),
			)
			return 0, fmt.Errorf("%w: %s", ErrStaleRate, asset)
		}
		return 0, err
	}

	s.mu.Lock()
	s.cache[asset] = cachedRate{rate: rate, fetchedAt: s.now()}
	s.mu.Unlock()
	return rate, nil
}

// HTTPRateFetcher queries a rate endpoint over HTTP.
type HTTPRateFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRateFetcher(baseURL string) *HTTPRateFetcher {
	return &HTTPRateFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPRateFetcher) Fetch(ctx context.Context, asset string) (float64, error) {
	reqURL := fmt.Sprintf("%s?asset=%s", f.BaseURL, url.QueryEscape(asset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Rate, nil
}
