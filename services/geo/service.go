// Package geo detects a client's country from its IP address or browser coordinates.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flikz/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

var (
	ErrPrivateAddress     = errors.New("geo: private or invalid address")
	ErrInvalidCountry     = errors.New("geo: invalid country code")
	ErrInvalidCoordinates = errors.New("geo: invalid coordinates")
)

// lookupTimeout bounds a shared provider call once it is detached from its caller.
const lookupTimeout = 10 * time.Second

// Location sources.
const (
	SourceIPInfo    = "ipinfo"
	SourceNominatim = "nominatim"
	SourceDefault   = "default"
)

// Location is a detected country and where it came from.
type Location struct {
	Country     string `json:"country"`
	CountryName string `json:"countryName"`
	Source      string `json:"source"`
}

type Config struct {
	Provider       Provider
	HTTPClient     *http.Client
	NominatimURL   string
	DefaultCountry string
	CacheSize      int
	CacheTTL       time.Duration
	UserAgent      string
}

type Service struct {
	provider       Provider
	httpc          *http.Client
	nominatimURL   string
	defaultCountry string
	userAgent      string
	cache          *expirable.LRU[string, Location]
	group          singleflight.Group
}

func NewService(cfg Config) *Service {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if strings.TrimSpace(cfg.NominatimURL) == "" {
		cfg.NominatimURL = "https://nominatim.openstreetmap.org"
	}
	defaultCountry, err := NormalizeCountry(cfg.DefaultCountry)
	if err != nil {
		defaultCountry = "US"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flikz/1.0"
	}
	return &Service{
		provider:       cfg.Provider,
		httpc:          cfg.HTTPClient,
		nominatimURL:   strings.TrimRight(cfg.NominatimURL, "/"),
		defaultCountry: defaultCountry,
		userAgent:      cfg.UserAgent,
		cache:          expirable.NewLRU[string, Location](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// DefaultCountry is the country used when detection fails.
func (s *Service) DefaultCountry() string {
	return s.defaultCountry
}

func (s *Service) fallback() Location {
	metrics.GeoLookups.WithLabelValues(SourceDefault).Inc()
	return Location{Country: s.defaultCountry, CountryName: CountryName(s.defaultCountry), Source: SourceDefault}
}

// Detect resolves ip to a country. It never fails: private addresses, provider
// errors and a missing provider all yield the default country.
func (s *Service) Detect(ctx context.Context, ip string) Location {
	ip = strings.TrimSpace(ip)
	if IsPrivateIP(ip) || s.provider == nil || !s.provider.IsAvailable() {
		return s.fallback()
	}
	if loc, ok := s.cache.Get("ip:" + ip); ok {
		metrics.RecordCacheLookup("geo", true)
		return loc
	}
	metrics.RecordCacheLookup("geo", false)

	loc, err := s.shared(ctx, "ip:"+ip, func(ctx context.Context) (Location, error) {
		country, err := s.provider.Lookup(ctx, ip)
		if err != nil {
			return Location{}, err
		}
		return Location{Country: country, CountryName: CountryName(country), Source: s.provider.Name()}, nil
	})
	if err != nil {
		log.Printf("[geo] %s lookup for %s failed: %v", s.provider.Name(), ip, err)
		return s.fallback()
	}
	metrics.GeoLookups.WithLabelValues(s.provider.Name()).Inc()
	return loc
}

// shared runs lookup once per key for concurrent callers and caches its result.
// The lookup is detached from the caller that started it; each caller waits on its own ctx.
func (s *Service) shared(ctx context.Context, key string, lookup func(ctx context.Context) (Location, error)) (Location, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		loc, err := lookup(lookupCtx)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, loc)
		return loc, nil
	})
	select {
	case <-ctx.Done():
		return Location{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Location{}, res.Err
		}
		return res.Val.(Location), nil
	}
}

type nominatimResponse struct {
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
	Error string `json:"error"`
}

// ReverseGeocode resolves browser coordinates to a country with Nominatim.
// Upstream failures yield the default country; only out-of-range coordinates return an error.
func (s *Service) ReverseGeocode(ctx context.Context, lat, lon float64) (Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return s.fallback(), fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, lat, lon)
	}
	key := fmt.Sprintf("coord:%.2f,%.2f", lat, lon)
	if loc, ok := s.cache.Get(key); ok {
		metrics.RecordCacheLookup("geo", true)
		return loc, nil
	}
	metrics.RecordCacheLookup("geo", false)

	loc, err := s.shared(ctx, key, func(ctx context.Context) (Location, error) {
		country, err := s.nominatim(ctx, lat, lon)
		if err != nil {
			return Location{}, err
		}
		return Location{Country: country, CountryName: CountryName(country), Source: SourceNominatim}, nil
	})
	if err != nil {
		log.Printf("[geo] reverse geocode %.4f,%.4f failed: %v", lat, lon, err)
		return s.fallback(), nil
	}
	metrics.GeoLookups.WithLabelValues(SourceNominatim).Inc()
	return loc, nil
}

func (s *Service) nominatim(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "3")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.nominatimURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpc.Do(req)
	if err != nil {
		metrics.RecordUpstream("nominatim", "/reverse", "error", time.Since(start))
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstream("nominatim", "/reverse", "error", time.Since(start))
		return "", fmt.Errorf("nominatim request failed: %s", resp.Status)
	}
	metrics.RecordUpstream("nominatim", "/reverse", "ok", time.Since(start))

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}
	if payload.Error != "" {
		return "", errors.New(payload.Error)
	}
	return NormalizeCountry(payload.Address.CountryCode)
}
