package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flikz/internal/metrics"

	retry "github.com/avast/retry-go/v4"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// Posters: w500 is plenty for grid cards. Backdrops: w1280 covers 1080p heroes.
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
	tmdbProfileSize  = "w185"
	tmdbStillSize    = "w300"

	tmdbBreakerName = "tmdb-api"
)

var (
	ErrNotConfigured = errors.New("tmdb api key not configured")
	ErrNotFound      = errors.New("tmdb resource not found")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("tmdb temporarily unavailable")
)

// statusError is a non-2xx TMDB response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb request failed: %s", e.status)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

type tmdbClient struct {
	apiKey  string
	token   string
	baseURL string
	httpc   *http.Client

	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]byte]
	attempts uint
	backoff  time.Duration
}

func newTMDBClient(apiKey, token string, httpc *http.Client, minInterval time.Duration) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &tmdbClient{
		apiKey:   strings.TrimSpace(apiKey),
		token:    strings.TrimSpace(token),
		baseURL:  tmdbBaseURL,
		httpc:    httpc,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  newTMDBBreaker(),
		attempts: 3,
		backoff:  300 * time.Millisecond,
	}
}

// newTMDBBreaker opens after 60% failures over at least 10 requests and half-opens again after 2 minutes.
func newTMDBBreaker() *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(tmdbBreakerName).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        tmdbBreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				log.Printf("[tmdb] opening circuit: %d/%d requests failed", counts.TotalFailures, counts.Requests)
				return true
			}
			return false
		},
		// Client errors and cancellations say nothing about TMDB health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *statusError
			if errors.As(err, &se) {
				return !se.transient()
			}
			return errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[tmdb] circuit %s: %s -> %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && (c.apiKey != "" || c.token != "")
}

// doGET performs a throttled GET with retry and circuit breaking and decodes the JSON body into v.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, params url.Values, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}
	fullURL, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, endpoint, fullURL, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreakerName, "rejected").Inc()
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreakerName, "failure").Inc()
		return err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(tmdbBreakerName, "success").Inc()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

// fetch retries 429, 5xx and transport errors with exponential backoff.
func (c *tmdbClient) fetch(ctx context.Context, endpoint, fullURL string, params url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			q := url.Values{}
			for k, vs := range params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			} else {
				q.Set("api_key", c.apiKey)
			}
			req.Header.Set("Accept", "application/json")
			req.URL.RawQuery = q.Encode()

			start := time.Now()
			resp, err := c.httpc.Do(req)
			if err != nil {
				metrics.RecordUpstream("tmdb", endpointLabel(endpoint), "retry", time.Since(start))
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				metrics.RecordUpstream("tmdb", endpointLabel(endpoint), "error", time.Since(start))
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrNotFound, endpoint))
			}
			if resp.StatusCode >= 400 {
				se := &statusError{code: resp.StatusCode, status: resp.Status}
				if se.transient() {
					metrics.RecordUpstream("tmdb", endpointLabel(endpoint), "retry", time.Since(start))
					return se
				}
				metrics.RecordUpstream("tmdb", endpointLabel(endpoint), "error", time.Since(start))
				return retry.Unrecoverable(se)
			}

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			metrics.RecordUpstream("tmdb", endpointLabel(endpoint), "ok", time.Since(start))
			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[tmdb] %s failed (attempt %d/%d): %v", endpoint, n+1, c.attempts, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// endpointLabel collapses numeric path segments so metrics keep a bounded label set.
func endpointLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func langParams(lang string) url.Values {
	q := url.Values{}
	if lang = strings.TrimSpace(lang); lang != "" {
		q.Set("language", lang)
	}
	return q
}

func pageParams(lang string, page int) url.Values {
	q := langParams(lang)
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	return q
}

func (c *tmdbClient) discover(ctx context.Context, mediaType string, params url.Values) (*tmdbPagedResponse, error) {
	var resp tmdbPagedResponse
	if err := c.doGET(ctx, "discover/"+mediaType, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// search queries /search/{kind} where kind is multi, movie, tv or person.
func (c *tmdbClient) search(ctx context.Context, kind, query, lang string, page int) (*tmdbPagedResponse, error) {
	q := pageParams(lang, page)
	q.Set("query", query)
	q.Set("include_adult", "false")
	var resp tmdbPagedResponse
	if err := c.doGET(ctx, "search/"+kind, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) movieDetails(ctx context.Context, id int64, lang string) (*tmdbMovieDetails, error) {
	var resp tmdbMovieDetails
	if err := c.doGET(ctx, fmt.Sprintf("movie/%d", id), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) tvDetails(ctx context.Context, id int64, lang string) (*tmdbTVDetails, error) {
	var resp tmdbTVDetails
	if err := c.doGET(ctx, fmt.Sprintf("tv/%d", id), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) credits(ctx context.Context, mediaType string, id int64, lang string) (*tmdbCreditsResponse, error) {
	var resp tmdbCreditsResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d/credits", mediaType, id), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// videos includes untagged and English videos so localized pages still get a trailer.
func (c *tmdbClient) videos(ctx context.Context, mediaType string, id int64, lang string) (*tmdbVideosResponse, error) {
	q := langParams(lang)
	langs := []string{"en", "null"}
	if base := baseLanguage(lang); base != "" && base != "en" {
		langs = append([]string{base}, langs...)
	}
	q.Set("include_video_language", strings.Join(langs, ","))
	var resp tmdbVideosResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d/videos", mediaType, id), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// related fetches /{mediaType}/{id}/similar or /recommendations.
func (c *tmdbClient) related(ctx context.Context, mediaType string, id int64, kind, lang string, page int) (*tmdbPagedResponse, error) {
	var resp tmdbPagedResponse
	if err := c.doGET(ctx, fmt.Sprintf("%s/%d/%s", mediaType, id, kind), pageParams(lang, page), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) season(ctx context.Context, seriesID int64, season int, lang string) (*tmdbSeasonDetails, error) {
	var resp tmdbSeasonDetails
	if err := c.doGET(ctx, fmt.Sprintf("tv/%d/season/%d", seriesID, season), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) person(ctx context.Context, id int64, lang string) (*tmdbPerson, error) {
	var resp tmdbPerson
	if err := c.doGET(ctx, fmt.Sprintf("person/%d", id), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) personCombinedCredits(ctx context.Context, id int64, lang string) (*tmdbCombinedCredits, error) {
	var resp tmdbCombinedCredits
	if err := c.doGET(ctx, fmt.Sprintf("person/%d/combined_credits", id), langParams(lang), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) personImages(ctx context.Context, id int64) (*tmdbPersonImages, error) {
	var resp tmdbPersonImages
	if err := c.doGET(ctx, fmt.Sprintf("person/%d/images", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) personExternalIDs(ctx context.Context, id int64) (*tmdbExternalIDsResponse, error) {
	var resp tmdbExternalIDsResponse
	if err := c.doGET(ctx, fmt.Sprintf("person/%d/external_ids", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) popularPeople(ctx context.Context, lang string, page int) (*tmdbPagedResponse, error) {
	var resp tmdbPagedResponse
	if err := c.doGET(ctx, "person/popular", pageParams(lang, page), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *tmdbClient) genres(ctx context.Context, mediaType, lang string) ([]tmdbGenre, error) {
	var resp tmdbGenreListResponse
	if err := c.doGET(ctx, "genre/"+mediaType+"/list", langParams(lang), &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

func (c *tmdbClient) languages(ctx context.Context) ([]tmdbLanguage, error) {
	var resp []tmdbLanguage
	if err := c.doGET(ctx, "configuration/languages", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
