package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flikz/internal/metrics"

	"golang.org/x/time/rate"
)

// Provider resolves an IP address to an ISO country code.
type Provider interface {
	Lookup(ctx context.Context, ip string) (string, error)
	// Name is used as the metrics and Location source label.
	Name() string
	IsAvailable() bool
}

// IPInfoProvider looks addresses up with the ipinfo.io JSON API.
type IPInfoProvider struct {
	httpc   *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

type ipinfoResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Bogon   bool   `json:"bogon"`
}

// NewIPInfoProvider builds a provider allowing perSecond lookups per second.
func NewIPInfoProvider(httpc *http.Client, baseURL, token string, perSecond float64) *IPInfoProvider {
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://ipinfo.io"
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &IPInfoProvider{
		httpc:   httpc,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *IPInfoProvider) Name() string { return "ipinfo" }

// IsAvailable is true without a token too; ipinfo serves anonymous lookups at a lower quota.
func (p *IPInfoProvider) IsAvailable() bool { return p != nil && p.baseURL != "" }

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/json", p.baseURL, url.PathEscape(ip))
	if p.token != "" {
		endpoint += "?token=" + url.QueryEscape(p.token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpc.Do(req)
	if err != nil {
		metrics.RecordUpstream("ipinfo", "/:ip/json", "error", time.Since(start))
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstream("ipinfo", "/:ip/json", "error", time.Since(start))
		return "", fmt.Errorf("ipinfo lookup failed: %s", resp.Status)
	}
	metrics.RecordUpstream("ipinfo", "/:ip/json", "ok", time.Since(start))

	var payload ipinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode ipinfo response: %w", err)
	}
	if payload.Bogon {
		return "", ErrPrivateAddress
	}
	return NormalizeCountry(payload.Country)
}
