package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

// newTestRouter registers every route without backing handlers. Only routes
// answered by the router itself are exercised here.
func newTestRouter(opts Options) *mux.Router {
	r := mux.NewRouter()
	Register(r, opts, nil, nil, nil, nil, nil, nil, nil)
	return r
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(Options{})

	for _, path := range []string{"/healthz", "/api/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected %d, got %d", path, http.StatusOK, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s: unexpected body %q", path, rec.Body.String())
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(Options{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/healthz"`) {
		t.Fatalf("expected request metrics keyed by route template")
	}
}

func TestUnknownAPIPathIsJSON404(t *testing.T) {
	r := newTestRouter(Options{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope/nothing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON error, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(Options{AllowedOrigins: []string{"https://flikz.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/preferences/language", nil)
	req.Header.Set("Origin", "https://flikz.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://flikz.example" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if rec.Code >= 300 {
		t.Fatalf("expected a successful preflight, got %d", rec.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	r := newTestRouter(Options{RequestsPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "198.51.100.9:5000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("another client must not be limited, got %d", rec.Code)
	}
}

func TestLocalhostOnlyMiddleware(t *testing.T) {
	handler := localhostOnlyMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		remote string
		host   string
		want   int
	}{
		{"127.0.0.1:51000", "localhost:7878", http.StatusNoContent},
		{"127.0.0.1:51000", "flikz.example", http.StatusNoContent},
		{"[::1]:51000", "[::1]:7878", http.StatusNoContent},
		{"203.0.113.7:51000", "localhost", http.StatusForbidden},
		{"203.0.113.7:51000", "127.0.0.1:7878", http.StatusForbidden},
		{"garbage", "localhost", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodDelete, "/api/cache", nil)
		req.RemoteAddr = tt.remote
		req.Host = tt.host
		req.Header.Set("X-Forwarded-For", "127.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("remote %s host %s: expected %d, got %d", tt.remote, tt.host, tt.want, rec.Code)
		}
	}
}

func TestClientCookieIssued(t *testing.T) {
	r := newTestRouter(Options{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("expected the client cookie to be issued")
	}
}
