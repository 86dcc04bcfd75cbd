package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/spf13/afero"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func imageRequest(source string, width int) *http.Request {
	q := url.Values{}
	q.Set("url", source)
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	return httptest.NewRequest(http.MethodGet, "/api/images?"+q.Encode(), nil)
}

func TestImageHandler_ResizesAndCaches(t *testing.T) {
	body := testPNG(t, 400, 600)
	calls := 0
	httpc := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: make(http.Header)}, nil
	})}
	fs := afero.NewMemMapFs()
	handler := newImageHandler(fs, httpc)
	source := "https://image.tmdb.org/t/p/original/poster.png"

	rec := httptest.NewRecorder()
	handler.Proxy(rec, imageRequest(source, 200))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Cache") != "MISS" || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("unexpected headers: %v", rec.Header())
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 300 {
		t.Fatalf("expected 200x300, got %dx%d", cfg.Width, cfg.Height)
	}

	rec = httptest.NewRecorder()
	handler.Proxy(rec, imageRequest(source, 200))
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected cache hit, got %q", rec.Header().Get("X-Cache"))
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", calls)
	}

	count, size := handler.CacheStats()
	if count != 1 || size == 0 {
		t.Fatalf("unexpected cache stats %d/%d", count, size)
	}
	if err := handler.ClearCache(); err != nil {
		t.Fatalf("clear cache: %v", err)
	}
	if count, _ := handler.CacheStats(); count != 0 {
		t.Fatalf("expected empty cache, got %d", count)
	}
}

func TestImageHandler_RejectsForeignHosts(t *testing.T) {
	handler := newImageHandler(afero.NewMemMapFs(), &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected, got %s", req.URL)
		return nil, nil
	})})

	for _, source := range []string{"https://evil.example.com/a.png", "file:///etc/passwd", "ftp://image.tmdb.org/a.png",
		"http://image.tmdb.org/t/p/w500/a.png", "https://img.youtube.com/vi/abc/hqdefault.jpg", "https://image.tmdb.org.evil.example/a.png"} {
		rec := httptest.NewRecorder()
		handler.Proxy(rec, imageRequest(source, 0))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected %d, got %d", source, http.StatusForbidden, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.Proxy(rec, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected %d without url, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestImageHandler_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		want   int
	}{
		{"missing", http.StatusNotFound, nil, http.StatusNotFound},
		{"server error", http.StatusInternalServerError, nil, http.StatusBadGateway},
		{"not an image", http.StatusOK, []byte("<html>nope</html>"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		handler := newImageHandler(afero.NewMemMapFs(), &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: tt.status, Status: http.StatusText(tt.status), Body: io.NopCloser(bytes.NewReader(tt.body)), Header: make(http.Header)}, nil
		})})
		rec := httptest.NewRecorder()
		handler.Proxy(rec, imageRequest("https://image.tmdb.org/t/p/w500/x.jpg", 0))
		if rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
	}
}

func TestResizeToWidthNeverUpscales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	if got := resizeToWidth(img, 300); got.Bounds().Dx() != 100 {
		t.Fatalf("expected original width, got %d", got.Bounds().Dx())
	}
	if got := resizeToWidth(img, 10); got.Bounds().Dx() != 10 || got.Bounds().Dy() != 5 {
		t.Fatalf("expected 10x5, got %v", got.Bounds())
	}
}
