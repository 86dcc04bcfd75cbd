package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"flikz/internal/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	maxImageBytes  = 20 << 20
	maxImageWidth  = 2000
	defaultQuality = 80
)

const (
	imageHost         = "image.tmdb.org"
	imageFetchTimeout = 45 * time.Second
)

var errImageNotFound = errors.New("source image not found")

// ImageHandler proxies poster and profile images, resizing and caching them as JPEG.
type ImageHandler struct {
	fs    afero.Fs
	httpc *http.Client
	group singleflight.Group
}

// NewImageHandler caches under cacheDir/images.
func NewImageHandler(cacheDir string) *ImageHandler {
	dir := filepath.Join(cacheDir, "images")
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[images] could not create cache dir %s: %v", dir, err)
	}
	return newImageHandler(afero.NewBasePathFs(osFs, dir), &http.Client{Timeout: 30 * time.Second})
}

func newImageHandler(fs afero.Fs, httpc *http.Client) *ImageHandler {
	return &ImageHandler{fs: fs, httpc: httpc}
}

// Proxy handles /api/images.
// Query params:
//   - url: https source image URL on image.tmdb.org (required)
//   - w: target width, 0 keeps the original
//   - q: JPEG quality 1-100, default 80
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceURL := strings.TrimSpace(q.Get("url"))
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme != "https" || !strings.EqualFold(parsed.Hostname(), imageHost) {
		writeError(w, http.StatusForbidden, "URL not allowed")
		return
	}

	targetWidth := 0
	if raw := q.Get("w"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxImageWidth {
			targetWidth = v
		}
	}
	quality := defaultQuality
	if raw := q.Get("q"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 && v <= 100 {
			quality = v
		}
	}

	key := "/" + imageCacheKey(sourceURL, targetWidth, quality) + ".jpg"
	if data, err := afero.ReadFile(h.fs, key); err == nil {
		metrics.RecordCacheLookup("images", true)
		serveImage(w, data, "HIT")
		return
	}
	metrics.RecordCacheLookup("images", false)

	// The shared fetch is detached so one client going away does not fail the others.
	ch := h.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), imageFetchTimeout)
		defer cancel()
		return h.fetchAndStore(ctx, sourceURL, key, targetWidth, quality)
	})
	var res singleflight.Result
	select {
	case <-r.Context().Done():
		return
	case res = <-ch:
	}
	if err := res.Err; err != nil {
		log.Printf("[images] %s: %v", sourceURL, err)
		if errors.Is(err, errImageNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to load image")
		return
	}
	serveImage(w, res.Val.([]byte), "MISS")
}

func serveImage(w http.ResponseWriter, data []byte, cacheState string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=2592000") // 30 days
	w.Header().Set("X-Cache", cacheState)
	w.Write(data)
}

func (h *ImageHandler) fetchAndStore(ctx context.Context, sourceURL, key string, targetWidth, quality int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := h.httpc.Do(req)
	if err != nil {
		metrics.RecordUpstream("images", "/", "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		metrics.RecordUpstream("images", "/", "error", time.Since(start))
		return nil, errImageNotFound
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstream("images", "/", "error", time.Since(start))
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	metrics.RecordUpstream("images", "/", "ok", time.Since(start))
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	mtype := mimetype.Detect(raw)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("unexpected content type %s", mtype.String())
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mtype.String(), err)
	}
	img = resizeToWidth(img, targetWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	data := buf.Bytes()

	tmp := key + ".tmp"
	if err := afero.WriteFile(h.fs, tmp, data, 0o644); err != nil {
		log.Printf("[images] cache write error: %v", err)
		return data, nil
	}
	if err := h.fs.Rename(tmp, key); err != nil {
		h.fs.Remove(tmp)
		log.Printf("[images] cache rename error: %v", err)
	}
	return data, nil
}

// resizeToWidth downscales keeping the aspect ratio; it never upscales.
func resizeToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || width >= bounds.Dx() {
		return img
	}
	height := int(float64(bounds.Dy()) * float64(width) / float64(bounds.Dx()))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func imageCacheKey(sourceURL string, width, quality int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", sourceURL, width, quality)))
	return hex.EncodeToString(hash[:16])
}

// ClearCache removes all cached images.
func (h *ImageHandler) ClearCache() error {
	entries, err := afero.ReadDir(h.fs, "/")
	if err != nil {
		return err
	}
	var failed int
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jpg") {
			if err := h.fs.Remove("/" + entry.Name()); err != nil {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to remove %d files", failed)
	}
	return nil
}

// CacheStats counts the cached images and their total size.
func (h *ImageHandler) CacheStats() (count int, sizeBytes int64) {
	entries, err := afero.ReadDir(h.fs, "/")
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jpg") {
			count++
			sizeBytes += entry.Size()
		}
	}
	return
}
