package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"

	"flikz/internal/metrics"
	"flikz/models"
)

var ErrInvalidPage = errors.New("catalog: invalid page")

// Discoverer runs one TMDB discover query.
type Discoverer interface {
	Discover(ctx context.Context, mediaType string, params url.Values) (*models.TitlePage, error)
}

// Batch is the result of one page load.
type Batch struct {
	// Items are the titles of the page not shown before in this feed.
	Items      []models.Title `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	HasMore    bool           `json:"hasMore"`
	Duplicates int            `json:"duplicates"`
	Loaded     int            `json:"loaded"`
}

// Feed is the page cursor of one grid for one fingerprint.
type Feed struct {
	mu          sync.Mutex
	source      Discoverer
	mediaType   string
	params      url.Values
	fingerprint string
	maxPages    int

	page       int
	totalPages int
	started    bool
	loaded     map[int]struct{}
	acc        *Accumulator
}

// NewFeed builds an unstarted feed. maxPages caps the reported total pages; 0 means no cap.
func NewFeed(source Discoverer, mediaType string, params url.Values, fingerprint string, maxPages int) *Feed {
	return &Feed{
		source:      source,
		mediaType:   mediaType,
		params:      params,
		fingerprint: fingerprint,
		maxPages:    maxPages,
		loaded:      make(map[int]struct{}),
		acc:         NewAccumulator(),
	}
}

func (f *Feed) Fingerprint() string {
	return f.fingerprint
}

// HasMore is true before the first load and afterwards while page < totalPages.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMoreLocked()
}

func (f *Feed) hasMoreLocked() bool {
	if !f.started {
		return true
	}
	return f.page < f.totalPages
}

// Page is the highest page loaded so far, 0 before the first load.
func (f *Feed) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *Feed) Items() []models.Title {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acc.Items()
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acc.Len()
}

// Next loads the page after the cursor. Once the feed is exhausted it returns an
// empty batch with HasMore false and makes no request.
func (f *Feed) Next(ctx context.Context) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasMoreLocked() {
		return f.batchLocked(nil, 0), nil
	}
	return f.loadLocked(ctx, f.page+1)
}

// LoadPage loads page n explicitly. A page that was already loaded yields no new items.
func (f *Feed) LoadPage(ctx context.Context, n int) (Batch, error) {
	if n < 1 {
		return Batch{}, fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started && n > f.totalPages {
		return f.batchLocked(nil, 0), nil
	}
	return f.loadLocked(ctx, n)
}

func (f *Feed) loadLocked(ctx context.Context, n int) (Batch, error) {
	params := url.Values{}
	for k, vs := range f.params {
		params[k] = append([]string(nil), vs...)
	}
	params.Set("page", strconv.Itoa(n))

	result, err := f.source.Discover(ctx, f.mediaType, params)
	if err != nil {
		// The cursor stays put so the next call retries the same page.
		return Batch{}, fmt.Errorf("load %s page %d: %w", f.mediaType, n, err)
	}

	total := result.TotalPages
	if f.maxPages > 0 && total > f.maxPages {
		total = f.maxPages
	}
	f.started = true
	f.totalPages = total
	if n > f.page {
		f.page = n
	}
	if _, reloaded := f.loaded[n]; !reloaded {
		metrics.CatalogPagesLoaded.WithLabelValues(f.mediaType).Inc()
	}
	f.loaded[n] = struct{}{}

	fresh := f.acc.Add(result.Results)
	dupes := len(result.Results) - len(fresh)
	if dupes > 0 {
		metrics.CatalogDuplicatesDropped.Add(float64(dupes))
		log.Printf("[catalog] %s page %d: dropped %d duplicate titles", f.mediaType, n, dupes)
	}
	return f.batchLocked(fresh, dupes), nil
}

func (f *Feed) batchLocked(items []models.Title, dupes int) Batch {
	if items == nil {
		items = []models.Title{}
	}
	return Batch{
		Items:      items,
		Page:       f.page,
		TotalPages: f.totalPages,
		HasMore:    f.hasMoreLocked(),
		Duplicates: dupes,
		Loaded:     f.acc.Len(),
	}
}
