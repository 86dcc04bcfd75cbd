package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"flikz/models"
	"flikz/services/catalog"

	"github.com/gorilla/mux"
)

// pagedDiscover serves totalPages pages of three titles; page n holds ids n*10..n*10+2.
// Every page also repeats title 1 so the feed has something to drop.
type pagedDiscover struct {
	mu         sync.Mutex
	totalPages int
	calls      []url.Values
}

func (d *pagedDiscover) Discover(_ context.Context, mediaType string, params url.Values) (*models.TitlePage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, params)
	page, _ := strconv.Atoi(params.Get("page"))
	results := []models.Title{{TMDBID: 1, MediaType: mediaType}}
	for i := 0; i < 3; i++ {
		results = append(results, models.Title{TMDBID: int64(page*10 + i), MediaType: mediaType})
	}
	return &models.TitlePage{Page: page, TotalPages: d.totalPages, Results: results}, nil
}

func (d *pagedDiscover) last() url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return nil
	}
	return d.calls[len(d.calls)-1]
}

func newCatalogTestHandler(totalPages int, country string) (*CatalogHandler, *pagedDiscover) {
	source := &pagedDiscover{totalPages: totalPages}
	locale, _ := testLocale(country)
	genres := &fakeMetadataService{genres: []models.Genre{{ID: 27, Name: "Horror"}}}
	handler := NewCatalogHandler(catalog.NewStore(source, 16, time.Hour, 500), genres, locale)
	handler.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return handler, source
}

func catalogRequest(target string, vars map[string]string) *http.Request {
	return withClient(mux.SetURLVars(httptest.NewRequest(http.MethodGet, target, nil), vars))
}

func decodeCatalog(t *testing.T, rec *httptest.ResponseRecorder) CatalogResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp CatalogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return resp
}

func TestCatalogHandler_ScrollsUntilLastPage(t *testing.T) {
	handler, source := newCatalogTestHandler(2, "US")
	vars := map[string]string{"grid": "movies"}

	first := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies?reset=1", vars)))
	if first.Page != 1 || !first.HasMore || len(first.Items) != 4 {
		t.Fatalf("unexpected first batch: page=%d hasMore=%v items=%d", first.Page, first.HasMore, len(first.Items))
	}
	if first.Title != "Movies" || first.Grid != "movies" {
		t.Fatalf("unexpected grid info %q %q", first.Grid, first.Title)
	}

	second := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies", vars)))
	if second.Page != 2 || second.HasMore {
		t.Fatalf("expected final page, got page=%d hasMore=%v", second.Page, second.HasMore)
	}
	if len(second.Items) != 3 || second.Duplicates != 1 || second.Loaded != 7 {
		t.Fatalf("expected repeated title to be dropped, got items=%d dups=%d loaded=%d", len(second.Items), second.Duplicates, second.Loaded)
	}

	calls := len(source.calls)
	third := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies", vars)))
	if len(third.Items) != 0 || third.HasMore {
		t.Fatalf("expected exhausted feed, got %+v", third.Batch)
	}
	if len(source.calls) != calls {
		t.Fatalf("exhausted feed must not hit upstream")
	}
}

func TestCatalogHandler_ResetAndFilterChangeRestart(t *testing.T) {
	handler, source := newCatalogTestHandler(5, "US")
	vars := map[string]string{"grid": "movies"}

	decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies", vars)))
	decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies", vars)))

	reset := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies?reset=1", vars)))
	if reset.Page != 1 || len(reset.Items) != 4 {
		t.Fatalf("expected reset to reload page 1, got page=%d items=%d", reset.Page, len(reset.Items))
	}
	if reset.Filtered {
		t.Fatalf("default filter must not be reported as filtered")
	}

	filtered := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies?genres=18&minRating=7", vars)))
	if filtered.Page != 1 {
		t.Fatalf("expected a filter change to start over, got page %d", filtered.Page)
	}
	if !filtered.Filtered {
		t.Fatalf("expected genre and rating filters to be reported")
	}
	last := source.last()
	if last.Get("with_genres") != "18" || last.Get("vote_average.gte") != "7" {
		t.Fatalf("filter not forwarded: %v", last)
	}
}

func TestCatalogHandler_RegionGrid(t *testing.T) {
	handler, source := newCatalogTestHandler(3, "FR")

	resp := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/tvs-by-region", map[string]string{"grid": "tvs-by-region"})))
	if resp.Title != "TV Shows In France" || resp.Country != "FR" {
		t.Fatalf("unexpected region grid %q %q", resp.Title, resp.Country)
	}
	if resp.Language != "fr" {
		t.Fatalf("expected language from country, got %q", resp.Language)
	}
	if got := source.last().Get("with_origin_country"); got != "FR" {
		t.Fatalf("expected origin country FR, got %q", got)
	}
}

func TestCatalogHandler_GenreGrid(t *testing.T) {
	handler, source := newCatalogTestHandler(3, "US")

	resp := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/genre/27", map[string]string{"id": "27"})))
	if resp.Title != "Horror" || resp.Grid != "genre:27" {
		t.Fatalf("unexpected genre grid %q %q", resp.Grid, resp.Title)
	}
	if got := source.last().Get("with_genres"); got != "27" {
		t.Fatalf("expected genre filter 27, got %q", got)
	}
}

func TestCatalogHandler_LoadSpecificPage(t *testing.T) {
	handler, _ := newCatalogTestHandler(4, "US")
	vars := map[string]string{"grid": "movies"}

	resp := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies?page=3", vars)))
	if resp.Page != 3 || !resp.HasMore {
		t.Fatalf("unexpected page load: page=%d hasMore=%v", resp.Page, resp.HasMore)
	}

	beyond := decodeCatalog(t, serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/movies?page=9", vars)))
	if len(beyond.Items) != 0 {
		t.Fatalf("expected no items past the last page, got %d", len(beyond.Items))
	}
}

func TestCatalogHandler_UnknownGridIsNotFound(t *testing.T) {
	handler, source := newCatalogTestHandler(3, "US")

	for _, vars := range []map[string]string{{"grid": "nope"}, {"id": "abc"}} {
		rec := serve(http.HandlerFunc(handler.Next), catalogRequest("/api/catalog/nope", vars))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%v: expected %d, got %d", vars, http.StatusNotFound, rec.Code)
		}
	}
	if len(source.calls) != 0 {
		t.Fatalf("unknown grid must not reach upstream")
	}
}

func TestCatalogHandler_BadRequests(t *testing.T) {
	handler, _ := newCatalogTestHandler(3, "US")

	tests := []struct {
		name   string
		target string
		vars   map[string]string
	}{
		{"bad genre", "/api/catalog/movies?genres=abc", map[string]string{"grid": "movies"}},
		{"rating out of range", "/api/catalog/movies?minRating=11", map[string]string{"grid": "movies"}},
		{"bad sort", "/api/catalog/movies?sort=random", map[string]string{"grid": "movies"}},
		{"bad page", "/api/catalog/movies?page=0", map[string]string{"grid": "movies"}},
		{"page not a number", "/api/catalog/movies?page=x", map[string]string{"grid": "movies"}},
	}
	for _, tt := range tests {
		rec := serve(http.HandlerFunc(handler.Next), catalogRequest(tt.target, tt.vars))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected %d, got %d", tt.name, http.StatusBadRequest, rec.Code)
		}
	}
}
