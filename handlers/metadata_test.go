package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"flikz/models"
	"flikz/services/metadata"

	"github.com/gorilla/mux"
)

func TestMetadataHandler_Search(t *testing.T) {
	fake := &fakeMetadataService{searchResp: &models.SearchPage{Query: "dune", Page: 2, TotalPages: 3, Results: []models.SearchResult{
		{MediaType: "movie", Title: &models.Title{TMDBID: 438631, Name: "Dune"}},
	}}}
	locale, _ := testLocale("IL")
	handler := NewMetadataHandler(fake, locale, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=dune&page=2", nil)
	rec := serve(http.HandlerFunc(handler.Search), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastKind != "multi" || fake.lastQuery != "dune" || fake.lastPage != 2 {
		t.Fatalf("unexpected call kind=%q query=%q page=%d", fake.lastKind, fake.lastQuery, fake.lastPage)
	}
	if fake.lastLang != "he" {
		t.Fatalf("expected language derived from IL, got %q", fake.lastLang)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content-type %q", got)
	}
	var payload models.SearchPage
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].Title.Name != "Dune" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMetadataHandler_SearchByTypeAndLanguageOverride(t *testing.T) {
	fake := &fakeMetadataService{searchResp: &models.SearchPage{}}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=hanks&type=person&language=fr-FR", nil)
	rec := serve(http.HandlerFunc(handler.Search), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastKind != "person" {
		t.Fatalf("expected person search, got %q", fake.lastKind)
	}
	if fake.lastLang != "fr-FR" {
		t.Fatalf("expected ?language to override, got %q", fake.lastLang)
	}
}

func TestMetadataHandler_SearchErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", metadata.ErrUnavailable), http.StatusServiceUnavailable},
		{metadata.ErrInvalidMediaType, http.StatusBadRequest},
	}
	for _, tt := range tests {
		fake := &fakeMetadataService{searchErr: tt.err}
		locale, _ := testLocale("US")
		handler := NewMetadataHandler(fake, locale, 10)

		rec := serve(http.HandlerFunc(handler.Search), httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))
		if rec.Code != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["error"] == "" {
			t.Fatalf("expected error message, got %v", payload)
		}
	}
}

func TestMetadataHandler_SuggestNeverNull(t *testing.T) {
	fake := &fakeMetadataService{}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	rec := serve(http.HandlerFunc(handler.Suggest), httptest.NewRequest(http.MethodGet, "/api/search/suggest?q=", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestMetadataHandler_MovieDetails(t *testing.T) {
	fake := &fakeMetadataService{movieResp: &models.MovieDetails{Title: models.Title{TMDBID: 27205, Name: "Inception"}, Director: "Christopher Nolan"}}
	locale, _ := testLocale("GB")
	handler := NewMetadataHandler(fake, locale, 10)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/movie/27205", nil), map[string]string{"id": "27205"})
	rec := serve(http.HandlerFunc(handler.MovieDetails), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastID != 27205 || fake.lastLang != "en-GB" {
		t.Fatalf("unexpected call id=%d lang=%q", fake.lastID, fake.lastLang)
	}
	var payload models.MovieDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Director != "Christopher Nolan" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMetadataHandler_MovieDetailsStatusCodes(t *testing.T) {
	locale, _ := testLocale("US")

	handler := NewMetadataHandler(&fakeMetadataService{}, locale, 10)
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/movie/abc", nil), map[string]string{"id": "abc"})
	if rec := serve(http.HandlerFunc(handler.MovieDetails), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected %d for bad id, got %d", http.StatusBadRequest, rec.Code)
	}

	handler = NewMetadataHandler(&fakeMetadataService{movieErr: fmt.Errorf("movie: %w", metadata.ErrNotFound)}, locale, 10)
	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/movie/1", nil), map[string]string{"id": "1"})
	if rec := serve(http.HandlerFunc(handler.MovieDetails), req); rec.Code != http.StatusNotFound {
		t.Fatalf("expected %d for missing movie, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestMetadataHandler_RelatedAndCredits(t *testing.T) {
	fake := &fakeMetadataService{cast: []models.CastMember{{ID: 1, Name: "Actor"}}}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/tv/1399/recommendations?page=3", nil), map[string]string{"type": "tv", "id": "1399"})
	rec := serve(http.HandlerFunc(handler.Recommendations), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastRelatedFor != "recommendations" || fake.lastMediaType != "tv" || fake.lastPage != 3 {
		t.Fatalf("unexpected related call %q %q %d", fake.lastRelatedFor, fake.lastMediaType, fake.lastPage)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/movie/5/credits", nil), map[string]string{"type": "movie", "id": "5"})
	rec = serve(http.HandlerFunc(handler.Credits), req)
	var cast []models.CastMember
	if err := json.Unmarshal(rec.Body.Bytes(), &cast); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(cast) != 1 || fake.lastMediaType != "movie" {
		t.Fatalf("unexpected credits %+v for %q", cast, fake.lastMediaType)
	}
}

func TestMetadataHandler_SeasonDetails(t *testing.T) {
	fake := &fakeMetadataService{seasonResp: &models.SeasonDetails{SeriesID: 1399, SeasonNumber: 2}}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/tv/1399/season/2", nil), map[string]string{"id": "1399", "season": "2"})
	if rec := serve(http.HandlerFunc(handler.SeasonDetails), req); rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastSeason != 2 || fake.lastID != 1399 {
		t.Fatalf("unexpected season call %d/%d", fake.lastID, fake.lastSeason)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/tv/1399/season/x", nil), map[string]string{"id": "1399", "season": "x"})
	if rec := serve(http.HandlerFunc(handler.SeasonDetails), req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestMetadataHandler_Genres(t *testing.T) {
	fake := &fakeMetadataService{genres: []models.Genre{{ID: 28, Name: "Action"}}}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	serve(http.HandlerFunc(handler.Genres), httptest.NewRequest(http.MethodGet, "/api/genres", nil))
	if fake.lastMediaType != "all" {
		t.Fatalf("expected merged genres without type, got %q", fake.lastMediaType)
	}
	serve(http.HandlerFunc(handler.Genres), httptest.NewRequest(http.MethodGet, "/api/genres?type=tv", nil))
	if fake.lastMediaType != "tv" {
		t.Fatalf("expected tv genres, got %q", fake.lastMediaType)
	}

	serve(http.HandlerFunc(handler.TopGenres), httptest.NewRequest(http.MethodGet, "/api/genres/top?limit=500", nil))
	if fake.lastLimit != 10 {
		t.Fatalf("expected out of range limit to fall back to 10, got %d", fake.lastLimit)
	}
}

func TestMetadataHandler_LanguagesFallback(t *testing.T) {
	fake := &fakeMetadataService{languageErr: errors.New("tmdb down")}
	locale, _ := testLocale("US")
	handler := NewMetadataHandler(fake, locale, 10)

	rec := serve(http.HandlerFunc(handler.Languages), httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	var langs []models.Language
	if err := json.Unmarshal(rec.Body.Bytes(), &langs); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(langs) != 3 || langs[0].ISO6391 != "en-US" {
		t.Fatalf("expected built-in options, got %+v", langs)
	}
}

func TestMetadataHandler_Home(t *testing.T) {
	fake := &fakeMetadataService{home: &models.HomeRows{Country: "FR"}}
	locale, _ := testLocale("FR")
	handler := NewMetadataHandler(fake, locale, 8)

	rec := serve(http.HandlerFunc(handler.Home), httptest.NewRequest(http.MethodGet, "/api/home", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}
	if fake.lastCountry != "FR" || fake.lastLang != "fr" || fake.lastLimit != 8 {
		t.Fatalf("unexpected home call country=%q lang=%q rows=%d", fake.lastCountry, fake.lastLang, fake.lastLimit)
	}
}
