package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"flikz/models"
	metadatapkg "flikz/services/metadata"
	"flikz/services/preferences"

	"github.com/gorilla/mux"
)

type metadataService interface {
	Search(ctx context.Context, query, lang string, page int) (*models.SearchPage, error)
	SearchByType(ctx context.Context, kind, query, lang string, page int) (*models.SearchPage, error)
	Suggest(ctx context.Context, query, lang string) ([]models.SearchResult, error)
	MovieDetails(ctx context.Context, id int64, lang string) (*models.MovieDetails, error)
	SeriesDetails(ctx context.Context, id int64, lang string) (*models.SeriesDetails, error)
	Credits(ctx context.Context, mediaType string, id int64, lang string) ([]models.CastMember, error)
	SeasonDetails(ctx context.Context, seriesID int64, season int, lang string) (*models.SeasonDetails, error)
	Similar(ctx context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error)
	Recommendations(ctx context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error)
	PersonDetails(ctx context.Context, id int64, lang string) (*models.Person, error)
	PersonCredits(ctx context.Context, id int64, lang string) ([]models.PersonCredit, error)
	PopularPeople(ctx context.Context, lang string, page int) (*models.PersonPage, error)
	Genres(ctx context.Context, mediaType, lang string) ([]models.Genre, error)
	AllGenres(ctx context.Context, lang string) ([]models.Genre, error)
	TopGenres(ctx context.Context, lang string, limit int) ([]models.GenreCount, error)
	Languages(ctx context.Context) ([]models.Language, error)
	Home(ctx context.Context, lang, country string, rowSize int) (*models.HomeRows, error)
}

var _ metadataService = (*metadatapkg.Service)(nil)

type MetadataHandler struct {
	Service     metadataService
	Locale      *Locale
	HomeRowSize int
}

func NewMetadataHandler(s metadataService, locale *Locale, homeRowSize int) *MetadataHandler {
	if homeRowSize <= 0 {
		homeRowSize = 10
	}
	return &MetadataHandler{Service: s, Locale: locale, HomeRowSize: homeRowSize}
}

func (h *MetadataHandler) Home(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	rows, err := h.Service.Home(r.Context(), prefs.Language, prefs.Country, h.HomeRowSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := h.Locale.Resolve(r).Language
	page := parsePage(q.Get("page"))

	var (
		results *models.SearchPage
		err     error
	)
	switch kind := strings.ToLower(strings.TrimSpace(q.Get("type"))); kind {
	case "", "multi", "all":
		results, err = h.Service.Search(r.Context(), q.Get("q"), lang, page)
	default:
		results, err = h.Service.SearchByType(r.Context(), kind, q.Get("q"), lang, page)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *MetadataHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	lang := h.Locale.Resolve(r).Language
	results, err := h.Service.Suggest(r.Context(), r.URL.Query().Get("q"), lang)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *MetadataHandler) MovieDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	details, err := h.Service.MovieDetails(r.Context(), id, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *MetadataHandler) SeriesDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	details, err := h.Service.SeriesDetails(r.Context(), id, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *MetadataHandler) Credits(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := parseID(vars["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	cast, err := h.Service.Credits(r.Context(), vars["type"], id, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if cast == nil {
		cast = []models.CastMember{}
	}
	writeJSON(w, http.StatusOK, cast)
}

func (h *MetadataHandler) Similar(w http.ResponseWriter, r *http.Request) {
	h.related(w, r, h.Service.Similar)
}

func (h *MetadataHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	h.related(w, r, h.Service.Recommendations)
}

func (h *MetadataHandler) related(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string, int64, string, int) (*models.TitlePage, error)) {
	vars := mux.Vars(r)
	id, ok := parseID(vars["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	page, err := fetch(r.Context(), vars["type"], id, h.Locale.Resolve(r).Language, parsePage(r.URL.Query().Get("page")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MetadataHandler) SeasonDetails(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := parseID(vars["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	season, err := strconv.Atoi(vars["season"])
	if err != nil || season < 0 {
		writeError(w, http.StatusBadRequest, "invalid season")
		return
	}
	details, err := h.Service.SeasonDetails(r.Context(), id, season, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *MetadataHandler) PersonDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	person, err := h.Service.PersonDetails(r.Context(), id, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (h *MetadataHandler) PersonCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	credits, err := h.Service.PersonCredits(r.Context(), id, h.Locale.Resolve(r).Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if credits == nil {
		credits = []models.PersonCredit{}
	}
	writeJSON(w, http.StatusOK, credits)
}

func (h *MetadataHandler) PopularPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.Service.PopularPeople(r.Context(), h.Locale.Resolve(r).Language, parsePage(r.URL.Query().Get("page")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// Genres lists movie or tv genres, or both merged when type is omitted.
func (h *MetadataHandler) Genres(w http.ResponseWriter, r *http.Request) {
	lang := h.Locale.Resolve(r).Language
	var (
		genres []models.Genre
		err    error
	)
	if mediaType := strings.TrimSpace(r.URL.Query().Get("type")); mediaType != "" {
		genres, err = h.Service.Genres(r.Context(), mediaType, lang)
	} else {
		genres, err = h.Service.AllGenres(r.Context(), lang)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if genres == nil {
		genres = []models.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (h *MetadataHandler) TopGenres(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}
	genres, err := h.Service.TopGenres(r.Context(), h.Locale.Resolve(r).Language, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if genres == nil {
		genres = []models.GenreCount{}
	}
	writeJSON(w, http.StatusOK, genres)
}

// Languages returns the selector options; TMDB's list is appended when reachable.
func (h *MetadataHandler) Languages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.Service.Languages(r.Context())
	if err != nil {
		log.Printf("[http] tmdb languages unavailable, serving built-in options: %v", err)
		writeJSON(w, http.StatusOK, preferences.LanguageOptions(nil))
		return
	}
	writeJSON(w, http.StatusOK, preferences.LanguageOptions(langs))
}
