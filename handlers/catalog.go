package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"flikz/models"
	"flikz/services/catalog"

	"github.com/gorilla/mux"
)

type feedStore interface {
	Feed(req catalog.Request) *catalog.Feed
	Drop(clientID, gridKey string)
}

var _ feedStore = (*catalog.Store)(nil)

type genreLister interface {
	AllGenres(ctx context.Context, lang string) ([]models.Genre, error)
}

// CatalogHandler serves the infinite-scroll grids one page at a time.
type CatalogHandler struct {
	Feeds  feedStore
	Genres genreLister
	Locale *Locale
	now    func() time.Time
}

func NewCatalogHandler(feeds feedStore, genres genreLister, locale *Locale) *CatalogHandler {
	return &CatalogHandler{Feeds: feeds, Genres: genres, Locale: locale, now: time.Now}
}

// CatalogResponse is one scroll step of a grid.
type CatalogResponse struct {
	catalog.Batch
	Grid        string            `json:"grid"`
	Title       string            `json:"title"`
	Filter      catalog.FilterSet `json:"filter"`
	Language    string            `json:"language"`
	// Filtered is false while the filter matches the grid's defaults.
	Filtered    bool              `json:"filtered"`
	Country     string            `json:"country,omitempty"`
	CountryName string            `json:"countryName,omitempty"`
}

// resolveGrid reads the grid from the route: /catalog/{grid} or /catalog/genre/{id}.
func (h *CatalogHandler) resolveGrid(ctx context.Context, vars map[string]string, lang string) (catalog.Grid, error) {
	if raw, ok := vars["id"]; ok {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return catalog.LookupGrid("genre:" + raw)
		}
		return catalog.GenreGrid(id, h.genreName(ctx, id, lang)), nil
	}
	return catalog.LookupGrid(vars["grid"])
}

func (h *CatalogHandler) genreName(ctx context.Context, id int, lang string) string {
	if h.Genres == nil {
		return ""
	}
	genres, err := h.Genres.AllGenres(ctx, lang)
	if err != nil {
		return ""
	}
	for _, g := range genres {
		if g.ID == id {
			return g.Name
		}
	}
	return ""
}

// Next returns the next page of unseen titles. reset=1 restarts the feed and
// page=N loads a specific page instead of advancing.
func (h *CatalogHandler) Next(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefs := h.Locale.Resolve(r)

	grid, err := h.resolveGrid(r.Context(), mux.Vars(r), prefs.Language)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := h.now()
	filter, err := catalog.ParseFilterSet(q, now)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	filter = grid.Apply(filter)
	if err := filter.Validate(now); err != nil {
		writeServiceError(w, err)
		return
	}

	if q.Get("reset") == "1" || q.Get("reset") == "true" {
		h.Feeds.Drop(ClientID(r), grid.Key)
	}
	feed := h.Feeds.Feed(catalog.Request{
		ClientID: ClientID(r),
		Grid:     grid,
		Filter:   filter,
		Language: prefs.Language,
		Country:  prefs.Country,
	})

	var batch catalog.Batch
	if raw := q.Get("page"); raw != "" {
		page, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		batch, err = feed.LoadPage(r.Context(), page)
	} else {
		batch, err = feed.Next(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := CatalogResponse{
		Batch:    batch,
		Grid:     grid.Key,
		Title:    grid.DisplayTitle(prefs.CountryName, prefs.Country),
		Filter:   filter,
		Language: prefs.Language,
		Filtered: !filter.IsDefault(now),
	}
	if grid.ByRegion {
		resp.Country = prefs.Country
		resp.CountryName = prefs.CountryName
	}
	writeJSON(w, http.StatusOK, resp)
}
