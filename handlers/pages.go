package handlers

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flikz/models"
	"flikz/services/catalog"
	"flikz/services/wikipedia"

	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// rtlLanguages are rendered right to left.
var rtlLanguages = map[string]bool{"he": true, "ar": true, "fa": true, "ur": true}

var pageNames = []string{"home", "grid", "movie", "tv", "season", "person", "search", "notfound", "error"}

// PageHandler renders the HTML shell of every page. Grids fill themselves from
// /api/catalog as the user scrolls.
type PageHandler struct {
	Service metadataService
	Locale  *Locale
	Brand   string
	RowSize int
	tmpls   map[string]*template.Template
	now     func() time.Time
}

func NewPageHandler(s metadataService, locale *Locale, brand string, rowSize int) (*PageHandler, error) {
	funcMap := template.FuncMap{
		"imageURL":   imageURL,
		"fmtRating":  func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
		"join":       strings.Join,
		"add":        func(a, b int) int { return a + b },
		"genreNames": genreNames,
		"personPath": func(id int64) string { return "/person/" + strconv.FormatInt(id, 10) },
		"titlePath":  titlePath,
		"hasInt":     hasInt,
		"truncate":   wikipedia.Truncate,
	}
	tmpls := make(map[string]*template.Template, len(pageNames))
	for _, page := range pageNames {
		t, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		tmpls[page] = t
	}
	if brand == "" {
		brand = "Flikz"
	}
	if rowSize <= 0 {
		rowSize = 10
	}
	return &PageHandler{Service: s, Locale: locale, Brand: brand, RowSize: rowSize, tmpls: tmpls, now: time.Now}, nil
}

// Static serves the embedded scripts and styles.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// imageURL routes a TMDB image through the resizing proxy. It takes either an
// Image or a *Image since templates hold both.
func imageURL(v interface{}, width int) string {
	var src string
	switch img := v.(type) {
	case *models.Image:
		if img != nil {
			src = img.URL
		}
	case models.Image:
		src = img.URL
	}
	if src == "" {
		return ""
	}
	return "/api/images?url=" + url.QueryEscape(src) + "&w=" + strconv.Itoa(width)
}

func hasInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func genreNames(genres []models.Genre) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}

func titlePath(mediaType string, id int64) string {
	if mediaType == models.MediaTypeTV {
		return "/tv/" + strconv.FormatInt(id, 10)
	}
	return "/movie/" + strconv.FormatInt(id, 10)
}

// pageData is the common envelope every template receives.
type pageData struct {
	Brand     string
	Title     string
	Lang      string
	Dir       string
	Prefs     models.ResolvedPreferences
	Path      string
	Data      interface{}
	Timestamp int64
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, prefs models.ResolvedPreferences, data interface{}) {
	t, ok := h.tmpls[page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	dir := "ltr"
	if rtlLanguages[strings.SplitN(prefs.Language, "-", 2)[0]] {
		dir = "rtl"
	}
	var buf bytes.Buffer
	err := t.ExecuteTemplate(&buf, "base", pageData{
		Brand:     h.Brand,
		Title:     title,
		Lang:      prefs.Language,
		Dir:       dir,
		Prefs:     prefs,
		Path:      r.URL.Path,
		Data:      data,
		Timestamp: h.now().Unix(),
	})
	if err != nil {
		log.Printf("[http] render %s: %v", page, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// renderError picks the not-found page for missing resources and the error page otherwise.
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, prefs models.ResolvedPreferences, err error) {
	if statusFor(err) == http.StatusNotFound {
		h.render(w, r, http.StatusNotFound, "notfound", "Not Found", prefs, nil)
		return
	}
	log.Printf("[http] %s: %v", r.URL.Path, err)
	h.render(w, r, statusFor(err), "error", "Something went wrong", prefs, map[string]string{"Message": err.Error()})
}

func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", "Not Found", h.Locale.Resolve(r), nil)
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	rows, err := h.Service.Home(r.Context(), prefs.Language, prefs.Country, h.RowSize)
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	h.render(w, r, http.StatusOK, "home", h.Brand, prefs, rows)
}

// gridView is what the grid template needs to boot the infinite scroller.
type gridView struct {
	Grid      catalog.Grid
	APIPath   string
	MediaType string
	Filter    catalog.FilterSet
	Genres    []models.Genre
	Sorts     []sortOption
}

type sortOption struct {
	Value string
	Label string
}

func sortOptions(mediaType string) []sortOption {
	release := "primary_release_date.desc"
	if mediaType == models.MediaTypeTV {
		release = "first_air_date.desc"
	}
	return []sortOption{
		{Value: "popularity.desc", Label: "Popularity"},
		{Value: "vote_average.desc", Label: "Rating"},
		{Value: release, Label: "Release date"},
	}
}

// Grid renders /movies, /tvs, /movies-by-region and /tvs-by-region.
func (h *PageHandler) Grid(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs := h.Locale.Resolve(r)
		grid, err := catalog.LookupGrid(key)
		if err != nil {
			h.renderError(w, r, prefs, err)
			return
		}
		h.renderGrid(w, r, prefs, grid, "/api/catalog/"+grid.Key)
	}
}

func (h *PageHandler) GenreGrid(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		h.NotFound(w, r)
		return
	}
	name := ""
	if genres, err := h.Service.AllGenres(r.Context(), prefs.Language); err == nil {
		for _, g := range genres {
			if g.ID == id {
				name = g.Name
			}
		}
	}
	grid := catalog.GenreGrid(id, name)
	h.renderGrid(w, r, prefs, grid, "/api/catalog/genre/"+strconv.Itoa(id))
}

func (h *PageHandler) renderGrid(w http.ResponseWriter, r *http.Request, prefs models.ResolvedPreferences, grid catalog.Grid, apiPath string) {
	genres, err := h.Service.Genres(r.Context(), grid.MediaType, prefs.Language)
	if err != nil {
		log.Printf("[http] genres for %s filter: %v", grid.Key, err)
	}
	view := gridView{
		Grid:      grid,
		APIPath:   apiPath,
		MediaType: grid.MediaType,
		Filter:    grid.Apply(catalog.DefaultFilterSet(h.now())),
		Genres:    genres,
		Sorts:     sortOptions(grid.MediaType),
	}
	h.render(w, r, http.StatusOK, "grid", grid.DisplayTitle(prefs.CountryName, prefs.Country), prefs, view)
}

func (h *PageHandler) Movie(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		h.NotFound(w, r)
		return
	}
	details, err := h.Service.MovieDetails(r.Context(), id, prefs.Language)
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	h.render(w, r, http.StatusOK, "movie", details.Name, prefs, map[string]interface{}{
		"Details": details,
		"Related": h.relatedRows(r.Context(), models.MediaTypeMovie, id, prefs.Language),
	})
}

func (h *PageHandler) TV(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		h.NotFound(w, r)
		return
	}
	details, err := h.Service.SeriesDetails(r.Context(), id, prefs.Language)
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	h.render(w, r, http.StatusOK, "tv", details.Name, prefs, map[string]interface{}{
		"Details": details,
		"Related": h.relatedRows(r.Context(), models.MediaTypeTV, id, prefs.Language),
	})
}

type relatedRows struct {
	Similar         []models.Title
	Recommendations []models.Title
}

// relatedRows is best effort: a failing row is left empty.
func (h *PageHandler) relatedRows(ctx context.Context, mediaType string, id int64, lang string) relatedRows {
	var rows relatedRows
	if page, err := h.Service.Similar(ctx, mediaType, id, lang, 1); err == nil {
		rows.Similar = page.Results
	}
	if page, err := h.Service.Recommendations(ctx, mediaType, id, lang, 1); err == nil {
		rows.Recommendations = page.Results
	}
	return rows
}

func (h *PageHandler) Season(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	vars := mux.Vars(r)
	id, ok := parseID(vars["id"])
	season, err := strconv.Atoi(vars["season"])
	if !ok || err != nil || season < 0 {
		h.NotFound(w, r)
		return
	}
	details, err := h.Service.SeasonDetails(r.Context(), id, season, prefs.Language)
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	h.render(w, r, http.StatusOK, "season", details.Name, prefs, details)
}

func (h *PageHandler) Person(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		h.NotFound(w, r)
		return
	}
	person, err := h.Service.PersonDetails(r.Context(), id, prefs.Language)
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	credits, err := h.Service.PersonCredits(r.Context(), id, prefs.Language)
	if err != nil {
		log.Printf("[http] credits for person %d: %v", id, err)
	}
	h.render(w, r, http.StatusOK, "person", person.Name, prefs, map[string]interface{}{
		"Person":  person,
		"Credits": credits,
	})
}

func (h *PageHandler) Search(w http.ResponseWriter, r *http.Request) {
	prefs := h.Locale.Resolve(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.Service.Search(r.Context(), query, prefs.Language, parsePage(r.URL.Query().Get("page")))
	if err != nil {
		h.renderError(w, r, prefs, err)
		return
	}
	title := "Search"
	if query != "" {
		title = "Search: " + query
	}
	h.render(w, r, http.StatusOK, "search", title, prefs, results)
}
