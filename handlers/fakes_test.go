package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"flikz/models"
	"flikz/services/geo"
	"flikz/services/preferences"
)

type fakeMetadataService struct {
	searchResp  *models.SearchPage
	searchErr   error
	suggestResp []models.SearchResult
	movieResp   *models.MovieDetails
	movieErr    error
	seriesResp  *models.SeriesDetails
	seriesErr   error
	seasonResp  *models.SeasonDetails
	personResp  *models.Person
	personErr   error
	credits     []models.PersonCredit
	cast        []models.CastMember
	related     *models.TitlePage
	genres      []models.Genre
	topGenres   []models.GenreCount
	languages   []models.Language
	languageErr error
	home        *models.HomeRows
	homeErr     error

	lastLang       string
	lastQuery      string
	lastKind       string
	lastPage       int
	lastID         int64
	lastMediaType  string
	lastSeason     int
	lastCountry    string
	lastLimit      int
	lastRelatedFor string
}

func (f *fakeMetadataService) Search(_ context.Context, query, lang string, page int) (*models.SearchPage, error) {
	f.lastQuery, f.lastLang, f.lastPage, f.lastKind = query, lang, page, "multi"
	return f.searchResp, f.searchErr
}

func (f *fakeMetadataService) SearchByType(_ context.Context, kind, query, lang string, page int) (*models.SearchPage, error) {
	f.lastQuery, f.lastLang, f.lastPage, f.lastKind = query, lang, page, kind
	return f.searchResp, f.searchErr
}

func (f *fakeMetadataService) Suggest(_ context.Context, query, lang string) ([]models.SearchResult, error) {
	f.lastQuery, f.lastLang = query, lang
	return f.suggestResp, nil
}

func (f *fakeMetadataService) MovieDetails(_ context.Context, id int64, lang string) (*models.MovieDetails, error) {
	f.lastID, f.lastLang = id, lang
	return f.movieResp, f.movieErr
}

func (f *fakeMetadataService) SeriesDetails(_ context.Context, id int64, lang string) (*models.SeriesDetails, error) {
	f.lastID, f.lastLang = id, lang
	return f.seriesResp, f.seriesErr
}

func (f *fakeMetadataService) Credits(_ context.Context, mediaType string, id int64, lang string) ([]models.CastMember, error) {
	f.lastMediaType, f.lastID, f.lastLang = mediaType, id, lang
	return f.cast, nil
}

func (f *fakeMetadataService) SeasonDetails(_ context.Context, seriesID int64, season int, lang string) (*models.SeasonDetails, error) {
	f.lastID, f.lastSeason, f.lastLang = seriesID, season, lang
	return f.seasonResp, nil
}

func (f *fakeMetadataService) Similar(_ context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error) {
	f.lastMediaType, f.lastID, f.lastPage, f.lastRelatedFor = mediaType, id, page, "similar"
	return f.relatedPage(), nil
}

func (f *fakeMetadataService) Recommendations(_ context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error) {
	f.lastMediaType, f.lastID, f.lastPage, f.lastRelatedFor = mediaType, id, page, "recommendations"
	return f.relatedPage(), nil
}

func (f *fakeMetadataService) relatedPage() *models.TitlePage {
	if f.related != nil {
		return f.related
	}
	return &models.TitlePage{Page: 1, Results: []models.Title{}}
}

func (f *fakeMetadataService) PersonDetails(_ context.Context, id int64, lang string) (*models.Person, error) {
	f.lastID, f.lastLang = id, lang
	return f.personResp, f.personErr
}

func (f *fakeMetadataService) PersonCredits(_ context.Context, id int64, lang string) ([]models.PersonCredit, error) {
	return f.credits, nil
}

func (f *fakeMetadataService) PopularPeople(_ context.Context, lang string, page int) (*models.PersonPage, error) {
	f.lastLang, f.lastPage = lang, page
	return &models.PersonPage{Page: page, TotalPages: 3, Results: []models.Person{{ID: 1, Name: "Someone"}}}, nil
}

func (f *fakeMetadataService) Genres(_ context.Context, mediaType, lang string) ([]models.Genre, error) {
	f.lastMediaType, f.lastLang = mediaType, lang
	return f.genres, nil
}

func (f *fakeMetadataService) AllGenres(_ context.Context, lang string) ([]models.Genre, error) {
	f.lastMediaType, f.lastLang = "all", lang
	return f.genres, nil
}

func (f *fakeMetadataService) TopGenres(_ context.Context, lang string, limit int) ([]models.GenreCount, error) {
	f.lastLang, f.lastLimit = lang, limit
	return f.topGenres, nil
}

func (f *fakeMetadataService) Languages(context.Context) ([]models.Language, error) {
	return f.languages, f.languageErr
}

func (f *fakeMetadataService) Home(_ context.Context, lang, country string, rowSize int) (*models.HomeRows, error) {
	f.lastLang, f.lastCountry, f.lastLimit = lang, country, rowSize
	return f.home, f.homeErr
}

type fakeGeo struct {
	country string
	reverse geo.Location
	err     error
}

func (f *fakeGeo) Detect(context.Context, string) geo.Location {
	if f.country == "" {
		return geo.Location{Country: "US", CountryName: "United States", Source: geo.SourceDefault}
	}
	return geo.Location{Country: f.country, CountryName: geo.CountryName(f.country), Source: geo.SourceIPInfo}
}

func (f *fakeGeo) ReverseGeocode(context.Context, float64, float64) (geo.Location, error) {
	return f.reverse, f.err
}

// fakePrefs keeps preferences in memory with the same resolution rules as the sqlite service.
type fakePrefs struct {
	saved map[string]models.ClientPreferences
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{saved: map[string]models.ClientPreferences{}}
}

func (f *fakePrefs) Get(_ context.Context, clientID string) (models.ClientPreferences, error) {
	p, ok := f.saved[clientID]
	if !ok {
		return models.ClientPreferences{}, preferences.ErrNotFound
	}
	return p, nil
}

func (f *fakePrefs) Resolve(_ context.Context, clientID string, detected geo.Location) (models.ResolvedPreferences, error) {
	out := models.ResolvedPreferences{ClientID: clientID, Country: detected.Country, CountrySource: detected.Source}
	if p, ok := f.saved[clientID]; ok {
		if p.Country != "" {
			out.Country, out.CountrySource = p.Country, "override"
		}
		out.Language = p.Language
	}
	out.CountryName = geo.CountryName(out.Country)
	if out.Language == "" {
		out.Language = geo.LanguageForCountry(out.Country)
		out.LanguageAutoDetected = true
	}
	return out, nil
}

func (f *fakePrefs) SetLanguage(_ context.Context, clientID, tag string) (string, error) {
	lang, err := f.NormalizeLanguage(tag)
	if err != nil {
		return "", err
	}
	p := f.saved[clientID]
	p.ClientID, p.Language = clientID, lang
	f.saved[clientID] = p
	return lang, nil
}

func (f *fakePrefs) SetCountry(_ context.Context, clientID, code string) (string, error) {
	code = strings.ToUpper(code)
	if code != "" {
		if _, err := geo.NormalizeCountry(code); err != nil {
			return "", preferences.ErrInvalidCountry
		}
	}
	p := f.saved[clientID]
	p.ClientID, p.Country = clientID, code
	f.saved[clientID] = p
	return code, nil
}

func (f *fakePrefs) NormalizeLanguage(tag string) (string, error) {
	switch tag {
	case "he", "he-IL", "fr-FR", "en-US", "en-GB":
		return tag, nil
	}
	return "", preferences.ErrInvalidLanguage
}

func testLocale(country string) (*Locale, *fakePrefs) {
	prefs := newFakePrefs()
	return &Locale{Geo: &fakeGeo{country: country}, Prefs: prefs}, prefs
}

// serve runs h behind ClientMiddleware so ClientID is populated.
func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ClientMiddleware(h).ServeHTTP(rec, req)
	return rec
}

const testClientID = "0b7c4a5e-4f8e-4a34-9a2f-0d8c2b1b9e11"

func withClient(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: testClientID})
	return req
}
