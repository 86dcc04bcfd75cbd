package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"flikz/models"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	// TMDB refuses discover pages beyond 500.
	maxDiscoverPages = 500
	suggestionLimit  = 6
	topGenreLimit    = 10

	sharedFetchTimeout = time.Minute
)

var ErrInvalidMediaType = errors.New("media type must be movie or tv")

// BioSource supplies a biography when TMDB has none.
type BioSource interface {
	Bio(ctx context.Context, name, lang string) (string, error)
}

// Config collects the knobs NewService needs.
type Config struct {
	APIKey          string
	Token           string
	Language        string
	CacheDir        string
	CacheFS         afero.Fs // overrides CacheDir when set
	TTLHours        int
	CastLimit       int
	RequestInterval time.Duration
	HTTPClient      *http.Client
	Biographies     BioSource
}

type Service struct {
	client    *tmdbClient
	cache     *fileCache
	bios      BioSource
	language  string
	castLimit int
	group     singleflight.Group
}

func NewService(cfg Config) *Service {
	var cache *fileCache
	switch {
	case cfg.CacheFS != nil:
		cache = newFileCache(cfg.CacheFS, cfg.TTLHours)
	case strings.TrimSpace(cfg.CacheDir) != "":
		cache = newDiskCache(cfg.CacheDir, cfg.TTLHours)
	}
	castLimit := cfg.CastLimit
	if castLimit <= 0 {
		castLimit = 20
	}
	return &Service{
		client:    newTMDBClient(cfg.APIKey, cfg.Token, cfg.HTTPClient, cfg.RequestInterval),
		cache:     cache,
		bios:      cfg.Biographies,
		language:  normalizeLanguage(cfg.Language, "en-US"),
		castLimit: castLimit,
	}
}

// ClearCache drops all cached TMDB responses.
func (s *Service) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.clear()
}

// SweepCache removes expired TMDB responses from disk.
func (s *Service) SweepCache(context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.sweep()
}

func (s *Service) lang(lang string) string {
	return normalizeLanguage(lang, s.language)
}

// cached returns the cached value for key or runs fetch once, even for concurrent callers.
// The shared fetch outlives the caller that started it; each caller only waits on its own ctx.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if s.cache != nil && s.cache.get(key, &out) {
		return out, nil
	}
	ch := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		res, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.set(key, res); err != nil {
				log.Printf("[metadata] cache write failed: %v", err)
			}
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return out, res.Err
		}
		return res.Val.(T), nil
	}
}

func normalizeMediaType(mediaType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "movie", "movies":
		return models.MediaTypeMovie, nil
	case "tv", "series", "show", "tvs":
		return models.MediaTypeTV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMediaType, mediaType)
	}
}

// Discover runs /discover/{movie|tv} with the given query. Total pages never exceed TMDB's cap.
func (s *Service) Discover(ctx context.Context, mediaType string, params url.Values) (*models.TitlePage, error) {
	mt, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("language", s.lang(q.Get("language")))
	if q.Get("page") == "" {
		q.Set("page", "1")
	}
	if q.Get("sort_by") == "" {
		q.Set("sort_by", "popularity.desc")
	}
	q.Set("include_adult", "false")

	key := cacheKey("discover", mt, q.Encode())
	return cached(ctx, s, key, func(ctx context.Context) (*models.TitlePage, error) {
		resp, err := s.client.discover(ctx, mt, q)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", mt, err)
		}
		return mapPage(resp, mt, maxDiscoverPages), nil
	})
}

// Popular returns the first limit titles of the popularity-sorted discover feed.
func (s *Service) Popular(ctx context.Context, mediaType, lang string, limit int) ([]models.Title, error) {
	q := url.Values{}
	q.Set("language", lang)
	q.Set("sort_by", "popularity.desc")
	page, err := s.Discover(ctx, mediaType, q)
	if err != nil {
		return nil, err
	}
	return head(page.Results, limit), nil
}

// PopularInCountry narrows Popular to titles produced in country and falls back to the global list
// when that fails or comes back empty.
func (s *Service) PopularInCountry(ctx context.Context, mediaType, lang, country string, limit int) ([]models.Title, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country != "" {
		q := url.Values{}
		q.Set("language", lang)
		q.Set("sort_by", "popularity.desc")
		q.Set("with_origin_country", country)
		page, err := s.Discover(ctx, mediaType, q)
		switch {
		case err != nil:
			log.Printf("[metadata] popular %s in %s failed, using global list: %v", mediaType, country, err)
		case len(page.Results) == 0:
			log.Printf("[metadata] no popular %s in %s, using global list", mediaType, country)
		default:
			return head(page.Results, limit), nil
		}
	}
	return s.Popular(ctx, mediaType, lang, limit)
}

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Search queries /search/multi. An empty query returns an empty page without calling TMDB.
func (s *Service) Search(ctx context.Context, query, lang string, page int) (*models.SearchPage, error) {
	return s.SearchByType(ctx, "multi", query, lang, page)
}

// SearchByType searches one kind: multi, movie, tv or person.
func (s *Service) SearchByType(ctx context.Context, kind, query, lang string, page int) (*models.SearchPage, error) {
	query = strings.TrimSpace(query)
	if page < 1 {
		page = 1
	}
	if query == "" {
		return &models.SearchPage{Page: 1, Results: []models.SearchResult{}}, nil
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "", "multi", "all":
		kind = "multi"
	case models.MediaTypePerson, "people":
		kind = models.MediaTypePerson
	default:
		mt, err := normalizeMediaType(kind)
		if err != nil {
			return nil, err
		}
		kind = mt
	}
	lang = s.lang(lang)

	key := cacheKey("search", kind, strings.ToLower(query), lang, strconv.Itoa(page))
	return cached(ctx, s, key, func(ctx context.Context) (*models.SearchPage, error) {
		resp, err := s.client.search(ctx, kind, query, lang, page)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		out := &models.SearchPage{
			Query:        query,
			Page:         resp.Page,
			TotalPages:   resp.TotalPages,
			TotalResults: resp.TotalResults,
			Results:      make([]models.SearchResult, 0, len(resp.Results)),
		}
		for _, item := range resp.Results {
			mediaType := item.MediaType
			if kind != "multi" {
				mediaType = kind
			}
			switch mediaType {
			case models.MediaTypeMovie, models.MediaTypeTV:
				t := mapListItem(item, mediaType)
				out.Results = append(out.Results, models.SearchResult{MediaType: mediaType, Title: &t})
			case models.MediaTypePerson:
				p := mapPersonItem(item)
				out.Results = append(out.Results, models.SearchResult{MediaType: mediaType, Person: &p})
			}
		}
		return out, nil
	})
}

// Suggest returns the closest matching multi-search hits for the type-ahead dropdown.
func (s *Service) Suggest(ctx context.Context, query, lang string) ([]models.SearchResult, error) {
	page, err := s.Search(ctx, query, lang, 1)
	if err != nil {
		return nil, err
	}
	return head(rankSuggestions(query, page.Results), suggestionLimit), nil
}

// MovieDetails fetches details, credits and videos concurrently.
// Credits and videos are best effort; a missing movie is ErrNotFound.
func (s *Service) MovieDetails(ctx context.Context, id int64, lang string) (*models.MovieDetails, error) {
	lang = s.lang(lang)
	key := cacheKey("movie", strconv.FormatInt(id, 10), lang, strconv.Itoa(s.castLimit))
	return cached(ctx, s, key, func(ctx context.Context) (*models.MovieDetails, error) {
		var (
			det     *tmdbMovieDetails
			credits *tmdbCreditsResponse
			videos  *tmdbVideosResponse
		)
		p := pool.New().WithErrors().WithContext(ctx)
		p.Go(func(ctx context.Context) error {
			var err error
			det, err = s.client.movieDetails(ctx, id, lang)
			return err
		})
		p.Go(func(ctx context.Context) error {
			c, err := s.client.credits(ctx, models.MediaTypeMovie, id, lang)
			if err != nil {
				log.Printf("[metadata] movie %d credits: %v", id, err)
				return nil
			}
			credits = c
			return nil
		})
		p.Go(func(ctx context.Context) error {
			v, err := s.client.videos(ctx, models.MediaTypeMovie, id, lang)
			if err != nil {
				log.Printf("[metadata] movie %d videos: %v", id, err)
				return nil
			}
			videos = v
			return nil
		})
		if err := p.Wait(); err != nil {
			return nil, fmt.Errorf("movie %d: %w", id, err)
		}

		out := &models.MovieDetails{
			Title: models.Title{
				TMDBID:           det.ID,
				MediaType:        models.MediaTypeMovie,
				Name:             det.Title,
				OriginalName:     det.OriginalTitle,
				Overview:         det.Overview,
				Year:             parseTMDBYear(det.ReleaseDate, ""),
				ReleaseDate:      det.ReleaseDate,
				VoteAverage:      det.VoteAverage,
				VoteCount:        det.VoteCount,
				Popularity:       det.Popularity,
				OriginalLanguage: det.OriginalLanguage,
				Poster:           buildTMDBImage(det.PosterPath, tmdbPosterSize, "poster"),
				Backdrop:         buildTMDBImage(det.BackdropPath, tmdbBackdropSize, "backdrop"),
			},
			Tagline:        det.Tagline,
			Status:         det.Status,
			RuntimeMinutes: det.Runtime,
			Genres:         mapGenres(det.Genres),
			Homepage:       det.Homepage,
			IMDBID:         det.IMDBID,
			Cast:           []models.CastMember{},
		}
		for _, g := range out.Genres {
			out.GenreIDs = append(out.GenreIDs, g.ID)
		}
		if credits != nil {
			out.Cast = mapCast(credits.Cast, s.castLimit)
			out.Director = directorNames(credits.Crew)
		}
		if videos != nil {
			out.Trailers = mapTrailers(videos.Results)
			out.PrimaryTrailer = selectPrimaryTrailer(out.Trailers)
		}
		return out, nil
	})
}

// SeriesDetails is the tv counterpart of MovieDetails and includes season summaries.
func (s *Service) SeriesDetails(ctx context.Context, id int64, lang string) (*models.SeriesDetails, error) {
	lang = s.lang(lang)
	key := cacheKey("tv", strconv.FormatInt(id, 10), lang, strconv.Itoa(s.castLimit))
	return cached(ctx, s, key, func(ctx context.Context) (*models.SeriesDetails, error) {
		var (
			det     *tmdbTVDetails
			credits *tmdbCreditsResponse
			videos  *tmdbVideosResponse
		)
		p := pool.New().WithErrors().WithContext(ctx)
		p.Go(func(ctx context.Context) error {
			var err error
			det, err = s.client.tvDetails(ctx, id, lang)
			return err
		})
		p.Go(func(ctx context.Context) error {
			c, err := s.client.credits(ctx, models.MediaTypeTV, id, lang)
			if err != nil {
				log.Printf("[metadata] tv %d credits: %v", id, err)
				return nil
			}
			credits = c
			return nil
		})
		p.Go(func(ctx context.Context) error {
			v, err := s.client.videos(ctx, models.MediaTypeTV, id, lang)
			if err != nil {
				log.Printf("[metadata] tv %d videos: %v", id, err)
				return nil
			}
			videos = v
			return nil
		})
		if err := p.Wait(); err != nil {
			return nil, fmt.Errorf("tv %d: %w", id, err)
		}

		out := &models.SeriesDetails{
			Title: models.Title{
				TMDBID:           det.ID,
				MediaType:        models.MediaTypeTV,
				Name:             det.Name,
				OriginalName:     det.OriginalName,
				Overview:         det.Overview,
				Year:             parseTMDBYear("", det.FirstAirDate),
				ReleaseDate:      det.FirstAirDate,
				VoteAverage:      det.VoteAverage,
				VoteCount:        det.VoteCount,
				Popularity:       det.Popularity,
				OriginalLanguage: det.OriginalLanguage,
				Poster:           buildTMDBImage(det.PosterPath, tmdbPosterSize, "poster"),
				Backdrop:         buildTMDBImage(det.BackdropPath, tmdbBackdropSize, "backdrop"),
			},
			Tagline:          det.Tagline,
			Status:           det.Status,
			Genres:           mapGenres(det.Genres),
			Homepage:         det.Homepage,
			NumberOfSeasons:  det.NumberOfSeasons,
			NumberOfEpisodes: det.NumberOfEpisodes,
			Cast:             []models.CastMember{},
			Seasons:          make([]models.SeasonSummary, 0, len(det.Seasons)),
		}
		for _, g := range out.Genres {
			out.GenreIDs = append(out.GenreIDs, g.ID)
		}
		for _, n := range det.Networks {
			out.Networks = append(out.Networks, n.Name)
		}
		for _, c := range det.CreatedBy {
			out.CreatedBy = append(out.CreatedBy, c.Name)
		}
		for _, season := range det.Seasons {
			out.Seasons = append(out.Seasons, models.SeasonSummary{
				SeasonNumber: season.SeasonNumber,
				Name:         season.Name,
				Overview:     season.Overview,
				AirDate:      season.AirDate,
				EpisodeCount: season.EpisodeCount,
				Poster:       buildTMDBImage(season.PosterPath, tmdbPosterSize, "poster"),
			})
		}
		if credits != nil {
			out.Cast = mapCast(credits.Cast, s.castLimit)
			out.Director = directorNames(credits.Crew)
		}
		if out.Director == "" && len(out.CreatedBy) > 0 {
			out.Director = strings.Join(out.CreatedBy, ", ")
		}
		if videos != nil {
			out.Trailers = mapTrailers(videos.Results)
			out.PrimaryTrailer = selectPrimaryTrailer(out.Trailers)
		}
		return out, nil
	})
}

// Credits returns the full billed cast of a movie or series.
func (s *Service) Credits(ctx context.Context, mediaType string, id int64, lang string) ([]models.CastMember, error) {
	mt, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	lang = s.lang(lang)
	key := cacheKey("credits", mt, strconv.FormatInt(id, 10), lang)
	return cached(ctx, s, key, func(ctx context.Context) ([]models.CastMember, error) {
		resp, err := s.client.credits(ctx, mt, id, lang)
		if err != nil {
			return nil, fmt.Errorf("%s %d credits: %w", mt, id, err)
		}
		return mapCast(resp.Cast, 0), nil
	})
}

// SeasonDetails lists the episodes of one season.
func (s *Service) SeasonDetails(ctx context.Context, seriesID int64, season int, lang string) (*models.SeasonDetails, error) {
	lang = s.lang(lang)
	key := cacheKey("season", strconv.FormatInt(seriesID, 10), strconv.Itoa(season), lang)
	return cached(ctx, s, key, func(ctx context.Context) (*models.SeasonDetails, error) {
		resp, err := s.client.season(ctx, seriesID, season, lang)
		if err != nil {
			return nil, fmt.Errorf("tv %d season %d: %w", seriesID, season, err)
		}
		out := &models.SeasonDetails{
			SeriesID:     seriesID,
			SeasonNumber: resp.SeasonNumber,
			Name:         resp.Name,
			Overview:     resp.Overview,
			AirDate:      resp.AirDate,
			Poster:       buildTMDBImage(resp.PosterPath, tmdbPosterSize, "poster"),
			Episodes:     make([]models.Episode, 0, len(resp.Episodes)),
		}
		for _, ep := range resp.Episodes {
			out.Episodes = append(out.Episodes, models.Episode{
				ID:             ep.ID,
				Name:           ep.Name,
				Overview:       ep.Overview,
				SeasonNumber:   ep.SeasonNumber,
				EpisodeNumber:  ep.EpisodeNumber,
				AirDate:        ep.AirDate,
				RuntimeMinutes: ep.Runtime,
				VoteAverage:    ep.VoteAverage,
				Still:          buildTMDBImage(ep.StillPath, tmdbStillSize, "still"),
			})
		}
		return out, nil
	})
}

// Similar returns /{type}/{id}/similar.
func (s *Service) Similar(ctx context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error) {
	return s.related(ctx, mediaType, id, "similar", lang, page)
}

// Recommendations returns /{type}/{id}/recommendations.
func (s *Service) Recommendations(ctx context.Context, mediaType string, id int64, lang string, page int) (*models.TitlePage, error) {
	return s.related(ctx, mediaType, id, "recommendations", lang, page)
}

func (s *Service) related(ctx context.Context, mediaType string, id int64, kind, lang string, page int) (*models.TitlePage, error) {
	mt, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	lang = s.lang(lang)
	key := cacheKey(kind, mt, strconv.FormatInt(id, 10), lang, strconv.Itoa(page))
	return cached(ctx, s, key, func(ctx context.Context) (*models.TitlePage, error) {
		resp, err := s.client.related(ctx, mt, id, kind, lang, page)
		if err != nil {
			return nil, fmt.Errorf("%s %d %s: %w", mt, id, kind, err)
		}
		return mapPage(resp, mt, 0), nil
	})
}

// PersonDetails loads a person. An empty localized biography is retried in en-US and then
// filled from the biography source.
func (s *Service) PersonDetails(ctx context.Context, id int64, lang string) (*models.Person, error) {
	lang = s.lang(lang)
	key := cacheKey("person", strconv.FormatInt(id, 10), lang)
	return cached(ctx, s, key, func(ctx context.Context) (*models.Person, error) {
		var (
			raw    *tmdbPerson
			images *tmdbPersonImages
			ids    *tmdbExternalIDsResponse
		)
		p := pool.New().WithErrors().WithContext(ctx)
		p.Go(func(ctx context.Context) error {
			var err error
			raw, err = s.client.person(ctx, id, lang)
			return err
		})
		p.Go(func(ctx context.Context) error {
			if img, err := s.client.personImages(ctx, id); err == nil {
				images = img
			}
			return nil
		})
		p.Go(func(ctx context.Context) error {
			if ext, err := s.client.personExternalIDs(ctx, id); err == nil {
				ids = ext
			}
			return nil
		})
		if err := p.Wait(); err != nil {
			return nil, fmt.Errorf("person %d: %w", id, err)
		}

		person := mapPerson(raw)
		if person.Biography != "" {
			person.BiographySource = "tmdb"
		}
		if person.Biography == "" && lang != "en-US" {
			if en, err := s.client.person(ctx, id, "en-US"); err == nil && strings.TrimSpace(en.Biography) != "" {
				person.Biography = strings.TrimSpace(en.Biography)
				person.BiographySource = "tmdb"
			}
		}
		if person.Biography == "" && s.bios != nil {
			bio, err := s.bios.Bio(ctx, person.Name, baseLanguage(lang))
			if err != nil {
				log.Printf("[metadata] biography lookup for %q: %v", person.Name, err)
			} else if bio != "" {
				person.Biography = bio
				person.BiographySource = "wikipedia"
			}
		}
		if images != nil {
			for _, img := range images.Profiles {
				if built := buildTMDBImage(img.FilePath, tmdbPosterSize, "profile"); built != nil {
					person.Images = append(person.Images, *built)
				}
			}
		}
		if ids != nil {
			person.ExternalIDs = models.ExternalIDs{
				IMDBID:      ids.IMDBID,
				WikidataID:  ids.WikidataID,
				FacebookID:  ids.FacebookID,
				InstagramID: ids.InstagramID,
				TwitterID:   ids.TwitterID,
			}
		}
		return &person, nil
	})
}

// PersonCredits lists acting roles, most popular first. Self appearances and duplicates are dropped.
func (s *Service) PersonCredits(ctx context.Context, id int64, lang string) ([]models.PersonCredit, error) {
	lang = s.lang(lang)
	key := cacheKey("person-credits", strconv.FormatInt(id, 10), lang)
	return cached(ctx, s, key, func(ctx context.Context) ([]models.PersonCredit, error) {
		resp, err := s.client.personCombinedCredits(ctx, id, lang)
		if err != nil {
			return nil, fmt.Errorf("person %d credits: %w", id, err)
		}
		return filterActingCredits(resp.Cast), nil
	})
}

func filterActingCredits(cast []tmdbListItem) []models.PersonCredit {
	seen := make(map[int64]struct{}, len(cast))
	out := make([]models.PersonCredit, 0, len(cast))
	for _, item := range cast {
		if item.MediaType != models.MediaTypeMovie && item.MediaType != models.MediaTypeTV {
			continue
		}
		character := strings.TrimSpace(item.Character)
		if character == "" || strings.HasPrefix(strings.ToLower(character), "self") {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, models.PersonCredit{Title: mapListItem(item, item.MediaType), Character: character})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Popularity > out[j].Popularity })
	return out
}

// PopularPeople returns /person/popular.
func (s *Service) PopularPeople(ctx context.Context, lang string, page int) (*models.PersonPage, error) {
	if page < 1 {
		page = 1
	}
	lang = s.lang(lang)
	key := cacheKey("people", lang, strconv.Itoa(page))
	return cached(ctx, s, key, func(ctx context.Context) (*models.PersonPage, error) {
		resp, err := s.client.popularPeople(ctx, lang, page)
		if err != nil {
			return nil, fmt.Errorf("popular people: %w", err)
		}
		out := &models.PersonPage{Page: resp.Page, TotalPages: resp.TotalPages, Results: make([]models.Person, 0, len(resp.Results))}
		for _, item := range resp.Results {
			out.Results = append(out.Results, mapPersonItem(item))
		}
		return out, nil
	})
}

// Genres returns the genre list of one media type.
func (s *Service) Genres(ctx context.Context, mediaType, lang string) ([]models.Genre, error) {
	mt, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	lang = s.lang(lang)
	return cached(ctx, s, cacheKey("genres", mt, lang), func(ctx context.Context) ([]models.Genre, error) {
		resp, err := s.client.genres(ctx, mt, lang)
		if err != nil {
			return nil, fmt.Errorf("%s genres: %w", mt, err)
		}
		return mapGenres(resp), nil
	})
}

// AllGenres merges movie and tv genres; the movie name wins when an id appears in both.
func (s *Service) AllGenres(ctx context.Context, lang string) ([]models.Genre, error) {
	var movie, tv []models.Genre
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		movie, err = s.Genres(ctx, models.MediaTypeMovie, lang)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		tv, err = s.Genres(ctx, models.MediaTypeTV, lang)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return mergeGenres(movie, tv), nil
}

func mergeGenres(lists ...[]models.Genre) []models.Genre {
	seen := make(map[int]struct{})
	var out []models.Genre
	for _, list := range lists {
		for _, g := range list {
			if _, dup := seen[g.ID]; dup {
				continue
			}
			seen[g.ID] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

// TopGenres ranks genres by how many of the currently popular movies and series carry them.
func (s *Service) TopGenres(ctx context.Context, lang string, limit int) ([]models.GenreCount, error) {
	if limit <= 0 {
		limit = topGenreLimit
	}
	var (
		genres        []models.Genre
		movies, shows []models.Title
	)
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		genres, err = s.AllGenres(ctx, lang)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		movies, err = s.Popular(ctx, models.MediaTypeMovie, lang, 0)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		shows, err = s.Popular(ctx, models.MediaTypeTV, lang, 0)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	titles := make([]models.Title, 0, len(movies)+len(shows))
	titles = append(titles, movies...)
	titles = append(titles, shows...)
	return rankGenres(genres, titles, limit), nil
}

func rankGenres(genres []models.Genre, titles []models.Title, limit int) []models.GenreCount {
	counts := make(map[int]int)
	for _, t := range titles {
		for _, id := range t.GenreIDs {
			counts[id]++
		}
	}
	out := make([]models.GenreCount, 0, len(genres))
	for _, g := range genres {
		if counts[g.ID] == 0 {
			continue
		}
		out = append(out, models.GenreCount{Genre: g, Count: counts[g.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return head(out, limit)
}

// Languages returns TMDB's language list sorted by English name.
func (s *Service) Languages(ctx context.Context) ([]models.Language, error) {
	return cached(ctx, s, cacheKey("languages"), func(ctx context.Context) ([]models.Language, error) {
		resp, err := s.client.languages(ctx)
		if err != nil {
			return nil, fmt.Errorf("languages: %w", err)
		}
		out := make([]models.Language, 0, len(resp))
		for _, l := range resp {
			name := strings.TrimSpace(l.Name)
			if name == "" {
				name = l.EnglishName
			}
			out = append(out, models.Language{ISO6391: l.ISO6391, EnglishName: l.EnglishName, Name: name})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].EnglishName < out[j].EnglishName })
		return out, nil
	})
}

// Home assembles the landing page rows. Only the global popular rows are required; the rest
// degrade to empty.
func (s *Service) Home(ctx context.Context, lang, country string, rowSize int) (*models.HomeRows, error) {
	if rowSize <= 0 {
		rowSize = 10
	}
	rows := &models.HomeRows{Country: strings.ToUpper(country)}
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		rows.PopularMovies, err = s.Popular(ctx, models.MediaTypeMovie, lang, rowSize)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		rows.PopularSeries, err = s.Popular(ctx, models.MediaTypeTV, lang, rowSize)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		if rows.RegionalMovies, err = s.PopularInCountry(ctx, models.MediaTypeMovie, lang, country, rowSize); err != nil {
			log.Printf("[metadata] regional movies: %v", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		if rows.RegionalSeries, err = s.PopularInCountry(ctx, models.MediaTypeTV, lang, country, rowSize); err != nil {
			log.Printf("[metadata] regional series: %v", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		if rows.TopGenres, err = s.TopGenres(ctx, lang, topGenreLimit); err != nil {
			log.Printf("[metadata] top genres: %v", err)
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	rows.FeaturedTrailer = s.featuredTrailer(ctx, rows.PopularMovies, lang)
	return rows, nil
}

// featuredTrailer picks the first of the top popular movies that has a usable trailer.
func (s *Service) featuredTrailer(ctx context.Context, movies []models.Title, lang string) *models.Featured {
	for _, m := range head(movies, 5) {
		details, err := s.MovieDetails(ctx, m.TMDBID, lang)
		if err != nil {
			continue
		}
		if details.PrimaryTrailer != nil && details.PrimaryTrailer.EmbedURL != "" {
			return &models.Featured{Title: details.Title, Trailer: *details.PrimaryTrailer}
		}
	}
	return nil
}
