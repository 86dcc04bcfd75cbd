// Package catalog drives the infinite-scroll grids: filter state, page cursors
// over TMDB discover and per-client deduplication of the cards already shown.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"flikz/models"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidFilter = errors.New("catalog: invalid filter")

const (
	DefaultSort      = "popularity.desc"
	DefaultMinYear   = 1950
	DefaultMinRating = 0.0
	DefaultMaxRating = 10.0
	// earliestYear is the year of the oldest film TMDB lists.
	earliestYear = 1874
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FilterSet is the state of a grid's filter modal.
type FilterSet struct {
	Genres           []int   `json:"genres" validate:"dive,gt=0"`
	MinRating        float64 `json:"minRating" validate:"gte=0,lte=10"`
	MaxRating        float64 `json:"maxRating" validate:"gte=0,lte=10"`
	MinYear          int     `json:"minYear" validate:"gte=1874"`
	MaxYear          int     `json:"maxYear" validate:"gte=1874"`
	SortBy           string  `json:"sortBy" validate:"oneof=popularity.desc popularity.asc vote_average.desc vote_average.asc vote_count.desc primary_release_date.desc primary_release_date.asc first_air_date.desc first_air_date.asc"`
	OriginalLanguage string  `json:"originalLanguage" validate:"omitempty,len=2,alpha"`
}

// DefaultFilterSet is the unfiltered, popularity-sorted state for the current year.
func DefaultFilterSet(now time.Time) FilterSet {
	return FilterSet{
		Genres:    []int{},
		MinRating: DefaultMinRating,
		MaxRating: DefaultMaxRating,
		MinYear:   DefaultMinYear,
		MaxYear:   now.Year(),
		SortBy:    DefaultSort,
	}
}

// Normalize returns a canonical copy: genres sorted and unique, ranges ordered
// and the release-date sort key matching the media type.
func (f FilterSet) Normalize(mediaType string) FilterSet {
	out := f

	seen := make(map[int]struct{}, len(f.Genres))
	out.Genres = make([]int, 0, len(f.Genres))
	for _, id := range f.Genres {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.Genres = append(out.Genres, id)
	}
	sort.Ints(out.Genres)

	if out.MinRating > out.MaxRating {
		out.MinRating, out.MaxRating = out.MaxRating, out.MinRating
	}
	if out.MinYear > out.MaxYear {
		out.MinYear, out.MaxYear = out.MaxYear, out.MinYear
	}

	out.SortBy = strings.ToLower(strings.TrimSpace(out.SortBy))
	if out.SortBy == "" {
		out.SortBy = DefaultSort
	}
	switch {
	case mediaType == models.MediaTypeTV && strings.HasPrefix(out.SortBy, "primary_release_date."):
		out.SortBy = "first_air_date." + strings.TrimPrefix(out.SortBy, "primary_release_date.")
	case mediaType == models.MediaTypeMovie && strings.HasPrefix(out.SortBy, "first_air_date."):
		out.SortBy = "primary_release_date." + strings.TrimPrefix(out.SortBy, "first_air_date.")
	}

	out.OriginalLanguage = strings.ToLower(strings.TrimSpace(out.OriginalLanguage))
	return out
}

// Validate checks the bounds of every field. now caps MaxYear at five years ahead.
func (f FilterSet) Validate(now time.Time) error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidFilter, first.Field(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	limit := now.Year() + 5
	if err := validate.Var(f.MaxYear, fmt.Sprintf("lte=%d", limit)); err != nil {
		return fmt.Errorf("%w: MaxYear after %d", ErrInvalidFilter, limit)
	}
	if err := validate.Var(f.MinYear, fmt.Sprintf("lte=%d", limit)); err != nil {
		return fmt.Errorf("%w: MinYear after %d", ErrInvalidFilter, limit)
	}
	return nil
}

// IsDefault reports whether f filters nothing beyond the default year window.
func (f FilterSet) IsDefault(now time.Time) bool {
	d := DefaultFilterSet(now)
	return len(f.Genres) == 0 &&
		f.MinRating == d.MinRating && f.MaxRating == d.MaxRating &&
		f.MinYear == d.MinYear && f.MaxYear == d.MaxYear &&
		f.SortBy == d.SortBy && f.OriginalLanguage == ""
}

// DiscoverParams renders the filter as a /discover query. country is only
// applied when non-empty, which callers use for region-scoped grids.
func (f FilterSet) DiscoverParams(mediaType, lang, country string) url.Values {
	q := url.Values{}
	if lang != "" {
		q.Set("language", lang)
	}
	if len(f.Genres) > 0 {
		ids := make([]string, len(f.Genres))
		for i, id := range f.Genres {
			ids[i] = strconv.Itoa(id)
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	if f.MinRating > DefaultMinRating {
		q.Set("vote_average.gte", strconv.FormatFloat(f.MinRating, 'f', -1, 64))
	}
	if f.MaxRating < DefaultMaxRating {
		q.Set("vote_average.lte", strconv.FormatFloat(f.MaxRating, 'f', -1, 64))
	}

	dateField := "primary_release_date"
	if mediaType == models.MediaTypeTV {
		dateField = "first_air_date"
	}
	if f.MinYear > 0 {
		q.Set(dateField+".gte", fmt.Sprintf("%04d-01-01", f.MinYear))
	}
	if f.MaxYear > 0 {
		q.Set(dateField+".lte", fmt.Sprintf("%04d-12-31", f.MaxYear))
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = DefaultSort
	}
	q.Set("sort_by", sortBy)
	if f.OriginalLanguage != "" {
		q.Set("with_original_language", f.OriginalLanguage)
	}
	if country != "" {
		q.Set("with_origin_country", strings.ToUpper(country))
	}
	return q
}

// Fingerprint identifies everything a feed depends on. Two requests with the same
// fingerprint continue the same feed; any difference starts a new one.
func (f FilterSet) Fingerprint(mediaType, lang, country string, byRegion bool) string {
	if !byRegion {
		country = ""
	}
	region := "global"
	if byRegion {
		region = "region"
	}
	return mediaType + "|" + region + "|" + f.DiscoverParams(mediaType, lang, country).Encode()
}

// ParseFilterSet reads a filter from query parameters, starting from the defaults.
// Genres may be given comma separated, repeated, or both.
func ParseFilterSet(values url.Values, now time.Time) (FilterSet, error) {
	f := DefaultFilterSet(now)

	for _, raw := range values["genres"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return FilterSet{}, fmt.Errorf("%w: genre %q", ErrInvalidFilter, part)
			}
			f.Genres = append(f.Genres, id)
		}
	}

	floats := map[string]*float64{"minRating": &f.MinRating, "maxRating": &f.MaxRating}
	for key, dst := range floats {
		if raw := strings.TrimSpace(values.Get(key)); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return FilterSet{}, fmt.Errorf("%w: %s %q", ErrInvalidFilter, key, raw)
			}
			*dst = v
		}
	}
	ints := map[string]*int{"minYear": &f.MinYear, "maxYear": &f.MaxYear}
	for key, dst := range ints {
		if raw := strings.TrimSpace(values.Get(key)); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return FilterSet{}, fmt.Errorf("%w: %s %q", ErrInvalidFilter, key, raw)
			}
			*dst = v
		}
	}

	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		f.SortBy = raw
	}
	f.OriginalLanguage = strings.TrimSpace(values.Get("originalLanguage"))
	return f, nil
}
