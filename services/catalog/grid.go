package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"flikz/models"
)

var ErrUnknownGrid = errors.New("catalog: unknown grid")

// Grid is one infinite-scroll page of the site.
type Grid struct {
	Key       string
	MediaType string
	// ByRegion scopes discover to titles originating in the client's country.
	ByRegion bool
	// Title may contain {country}, replaced with the country name.
	Title string
	// Genres are applied when the client has not picked genres of its own.
	Genres []int
}

var grids = map[string]Grid{
	"movies":           {Key: "movies", MediaType: models.MediaTypeMovie, Title: "Movies"},
	"tvs":              {Key: "tvs", MediaType: models.MediaTypeTV, Title: "TV Shows"},
	"movies-by-region": {Key: "movies-by-region", MediaType: models.MediaTypeMovie, ByRegion: true, Title: "Movies In {country}"},
	"tvs-by-region":    {Key: "tvs-by-region", MediaType: models.MediaTypeTV, ByRegion: true, Title: "TV Shows In {country}"},
}

// LookupGrid resolves a grid key. Genre grids are addressed as "genre:<id>".
func LookupGrid(key string) (Grid, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if g, ok := grids[key]; ok {
		return g, nil
	}
	if raw, ok := strings.CutPrefix(key, "genre:"); ok {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return Grid{}, fmt.Errorf("%w: %q", ErrUnknownGrid, key)
		}
		return GenreGrid(id, ""), nil
	}
	return Grid{}, fmt.Errorf("%w: %q", ErrUnknownGrid, key)
}

// GenreGrid is the movie grid of a single genre.
func GenreGrid(id int, name string) Grid {
	title := name
	if title == "" {
		title = "Genre"
	}
	return Grid{
		Key:       "genre:" + strconv.Itoa(id),
		MediaType: models.MediaTypeMovie,
		Title:     title,
		Genres:    []int{id},
	}
}

// DisplayTitle fills the {country} placeholder with the country name, or the code when the name is unknown.
func (g Grid) DisplayTitle(countryName, countryCode string) string {
	if !strings.Contains(g.Title, "{country}") {
		return g.Title
	}
	country := strings.TrimSpace(countryName)
	if country == "" {
		country = strings.TrimSpace(countryCode)
	}
	return strings.TrimSpace(strings.ReplaceAll(g.Title, "{country}", country))
}

// Apply merges the grid's fixed settings into the client's filter.
func (g Grid) Apply(f FilterSet) FilterSet {
	if len(f.Genres) == 0 && len(g.Genres) > 0 {
		f.Genres = append([]int(nil), g.Genres...)
	}
	return f.Normalize(g.MediaType)
}
