package models

// Basic metadata structures for titles and images.

const (
	MediaTypeMovie  = "movie"
	MediaTypeTV     = "tv"
	MediaTypePerson = "person"
)

type Image struct {
	URL  string `json:"url"`
	Type string `json:"type"` // poster, backdrop, profile, still
}

type Trailer struct {
	Name         string `json:"name"`
	Site         string `json:"site,omitempty"`
	Type         string `json:"type,omitempty"`
	Key          string `json:"key,omitempty"`
	URL          string `json:"url"`
	EmbedURL     string `json:"embedUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Language     string `json:"language,omitempty"`
	Official     bool   `json:"official,omitempty"`
	PublishedAt  string `json:"publishedAt,omitempty"`
	Resolution   int    `json:"resolution,omitempty"`
}

// Title is the card shown in grids, rows and search results.
type Title struct {
	TMDBID           int64   `json:"tmdbId"`
	MediaType        string  `json:"mediaType"` // movie | tv
	Name             string  `json:"name"`
	OriginalName     string  `json:"originalName,omitempty"`
	Overview         string  `json:"overview"`
	Year             int     `json:"year,omitempty"`
	ReleaseDate      string  `json:"releaseDate,omitempty"`
	VoteAverage      float64 `json:"voteAverage"`
	VoteCount        int     `json:"voteCount,omitempty"`
	Popularity       float64 `json:"popularity,omitempty"`
	GenreIDs         []int   `json:"genreIds,omitempty"`
	OriginalLanguage string  `json:"originalLanguage,omitempty"`
	Poster           *Image  `json:"poster,omitempty"`
	Backdrop         *Image  `json:"backdrop,omitempty"`
}

// TitlePage is one page of a paginated TMDB listing.
type TitlePage struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
	Results      []Title `json:"results"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreCount ranks a genre by how many popular titles carry it.
type GenreCount struct {
	Genre
	Count int `json:"count"`
}

type Language struct {
	ISO6391     string `json:"iso6391"`
	EnglishName string `json:"englishName"`
	Name        string `json:"name"`
}

type CastMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Order     int    `json:"order"`
	Profile   *Image `json:"profile,omitempty"`
}

type CrewMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department,omitempty"`
	Profile    *Image `json:"profile,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew,omitempty"`
}

type MovieDetails struct {
	Title
	Tagline        string       `json:"tagline,omitempty"`
	Status         string       `json:"status,omitempty"`
	RuntimeMinutes int          `json:"runtimeMinutes,omitempty"`
	Genres         []Genre      `json:"genres"`
	Homepage       string       `json:"homepage,omitempty"`
	IMDBID         string       `json:"imdbId,omitempty"`
	Director       string       `json:"director,omitempty"`
	Cast           []CastMember `json:"cast"`
	Trailers       []Trailer    `json:"trailers,omitempty"`
	PrimaryTrailer *Trailer     `json:"primaryTrailer,omitempty"`
}

type SeasonSummary struct {
	SeasonNumber int    `json:"seasonNumber"`
	Name         string `json:"name"`
	Overview     string `json:"overview,omitempty"`
	AirDate      string `json:"airDate,omitempty"`
	EpisodeCount int    `json:"episodeCount"`
	Poster       *Image `json:"poster,omitempty"`
}

type SeriesDetails struct {
	Title
	Tagline          string          `json:"tagline,omitempty"`
	Status           string          `json:"status,omitempty"`
	Genres           []Genre         `json:"genres"`
	Homepage         string          `json:"homepage,omitempty"`
	Networks         []string        `json:"networks,omitempty"`
	NumberOfSeasons  int             `json:"numberOfSeasons"`
	NumberOfEpisodes int             `json:"numberOfEpisodes"`
	Director         string          `json:"director,omitempty"`
	CreatedBy        []string        `json:"createdBy,omitempty"`
	Cast             []CastMember    `json:"cast"`
	Seasons          []SeasonSummary `json:"seasons"`
	Trailers         []Trailer       `json:"trailers,omitempty"`
	PrimaryTrailer   *Trailer        `json:"primaryTrailer,omitempty"`
}

type Episode struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Overview       string  `json:"overview"`
	SeasonNumber   int     `json:"seasonNumber"`
	EpisodeNumber  int     `json:"episodeNumber"`
	AirDate        string  `json:"airDate,omitempty"`
	RuntimeMinutes int     `json:"runtimeMinutes,omitempty"`
	VoteAverage    float64 `json:"voteAverage"`
	Still          *Image  `json:"still,omitempty"`
}

type SeasonDetails struct {
	SeriesID     int64     `json:"seriesId"`
	SeasonNumber int       `json:"seasonNumber"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview,omitempty"`
	AirDate      string    `json:"airDate,omitempty"`
	Poster       *Image    `json:"poster,omitempty"`
	Episodes     []Episode `json:"episodes"`
}

type ExternalIDs struct {
	IMDBID      string `json:"imdbId,omitempty"`
	WikidataID  string `json:"wikidataId,omitempty"`
	FacebookID  string `json:"facebookId,omitempty"`
	InstagramID string `json:"instagramId,omitempty"`
	TwitterID   string `json:"twitterId,omitempty"`
}

type Person struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Biography          string      `json:"biography"`
	BiographySource    string      `json:"biographySource,omitempty"` // tmdb | wikipedia
	Birthday           string      `json:"birthday,omitempty"`
	Deathday           string      `json:"deathday,omitempty"`
	PlaceOfBirth       string      `json:"placeOfBirth,omitempty"`
	KnownForDepartment string      `json:"knownForDepartment,omitempty"`
	Popularity         float64     `json:"popularity,omitempty"`
	Profile            *Image      `json:"profile,omitempty"`
	Images             []Image     `json:"images,omitempty"`
	ExternalIDs        ExternalIDs `json:"externalIds"`
}

// PersonCredit is an acting role in a movie or series.
type PersonCredit struct {
	Title
	Character string `json:"character"`
}

type PersonPage struct {
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
	Results    []Person `json:"results"`
}

// SearchResult is a single /search/multi hit. Exactly one of Title or Person is set.
type SearchResult struct {
	MediaType string  `json:"mediaType"`
	Title     *Title  `json:"title,omitempty"`
	Person    *Person `json:"person,omitempty"`
}

type SearchPage struct {
	Query        string         `json:"query"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"totalPages"`
	TotalResults int            `json:"totalResults"`
	Results      []SearchResult `json:"results"`
}

// HomeRows is everything the landing page renders.
type HomeRows struct {
	Country         string       `json:"country"`
	CountryName     string       `json:"countryName"`
	PopularMovies   []Title      `json:"popularMovies"`
	RegionalMovies  []Title      `json:"regionalMovies"`
	PopularSeries   []Title      `json:"popularSeries"`
	RegionalSeries  []Title      `json:"regionalSeries"`
	TopGenres       []GenreCount `json:"topGenres"`
	FeaturedTrailer *Featured    `json:"featuredTrailer,omitempty"`
}

type Featured struct {
	Title   Title   `json:"title"`
	Trailer Trailer `json:"trailer"`
}
