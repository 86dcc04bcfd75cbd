package metadata

// Wire payloads returned by the TMDB v3 API. Only the fields the service maps are declared.

type tmdbListItem struct {
	ID                 int64   `json:"id"`
	MediaType          string  `json:"media_type"`
	Title              string  `json:"title"`
	Name               string  `json:"name"`
	OriginalTitle      string  `json:"original_title"`
	OriginalName       string  `json:"original_name"`
	Overview           string  `json:"overview"`
	ReleaseDate        string  `json:"release_date"`
	FirstAirDate       string  `json:"first_air_date"`
	PosterPath         string  `json:"poster_path"`
	BackdropPath       string  `json:"backdrop_path"`
	ProfilePath        string  `json:"profile_path"`
	OriginalLanguage   string  `json:"original_language"`
	VoteAverage        float64 `json:"vote_average"`
	VoteCount          int     `json:"vote_count"`
	Popularity         float64 `json:"popularity"`
	GenreIDs           []int   `json:"genre_ids"`
	KnownForDepartment string  `json:"known_for_department"`
	Character          string  `json:"character"`
}

type tmdbPagedResponse struct {
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Results      []tmdbListItem `json:"results"`
}

type tmdbGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type tmdbGenreListResponse struct {
	Genres []tmdbGenre `json:"genres"`
}

type tmdbLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	EnglishName string `json:"english_name"`
	Name        string `json:"name"`
}

type tmdbMovieDetails struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	OriginalTitle    string      `json:"original_title"`
	Overview         string      `json:"overview"`
	Tagline          string      `json:"tagline"`
	Status           string      `json:"status"`
	ReleaseDate      string      `json:"release_date"`
	Runtime          int         `json:"runtime"`
	Genres           []tmdbGenre `json:"genres"`
	Homepage         string      `json:"homepage"`
	IMDBID           string      `json:"imdb_id"`
	PosterPath       string      `json:"poster_path"`
	BackdropPath     string      `json:"backdrop_path"`
	OriginalLanguage string      `json:"original_language"`
	VoteAverage      float64     `json:"vote_average"`
	VoteCount        int         `json:"vote_count"`
	Popularity       float64     `json:"popularity"`
}

type tmdbNamed struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tmdbSeasonSummary struct {
	SeasonNumber int    `json:"season_number"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
	PosterPath   string `json:"poster_path"`
}

type tmdbTVDetails struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	OriginalName     string              `json:"original_name"`
	Overview         string              `json:"overview"`
	Tagline          string              `json:"tagline"`
	Status           string              `json:"status"`
	FirstAirDate     string              `json:"first_air_date"`
	Genres           []tmdbGenre         `json:"genres"`
	Homepage         string              `json:"homepage"`
	Networks         []tmdbNamed         `json:"networks"`
	CreatedBy        []tmdbNamed         `json:"created_by"`
	NumberOfSeasons  int                 `json:"number_of_seasons"`
	NumberOfEpisodes int                 `json:"number_of_episodes"`
	Seasons          []tmdbSeasonSummary `json:"seasons"`
	PosterPath       string              `json:"poster_path"`
	BackdropPath     string              `json:"backdrop_path"`
	OriginalLanguage string              `json:"original_language"`
	VoteAverage      float64             `json:"vote_average"`
	VoteCount        int                 `json:"vote_count"`
	Popularity       float64             `json:"popularity"`
}

type tmdbCastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

type tmdbCrewMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

type tmdbCreditsResponse struct {
	Cast []tmdbCastMember `json:"cast"`
	Crew []tmdbCrewMember `json:"crew"`
}

type tmdbVideosResponse struct {
	Results []tmdbVideo `json:"results"`
}

type tmdbVideo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key"`
	Site        string `json:"site"`
	Type        string `json:"type"`
	Official    bool   `json:"official"`
	PublishedAt string `json:"published_at"`
	ISO6391     string `json:"iso_639_1"`
	Size        int    `json:"size"`
}

type tmdbEpisode struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	AirDate       string  `json:"air_date"`
	Runtime       int     `json:"runtime"`
	VoteAverage   float64 `json:"vote_average"`
	StillPath     string  `json:"still_path"`
}

type tmdbSeasonDetails struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Overview     string        `json:"overview"`
	AirDate      string        `json:"air_date"`
	SeasonNumber int           `json:"season_number"`
	PosterPath   string        `json:"poster_path"`
	Episodes     []tmdbEpisode `json:"episodes"`
}

type tmdbPerson struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	Biography          string  `json:"biography"`
	Birthday           string  `json:"birthday"`
	Deathday           string  `json:"deathday"`
	PlaceOfBirth       string  `json:"place_of_birth"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
	ProfilePath        string  `json:"profile_path"`
}

type tmdbCombinedCredits struct {
	Cast []tmdbListItem `json:"cast"`
}

type tmdbPersonImages struct {
	Profiles []struct {
		FilePath string `json:"file_path"`
	} `json:"profiles"`
}

type tmdbExternalIDsResponse struct {
	IMDBID      string `json:"imdb_id"`
	WikidataID  string `json:"wikidata_id"`
	FacebookID  string `json:"facebook_id"`
	InstagramID string `json:"instagram_id"`
	TwitterID   string `json:"twitter_id"`
}
