package metadata

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"flikz/models"

	"golang.org/x/text/language"
)

func pickTMDBName(mediaType, seriesName, movieTitle string) string {
	if mediaType == models.MediaTypeMovie && movieTitle != "" {
		return movieTitle
	}
	if seriesName != "" {
		return seriesName
	}
	return movieTitle
}

func parseTMDBYear(movieDate, seriesDate string) int {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if date == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func buildTMDBImage(imagePath, size, imageType string) *models.Image {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return nil
	}
	fullPath := path.Join(size, strings.TrimPrefix(trimmed, "/"))
	return &models.Image{
		URL:  fmt.Sprintf("%s/%s", tmdbImageBaseURL, fullPath),
		Type: imageType,
	}
}

// normalizeLanguage canonicalizes a BCP 47 tag ("en_us" -> "en-US"), returning fallback when it does not parse.
func normalizeLanguage(lang, fallback string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return fallback
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fallback
	}
	return tag.String()
}

// baseLanguage returns the ISO 639-1 part of a tag ("he-IL" -> "he").
func baseLanguage(lang string) string {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

func mapListItem(item tmdbListItem, mediaType string) models.Title {
	if mediaType == "" {
		mediaType = item.MediaType
	}
	genres := item.GenreIDs
	if genres == nil {
		genres = []int{}
	}
	releaseDate := item.ReleaseDate
	if mediaType == models.MediaTypeTV {
		releaseDate = item.FirstAirDate
	}
	return models.Title{
		TMDBID:           item.ID,
		MediaType:        mediaType,
		Name:             pickTMDBName(mediaType, item.Name, item.Title),
		OriginalName:     pickTMDBName(mediaType, item.OriginalName, item.OriginalTitle),
		Overview:         item.Overview,
		Year:             parseTMDBYear(item.ReleaseDate, item.FirstAirDate),
		ReleaseDate:      releaseDate,
		VoteAverage:      item.VoteAverage,
		VoteCount:        item.VoteCount,
		Popularity:       item.Popularity,
		GenreIDs:         genres,
		OriginalLanguage: item.OriginalLanguage,
		Poster:           buildTMDBImage(item.PosterPath, tmdbPosterSize, "poster"),
		Backdrop:         buildTMDBImage(item.BackdropPath, tmdbBackdropSize, "backdrop"),
	}
}

func mapPage(resp *tmdbPagedResponse, mediaType string, maxPages int) *models.TitlePage {
	page := &models.TitlePage{
		Page:         resp.Page,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
		Results:      make([]models.Title, 0, len(resp.Results)),
	}
	if maxPages > 0 && page.TotalPages > maxPages {
		page.TotalPages = maxPages
	}
	for _, item := range resp.Results {
		page.Results = append(page.Results, mapListItem(item, mediaType))
	}
	return page
}

func mapGenres(in []tmdbGenre) []models.Genre {
	out := make([]models.Genre, 0, len(in))
	for _, g := range in {
		out = append(out, models.Genre{ID: g.ID, Name: g.Name})
	}
	return out
}

// mapCast orders cast by billing and keeps the first limit entries (limit <= 0 keeps all).
func mapCast(in []tmdbCastMember, limit int) []models.CastMember {
	sorted := make([]tmdbCastMember, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]models.CastMember, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, models.CastMember{
			ID:        c.ID,
			Name:      c.Name,
			Character: c.Character,
			Order:     c.Order,
			Profile:   buildTMDBImage(c.ProfilePath, tmdbProfileSize, "profile"),
		})
	}
	return out
}

// directorNames joins the crew credited with the Director job.
func directorNames(crew []tmdbCrewMember) string {
	var names []string
	seen := make(map[int64]struct{})
	for _, member := range crew {
		if member.Job != "Director" {
			continue
		}
		if _, dup := seen[member.ID]; dup {
			continue
		}
		seen[member.ID] = struct{}{}
		names = append(names, member.Name)
	}
	return strings.Join(names, ", ")
}

func mapPerson(p *tmdbPerson) models.Person {
	return models.Person{
		ID:                 p.ID,
		Name:               p.Name,
		Biography:          strings.TrimSpace(p.Biography),
		Birthday:           p.Birthday,
		Deathday:           p.Deathday,
		PlaceOfBirth:       p.PlaceOfBirth,
		KnownForDepartment: p.KnownForDepartment,
		Popularity:         p.Popularity,
		Profile:            buildTMDBImage(p.ProfilePath, tmdbPosterSize, "profile"),
	}
}

func mapPersonItem(item tmdbListItem) models.Person {
	return models.Person{
		ID:                 item.ID,
		Name:               item.Name,
		KnownForDepartment: item.KnownForDepartment,
		Popularity:         item.Popularity,
		Profile:            buildTMDBImage(item.ProfilePath, tmdbProfileSize, "profile"),
	}
}

func mapTrailers(videos []tmdbVideo) []models.Trailer {
	out := make([]models.Trailer, 0, len(videos))
	for _, v := range videos {
		key := strings.TrimSpace(v.Key)
		if key == "" {
			continue
		}
		t := models.Trailer{
			Name:        v.Name,
			Site:        v.Site,
			Type:        v.Type,
			Key:         key,
			Language:    v.ISO6391,
			Official:    v.Official,
			PublishedAt: v.PublishedAt,
			Resolution:  v.Size,
		}
		switch strings.ToLower(v.Site) {
		case "youtube":
			t.URL = "https://www.youtube.com/watch?v=" + key
			t.EmbedURL = "https://www.youtube.com/embed/" + key
			t.ThumbnailURL = "https://img.youtube.com/vi/" + key + "/hqdefault.jpg"
		case "vimeo":
			t.URL = "https://vimeo.com/" + key
			t.EmbedURL = "https://player.vimeo.com/video/" + key
		default:
			continue
		}
		out = append(out, t)
	}
	return out
}

func selectPrimaryTrailer(trailers []models.Trailer) *models.Trailer {
	bestIndex := -1
	bestScore := -1
	for idx := range trailers {
		score := scoreTrailerCandidate(&trailers[idx])
		if score > bestScore {
			bestScore = score
			bestIndex = idx
		}
	}
	if bestIndex < 0 {
		return nil
	}
	t := trailers[bestIndex]
	return &t
}

func scoreTrailerCandidate(t *models.Trailer) int {
	score := 0
	switch strings.ToLower(strings.TrimSpace(t.Type)) {
	case "trailer":
		score += 100
	case "teaser":
		score += 60
	case "clip":
		score += 40
	default:
		score += 10
	}
	if t.Official {
		score += 25
	}
	if strings.HasPrefix(strings.ToLower(t.Language), "en") {
		score += 15
	}
	if t.Resolution >= 1080 {
		score += 10
	} else if t.Resolution >= 720 {
		score += 6
	}
	if strings.EqualFold(t.Site, "youtube") {
		score += 5
	}
	name := strings.ToLower(t.Name)
	if strings.Contains(name, "official trailer") {
		score += 20
	}
	for _, keyword := range []string{"recap", "behind the scenes", "making of", "featurette"} {
		if strings.Contains(name, keyword) {
			score -= 50
			break
		}
	}
	return score
}
