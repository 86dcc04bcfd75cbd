package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"flikz/models"
	"flikz/services/geo"
	"flikz/services/preferences"

	"github.com/google/uuid"
)

// ClientCookie holds the anonymous id preferences and feeds are keyed by.
const ClientCookie = "flikz_client"

type clientIDKey struct{}

// ClientMiddleware makes sure every request carries a client id, issuing a cookie when missing.
func ClientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(ClientCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey{}, id)))
	})
}

// ClientID returns the id set by ClientMiddleware, or "" outside it.
func ClientID(r *http.Request) string {
	id, _ := r.Context().Value(clientIDKey{}).(string)
	return id
}

type geoService interface {
	Detect(ctx context.Context, ip string) geo.Location
	ReverseGeocode(ctx context.Context, lat, lon float64) (geo.Location, error)
}

type preferencesService interface {
	Get(ctx context.Context, clientID string) (models.ClientPreferences, error)
	Resolve(ctx context.Context, clientID string, detected geo.Location) (models.ResolvedPreferences, error)
	SetLanguage(ctx context.Context, clientID, tag string) (string, error)
	SetCountry(ctx context.Context, clientID, code string) (string, error)
	NormalizeLanguage(tag string) (string, error)
}

var (
	_ geoService         = (*geo.Service)(nil)
	_ preferencesService = (*preferences.Service)(nil)
)

// Locale works out the language and country a request renders with.
type Locale struct {
	Geo   geoService
	Prefs preferencesService
}

// Resolve combines the saved preferences with IP detection. A valid ?language=
// query parameter overrides the language for this request only.
func (l *Locale) Resolve(r *http.Request) models.ResolvedPreferences {
	detected := l.Geo.Detect(r.Context(), geo.ClientIP(r))
	resolved, err := l.Prefs.Resolve(r.Context(), ClientID(r), detected)
	if err != nil {
		log.Printf("[http] resolve preferences for %s: %v", ClientID(r), err)
		resolved = models.ResolvedPreferences{
			ClientID:             ClientID(r),
			Country:              detected.Country,
			CountryName:          geo.CountryName(detected.Country),
			CountrySource:        detected.Source,
			Language:             geo.LanguageForCountry(detected.Country),
			LanguageAutoDetected: true,
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("language")); raw != "" {
		if lang, err := l.Prefs.NormalizeLanguage(raw); err == nil {
			resolved.Language = lang
			resolved.LanguageAutoDetected = false
		}
	}
	return resolved
}
