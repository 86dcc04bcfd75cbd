package models

import "time"

// ClientPreferences stores the per-browser state that survives reloads.
// A client is identified by the id carried in its cookie.
type ClientPreferences struct {
	ClientID string `json:"clientId"`
	// Language is a BCP 47 tag with an ISO 639-1 base (en-US, he, fr-FR).
	Language string `json:"language"`
	// LanguageAutoDetected is true when Language was derived from the country rather than chosen.
	LanguageAutoDetected bool      `json:"languageAutoDetected"`
	Country              string    `json:"country,omitempty"` // explicit override, ISO 3166-1 alpha-2
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ResolvedPreferences is what a request renders with after detection has been applied.
type ResolvedPreferences struct {
	ClientID             string `json:"clientId"`
	Language             string `json:"language"`
	LanguageAutoDetected bool   `json:"languageAutoDetected"`
	Country              string `json:"country"`
	CountryName          string `json:"countryName"`
	CountrySource        string `json:"countrySource"` // override | ipinfo | nominatim | default
}

// LanguageUpdate is the body of a language change request.
type LanguageUpdate struct {
	Language string `json:"language"`
}

// CountryUpdate is the body of a country override request. Empty clears the override.
type CountryUpdate struct {
	Country string `json:"country"`
}

// ReverseGeocodeRequest carries browser geolocation coordinates.
type ReverseGeocodeRequest struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}
