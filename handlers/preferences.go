package handlers

import (
	"encoding/json"
	"net/http"

	"flikz/models"
	"flikz/services/geo"
)

type PreferencesHandler struct {
	Locale *Locale
}

func NewPreferencesHandler(locale *Locale) *PreferencesHandler {
	return &PreferencesHandler{Locale: locale}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Locale.Resolve(r))
}

func (h *PreferencesHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var body models.LanguageUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := h.Locale.Prefs.SetLanguage(r.Context(), ClientID(r), body.Language); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Locale.Resolve(r))
}

func (h *PreferencesHandler) SetCountry(w http.ResponseWriter, r *http.Request) {
	var body models.CountryUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := h.Locale.Prefs.SetCountry(r.Context(), ClientID(r), body.Country); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Locale.Resolve(r))
}

// Detect reports the country detected from the caller's IP address.
func (h *PreferencesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Locale.Geo.Detect(r.Context(), geo.ClientIP(r)))
}

// ReverseGeocode turns browser coordinates into a country and stores it as the
// client's country when the lookup succeeded.
func (h *PreferencesHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var body models.ReverseGeocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	loc, err := h.Locale.Geo.ReverseGeocode(r.Context(), body.Latitude, body.Longitude)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if loc.Source == geo.SourceNominatim {
		if _, err := h.Locale.Prefs.SetCountry(r.Context(), ClientID(r), loc.Country); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, loc)
}
