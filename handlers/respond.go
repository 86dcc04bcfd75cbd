package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"flikz/services/catalog"
	"flikz/services/geo"
	"flikz/services/metadata"
	"flikz/services/preferences"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, metadata.ErrNotFound), errors.Is(err, catalog.ErrUnknownGrid):
		return http.StatusNotFound
	case errors.Is(err, metadata.ErrUnavailable), errors.Is(err, metadata.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, metadata.ErrInvalidMediaType),
		errors.Is(err, catalog.ErrInvalidFilter),
		errors.Is(err, catalog.ErrInvalidPage),
		errors.Is(err, preferences.ErrInvalidLanguage),
		errors.Is(err, preferences.ErrInvalidCountry),
		errors.Is(err, preferences.ErrInvalidClient),
		errors.Is(err, geo.ErrInvalidCoordinates):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Printf("[http] %v", err)
	}
	writeError(w, status, err.Error())
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePage reads a 1-based page number, defaulting to 1.
func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
