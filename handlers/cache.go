package handlers

import (
	"net/http"
)

type cacheClearer interface {
	ClearCache() error
}

// CacheHandler exposes maintenance endpoints for the on-disk caches.
type CacheHandler struct {
	Metadata cacheClearer
	Images   *ImageHandler
}

func NewCacheHandler(metadata cacheClearer, images *ImageHandler) *CacheHandler {
	return &CacheHandler{Metadata: metadata, Images: images}
}

func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, size := h.Images.CacheStats()
	writeJSON(w, http.StatusOK, map[string]int64{
		"imageCount": int64(count),
		"imageBytes": size,
	})
}

func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Metadata.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, "clear metadata cache: "+err.Error())
		return
	}
	if err := h.Images.ClearCache(); err != nil {
		writeError(w, http.StatusInternalServerError, "clear image cache: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
