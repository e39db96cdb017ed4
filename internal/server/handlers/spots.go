// internal/server/handlers/spots.go

package handlers

import (
	"net/http"

	"slonstudy/internal/domain/spot"
	spotService "slonstudy/internal/service/spot"
)

// SpotHandler serves one-shot spot lookups that need no session
type SpotHandler struct {
	fetcher   spot.Fetcher
	suggester *spotService.Suggester
}

// NewSpotHandler creates a new spot handler
func NewSpotHandler(fetcher spot.Fetcher, suggester *spotService.Suggester) *SpotHandler {
	return &SpotHandler{
		fetcher:   fetcher,
		suggester: suggester,
	}
}

// SpotsResponse is the body of a spot lookup
type SpotsResponse struct {
	Bounds spot.BoundingBox `json:"bounds"`
	Query  string           `json:"query,omitempty"`
	Spots  []spot.StudySpot `json:"spots"`
	Count  int              `json:"count"`
}

// ListSpots fetches the spots inside a bounding box, optionally filtered by name
func (h *SpotHandler) ListSpots(w http.ResponseWriter, r *http.Request) {
	bbox, store, ok := h.load(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	spots := store.FilterByName(query)

	respondWithJSON(w, http.StatusOK, SpotsResponse{
		Bounds: bbox,
		Query:  query,
		Spots:  spots,
		Count:  len(spots),
	})
}

// SuggestSpots returns the first few spots whose name matches q
func (h *SpotHandler) SuggestSpots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if spotService.IsBlank(query) {
		respondWithJSON(w, http.StatusOK, SpotsResponse{Spots: []spot.StudySpot{}})
		return
	}

	bbox, store, ok := h.load(w, r)
	if !ok {
		return
	}

	spots := h.suggester.Suggest(query, store)

	respondWithJSON(w, http.StatusOK, SpotsResponse{
		Bounds: bbox,
		Query:  query,
		Spots:  spots,
		Count:  len(spots),
	})
}

func (h *SpotHandler) load(w http.ResponseWriter, r *http.Request) (spot.BoundingBox, *spotService.MemoryStore, bool) {
	bbox, err := parseBoundingBox(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return spot.BoundingBox{}, nil, false
	}

	spots, err := h.fetcher.FetchStudySpots(r.Context(), bbox)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to fetch study spots", err)
		return spot.BoundingBox{}, nil, false
	}

	store := spotService.NewMemoryStore()
	store.ReplaceAll(spots)

	return bbox, store, true
}
