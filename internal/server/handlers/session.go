// internal/server/handlers/session.go

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"slonstudy/internal/domain/spot"
	"slonstudy/internal/service/mapsync"
	"slonstudy/internal/service/session"
)

// SessionHandler handles map-session HTTP requests
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
	}
}

// SessionResponse pairs a session with its current view
type SessionResponse struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	View      mapsync.View `json:"view"`
}

// ViewportRequest optionally pins the visible region before loading
type ViewportRequest struct {
	Bounds *spot.BoundingBox `json:"bounds,omitempty"`
}

// SearchRequest carries the search field text
type SearchRequest struct {
	Text string `json:"text"`
}

// CreateSession starts a new map session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Create(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			respondWithError(w, http.StatusServiceUnavailable, "Too many sessions", nil)
		} else {
			respondWithError(w, http.StatusInternalServerError, "Failed to create session", err)
		}
		return
	}

	view, err := s.Controller.Snapshot(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to render session", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		View:      view,
	})
}

// ListSessions returns the live sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.manager.List())
}

// GetSession returns a session's current view
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.Snapshot(r.Context())
	})
}

// DeleteSession stops a session
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		h.respondWithSessionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LoadViewport signals the map is ready and requests the spots in view
func (h *SessionHandler) LoadViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if req.Bounds != nil {
		if err := validateBoundingBox(*req.Bounds); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.LoadViewport(r.Context(), req.Bounds)
	})
}

// SetSearchText updates the search field
func (h *SessionHandler) SetSearchText(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.SetSearchText(r.Context(), req.Text)
	})
}

// TapMarker selects the spot behind a marker
func (h *SessionHandler) TapMarker(w http.ResponseWriter, r *http.Request) {
	markerID := chi.URLParam(r, "markerID")

	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.TapMarker(r.Context(), markerID)
	})
}

// TapMap dismisses the detail card
func (h *SessionHandler) TapMap(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.TapMap(r.Context())
	})
}

// TouchMap hit-tests a touch point against the markers
func (h *SessionHandler) TouchMap(w http.ResponseWriter, r *http.Request) {
	var req spot.Location
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.Touch(r.Context(), req)
	})
}

// SelectSuggestion picks an entry from the suggestion list
func (h *SessionHandler) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid suggestion index", nil)
		return
	}

	h.dispatch(w, r, func(s *session.Session) (mapsync.View, error) {
		return s.Controller.SelectSuggestion(r.Context(), index)
	})
}

func (h *SessionHandler) dispatch(w http.ResponseWriter, r *http.Request, fn func(*session.Session) (mapsync.View, error)) {
	s, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithSessionError(w, err)
		return
	}

	view, err := fn(s)
	if err != nil {
		h.respondWithSessionError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) respondWithSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, mapsync.ErrStopped):
		respondWithError(w, http.StatusNotFound, "Session not found", nil)
	case errors.Is(err, mapsync.ErrMarkerNotFound):
		respondWithError(w, http.StatusNotFound, "Marker not found", nil)
	case errors.Is(err, mapsync.ErrSuggestionNotFound):
		respondWithError(w, http.StatusNotFound, "Suggestion not found", nil)
	case errors.Is(err, mapsync.ErrBoundsNotSupported):
		respondWithError(w, http.StatusBadRequest, "Bounds cannot be set on this map", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, "Failed to update session", err)
	}
}
