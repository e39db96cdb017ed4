// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"slonstudy/internal/domain/spot"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		log.Printf("HTTP %d: %s: %v", code, message, err)
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidBounds = errors.New("invalid bounds")
)

// parseBoundingBox reads south, west, north and east from the query string
func parseBoundingBox(q url.Values) (spot.BoundingBox, error) {
	var values [4]float64
	for i, key := range []string{"south", "west", "north", "east"} {
		raw := q.Get(key)
		if raw == "" {
			return spot.BoundingBox{}, fmt.Errorf("%w: missing %s", ErrInvalidBounds, key)
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return spot.BoundingBox{}, fmt.Errorf("%w: %s is not a number", ErrInvalidBounds, key)
		}
		values[i] = v
	}

	bbox := spot.BoundingBox{South: values[0], West: values[1], North: values[2], East: values[3]}
	return bbox, validateBoundingBox(bbox)
}

func validateBoundingBox(b spot.BoundingBox) error {
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return fmt.Errorf("%w: out of range", ErrInvalidBounds)
	}
	if b.South > b.North || b.West > b.East {
		return fmt.Errorf("%w: south/west must not exceed north/east", ErrInvalidBounds)
	}
	return nil
}
