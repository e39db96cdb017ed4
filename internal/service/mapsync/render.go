// internal/service/mapsync/render.go

package mapsync

import (
	"fmt"

	"slonstudy/internal/domain/mapview"
	"slonstudy/internal/domain/spot"
	spotService "slonstudy/internal/service/spot"
)

// Suggestion is one entry of the list shown under the search field
type Suggestion struct {
	Index       int            `json:"index"`
	MarkerID    string         `json:"marker_id"`
	Name        string         `json:"name"`
	AmenityKind string         `json:"amenity,omitempty"`
	Spot        spot.StudySpot `json:"-"`
}

// Card is the detail card for the selected spot
type Card struct {
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Features []string `json:"features"`
}

// View is everything a client needs to draw the screen
type View struct {
	SearchText  string           `json:"search_text"`
	Markers     []mapview.Marker `json:"markers"`
	Suggestions []Suggestion     `json:"suggestions"`
	Selected    *spot.StudySpot  `json:"selected,omitempty"`
	Card        *Card            `json:"card,omitempty"`
	Camera      mapview.Camera   `json:"camera"`
	SpotCount   int              `json:"spot_count"`
	Generation  uint64           `json:"generation"`
	Loading     bool             `json:"loading"`
	LastError   string           `json:"last_error,omitempty"`
}

// RenderInput is the state a View is derived from
type RenderInput struct {
	SearchText      string
	Spots           []spot.StudySpot
	Generation      uint64
	Selected        *spot.StudySpot
	Camera          mapview.Camera
	SuggestionLimit int
	Loading         bool
	LastError       error
}

// Render derives the View from state. It has no side effects; the same
// input always yields the same markers, so re-rendering never duplicates.
func Render(in RenderInput) View {
	view := View{
		SearchText:  in.SearchText,
		Markers:     []mapview.Marker{},
		Suggestions: []Suggestion{},
		Camera:      in.Camera,
		SpotCount:   len(in.Spots),
		Generation:  in.Generation,
		Loading:     in.Loading,
	}

	if in.LastError != nil {
		view.LastError = in.LastError.Error()
	}

	for i, sp := range in.Spots {
		if !spotService.MatchesQuery(sp, in.SearchText) {
			continue
		}
		view.Markers = append(view.Markers, mapview.Marker{
			ID:       MarkerID(in.Generation, i),
			Position: sp.Location,
			Title:    sp.Name,
			Spot:     sp,
		})
	}

	// Suggestions are the first matches, truncated, never ranked
	if !spotService.IsBlank(in.SearchText) {
		for i, m := range view.Markers {
			if i >= in.SuggestionLimit {
				break
			}
			view.Suggestions = append(view.Suggestions, Suggestion{
				Index:       i,
				MarkerID:    m.ID,
				Name:        m.Spot.Name,
				AmenityKind: m.Spot.AmenityKind,
				Spot:        m.Spot,
			})
		}
	}

	if in.Selected != nil {
		selected := *in.Selected
		view.Selected = &selected
		view.Card = &Card{
			Name:     selected.Name,
			Address:  selected.Address,
			Features: selected.Features(),
		}
	}

	return view
}

// MarkerID names the marker of the spot at index within a store generation.
// Ids from an older generation never resolve against newer markers.
func MarkerID(generation uint64, index int) string {
	return fmt.Sprintf("%d-%d", generation, index)
}
