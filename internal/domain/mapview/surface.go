// internal/domain/mapview/surface.go

package mapview

import (
	"slonstudy/internal/domain/spot"
)

// Marker is a pin drawn on the map for one study spot
type Marker struct {
	ID       string         `json:"id"`
	Position spot.Location  `json:"position"`
	Title    string         `json:"title"`
	Spot     spot.StudySpot `json:"spot"`
}

// Camera describes what the map is currently looking at
type Camera struct {
	Center     spot.Location `json:"center"`
	Zoom       float64       `json:"zoom"`
	TileSource string        `json:"tile_source"`
}

// Surface is the map widget a controller draws on
type Surface interface {
	// Bounds returns the currently visible region
	Bounds() spot.BoundingBox

	// Zoom returns the current zoom level
	Zoom() float64

	// Camera returns the current camera
	Camera() Camera

	// AnimateTo moves the camera center. It must not block.
	AnimateTo(loc spot.Location)

	// SetZoom changes the zoom level
	SetZoom(zoom float64)

	// ReplaceMarkers removes every drawn marker and draws the given ones
	ReplaceMarkers(markers []Marker)

	// Markers returns the markers currently drawn
	Markers() []Marker

	// MarkerAt resolves a touch to the nearest marker within the hit radius
	MarkerAt(loc spot.Location) (Marker, bool)
}
