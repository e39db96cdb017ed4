// internal/service/mapsync/events.go

package mapsync

import (
	"log"

	"slonstudy/internal/domain/spot"
)

// Event is a state change applied on the controller's loop. apply reports
// whether the View needs to be re-rendered.
type Event interface {
	apply(c *Controller) (bool, error)
}

// ViewportReady starts a fetch for the visible region. When Bounds is set
// the surface is pinned to it first.
type ViewportReady struct {
	Bounds *spot.BoundingBox
}

func (e ViewportReady) apply(c *Controller) (bool, error) {
	if e.Bounds != nil {
		pinner, ok := c.surface.(boundsPinner)
		if !ok {
			return false, ErrBoundsNotSupported
		}
		pinner.SetBounds(*e.Bounds)
	}

	c.startFetch(c.surface.Bounds())
	return true, nil
}

// SearchChanged replaces the search text and clears the selection
type SearchChanged struct {
	Text string
}

func (e SearchChanged) apply(c *Controller) (bool, error) {
	c.searchText = e.Text
	c.selected = nil
	return true, nil
}

// MarkerTapped selects the marker's spot and focuses the camera on it
type MarkerTapped struct {
	MarkerID string
}

func (e MarkerTapped) apply(c *Controller) (bool, error) {
	for _, m := range c.surface.Markers() {
		if m.ID == e.MarkerID {
			c.selectMarkerSpot(m.Spot, m.Position)
			return true, nil
		}
	}
	return false, ErrMarkerNotFound
}

// MapTapped is a tap on empty map area; it clears the selection
type MapTapped struct{}

func (e MapTapped) apply(c *Controller) (bool, error) {
	c.selected = nil
	return true, nil
}

// MapTouched is a raw touch at a coordinate. It acts as a marker tap when a
// marker is within reach, otherwise as a tap on empty map.
type MapTouched struct {
	At spot.Location
}

func (e MapTouched) apply(c *Controller) (bool, error) {
	if m, ok := c.surface.MarkerAt(e.At); ok {
		c.selectMarkerSpot(m.Spot, m.Position)
		return true, nil
	}
	return MapTapped{}.apply(c)
}

// SuggestionSelected copies a suggestion into the search field and selects it
type SuggestionSelected struct {
	Index int
}

func (e SuggestionSelected) apply(c *Controller) (bool, error) {
	if e.Index < 0 || e.Index >= len(c.view.Suggestions) {
		return false, ErrSuggestionNotFound
	}

	s := c.view.Suggestions[e.Index].Spot
	c.searchText = s.Name
	c.selected = &s
	return true, nil
}

// spotsLoaded carries a fetch result back onto the loop
type spotsLoaded struct {
	request uint64
	spots   []spot.StudySpot
	err     error
}

func (e spotsLoaded) apply(c *Controller) (bool, error) {
	// Latest request wins
	if e.request != c.requested {
		log.Printf("Dropping stale fetch result %d (latest %d)", e.request, c.requested)
		return false, nil
	}

	c.loading = false

	if e.err != nil {
		// The store keeps whatever the last successful fetch loaded
		log.Printf("Study spot fetch failed: %v", e.err)
		c.lastErr = e.err
		return true, nil
	}

	c.store.ReplaceAll(e.spots)
	c.generation++
	c.lastErr = nil
	return true, nil
}

// snapshot reads the current View without changing anything
type snapshot struct{}

func (snapshot) apply(c *Controller) (bool, error) {
	return false, nil
}
