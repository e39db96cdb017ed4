// internal/service/mapview/headless.go

package mapview

import (
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"slonstudy/internal/domain/mapview"
	"slonstudy/internal/domain/spot"
)

const (
	tileSize       = 256.0
	markerExtent   = 1e-7
	minChildren    = 2
	maxChildren    = 8
	rtreeDims      = 2
	maxMercatorLat = 85.0511
)

// HeadlessConfig contains configuration for a headless surface
type HeadlessConfig struct {
	Center      spot.Location
	Zoom        float64
	TileSource  string
	WidthPx     int
	HeightPx    int
	HitRadiusPx float64
}

// markerItem wraps a Marker for R-Tree indexing
type markerItem struct {
	marker mapview.Marker
	rect   *rtreego.Rect
}

func (m *markerItem) Bounds() *rtreego.Rect {
	return m.rect
}

// HeadlessSurface is a map surface with no renderer behind it. It keeps the
// camera and marker set a client would draw and answers hit tests.
type HeadlessSurface struct {
	config     HeadlessConfig
	camera     mapview.Camera
	bounds     *spot.BoundingBox
	markers    []mapview.Marker
	index      *rtreego.Rtree
	animations int
	mu         sync.RWMutex
}

// NewHeadlessSurface creates a surface looking at the configured center
func NewHeadlessSurface(config HeadlessConfig) *HeadlessSurface {
	if config.WidthPx <= 0 {
		config.WidthPx = 1080
	}
	if config.HeightPx <= 0 {
		config.HeightPx = 1920
	}
	if config.HitRadiusPx <= 0 {
		config.HitRadiusPx = 24
	}

	return &HeadlessSurface{
		config: config,
		camera: mapview.Camera{
			Center:     config.Center,
			Zoom:       config.Zoom,
			TileSource: config.TileSource,
		},
		markers: []mapview.Marker{},
		index:   rtreego.NewTree(rtreeDims, minChildren, maxChildren),
	}
}

// SetBounds pins the visible region reported by Bounds, as a client does
// when it reports its own viewport. The camera is re-centered on it.
func (h *HeadlessSurface) SetBounds(bbox spot.BoundingBox) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bounds = &bbox
	h.camera.Center = bbox.Center()
}

// Bounds returns the pinned region, or the region derived from the camera
func (h *HeadlessSurface) Bounds() spot.BoundingBox {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.bounds != nil {
		return *h.bounds
	}

	return h.derivedBounds()
}

func (h *HeadlessSurface) derivedBounds() spot.BoundingBox {
	lonPerPx, latPerPx := h.degreesPerPixel()
	halfW := float64(h.config.WidthPx) / 2 * lonPerPx
	halfH := float64(h.config.HeightPx) / 2 * latPerPx

	c := h.camera.Center
	return spot.BoundingBox{
		South: math.Max(c.Latitude-halfH, -maxMercatorLat),
		West:  math.Max(c.Longitude-halfW, -180),
		North: math.Min(c.Latitude+halfH, maxMercatorLat),
		East:  math.Min(c.Longitude+halfW, 180),
	}
}

// degreesPerPixel approximates web-mercator scale at the camera center
func (h *HeadlessSurface) degreesPerPixel() (lon, lat float64) {
	lon = 360.0 / (tileSize * math.Pow(2, h.camera.Zoom))
	lat = lon * math.Cos(h.camera.Center.Latitude*math.Pi/180.0)
	return lon, lat
}

// Zoom returns the current zoom level
func (h *HeadlessSurface) Zoom() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.camera.Zoom
}

// Camera returns the current camera
func (h *HeadlessSurface) Camera() mapview.Camera {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.camera
}

// AnimateTo moves the camera center immediately and counts the animation
func (h *HeadlessSurface) AnimateTo(loc spot.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.camera.Center = loc
	h.bounds = nil
	h.animations++
}

// SetZoom changes the zoom level
func (h *HeadlessSurface) SetZoom(zoom float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.camera.Zoom = zoom
	h.bounds = nil
}

// Animations returns how many camera animations have been started
func (h *HeadlessSurface) Animations() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.animations
}

// ReplaceMarkers drops every drawn marker and draws the given ones
func (h *HeadlessSurface) ReplaceMarkers(markers []mapview.Marker) {
	drawn := make([]mapview.Marker, len(markers))
	copy(drawn, markers)

	index := rtreego.NewTree(rtreeDims, minChildren, maxChildren)
	for _, m := range drawn {
		p := rtreego.Point{m.Position.Longitude, m.Position.Latitude}
		index.Insert(&markerItem{marker: m, rect: p.ToRect(markerExtent)})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.markers = drawn
	h.index = index
}

// Markers returns the markers currently drawn
func (h *HeadlessSurface) Markers() []mapview.Marker {
	h.mu.RLock()
	defer h.mu.RUnlock()

	markers := make([]mapview.Marker, len(h.markers))
	copy(markers, h.markers)

	return markers
}

// MarkerAt returns the marker closest to loc within the hit radius
func (h *HeadlessSurface) MarkerAt(loc spot.Location) (mapview.Marker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.index.Size() == 0 {
		return mapview.Marker{}, false
	}

	lonPerPx, latPerPx := h.degreesPerPixel()
	rLon := h.config.HitRadiusPx * lonPerPx
	rLat := h.config.HitRadiusPx * latPerPx

	area, err := rtreego.NewRect(
		rtreego.Point{loc.Longitude - rLon, loc.Latitude - rLat},
		[]float64{2 * rLon, 2 * rLat},
	)
	if err != nil {
		return mapview.Marker{}, false
	}

	var (
		best     mapview.Marker
		bestDist = math.Inf(1)
		found    bool
	)
	for _, result := range h.index.SearchIntersect(area) {
		item, ok := result.(*markerItem)
		if !ok {
			continue
		}

		// Compare in pixels so that both axes weigh the same
		dx := (item.marker.Position.Longitude - loc.Longitude) / lonPerPx
		dy := (item.marker.Position.Latitude - loc.Latitude) / latPerPx
		dist := math.Hypot(dx, dy)
		if dist <= h.config.HitRadiusPx && dist < bestDist {
			best = item.marker
			bestDist = dist
			found = true
		}
	}

	return best, found
}
