package spot

// Amenity kinds requested from the upstream geodata service
const (
	AmenityCafe    = "cafe"
	AmenityLibrary = "library"
)

// Location represents a geographic point in degrees
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// BoundingBox is the rectangle of a map's visible extent
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether a location lies inside the box, edges included
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Latitude >= b.South && loc.Latitude <= b.North &&
		loc.Longitude >= b.West && loc.Longitude <= b.East
}

// Center returns the midpoint of the box
func (b BoundingBox) Center() Location {
	return Location{
		Latitude:  (b.South + b.North) / 2,
		Longitude: (b.West + b.East) / 2,
	}
}

// StudySpot is a cafe or library that can be shown on the map.
// Values are passed by copy and never mutated after construction.
type StudySpot struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
	// Address is the street tag; empty when upstream had none
	Address string `json:"address,omitempty"`
	// AmenityKind is the raw amenity tag; empty when upstream had none
	AmenityKind       string `json:"amenity,omitempty"`
	HasWifi           bool   `json:"has_wifi"`
	HasPower          bool   `json:"has_power"`
	HasOutdoorSeating bool   `json:"has_outdoor_seating"`
}

// Feature labels shown on the detail card
const (
	FeatureWifi           = "Free Wi-Fi"
	FeaturePower          = "Power outlets"
	FeatureOutdoorSeating = "Outdoor seating"
)

// Features returns the detail-card labels for the amenities the spot offers
func (s StudySpot) Features() []string {
	features := []string{}
	if s.HasWifi {
		features = append(features, FeatureWifi)
	}
	if s.HasPower {
		features = append(features, FeaturePower)
	}
	if s.HasOutdoorSeating {
		features = append(features, FeatureOutdoorSeating)
	}
	return features
}
