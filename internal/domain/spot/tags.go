// internal/domain/spot/tags.go

package spot

// Upstream tag keys
const (
	TagName           = "name"
	TagAmenity        = "amenity"
	TagStreet         = "addr:street"
	TagInternetAccess = "internet_access"
	TagOutdoorSeating = "outdoor_seating"
	TagPowerSupply    = "power_supply"
	TagSocket         = "socket"
)

// Tags is the flat key/value attribute map attached to an upstream element
type Tags map[string]string

// HasWifi is true iff internet_access is exactly "wlan" or "yes"
func HasWifi(tags Tags) bool {
	v := tags[TagInternetAccess]
	return v == "wlan" || v == "yes"
}

// HasPower is true iff power_supply or socket is exactly "yes"
func HasPower(tags Tags) bool {
	return tags[TagPowerSupply] == "yes" || tags[TagSocket] == "yes"
}

// HasOutdoorSeating is true iff outdoor_seating is exactly "yes"
func HasOutdoorSeating(tags Tags) bool {
	return tags[TagOutdoorSeating] == "yes"
}

// FromTags builds a StudySpot from an element's coordinates and tags.
// It returns false when the element has no tag set or no name, which
// means it is not a usable study spot.
func FromTags(loc Location, tags Tags) (StudySpot, bool) {
	if tags == nil {
		return StudySpot{}, false
	}

	name := tags[TagName]
	if name == "" {
		return StudySpot{}, false
	}

	return StudySpot{
		Name:              name,
		Location:          loc,
		Address:           tags[TagStreet],
		AmenityKind:       tags[TagAmenity],
		HasWifi:           HasWifi(tags),
		HasPower:          HasPower(tags),
		HasOutdoorSeating: HasOutdoorSeating(tags),
	}, true
}
