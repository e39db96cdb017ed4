// internal/adapter/overpass/query.go

package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"slonstudy/internal/domain/spot"
)

// amenityKinds are the amenity tag values a study spot query asks for
var amenityKinds = []string{spot.AmenityCafe, spot.AmenityLibrary}

// BuildQuery returns the Overpass QL text selecting every cafe and library
// node inside the box. Bounds are not validated.
func BuildQuery(bbox spot.BoundingBox) string {
	area := fmt.Sprintf("(%s,%s,%s,%s)",
		formatDegree(bbox.South),
		formatDegree(bbox.West),
		formatDegree(bbox.North),
		formatDegree(bbox.East),
	)

	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	for _, kind := range amenityKinds {
		fmt.Fprintf(&b, "  node[\"%s\"=\"%s\"]%s;\n", spot.TagAmenity, kind, area)
	}
	b.WriteString(");\nout;")

	return b.String()
}

func formatDegree(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
