// internal/domain/spot/service.go

package spot

import (
	"context"
)

// Fetcher queries a point-of-interest source for study spots
type Fetcher interface {
	// FetchStudySpots returns the spots inside the box in upstream order.
	// Every call issues a fresh upstream request.
	FetchStudySpots(ctx context.Context, bbox BoundingBox) ([]StudySpot, error)
}

// Store holds the spots of the most recent successful fetch
type Store interface {
	// ReplaceAll swaps the entire contents
	ReplaceAll(spots []StudySpot)

	// All returns the current contents in order
	All() []StudySpot

	// FilterByName returns spots whose name contains the query, ignoring case.
	// A blank query returns everything.
	FilterByName(query string) []StudySpot

	// Len returns the number of spots held
	Len() int
}
