// internal/service/spot/suggest.go

package spot

import (
	"slonstudy/internal/domain/spot"
)

// DefaultSuggestionLimit is how many suggestions are shown under the search field
const DefaultSuggestionLimit = 5

// Suggester derives search suggestions from a store
type Suggester struct {
	Limit int
}

// NewSuggester creates a suggester; a non-positive limit uses the default
func NewSuggester(limit int) *Suggester {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	return &Suggester{Limit: limit}
}

// Suggest returns up to Limit spots whose name contains query, in store
// order. A blank query yields no suggestions.
func (s *Suggester) Suggest(query string, store spot.Store) []spot.StudySpot {
	if IsBlank(query) {
		return []spot.StudySpot{}
	}

	matches := store.FilterByName(query)
	if len(matches) > s.Limit {
		matches = matches[:s.Limit]
	}

	return matches
}
