package models

import "fmt"

// SearchQuery is a nearest-neighbour request. Either Query text (embedded by the
// configured provider) or a precomputed Vector must be supplied.
type SearchQuery struct {
	Query  string    `json:"query,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// Validate ensures the query has text or a vector and a positive limit.
// Surfaces apply their default limit before calling Validate; a limit still <= 0 is rejected.
func (q *SearchQuery) Validate() error {
	if q.Query == "" && len(q.Vector) == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, q.Limit)
	}
	return nil
}
