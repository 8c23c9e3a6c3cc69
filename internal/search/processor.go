package search

import (
	"strings"

	"github.com/hyperjump/shoroku/internal/models"
)

// ProcessQuery trims the query text, applies defaultLimit when the caller left the limit
// unset (zero), and validates the result. Negative limits are rejected, never defaulted.
func ProcessQuery(query *models.SearchQuery, defaultLimit int) error {
	query.Query = strings.TrimSpace(query.Query)
	if query.Limit == 0 {
		query.Limit = defaultLimit
	}
	return query.Validate()
}
