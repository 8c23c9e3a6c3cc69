package models

// Neighbor is one ranked query result.
type Neighbor struct {
	Record   *Record   `json:"record"`
	Distance float64   `json:"distance"`
	Document *Document `json:"document,omitempty"`
	Rank     int       `json:"rank"`
}

// SearchResponse is the response for a search request. Results are ordered by
// ascending distance, ties broken by (document_id, chunk_index).
type SearchResponse struct {
	Results   []*Neighbor `json:"results"`
	Total     int         `json:"total"`
	QueryTime int64       `json:"query_time_ms"`
	Query     string      `json:"query"`
}
