package models

import "time"

type SearchRecord struct {
	ID               string    `json:"id"`
	Artist           string    `json:"artist"`
	Song             string    `json:"song"`
	Year             *int      `json:"year,omitempty"`
	CacheKey         string    `json:"cache_key"`
	CacheHit         bool      `json:"cache_hit"`
	ConfidenceScore  int       `json:"confidence_score"`
	SourcesConsulted int       `json:"sources_consulted"`
	SourcesSucceeded int       `json:"sources_succeeded"`
	LatencyMS        int       `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// SourceData is the raw evidence one source returned for a search. Items holds the
// JSON-encoded evidence items.
type SourceData struct {
	ID        int       `json:"id"`
	SearchID  string    `json:"search_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	ItemCount int       `json:"item_count"`
	Items     string    `json:"items"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS int       `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}
