package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventIndexBuild EventType = "index_build"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Limit      int       `json:"limit"`
	Returned   int       `json:"returned"`
	LatencyMs  float64   `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IndexEvent describes one full index build, successful or not.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Generation uint64    `json:"generation"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Trigger    string    `json:"trigger"`
	LatencyMs  float64   `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewSearchEvent fills Type from the number of returned results.
func NewSearchEvent(query string, limit, returned int, latency time.Duration, cacheHit bool, generation uint64, requestID string) SearchEvent {
	typ := EventSearch
	if returned == 0 {
		typ = EventZeroResult
	}
	return SearchEvent{
		Type:       typ,
		Query:      query,
		Limit:      limit,
		Returned:   returned,
		LatencyMs:  durationMs(latency),
		CacheHit:   cacheHit,
		Generation: generation,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
