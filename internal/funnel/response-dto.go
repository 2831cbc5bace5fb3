package funnel

import "time"

// IngestResult is returned after a successful ingestion.
type IngestResult struct {
	EventID   string `json:"eventId"`
	SessionID string `json:"sessionId"`
}

// TrendIndicator is a fixed percentage label for one funnel dimension,
// tagged with the timeframe it was computed over. It is a threshold
// heuristic, not a statistical trend.
type TrendIndicator struct {
	Change    string `json:"change"`
	Timeframe string `json:"timeframe"`
}

// PagePerformance is a static showcase entry for the report payload.
type PagePerformance struct {
	Path           string `json:"path"`
	Views          int64  `json:"views"`
	ConversionRate Rate   `json:"conversionRate"`
}

// Optimization is a canned conversion-improvement suggestion.
type Optimization struct {
	Area       string `json:"area"`
	Suggestion string `json:"suggestion"`
	Impact     string `json:"impact"` // "high", "medium", "low"
}

// DailyBreakdownRow is one synthetic day of placeholder volume. Values are
// random-in-range and unrelated to stored events.
type DailyBreakdownRow struct {
	Date        string `json:"date"`
	Visitors    int    `json:"visitors"`
	Signups     int    `json:"signups"`
	Conversions int    `json:"conversions"`
}

// Report is the GET /analytics/funnel response body under "analytics".
// Field names match the public API contract.
type Report struct {
	Timeframe               string                    `json:"timeframe"`
	Metrics                 *Metrics                  `json:"metrics"`
	RealEventCounts         map[EventKind]int64       `json:"realEventCounts"`
	Trends                  map[string]TrendIndicator `json:"trends"`
	TopPerformingPages      []PagePerformance         `json:"topPerformingPages"`
	ConversionOptimizations []Optimization            `json:"conversionOptimizations"`
	DataSource              string                    `json:"dataSource"`
	LastUpdated             time.Time                 `json:"lastUpdated"`
	Breakdown               []DailyBreakdownRow       `json:"breakdown,omitempty"`
	BreakdownSource         string                    `json:"breakdownSource,omitempty"`
}
