package funnel

import "time"

// IngestEventRequest is the POST /analytics/funnel payload.
type IngestEventRequest struct {
	UserID     string                 `json:"userId" binding:"omitempty,uuid"`
	SessionID  string                 `json:"sessionId" binding:"omitempty,max=64"`
	Event      EventKind              `json:"event" binding:"required"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  *time.Time             `json:"timestamp"`
	UserAgent  string                 `json:"userAgent" binding:"omitempty,max=512"`
	Referrer   string                 `json:"referrer" binding:"omitempty,max=512"`
}

// ReportQuery are the GET /analytics/funnel query parameters.
type ReportQuery struct {
	Timeframe string `form:"timeframe" binding:"omitempty,oneof=1d 7d 30d"`
	Breakdown bool   `form:"breakdown"`
}

// Window converts a timeframe selector into a duration. Unknown or empty
// selectors fall back to 30 days.
func (q ReportQuery) Window() (string, time.Duration) {
	switch q.Timeframe {
	case "1d":
		return "1d", 24 * time.Hour
	case "7d":
		return "7d", 7 * 24 * time.Hour
	default:
		return "30d", 30 * 24 * time.Hour
	}
}
