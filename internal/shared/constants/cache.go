package constants

import "time"

// Cache keys
const (
	CacheKeyFunnelReport    = "funnel:report" // + ":{timeframe}:{breakdown}"
	CacheKeyOnboardingSteps = "onboarding:steps:active"
	CacheKeyChecklist       = "onboarding:checklist" // + ":{user_id}"
)

// Cache TTLs
const (
	TTLFunnelReport    = 1 * time.Minute
	TTLOnboardingSteps = 10 * time.Minute
	TTLChecklist       = 30 * time.Second
)

// BuildFunnelReportKey builds the cache key for a funnel report variant.
func BuildFunnelReportKey(timeframe string, breakdown bool) string {
	key := CacheKeyFunnelReport + ":" + timeframe
	if breakdown {
		key += ":breakdown"
	}
	return key
}

// BuildChecklistKey builds the per-user checklist cache key.
func BuildChecklistKey(userID string) string {
	return CacheKeyChecklist + ":" + userID
}
