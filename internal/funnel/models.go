package funnel

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MetricsKey is the fixed key the metrics singleton lives under in the
// key-addressed config store.
const MetricsKey = "funnel_metrics"

// Conversion rate names. Each is numerator/denominator*100 over the current
// counters and is recomputed on every counter mutation, never stored stale.
const (
	RateLandingToCTA          = "landing_to_cta"
	RateCTAToSignup           = "cta_to_signup"
	RateSignupCompletion      = "signup_completion"
	RateTrialToInteraction    = "trial_to_interaction"
	RateInteractionToUpgrade  = "interaction_to_upgrade"
	RateUpgradeToSubscription = "upgrade_to_subscription"
	RateOverallConversion     = "overall_conversion"
)

// Rate is a conversion percentage. A 0/0 ratio is NaN by construction and a
// n/0 ratio is +Inf; both render as JSON null rather than being coerced to 0,
// so an empty funnel is distinguishable from a 0% conversion.
type Rate float64

// IsDefined reports whether the rate is a finite percentage.
func (r Rate) IsDefined() bool {
	f := float64(r)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.IsDefined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Rate(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Rate(f)
	return nil
}

// Counters holds the raw per-stage funnel tallies.
type Counters struct {
	LandingPageViews     int64 `json:"landing_page_views"`
	CTAClicks            int64 `json:"cta_clicks"`
	SignupStarted        int64 `json:"signup_started"`
	SignupCompleted      int64 `json:"signup_completed"`
	TrialActivated       int64 `json:"trial_activated"`
	AgentInteractions    int64 `json:"agent_interactions"`
	UpgradeClicked       int64 `json:"upgrade_clicked"`
	SubscriptionsCreated int64 `json:"subscriptions_created"`
}

// Apply applies the deterministic increment rule for an event kind. A
// completed signup also activates a trial, so both counters move together.
// Kinds outside the rule table leave the counters untouched.
func (c *Counters) Apply(kind EventKind) {
	switch kind {
	case EventLandingPageView:
		c.LandingPageViews++
	case EventCTAClick:
		c.CTAClicks++
	case EventSignupStarted:
		c.SignupStarted++
	case EventSignupCompleted:
		c.SignupCompleted++
		c.TrialActivated++
	case EventAgentInteraction:
		c.AgentInteractions++
	case EventUpgradeClicked:
		c.UpgradeClicked++
	case EventSubscriptionCreated:
		c.SubscriptionsCreated++
	}
}

// ROIMetrics carries fixed business-model assumptions shown alongside the
// funnel. These are constants, not computed from events.
type ROIMetrics struct {
	AvgTrialValue         float64 `json:"avg_trial_value"`
	AvgTimeToUpgrade      float64 `json:"avg_time_to_upgrade"` // days
	CustomerLifetimeValue float64 `json:"customer_lifetime_value"`
	ChurnRate             float64 `json:"churn_rate"` // percent
}

// Metrics is the funnel metrics singleton persisted under MetricsKey.
type Metrics struct {
	Counters        Counters        `json:"counters"`
	ConversionRates map[string]Rate `json:"conversion_rates"`
	ROI             ROIMetrics      `json:"roi"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DefaultMetrics returns the bootstrap snapshot used before the store holds a
// persisted record. Pure function: callers get a fresh value every time,
// never a shared mutable object.
func DefaultMetrics() *Metrics {
	m := &Metrics{
		ROI: ROIMetrics{
			AvgTrialValue:         2400,
			AvgTimeToUpgrade:      8.5,
			CustomerLifetimeValue: 28800,
			ChurnRate:             3.2,
		},
	}
	m.RecomputeRates()
	return m
}

// RecomputeRates rebuilds every conversion rate from the current counters.
func (m *Metrics) RecomputeRates() {
	c := m.Counters
	m.ConversionRates = map[string]Rate{
		RateLandingToCTA:          ratio(c.CTAClicks, c.LandingPageViews),
		RateCTAToSignup:           ratio(c.SignupStarted, c.CTAClicks),
		RateSignupCompletion:      ratio(c.SignupCompleted, c.SignupStarted),
		RateTrialToInteraction:    ratio(c.AgentInteractions, c.TrialActivated),
		RateInteractionToUpgrade:  ratio(c.UpgradeClicked, c.AgentInteractions),
		RateUpgradeToSubscription: ratio(c.SubscriptionsCreated, c.UpgradeClicked),
		RateOverallConversion:     ratio(c.SubscriptionsCreated, c.LandingPageViews),
	}
}

func ratio(num, den int64) Rate {
	return Rate(float64(num) / float64(den) * 100)
}

// Event is an immutable audit-log entry capturing one ingested analytics
// event. Rows are only ever appended.
type Event struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;index"`
	SessionID  string         `json:"session_id" gorm:"size:64;index"`
	Kind       EventKind      `json:"event" gorm:"type:varchar(40);not null;index"`
	Properties datatypes.JSON `json:"properties" gorm:"type:jsonb"`
	UserAgent  string         `json:"user_agent" gorm:"size:512"`
	Referrer   string         `json:"referrer" gorm:"size:512"`
	OccurredAt time.Time      `json:"occurred_at" gorm:"not null;index"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "funnel_audit_log"
}
