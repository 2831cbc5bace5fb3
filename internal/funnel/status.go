package funnel

// EventKind tags an ingested analytics event with its funnel stage.
type EventKind string

const (
	EventLandingPageView     EventKind = "landing_page_view"
	EventCTAClick            EventKind = "cta_click"
	EventSignupStarted       EventKind = "signup_started"
	EventSignupCompleted     EventKind = "signup_completed"
	EventTrialActivated      EventKind = "trial_activated"
	EventAgentInteraction    EventKind = "agent_interaction"
	EventUpgradeClicked      EventKind = "upgrade_clicked"
	EventSubscriptionCreated EventKind = "subscription_created"
	EventPageView            EventKind = "page_view"
	EventFeatureViewed       EventKind = "feature_viewed"
)

// AllEventKinds lists every accepted event kind.
var AllEventKinds = []EventKind{
	EventLandingPageView,
	EventCTAClick,
	EventSignupStarted,
	EventSignupCompleted,
	EventTrialActivated,
	EventAgentInteraction,
	EventUpgradeClicked,
	EventSubscriptionCreated,
	EventPageView,
	EventFeatureViewed,
}

// IsValid checks if the event kind is in the accepted enumeration
func (k EventKind) IsValid() bool {
	switch k {
	case EventLandingPageView, EventCTAClick, EventSignupStarted,
		EventSignupCompleted, EventTrialActivated, EventAgentInteraction,
		EventUpgradeClicked, EventSubscriptionCreated, EventPageView,
		EventFeatureViewed:
		return true
	}
	return false
}

// String returns the string representation of EventKind
func (k EventKind) String() string {
	return string(k)
}

// MovesCounters reports whether ingesting this kind mutates the aggregate
// counters. trial_activated, page_view and feature_viewed are recorded in the
// audit log only.
func (k EventKind) MovesCounters() bool {
	switch k {
	case EventLandingPageView, EventCTAClick, EventSignupStarted,
		EventSignupCompleted, EventAgentInteraction, EventUpgradeClicked,
		EventSubscriptionCreated:
		return true
	}
	return false
}
