package onboarding

// StepType categorizes catalog steps.
type StepType string

const (
	StepTypeWelcome           StepType = "WELCOME"
	StepTypeProfileSetup      StepType = "PROFILE_SETUP"
	StepTypeAgentIntroduction StepType = "AGENT_INTRODUCTION"
	StepTypeAgentSetup        StepType = "AGENT_SETUP"
	StepTypeFirstInteraction  StepType = "FIRST_INTERACTION"
	StepTypeSuccessMilestone  StepType = "SUCCESS_MILESTONE"
	StepTypeFeatureDiscovery  StepType = "FEATURE_DISCOVERY"
	StepTypeIntegrationSetup  StepType = "INTEGRATION_SETUP"
	StepTypeCompletion        StepType = "COMPLETION"
	StepTypeConversion        StepType = "CONVERSION"
)

// IsValid checks if the step type is in the accepted enumeration
func (t StepType) IsValid() bool {
	switch t {
	case StepTypeWelcome, StepTypeProfileSetup, StepTypeAgentIntroduction,
		StepTypeAgentSetup, StepTypeFirstInteraction, StepTypeSuccessMilestone,
		StepTypeFeatureDiscovery, StepTypeIntegrationSetup, StepTypeCompletion,
		StepTypeConversion:
		return true
	}
	return false
}

// String returns the string representation of StepType
func (t StepType) String() string {
	return string(t)
}

// ProgressStatus is the per-(user, step) state machine state.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "NOT_STARTED"
	StatusInProgress ProgressStatus = "IN_PROGRESS"
	StatusCompleted  ProgressStatus = "COMPLETED"
	StatusSkipped    ProgressStatus = "SKIPPED"
	StatusFailed     ProgressStatus = "FAILED"
	StatusAbandoned  ProgressStatus = "ABANDONED"
)

// IsValid checks if the progress status is valid
func (s ProgressStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted,
		StatusSkipped, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// String returns the string representation of ProgressStatus
func (s ProgressStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the step will not be worked on again. FAILED is
// not terminal: reattempts are allowed and increment the attempt counter.
func (s ProgressStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusSkipped, StatusAbandoned:
		return true
	}
	return false
}

// CanStart reports whether a transition to IN_PROGRESS is allowed.
func (s ProgressStatus) CanStart() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusFailed:
		return true
	}
	return false
}

// CanSkip reports whether a transition to SKIPPED is allowed. The step's own
// skip_allowed flag is checked separately.
func (s ProgressStatus) CanSkip() bool {
	return s == StatusNotStarted || s == StatusInProgress
}

// EventType tags one onboarding analytics event.
type EventType string

const (
	EventStepViewed          EventType = "step_viewed"
	EventStepStarted         EventType = "step_started"
	EventStepCompleted       EventType = "step_completed"
	EventStepSkipped         EventType = "step_skipped"
	EventStepFailed          EventType = "step_failed"
	EventHelpRequested       EventType = "help_requested"
	EventChecklistViewed     EventType = "checklist_viewed"
	EventOnboardingCompleted EventType = "onboarding_completed"
)

// IsValid checks if the event type is in the accepted enumeration
func (t EventType) IsValid() bool {
	switch t {
	case EventStepViewed, EventStepStarted, EventStepCompleted,
		EventStepSkipped, EventStepFailed, EventHelpRequested,
		EventChecklistViewed, EventOnboardingCompleted:
		return true
	}
	return false
}

// String returns the string representation of EventType
func (t EventType) String() string {
	return string(t)
}
