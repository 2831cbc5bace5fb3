package onboarding

import "time"

// CreateStepRequest - DTO for adding a catalog step
type CreateStepRequest struct {
	StepKey          string                 `json:"stepKey" binding:"required,min=2,max=120"`
	Title            string                 `json:"title" binding:"required,min=2,max=255"`
	Description      string                 `json:"description" binding:"max=2000"`
	Type             string                 `json:"type" binding:"required"`
	Category         string                 `json:"category" binding:"max=80"`
	SortOrder        int                    `json:"sortOrder" binding:"gte=0"`
	Required         bool                   `json:"required"`
	SkipAllowed      *bool                  `json:"skipAllowed"`
	EstimatedMinutes int                    `json:"estimatedMinutes" binding:"gte=0,lte=600"`
	Active           *bool                  `json:"active"`
	Config           map[string]interface{} `json:"config"`
}

// UpdateStepRequest - DTO for editing a catalog step (all fields optional)
type UpdateStepRequest struct {
	Title            *string                `json:"title" binding:"omitempty,min=2,max=255"`
	Description      *string                `json:"description" binding:"omitempty,max=2000"`
	Category         *string                `json:"category" binding:"omitempty,max=80"`
	SortOrder        *int                   `json:"sortOrder" binding:"omitempty,gte=0"`
	Required         *bool                  `json:"required"`
	SkipAllowed      *bool                  `json:"skipAllowed"`
	EstimatedMinutes *int                   `json:"estimatedMinutes" binding:"omitempty,gte=0,lte=600"`
	Active           *bool                  `json:"active"`
	Config           map[string]interface{} `json:"config"`
}

// TrackEventRequest - DTO for POST /onboarding/analytics
type TrackEventRequest struct {
	EventType string                 `json:"eventType" binding:"required"`
	UserID    string                 `json:"userId"`
	StepID    string                 `json:"stepId"`
	SessionID string                 `json:"sessionId"`
	EventData map[string]interface{} `json:"eventData"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// EventsQuery - query params for GET /onboarding/analytics
type EventsQuery struct {
	UserID    string `form:"userId"`
	StepID    string `form:"stepId"`
	EventType string `form:"eventType"`
	GroupBy   string `form:"groupBy" binding:"omitempty,oneof=eventType stepId date hour"`
	Since     string `form:"since"`
	Until     string `form:"until"`
	Limit     int    `form:"limit,default=100" binding:"omitempty,gte=1,lte=1000"`
}

// ChecklistQuery - query params for GET /onboarding/checklist
type ChecklistQuery struct {
	UserID     string `form:"userId" binding:"required"`
	TemplateID string `form:"templateId"`
}

// Checklist actions accepted by POST /onboarding/checklist.
const (
	ActionMarkCompleted = "mark_completed"
	ActionResetProgress = "reset_progress"
)

// ChecklistActionRequest - DTO for POST /onboarding/checklist
type ChecklistActionRequest struct {
	UserID  string                 `json:"userId" binding:"required"`
	Action  string                 `json:"action" binding:"required,oneof=mark_completed reset_progress"`
	ItemIDs []string               `json:"itemIds"`
	Data    map[string]interface{} `json:"data"`
}

// ProgressActionRequest - DTO for POST /onboarding/progress, the direct state
// machine surface (start, complete, skip, fail, abandon a single step).
type ProgressActionRequest struct {
	UserID    string                 `json:"userId" binding:"required"`
	StepKey   string                 `json:"stepKey" binding:"required"`
	Action    string                 `json:"action" binding:"required,oneof=start complete skip fail abandon"`
	Data      map[string]interface{} `json:"data"`
	ErrorInfo string                 `json:"errorInfo"`
	HelpUsed  bool                   `json:"helpUsed"`
}

// EventFilter is the parsed, typed form of EventsQuery used by the repository.
type EventFilter struct {
	UserID    *string
	StepID    *string
	EventType *EventType
	Since     *time.Time
	Until     *time.Time
	Limit     int
}
