package onboarding

import (
	"time"

	"github.com/google/uuid"
)

// ChecklistItem is one row of the rendered onboarding checklist.
type ChecklistItem struct {
	StepID           uuid.UUID      `json:"stepId"`
	StepKey          string         `json:"stepKey"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	Type             StepType       `json:"type"`
	Status           ProgressStatus `json:"status"`
	Required         bool           `json:"required"`
	Optional         bool           `json:"optional"`
	SkipAllowed      bool           `json:"skipAllowed"`
	EstimatedMinutes int            `json:"estimatedMinutes"`
	RewardHint       string         `json:"rewardHint,omitempty"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty"`
}

// Checklist is the GET /onboarding/checklist payload.
type Checklist struct {
	UserID               uuid.UUID       `json:"userId"`
	TemplateID           *uuid.UUID      `json:"templateId,omitempty"`
	TemplateName         string          `json:"templateName,omitempty"`
	Items                []ChecklistItem `json:"items"`
	CompletionPercentage float64         `json:"completionPercentage"`
	CompletedCount       int             `json:"completedCount"`
	TotalCount           int             `json:"totalCount"`
	GeneratedAt          time.Time       `json:"generatedAt"`
}

// GroupedCount is one bucket of a grouped analytics query.
type GroupedCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// EventsResult carries either raw events or grouped counts, never both.
type EventsResult struct {
	Events  []Event        `json:"events,omitempty"`
	Grouped []GroupedCount `json:"grouped,omitempty"`
	GroupBy string         `json:"groupBy,omitempty"`
	Total   int            `json:"total"`
}

// ChecklistActionResult summarizes a bulk checklist mutation.
type ChecklistActionResult struct {
	Action               string  `json:"action"`
	AffectedSteps        int     `json:"affectedSteps"`
	CompletionPercentage float64 `json:"completionPercentage"`
}
