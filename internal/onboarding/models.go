package onboarding

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Step is one entry of the onboarding step catalog.
type Step struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StepKey          string         `json:"stepKey" gorm:"size:120;not null;uniqueIndex"`
	Title            string         `json:"title" gorm:"size:255;not null"`
	Description      string         `json:"description" gorm:"type:text"`
	Type             StepType       `json:"type" gorm:"size:40;not null"`
	Category         string         `json:"category" gorm:"size:80"`
	SortOrder        int            `json:"sortOrder" gorm:"not null;default:0;index"`
	Required         bool           `json:"required" gorm:"not null;default:false"`
	SkipAllowed      bool           `json:"skipAllowed" gorm:"not null;default:true"`
	EstimatedMinutes int            `json:"estimatedMinutes" gorm:"not null;default:5"`
	Active           bool           `json:"active" gorm:"not null;default:true;index"`
	Config           datatypes.JSON `json:"config,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Step) TableName() string {
	return "onboarding_steps"
}

// Progress is the per-user, per-step state machine record. One row per
// (user, step) pair.
type Progress struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID      `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_step"`
	StepID         uuid.UUID      `json:"stepId" gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_step"`
	Status         ProgressStatus `json:"status" gorm:"size:20;not null;default:'NOT_STARTED'"`
	Attempts       int            `json:"attempts" gorm:"not null;default:0"`
	HelpUsed       bool           `json:"helpUsed" gorm:"not null;default:false"`
	LastError      *string        `json:"lastError,omitempty" gorm:"type:text"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	SkippedAt      *time.Time     `json:"skippedAt,omitempty"`
	CompletionData datatypes.JSON `json:"completionData,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`

	Step *Step `json:"step,omitempty" gorm:"foreignKey:StepID"`
}

func (Progress) TableName() string {
	return "onboarding_progress"
}

// EffectiveStatus treats a missing progress row as NOT_STARTED.
func EffectiveStatus(p *Progress) ProgressStatus {
	if p == nil {
		return StatusNotStarted
	}
	return p.Status
}

// TemplateStats carries the rolling completion and conversion statistics of a
// template. Counters move as assigned users hit milestone steps; the rates are
// rebuilt from the counters on every write, never stored stale.
type TemplateStats struct {
	UsersAssigned  int64   `json:"usersAssigned" gorm:"not null;default:0"`
	UsersCompleted int64   `json:"usersCompleted" gorm:"not null;default:0"`
	UsersConverted int64   `json:"usersConverted" gorm:"not null;default:0"`
	CompletionRate float64 `json:"completionRate" gorm:"not null;default:0"`
	ConversionRate float64 `json:"conversionRate" gorm:"not null;default:0"`
}

// Recompute rebuilds both rates from the counters. A template nobody has been
// assigned to reports 0, not a division error.
func (s *TemplateStats) Recompute() {
	if s.UsersAssigned == 0 {
		s.CompletionRate = 0
		s.ConversionRate = 0
		return
	}
	s.CompletionRate = float64(s.UsersCompleted) / float64(s.UsersAssigned) * 100
	s.ConversionRate = float64(s.UsersConverted) / float64(s.UsersAssigned) * 100
}

// Template reorders the step catalog for a targeted audience. StepKeys is an
// ordered JSON array of step keys; keys not in the catalog are ignored and
// active catalog steps missing from the list are appended after it.
type Template struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string         `json:"name" gorm:"size:255;not null"`
	Description   string         `json:"description" gorm:"type:text"`
	StepKeys      datatypes.JSON `json:"stepKeys" gorm:"type:jsonb;not null"`
	Industry      *string        `json:"industry,omitempty" gorm:"size:80"`
	CompanySize   *string        `json:"companySize,omitempty" gorm:"size:40"`
	JobRole       *string        `json:"jobRole,omitempty" gorm:"size:80"`
	TrafficWeight int            `json:"trafficWeight" gorm:"not null;default:100"`
	Stats         TemplateStats  `json:"stats" gorm:"embedded"`
	Active        bool           `json:"active" gorm:"not null;default:true;index"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Template) TableName() string {
	return "onboarding_templates"
}

// Event is one onboarding analytics event.
type Event struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    *uuid.UUID     `json:"userId,omitempty" gorm:"type:uuid;index"`
	StepID    *uuid.UUID     `json:"stepId,omitempty" gorm:"type:uuid;index"`
	SessionID string         `json:"sessionId" gorm:"size:120;index"`
	EventType EventType      `json:"eventType" gorm:"size:40;not null;index"`
	Data      datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (Event) TableName() string {
	return "onboarding_events"
}
