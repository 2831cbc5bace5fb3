package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubscriptionStatus tracks a subscription through its lifecycle.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Plan is a purchasable subscription plan. Reference data, seeded at deploy.
type Plan struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PlanKey     string         `json:"planKey" gorm:"size:80;not null;uniqueIndex"`
	Name        string         `json:"name" gorm:"size:255;not null"`
	Description string         `json:"description" gorm:"type:text"`
	PriceCents  int64          `json:"priceCents" gorm:"not null"`
	Currency    string         `json:"currency" gorm:"size:3;not null;default:'USD'"`
	Interval    string         `json:"interval" gorm:"size:20;not null;default:'month'"`
	AgentLimit  int            `json:"agentLimit" gorm:"not null;default:1"`
	Features    datatypes.JSON `json:"features,omitempty" gorm:"type:jsonb"`
	Active      bool           `json:"active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Plan) TableName() string {
	return "billing_plans"
}

// Subscription records a user's purchase of a plan.
type Subscription struct {
	ID                 uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID             uuid.UUID          `json:"userId" gorm:"type:uuid;not null;index"`
	PlanID             uuid.UUID          `json:"planId" gorm:"type:uuid;not null"`
	Status             SubscriptionStatus `json:"status" gorm:"size:20;not null;default:'ACTIVE'"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart" gorm:"not null"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd" gorm:"not null"`
	CanceledAt         *time.Time         `json:"canceledAt,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt          time.Time          `json:"updatedAt" gorm:"autoUpdateTime"`

	Plan *Plan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

func (Subscription) TableName() string {
	return "billing_subscriptions"
}
