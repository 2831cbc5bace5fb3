package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsValidRole checks whether the string is a known role
func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// AccountStatus tracks where the user sits in the trial-to-paid lifecycle.
type AccountStatus string

const (
	AccountStatusTrial      AccountStatus = "TRIAL"
	AccountStatusSubscribed AccountStatus = "SUBSCRIBED"
	AccountStatusExpired    AccountStatus = "EXPIRED"
)

type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	FirstName string    `json:"first_name" gorm:"not null;size:100"`
	LastName  string    `json:"last_name" gorm:"not null;size:100"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Password  string    `json:"-" gorm:"not null;size:255"`
	Role      Role      `json:"role" gorm:"type:varchar(20);default:'USER'"`

	Company     string `json:"company" gorm:"size:255"`
	Industry    string `json:"industry" gorm:"size:100"`
	CompanySize string `json:"company_size" gorm:"size:50"`
	JobRole     string `json:"job_role" gorm:"size:100"`

	Status       AccountStatus `json:"status" gorm:"type:varchar(20);default:'TRIAL'"`
	TrialStartAt *time.Time    `json:"trial_start_at"`
	TrialEndsAt  *time.Time    `json:"trial_ends_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// OnTrial reports whether the user's trial is still running at the given time.
func (u *User) OnTrial(now time.Time) bool {
	return u.Status == AccountStatusTrial && u.TrialEndsAt != nil && now.Before(*u.TrialEndsAt)
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
