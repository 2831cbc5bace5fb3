package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TargetingAdapter exposes user targeting attributes to the onboarding
// template resolver through the auth repository. The adapter keeps the
// onboarding package from importing auth and creating a cycle.
type TargetingAdapter struct {
	repo Repository
}

// NewTargetingAdapter creates a new targeting adapter
func NewTargetingAdapter(repo Repository) *TargetingAdapter {
	return &TargetingAdapter{
		repo: repo,
	}
}

// GetTargeting returns the user's industry, company size and job role. Empty
// profile fields come back nil so template criteria treat them as wildcards.
func (ta *TargetingAdapter) GetTargeting(ctx context.Context, userID uuid.UUID) (industry, companySize, jobRole *string, err error) {
	user, err := ta.repo.GetUserByID(ctx, userID.String())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}

	if user.Industry != "" {
		industry = &user.Industry
	}
	if user.CompanySize != "" {
		companySize = &user.CompanySize
	}
	if user.JobRole != "" {
		jobRole = &user.JobRole
	}
	return industry, companySize, jobRole, nil
}
