package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound         = errors.New("billing plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type Repository interface {
	GetActivePlans(ctx context.Context) ([]Plan, error)
	GetPlanByKey(ctx context.Context, key string) (*Plan, error)
	CreatePlan(ctx context.Context, plan *Plan) error
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	CancelSubscription(ctx context.Context, subID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetActivePlans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_cents ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list billing plans: %w", err)
	}
	return plans, nil
}

func (r *repository) GetPlanByKey(ctx context.Context, key string) (*Plan, error) {
	var plan Plan
	err := r.db.WithContext(ctx).Where("plan_key = ? AND active = ?", key, true).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get billing plan: %w", err)
	}
	return &plan, nil
}

func (r *repository) CreatePlan(ctx context.Context, plan *Plan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create billing plan: %w", err)
	}
	return nil
}

func (r *repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *repository) GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status = ?", userID, SubscriptionActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) CancelSubscription(ctx context.Context, subID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&Subscription{}).
		Where("id = ?", subID).
		Updates(map[string]interface{}{
			"status":      SubscriptionCanceled,
			"canceled_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to cancel subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
