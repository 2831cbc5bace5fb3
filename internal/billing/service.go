package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trinity/internal/funnel"
	"trinity/internal/users"
	"trinity/pkg/logger"
)

var (
	ErrInvalidUserID     = errors.New("userId must be a valid UUID")
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
)

// FunnelIngester is the slice of the funnel service that billing feeds.
type FunnelIngester interface {
	IngestEvent(ctx context.Context, req *funnel.IngestEventRequest) (*funnel.IngestResult, error)
}

// AccountUpdater flips the user's lifecycle status after checkout. Implemented
// by the auth repository.
type AccountUpdater interface {
	UpdateUserStatus(ctx context.Context, userID string, status users.AccountStatus) error
}

// Service defines the billing service interface
type Service interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	Subscribe(ctx context.Context, req *SubscribeRequest) (*Subscription, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	CancelSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	TrackUpgradeClick(ctx context.Context, req *UpgradeClickRequest) error

	// Dependency injection
	SetFunnelIngester(ingester FunnelIngester)
	SetAccountUpdater(updater AccountUpdater)
}

type service struct {
	repo    Repository
	funnel  FunnelIngester
	account AccountUpdater
	log     *logger.Logger
}

// NewService creates a new billing service instance
func NewService(repo Repository) Service {
	return &service{
		repo: repo,
		log:  logger.GetDefault(),
	}
}

// SetFunnelIngester injects the funnel analytics dependency
func (s *service) SetFunnelIngester(ingester FunnelIngester) {
	s.funnel = ingester
}

// SetAccountUpdater injects the account status writer
func (s *service) SetAccountUpdater(updater AccountUpdater) {
	s.account = updater
}

func (s *service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.GetActivePlans(ctx)
}

// Subscribe creates the subscription, marks the account SUBSCRIBED and feeds
// subscription_created into the funnel. The funnel write is best effort.
func (s *service) Subscribe(ctx context.Context, req *SubscribeRequest) (*Subscription, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrInvalidUserID
	}

	if _, err := s.repo.GetActiveSubscription(ctx, userID); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	plan, err := s.repo.GetPlanByKey(ctx, req.PlanKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, plan.Interval),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	sub.Plan = plan

	if s.account != nil {
		if err := s.account.UpdateUserStatus(ctx, req.UserID, users.AccountStatusSubscribed); err != nil {
			s.log.Warn("failed to mark account subscribed",
				slog.String("user_id", req.UserID),
				slog.Any("error", err),
			)
		}
	}

	s.ingestFunnel(ctx, funnel.EventSubscriptionCreated, req.UserID, req.SessionID, map[string]interface{}{
		"plan": plan.PlanKey,
	})
	s.log.LogSubscriptionCreated(ctx, sub.ID.String(), req.UserID, plan.PlanKey)

	return sub, nil
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.repo.GetActiveSubscription(ctx, userID)
}

// CancelSubscription ends the user's active subscription and drops the account
// back to EXPIRED. Returns ErrSubscriptionNotFound when there is nothing to
// cancel.
func (s *service) CancelSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.repo.GetActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CancelSubscription(ctx, sub.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub.Status = SubscriptionCanceled
	sub.CanceledAt = &now

	if s.account != nil {
		if err := s.account.UpdateUserStatus(ctx, userID.String(), users.AccountStatusExpired); err != nil {
			s.log.Warn("failed to mark account expired",
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		}
	}

	s.log.LogSubscriptionCanceled(ctx, sub.ID.String(), userID.String())
	return sub, nil
}

// TrackUpgradeClick records an upgrade_clicked funnel event from the pricing
// surfaces.
func (s *service) TrackUpgradeClick(ctx context.Context, req *UpgradeClickRequest) error {
	if req.UserID != "" {
		if _, err := uuid.Parse(req.UserID); err != nil {
			return ErrInvalidUserID
		}
	}
	s.ingestFunnel(ctx, funnel.EventUpgradeClicked, req.UserID, req.SessionID, map[string]interface{}{
		"source": req.Source,
		"plan":   req.PlanKey,
	})
	return nil
}

func (s *service) ingestFunnel(ctx context.Context, kind funnel.EventKind, userID, sessionID string, props map[string]interface{}) {
	if s.funnel == nil {
		return
	}
	_, err := s.funnel.IngestEvent(ctx, &funnel.IngestEventRequest{
		UserID:     userID,
		SessionID:  sessionID,
		Event:      kind,
		Properties: props,
	})
	if err != nil {
		s.log.Warn("failed to record billing funnel event",
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
	}
}

func periodEnd(start time.Time, interval string) time.Time {
	if interval == "year" {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
