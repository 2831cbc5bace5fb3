package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/funnel"
	"trinity/internal/users"
)

type fakeRepository struct {
	plans []Plan
	subs  []Subscription
}

func (f *fakeRepository) GetActivePlans(_ context.Context) ([]Plan, error) {
	return f.plans, nil
}

func (f *fakeRepository) GetPlanByKey(_ context.Context, key string) (*Plan, error) {
	for i := range f.plans {
		if f.plans[i].PlanKey == key {
			plan := f.plans[i]
			return &plan, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (f *fakeRepository) CreatePlan(_ context.Context, plan *Plan) error {
	f.plans = append(f.plans, *plan)
	return nil
}

func (f *fakeRepository) CreateSubscription(_ context.Context, sub *Subscription) error {
	f.subs = append(f.subs, *sub)
	return nil
}

func (f *fakeRepository) GetActiveSubscription(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	for i := range f.subs {
		if f.subs[i].UserID == userID && f.subs[i].Status == SubscriptionActive {
			sub := f.subs[i]
			return &sub, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeRepository) CancelSubscription(_ context.Context, subID uuid.UUID) error {
	for i := range f.subs {
		if f.subs[i].ID == subID {
			f.subs[i].Status = SubscriptionCanceled
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

type fakeIngester struct {
	kinds []funnel.EventKind
}

func (f *fakeIngester) IngestEvent(_ context.Context, req *funnel.IngestEventRequest) (*funnel.IngestResult, error) {
	f.kinds = append(f.kinds, req.Event)
	return &funnel.IngestResult{EventID: uuid.NewString()}, nil
}

type fakeAccountUpdater struct {
	statuses map[string]users.AccountStatus
}

func (f *fakeAccountUpdater) UpdateUserStatus(_ context.Context, userID string, status users.AccountStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]users.AccountStatus)
	}
	f.statuses[userID] = status
	return nil
}

func proPlan() Plan {
	return Plan{
		ID:         uuid.New(),
		PlanKey:    "professional",
		Name:       "Professional",
		PriceCents: 24900,
		Interval:   "month",
		Active:     true,
	}
}

func TestSubscribeCreatesSubscriptionAndFeedsFunnel(t *testing.T) {
	repo := &fakeRepository{plans: []Plan{proPlan()}}
	ingester := &fakeIngester{}
	updater := &fakeAccountUpdater{}
	svc := NewService(repo)
	svc.SetFunnelIngester(ingester)
	svc.SetAccountUpdater(updater)

	userID := uuid.New()
	sub, err := svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  userID.String(),
		PlanKey: "professional",
	})
	require.NoError(t, err)

	assert.Equal(t, SubscriptionActive, sub.Status)
	assert.Equal(t, userID, sub.UserID)
	assert.True(t, sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart))
	assert.InDelta(t, 31*24, sub.CurrentPeriodEnd.Sub(sub.CurrentPeriodStart).Hours(), 24*3)

	assert.Equal(t, []funnel.EventKind{funnel.EventSubscriptionCreated}, ingester.kinds)
	assert.Equal(t, users.AccountStatusSubscribed, updater.statuses[userID.String()])
}

func TestSubscribeRejectsSecondActiveSubscription(t *testing.T) {
	repo := &fakeRepository{plans: []Plan{proPlan()}}
	svc := NewService(repo)

	userID := uuid.New()
	_, err := svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  userID.String(),
		PlanKey: "professional",
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  userID.String(),
		PlanKey: "professional",
	})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

func TestSubscribeValidation(t *testing.T) {
	repo := &fakeRepository{plans: []Plan{proPlan()}}
	svc := NewService(repo)

	_, err := svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  "not-a-uuid",
		PlanKey: "professional",
	})
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  uuid.NewString(),
		PlanKey: "no_such_plan",
	})
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCancelSubscriptionExpiresAccount(t *testing.T) {
	repo := &fakeRepository{plans: []Plan{proPlan()}}
	updater := &fakeAccountUpdater{}
	svc := NewService(repo)
	svc.SetAccountUpdater(updater)

	userID := uuid.New()
	_, err := svc.Subscribe(context.Background(), &SubscribeRequest{
		UserID:  userID.String(),
		PlanKey: "professional",
	})
	require.NoError(t, err)

	canceled, err := svc.CancelSubscription(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, users.AccountStatusExpired, updater.statuses[userID.String()])

	// The store no longer holds an active subscription for the user.
	_, err = svc.GetSubscription(context.Background(), userID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	// Canceling again has nothing to act on.
	_, err = svc.CancelSubscription(context.Background(), userID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestTrackUpgradeClickFeedsFunnel(t *testing.T) {
	ingester := &fakeIngester{}
	svc := NewService(&fakeRepository{})
	svc.SetFunnelIngester(ingester)

	// Anonymous clicks from the pricing page are fine.
	err := svc.TrackUpgradeClick(context.Background(), &UpgradeClickRequest{Source: "pricing_page"})
	require.NoError(t, err)

	err = svc.TrackUpgradeClick(context.Background(), &UpgradeClickRequest{
		UserID: uuid.NewString(),
		Source: "dashboard_banner",
	})
	require.NoError(t, err)

	err = svc.TrackUpgradeClick(context.Background(), &UpgradeClickRequest{UserID: "junk"})
	assert.ErrorIs(t, err, ErrInvalidUserID)

	assert.Equal(t, []funnel.EventKind{funnel.EventUpgradeClicked, funnel.EventUpgradeClicked}, ingester.kinds)
}

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), periodEnd(start, "month"))
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), periodEnd(start, "year"))
}
