package funnel

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository keeps the metrics singleton and the audit log in memory.
type fakeRepository struct {
	metrics *Metrics
	events  []Event

	appendErr error
	putErr    error
}

func (f *fakeRepository) GetMetrics() (*Metrics, error) {
	if f.metrics == nil {
		return nil, ErrNoMetrics
	}
	// Round-trip through JSON so the fake behaves like the real store.
	data, err := json.Marshal(f.metrics)
	if err != nil {
		return nil, err
	}
	var m Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (f *fakeRepository) PutMetrics(m *Metrics) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.metrics = m
	return nil
}

func (f *fakeRepository) AppendEvent(event *Event) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRepository) CountEventsByKind(since time.Time) (map[EventKind]int64, error) {
	counts := make(map[EventKind]int64)
	for _, e := range f.events {
		if !e.OccurredAt.Before(since) {
			counts[e.Kind]++
		}
	}
	return counts, nil
}

func newTestService(repo Repository) Service {
	return NewService(repo, ServiceConfig{DemoBreakdown: false})
}

func TestIngestEventRejectsUnknownKind(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
		Event: EventKind("made_up_event"),
	})
	assert.ErrorIs(t, err, ErrInvalidEventKind)
}

func TestIngestEventGeneratesIdentifiers(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	result, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
		Event: EventLandingPageView,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.EventID)
	assert.Contains(t, result.SessionID, "sess_")
	require.Len(t, repo.events, 1)
	assert.Equal(t, EventLandingPageView, repo.events[0].Kind)
}

func TestSignupCompletedMovesBothCounters(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	for _, kind := range []EventKind{EventSignupStarted, EventSignupStarted, EventSignupCompleted} {
		_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{Event: kind})
		require.NoError(t, err)
	}

	c := repo.metrics.Counters
	assert.Equal(t, int64(2), c.SignupStarted)
	assert.Equal(t, int64(1), c.SignupCompleted)
	assert.Equal(t, int64(1), c.TrialActivated)

	// signup_completion = signupCompleted/signupStarted*100
	assert.InDelta(t, 50.0, float64(repo.metrics.ConversionRates[RateSignupCompletion]), 1e-9)
}

func TestTrialActivatedKindLeavesCountersUntouched(t *testing.T) {
	repo := &fakeRepository{metrics: DefaultMetrics()}
	svc := newTestService(repo)

	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{Event: EventTrialActivated})
	require.NoError(t, err)

	// Audit row lands, aggregate stays untouched
	require.Len(t, repo.events, 1)
	assert.Equal(t, Counters{}, repo.metrics.Counters)
}

func TestRatesRecomputedAfterEveryIngestion(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	sequence := []EventKind{
		EventLandingPageView, EventLandingPageView, EventLandingPageView, EventLandingPageView,
		EventCTAClick,
	}
	for _, kind := range sequence {
		_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{Event: kind})
		require.NoError(t, err)

		c := repo.metrics.Counters
		want := float64(c.CTAClicks) / float64(c.LandingPageViews) * 100
		got := float64(repo.metrics.ConversionRates[RateLandingToCTA])
		if math.IsNaN(want) {
			assert.True(t, math.IsNaN(got))
		} else {
			assert.InDelta(t, want, got, 1e-9)
		}
	}

	assert.InDelta(t, 25.0, float64(repo.metrics.ConversionRates[RateLandingToCTA]), 1e-9)
}

func TestZeroOverZeroRateIsUndefinedNotZero(t *testing.T) {
	m := DefaultMetrics()

	rate := m.ConversionRates[RateSignupCompletion]
	assert.False(t, rate.IsDefined())
	assert.True(t, math.IsNaN(float64(rate)))

	// The undefined rate renders as JSON null, never 0.
	data, err := json.Marshal(m)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	rates := decoded["conversion_rates"].(map[string]interface{})
	assert.Nil(t, rates[RateSignupCompletion])
}

func TestUndefinedRateSurvivesStoreRoundTrip(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(repo)

	// Only landing views: most denominators stay zero.
	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{Event: EventLandingPageView})
	require.NoError(t, err)

	loaded, err := repo.GetMetrics()
	require.NoError(t, err)
	assert.False(t, loaded.ConversionRates[RateCTAToSignup].IsDefined())
	// landing_to_cta is 0/1, a defined 0 percent.
	assert.True(t, loaded.ConversionRates[RateLandingToCTA].IsDefined())
	assert.InDelta(t, 0.0, float64(loaded.ConversionRates[RateLandingToCTA]), 1e-9)
}

func TestIngestEventRejectsMalformedProperties(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
		Event: EventCTAClick,
		Properties: map[string]interface{}{
			"elements": []interface{}{"a", "b"},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidProperties)
}

func TestIngestEventRejectsBadUserID(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{
		Event:  EventCTAClick,
		UserID: "not-a-uuid",
	})
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestTrendThresholds(t *testing.T) {
	tests := []struct {
		name      string
		kind      EventKind
		count     int64
		dimension string
		want      string
	}{
		{"visitors above threshold", EventLandingPageView, 150, "visitors", "+12.3%"},
		{"visitors below threshold", EventLandingPageView, 50, "visitors", "+5.1%"},
		{"signups above threshold", EventSignupCompleted, 51, "signups", "+8.7%"},
		{"signups below threshold", EventSignupCompleted, 50, "signups", "+2.4%"},
		{"upgrades above threshold", EventUpgradeClicked, 11, "upgrades", "+15.2%"},
		{"upgrades below threshold", EventUpgradeClicked, 10, "upgrades", "+3.8%"},
		{"subscriptions above threshold", EventSubscriptionCreated, 6, "subscriptions", "+23.4%"},
		{"subscriptions below threshold", EventSubscriptionCreated, 5, "subscriptions", "+8.1%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts := map[EventKind]int64{tt.kind: tt.count}
			trends := computeTrends(counts, "7d")
			assert.Equal(t, tt.want, trends[tt.dimension].Change)
			assert.Equal(t, "7d", trends[tt.dimension].Timeframe)
		})
	}
}

func TestGetReportUsesBootstrapDefaultsBeforeFirstWrite(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	report, err := svc.GetReport(context.Background(), ReportQuery{Timeframe: "7d"})
	require.NoError(t, err)
	assert.Equal(t, "7d", report.Timeframe)
	assert.Equal(t, "live", report.DataSource)
	assert.Equal(t, Counters{}, report.Metrics.Counters)
	assert.Nil(t, report.Breakdown)
}

func TestGetReportDefaultsTimeframe(t *testing.T) {
	svc := newTestService(&fakeRepository{})

	report, err := svc.GetReport(context.Background(), ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, "30d", report.Timeframe)
}

func TestBreakdownOnlyWhenDemoEnabled(t *testing.T) {
	repo := &fakeRepository{}

	svc := NewService(repo, ServiceConfig{DemoBreakdown: false})
	report, err := svc.GetReport(context.Background(), ReportQuery{Timeframe: "1d", Breakdown: true})
	require.NoError(t, err)
	assert.Nil(t, report.Breakdown)
	assert.Empty(t, report.BreakdownSource)

	svc = NewService(repo, ServiceConfig{DemoBreakdown: true})
	report, err = svc.GetReport(context.Background(), ReportQuery{Timeframe: "1d", Breakdown: true})
	require.NoError(t, err)
	assert.Len(t, report.Breakdown, 30)
	assert.Equal(t, "synthetic", report.BreakdownSource)
}

func TestIngestEventSurfacesStoreFailure(t *testing.T) {
	repo := &fakeRepository{appendErr: assert.AnError}
	svc := newTestService(repo)

	_, err := svc.IngestEvent(context.Background(), &IngestEventRequest{Event: EventCTAClick})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidEventKind)

	repo = &fakeRepository{putErr: assert.AnError}
	svc = newTestService(repo)

	_, err = svc.IngestEvent(context.Background(), &IngestEventRequest{Event: EventCTAClick})
	require.Error(t, err)
	// The audit append happened before the aggregate write failed
	assert.Len(t, repo.events, 1)
}

func TestDefaultMetricsIsAFreshValue(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()

	a.Counters.LandingPageViews = 99
	a.ConversionRates[RateOverallConversion] = Rate(1)

	assert.Equal(t, int64(0), b.Counters.LandingPageViews)
	assert.True(t, math.IsNaN(float64(b.ConversionRates[RateOverallConversion])))
	assert.Equal(t, 2400.0, b.ROI.AvgTrialValue)
}
