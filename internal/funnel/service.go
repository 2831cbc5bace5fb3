package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"trinity/internal/shared/constants"
	"trinity/internal/stream"
	"trinity/pkg/cache"
	"trinity/pkg/logger"
)

var (
	ErrInvalidEventKind  = errors.New("unknown funnel event kind")
	ErrInvalidProperties = errors.New("event properties must be strings, numbers, booleans or nested maps")
	ErrInvalidUserID     = errors.New("userId must be a valid UUID")
)

// Service defines the funnel analytics service interface
type Service interface {
	IngestEvent(ctx context.Context, req *IngestEventRequest) (*IngestResult, error)
	GetReport(ctx context.Context, query ReportQuery) (*Report, error)

	// Dependency injection
	SetCacheService(cacheService cache.Service)
	SetPublisher(publisher stream.Publisher, topic string)
}

// ServiceConfig tunes report behavior.
type ServiceConfig struct {
	// DemoBreakdown gates the synthetic daily breakdown rows.
	DemoBreakdown bool
	ReportTTL     time.Duration
}

type service struct {
	repo         Repository
	cfg          ServiceConfig
	cacheService cache.Service
	publisher    stream.Publisher
	streamTopic  string
	log          *logger.Logger
}

// NewService creates a new funnel service instance
func NewService(repo Repository, cfg ServiceConfig) Service {
	if cfg.ReportTTL <= 0 {
		cfg.ReportTTL = constants.TTLFunnelReport
	}
	return &service{
		repo: repo,
		cfg:  cfg,
		log:  logger.GetDefault(),
	}
}

// SetCacheService injects the cache service dependency
func (s *service) SetCacheService(cacheService cache.Service) {
	s.cacheService = cacheService
}

// SetPublisher injects the event stream publisher
func (s *service) SetPublisher(publisher stream.Publisher, topic string) {
	s.publisher = publisher
	s.streamTopic = topic
}

// IngestEvent validates and records one analytics event. It assigns ids,
// appends the audit row, then applies the counter rule for the kind and
// recomputes every conversion rate before upserting the metrics singleton.
// The two writes are independent; a partial failure can leave the audit log
// and the aggregate out of step, which is an accepted inconsistency window.
func (s *service) IngestEvent(ctx context.Context, req *IngestEventRequest) (*IngestResult, error) {
	if !req.Event.IsValid() {
		return nil, ErrInvalidEventKind
	}
	if err := validateProperties(req.Properties); err != nil {
		return nil, err
	}

	var userID *uuid.UUID
	if req.UserID != "" {
		parsed, err := uuid.Parse(req.UserID)
		if err != nil {
			return nil, ErrInvalidUserID
		}
		userID = &parsed
	}

	eventID := uuid.New()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()
	}

	occurredAt := time.Now().UTC()
	if req.Timestamp != nil {
		occurredAt = req.Timestamp.UTC()
	}

	properties, err := marshalProperties(req.Properties)
	if err != nil {
		return nil, err
	}

	event := &Event{
		ID:         eventID,
		UserID:     userID,
		SessionID:  sessionID,
		Kind:       req.Event,
		Properties: properties,
		UserAgent:  req.UserAgent,
		Referrer:   req.Referrer,
		OccurredAt: occurredAt,
	}

	if err := s.repo.AppendEvent(event); err != nil {
		return nil, fmt.Errorf("failed to append funnel event: %w", err)
	}

	// Audit-only kinds skip the aggregate write entirely
	if req.Event.MovesCounters() {
		metrics, err := s.currentMetrics()
		if err != nil {
			return nil, err
		}
		metrics.Counters.Apply(req.Event)
		metrics.RecomputeRates()
		metrics.UpdatedAt = occurredAt

		if err := s.repo.PutMetrics(metrics); err != nil {
			return nil, fmt.Errorf("failed to upsert funnel metrics: %w", err)
		}
	}

	s.publishEvent(ctx, event)
	s.invalidateReports(ctx)

	s.log.LogFunnelEventIngested(ctx, eventID.String(), string(req.Event))

	return &IngestResult{
		EventID:   eventID.String(),
		SessionID: sessionID,
	}, nil
}

// GetReport returns the persisted metrics snapshot (or bootstrap defaults),
// the in-window event counts per kind and the fixed-threshold trend labels.
func (s *service) GetReport(ctx context.Context, query ReportQuery) (*Report, error) {
	timeframe, window := query.Window()
	breakdown := query.Breakdown && s.cfg.DemoBreakdown
	cacheKey := constants.BuildFunnelReportKey(timeframe, breakdown)

	if s.cacheService != nil {
		var cached Report
		if err := s.cacheService.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	metrics, err := s.currentMetrics()
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-window)
	counts, err := s.repo.CountEventsByKind(since)
	if err != nil {
		return nil, fmt.Errorf("failed to count funnel events: %w", err)
	}

	report := &Report{
		Timeframe:               timeframe,
		Metrics:                 metrics,
		RealEventCounts:         counts,
		Trends:                  computeTrends(counts, timeframe),
		TopPerformingPages:      topPerformingPages(),
		ConversionOptimizations: conversionOptimizations(),
		DataSource:              "live",
		LastUpdated:             time.Now().UTC(),
	}

	if breakdown {
		report.Breakdown = syntheticBreakdown(30)
		report.BreakdownSource = "synthetic"
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, cacheKey, report, s.cfg.ReportTTL); err != nil {
			s.log.Warn("failed to cache funnel report", slog.Any("error", err))
		}
	}

	return report, nil
}

// currentMetrics loads the persisted singleton, falling back to the bootstrap
// defaults before the first write.
func (s *service) currentMetrics() (*Metrics, error) {
	metrics, err := s.repo.GetMetrics()
	if err != nil {
		if errors.Is(err, ErrNoMetrics) {
			return DefaultMetrics(), nil
		}
		return nil, fmt.Errorf("failed to load funnel metrics: %w", err)
	}
	return metrics, nil
}

func (s *service) publishEvent(ctx context.Context, event *Event) {
	if s.publisher == nil || s.streamTopic == "" {
		return
	}
	msg := stream.Message{
		Topic: s.streamTopic,
		Key:   event.SessionID,
		Value: event,
		Headers: map[string]string{
			"kind": string(event.Kind),
		},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		// Ingestion already succeeded; the stream is best-effort.
		s.log.Warn("failed to publish funnel event to stream",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *service) invalidateReports(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.DeletePattern(ctx, constants.CacheKeyFunnelReport+"*"); err != nil {
		s.log.Warn("failed to invalidate funnel report cache", slog.Any("error", err))
	}
}

// trendRule compares the in-window count of one designated kind against a
// fixed threshold and picks one of two canned percentage labels.
type trendRule struct {
	dimension string
	kind      EventKind
	threshold int64
	higher    string
	lower     string
}

var trendRules = []trendRule{
	{"visitors", EventLandingPageView, 100, "+12.3%", "+5.1%"},
	{"signups", EventSignupCompleted, 50, "+8.7%", "+2.4%"},
	{"upgrades", EventUpgradeClicked, 10, "+15.2%", "+3.8%"},
	{"subscriptions", EventSubscriptionCreated, 5, "+23.4%", "+8.1%"},
}

func computeTrends(counts map[EventKind]int64, timeframe string) map[string]TrendIndicator {
	trends := make(map[string]TrendIndicator, len(trendRules))
	for _, rule := range trendRules {
		change := rule.lower
		if counts[rule.kind] > rule.threshold {
			change = rule.higher
		}
		trends[rule.dimension] = TrendIndicator{
			Change:    change,
			Timeframe: timeframe,
		}
	}
	return trends
}

func topPerformingPages() []PagePerformance {
	return []PagePerformance{
		{Path: "/", Views: 0, ConversionRate: 0},
		{Path: "/pricing", Views: 0, ConversionRate: 0},
		{Path: "/signup", Views: 0, ConversionRate: 0},
	}
}

func conversionOptimizations() []Optimization {
	return []Optimization{
		{
			Area:       "landing_page",
			Suggestion: "Move the primary CTA above the fold",
			Impact:     "high",
		},
		{
			Area:       "signup_form",
			Suggestion: "Reduce required fields to email and password",
			Impact:     "medium",
		},
		{
			Area:       "trial_onboarding",
			Suggestion: "Prompt the first agent interaction within 24 hours",
			Impact:     "high",
		},
	}
}

// syntheticBreakdown emits one placeholder row per day. The counters are
// random-in-range and intentionally unrelated to stored events; callers must
// surface them as demo data only.
func syntheticBreakdown(days int) []DailyBreakdownRow {
	rows := make([]DailyBreakdownRow, 0, days)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		visitors := 200 + rand.Intn(800)
		signups := 5 + rand.Intn(45)
		conversions := rand.Intn(8)
		rows = append(rows, DailyBreakdownRow{
			Date:        day.Format("2006-01-02"),
			Visitors:    visitors,
			Signups:     signups,
			Conversions: conversions,
		})
	}
	return rows
}

// validateProperties enforces the constrained value union for the free-form
// property bag: strings, numbers, booleans and nested maps of the same.
func validateProperties(props map[string]interface{}) error {
	for _, v := range props {
		if !validPropertyValue(v, 0) {
			return ErrInvalidProperties
		}
	}
	return nil
}

func validPropertyValue(v interface{}, depth int) bool {
	if depth > 8 {
		return false
	}
	switch val := v.(type) {
	case nil, string, bool,
		float64, float32,
		int, int32, int64, uint, uint32, uint64,
		json.Number:
		return true
	case map[string]interface{}:
		for _, nested := range val {
			if !validPropertyValue(nested, depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func marshalProperties(props map[string]interface{}) (datatypes.JSON, error) {
	if len(props) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event properties: %w", err)
	}
	return datatypes.JSON(data), nil
}
