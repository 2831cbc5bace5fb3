package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"trinity/internal/shared/constants"
	"trinity/internal/stream"
	"trinity/pkg/cache"
	"trinity/pkg/logger"
)

var (
	ErrInvalidStepType   = errors.New("unknown onboarding step type")
	ErrInvalidEventType  = errors.New("unknown onboarding event type")
	ErrInvalidUserID     = errors.New("userId must be a valid UUID")
	ErrInvalidStepID     = errors.New("stepId must be a valid UUID")
	ErrInvalidTemplateID = errors.New("templateId must be a valid UUID")
	ErrSkipNotAllowed    = errors.New("step does not allow skipping")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrInvalidEventData  = errors.New("event data must be strings, numbers, booleans or nested maps")
	ErrNoItemsForAction  = errors.New("mark_completed requires at least one item id")
	ErrUnknownItem       = errors.New("item id does not match any active step")
)

// UserTargeting exposes the template targeting attributes of a user. Wired in
// by the auth domain; nil means no targeting data is available.
type UserTargeting interface {
	GetTargeting(ctx context.Context, userID uuid.UUID) (industry, companySize, jobRole *string, err error)
}

// Service defines the onboarding service interface
type Service interface {
	// Catalog
	CreateStep(ctx context.Context, req *CreateStepRequest) (*Step, error)
	UpdateStep(ctx context.Context, stepID uuid.UUID, req *UpdateStepRequest) (*Step, error)
	ListSteps(ctx context.Context, includeInactive bool) ([]Step, error)

	// Progress tracker
	StartStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error)
	CompleteStep(ctx context.Context, userID uuid.UUID, stepKey string, completionData map[string]interface{}) (*Progress, error)
	SkipStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error)
	FailStep(ctx context.Context, userID uuid.UUID, stepKey string, errorInfo string) (*Progress, error)
	AbandonStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error)
	MarkHelpUsed(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error)
	GetProgress(ctx context.Context, userID uuid.UUID) ([]Progress, error)
	CompletionPercentage(ctx context.Context, userID uuid.UUID, requiredOnly bool) (float64, error)
	ResetProgress(ctx context.Context, userID uuid.UUID) (int64, error)

	// Checklist
	GetChecklist(ctx context.Context, userID uuid.UUID, templateID *uuid.UUID) (*Checklist, error)
	ApplyChecklistAction(ctx context.Context, req *ChecklistActionRequest) (*ChecklistActionResult, error)

	// Analytics
	TrackEvent(ctx context.Context, req *TrackEventRequest) (*Event, error)
	QueryEvents(ctx context.Context, query *EventsQuery) (*EventsResult, error)

	// Dependency injection
	SetCacheService(cacheService cache.Service)
	SetPublisher(publisher stream.Publisher, topic string)
	SetUserTargeting(targeting UserTargeting)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	publisher    stream.Publisher
	streamTopic  string
	targeting    UserTargeting
	log          *logger.Logger
}

// NewService creates a new onboarding service instance
func NewService(repo Repository) Service {
	return &service{
		repo: repo,
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

// SetUserTargeting injects the user targeting lookup
func (s *service) SetUserTargeting(targeting UserTargeting) {
	s.targeting = targeting
}

func (s *service) CreateStep(ctx context.Context, req *CreateStepRequest) (*Step, error) {
	stepType := StepType(req.Type)
	if !stepType.IsValid() {
		return nil, ErrInvalidStepType
	}
	config, err := marshalBag(req.Config)
	if err != nil {
		return nil, err
	}

	step := &Step{
		ID:               uuid.New(),
		StepKey:          req.StepKey,
		Title:            req.Title,
		Description:      req.Description,
		Type:             stepType,
		Category:         req.Category,
		SortOrder:        req.SortOrder,
		Required:         req.Required,
		SkipAllowed:      true,
		EstimatedMinutes: req.EstimatedMinutes,
		Active:           true,
		Config:           config,
	}
	if req.SkipAllowed != nil {
		step.SkipAllowed = *req.SkipAllowed
	}
	if req.Active != nil {
		step.Active = *req.Active
	}
	if step.EstimatedMinutes == 0 {
		step.EstimatedMinutes = 5
	}

	if err := s.repo.CreateStep(ctx, step); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return step, nil
}

func (s *service) UpdateStep(ctx context.Context, stepID uuid.UUID, req *UpdateStepRequest) (*Step, error) {
	step, err := s.repo.GetStepByID(ctx, stepID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		step.Title = *req.Title
	}
	if req.Description != nil {
		step.Description = *req.Description
	}
	if req.Category != nil {
		step.Category = *req.Category
	}
	if req.SortOrder != nil {
		step.SortOrder = *req.SortOrder
	}
	if req.Required != nil {
		step.Required = *req.Required
	}
	if req.SkipAllowed != nil {
		step.SkipAllowed = *req.SkipAllowed
	}
	if req.EstimatedMinutes != nil {
		step.EstimatedMinutes = *req.EstimatedMinutes
	}
	if req.Active != nil {
		step.Active = *req.Active
	}
	if req.Config != nil {
		config, err := marshalBag(req.Config)
		if err != nil {
			return nil, err
		}
		step.Config = config
	}

	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return step, nil
}

func (s *service) ListSteps(ctx context.Context, includeInactive bool) ([]Step, error) {
	if includeInactive {
		return s.repo.GetAllSteps(ctx)
	}

	if s.cacheService != nil {
		var cached []Step
		if err := s.cacheService.Get(ctx, constants.CacheKeyOnboardingSteps, &cached); err == nil {
			return cached, nil
		}
	}

	steps, err := s.repo.GetActiveSteps(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, constants.CacheKeyOnboardingSteps, steps, constants.TTLOnboardingSteps); err != nil {
			s.log.Warn("failed to cache onboarding steps", slog.Any("error", err))
		}
	}
	return steps, nil
}

// StartStep moves the (user, step) record to IN_PROGRESS. Each start bumps
// the attempt counter; restarting after FAILED is allowed, restarting a
// terminal step is not.
func (s *service) StartStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if !EffectiveStatus(progress).CanStart() {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	if progress == nil {
		progress = newProgress(userID, step.ID)
	}
	progress.Status = StatusInProgress
	progress.Attempts++
	progress.LastError = nil
	if progress.StartedAt == nil {
		progress.StartedAt = &now
	}

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// CompleteStep is idempotent: it creates the record if absent and completing
// an already-completed step re-stamps completedAt and overwrites the
// completion data without error.
func (s *service) CompleteStep(ctx context.Context, userID uuid.UUID, stepKey string, completionData map[string]interface{}) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = newProgress(userID, step.ID)
	}

	data, err := marshalBag(completionData)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	progress.Status = StatusCompleted
	progress.CompletedAt = &now
	progress.CompletionData = data
	progress.LastError = nil
	if progress.StartedAt == nil {
		progress.StartedAt = &now
	}

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}

	s.log.LogStepCompleted(ctx, userID.String(), stepKey)
	s.publishProgressEvent(ctx, userID, step, EventStepCompleted)
	s.recordTemplateOutcome(ctx, userID, step)
	return progress, nil
}

// SkipStep rejects the transition when the step disallows skipping or the
// record is already terminal.
func (s *service) SkipStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	if !step.SkipAllowed {
		return nil, ErrSkipNotAllowed
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if !EffectiveStatus(progress).CanSkip() {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	if progress == nil {
		progress = newProgress(userID, step.ID)
	}
	progress.Status = StatusSkipped
	progress.SkippedAt = &now

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	s.publishProgressEvent(ctx, userID, step, EventStepSkipped)
	return progress, nil
}

func (s *service) FailStep(ctx context.Context, userID uuid.UUID, stepKey string, errorInfo string) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if EffectiveStatus(progress).IsTerminal() {
		return nil, ErrInvalidTransition
	}

	if progress == nil {
		progress = newProgress(userID, step.ID)
	}
	progress.Status = StatusFailed
	if errorInfo != "" {
		progress.LastError = &errorInfo
	}

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	s.publishProgressEvent(ctx, userID, step, EventStepFailed)
	return progress, nil
}

func (s *service) AbandonStep(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if EffectiveStatus(progress).IsTerminal() {
		return nil, ErrInvalidTransition
	}

	if progress == nil {
		progress = newProgress(userID, step.ID)
	}
	progress.Status = StatusAbandoned

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// MarkHelpUsed flags the (user, step) record as having needed help and emits a
// help_requested analytics event. It never changes the status; help can be
// requested from any state.
func (s *service) MarkHelpUsed(ctx context.Context, userID uuid.UUID, stepKey string) (*Progress, error) {
	step, err := s.repo.GetStepByKey(ctx, stepKey)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.GetProgress(ctx, userID, step.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = newProgress(userID, step.ID)
	}
	progress.HelpUsed = true

	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	s.publishProgressEvent(ctx, userID, step, EventHelpRequested)
	return progress, nil
}

func (s *service) GetProgress(ctx context.Context, userID uuid.UUID) ([]Progress, error) {
	return s.repo.GetUserProgress(ctx, userID, true)
}

// CompletionPercentage is completed / active-step-count * 100. The baseline
// denominator is every active catalog step; requiredOnly narrows both sides
// to required steps. Zero active steps yields 0, not a division error.
func (s *service) CompletionPercentage(ctx context.Context, userID uuid.UUID, requiredOnly bool) (float64, error) {
	steps, err := s.repo.GetActiveSteps(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, step := range steps {
		if requiredOnly && !step.Required {
			continue
		}
		total++
	}
	if total == 0 {
		return 0, nil
	}

	completed, err := s.repo.CountCompleted(ctx, userID, requiredOnly)
	if err != nil {
		return 0, err
	}
	return float64(completed) / float64(total) * 100, nil
}

// ResetProgress deletes every progress record for the user. Destructive;
// confirmation is the caller's responsibility.
func (s *service) ResetProgress(ctx context.Context, userID uuid.UUID) (int64, error) {
	deleted, err := s.repo.DeleteUserProgress(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidateChecklist(ctx, userID)
	s.log.LogProgressReset(ctx, userID.String(), deleted)
	return deleted, nil
}

// GetChecklist resolves the user's template-ordered step sequence and joins
// it with their progress records.
func (s *service) GetChecklist(ctx context.Context, userID uuid.UUID, templateID *uuid.UUID) (*Checklist, error) {
	// Explicit template requests bypass the cache, which only keys on user.
	if templateID == nil && s.cacheService != nil {
		var cached Checklist
		if err := s.cacheService.Get(ctx, constants.BuildChecklistKey(userID.String()), &cached); err == nil {
			return &cached, nil
		}
	}

	steps, template, err := s.resolveSteps(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.GetUserProgress(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	// A user with no progress yet counts as a fresh assignment of the
	// template. The checklist cache keeps repeat views from inflating it.
	if template != nil && len(records) == 0 {
		template.Stats.UsersAssigned++
		template.Stats.Recompute()
		if err := s.repo.UpdateTemplateStats(ctx, template); err != nil {
			s.log.Warn("failed to record template assignment", slog.Any("error", err))
		}
	}

	byStep := make(map[uuid.UUID]*Progress, len(records))
	for i := range records {
		byStep[records[i].StepID] = &records[i]
	}

	items := make([]ChecklistItem, 0, len(steps))
	completed := 0
	for _, step := range steps {
		progress := byStep[step.ID]
		status := EffectiveStatus(progress)
		if status == StatusCompleted {
			completed++
		}
		item := ChecklistItem{
			StepID:           step.ID,
			StepKey:          step.StepKey,
			Title:            step.Title,
			Description:      step.Description,
			Category:         step.Category,
			Type:             step.Type,
			Status:           status,
			Required:         step.Required,
			Optional:         !step.Required,
			SkipAllowed:      step.SkipAllowed,
			EstimatedMinutes: step.EstimatedMinutes,
			RewardHint:       rewardHint(step.Type),
		}
		if progress != nil {
			item.CompletedAt = progress.CompletedAt
		}
		items = append(items, item)
	}

	percentage := 0.0
	if len(items) > 0 {
		percentage = float64(completed) / float64(len(items)) * 100
	}

	checklist := &Checklist{
		UserID:               userID,
		Items:                items,
		CompletionPercentage: percentage,
		CompletedCount:       completed,
		TotalCount:           len(items),
		GeneratedAt:          time.Now().UTC(),
	}
	if template != nil {
		checklist.TemplateID = &template.ID
		checklist.TemplateName = template.Name
	}

	if templateID == nil && s.cacheService != nil {
		if err := s.cacheService.Set(ctx, constants.BuildChecklistKey(userID.String()), checklist, constants.TTLChecklist); err != nil {
			s.log.Warn("failed to cache checklist", slog.Any("error", err))
		}
	}
	return checklist, nil
}

func (s *service) ApplyChecklistAction(ctx context.Context, req *ChecklistActionRequest) (*ChecklistActionResult, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrInvalidUserID
	}

	var affected int64
	switch req.Action {
	case ActionMarkCompleted:
		if len(req.ItemIDs) == 0 {
			return nil, ErrNoItemsForAction
		}
		for _, itemID := range req.ItemIDs {
			stepKey, err := s.resolveItemKey(ctx, itemID)
			if err != nil {
				return nil, err
			}
			if _, err := s.CompleteStep(ctx, userID, stepKey, req.Data); err != nil {
				return nil, err
			}
			affected++
		}
	case ActionResetProgress:
		affected, err = s.ResetProgress(ctx, userID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported checklist action: %s", req.Action)
	}

	percentage, err := s.CompletionPercentage(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	return &ChecklistActionResult{
		Action:               req.Action,
		AffectedSteps:        int(affected),
		CompletionPercentage: percentage,
	}, nil
}

// resolveItemKey accepts either a step UUID or a step key.
func (s *service) resolveItemKey(ctx context.Context, itemID string) (string, error) {
	if id, err := uuid.Parse(itemID); err == nil {
		step, err := s.repo.GetStepByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrStepNotFound) {
				return "", ErrUnknownItem
			}
			return "", err
		}
		return step.StepKey, nil
	}
	step, err := s.repo.GetStepByKey(ctx, itemID)
	if err != nil {
		if errors.Is(err, ErrStepNotFound) {
			return "", ErrUnknownItem
		}
		return "", err
	}
	return step.StepKey, nil
}

func (s *service) TrackEvent(ctx context.Context, req *TrackEventRequest) (*Event, error) {
	eventType := EventType(req.EventType)
	if !eventType.IsValid() {
		return nil, ErrInvalidEventType
	}
	if err := validateBag(req.EventData); err != nil {
		return nil, err
	}
	if err := validateBag(req.Metadata); err != nil {
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
	var stepID *uuid.UUID
	if req.StepID != "" {
		parsed, err := uuid.Parse(req.StepID)
		if err != nil {
			return nil, ErrInvalidStepID
		}
		stepID = &parsed
	}

	payload := map[string]interface{}{}
	for k, v := range req.EventData {
		payload[k] = v
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}
	data, err := marshalBag(payload)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()
	}

	event := &Event{
		ID:        uuid.New(),
		UserID:    userID,
		StepID:    stepID,
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
	}
	if err := s.repo.AppendEvent(ctx, event); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, event)
	return event, nil
}

func (s *service) QueryEvents(ctx context.Context, query *EventsQuery) (*EventsResult, error) {
	filter, err := parseEventFilter(query)
	if err != nil {
		return nil, err
	}

	if query.GroupBy != "" {
		grouped, err := s.repo.GroupEvents(ctx, filter, query.GroupBy)
		if err != nil {
			return nil, err
		}
		return &EventsResult{
			Grouped: grouped,
			GroupBy: query.GroupBy,
			Total:   len(grouped),
		}, nil
	}

	events, err := s.repo.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &EventsResult{Events: events, Total: len(events)}, nil
}

func parseEventFilter(query *EventsQuery) (EventFilter, error) {
	filter := EventFilter{Limit: query.Limit}
	if query.UserID != "" {
		if _, err := uuid.Parse(query.UserID); err != nil {
			return filter, ErrInvalidUserID
		}
		filter.UserID = &query.UserID
	}
	if query.StepID != "" {
		if _, err := uuid.Parse(query.StepID); err != nil {
			return filter, ErrInvalidStepID
		}
		filter.StepID = &query.StepID
	}
	if query.EventType != "" {
		eventType := EventType(query.EventType)
		if !eventType.IsValid() {
			return filter, ErrInvalidEventType
		}
		filter.EventType = &eventType
	}
	if query.Since != "" {
		since, err := time.Parse(time.RFC3339, query.Since)
		if err != nil {
			return filter, fmt.Errorf("invalid since timestamp: %w", err)
		}
		filter.Since = &since
	}
	if query.Until != "" {
		until, err := time.Parse(time.RFC3339, query.Until)
		if err != nil {
			return filter, fmt.Errorf("invalid until timestamp: %w", err)
		}
		filter.Until = &until
	}
	return filter, nil
}

// resolveSteps applies the template policy: explicit id first, then targeted
// lookup, else catalog order. Template-listed steps come first in template
// order; every remaining active step follows in catalog order. No active step
// is ever dropped or duplicated.
func (s *service) resolveSteps(ctx context.Context, userID uuid.UUID, templateID *uuid.UUID) ([]Step, *Template, error) {
	steps, err := s.repo.GetActiveSteps(ctx)
	if err != nil {
		return nil, nil, err
	}

	template := s.lookupTemplate(ctx, userID, templateID)
	if template == nil {
		return steps, nil, nil
	}

	keys, err := templateStepKeys(template)
	if err != nil {
		// A malformed step list disables the template rather than the
		// checklist.
		s.log.Warn("ignoring template with malformed step keys",
			slog.String("template_id", template.ID.String()),
			slog.Any("error", err),
		)
		return steps, nil, nil
	}

	byKey := make(map[string]Step, len(steps))
	for _, step := range steps {
		byKey[step.StepKey] = step
	}

	ordered := make([]Step, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, key := range keys {
		step, ok := byKey[key]
		if !ok || seen[key] {
			continue
		}
		ordered = append(ordered, step)
		seen[key] = true
	}
	for _, step := range steps {
		if !seen[step.StepKey] {
			ordered = append(ordered, step)
		}
	}
	return ordered, template, nil
}

func (s *service) lookupTemplate(ctx context.Context, userID uuid.UUID, templateID *uuid.UUID) *Template {
	if templateID != nil {
		template, err := s.repo.GetTemplateByID(ctx, *templateID)
		if err == nil {
			return template
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			s.log.Warn("template lookup failed", slog.Any("error", err))
		}
		return nil
	}

	if s.targeting == nil {
		return nil
	}
	industry, companySize, jobRole, err := s.targeting.GetTargeting(ctx, userID)
	if err != nil {
		return nil
	}
	template, err := s.repo.FindTemplateForUser(ctx, industry, companySize, jobRole)
	if err != nil {
		return nil
	}
	return template
}

// recordTemplateOutcome moves the rolling template statistics when a user
// completes a milestone step: COMPLETION bumps usersCompleted, CONVERSION
// bumps usersConverted. Best effort; stats never fail the completion itself.
func (s *service) recordTemplateOutcome(ctx context.Context, userID uuid.UUID, step *Step) {
	if step.Type != StepTypeCompletion && step.Type != StepTypeConversion {
		return
	}
	template := s.lookupTemplate(ctx, userID, nil)
	if template == nil {
		return
	}
	if step.Type == StepTypeCompletion {
		template.Stats.UsersCompleted++
	} else {
		template.Stats.UsersConverted++
	}
	template.Stats.Recompute()
	if err := s.repo.UpdateTemplateStats(ctx, template); err != nil {
		s.log.Warn("failed to record template outcome",
			slog.String("template_id", template.ID.String()),
			slog.Any("error", err),
		)
	}
}

func templateStepKeys(template *Template) ([]string, error) {
	var keys []string
	if err := json.Unmarshal(template.StepKeys, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode template step keys: %w", err)
	}
	return keys, nil
}

func (s *service) saveProgress(ctx context.Context, p *Progress) error {
	if err := s.repo.UpsertProgress(ctx, p); err != nil {
		return err
	}
	s.invalidateChecklist(ctx, p.UserID)
	return nil
}

func (s *service) invalidateChecklist(ctx context.Context, userID uuid.UUID) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.BuildChecklistKey(userID.String())); err != nil {
		s.log.Warn("failed to invalidate checklist cache", slog.Any("error", err))
	}
}

func (s *service) invalidateCatalog(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.Delete(ctx, constants.CacheKeyOnboardingSteps); err != nil {
		s.log.Warn("failed to invalidate step catalog cache", slog.Any("error", err))
	}
	if err := s.cacheService.DeletePattern(ctx, constants.CacheKeyChecklist+"*"); err != nil {
		s.log.Warn("failed to invalidate checklist caches", slog.Any("error", err))
	}
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
			"event_type": string(event.EventType),
		},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("failed to publish onboarding event to stream",
			slog.String("event_id", event.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *service) publishProgressEvent(ctx context.Context, userID uuid.UUID, step *Step, eventType EventType) {
	if s.publisher == nil || s.streamTopic == "" {
		return
	}
	event := &Event{
		ID:        uuid.New(),
		UserID:    &userID,
		StepID:    &step.ID,
		SessionID: "sys_" + uuid.NewString(),
		EventType: eventType,
	}
	msg := stream.Message{
		Topic: s.streamTopic,
		Key:   userID.String(),
		Value: event,
		Headers: map[string]string{
			"event_type": string(eventType),
		},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("failed to publish progress event to stream", slog.Any("error", err))
	}
}

func rewardHint(stepType StepType) string {
	switch stepType {
	case StepTypeFirstInteraction:
		return "Unlocks your first agent conversation"
	case StepTypeSuccessMilestone:
		return "Marks your trial as activated"
	case StepTypeCompletion:
		return "Unlocks the full dashboard"
	case StepTypeConversion:
		return "Upgrade to keep your agents after the trial"
	}
	return ""
}

func newProgress(userID, stepID uuid.UUID) *Progress {
	return &Progress{
		ID:     uuid.New(),
		UserID: userID,
		StepID: stepID,
		Status: StatusNotStarted,
	}
}

// validateBag enforces the constrained value union for free-form payloads:
// strings, numbers, booleans and nested maps of the same.
func validateBag(bag map[string]interface{}) error {
	for _, v := range bag {
		if !validBagValue(v, 0) {
			return ErrInvalidEventData
		}
	}
	return nil
}

func validBagValue(v interface{}, depth int) bool {
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
			if !validBagValue(nested, depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func marshalBag(bag map[string]interface{}) (datatypes.JSON, error) {
	if err := validateBag(bag); err != nil {
		return nil, err
	}
	if len(bag) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return datatypes.JSON(data), nil
}
