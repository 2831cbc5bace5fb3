package onboarding

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// fakeRepository backs the service with in-memory maps.
type fakeRepository struct {
	steps     []Step
	progress  map[string]Progress // key: userID|stepID
	templates []Template
	events    []Event
}

func newFakeRepository(steps ...Step) *fakeRepository {
	return &fakeRepository{
		steps:    steps,
		progress: make(map[string]Progress),
	}
}

func progressKey(userID, stepID uuid.UUID) string {
	return userID.String() + "|" + stepID.String()
}

func (f *fakeRepository) CreateStep(_ context.Context, step *Step) error {
	for _, s := range f.steps {
		if s.StepKey == step.StepKey {
			return ErrStepKeyTaken
		}
	}
	f.steps = append(f.steps, *step)
	return nil
}

func (f *fakeRepository) UpdateStep(_ context.Context, step *Step) error {
	for i := range f.steps {
		if f.steps[i].ID == step.ID {
			f.steps[i] = *step
			return nil
		}
	}
	return ErrStepNotFound
}

func (f *fakeRepository) GetStepByID(_ context.Context, id uuid.UUID) (*Step, error) {
	for i := range f.steps {
		if f.steps[i].ID == id {
			step := f.steps[i]
			return &step, nil
		}
	}
	return nil, ErrStepNotFound
}

func (f *fakeRepository) GetStepByKey(_ context.Context, key string) (*Step, error) {
	for i := range f.steps {
		if f.steps[i].StepKey == key {
			step := f.steps[i]
			return &step, nil
		}
	}
	return nil, ErrStepNotFound
}

func (f *fakeRepository) GetActiveSteps(_ context.Context) ([]Step, error) {
	var out []Step
	for _, s := range f.steps {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeRepository) GetAllSteps(_ context.Context) ([]Step, error) {
	return append([]Step(nil), f.steps...), nil
}

func (f *fakeRepository) GetProgress(_ context.Context, userID, stepID uuid.UUID) (*Progress, error) {
	if p, ok := f.progress[progressKey(userID, stepID)]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeRepository) GetUserProgress(_ context.Context, userID uuid.UUID, _ bool) ([]Progress, error) {
	var out []Progress
	for _, p := range f.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpsertProgress(_ context.Context, p *Progress) error {
	f.progress[progressKey(p.UserID, p.StepID)] = *p
	return nil
}

func (f *fakeRepository) DeleteUserProgress(_ context.Context, userID uuid.UUID) (int64, error) {
	var deleted int64
	for key, p := range f.progress {
		if p.UserID == userID {
			delete(f.progress, key)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepository) CountCompleted(_ context.Context, userID uuid.UUID, requiredOnly bool) (int64, error) {
	active := make(map[uuid.UUID]Step)
	for _, s := range f.steps {
		if s.Active {
			active[s.ID] = s
		}
	}
	var count int64
	for _, p := range f.progress {
		if p.UserID != userID || p.Status != StatusCompleted {
			continue
		}
		step, ok := active[p.StepID]
		if !ok {
			continue
		}
		if requiredOnly && !step.Required {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeRepository) GetTemplateByID(_ context.Context, id uuid.UUID) (*Template, error) {
	for i := range f.templates {
		if f.templates[i].ID == id {
			tpl := f.templates[i]
			return &tpl, nil
		}
	}
	return nil, ErrTemplateNotFound
}

func (f *fakeRepository) FindTemplateForUser(_ context.Context, _, _, _ *string) (*Template, error) {
	if len(f.templates) == 0 {
		return nil, ErrTemplateNotFound
	}
	tpl := f.templates[0]
	return &tpl, nil
}

func (f *fakeRepository) UpdateTemplateStats(_ context.Context, tpl *Template) error {
	for i := range f.templates {
		if f.templates[i].ID == tpl.ID {
			f.templates[i].Stats = tpl.Stats
			return nil
		}
	}
	return ErrTemplateNotFound
}

func (f *fakeRepository) AppendEvent(_ context.Context, event *Event) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRepository) QueryEvents(_ context.Context, filter EventFilter) ([]Event, error) {
	var out []Event
	for _, e := range f.events {
		if filter.EventType != nil && e.EventType != *filter.EventType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepository) GroupEvents(_ context.Context, _ EventFilter, groupBy string) ([]GroupedCount, error) {
	counts := make(map[string]int64)
	for _, e := range f.events {
		switch groupBy {
		case "eventType":
			counts[string(e.EventType)]++
		case "stepId":
			if e.StepID != nil {
				counts[e.StepID.String()]++
			} else {
				counts[""]++
			}
		}
	}
	var out []GroupedCount
	for k, v := range counts {
		out = append(out, GroupedCount{Key: k, Count: v})
	}
	return out, nil
}

// fakeTargeting resolves every user to the first stored template.
type fakeTargeting struct{}

func (fakeTargeting) GetTargeting(_ context.Context, _ uuid.UUID) (*string, *string, *string, error) {
	return nil, nil, nil, nil
}

func newStep(key string, order int, required, skipAllowed, active bool) Step {
	return Step{
		ID:          uuid.New(),
		StepKey:     key,
		Title:       key,
		Type:        StepTypeWelcome,
		SortOrder:   order,
		Required:    required,
		SkipAllowed: skipAllowed,
		Active:      active,
	}
}

func catalogFixture() []Step {
	return []Step{
		newStep("welcome", 10, true, false, true),
		newStep("profile", 20, true, false, true),
		newStep("connect_data", 30, false, true, true),
		newStep("explore", 40, false, true, true),
		newStep("retired", 50, false, true, false),
	}
}

func TestCompleteStepIsIdempotent(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	first, err := svc.CompleteStep(context.Background(), userID, "welcome", map[string]interface{}{"version": "a"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)

	second, err := svc.CompleteStep(context.Background(), userID, "welcome", map[string]interface{}{"version": "b"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, second.Status)

	var data map[string]string
	require.NoError(t, json.Unmarshal(second.CompletionData, &data))
	assert.Equal(t, "b", data["version"])

	// Still exactly one progress record for the pair.
	records, err := svc.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCompletionPercentageBounds(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	// 0 completed of 4 active steps
	pct, err := svc.CompletionPercentage(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	for _, key := range []string{"welcome", "profile", "connect_data", "explore"} {
		_, err := svc.CompleteStep(context.Background(), userID, key, nil)
		require.NoError(t, err)
	}

	pct, err = svc.CompletionPercentage(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestCompletionPercentageIgnoresInactiveAndWeighsRequired(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	// Completing both required steps: 2/4 overall, 2/2 required-only.
	for _, key := range []string{"welcome", "profile"} {
		_, err := svc.CompleteStep(context.Background(), userID, key, nil)
		require.NoError(t, err)
	}

	pct, err := svc.CompletionPercentage(context.Background(), userID, false)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, pct, 1e-9)

	pct, err = svc.CompletionPercentage(context.Background(), userID, true)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, pct, 1e-9)
}

func TestSkipDisallowedIsRejected(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.SkipStep(context.Background(), userID, "welcome")
	assert.ErrorIs(t, err, ErrSkipNotAllowed)

	// Nothing was recorded for the rejected transition.
	records, err := svc.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSkipAllowedFromNotStartedAndInProgress(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	skipped, err := svc.SkipStep(context.Background(), userID, "connect_data")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, skipped.Status)
	require.NotNil(t, skipped.SkippedAt)

	_, err = svc.StartStep(context.Background(), userID, "explore")
	require.NoError(t, err)
	skipped, err = svc.SkipStep(context.Background(), userID, "explore")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, skipped.Status)

	// Skipping a terminal record is rejected.
	_, err = svc.SkipStep(context.Background(), userID, "explore")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartAfterFailureBumpsAttempts(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	started, err := svc.StartStep(context.Background(), userID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, 1, started.Attempts)
	assert.Equal(t, StatusInProgress, started.Status)

	failed, err := svc.FailStep(context.Background(), userID, "welcome", "agent timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "agent timeout", *failed.LastError)

	restarted, err := svc.StartStep(context.Background(), userID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, 2, restarted.Attempts)
	assert.Nil(t, restarted.LastError)
}

func TestStartRejectedFromTerminalState(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.CompleteStep(context.Background(), userID, "welcome", nil)
	require.NoError(t, err)

	_, err = svc.StartStep(context.Background(), userID, "welcome")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetProgressDeletesEverything(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()
	other := uuid.New()

	_, err := svc.CompleteStep(context.Background(), userID, "welcome", nil)
	require.NoError(t, err)
	_, err = svc.CompleteStep(context.Background(), userID, "profile", nil)
	require.NoError(t, err)
	_, err = svc.CompleteStep(context.Background(), other, "welcome", nil)
	require.NoError(t, err)

	deleted, err := svc.ResetProgress(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	records, err := svc.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, records)

	// The other user's progress is untouched.
	records, err = svc.GetProgress(context.Background(), other)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func stepKeys(steps []Step) []string {
	keys := make([]string, len(steps))
	for i, s := range steps {
		keys[i] = s.StepKey
	}
	return keys
}

func TestMarkHelpUsedKeepsStatus(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.StartStep(context.Background(), userID, "welcome")
	require.NoError(t, err)

	progress, err := svc.MarkHelpUsed(context.Background(), userID, "welcome")
	require.NoError(t, err)
	assert.True(t, progress.HelpUsed)
	assert.Equal(t, StatusInProgress, progress.Status)

	// Help on an untouched step creates the record without starting it.
	progress, err = svc.MarkHelpUsed(context.Background(), userID, "profile")
	require.NoError(t, err)
	assert.True(t, progress.HelpUsed)
	assert.Equal(t, StatusNotStarted, progress.Status)

	// The flag survives the round trip through the store.
	records, err := svc.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, p := range records {
		assert.True(t, p.HelpUsed)
	}
}

func TestFirstChecklistViewCountsTemplateAssignment(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	template := Template{
		ID:       uuid.New(),
		Name:     "default",
		StepKeys: datatypes.JSON([]byte(`["welcome","profile"]`)),
		Active:   true,
	}
	repo.templates = append(repo.templates, template)
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.GetChecklist(context.Background(), userID, &template.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.templates[0].Stats.UsersAssigned)
	assert.Equal(t, 0.0, repo.templates[0].Stats.CompletionRate)

	// A user with existing progress is not assigned again.
	_, err = svc.CompleteStep(context.Background(), userID, "welcome", nil)
	require.NoError(t, err)
	_, err = svc.GetChecklist(context.Background(), userID, &template.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.templates[0].Stats.UsersAssigned)
}

func TestConversionStepMovesTemplateStats(t *testing.T) {
	steps := catalogFixture()
	conversion := newStep("first_subscription", 60, false, false, true)
	conversion.Type = StepTypeConversion
	steps = append(steps, conversion)

	repo := newFakeRepository(steps...)
	repo.templates = append(repo.templates, Template{
		ID:       uuid.New(),
		Name:     "default",
		StepKeys: datatypes.JSON([]byte(`["welcome"]`)),
		Active:   true,
		Stats:    TemplateStats{UsersAssigned: 4},
	})
	svc := NewService(repo)
	svc.SetUserTargeting(fakeTargeting{})
	userID := uuid.New()

	// Regular steps never move the rolling statistics.
	_, err := svc.CompleteStep(context.Background(), userID, "welcome", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), repo.templates[0].Stats.UsersConverted)

	_, err = svc.CompleteStep(context.Background(), userID, "first_subscription", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.templates[0].Stats.UsersConverted)
	assert.InDelta(t, 25.0, repo.templates[0].Stats.ConversionRate, 1e-9)
}

func TestTemplateReordersWithoutDroppingSteps(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	template := Template{
		ID:       uuid.New(),
		Name:     "fast track",
		StepKeys: datatypes.JSON([]byte(`["explore","welcome","no_such_step","welcome"]`)),
		Active:   true,
	}
	repo.templates = append(repo.templates, template)
	svc := NewService(repo).(*service)

	steps, tpl, err := svc.resolveSteps(context.Background(), uuid.New(), &template.ID)
	require.NoError(t, err)
	require.NotNil(t, tpl)

	got := stepKeys(steps)
	// Template order first, remaining active steps in catalog order after.
	assert.Equal(t, []string{"explore", "welcome", "profile", "connect_data"}, got)

	// Set equality with the active catalog: nothing dropped, nothing duplicated.
	assert.ElementsMatch(t, []string{"welcome", "profile", "connect_data", "explore"}, got)
}

func TestMalformedTemplateFallsBackToCatalogOrder(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	template := Template{
		ID:       uuid.New(),
		Name:     "broken",
		StepKeys: datatypes.JSON([]byte(`{"not":"a list"}`)),
		Active:   true,
	}
	repo.templates = append(repo.templates, template)
	svc := NewService(repo).(*service)

	steps, tpl, err := svc.resolveSteps(context.Background(), uuid.New(), &template.ID)
	require.NoError(t, err)
	assert.Nil(t, tpl)
	assert.Equal(t, []string{"welcome", "profile", "connect_data", "explore"}, stepKeys(steps))
}

func TestChecklistJoinsProgressAndComputesPercentage(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	_, err := svc.CompleteStep(context.Background(), userID, "welcome", nil)
	require.NoError(t, err)

	checklist, err := svc.GetChecklist(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, checklist.TotalCount)
	assert.Equal(t, 1, checklist.CompletedCount)
	assert.InDelta(t, 25.0, checklist.CompletionPercentage, 1e-9)

	byKey := make(map[string]ChecklistItem)
	for _, item := range checklist.Items {
		byKey[item.StepKey] = item
	}
	assert.Equal(t, StatusCompleted, byKey["welcome"].Status)
	assert.Equal(t, StatusNotStarted, byKey["profile"].Status)
	assert.True(t, byKey["connect_data"].Optional)
	assert.False(t, byKey["welcome"].Optional)
}

func TestChecklistMarkCompletedAction(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)
	userID := uuid.New()

	result, err := svc.ApplyChecklistAction(context.Background(), &ChecklistActionRequest{
		UserID:  userID.String(),
		Action:  ActionMarkCompleted,
		ItemIDs: []string{"welcome", "profile"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.AffectedSteps)
	assert.InDelta(t, 50.0, result.CompletionPercentage, 1e-9)
}

func TestChecklistActionValidation(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)

	_, err := svc.ApplyChecklistAction(context.Background(), &ChecklistActionRequest{
		UserID: uuid.NewString(),
		Action: ActionMarkCompleted,
	})
	assert.ErrorIs(t, err, ErrNoItemsForAction)

	_, err = svc.ApplyChecklistAction(context.Background(), &ChecklistActionRequest{
		UserID:  uuid.NewString(),
		Action:  ActionMarkCompleted,
		ItemIDs: []string{"no_such_step"},
	})
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = svc.ApplyChecklistAction(context.Background(), &ChecklistActionRequest{
		UserID: "not-a-uuid",
		Action: ActionResetProgress,
	})
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestTrackEventValidatesTypeAndPayload(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)

	_, err := svc.TrackEvent(context.Background(), &TrackEventRequest{EventType: "nope"})
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = svc.TrackEvent(context.Background(), &TrackEventRequest{
		EventType: string(EventStepViewed),
		EventData: map[string]interface{}{"list": []interface{}{1, 2}},
	})
	assert.ErrorIs(t, err, ErrInvalidEventData)

	event, err := svc.TrackEvent(context.Background(), &TrackEventRequest{
		EventType: string(EventStepViewed),
		EventData: map[string]interface{}{"screen": "dashboard"},
	})
	require.NoError(t, err)
	assert.Equal(t, EventStepViewed, event.EventType)
	assert.Contains(t, event.SessionID, "sess_")
	assert.Len(t, repo.events, 1)
}

func TestQueryEventsGrouped(t *testing.T) {
	repo := newFakeRepository(catalogFixture()...)
	svc := NewService(repo)

	for _, et := range []EventType{EventStepViewed, EventStepViewed, EventStepCompleted} {
		_, err := svc.TrackEvent(context.Background(), &TrackEventRequest{EventType: string(et)})
		require.NoError(t, err)
	}

	result, err := svc.QueryEvents(context.Background(), &EventsQuery{GroupBy: "eventType"})
	require.NoError(t, err)
	assert.Equal(t, "eventType", result.GroupBy)
	assert.Empty(t, result.Events)

	counts := make(map[string]int64)
	for _, g := range result.Grouped {
		counts[g.Key] = g.Count
	}
	assert.Equal(t, int64(2), counts[string(EventStepViewed)])
	assert.Equal(t, int64(1), counts[string(EventStepCompleted)])
}
