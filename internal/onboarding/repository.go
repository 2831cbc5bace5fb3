package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrStepNotFound     = errors.New("onboarding step not found")
	ErrStepKeyTaken     = errors.New("step key already exists")
	ErrTemplateNotFound = errors.New("onboarding template not found")
)

type Repository interface {
	// Catalog
	CreateStep(ctx context.Context, step *Step) error
	UpdateStep(ctx context.Context, step *Step) error
	GetStepByID(ctx context.Context, id uuid.UUID) (*Step, error)
	GetStepByKey(ctx context.Context, key string) (*Step, error)
	GetActiveSteps(ctx context.Context) ([]Step, error)
	GetAllSteps(ctx context.Context) ([]Step, error)

	// Progress
	GetProgress(ctx context.Context, userID, stepID uuid.UUID) (*Progress, error)
	GetUserProgress(ctx context.Context, userID uuid.UUID, withSteps bool) ([]Progress, error)
	UpsertProgress(ctx context.Context, p *Progress) error
	DeleteUserProgress(ctx context.Context, userID uuid.UUID) (int64, error)
	CountCompleted(ctx context.Context, userID uuid.UUID, requiredOnly bool) (int64, error)

	// Templates
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error)
	FindTemplateForUser(ctx context.Context, industry, companySize, jobRole *string) (*Template, error)
	UpdateTemplateStats(ctx context.Context, tpl *Template) error

	// Analytics events
	AppendEvent(ctx context.Context, event *Event) error
	QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	GroupEvents(ctx context.Context, filter EventFilter, groupBy string) ([]GroupedCount, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateStep(ctx context.Context, step *Step) error {
	if err := r.db.WithContext(ctx).Create(step).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrStepKeyTaken
		}
		return fmt.Errorf("failed to create onboarding step: %w", err)
	}
	return nil
}

func (r *repository) UpdateStep(ctx context.Context, step *Step) error {
	result := r.db.WithContext(ctx).Save(step)
	if result.Error != nil {
		return fmt.Errorf("failed to update onboarding step: %w", result.Error)
	}
	return nil
}

func (r *repository) GetStepByID(ctx context.Context, id uuid.UUID) (*Step, error) {
	var step Step
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("failed to get onboarding step: %w", err)
	}
	return &step, nil
}

func (r *repository) GetStepByKey(ctx context.Context, key string) (*Step, error) {
	var step Step
	if err := r.db.WithContext(ctx).Where("step_key = ?", key).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("failed to get onboarding step by key: %w", err)
	}
	return &step, nil
}

func (r *repository) GetActiveSteps(ctx context.Context) ([]Step, error) {
	var steps []Step
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC, created_at ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active onboarding steps: %w", err)
	}
	return steps, nil
}

func (r *repository) GetAllSteps(ctx context.Context) ([]Step, error) {
	var steps []Step
	err := r.db.WithContext(ctx).
		Order("sort_order ASC, created_at ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list onboarding steps: %w", err)
	}
	return steps, nil
}

func (r *repository) GetProgress(ctx context.Context, userID, stepID uuid.UUID) (*Progress, error) {
	var p Progress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND step_id = ?", userID, stepID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get step progress: %w", err)
	}
	return &p, nil
}

func (r *repository) GetUserProgress(ctx context.Context, userID uuid.UUID, withSteps bool) ([]Progress, error) {
	var records []Progress
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if withSteps {
		query = query.Preload("Step")
	}
	if err := query.Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list user progress: %w", err)
	}
	return records, nil
}

// UpsertProgress writes the full record, inserting or overwriting on the
// (user_id, step_id) unique index. Last writer wins.
func (r *repository) UpsertProgress(ctx context.Context, p *Progress) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "step_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "attempts", "help_used", "last_error",
			"started_at", "completed_at", "skipped_at",
			"completion_data", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert step progress: %w", err)
	}
	return nil
}

func (r *repository) DeleteUserProgress(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Progress{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset user progress: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repository) CountCompleted(ctx context.Context, userID uuid.UUID, requiredOnly bool) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&Progress{}).
		Joins("JOIN onboarding_steps ON onboarding_steps.id = onboarding_progress.step_id").
		Where("onboarding_progress.user_id = ?", userID).
		Where("onboarding_progress.status = ?", StatusCompleted).
		Where("onboarding_steps.active = ?", true)
	if requiredOnly {
		query = query.Where("onboarding_steps.required = ?", true)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count completed steps: %w", err)
	}
	return count, nil
}

func (r *repository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	var tpl Template
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get onboarding template: %w", err)
	}
	return &tpl, nil
}

// FindTemplateForUser matches active templates against the user's targeting
// attributes. A NULL criterion on the template is a wildcard. Ties break on
// traffic weight, then recency.
func (r *repository) FindTemplateForUser(ctx context.Context, industry, companySize, jobRole *string) (*Template, error) {
	var tpl Template
	query := r.db.WithContext(ctx).Where("active = ?", true)
	if industry != nil {
		query = query.Where("industry IS NULL OR industry = ?", *industry)
	} else {
		query = query.Where("industry IS NULL")
	}
	if companySize != nil {
		query = query.Where("company_size IS NULL OR company_size = ?", *companySize)
	} else {
		query = query.Where("company_size IS NULL")
	}
	if jobRole != nil {
		query = query.Where("job_role IS NULL OR job_role = ?", *jobRole)
	} else {
		query = query.Where("job_role IS NULL")
	}
	err := query.Order("traffic_weight DESC, created_at DESC").First(&tpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to find template for user: %w", err)
	}
	return &tpl, nil
}

// UpdateTemplateStats writes only the rolling statistics columns. Last writer
// wins on concurrent bumps.
func (r *repository) UpdateTemplateStats(ctx context.Context, tpl *Template) error {
	err := r.db.WithContext(ctx).Model(&Template{}).
		Where("id = ?", tpl.ID).
		Updates(map[string]interface{}{
			"users_assigned":  tpl.Stats.UsersAssigned,
			"users_completed": tpl.Stats.UsersCompleted,
			"users_converted": tpl.Stats.UsersConverted,
			"completion_rate": tpl.Stats.CompletionRate,
			"conversion_rate": tpl.Stats.ConversionRate,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update template stats: %w", err)
	}
	return nil
}

func (r *repository) AppendEvent(ctx context.Context, event *Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append onboarding event: %w", err)
	}
	return nil
}

func (r *repository) QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var events []Event
	query := applyEventFilter(r.db.WithContext(ctx).Model(&Event{}), filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	err := query.Order("created_at DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query onboarding events: %w", err)
	}
	return events, nil
}

func (r *repository) GroupEvents(ctx context.Context, filter EventFilter, groupBy string) ([]GroupedCount, error) {
	var selectExpr, groupExpr string
	switch groupBy {
	case "eventType":
		selectExpr, groupExpr = "event_type AS key, COUNT(*) AS count", "event_type"
	case "stepId":
		selectExpr, groupExpr = "COALESCE(step_id::text, '') AS key, COUNT(*) AS count", "step_id"
	case "date":
		selectExpr, groupExpr = "to_char(created_at, 'YYYY-MM-DD') AS key, COUNT(*) AS count", "to_char(created_at, 'YYYY-MM-DD')"
	case "hour":
		selectExpr, groupExpr = "to_char(created_at, 'YYYY-MM-DD HH24:00') AS key, COUNT(*) AS count", "to_char(created_at, 'YYYY-MM-DD HH24:00')"
	default:
		return nil, fmt.Errorf("unsupported groupBy: %s", groupBy)
	}

	var rows []GroupedCount
	query := applyEventFilter(r.db.WithContext(ctx).Model(&Event{}), filter)
	err := query.Select(selectExpr).Group(groupExpr).Order("count DESC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group onboarding events: %w", err)
	}
	return rows, nil
}

func applyEventFilter(query *gorm.DB, filter EventFilter) *gorm.DB {
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.StepID != nil {
		query = query.Where("step_id = ?", *filter.StepID)
	}
	if filter.EventType != nil {
		query = query.Where("event_type = ?", *filter.EventType)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at <= ?", *filter.Until)
	}
	return query
}
