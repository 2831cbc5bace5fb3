package onboarding

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Controller defines the onboarding HTTP handlers
type Controller interface {
	ListSteps(c *gin.Context)
	CreateStep(c *gin.Context)
	UpdateStep(c *gin.Context)
	GetChecklist(c *gin.Context)
	ChecklistAction(c *gin.Context)
	ProgressAction(c *gin.Context)
	GetProgress(c *gin.Context)
	TrackEvent(c *gin.Context)
	QueryEvents(c *gin.Context)
}

type controller struct {
	service Service
}

// NewController creates a new onboarding controller instance
func NewController(service Service) Controller {
	return &controller{service: service}
}

// ListSteps handles GET /onboarding/steps
func (ctrl *controller) ListSteps(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"
	steps, err := ctrl.service.ListSteps(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err, "Failed to load onboarding steps")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"steps":   steps,
	})
}

// CreateStep handles POST /onboarding/steps
func (ctrl *controller) CreateStep(c *gin.Context) {
	var req CreateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid step payload",
			"errors":  err.Error(),
		})
		return
	}

	step, err := ctrl.service.CreateStep(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create onboarding step")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"step":    step,
	})
}

// UpdateStep handles PUT /onboarding/steps/:id
func (ctrl *controller) UpdateStep(c *gin.Context) {
	stepID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid step id",
			"errors":  err.Error(),
		})
		return
	}

	var req UpdateStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid step payload",
			"errors":  err.Error(),
		})
		return
	}

	step, err := ctrl.service.UpdateStep(c.Request.Context(), stepID, &req)
	if err != nil {
		respondError(c, err, "Failed to update onboarding step")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"step":    step,
	})
}

// GetChecklist handles GET /onboarding/checklist
func (ctrl *controller) GetChecklist(c *gin.Context) {
	var query ChecklistQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid checklist query",
			"errors":  err.Error(),
		})
		return
	}

	userID, err := uuid.Parse(query.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid checklist query",
			"errors":  ErrInvalidUserID.Error(),
		})
		return
	}
	var templateID *uuid.UUID
	if query.TemplateID != "" {
		parsed, err := uuid.Parse(query.TemplateID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Invalid checklist query",
				"errors":  ErrInvalidTemplateID.Error(),
			})
			return
		}
		templateID = &parsed
	}

	checklist, err := ctrl.service.GetChecklist(c.Request.Context(), userID, templateID)
	if err != nil {
		respondError(c, err, "Failed to build checklist")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"checklist": checklist,
	})
}

// ChecklistAction handles POST /onboarding/checklist
func (ctrl *controller) ChecklistAction(c *gin.Context) {
	var req ChecklistActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid checklist action",
			"errors":  err.Error(),
		})
		return
	}

	result, err := ctrl.service.ApplyChecklistAction(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to apply checklist action")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// ProgressAction handles POST /onboarding/progress
func (ctrl *controller) ProgressAction(c *gin.Context) {
	var req ProgressActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid progress action",
			"errors":  err.Error(),
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid progress action",
			"errors":  ErrInvalidUserID.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	var progress *Progress
	switch req.Action {
	case "start":
		progress, err = ctrl.service.StartStep(ctx, userID, req.StepKey)
	case "complete":
		progress, err = ctrl.service.CompleteStep(ctx, userID, req.StepKey, req.Data)
	case "skip":
		progress, err = ctrl.service.SkipStep(ctx, userID, req.StepKey)
	case "fail":
		progress, err = ctrl.service.FailStep(ctx, userID, req.StepKey, req.ErrorInfo)
	case "abandon":
		progress, err = ctrl.service.AbandonStep(ctx, userID, req.StepKey)
	}
	if err != nil {
		respondError(c, err, "Failed to update step progress")
		return
	}
	if req.HelpUsed {
		progress, err = ctrl.service.MarkHelpUsed(ctx, userID, req.StepKey)
		if err != nil {
			respondError(c, err, "Failed to update step progress")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"progress": progress,
	})
}

// GetProgress handles GET /onboarding/progress
func (ctrl *controller) GetProgress(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid progress query",
			"errors":  ErrInvalidUserID.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	records, err := ctrl.service.GetProgress(ctx, userID)
	if err != nil {
		respondError(c, err, "Failed to load progress")
		return
	}
	requiredOnly := c.Query("requiredOnly") == "true"
	percentage, err := ctrl.service.CompletionPercentage(ctx, userID, requiredOnly)
	if err != nil {
		respondError(c, err, "Failed to compute completion percentage")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"progress":             records,
		"completionPercentage": percentage,
	})
}

// TrackEvent handles POST /onboarding/analytics
func (ctrl *controller) TrackEvent(c *gin.Context) {
	var req TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid event payload",
			"errors":  err.Error(),
		})
		return
	}

	event, err := ctrl.service.TrackEvent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to record event")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"eventId": event.ID.String(),
	})
}

// QueryEvents handles GET /onboarding/analytics
func (ctrl *controller) QueryEvents(c *gin.Context) {
	var query EventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid analytics query",
			"errors":  err.Error(),
		})
		return
	}

	result, err := ctrl.service.QueryEvents(c.Request.Context(), &query)
	if err != nil {
		respondError(c, err, "Failed to query events")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  result.Events,
		"grouped": result.Grouped,
		"groupBy": result.GroupBy,
		"total":   result.Total,
	})
}

// respondError normalizes service errors to the boundary taxonomy: validation
// errors 400, missing entities 404, anything else a generic 500.
func respondError(c *gin.Context, err error, message string) {
	switch {
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": message,
			"errors":  err.Error(),
		})
	case isNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": message,
			"errors":  err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": message,
		})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidStepType) ||
		errors.Is(err, ErrInvalidEventType) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidStepID) ||
		errors.Is(err, ErrInvalidTemplateID) ||
		errors.Is(err, ErrSkipNotAllowed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidEventData) ||
		errors.Is(err, ErrNoItemsForAction) ||
		errors.Is(err, ErrStepKeyTaken)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrUnknownItem)
}
