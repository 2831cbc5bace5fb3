package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trinity/internal/shared/utils/response"
)

// Controller defines the billing HTTP handlers
type Controller interface {
	ListPlans(c *gin.Context)
	Subscribe(c *gin.Context)
	GetSubscription(c *gin.Context)
	CancelSubscription(c *gin.Context)
	TrackUpgradeClick(c *gin.Context)
}

type controller struct {
	service Service
}

// NewController creates a new billing controller instance
func NewController(service Service) Controller {
	return &controller{service: service}
}

// ListPlans handles GET /billing/plans
func (ctrl *controller) ListPlans(c *gin.Context) {
	plans, err := ctrl.service.ListPlans(c.Request.Context())
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to list plans", nil, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Plans retrieved successfully", plans, nil)
}

// Subscribe handles POST /billing/subscriptions
func (ctrl *controller) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	sub, err := ctrl.service.Subscribe(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUserID):
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid user id", nil, err.Error())
		case errors.Is(err, ErrPlanNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "Plan not found", nil, nil)
		case errors.Is(err, ErrAlreadySubscribed):
			response.RespondJSON(c, "error", http.StatusConflict, "User already has an active subscription", nil, nil)
		default:
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to create subscription", nil, nil)
		}
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Subscription created successfully", sub, nil)
}

// GetSubscription handles GET /billing/subscriptions/:userId
func (ctrl *controller) GetSubscription(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid user id", nil, err.Error())
		return
	}

	sub, err := ctrl.service.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "No active subscription", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to get subscription", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Subscription retrieved successfully", sub, nil)
}

// CancelSubscription handles DELETE /billing/subscriptions/:userId
func (ctrl *controller) CancelSubscription(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid user id", nil, err.Error())
		return
	}

	sub, err := ctrl.service.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "No active subscription", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to cancel subscription", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Subscription canceled successfully", sub, nil)
}

// TrackUpgradeClick handles POST /billing/upgrade-click
func (ctrl *controller) TrackUpgradeClick(c *gin.Context) {
	var req UpgradeClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := ctrl.service.TrackUpgradeClick(c.Request.Context(), &req); err != nil {
		if errors.Is(err, ErrInvalidUserID) {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid user id", nil, err.Error())
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to track upgrade click", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Upgrade click recorded", nil, nil)
}
