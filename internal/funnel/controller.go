package funnel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trinity/pkg/logger"
)

// Controller defines the funnel analytics controller interface
type Controller interface {
	IngestEvent(c *gin.Context)
	GetReport(c *gin.Context)
}

type controller struct {
	service Service
	log     *logger.Logger
}

// NewController creates a new funnel controller instance
func NewController(service Service) Controller {
	return &controller{
		service: service,
		log:     logger.GetDefault(),
	}
}

// IngestEvent handles POST /analytics/funnel
func (ctrl *controller) IngestEvent(c *gin.Context) {
	var req IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid event payload",
			"errors":  err.Error(),
		})
		return
	}

	// Optional auth: attribute anonymous payloads to the logged-in visitor
	if req.UserID == "" {
		if id, ok := c.Get("user_id"); ok {
			if s, ok := id.(string); ok {
				req.UserID = s
			}
		}
	}

	result, err := ctrl.service.IngestEvent(c.Request.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			details := gin.H{"event": string(req.Event)}
			if errors.Is(err, ErrInvalidEventKind) {
				details["accepted"] = AllEventKinds
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": err.Error(),
				"errors":  details,
			})
			return
		}

		ctrl.log.LogHTTPError(c, err, http.StatusInternalServerError)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to record event",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"eventId": result.EventID,
		"message": "Event recorded",
	})
}

// GetReport handles GET /analytics/funnel
func (ctrl *controller) GetReport(c *gin.Context) {
	var query ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid query parameters",
			"errors":  err.Error(),
		})
		return
	}

	report, err := ctrl.service.GetReport(c.Request.Context(), query)
	if err != nil {
		ctrl.log.ErrorWithContext(c.Request.Context(), "funnel report failed", err,
			map[string]interface{}{"timeframe": query.Timeframe})
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to build funnel report",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"analytics": report,
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEventKind) ||
		errors.Is(err, ErrInvalidProperties) ||
		errors.Is(err, ErrInvalidUserID)
}
