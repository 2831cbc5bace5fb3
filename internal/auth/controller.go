package auth

import (
	"errors"
	"fmt"
	"net/http"

	"trinity/internal/shared/utils/response"
	"trinity/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// sessionHeader carries the anonymous funnel session from the landing pages.
// Clients that track it send the header on signup so the account links back to
// its pre-signup events.
const sessionHeader = "X-Session-Id"

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	return &Controller{
		service:   service,
		validator: validator.New(),
	}
}

// bindAndValidate decodes the body and runs struct validation, writing the
// error response itself. Returns false when the handler should stop.
func (c *Controller) bindAndValidate(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return false
	}
	if err := c.validator.Struct(req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return false
	}
	return true
}

// respondAuthError maps the service sentinels onto HTTP statuses. fallback is
// the message for unexpected errors.
func respondAuthError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserAlreadyExists):
		response.RespondJSON(ctx, "error", http.StatusConflict, "User with this email already exists", nil, nil)
	case errors.Is(err, ErrInvalidCredentials):
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Invalid email or password", nil, nil)
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Invalid or expired token", nil, nil)
	case errors.Is(err, ErrUserNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "User not found", nil, nil)
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, fallback, nil, nil)
	}
}

// Register creates the account. The funnel session comes from the body when
// the client sends it there, otherwise from the X-Session-Id header.
func (c *Controller) Register(ctx *gin.Context) {
	var req RegisterRequest
	if !c.bindAndValidate(ctx, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = ctx.GetHeader(sessionHeader)
	}

	resp, err := c.service.Register(ctx.Request.Context(), &req)
	if err != nil {
		respondAuthError(ctx, err, "Failed to register user")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, registerMessage(resp.User), resp, nil)
}

// registerMessage surfaces the trial window in the success message so clients
// can show it without digging into the payload.
func registerMessage(user UserResponse) string {
	if user.Status == string(users.AccountStatusTrial) && user.TrialEndsAt != nil {
		return fmt.Sprintf("User registered successfully, trial active until %s", user.TrialEndsAt.Format("Jan 2, 2006"))
	}
	return "User registered successfully"
}

func (c *Controller) Login(ctx *gin.Context) {
	var req LoginRequest
	if !c.bindAndValidate(ctx, &req) {
		return
	}
	req.ClientIP = ctx.ClientIP()

	resp, err := c.service.Login(ctx.Request.Context(), &req)
	if err != nil {
		respondAuthError(ctx, err, "Failed to login")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Login successful", resp, nil)
}

func (c *Controller) RefreshToken(ctx *gin.Context) {
	var req RefreshTokenRequest
	if !c.bindAndValidate(ctx, &req) {
		return
	}

	tokenPair, err := c.service.RefreshToken(ctx.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The account behind the token is gone; treat it as a bad token.
			response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not found", nil, nil)
			return
		}
		respondAuthError(ctx, err, "Failed to refresh token")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Token refreshed successfully", tokenPair, nil)
}

func (c *Controller) Logout(ctx *gin.Context) {
	var req LogoutRequest
	ctx.ShouldBindJSON(&req) // Optional body

	response.RespondJSON(ctx, "success", http.StatusOK, "Logged out successfully", nil, nil)
}

func (c *Controller) ChangePassword(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req ChangePasswordRequest
	if !c.bindAndValidate(ctx, &req) {
		return
	}

	if err := c.service.ChangePassword(ctx.Request.Context(), userID.(string), &req); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Current password is incorrect", nil, nil)
			return
		}
		respondAuthError(ctx, err, "Failed to change password")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Password changed successfully", nil, nil)
}

// GetMe returns the account as stored, not the token claims, so a trial that
// expired or an upgrade that landed since login shows up immediately.
func (c *Controller) GetMe(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	user, err := c.service.GetMe(ctx.Request.Context(), userID.(string))
	if err != nil {
		respondAuthError(ctx, err, "Failed to load user")
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "User data retrieved successfully", user, nil)
}
