package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trinity/internal/stream"
	"trinity/internal/users"
)

// fakeAuthService records the requests the handlers pass down.
type fakeAuthService struct {
	registerReq *RegisterRequest
	loginReq    *LoginRequest
	user        UserResponse
}

func (f *fakeAuthService) Register(_ context.Context, req *RegisterRequest) (*AuthResponse, error) {
	f.registerReq = req
	return &AuthResponse{User: f.user, AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900}, nil
}

func (f *fakeAuthService) Login(_ context.Context, req *LoginRequest) (*AuthResponse, error) {
	f.loginReq = req
	return &AuthResponse{User: f.user, AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900}, nil
}

func (f *fakeAuthService) RefreshToken(_ context.Context, _ string) (*TokenPair, error) {
	return &TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 900}, nil
}

func (f *fakeAuthService) ChangePassword(_ context.Context, _ string, _ *ChangePasswordRequest) error {
	return nil
}

func (f *fakeAuthService) GetMe(_ context.Context, _ string) (*UserResponse, error) {
	user := f.user
	return &user, nil
}

func (f *fakeAuthService) ValidateToken(_ string) (*JWTClaims, error) { return nil, ErrInvalidToken }
func (f *fakeAuthService) SetFunnelIngester(_ FunnelIngester)         {}
func (f *fakeAuthService) SetPublisher(_ stream.Publisher, _ string)  {}

func trialUser() UserResponse {
	ends := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	return UserResponse{
		ID:          "u1",
		Email:       "ada@example.com",
		Status:      string(users.AccountStatusTrial),
		TrialEndsAt: &ends,
	}
}

func registerRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctrl := NewController(svc)
	r.POST("/register", ctrl.Register)
	return r
}

const registerBody = `{"first_name":"Ada","last_name":"Nguyen","email":"ada@example.com","password":"secret123"}`

func TestRegisterSessionFallsBackToHeader(t *testing.T) {
	svc := &fakeAuthService{user: trialUser()}
	router := registerRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(registerBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", "sess_landing_42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.registerReq)
	assert.Equal(t, "sess_landing_42", svc.registerReq.SessionID)
}

func TestRegisterBodySessionWinsOverHeader(t *testing.T) {
	svc := &fakeAuthService{user: trialUser()}
	router := registerRouter(svc)

	body := strings.Replace(registerBody, `"password"`, `"session_id":"sess_body","password"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", "sess_header")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.registerReq)
	assert.Equal(t, "sess_body", svc.registerReq.SessionID)
}

func TestRegisterMessageSurfacesTrialWindow(t *testing.T) {
	svc := &fakeAuthService{user: trialUser()}
	router := registerRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(registerBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "trial active until Sep 9, 2026")
}

func TestLoginHandlerAttachesClientIP(t *testing.T) {
	svc := &fakeAuthService{user: trialUser()}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", NewController(svc).Login)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"ada@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:54321"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.loginReq)
	assert.Equal(t, "203.0.113.7", svc.loginReq.ClientIP)
}
