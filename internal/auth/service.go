package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"trinity/internal/funnel"
	"trinity/internal/shared/config"
	"trinity/internal/stream"
	"trinity/internal/users"
	"trinity/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// FunnelIngester is the slice of the funnel service that signup needs.
type FunnelIngester interface {
	IngestEvent(ctx context.Context, req *funnel.IngestEventRequest) (*funnel.IngestResult, error)
}

type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error
	GetMe(ctx context.Context, userID string) (*UserResponse, error)
	ValidateToken(tokenString string) (*JWTClaims, error)

	// Dependency injection
	SetFunnelIngester(ingester FunnelIngester)
	SetPublisher(publisher stream.Publisher, topic string)
}

type service struct {
	repo        Repository
	config      *config.Config
	funnel      FunnelIngester
	publisher   stream.Publisher
	streamTopic string
	log         *logger.Logger
}

func NewService(repo Repository, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		config: cfg,
		log:    logger.GetDefault(),
	}
}

// SetFunnelIngester injects the funnel analytics dependency
func (s *service) SetFunnelIngester(ingester FunnelIngester) {
	s.funnel = ingester
}

// SetPublisher injects the notification stream publisher
func (s *service) SetPublisher(publisher stream.Publisher, topic string) {
	s.publisher = publisher
	s.streamTopic = topic
}

// Register creates the account, starts the free trial and feeds the signup
// funnel. The funnel writes are best effort; a stream or analytics failure
// never fails the registration itself.
func (s *service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	trialEnds := now.Add(s.config.Trial.Duration)
	user := &users.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Password:     string(hashedPassword),
		Role:         users.RoleUser,
		Company:      req.Company,
		Industry:     req.Industry,
		CompanySize:  req.CompanySize,
		JobRole:      req.JobRole,
		Status:       users.AccountStatusTrial,
		TrialStartAt: &now,
		TrialEndsAt:  &trialEnds,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.recordSignupFunnel(ctx, user, req.SessionID)
	s.publishWelcome(ctx, user)
	s.log.LogAuthSuccess(ctx, user.ID.String(), "register")
	s.log.LogTrialActivated(ctx, user.ID.String(), trialEnds)

	tokenPair, err := s.generateTokenPair(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.log.LogAuthFailure(ctx, "bad password", req.ClientIP)
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.generateTokenPair(user.ID.String(), user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	s.log.LogAuthSuccess(ctx, user.ID.String(), "login")

	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	// Verify user still exists
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	return s.generateTokenPair(user.ID.String(), user.Email, string(user.Role))
}

func (s *service) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.UpdateUserPassword(ctx, userID, string(hashedPassword))
}

// GetMe loads the account fresh from the store so the response reflects the
// current lifecycle status rather than the claims baked into the token.
func (s *service) GetMe(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return s.validateToken(tokenString)
}

// recordSignupFunnel feeds signup_started and signup_completed into the
// funnel. signup_completed also activates the trial counter downstream.
func (s *service) recordSignupFunnel(ctx context.Context, user *users.User, sessionID string) {
	if s.funnel == nil {
		return
	}
	for _, kind := range []funnel.EventKind{funnel.EventSignupStarted, funnel.EventSignupCompleted} {
		_, err := s.funnel.IngestEvent(ctx, &funnel.IngestEventRequest{
			UserID:    user.ID.String(),
			SessionID: sessionID,
			Event:     kind,
			Properties: map[string]interface{}{
				"source":   "register",
				"industry": user.Industry,
			},
		})
		if err != nil {
			s.log.Warn("failed to record signup funnel event",
				slog.String("kind", string(kind)),
				slog.Any("error", err),
			)
		}
	}
}

func (s *service) publishWelcome(ctx context.Context, user *users.User) {
	if s.publisher == nil || s.streamTopic == "" {
		return
	}
	msg := stream.Message{
		Topic: s.streamTopic,
		Key:   user.ID.String(),
		Value: map[string]interface{}{
			"type":          "welcome_email",
			"user_id":       user.ID.String(),
			"email":         user.Email,
			"first_name":    user.FirstName,
			"trial_ends_at": user.TrialEndsAt,
		},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Warn("failed to publish welcome notification", slog.Any("error", err))
	}
}

func (s *service) generateTokenPair(userID, email, role string) (*TokenPair, error) {
	now := time.Now()

	accessClaims := JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.JWTExpiresIn)),
			Issuer:    "trinity",
			Subject:   userID,
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	refreshClaims := JWTClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWT.RefreshExpiresIn)),
			Issuer:    "trinity",
			Subject:   userID,
		},
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}

func (s *service) validateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWT.Secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func toUserResponse(user *users.User) UserResponse {
	return UserResponse{
		ID:          user.ID.String(),
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		Role:        string(user.Role),
		Company:     user.Company,
		Industry:    user.Industry,
		CompanySize: user.CompanySize,
		JobRole:     user.JobRole,
		Status:      string(user.Status),
		TrialEndsAt: user.TrialEndsAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
