package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"trinity/internal/funnel"
	"trinity/internal/shared/config"
	"trinity/internal/users"
)

type fakeRepository struct {
	byEmail map[string]*users.User
	byID    map[string]*users.User
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byEmail: make(map[string]*users.User),
		byID:    make(map[string]*users.User),
	}
}

func (f *fakeRepository) CreateUser(_ context.Context, user *users.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID.String()] = user
	return nil
}

func (f *fakeRepository) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	if user, ok := f.byEmail[email]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepository) GetUserByID(_ context.Context, id string) (*users.User, error) {
	if user, ok := f.byID[id]; ok {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepository) UpdateUserPassword(_ context.Context, userID, hashedPassword string) error {
	user, ok := f.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Password = hashedPassword
	return nil
}

func (f *fakeRepository) UpdateUserStatus(_ context.Context, userID string, status users.AccountStatus) error {
	user, ok := f.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Status = status
	return nil
}

func (f *fakeRepository) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := f.byEmail[email]
	return ok, nil
}

type fakeIngester struct {
	kinds []funnel.EventKind
}

func (f *fakeIngester) IngestEvent(_ context.Context, req *funnel.IngestEventRequest) (*funnel.IngestResult, error) {
	f.kinds = append(f.kinds, req.Event)
	return &funnel.IngestResult{EventID: uuid.NewString()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			JWTExpiresIn:     15 * time.Minute,
			RefreshExpiresIn: 24 * time.Hour,
		},
		Trial: config.TrialConfig{
			Duration: 14 * 24 * time.Hour,
		},
	}
}

func TestRegisterStartsTrialAndFeedsFunnel(t *testing.T) {
	repo := newFakeRepository()
	ingester := &fakeIngester{}
	svc := NewService(repo, testConfig())
	svc.SetFunnelIngester(ingester)

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada",
		LastName:  "Nguyen",
		Email:     "ada@example.com",
		Password:  "secret123",
		Industry:  "saas",
	})
	require.NoError(t, err)

	assert.Equal(t, string(users.AccountStatusTrial), resp.User.Status)
	require.NotNil(t, resp.User.TrialEndsAt)
	assert.True(t, resp.User.TrialEndsAt.After(time.Now().Add(13*24*time.Hour)))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	// A registration is both a started and a completed signup.
	assert.Equal(t, []funnel.EventKind{funnel.EventSignupStarted, funnel.EventSignupCompleted}, ingester.kinds)

	stored := repo.byEmail["ada@example.com"]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret123", stored.Password)
	assert.True(t, stored.OnTrial(time.Now()))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, testConfig())

	_, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada", LastName: "Nguyen", Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada", LastName: "Nguyen", Email: "ada@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLoginVerifiesPassword(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, testConfig())

	hashed, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, repo.CreateUser(context.Background(), &users.User{
		Email:    "ben@example.com",
		Password: string(hashed),
		Role:     users.RoleUser,
	}))

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "ben@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "ben@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, testConfig())

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada", LastName: "Nguyen", Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	pair, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	// An access token is not accepted as a refresh token.
	_, err = svc.RefreshToken(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGetMeReflectsStoredStatus(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, testConfig())

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada", LastName: "Nguyen", Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	me, err := svc.GetMe(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, string(users.AccountStatusTrial), me.Status)
	require.NotNil(t, me.TrialEndsAt)

	// A billing-side status flip shows up on the next read.
	require.NoError(t, repo.UpdateUserStatus(context.Background(), resp.User.ID, users.AccountStatusSubscribed))
	me, err = svc.GetMe(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, string(users.AccountStatusSubscribed), me.Status)

	_, err = svc.GetMe(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateTokenClaims(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, testConfig())

	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada", LastName: "Nguyen", Email: "ada@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
