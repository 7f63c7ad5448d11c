package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrayqc/api/internal/config"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
	"xrayqc/api/internal/security"
)

type fakeUserStore struct {
	byUsername map[string]models.User
	byID       map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byUsername: map[string]models.User{},
		byID:       map[string]models.User{},
	}
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := f.byUsername[user.Username]; exists {
		return repository.ErrDuplicateUser
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.byUsername[user.Username] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	user, ok := f.byUsername[username]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, id string, update repository.ProfileUpdate) (models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	if update.PasswordHash != nil {
		user.PasswordHash = update.PasswordHash
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.ClearAffiliation {
		user.Affiliation = nil
	} else if update.Affiliation != nil {
		user.Affiliation = update.Affiliation
	}
	f.byID[id] = user
	f.byUsername[user.Username] = user
	return user, nil
}

func authTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTSecret: "test-secret",
			JWTTTL:    24 * time.Hour,
		},
	}
}

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, authTestConfig(), zerolog.Nop())

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "inspector",
		Password: "hunter22",
		Email:    "inspector@example.com",
		Name:     "Line Inspector",
	})
	require.NoError(t, err)
	assert.False(t, user.IsApproved, "registrations start unapproved")
	assert.Equal(t, models.UserRoleUser, user.Role)

	result, err := svc.Login(context.Background(), "inspector", "hunter22")
	require.NoError(t, err)
	assert.False(t, result.IsApproved)

	claims, err := security.ParseAccessToken(result.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "inspector", claims.Username)
	assert.Equal(t, string(user.Role), claims.Role, "decoded role matches the stored role")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, authTestConfig(), zerolog.Nop())

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "inspector",
		Password: "hunter22",
		Email:    "inspector@example.com",
		Name:     "Line Inspector",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "inspector", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), authTestConfig(), zerolog.Nop())

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, authTestConfig(), zerolog.Nop())

	input := RegisterInput{
		Username: "inspector",
		Password: "hunter22",
		Email:    "inspector@example.com",
		Name:     "Line Inspector",
	}
	_, err := svc.Register(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, repository.ErrDuplicateUser)
}

func TestUpdateProfileRequiresChanges(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), authTestConfig(), zerolog.Nop())

	_, err := svc.UpdateProfile(context.Background(), "u-1", ProfileInput{})
	assert.ErrorIs(t, err, ErrNoUpdates)
}

func TestUpdateProfileClearsAffiliation(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, authTestConfig(), zerolog.Nop())

	registered, err := svc.Register(context.Background(), RegisterInput{
		Username:    "inspector",
		Password:    "hunter22",
		Email:       "inspector@example.com",
		Name:        "Line Inspector",
		Affiliation: "QA Lab",
	})
	require.NoError(t, err)
	require.NotNil(t, registered.Affiliation)

	updated, err := svc.UpdateProfile(context.Background(), registered.ID, ProfileInput{ClearAffiliation: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Affiliation)
}

func TestUpdateProfileChangesPassword(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(store, authTestConfig(), zerolog.Nop())

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "inspector",
		Password: "hunter22",
		Email:    "inspector@example.com",
		Name:     "Line Inspector",
	})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(context.Background(), user.ID, ProfileInput{NewPassword: "new-password"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "inspector", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "inspector", "new-password")
	assert.NoError(t, err)
}
