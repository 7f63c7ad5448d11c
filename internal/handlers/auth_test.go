package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrayqc/api/internal/config"
	"xrayqc/api/internal/middleware"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
	"xrayqc/api/internal/security"
	"xrayqc/api/internal/service"
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

func (f *fakeUserStore) add(user models.User) {
	f.byUsername[user.Username] = user
	f.byID[user.ID] = user
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := f.byUsername[user.Username]; exists {
		return repository.ErrDuplicateUser
	}
	f.add(user)
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
	f.add(user)
	return user, nil
}

func handlerTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTSecret: "test-secret",
			JWTTTL:    24 * time.Hour,
		},
	}
}

func newAuthTestRouter(store *fakeUserStore, cfg *config.AppConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := HandlerSet{
		log:         zerolog.Nop(),
		cfg:         cfg,
		authService: service.NewAuthService(store, cfg, zerolog.Nop()),
	}

	router := gin.New()
	api := router.Group("/api", middleware.Auth(cfg))
	api.GET("/auth/status", h.AuthStatus)
	api.PUT("/auth/profile", h.UpdateProfile)
	return router
}

func bearerFor(t *testing.T, cfg *config.AppConfig, user models.User) string {
	t.Helper()
	token, err := security.GenerateAccessToken(cfg.Security.JWTSecret, user.ID, user.Username, string(user.Role), time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthStatusPendingUserGets403(t *testing.T) {
	cfg := handlerTestConfig()
	store := newFakeUserStore()
	pending := models.User{
		ID:         "u-pending",
		Username:   "inspector",
		Email:      "inspector@example.com",
		Name:       "Line Inspector",
		Role:       models.UserRoleUser,
		IsApproved: false,
	}
	store.add(pending)
	router := newAuthTestRouter(store, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, pending))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["approved"])
	assert.Equal(t, "Pending admin approval", body["message"])
	assert.NotContains(t, body, "user", "pending accounts get no profile payload")
}

func TestAuthStatusApprovedUserGetsProfile(t *testing.T) {
	cfg := handlerTestConfig()
	store := newFakeUserStore()
	approved := models.User{
		ID:         "u-approved",
		Username:   "supervisor",
		Email:      "supervisor@example.com",
		Name:       "Shift Supervisor",
		Role:       models.UserRoleAdmin,
		IsApproved: true,
	}
	store.add(approved)
	router := newAuthTestRouter(store, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, approved))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Approved bool         `json:"approved"`
		Role     string       `json:"role"`
		User     userResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Approved)
	assert.Equal(t, "admin", body.Role)
	assert.Equal(t, "supervisor", body.User.Username)
	assert.True(t, body.User.IsApproved)
}

func TestAuthStatusUnknownUserGets404(t *testing.T) {
	cfg := handlerTestConfig()
	router := newAuthTestRouter(newFakeUserStore(), cfg)

	ghost := models.User{ID: "u-ghost", Username: "ghost", Role: models.UserRoleUser}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, ghost))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfileNullAffiliationClears(t *testing.T) {
	cfg := handlerTestConfig()
	store := newFakeUserStore()
	affiliation := "QA Lab"
	user := models.User{
		ID:          "u-1",
		Username:    "inspector",
		Email:       "inspector@example.com",
		Name:        "Line Inspector",
		Affiliation: &affiliation,
		Role:        models.UserRoleUser,
		IsApproved:  true,
	}
	store.add(user)
	router := newAuthTestRouter(store, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", strings.NewReader(`{"new_affiliation": null}`))
	req.Header.Set("Authorization", bearerFor(t, cfg, user))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := store.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, stored.Affiliation, "explicit null clears the affiliation")
}

func TestUpdateProfileOmittedAffiliationLeftAlone(t *testing.T) {
	cfg := handlerTestConfig()
	store := newFakeUserStore()
	affiliation := "QA Lab"
	user := models.User{
		ID:          "u-1",
		Username:    "inspector",
		Email:       "inspector@example.com",
		Name:        "Line Inspector",
		Affiliation: &affiliation,
		Role:        models.UserRoleUser,
		IsApproved:  true,
	}
	store.add(user)
	router := newAuthTestRouter(store, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearerFor(t, cfg, user))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "an empty body carries no updates")

	stored, err := store.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Affiliation)
	assert.Equal(t, "QA Lab", *stored.Affiliation)
}
