package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"xrayqc/api/internal/config"
	"xrayqc/api/internal/ids"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
	"xrayqc/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoUpdates          = errors.New("no updates provided")
)

// UserStore is the slice of the user repository the auth flows need.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) (models.User, error)
}

type AuthService struct {
	users UserStore
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewAuthService(users UserStore, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users: users,
		cfg:   cfg,
		log:   log,
	}
}

type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	Name        string
	Affiliation string
}

// Register creates an unapproved account. The caller stays locked out of
// the application until an admin approves it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Username:     input.Username,
		PasswordHash: hash,
		Email:        input.Email,
		Name:         input.Name,
		Role:         models.UserRoleUser,
		IsApproved:   false,
	}
	if input.Affiliation != "" {
		user.Affiliation = &input.Affiliation
	}

	if err := s.users.Create(ctx, user); err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("username", user.Username).Msg("user registered, pending approval")
	return user, nil
}

type LoginResult struct {
	Token      string
	Role       models.UserRole
	IsApproved bool
}

// Login verifies credentials and issues a 24h token. An unapproved user
// still gets a token; the approval gate lives at the status endpoint.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Username,
		string(user.Role),
		s.cfg.Security.JWTTTL,
	)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:      token,
		Role:       user.Role,
		IsApproved: user.IsApproved,
	}, nil
}

func (s *AuthService) Status(ctx context.Context, userID string) (models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ProfileInput carries the requested profile changes. ClearAffiliation is
// set when the caller sent an explicit null for the affiliation, which
// clears the field instead of leaving it untouched.
type ProfileInput struct {
	NewPassword      string
	NewEmail         *string
	NewAffiliation   *string
	ClearAffiliation bool
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (models.User, error) {
	var update repository.ProfileUpdate

	if input.NewPassword != "" {
		hash, err := security.HashPassword(input.NewPassword)
		if err != nil {
			return models.User{}, err
		}
		update.PasswordHash = hash
	}
	update.Email = input.NewEmail
	update.Affiliation = input.NewAffiliation
	update.ClearAffiliation = input.ClearAffiliation

	if update.Empty() {
		return models.User{}, ErrNoUpdates
	}

	return s.users.UpdateProfile(ctx, userID, update)
}
