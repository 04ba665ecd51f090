package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	pkgauth "github.com/retailpos/retailpos-backend/pkg/auth"
	"github.com/retailpos/retailpos-backend/pkg/config"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

// LoginResult carries the minted token and the cashier identity for the
// till client.
type LoginResult struct {
	Token       string     `json:"token"`
	UserID      uuid.UUID  `json:"user_id"`
	Login       string     `json:"login"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	LocationID  *uuid.UUID `json:"location_id,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// Service authenticates cashiers. Identity only, no role hierarchy
// beyond the stored role string.
type Service interface {
	Login(ctx context.Context, login, password string) (*LoginResult, error)
}

type service struct {
	users *Repository
	jwt   config.JWTConfig
	log   *logger.Logger
}

// NewService wires the login surface.
func NewService(users *Repository, jwt config.JWTConfig, log *logger.Logger) (Service, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users service requires a repository")
	}
	return &service{users: users, jwt: jwt, log: log}, nil
}

// Login verifies the password and mints an access token. Unknown logins
// and wrong passwords are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "login and password are required")
	}

	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load user")
	}
	if !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	token, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID:      user.ID,
		Login:       user.Login,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		LocationID:  user.LocationID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to mint token")
	}

	if s.log != nil {
		s.log.Info(s.log.WithCashier(ctx, user.Login), "cashier logged in")
	}
	return &LoginResult{
		Token:       token,
		UserID:      user.ID,
		Login:       user.Login,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		LocationID:  user.LocationID,
		ExpiresAt:   now.Add(s.jwt.Expiration()),
	}, nil
}

// HashPassword returns the bcrypt hash used when seeding users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
