package users

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgauth "github.com/retailpos/retailpos-backend/pkg/auth"
	"github.com/retailpos/retailpos-backend/pkg/config"
	"github.com/retailpos/retailpos-backend/pkg/db/models"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret",
		Issuer:            "retailpos",
		ExpirationMinutes: 60,
	}
}

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))

	repo := NewRepository(conn)
	svc, err := NewService(repo, testJWTConfig(), nil)
	require.NoError(t, err)
	return svc, repo
}

func seedUser(t *testing.T, repo *Repository, login, password string, active bool) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	locationID := uuid.New()
	user := &models.User{
		Login:        login,
		DisplayName:  "Kasia Nowak",
		PasswordHash: hash,
		Role:         "cashier",
		LocationID:   &locationID,
		Active:       active,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestLoginMintsParsableToken(t *testing.T) {
	svc, repo := newTestService(t)
	user := seedUser(t, repo, "kasia", "sekret123", true)

	result, err := svc.Login(context.Background(), "  Kasia ", "sekret123")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.UserID)
	require.Equal(t, "kasia", result.Login)
	require.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "cashier", claims.Role)
	require.NotNil(t, claims.LocationID)
	require.Equal(t, *user.LocationID, *claims.LocationID)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, repo := newTestService(t)
	seedUser(t, repo, "kasia", "sekret123", true)
	seedUser(t, repo, "dormant", "sekret123", false)

	for _, tc := range []struct {
		name     string
		login    string
		password string
	}{
		{"unknown login", "nobody", "sekret123"},
		{"wrong password", "kasia", "wrong"},
		{"inactive user", "dormant", "sekret123"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.login, tc.password)
			require.Error(t, err)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
			require.Equal(t, "invalid credentials", pkgerrors.As(err).Message())
		})
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "", "x")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Login(context.Background(), "kasia", "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
