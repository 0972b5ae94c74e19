package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newAuthService(t *testing.T) AuthService {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "auth_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey: "test-secret",
			ExpiresIn: time.Hour,
			Issuer:    "go-fileshare",
		},
	}
	return NewAuthService(repositories.NewUserRepository(db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "alice", "pass123456", "alice@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pass123456", user.PasswordHash)

	tokenString, err := svc.LoginUser(ctx, "alice", "pass123456")
	require.NoError(t, err)

	claims, err := utils.ParseToken(tokenString, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	// 邮箱也能作为登录标识
	_, err = svc.LoginUser(ctx, "alice@example.com", "pass123456")
	require.NoError(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, "bob", "pass123456", "bob@example.com")
	require.NoError(t, err)

	_, err = svc.RegisterUser(ctx, "bob", "otherpass", "bob2@example.com")
	assert.ErrorIs(t, err, xerr.ErrUserAlreadyExists)

	_, err = svc.RegisterUser(ctx, "bob2", "otherpass", "bob@example.com")
	assert.ErrorIs(t, err, xerr.ErrEmailAlreadyExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, "carol", "pass123456", "carol@example.com")
	require.NoError(t, err)

	_, err = svc.LoginUser(ctx, "carol", "wrongpass")
	assert.ErrorIs(t, err, xerr.ErrInvalidCredentials)

	_, err = svc.LoginUser(ctx, "nobody", "pass123456")
	assert.ErrorIs(t, err, xerr.ErrInvalidCredentials)
}

func TestGetUserByID(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "dave", "pass123456", "dave@example.com")
	require.NoError(t, err)

	got, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Username)

	_, err = svc.GetUserByID(ctx, 99999)
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)
}
