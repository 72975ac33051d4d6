package auth_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedloop/pkg/auth"
	"github.com/umputun/feedloop/pkg/db"
	"github.com/umputun/feedloop/pkg/domain"
)

func setupService(t *testing.T) *auth.Service {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "auth-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	database, err := db.New(db.Config{DSN: "file:" + tmpFile.Name() + "?mode=rwc"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return auth.NewService(database, time.Hour)
}

func TestService_Register(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	t.Run("creates user", func(t *testing.T) {
		user, err := svc.Register(ctx, "Alice@Example.com", "secret-password")
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.Equal(t, "alice@example.com", user.Email) // normalized
		assert.NotEqual(t, "secret-password", user.PasswordHash)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice@example.com", "another-password")
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("rejects bad email", func(t *testing.T) {
		_, err := svc.Register(ctx, "not-an-email", "secret-password")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("rejects short password", func(t *testing.T) {
		_, err := svc.Register(ctx, "bob@example.com", "short")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "carol@example.com", "secret-password")
	require.NoError(t, err)

	t.Run("valid credentials open a session", func(t *testing.T) {
		session, err := svc.Login(ctx, "carol@example.com", "secret-password")
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, user.ID, session.UserID)

		got, err := svc.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		_, err := svc.Login(ctx, "carol@example.com", "wrong-password")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown user gets same error as wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "whatever-password")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("logout invalidates the session", func(t *testing.T) {
		session, err := svc.Login(ctx, "carol@example.com", "secret-password")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, session.Token))

		_, err = svc.Authenticate(ctx, session.Token)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("empty token rejected", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "")
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}
