package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/biometric/sensorfake"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("Direct success persists the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, true)
		f.init(t)

		result, err := f.manager.SignIn(ctx, testUserEmail, testUserPassword)
		require.NoError(t, err)
		require.False(t, result.MFARequired())
		require.Equal(t, testUserID, result.User.ID)

		require.Equal(t, sessions.Authenticated, f.manager.State())
		require.True(t, f.manager.IsAdmin())
		require.Equal(t, testUserID, f.storedProfile(t).ID)
		_, ok := f.stored(t, securestore.KeyToken)
		require.True(t, ok)
	})

	t.Run("Rejected credentials leave the session unchanged", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		f.seedProfile(t, &users.User{ID: "previous", Email: "prev@example.com"})
		f.init(t)

		_, err := f.manager.SignIn(ctx, testUserEmail, "wrong")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "previous", f.manager.User().ID)
		require.Equal(t, "previous", f.storedProfile(t).ID)
		require.Equal(t, sessions.Authenticated, f.manager.State())
	})

	t.Run("Invalid input never reaches the service", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		_, err := f.manager.SignIn(ctx, "not-an-email", testUserPassword)
		require.ErrorIs(t, err, auth.InvalidEmailErr)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = f.manager.SignIn(ctx, testUserEmail, "")
		require.ErrorIs(t, err, auth.InvalidPasswordErr)
	})

	t.Run("Failed profile write leaves memory untouched", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		store := &failingStore{Store: f.store}
		m, err := auth.NewSessionManager(auth.Collaborators{API: f.api, Store: store, Sensor: f.sensor})
		require.NoError(t, err)
		require.NoError(t, m.Init(ctx))

		store.fail = true
		_, err = m.SignIn(ctx, testUserEmail, testUserPassword)
		require.Error(t, err)
		require.Nil(t, m.User())
		require.Equal(t, sessions.Unauthenticated, m.State())
	})
}

func TestSessionManager_MFA(t *testing.T) {
	ctx := context.Background()
	mfaUser := &users.User{ID: "77", Email: testMFAEmail, Name: "Grace", MFType: users.MFAuthenticator}

	t.Run("Round trip survives a fresh bootstrap", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.init(t)

		result, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)
		require.True(t, result.MFARequired())
		require.Equal(t, auth.TempTokenIdentifier, result.Challenge.Identifier.Kind)
		require.True(t, result.Challenge.FirstLogin)
		require.Equal(t, "Grace", result.Challenge.UserInfo.Name)

		require.Nil(t, f.manager.User())
		require.Nil(t, f.storedProfile(t))
		require.Equal(t, sessions.MFAPending, f.manager.State())
		require.NotNil(t, f.manager.PendingMFA())

		user, err := f.manager.VerifyMFA(ctx, testMFACode, result.Challenge.Identifier, "")
		require.NoError(t, err)
		require.Equal(t, "77", user.ID)
		require.Equal(t, sessions.Authenticated, f.manager.State())
		require.Nil(t, f.manager.PendingMFA())

		restarted := f.newManager(t)
		require.NoError(t, restarted.Init(ctx))
		require.Equal(t, f.manager.User(), restarted.User())
		require.Equal(t, sessions.Authenticated, restarted.State())
	})

	t.Run("Numeric user id is sent instead of a token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, "", 77, "mfa-session-token")
		f.init(t)

		result, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)
		require.Equal(t, auth.UserID(77), result.Challenge.Identifier)

		_, err = f.manager.VerifyMFA(ctx, testMFACode, result.Challenge.Identifier, "")
		require.NoError(t, err)

		requests := f.api.VerifyRequests()
		require.Len(t, requests, 1)
		require.Empty(t, requests[0].TempToken)
		require.NotNil(t, requests[0].UserID)
		require.EqualValues(t, 77, *requests[0].UserID)
	})

	t.Run("Wrong code propagates the service error", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.init(t)

		_, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)

		_, err = f.manager.VerifyMFA(ctx, "654321", auth.TempToken(testTempToken), "")
		require.Error(t, err)
		apiErr, ok := errors.Cause(err).(*authapi.APIError)
		require.True(t, ok)
		require.Equal(t, 401, apiErr.Status)
		require.Nil(t, f.manager.User())
		require.Equal(t, sessions.MFAPending, f.manager.State())
	})

	t.Run("Malformed code is rejected locally", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		for _, code := range []string{"12345", "1234567", "12a456", ""} {
			_, err := f.manager.VerifyMFA(ctx, code, auth.TempToken(testTempToken), "")
			require.ErrorIs(t, err, auth.InvalidMFACodeErr, code)
		}
		require.Empty(t, f.api.VerifyRequests())
	})

	t.Run("Missing profile falls back to the directory", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.api.WithholdUserOnVerify(true)
		require.NoError(t, f.directory.Upsert(&users.User{ID: "77", Email: testMFAEmail, Name: "Grace H"}))
		f.init(t)

		user, err := f.manager.VerifyMFA(ctx, testMFACode, auth.TempToken(testTempToken), testMFAEmail)
		require.NoError(t, err)
		require.Equal(t, "Grace H", user.Name)
		require.Equal(t, 1, f.directory.Lookups())
		require.Equal(t, "77", f.storedProfile(t).ID)
	})

	t.Run("No profile and no hint succeeds without a user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.api.WithholdUserOnVerify(true)
		f.init(t)

		_, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)

		user, err := f.manager.VerifyMFA(ctx, testMFACode, auth.TempToken(testTempToken), "")
		require.NoError(t, err)
		require.Nil(t, user)
		require.Nil(t, f.manager.User())
		require.Nil(t, f.manager.PendingMFA())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.Zero(t, f.directory.Lookups())
	})

	t.Run("Cancel discards the challenge", func(t *testing.T) {
		f := setupTestFixture(t)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.init(t)

		_, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)

		f.manager.CancelMFA()
		require.Nil(t, f.manager.PendingMFA())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
	})

	t.Run("Cancelled re-sign-in keeps the live session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.init(t)

		_, err := f.manager.SignIn(ctx, testUserEmail, testUserPassword)
		require.NoError(t, err)
		require.Equal(t, sessions.Authenticated, f.manager.State())

		result, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)
		require.True(t, result.MFARequired())
		require.Equal(t, sessions.MFAPending, f.manager.State())
		require.Equal(t, testUserID, f.manager.User().ID)

		f.manager.CancelMFA()
		require.Nil(t, f.manager.PendingMFA())
		require.Equal(t, sessions.Authenticated, f.manager.State())
		require.Equal(t, testUserID, f.manager.User().ID)
		require.True(t, f.manager.Session().Authenticated())
	})

	t.Run("Profileless verify during re-sign-in keeps the live session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		f.api.AddMFAUser(mfaUser, testUserPassword, testMFACode, testTempToken, 0, "mfa-session-token")
		f.api.WithholdUserOnVerify(true)
		f.init(t)

		_, err := f.manager.SignIn(ctx, testUserEmail, testUserPassword)
		require.NoError(t, err)
		_, err = f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)

		user, err := f.manager.VerifyMFA(ctx, testMFACode, auth.TempToken(testTempToken), "")
		require.NoError(t, err)
		require.Nil(t, user)
		require.Nil(t, f.manager.PendingMFA())
		require.Equal(t, sessions.Authenticated, f.manager.State())
		require.Equal(t, testUserID, f.manager.User().ID)
	})
}

func TestSessionManager_SignUp(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.init(t)

	require.NoError(t, f.manager.SignUp(ctx, "new@example.com", "secret", "New Person"))
	require.Nil(t, f.manager.User())
	require.Len(t, f.api.Registrations(), 1)

	err := f.manager.SignUp(ctx, "new@example.com", "secret", "New Person")
	require.ErrorIs(t, err, apperrors.ErrConflict)

	err = f.manager.SignUp(ctx, "other@example.com", "secret", " ")
	require.ErrorIs(t, err, auth.InvalidNameErr)
	require.Len(t, f.api.Registrations(), 1)
}

func TestSessionManager_SignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent and keeps device settings", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		f.seed(t, securestore.KeyBiometryEnabled, "true")
		f.init(t)
		require.True(t, f.manager.SetPin(ctx, "2468"))

		_, err := f.manager.SignIn(ctx, testUserEmail, testUserPassword)
		require.NoError(t, err)

		require.NoError(t, f.manager.SignOut(ctx))
		require.NoError(t, f.manager.SignOut(ctx))

		require.Nil(t, f.manager.User())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		require.Nil(t, f.storedProfile(t))
		_, ok := f.stored(t, securestore.KeyToken)
		require.False(t, ok)

		flag, ok := f.stored(t, securestore.KeyBiometryEnabled)
		require.True(t, ok)
		require.Equal(t, "true", flag)
		_, ok = f.stored(t, securestore.KeyPin)
		require.True(t, ok)
		require.True(t, f.manager.HasPin())
		require.Equal(t, 2, f.api.LogoutCalls())
	})

	t.Run("Remote failure still clears locally", func(t *testing.T) {
		f := setupTestFixture(t)
		f.addUser(t, false)
		f.api.FailLogout(errors.New("network unreachable"))
		f.init(t)

		_, err := f.manager.SignIn(ctx, testUserEmail, testUserPassword)
		require.NoError(t, err)

		require.NoError(t, f.manager.SignOut(ctx))
		require.Nil(t, f.manager.User())
		require.Nil(t, f.storedProfile(t))
	})

	t.Run("Drops a pending challenge", func(t *testing.T) {
		f := setupTestFixture(t)
		f.sensor = sensorfake.NewFakeSensor(false)
		f.api.AddMFAUser(&users.User{ID: "9", Email: testMFAEmail}, testUserPassword, testMFACode, testTempToken, 0, "t")
		f.manager = f.newManager(t)
		f.init(t)

		_, err := f.manager.SignIn(ctx, testMFAEmail, testUserPassword)
		require.NoError(t, err)
		require.NoError(t, f.manager.SignOut(ctx))
		require.Nil(t, f.manager.PendingMFA())
	})
}
