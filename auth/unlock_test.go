package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/biometric"
	"github.com/jrsteele09/go-auth-session/biometric/sensorfake"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type rejectingVerifier struct {
	calls int
}

func (v *rejectingVerifier) Verify(context.Context, string) error {
	v.calls++
	return errors.New("signature mismatch")
}

// seedUnlockable leaves the store as a previous signed-in run with
// biometry enabled would.
func (f *testFixture) seedUnlockable(t *testing.T, exp time.Time) {
	t.Helper()
	f.seed(t, securestore.KeyBiometryEnabled, "true")
	f.seed(t, securestore.KeyToken, tokenExpiringAt(t, exp))
	f.seedProfile(t, &users.User{ID: testUserID, Email: testUserEmail})
}

func TestSessionManager_EnableBiometry(t *testing.T) {
	ctx := context.Background()

	t.Run("Success persists the flag", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		require.True(t, f.manager.EnableBiometry(ctx, true))
		require.True(t, f.manager.BiometryEnabled())
		flag, _ := f.stored(t, securestore.KeyBiometryEnabled)
		require.Equal(t, "true", flag)
		require.Len(t, f.sensor.Prompts(), 1)
		require.Equal(t, auth.DefaultBiometricPrompt, f.sensor.Prompts()[0])
	})

	t.Run("Failed challenge leaves the stored flag as it was", func(t *testing.T) {
		for _, prior := range []string{"", "false", "true"} {
			t.Run("prior="+prior, func(t *testing.T) {
				f := setupTestFixture(t)
				if prior != "" {
					f.seed(t, securestore.KeyBiometryEnabled, prior)
				}
				f.init(t)
				f.sensor.Queue(biometric.Result{Success: false, Error: "user_cancel"})

				require.False(t, f.manager.EnableBiometry(ctx, true))
				flag, ok := f.stored(t, securestore.KeyBiometryEnabled)
				require.Equal(t, prior != "", ok)
				require.Equal(t, prior, flag)
				require.Equal(t, prior == "true", f.manager.BiometryEnabled())
			})
		}
	})

	t.Run("No hardware never prompts", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)
		f.sensor.FailWith(errors.New("no sensor"))

		require.False(t, f.manager.EnableBiometry(ctx, true))
		_, ok := f.stored(t, securestore.KeyBiometryEnabled)
		require.False(t, ok)
	})

	t.Run("Absent sensor never prompts", func(t *testing.T) {
		f := setupTestFixture(t)
		f.sensor = sensorfake.NewFakeSensor(false)
		f.manager = f.newManager(t)
		f.init(t)

		require.False(t, f.manager.EnableBiometry(ctx, true))
		require.Empty(t, f.sensor.Prompts())
		require.False(t, f.manager.BiometryEnabled())
		_, ok := f.stored(t, securestore.KeyBiometryEnabled)
		require.False(t, ok)
	})

	t.Run("Disable always succeeds", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, securestore.KeyBiometryEnabled, "true")
		f.init(t)

		require.True(t, f.manager.EnableBiometry(ctx, false))
		require.False(t, f.manager.BiometryEnabled())
		flag, _ := f.stored(t, securestore.KeyBiometryEnabled)
		require.Equal(t, "false", flag)
		require.Empty(t, f.sensor.Prompts())
	})

	t.Run("Custom prompt", func(t *testing.T) {
		prompt := biometric.Prompt{Message: "Unlock your portfolio", DisableDeviceFallback: true}
		f := setupTestFixture(t, auth.WithBiometricPrompt(prompt))
		f.init(t)

		require.True(t, f.manager.EnableBiometry(ctx, true))
		require.Equal(t, prompt, f.sensor.Prompts()[0])
	})
}

func TestSessionManager_TryBiometricUnlock(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid token restores the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		f.init(t)
		require.NoError(t, f.manager.SignOut(ctx))
		f.seedUnlockable(t, testNow.Add(time.Hour))

		require.True(t, f.manager.TryBiometricUnlock(ctx))
		require.Equal(t, testUserID, f.manager.User().ID)
		require.Equal(t, sessions.Authenticated, f.manager.State())
	})

	t.Run("Disabled flag fails without prompting", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		f.seed(t, securestore.KeyBiometryEnabled, "false")
		f.init(t)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		require.Empty(t, f.sensor.Prompts())
	})

	t.Run("Failed challenge", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		f.init(t)
		f.sensor.Succeed(false)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		_, ok := f.stored(t, securestore.KeyToken)
		require.True(t, ok)
	})

	t.Run("Expired token purges token and profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(-time.Hour))
		f.init(t)
		require.NotNil(t, f.manager.User())

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		require.Nil(t, f.manager.User())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
		_, ok := f.stored(t, securestore.KeyToken)
		require.False(t, ok)
		require.Nil(t, f.storedProfile(t))

		flag, _ := f.stored(t, securestore.KeyBiometryEnabled)
		require.Equal(t, "true", flag)
	})

	t.Run("Clock skew boundary", func(t *testing.T) {
		tests := []struct {
			name   string
			age    time.Duration
			unlock bool
		}{
			{"29s past exp", 29 * time.Second, true},
			{"31s past exp", 31 * time.Second, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := setupTestFixture(t)
				f.seedUnlockable(t, testNow.Add(-tt.age))
				f.init(t)

				require.Equal(t, tt.unlock, f.manager.TryBiometricUnlock(ctx))
				_, ok := f.stored(t, securestore.KeyToken)
				require.Equal(t, tt.unlock, ok)
			})
		}
	})

	t.Run("Configured skew", func(t *testing.T) {
		f := setupTestFixture(t, auth.WithClockSkew(2*time.Minute))
		f.seedUnlockable(t, testNow.Add(-90*time.Second))
		f.init(t)

		require.True(t, f.manager.TryBiometricUnlock(ctx))
	})

	t.Run("Undecodable token fails and keeps it", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		f.seed(t, securestore.KeyToken, "opaque-token")
		f.init(t)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		_, ok := f.stored(t, securestore.KeyToken)
		require.True(t, ok)
	})

	t.Run("Overflowing exp is rejected without purging", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub": testUserID,
			"exp": 1e20,
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		f.seed(t, securestore.KeyToken, raw)
		f.init(t)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		stored, ok := f.stored(t, securestore.KeyToken)
		require.True(t, ok)
		require.Equal(t, raw, stored)
		require.NotNil(t, f.storedProfile(t))
	})

	t.Run("Exp near the int64 limit still unlocks", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedUnlockable(t, testNow.Add(time.Hour))
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub": testUserID,
			"exp": 9.22337203e18,
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		f.seed(t, securestore.KeyToken, raw)
		f.init(t)
		require.NoError(t, f.manager.SignOut(ctx))
		f.seed(t, securestore.KeyToken, raw)
		f.seedProfile(t, &users.User{ID: testUserID, Email: testUserEmail})

		require.True(t, f.manager.TryBiometricUnlock(ctx))
		require.Equal(t, testUserID, f.manager.User().ID)
	})

	t.Run("Missing token", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, securestore.KeyBiometryEnabled, "true")
		f.init(t)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
	})

	t.Run("Valid token without profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, securestore.KeyBiometryEnabled, "true")
		f.seed(t, securestore.KeyToken, tokenExpiringAt(t, testNow.Add(time.Hour)))
		f.init(t)

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		require.Nil(t, f.manager.User())
	})

	t.Run("Signature failure rejects without purging", func(t *testing.T) {
		v := &rejectingVerifier{}
		f := setupTestFixture(t, auth.WithTokenVerifier(v))
		f.seedUnlockable(t, testNow.Add(time.Hour))
		f.init(t)
		require.NoError(t, f.manager.SignOut(ctx))
		f.seedUnlockable(t, testNow.Add(time.Hour))

		require.False(t, f.manager.TryBiometricUnlock(ctx))
		require.Equal(t, 1, v.calls)
		require.Nil(t, f.manager.User())
		_, ok := f.stored(t, securestore.KeyToken)
		require.True(t, ok)
	})
}

func TestSessionManager_Pin(t *testing.T) {
	ctx := context.Background()

	t.Run("Minimum length", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		require.False(t, f.manager.SetPin(ctx, "123"))
		require.False(t, f.manager.HasPin())
		_, ok := f.stored(t, securestore.KeyPin)
		require.False(t, ok)

		require.True(t, f.manager.SetPin(ctx, "1234"))
		require.True(t, f.manager.HasPin())
	})

	t.Run("Digits only", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		require.False(t, f.manager.SetPin(ctx, "12a4"))
		require.False(t, f.manager.SetPin(ctx, "-1234"))
		require.False(t, f.manager.HasPin())
	})

	t.Run("Stored hashed", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)

		require.True(t, f.manager.SetPin(ctx, "1234"))
		stored, ok := f.stored(t, securestore.KeyPin)
		require.True(t, ok)
		require.NotContains(t, stored, "1234")
		require.True(t, strings.HasPrefix(stored, "$2"))
	})

	t.Run("Verify restores the profile", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)
		require.True(t, f.manager.SetPin(ctx, "9876"))
		f.seedProfile(t, &users.User{ID: testUserID, Email: testUserEmail})

		// Not bootstrapped, so nothing is in memory yet.
		f.manager = f.newManager(t)

		require.False(t, f.manager.VerifyPin(ctx, "0000"))
		require.Nil(t, f.manager.User())
		require.True(t, f.manager.VerifyPin(ctx, "9876"))
		require.Equal(t, testUserID, f.manager.User().ID)
		require.Equal(t, sessions.Authenticated, f.manager.State())
	})

	t.Run("Match without profile still reports true", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)
		require.True(t, f.manager.SetPin(ctx, "1357"))

		require.True(t, f.manager.VerifyPin(ctx, "1357"))
		require.Nil(t, f.manager.User())
		require.Equal(t, sessions.Unauthenticated, f.manager.State())
	})

	t.Run("Legacy plaintext pin migrates to a hash", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seed(t, securestore.KeyPin, "4321")
		f.init(t)
		require.True(t, f.manager.HasPin())

		require.False(t, f.manager.VerifyPin(ctx, "4320"))
		stored, _ := f.stored(t, securestore.KeyPin)
		require.Equal(t, "4321", stored)

		require.True(t, f.manager.VerifyPin(ctx, "4321"))
		stored, _ = f.stored(t, securestore.KeyPin)
		require.True(t, strings.HasPrefix(stored, "$2"))

		require.True(t, f.manager.VerifyPin(ctx, "4321"))
	})

	t.Run("Clear", func(t *testing.T) {
		f := setupTestFixture(t)
		f.init(t)
		require.True(t, f.manager.SetPin(ctx, "1234"))

		require.True(t, f.manager.ClearPin(ctx))
		require.False(t, f.manager.HasPin())
		require.False(t, f.manager.VerifyPin(ctx, "1234"))
	})
}
