package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authapi/apifake"
	"github.com/jrsteele09/go-auth-session/biometric"
	"github.com/jrsteele09/go-auth-session/biometric/sensorfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type cliFixture struct {
	api     *apifake.FakeAuthAPI
	sensor  *sensorfake.FakeSensor
	out     *bytes.Buffer
	globals *Globals
}

func setupCLI(t *testing.T, stdin string) *cliFixture {
	t.Helper()

	store := securestore.NewMemoryStore()
	api := apifake.NewFakeAuthAPI(store)
	sensor := sensorfake.NewFakeSensor(true, biometric.Fingerprint)

	m, err := auth.NewSessionManager(auth.Collaborators{API: api, Store: store, Sensor: sensor},
		auth.WithPinHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	require.NoError(t, m.Init(context.Background()))

	out := &bytes.Buffer{}
	return &cliFixture{
		api:    api,
		sensor: sensor,
		out:    out,
		globals: &Globals{
			Manager: m,
			In:      strings.NewReader(stdin),
			Out:     out,
		},
	}
}

func testToken(t *testing.T) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestLoginCmd_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("Password only", func(t *testing.T) {
		f := setupCLI(t, "")
		f.api.AddUser(&users.User{ID: "1", Email: "a@b.com", Name: "Ada"}, "pw", testToken(t))

		cmd := &LoginCmd{Email: "a@b.com", Password: "pw"}
		require.NoError(t, cmd.Run(ctx, f.globals))
		assert.Contains(t, f.out.String(), "Signed in as Ada")
	})

	t.Run("Prompts for the MFA code", func(t *testing.T) {
		f := setupCLI(t, "246810\n")
		f.api.AddMFAUser(&users.User{ID: "2", Email: "m@b.com", Name: "Grace"}, "pw", "246810", "tmp.tok.en", 0, testToken(t))

		cmd := &LoginCmd{Email: "m@b.com", Password: "pw"}
		require.NoError(t, cmd.Run(ctx, f.globals))
		assert.Contains(t, f.out.String(), "MFA code: ")
		assert.Contains(t, f.out.String(), "Signed in as Grace")
		assert.Equal(t, sessions.Authenticated, f.globals.Manager.State())
	})

	t.Run("Bad password", func(t *testing.T) {
		f := setupCLI(t, "")
		f.api.AddUser(&users.User{ID: "1", Email: "a@b.com"}, "pw", testToken(t))

		cmd := &LoginCmd{Email: "a@b.com", Password: "nope"}
		require.Error(t, cmd.Run(ctx, f.globals))
	})
}

func TestVerifyMFACmd_Run(t *testing.T) {
	f := setupCLI(t, "")
	f.api.AddMFAUser(&users.User{ID: "5", Email: "m@b.com", Name: "Grace"}, "pw", "135790", "", 5, testToken(t))

	_, err := f.globals.Manager.SignIn(context.Background(), "m@b.com", "pw")
	require.NoError(t, err)

	cmd := &VerifyMFACmd{Identifier: "5", Code: "135790"}
	require.NoError(t, cmd.Run(context.Background(), f.globals))
	assert.Contains(t, f.out.String(), "Signed in as Grace")

	requests := f.api.VerifyRequests()
	require.Len(t, requests, 1)
	require.NotNil(t, requests[0].UserID)
}

func TestStatusCmd_Run(t *testing.T) {
	f := setupCLI(t, "")
	require.NoError(t, (&StatusCmd{}).Run(f.globals))

	out := f.out.String()
	assert.Contains(t, out, "Not signed in")
	assert.Contains(t, out, "unauthenticated")
	assert.Contains(t, out, "available=yes enabled=no fingerprint")
	assert.Contains(t, out, "PIN set:    no")
}

func TestRegisterAndLogoutCmd_Run(t *testing.T) {
	ctx := context.Background()
	f := setupCLI(t, "")

	require.NoError(t, (&RegisterCmd{Email: "n@b.com", Password: "pw", Name: "New"}).Run(ctx, f.globals))
	require.Error(t, (&RegisterCmd{Email: "n@b.com", Password: "pw", Name: "New"}).Run(ctx, f.globals))

	require.NoError(t, (&LogoutCmd{}).Run(ctx, f.globals))
	require.NoError(t, (&LogoutCmd{}).Run(ctx, f.globals))
	assert.Equal(t, 2, f.api.LogoutCalls())
}

func TestPinCmds_Run(t *testing.T) {
	ctx := context.Background()
	f := setupCLI(t, "")

	require.ErrorIs(t, (&PinSetCmd{Pin: "12"}).Run(ctx, f.globals), errPinRejected)
	require.NoError(t, (&PinSetCmd{Pin: "8642"}).Run(ctx, f.globals))
	require.ErrorIs(t, (&PinVerifyCmd{Pin: "0000"}).Run(ctx, f.globals), errPinMismatch)
	require.NoError(t, (&PinVerifyCmd{Pin: "8642"}).Run(ctx, f.globals))
	assert.Contains(t, f.out.String(), "PIN accepted")
	require.NoError(t, (&PinClearCmd{}).Run(ctx, f.globals))
	require.False(t, f.globals.Manager.HasPin())
}

func TestBiometryCmds_Run(t *testing.T) {
	ctx := context.Background()
	f := setupCLI(t, "")

	require.NoError(t, (&BiometryEnableCmd{}).Run(ctx, f.globals))
	require.True(t, f.globals.Manager.BiometryEnabled())

	require.ErrorIs(t, (&BiometryUnlockCmd{}).Run(ctx, f.globals), errUnlockFailed)

	require.NoError(t, (&BiometryDisableCmd{}).Run(ctx, f.globals))
	require.False(t, f.globals.Manager.BiometryEnabled())

	f.sensor.Succeed(false)
	require.ErrorIs(t, (&BiometryEnableCmd{}).Run(ctx, f.globals), errBiometryDeclined)
}

func TestNewSessionManager(t *testing.T) {
	t.Run("Bootstraps from an empty store directory", func(t *testing.T) {
		t.Setenv("SESSION_STORE_DIR", t.TempDir())
		t.Setenv("SESSION_STORE_PASSPHRASE", "correct horse")
		c, err := config.Load("")
		require.NoError(t, err)

		m, err := NewSessionManager(context.Background(), c)
		require.NoError(t, err)
		assert.False(t, m.Loading())
		assert.Nil(t, m.User())
		assert.False(t, m.BiometryAvailable())
	})

	t.Run("Requires a store passphrase", func(t *testing.T) {
		t.Setenv("SESSION_STORE_DIR", t.TempDir())
		t.Setenv("SESSION_STORE_PASSPHRASE", "")
		c, err := config.Load("")
		require.NoError(t, err)

		_, err = NewSessionManager(context.Background(), c)
		require.Error(t, err)
	})
}
