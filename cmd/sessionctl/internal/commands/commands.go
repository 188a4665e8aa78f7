package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/biometric"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Globals struct {
	Debug   bool
	Version string
	Manager *auth.SessionManager
	In      io.Reader
	Out     io.Writer
}

// NewSessionManager wires the encrypted file store, the HTTP services and
// a headless biometric sensor into a bootstrapped SessionManager.
func NewSessionManager(ctx context.Context, c config.Config) (*auth.SessionManager, error) {
	store, err := securestore.NewFileStore(c.GetStoreDir(), c.GetStorePassphrase())
	if err != nil {
		return nil, errors.Wrap(err, "open credential store (set SESSION_STORE_PASSPHRASE)")
	}

	httpClient := &http.Client{Timeout: c.GetHTTPTimeout()}

	api, err := authapi.NewClient(c.GetBaseURL(), store,
		authapi.WithHTTPClient(httpClient),
		authapi.WithPaths(authapi.Paths{
			Login:     c.GetLoginPath(),
			VerifyMFA: c.GetVerifyMFAPath(),
			Register:  c.GetRegisterPath(),
			Logout:    c.GetLogoutPath(),
		}),
		authapi.WithLogoutRetry(c.GetLogoutMaxTries(), nil),
	)
	if err != nil {
		return nil, err
	}

	directory, err := authapi.NewDirectoryClient(c.GetUsersBaseURL(), store,
		authapi.WithDirectoryHTTPClient(httpClient),
		authapi.WithUserByEmailPath(c.GetUserByEmailPath()),
	)
	if err != nil {
		return nil, err
	}

	options := []auth.Option{
		auth.WithClockSkew(c.GetClockSkew()),
		auth.WithLogger(log.Logger),
		auth.WithBiometricPrompt(biometric.Prompt{
			Message:       c.GetBiometricPrompt(),
			CancelLabel:   auth.DefaultBiometricPrompt.CancelLabel,
			FallbackLabel: auth.DefaultBiometricPrompt.FallbackLabel,
		}),
	}
	if jwksURL := c.GetJWKSURL(); jwksURL != "" {
		options = append(options, auth.WithTokenVerifier(token.NewRemoteVerifier(ctx, c.GetTokenIssuer(), jwksURL)))
	}

	manager, err := auth.NewSessionManager(auth.Collaborators{
		API:       api,
		Store:     store,
		Sensor:    biometric.Unavailable{},
		Directory: directory,
	}, options...)
	if err != nil {
		return nil, err
	}

	if err := manager.Init(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

// prompt writes label and reads one trimmed line from in.
func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
