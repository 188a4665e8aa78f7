package authapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultLogoutMaxTries = 3
)

// Paths are the auth service endpoints relative to the base URL.
type Paths struct {
	Login     string
	VerifyMFA string
	Register  string
	Logout    string
}

// DefaultPaths are used unless WithPaths overrides them.
var DefaultPaths = Paths{
	Login:     "/auth/login",
	VerifyMFA: "/auth/mfa/verify",
	Register:  "/auth/register",
	Logout:    "/auth/logout",
}

// Client talks to the auth service over HTTP/JSON and keeps the issued
// session token in the credential store.
type Client struct {
	baseURL        string
	paths          Paths
	httpClient     *http.Client
	authedClient   *http.Client
	store          securestore.Store
	logoutMaxTries uint
	logoutBackOff  func() backoff.BackOff
}

var _ Service = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (timeouts, proxies, TLS).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithPaths(p Paths) ClientOption {
	return func(cl *Client) {
		cl.paths = p
	}
}

// WithLogoutRetry sets how many times logout is attempted and the backoff
// between attempts.
func WithLogoutRetry(maxTries uint, b func() backoff.BackOff) ClientOption {
	return func(cl *Client) {
		if maxTries > 0 {
			cl.logoutMaxTries = maxTries
		}
		if b != nil {
			cl.logoutBackOff = b
		}
	}
}

func NewClient(baseURL string, store securestore.Store, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[authapi.NewClient] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[authapi.NewClient] store is required")
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		paths:          DefaultPaths,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		store:          store,
		logoutMaxTries: defaultLogoutMaxTries,
		logoutBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			return b
		},
	}
	for _, opt := range options {
		opt(c)
	}
	c.authedClient = bearerClient(c.httpClient, store)

	return c, nil
}

// Login exchanges credentials for a session token, or for an MFA challenge
// when the account requires a second factor.
func (c *Client) Login(ctx context.Context, credentials Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.url(c.paths.Login), credentials, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	if resp.MFARequired {
		return &resp, nil
	}
	if err := c.persistToken(ctx, resp.Token); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return &resp, nil
}

func (c *Client) VerifyMFA(ctx context.Context, request MFAVerifyRequest) (*MFAVerifyResponse, error) {
	var resp MFAVerifyResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.url(c.paths.VerifyMFA), request, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyMFA]")
	}
	if err := c.persistToken(ctx, resp.Token); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyMFA]")
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, request RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.url(c.paths.Register), request, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Register]")
	}
	if err := c.persistToken(ctx, resp.Token); err != nil {
		return nil, errors.Wrap(err, "[Client.Register]")
	}
	return &resp, nil
}

// Logout revokes the stored token. With no token stored there is nothing
// to revoke and it returns nil. Transient failures are retried; the local
// token is left for the caller to remove.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.store.Get(ctx, securestore.KeyToken); err != nil {
		if errors.Is(err, securestore.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "[Client.Logout] read token")
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := doJSON(ctx, c.authedClient, http.MethodPost, c.url(c.paths.Logout), nil, nil)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return struct{}{}, backoff.Permanent(err)
		}
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("logout attempt failed")
		}
		return struct{}{}, err
	}, backoff.WithBackOff(c.logoutBackOff()), backoff.WithMaxTries(c.logoutMaxTries))
	if err != nil {
		return errors.Wrap(err, "[Client.Logout]")
	}
	return nil
}

func (c *Client) persistToken(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := c.store.Set(ctx, securestore.KeyToken, raw); err != nil {
		return errors.Wrap(err, "persist token")
	}
	return nil
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
