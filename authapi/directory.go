package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gregjones/httpcache"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

const defaultUserByEmailPath = "/users/email/"

// DirectoryClient looks up profiles on the user service. Responses are
// cached in memory according to their Cache-Control headers.
type DirectoryClient struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

var _ users.Directory = (*DirectoryClient)(nil)

type DirectoryOption func(*directoryOptions)

type directoryOptions struct {
	httpClient *http.Client
	path       string
	cache      httpcache.Cache
}

func WithDirectoryHTTPClient(c *http.Client) DirectoryOption {
	return func(o *directoryOptions) {
		o.httpClient = c
	}
}

// WithUserByEmailPath sets the lookup path; the escaped email is appended.
func WithUserByEmailPath(path string) DirectoryOption {
	return func(o *directoryOptions) {
		o.path = path
	}
}

func WithDirectoryCache(cache httpcache.Cache) DirectoryOption {
	return func(o *directoryOptions) {
		o.cache = cache
	}
}

func NewDirectoryClient(baseURL string, store securestore.Store, options ...DirectoryOption) (*DirectoryClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[authapi.NewDirectoryClient] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[authapi.NewDirectoryClient] store is required")
	}

	o := directoryOptions{
		httpClient: &http.Client{Timeout: defaultTimeout},
		path:       defaultUserByEmailPath,
		cache:      httpcache.NewMemoryCache(),
	}
	for _, opt := range options {
		opt(&o)
	}

	authed := bearerClient(o.httpClient, store)
	cacheTransport := httpcache.NewTransport(o.cache)
	cacheTransport.Transport = authed.Transport

	return &DirectoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    o.path,
		httpClient: &http.Client{
			Transport: cacheTransport,
			Timeout:   o.httpClient.Timeout,
		},
	}, nil
}

// GetByEmail returns apperrors.ErrUserNotFound when the service has no
// profile for email.
func (d *DirectoryClient) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "[DirectoryClient.GetByEmail] email is required")
	}

	path := d.path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var raw json.RawMessage
	if err := doJSON(ctx, d.httpClient, http.MethodGet, d.baseURL+path+url.PathEscape(email), nil, &raw); err != nil {
		return nil, errors.Wrap(err, "[DirectoryClient.GetByEmail]")
	}

	user, err := decodeProfile(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[DirectoryClient.GetByEmail]")
	}
	return user, nil
}

// decodeProfile accepts a bare profile or one wrapped in "user" or "data".
func decodeProfile(raw json.RawMessage) (*users.User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, apperrors.ErrUserNotFound
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	for _, key := range []string{"user", "data"} {
		if inner, ok := wrapped[key]; ok && len(inner) > 0 && inner[0] == '{' {
			raw = inner
			break
		}
	}

	var user users.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	if user.ID == "" && user.Email == "" {
		return nil, apperrors.ErrUserNotFound
	}
	return &user, nil
}
