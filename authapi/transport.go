package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// storeTokenSource serves the session token held in the credential store
// as an oauth2 bearer token.
type storeTokenSource struct {
	store securestore.Store
}

var _ oauth2.TokenSource = (*storeTokenSource)(nil)

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	raw, err := s.store.Get(context.Background(), securestore.KeyToken)
	if err != nil {
		return nil, errors.Wrap(err, "[storeTokenSource.Token]")
	}
	t := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	// Opaque tokens carry no exp; a zero Expiry means "never expires".
	if exp, err := token.Expiry(raw); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// bearerClient wraps base so every request carries the stored token.
func bearerClient(base *http.Client, store securestore.Store) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: &storeTokenSource{store: store},
			Base:   base.Transport,
		},
		Timeout: base.Timeout,
	}
}

// doJSON sends body as JSON and decodes a 2xx reply into out. Non-2xx
// replies become *APIError.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	requestID := uuid.New().String()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("requestID", requestID).Str("method", method).Str("url", url).Msg("request failed")
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	log.Debug().
		Str("requestID", requestID).
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("remote call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
