package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/pkg/errors"
)

// Claims holds the parts of a session token the client cares about. The
// signature is not checked here; see Verifier.
type Claims struct {
	Subject   string
	Email     string
	Issuer    string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type decodeStrategy struct {
	name   string
	decode func(rawToken string) (map[string]any, error)
}

// strategies are tried in order. Backends have issued tokens with padded
// segments and with the standard base64 alphabet, so the strict JWT parser
// is only the first attempt.
var strategies = []decodeStrategy{
	{name: "jwt", decode: decodeWithParser},
	{name: "base64url", decode: segmentDecoder(base64.RawURLEncoding, false)},
	{name: "base64url-padded", decode: segmentDecoder(base64.URLEncoding, true)},
	{name: "base64std-padded", decode: segmentDecoder(base64.StdEncoding, true)},
	{name: "base64std", decode: segmentDecoder(base64.RawStdEncoding, false)},
}

// Decode extracts the claims from rawToken. It fails only when every
// strategy fails or when the token carries no usable exp claim.
func Decode(rawToken string) (*Claims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "[token.Decode] empty token")
	}

	var lastErr error
	for _, s := range strategies {
		m, err := s.decode(rawToken)
		if err != nil {
			lastErr = errors.Wrap(err, s.name)
			continue
		}
		return claimsFromMap(m)
	}
	return nil, errors.Wrapf(apperrors.ErrInvalidToken, "[token.Decode] all strategies failed: %v", lastErr)
}

// Expiry returns the exp claim of rawToken.
func Expiry(rawToken string) (time.Time, error) {
	c, err := Decode(rawToken)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

func decodeWithParser(rawToken string) (map[string]any, error) {
	t, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := t.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}
	return claims, nil
}

func segmentDecoder(enc *base64.Encoding, pad bool) func(string) (map[string]any, error) {
	return func(rawToken string) (map[string]any, error) {
		parts := strings.Split(rawToken, ".")
		if len(parts) < 2 {
			return nil, errors.New("token has no payload segment")
		}
		segment := parts[1]
		if pad {
			segment = strings.TrimRight(segment, "=")
			if rem := len(segment) % 4; rem != 0 {
				segment += strings.Repeat("=", 4-rem)
			}
		}
		payload, err := enc.DecodeString(segment)
		if err != nil {
			return nil, err
		}

		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errors.New("payload is not a JSON object")
		}
		return m, nil
	}
}

func claimsFromMap(m map[string]any) (*Claims, error) {
	exp, ok := utils.ToInt64(m["exp"])
	if !ok {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "[token.Decode] missing or malformed exp claim")
	}

	c := &Claims{ExpiresAt: claimTime(exp)}
	c.Subject, _ = m["sub"].(string)
	c.Email, _ = m["email"].(string)
	c.Issuer, _ = m["iss"].(string)
	if iat, ok := utils.ToInt64(m["iat"]); ok {
		c.IssuedAt = claimTime(iat)
	}
	if roles, ok := m["roles"].([]any); ok {
		c.Roles = utils.ToStringSlice(roles)
	}
	return c, nil
}

// maxClaimSeconds caps NumericDate claims; time.Unix overflows its internal
// representation for values near the top of the int64 range.
var maxClaimSeconds = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()

func claimTime(seconds int64) time.Time {
	if seconds > maxClaimSeconds {
		seconds = maxClaimSeconds
	}
	return time.Unix(seconds, 0)
}
