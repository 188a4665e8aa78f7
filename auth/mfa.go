package auth

import (
	"strconv"
	"strings"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/users"
)

// MFAIdentifierKind says which field of MFAIdentifier is set.
type MFAIdentifierKind int

const (
	TempTokenIdentifier MFAIdentifierKind = iota + 1
	UserIDIdentifier
)

// MFAIdentifier names the pending challenge when the code is verified. The
// auth service sends either a temporary token or the numeric user id, never
// both.
type MFAIdentifier struct {
	Kind      MFAIdentifierKind
	TempToken string
	UserID    int64
}

func TempToken(tempToken string) MFAIdentifier {
	return MFAIdentifier{Kind: TempTokenIdentifier, TempToken: tempToken}
}

func UserID(id int64) MFAIdentifier {
	return MFAIdentifier{Kind: UserIDIdentifier, UserID: id}
}

// ParseMFAIdentifier classifies a bare string for callers that lost the
// distinction: anything with a '.' is a token, all digits is a user id,
// everything else is treated as a token.
func ParseMFAIdentifier(s string) (MFAIdentifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MFAIdentifier{}, InvalidMFAIdentifierErr
	}
	if strings.Contains(s, ".") {
		return TempToken(s), nil
	}
	if allDigits(s) {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return UserID(id), nil
		}
	}
	return TempToken(s), nil
}

func (id MFAIdentifier) String() string {
	switch id.Kind {
	case TempTokenIdentifier:
		return "tempToken"
	case UserIDIdentifier:
		return "userId:" + strconv.FormatInt(id.UserID, 10)
	}
	return "none"
}

// request builds the verify payload carrying exactly one identifier.
func (id MFAIdentifier) request(code string) (authapi.MFAVerifyRequest, error) {
	switch id.Kind {
	case TempTokenIdentifier:
		if id.TempToken == "" {
			return authapi.MFAVerifyRequest{}, InvalidMFAIdentifierErr
		}
		return authapi.MFAVerifyRequest{Code: code, TempToken: id.TempToken}, nil
	case UserIDIdentifier:
		userID := id.UserID
		return authapi.MFAVerifyRequest{Code: code, UserID: &userID}, nil
	}
	return authapi.MFAVerifyRequest{}, InvalidMFAIdentifierErr
}

// MFAChallenge is the pending second factor after a password sign-in. It
// lives in memory only.
type MFAChallenge struct {
	Identifier MFAIdentifier
	UserInfo   *users.User // partial profile, for display only
	FirstLogin bool
	Method     users.MFAuthType
}

// SignInResult is either a signed-in user or a pending MFA challenge.
type SignInResult struct {
	User      *users.User
	Challenge *MFAChallenge
}

func (r *SignInResult) MFARequired() bool {
	return r != nil && r.Challenge != nil
}

func challengeFromLogin(resp *authapi.LoginResponse) (*MFAChallenge, error) {
	c := &MFAChallenge{
		UserInfo:   resp.UserInfo,
		FirstLogin: resp.FirstLogin,
		Method:     resp.MFAType,
	}
	switch {
	case resp.TempToken != "":
		c.Identifier = TempToken(resp.TempToken)
	case resp.UserID != "":
		id, err := resp.UserID.Int64()
		if err != nil {
			return nil, InvalidMFAIdentifierErr
		}
		c.Identifier = UserID(id)
	default:
		return nil, InvalidMFAIdentifierErr
	}
	return c, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
