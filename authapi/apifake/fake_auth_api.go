package apifake

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/securestore"
	"github.com/jrsteele09/go-auth-session/users"
)

var _ authapi.Service = (*FakeAuthAPI)(nil)

type account struct {
	password   string
	user       *users.User
	mfaCode    string // empty when MFA is off
	tempToken  string
	userID     int64
	firstLogin bool
	token      string
}

// FakeAuthAPI is an in-memory auth service. Like the HTTP client it writes
// issued tokens into the credential store.
type FakeAuthAPI struct {
	accounts      map[string]*account // keyed by lower-case email
	store         securestore.Store
	withholdUser  bool
	logoutErr     error
	logoutCalls   int
	verifyCalls   []authapi.MFAVerifyRequest
	registrations []authapi.RegisterRequest
	lock          sync.Mutex
}

func NewFakeAuthAPI(store securestore.Store) *FakeAuthAPI {
	return &FakeAuthAPI{
		accounts: make(map[string]*account),
		store:    store,
	}
}

// AddUser registers an account that signs in without MFA and receives token.
func (f *FakeAuthAPI) AddUser(user *users.User, password, token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.accounts[strings.ToLower(user.Email)] = &account{password: password, user: user, token: token}
}

// AddMFAUser registers an account that must answer code. A tempToken of ""
// makes the challenge identify the account by its numeric userID instead.
func (f *FakeAuthAPI) AddMFAUser(user *users.User, password, code, tempToken string, userID int64, token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.accounts[strings.ToLower(user.Email)] = &account{
		password:   password,
		user:       user,
		mfaCode:    code,
		tempToken:  tempToken,
		userID:     userID,
		firstLogin: true,
		token:      token,
	}
}

// WithholdUserOnVerify makes VerifyMFA succeed without returning a profile.
func (f *FakeAuthAPI) WithholdUserOnVerify(withhold bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.withholdUser = withhold
}

func (f *FakeAuthAPI) FailLogout(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.logoutErr = err
}

func (f *FakeAuthAPI) LogoutCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}

func (f *FakeAuthAPI) VerifyRequests() []authapi.MFAVerifyRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]authapi.MFAVerifyRequest(nil), f.verifyCalls...)
}

func (f *FakeAuthAPI) Registrations() []authapi.RegisterRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]authapi.RegisterRequest(nil), f.registrations...)
}

func (f *FakeAuthAPI) Login(ctx context.Context, credentials authapi.Credentials) (*authapi.LoginResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	acc, ok := f.accounts[strings.ToLower(credentials.Email)]
	if !ok || acc.password != credentials.Password {
		return nil, &authapi.APIError{Status: 401, Message: "invalid email or password"}
	}

	if acc.mfaCode != "" {
		resp := &authapi.LoginResponse{
			MFARequired: true,
			TempToken:   acc.tempToken,
			UserInfo:    &users.User{Email: acc.user.Email, Name: acc.user.Name},
			FirstLogin:  acc.firstLogin,
			MFAType:     users.MFAuthenticator,
		}
		if acc.tempToken == "" {
			resp.UserID = json.Number(strconv.FormatInt(acc.userID, 10))
		}
		return resp, nil
	}

	if err := f.store.Set(ctx, securestore.KeyToken, acc.token); err != nil {
		return nil, err
	}
	u := *acc.user
	return &authapi.LoginResponse{Token: acc.token, User: &u}, nil
}

func (f *FakeAuthAPI) VerifyMFA(ctx context.Context, request authapi.MFAVerifyRequest) (*authapi.MFAVerifyResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.verifyCalls = append(f.verifyCalls, request)

	for _, acc := range f.accounts {
		if acc.mfaCode == "" {
			continue
		}
		matches := (request.TempToken != "" && request.TempToken == acc.tempToken) ||
			(request.UserID != nil && *request.UserID == acc.userID && acc.tempToken == "")
		if !matches {
			continue
		}
		if request.Code != acc.mfaCode {
			return nil, &authapi.APIError{Status: 401, Message: "invalid code"}
		}
		acc.firstLogin = false
		if err := f.store.Set(ctx, securestore.KeyToken, acc.token); err != nil {
			return nil, err
		}
		if f.withholdUser {
			return &authapi.MFAVerifyResponse{Token: acc.token}, nil
		}
		u := *acc.user
		return &authapi.MFAVerifyResponse{Token: acc.token, User: &u}, nil
	}
	return nil, &authapi.APIError{Status: 401, Message: "challenge expired"}
}

func (f *FakeAuthAPI) Register(_ context.Context, request authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if _, ok := f.accounts[strings.ToLower(request.Email)]; ok {
		return nil, &authapi.APIError{Status: 409, Message: "email already registered"}
	}
	f.registrations = append(f.registrations, request)
	f.accounts[strings.ToLower(request.Email)] = &account{
		password: request.Password,
		user:     &users.User{ID: strconv.Itoa(len(f.accounts) + 1), Email: request.Email, Name: request.Name},
	}
	return &authapi.RegisterResponse{}, nil
}

func (f *FakeAuthAPI) Logout(context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

