package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-auth-session/authapi"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

const maxRequestBody = 1 << 20

// LoginHandler checks the password and either issues a token or opens an
// MFA challenge.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var credentials authapi.Credentials
		if !decodeBody(w, r, &credentials) {
			return
		}
		if strings.TrimSpace(credentials.Email) == "" || credentials.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		acc, err := s.accounts.authenticate(credentials.Email, credentials.Password)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		if acc.mfaCode != "" {
			s.writeChallenge(w, r, acc)
			return
		}

		s.accounts.markLogin(acc, s.nowTime())
		s.writeSession(w, r, acc.user, http.StatusOK)
	}
}

func (s *Server) writeChallenge(w http.ResponseWriter, r *http.Request, acc *account) {
	key := ""
	if s.userIDChallenges {
		key = strconv.FormatInt(acc.numericID, 10)
	}
	key, err := s.accounts.openChallenge(acc, key, s.nowTime().Add(s.challengeTTL))
	if err != nil {
		logError(r.Method, r.URL.Path, err.Error())
		writeJSONError(w, http.StatusInternalServerError, "could not start MFA challenge")
		return
	}

	user := acc.user
	resp := authapi.LoginResponse{
		MFARequired: true,
		UserInfo:    &user,
		FirstLogin:  s.accounts.firstLogin(acc),
		MFAType:     users.MFAuthenticator,
	}
	if s.userIDChallenges {
		resp.UserID = json.Number(key)
	} else {
		resp.TempToken = key
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeSession issues a token for user and writes the token and profile.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, user users.User, status int) {
	signed, err := s.issueToken(user)
	if err != nil {
		logError(r.Method, r.URL.Path, err.Error())
		writeJSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, status, authapi.MFAVerifyResponse{Token: signed, User: &user})
}

// VerifyMFAHandler answers a challenge opened by LoginHandler.
func (s *Server) VerifyMFAHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request authapi.MFAVerifyRequest
		if !decodeBody(w, r, &request) {
			return
		}

		key := request.TempToken
		if request.UserID != nil {
			key = strconv.FormatInt(*request.UserID, 10)
		}
		if key == "" || request.Code == "" {
			writeJSONError(w, http.StatusBadRequest, "code and tempToken or userId are required")
			return
		}

		acc, err := s.accounts.answerChallenge(key, request.Code, s.nowTime())
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}

		s.accounts.markLogin(acc, s.nowTime())
		s.writeSession(w, r, acc.user, http.StatusOK)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request authapi.RegisterRequest
		if !decodeBody(w, r, &request) {
			return
		}
		if strings.TrimSpace(request.Name) == "" {
			writeJSONError(w, http.StatusBadRequest, "name is required")
			return
		}

		_, err := s.accounts.create(Account{Email: request.Email, Password: request.Password, Name: request.Name})
		switch {
		case apperrors.Is(err, apperrors.ErrConflict):
			writeJSONError(w, http.StatusConflict, "email is already registered")
			return
		case apperrors.Is(err, apperrors.ErrInvalidInput):
			writeJSONError(w, http.StatusBadRequest, "email and password are required")
			return
		case err != nil:
			logError(r.Method, r.URL.Path, err.Error())
			writeJSONError(w, http.StatusInternalServerError, "could not create account")
			return
		}
		writeJSON(w, http.StatusCreated, authapi.RegisterResponse{})
	}
}

// LogoutHandler revokes the bearer token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeJSONError(w, http.StatusUnauthorized, "missing session")
			return
		}
		s.accounts.revoke(claims.ID, claims.ExpiresAt.Time)
		w.WriteHeader(http.StatusNoContent)
	}
}

// UserByEmailHandler returns the profile wrapped in "user". Responses are
// privately cacheable for a short time.
func (s *Server) UserByEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.accounts.get(r.PathValue("email"))
		if !ok {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=30")
		writeJSON(w, http.StatusOK, map[string]users.User{"user": user})
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.keys.JWKS()
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			writeJSONError(w, http.StatusInternalServerError, "could not publish keys")
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, jwks)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
