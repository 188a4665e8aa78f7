package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/rs/zerolog/log"
)

const defaultChallengeTTL = 5 * time.Minute

// Server is a development stand-in for the remote auth and user services.
// Accounts, MFA challenges and revocations live in memory; tokens are
// signed with a key published on the JWKS route.
type Server struct {
	env              string // Environment (e.g., "DEV", "PROD")
	mux              *http.ServeMux
	routes           []string
	issuer           string
	tokenTTL         time.Duration
	challengeTTL     time.Duration
	userIDChallenges bool
	keys             *KeyPair
	accounts         *accountRepo
	nowTime          func() time.Time
}

type Option func(*Server)

func WithNowTime(nowTime func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowTime
	}
}

// WithKeyPair signs tokens with kp instead of a freshly generated RSA key.
func WithKeyPair(kp *KeyPair) Option {
	return func(s *Server) {
		s.keys = kp
	}
}

// WithUserIDChallenges identifies MFA challenges by the account's numeric
// id rather than an opaque temp token.
func WithUserIDChallenges() Option {
	return func(s *Server) {
		s.userIDChallenges = true
	}
}

func New(c config.Config, options ...Option) (*Server, error) {
	s := &Server{
		env:          c.GetEnv(),
		mux:          http.NewServeMux(),
		issuer:       c.GetTokenIssuer(),
		tokenTTL:     c.GetTokenTTL(),
		challengeTTL: defaultChallengeTTL,
		accounts:     newAccountRepo(),
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.keys == nil {
		kp, err := GenerateRSAKeyPair(uuid.NewString(), 2048)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to create signing key: %w", err)
		}
		s.keys = kp
	}

	if err := s.InitialiseSystem(c); err != nil {
		return nil, fmt.Errorf("[Server New] Failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, message string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+message+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if colour, ok := methodColors[method]; ok {
		return colour + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
