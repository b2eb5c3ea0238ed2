package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/codeassist-auth/account"
	"github.com/jrsteele09/codeassist-auth/authchain"
	"github.com/jrsteele09/codeassist-auth/internal/config"
	"github.com/jrsteele09/codeassist-auth/kvstore"
	"github.com/jrsteele09/codeassist-auth/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	accounts *account.Service
	sessions *sessions.Manager
	chain    *authchain.Validator
	store    kvstore.Store
	log      zerolog.Logger
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

func New(config config.Config, accounts *account.Service, manager *sessions.Manager, validator *authchain.Validator, store kvstore.Store, options ...Option) (*Server, error) {
	switch {
	case config == nil:
		return nil, errors.New("[Server New] config is required")
	case accounts == nil:
		return nil, errors.New("[Server New] account service is required")
	case manager == nil:
		return nil, errors.New("[Server New] session manager is required")
	case validator == nil:
		return nil, errors.New("[Server New] validator is required")
	case store == nil:
		return nil, errors.New("[Server New] store is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		accounts: accounts,
		sessions: manager,
		chain:    validator,
		store:    store,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.env = config.GetEnv()

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
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
