// Package mockserver is an HTTP twin of the storefront backend. It serves
// the fixture catalog to everyone and keeps a separate profile, address book,
// cart and order list per signed-in user, so the client can be exercised
// end to end in the staging and production code paths.
package mockserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/metrics"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/mock"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// DefaultTokenTTL is the lifetime of issued session tokens.
const DefaultTokenTTL = 24 * time.Hour

type account struct {
	userID string
	hash   []byte
}

// Server serves the storefront HTTP API from fixtures.
type Server struct {
	log        *logger.Logger
	secret     []byte
	tokenTTL   time.Duration
	prefix     string
	origins    []string
	rps        float64
	burst      int
	bcryptCost int
	now        func() time.Time

	catalog  *mock.Provider
	accounts map[string]account

	mu     sync.Mutex
	states map[string]*mock.Provider

	faults     *faultQueue
	idempotent *idempotencyTracker
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithPrefix mounts the API under prefix, for example "/api".
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = "/" + strings.Trim(prefix, "/") }
}

// WithAllowedOrigins enables CORS for the given origins; "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRateLimit throttles API requests per user or remote address. A
// non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

// WithBcryptCost sets the cost used to hash fixture passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// WithClock sets the time source used for tokens and fixture state.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server seeded with the fixture account.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		secret:     []byte("yunnan-taste-dev-secret"),
		tokenTTL:   DefaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		states:     make(map[string]*mock.Provider),
		faults:     newFaultQueue(),
		idempotent: newIdempotencyTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewDefault("mockserver")
	}
	if s.prefix == "/" {
		s.prefix = ""
	}
	s.catalog = mock.New(mock.WithClock(s.now))

	hash, err := bcrypt.GenerateFromPassword([]byte(mock.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	s.accounts = map[string]account{
		mock.Username: {userID: s.catalog.Profile().ID, hash: hash},
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	if len(s.origins) > 0 {
		r.Use(newCORS(s.origins).Handler)
	}
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Route("/admin", s.adminRoutes)

	api := func(r chi.Router) {
		r.Use(s.faultInjection)
		if s.rps > 0 {
			r.Use(newRateLimiter(s.rps, s.burst, s.log).Handler)
		}
		r.Use(s.idempotency)
		s.routes(r)
	}
	if s.prefix == "" {
		r.Group(api)
	} else {
		r.Route(s.prefix, api)
	}
	return r
}

// state returns the mutable fixtures of userID, creating them on first use.
func (s *Server) state(userID string) *mock.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.states[userID]
	if !ok {
		p = mock.New(mock.WithClock(s.now))
		s.states[userID] = p
	}
	return p
}

// Reset drops every user's state, pending faults and remembered
// idempotency keys.
func (s *Server) Reset() {
	s.mu.Lock()
	s.states = make(map[string]*mock.Provider)
	s.mu.Unlock()
	s.faults.Reset()
	s.idempotent.Reset()
	s.log.Info("mock server state reset")
}
