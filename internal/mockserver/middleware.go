package mockserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Claims are the session token claims.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// =============================================================================
// JWT Helpers
// =============================================================================

func (s *Server) issueToken(userID, username string) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "yunnan-taste-mockserver",
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// requireAuth rejects requests without a valid bearer token and stores the
// user id in the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(httputil.HeaderAuthorization)
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		claims, err := s.validateToken(parts[1])
		if err != nil {
			s.log.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			writeError(w, http.StatusUnauthorized, "登录已过期")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// =============================================================================
// Request logging
// =============================================================================

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// requestLogger tags the request with a request id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(httputil.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := logger.ContextWithRequestID(r.Context(), requestID)
		w.Header().Set(httputil.HeaderRequestID, requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		entry := s.log.WithContext(ctx).WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", wrapped.statusCode).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if wrapped.statusCode >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}

// =============================================================================
// CORS
// =============================================================================

type corsMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

func newCORS(allowedOrigins []string) *corsMiddleware {
	m := &corsMiddleware{allowedOrigins: allowedOrigins}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			m.allowAll = true
			break
		}
	}
	return m
}

func (m *corsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (m.allowAll || m.isOriginAllowed(origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				strings.Join([]string{httputil.HeaderContentType, httputil.HeaderAuthorization, httputil.HeaderRequestID, httputil.HeaderIdempotencyKey}, ", "))
			w.Header().Set("Access-Control-Expose-Headers", httputil.HeaderRequestID+", "+headerReplayed)
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed matches origin exactly, or by host for entries with a
// leading dot: ".example.com" admits https://shop.example.com but not
// https://evil-example.com.
func (m *corsMiddleware) isOriginAllowed(origin string) bool {
	var host string
	if u, err := url.Parse(origin); err == nil {
		host = u.Hostname()
	}
	for _, allowed := range m.allowedOrigins {
		if allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, ".") && host != "" && strings.HasSuffix(host, allowed) {
			return true
		}
	}
	return false
}

// =============================================================================
// Rate limiting
// =============================================================================

const maxLimiters = 10000

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

func newRateLimiter(rps float64, burst int, log *logger.Logger) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		log:      log,
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(httputil.HeaderAuthorization)
		if key == "" {
			key = r.RemoteAddr
		}
		if !rl.limiter(key).Allow() {
			rl.log.WithContext(r.Context()).WithField("path", r.URL.Path).Warn("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "请求过于频繁，请稍后再试")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Idempotency
// =============================================================================

const headerReplayed = "Idempotent-Replayed"

type idempotencyEntry struct {
	status int
	body   []byte
}

// idempotencyTracker remembers POST responses by Idempotency-Key.
type idempotencyTracker struct {
	mu      sync.RWMutex
	entries map[string]idempotencyEntry
}

func newIdempotencyTracker() *idempotencyTracker {
	return &idempotencyTracker{entries: make(map[string]idempotencyEntry)}
}

func (t *idempotencyTracker) check(key string) (idempotencyEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	return e, ok
}

func (t *idempotencyTracker) store(key string, status int, body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = idempotencyEntry{status: status, body: body}
}

func (t *idempotencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]idempotencyEntry)
}

// recorder tees the response into a buffer.
type recorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotency replays the stored response of a POST whose key was already
// served. Keys are scoped by the Authorization header. Server errors are not
// stored so the client can retry them.
func (s *Server) idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(httputil.HeaderIdempotencyKey)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		key = r.Header.Get(httputil.HeaderAuthorization) + "|" + key
		if e, ok := s.idempotent.check(key); ok {
			w.Header().Set(httputil.HeaderContentType, "application/json")
			w.Header().Set(headerReplayed, "true")
			w.WriteHeader(e.status)
			_, _ = w.Write(e.body)
			return
		}
		rec := &recorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.statusCode < http.StatusInternalServerError {
			s.idempotent.store(key, rec.statusCode, rec.body.Bytes())
		}
	})
}
