package auth

import (
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	cfg     Config
	skipper Skipper
}

// NewMiddleware constructs Middleware. Health checks, metrics scrapes and CORS
// preflights pass through unauthenticated.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{cfg: cfg, skipper: func(r *http.Request) bool {
		return r.Method == http.MethodOptions || r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper != nil && m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return nil, ErrInvalidToken
	}
	return ParseClaims(header[len("Bearer "):], m.cfg)
}
