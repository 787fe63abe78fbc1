// Package httpapi implements the HTTP boundary: request
// authentication, dispatch to the resolved signing backend, and
// translation of the internal/models error taxonomy into HTTP
// responses. The upload size bound is enforced by the backends.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ralt/signserver/internal/auth"
	"github.com/ralt/signserver/internal/backend"
	"github.com/ralt/signserver/internal/models"
)

// Server bundles the dependencies every handler needs.
type Server struct {
	router  chi.Router
	backend backend.Backend
	users   *auth.UserStore
	issuer  *auth.Issuer
	log     *logrus.Logger

	maxUploadBytes int64
}

// New builds a Server with its full route table wired.
func New(b backend.Backend, users *auth.UserStore, issuer *auth.Issuer, log *logrus.Logger, maxUploadBytes int64) *Server {
	s := &Server{
		backend:        b,
		users:          users,
		issuer:         issuer,
		log:            log,
		maxUploadBytes: maxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/ping", s.handlePing)
	r.Post("/token", s.handleToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/sign", s.handleSign)
		r.Post("/sign-batch", s.handleSignBatch)
	})

	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one structured line per request via logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Info("request")
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("pong"))
}

// contextKey avoids collisions with other packages' context values.
type contextKey string

const claimsContextKey contextKey = "signserver.claims"

func withClaims(ctx context.Context, c *models.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

func claimsFromContext(ctx context.Context) (*models.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*models.Claims)
	return c, ok
}
