package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/menta/internal/auth"
	"example.com/menta/internal/logging"
)

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int // zero disables rate limiting
	RateLimitWindow    time.Duration
}

// NewRouter builds the chi router serving the public API, /healthz and /metrics.
func NewRouter(cfg RouterConfig, h *Handler, authn auth.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimitRequests > 0 {
		r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			}),
		))
	}
	r.Use(authn.Wrap)
	r.Use(subjectLogger)

	r.Get("/healthz", healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.RegisterRoutes(r)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	return r
}

// RegisterRoutes wires the versioned endpoints onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Route("/activities", func(r chi.Router) {
			r.Post("/", h.createActivity)
			r.Get("/", h.listActivities)
			r.Get("/{activityID}", h.getActivity)
			r.Post("/{activityID}/comments", h.addComment)
		})
		r.Get("/feed", h.feed)
		r.Get("/progress/{userID}", h.progress)
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.createProfile)
			r.Get("/me", h.me)
			r.Get("/{userID}", h.getUser)
			r.Patch("/{userID}", h.updateProfile)
			r.Post("/{userID}/follow", h.follow)
			r.Delete("/{userID}/follow", h.unfollow)
		})
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func subjectLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := auth.FromContext(r.Context()); ok {
			logging.SetSubject(r.Context(), claims.Subject)
		}
		next.ServeHTTP(w, r)
	})
}
