// Package httpapi serves the Hydro360 REST API consumed by the web client.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydro360/internal/auth"
	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/internal/upload"
	"hydro360/internal/weather"
	"hydro360/models"
	"hydro360/repository"
)

// Options carries the settings the handlers depend on.
type Options struct {
	JWTSecret         string
	TokenTTL          time.Duration
	BcryptCost        int
	ResetTokenTTL     time.Duration
	CORSOrigins       []string
	RateLimitRequests int // per IP on the credential endpoints; <= 0 disables limiting
	RateLimitWindow   time.Duration
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store    *repository.Store
	uploads  upload.Store
	weather  *weather.Client
	notifier ResetNotifier
	opts     Options
	now      func() time.Time
}

// New builds a Server. A nil weather client answers /api/weather with 503.
func New(store *repository.Store, uploads upload.Store, wc *weather.Client, opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = auth.DefaultBcryptCost
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = 15 * time.Minute
	}
	return &Server{
		store:    store,
		uploads:  uploads,
		weather:  wc,
		notifier: logNotifier{},
		opts:     opts,
		now:      time.Now,
	}
}

// WithNotifier replaces the default reset-token notifier.
func (s *Server) WithNotifier(n ResetNotifier) *Server {
	if n != nil {
		s.notifier = n
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(prometheusMetrics)

	r.Get("/api", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, "Hydro360 API is running")
	})
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	if local, ok := s.uploads.(*upload.LocalStore); ok {
		r.Handle(upload.LocalURLPrefix+"*", http.StripPrefix(upload.LocalURLPrefix, http.FileServer(http.Dir(local.Dir()))))
	}

	strict := s.strictRateLimit()
	r.Route("/api/auth", func(r chi.Router) {
		r.With(strict).Post("/register", s.register)
		r.With(strict).Post("/login", s.login)
		r.With(strict).Post("/forgot-password", s.forgotPassword)
		r.With(strict).Post("/reset-password", s.resetPassword)
		r.Post("/verify", s.verify)

		r.Group(func(r chi.Router) {
			r.Use(s.Authenticate)
			r.Get("/me", s.me)
			r.Patch("/profile", s.updateProfile)
		})
	})

	r.Route("/api/reports", func(r chi.Router) {
		r.Use(s.Authenticate)
		r.Get("/", s.listReports)
		r.Post("/", s.createReport)
		r.Get("/user", s.listMyReports)
		r.Get("/nearby", s.nearbyReports)
		r.Get("/{id}", s.getReport)
		r.Patch("/{id}", s.updateReport)
		r.Delete("/{id}", s.deleteReport)
		r.Post("/{id}/comments", s.addComment)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.Authenticate)
		r.With(RequireRole(models.RoleAdmin, models.RoleSuperAdmin)).Get("/dashboard/stats", s.dashboardStats)
		r.With(RequirePermission(models.PermViewReports)).Get("/reports", s.adminListReports)
		r.With(RequirePermission(models.PermManageReports)).Put("/reports/{id}", s.adminUpdateReport)
		r.With(RequirePermission(models.PermViewUsers)).Get("/users", s.adminListUsers)
		r.With(RequirePermission(models.PermManageUsers)).Put("/users/{id}", s.adminUpdateUser)
		r.With(RequirePermission(models.PermEmergencyResponse)).Get("/emergency-alerts", s.emergencyAlerts)
		r.With(RequirePermission(models.PermViewAnalytics)).Get("/analytics/reports-trend", s.reportsTrend)
		r.With(RequirePermission(models.PermViewAnalytics)).Get("/analytics/performance", s.performance)
	})

	r.With(s.Authenticate).Get("/api/dashboard", s.userDashboard)
	r.With(s.Authenticate).Get("/api/weather", s.weatherLookup)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	return r
}

// strictRateLimit limits the credential endpoints per client IP. One limiter
// is shared by every route it is attached to.
func (s *Server) strictRateLimit() func(http.Handler) http.Handler {
	if s.opts.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.opts.RateLimitRequests,
		s.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.store.Ping != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			writeMessage(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
