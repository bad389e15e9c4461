package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hydro360/internal/auth"
	"hydro360/internal/logging"
	"hydro360/internal/metrics"
	"hydro360/models"
)

type userKey struct{}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// CurrentUser returns the account loaded by Authenticate, or nil.
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

type roleDenied struct {
	Message  string        `json:"message"`
	Required []models.Role `json:"required"`
	Current  models.Role   `json:"current"`
}

type permissionDenied struct {
	Message  string              `json:"message"`
	Required models.Permission   `json:"required"`
	Current  []models.Permission `json:"current"`
}

// requestID accepts an incoming X-Request-ID or assigns one, and exposes it
// to the logging context.
func requestID(next http.Handler) http.Handler {
	chiRequestID := chimiddleware.RequestID(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(chimiddleware.RequestIDHeader)
		if id == "" {
			id = logging.GenerateRequestID()
			r.Header.Set(chimiddleware.RequestIDHeader, id)
		}
		w.Header().Set(chimiddleware.RequestIDHeader, id)
		ctx := logging.ContextWithRequestID(r.Context(), id)
		chiRequestID.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := logging.Ctx(r.Context()).Debug()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// prometheusMetrics records request counts and latencies by route pattern.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}

// Authenticate validates the bearer token and loads the caller's current
// account. The role on the token is ignored in favour of the stored one.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, err := auth.ParseBearer(r.Header.Get("Authorization"), s.opts.JWTSecret)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("authentication rejected")
			if errors.Is(err, auth.ErrMissingToken) {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		u, err := auth.LoadActiveUser(ctx, s.store.Users, p)
		switch {
		case errors.Is(err, auth.ErrUnknownUser):
			logging.Ctx(ctx).Debug().Str("user_id", p.UserID).Msg("token subject no longer exists")
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		case errors.Is(err, auth.ErrDeactivated):
			logging.Ctx(ctx).Debug().Str("user_id", p.UserID).Msg("deactivated account rejected")
			writeMessage(w, http.StatusForbidden, "Account is deactivated")
			return
		case err != nil:
			serverError(w, r, err, "Authentication failed")
			return
		}

		ctx = auth.WithPrincipal(ctx, &auth.Principal{UserID: u.ID, Role: u.Role})
		ctx = withUser(ctx, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers whose stored role is one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := CurrentUser(r.Context())
			if u == nil {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !u.HasRole(roles...) {
				logging.Ctx(r.Context()).Debug().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("role check failed")
				writeJSON(w, http.StatusForbidden, roleDenied{
					Message:  "Insufficient permissions",
					Required: roles,
					Current:  u.Role,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission allows only callers whose effective permissions include p.
func RequirePermission(p models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := CurrentUser(r.Context())
			if u == nil {
				writeMessage(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			perms := u.EffectivePermissions()
			for _, have := range perms {
				if have == p {
					next.ServeHTTP(w, r)
					return
				}
			}
			logging.Ctx(r.Context()).Debug().Str("user_id", u.ID).Str("permission", string(p)).Msg("permission check failed")
			writeJSON(w, http.StatusForbidden, permissionDenied{
				Message:  "Permission denied",
				Required: p,
				Current:  perms,
			})
		})
	}
}
