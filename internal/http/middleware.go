package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// SessionCookieName is the cookie browsers carry the session token in.
const SessionCookieName = "session_id"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush lets event streams pass through the logger.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionReader resolves a session token.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// ActorReader resolves the profile behind a session.
type ActorReader interface {
	Actor(ctx context.Context, sess domainauth.Session) (*domainauth.Profile, error)
}

// Authenticator builds the auth guards.
type Authenticator struct {
	Sessions SessionReader
	Actors   ActorReader
	Logger   *slog.Logger
}

// RequireAuth returns a middleware that requires a live session.
// If the request carries none, it returns a 401 Unauthorized response.
func (a *Authenticator) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := a.sessionFromRequest(r)
			if session == nil {
				writeAuthRequired(w)
				return
			}
			ctx := SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that requires a session whose profile role is at
// least minRole. The caller's profile is added to the request context.
func (a *Authenticator) RequireRole(minRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := a.sessionFromRequest(r)
			if session == nil {
				writeAuthRequired(w)
				return
			}

			actor, err := a.Actors.Actor(r.Context(), *session)
			if err != nil {
				writeServiceError(w, r, a.logger(), err)
				return
			}
			if !hasRequiredRole(actor.Role, minRole) {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}

			ctx := SetSessionInContext(r.Context(), session)
			ctx = SetActorInContext(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// sessionFromRequest retrieves and validates the session named by the request's token.
func (a *Authenticator) sessionFromRequest(r *http.Request) *domainauth.Session {
	token := tokenFromRequest(r)
	if token == "" {
		return nil
	}
	session, err := a.Sessions.GetSession(r.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) {
			a.logger().WarnContext(r.Context(), "session lookup failed", "error", err)
		}
		return nil
	}
	return session
}

// tokenFromRequest reads a bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeAuthRequired(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusUnauthorized,
		ErrCode: "authentication_required",
		Err:     errors.New("authentication required"),
	})
}

// hasRequiredRole checks if the user's role meets the required role.
// Role hierarchy: Student < Instructor < Admin. Unknown roles never pass.
func hasRequiredRole(userRole, requiredRole domainauth.Role) bool {
	userLevel, requiredLevel := userRole.Level(), requiredRole.Level()
	if userLevel < 0 || requiredLevel < 0 {
		return false
	}
	return userLevel >= requiredLevel
}
