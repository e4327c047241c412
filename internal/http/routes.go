package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
)

// RouterServices holds all the services needed by the HTTP router.
// Nil services leave their routes unregistered.
type RouterServices struct {
	Auth     AuthAPI
	Profiles ProfileAPI
	Content  ContentAPI
	Uploads  UploadAPI

	CookieDomain string
	// SignInLimit throttles sign-in attempts per client IP; zero values use SignInLimit.
	SignInLimit RateLimitConfig
	// Heartbeat is the event stream keep-alive interval.
	Heartbeat time.Duration
	// Checks run on every /healthz request.
	Checks map[string]ReadinessCheck
	Logger *slog.Logger
}

// NewRouter creates and configures the API router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	health := healthHandler(logger, services.Checks)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	mux.HandleFunc("/", notFoundHandler)

	if services.Content != nil {
		registerPublicContentRoutes(mux, &ContentHandlers{Svc: services.Content, Logger: logger})
	}
	if services.Auth == nil {
		return mux
	}

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		CookieDomain: services.CookieDomain,
		Heartbeat:    services.Heartbeat,
		Logger:       logger,
	}
	limit := services.SignInLimit
	if limit.Logger == nil {
		limit.Logger = logger
	}
	registerAuthRoutes(mux, authHandlers, RateLimit(limit, IPKeyExtractor))

	if services.Profiles == nil {
		return mux
	}
	guard := &Authenticator{Sessions: services.Auth, Actors: services.Profiles, Logger: logger}
	mux.Handle("GET /api/auth/session", guard.RequireAuth()(http.HandlerFunc(authHandlers.Session)))
	mux.Handle("POST /api/auth/refresh", guard.RequireAuth()(http.HandlerFunc(authHandlers.Refresh)))
	mux.Handle("GET /api/auth/events", guard.RequireAuth()(http.HandlerFunc(authHandlers.Events)))

	registerProfileRoutes(mux, &ProfileHandlers{Svc: services.Profiles, Logger: logger}, guard)
	if services.Content != nil {
		h := &ContentHandlers{Svc: services.Content, Logger: logger}
		mux.Handle("POST /api/cms", guard.RequireRole(domainauth.RoleAdmin)(http.HandlerFunc(h.Upsert)))
	}
	if services.Uploads != nil {
		h := &UploadHandlers{Svc: services.Uploads, Logger: logger}
		mux.Handle("POST /api/upload", guard.RequireRole(domainauth.RoleInstructor)(http.HandlerFunc(h.Upload)))
	}
	return mux
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/sign-in", limit(http.HandlerFunc(h.SignIn)))
	mux.HandleFunc("POST /api/auth/sign-out", h.SignOut)
}

func registerProfileRoutes(mux *http.ServeMux, h *ProfileHandlers, guard *Authenticator) {
	mux.Handle("GET /api/profiles/{id}", guard.RequireAuth()(http.HandlerFunc(h.Get)))
	mux.Handle("PATCH /api/profiles/{id}", guard.RequireAuth()(http.HandlerFunc(h.Update)))

	admin := guard.RequireRole(domainauth.RoleAdmin)
	mux.Handle("GET /api/admin/profiles", admin(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/admin/summary", admin(http.HandlerFunc(h.Summary)))
}

func registerPublicContentRoutes(mux *http.ServeMux, h *ContentHandlers) {
	mux.HandleFunc("GET /api/cms", h.List)
	mux.HandleFunc("GET /api/cms/{section}", h.Get)
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("route not found")})
}
