package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/ports"
	"github.com/target/campus-portal/internal/service"
)

const defaultHeartbeat = 25 * time.Second

// AuthAPI defines the auth service operations the handlers need.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*service.SignInResult, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Subscribe(ctx context.Context, userID string) (ports.SessionSubscription, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthAPI
	CookieDomain string
	// Heartbeat is the comment interval on event streams; zero means 25s.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a session.
// POST /api/auth/sign-in.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, r, res.Session)
	WriteJSON(w, http.StatusOK, map[string]any{
		"session": res.Session,
		"profile": res.Profile,
	})
}

// SignOut revokes the caller's session if there is one. Repeated calls succeed.
// POST /api/auth/sign-out.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	h.clearCookie(w, r, SessionCookieName)
	if err := h.Svc.SignOut(r.Context(), token); err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Session returns the caller's live session.
// GET /api/auth/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeAuthRequired(w)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"session": session})
}

// Refresh rotates the caller's session token.
// POST /api/auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeAuthRequired(w)
		return
	}

	next, err := h.Svc.Refresh(r.Context(), session.ID)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	if _, err := r.Cookie(SessionCookieName); err == nil {
		h.setSessionCookie(w, r, *next)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"session": next})
}

// Events streams session changes for the caller's subject as server-sent events.
// The stream ends when the caller's own session is signed out or no longer valid.
// GET /api/auth/events.
func (h *AuthHandlers) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := GetUserSessionFromContext(ctx)
	if !ok {
		writeAuthRequired(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "streaming_unsupported",
			Err:     errors.New("streaming unsupported"),
		})
		return
	}

	sub, err := h.Svc.Subscribe(ctx, session.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	defer func() { _ = sub.Close() }()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	interval := h.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				return
			}
			if err := writeEvent(w, change); err != nil {
				h.logger().WarnContext(ctx, "event stream write failed", "error", err)
				return
			}
			flusher.Flush()
			if change.Event == domainauth.EventSignedOut && change.Session != nil && change.Session.ID == session.ID {
				return
			}
		case <-ticker.C:
			if _, err := h.Svc.GetSession(ctx, session.ID); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, change domainauth.SessionChange) error {
	b, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Event, b)
	return err
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors the attributes used when setting it so browsers match the deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   max(int(time.Until(s.ExpiresAt).Seconds()), 1),
	})
}
