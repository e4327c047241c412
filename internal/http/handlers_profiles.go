package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

// ProfileAPI defines the profile service operations the handlers need.
type ProfileAPI interface {
	ActorReader
	Get(ctx context.Context, userID string) (*domainauth.Profile, error)
	Update(ctx context.Context, actor domainauth.Session, userID string, patch domainauth.ProfilePatch) (*domainauth.Profile, error)
	List(ctx context.Context, opts model.ProfileListOptions) ([]*domainauth.Profile, error)
	Summary(ctx context.Context) (*model.ProfileSummary, error)
}

// ProfileHandlers serves profile reads, updates and the admin listing.
type ProfileHandlers struct {
	Svc    ProfileAPI
	Logger *slog.Logger
}

func (h *ProfileHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Get returns one profile. Subjects read their own; admins read anyone's.
// GET /api/profiles/{id}.
func (h *ProfileHandlers) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeAuthRequired(w)
		return
	}
	id := r.PathValue("id")

	// A subject without a profile yet gets 404 rather than 403 for its own id.
	if id != session.UserID {
		actor, err := h.Svc.Actor(r.Context(), *session)
		if err != nil {
			writeServiceError(w, r, h.logger(), err)
			return
		}
		if !actor.IsAdmin() {
			writeServiceError(w, r, h.logger(), apperrors.Forbidden("cannot read another user's profile"))
			return
		}
	}

	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// Update applies a partial update and returns the merged profile.
// PATCH /api/profiles/{id}.
func (h *ProfileHandlers) Update(w http.ResponseWriter, r *http.Request) {
	session, ok := GetUserSessionFromContext(r.Context())
	if !ok {
		writeAuthRequired(w)
		return
	}
	var patch domainauth.ProfilePatch
	if !DecodeJSON(w, r, &patch) {
		return
	}

	p, err := h.Svc.Update(r.Context(), *session, r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// List returns profiles filtered by role, status and search text.
// GET /api/admin/profiles?role=&status=&q=&limit=&offset=.
func (h *ProfileHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := model.ProfileListOptions{Search: strings.TrimSpace(q.Get("q"))}
	if v := q.Get("role"); v != "" {
		role, err := domainauth.ParseRole(v)
		if err != nil {
			writeServiceError(w, r, h.logger(), apperrors.ValidationField("role", err.Error()))
			return
		}
		opts.Role = role
	}
	if v := q.Get("status"); v != "" {
		status, err := domainauth.ParseStatus(v)
		if err != nil {
			writeServiceError(w, r, h.logger(), apperrors.ValidationField("status", err.Error()))
			return
		}
		opts.Status = status
	}
	opts.Limit, opts.Offset = ParseLimitOffset(r, 50, 200)

	profiles, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	if profiles == nil {
		profiles = []*domainauth.Profile{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// Summary returns aggregate profile counts for the admin dashboard.
// GET /api/admin/summary.
func (h *ProfileHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Svc.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}
