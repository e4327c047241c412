package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/target/campus-portal/internal/core"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
	"github.com/target/campus-portal/internal/ports"
	"golang.org/x/sync/errgroup"
)

const maxNameLength = 100

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{5,20}$`)

// ProfileServiceOptions groups dependencies for ProfileService.
type ProfileServiceOptions struct {
	Profiles core.ProfileRepository
	Notifier ports.SessionNotifier // optional
	Logger   *slog.Logger
}

// ProfileService enforces who may read and change profiles.
type ProfileService struct {
	profiles core.ProfileRepository
	notifier ports.SessionNotifier
	logger   *slog.Logger
}

// NewProfileService constructs a new ProfileService.
func NewProfileService(opts ProfileServiceOptions) *ProfileService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		profiles: opts.Profiles,
		notifier: opts.Notifier,
		logger:   logger.With("component", "profile_service"),
	}
}

// Get returns the profile for userID or domainauth.ErrProfileNotFound.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domainauth.Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// Actor returns the profile of the session's subject.
func (s *ProfileService) Actor(ctx context.Context, sess domainauth.Session) (*domainauth.Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domainauth.ErrProfileNotFound) {
			return nil, apperrors.Forbidden("no profile for session")
		}
		return nil, err
	}
	return p, nil
}

// CanRead reports whether actor may read the profile of userID.
func CanRead(actor *domainauth.Profile, userID string) bool {
	return actor != nil && (actor.UserID == userID || actor.IsAdmin())
}

// Update applies patch to the profile of userID on behalf of actor.
//
// Subjects may change their own name, phone and avatar. Role and status changes are
// admin-only, and admins cannot change their own role or status.
func (s *ProfileService) Update(
	ctx context.Context,
	actor domainauth.Session,
	userID string,
	patch domainauth.ProfilePatch,
) (*domainauth.Profile, error) {
	if patch.IsEmpty() {
		return nil, apperrors.Validation("nothing to update")
	}
	actorProfile, err := s.Actor(ctx, actor)
	if err != nil {
		return nil, err
	}
	self := actorProfile.UserID == userID
	switch {
	case !self && !actorProfile.IsAdmin():
		return nil, apperrors.Forbidden("cannot update another user's profile")
	case patch.TouchesPrivileged() && !actorProfile.IsAdmin():
		return nil, apperrors.Forbidden("only admins can change role or status")
	case patch.TouchesPrivileged() && self:
		return nil, apperrors.Forbidden("admins cannot change their own role or status")
	}

	normalized, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	updated, err := s.profiles.Update(ctx, userID, normalized)
	if err != nil {
		if errors.Is(err, domainauth.ErrProfileNotFound) {
			return nil, apperrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.notifyUpdated(ctx, userID)
	s.logger.InfoContext(ctx, "profile updated",
		"user_id", userID, "by", actorProfile.UserID, "privileged", patch.TouchesPrivileged())
	return updated, nil
}

// List returns profiles matching opts.
func (s *ProfileService) List(ctx context.Context, opts model.ProfileListOptions) ([]*domainauth.Profile, error) {
	opts.Normalize()
	return s.profiles.List(ctx, opts)
}

// Summary returns per-role and per-status profile counts.
func (s *ProfileService) Summary(ctx context.Context) (*model.ProfileSummary, error) {
	var (
		byRole   map[domainauth.Role]int
		byStatus map[domainauth.Status]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byRole, err = s.profiles.CountByRole(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		byStatus, err = s.profiles.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	sum := &model.ProfileSummary{ByRole: byRole, ByStatus: byStatus}
	for _, n := range byRole {
		sum.Total += n
	}
	return sum, nil
}

func (s *ProfileService) notifyUpdated(ctx context.Context, userID string) {
	if s.notifier == nil {
		return
	}
	change := domainauth.SessionChange{Event: domainauth.EventUserUpdated, UserID: userID}
	if err := s.notifier.Publish(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "failed to publish profile update", "user_id", userID, "error", err)
	}
}

// normalizePatch trims text fields and validates every field present in patch.
func normalizePatch(patch domainauth.ProfilePatch) (domainauth.ProfilePatch, error) {
	out := patch
	if patch.FirstName != nil {
		v, err := normalizeName("first_name", *patch.FirstName)
		if err != nil {
			return out, err
		}
		out.FirstName = &v
	}
	if patch.LastName != nil {
		v, err := normalizeName("last_name", *patch.LastName)
		if err != nil {
			return out, err
		}
		out.LastName = &v
	}
	if patch.Phone != nil {
		v := strings.TrimSpace(*patch.Phone)
		if v != "" && !phonePattern.MatchString(v) {
			return out, apperrors.ValidationField("phone", "phone must be 5-20 digits, spaces, dashes or parentheses")
		}
		out.Phone = &v
	}
	if patch.AvatarURL != nil {
		v := strings.TrimSpace(*patch.AvatarURL)
		if v != "" {
			u, err := url.Parse(v)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return out, apperrors.ValidationField("avatar_url", "avatar_url must be an http(s) URL")
			}
		}
		out.AvatarURL = &v
	}
	if patch.Role != nil {
		r, err := domainauth.ParseRole(string(*patch.Role))
		if err != nil {
			return out, apperrors.ValidationField("role", err.Error())
		}
		out.Role = &r
	}
	if patch.Status != nil {
		st, err := domainauth.ParseStatus(string(*patch.Status))
		if err != nil {
			return out, apperrors.ValidationField("status", err.Error())
		}
		out.Status = &st
	}
	return out, nil
}

func normalizeName(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperrors.ValidationField(field, field+" cannot be empty")
	}
	if utf8.RuneCountInString(v) > maxNameLength {
		return "", apperrors.ValidationField(field, fmt.Sprintf("%s must be at most %d characters", field, maxNameLength))
	}
	return v, nil
}
