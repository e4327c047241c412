package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/campus-portal/internal/data/database"
	"github.com/target/campus-portal/internal/data/pgxutil"
	domainauth "github.com/target/campus-portal/internal/domain/auth"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

const profileColumns = `user_id, first_name, last_name, email, phone, role, status, avatar_url, registered_at, updated_at`

// ProfileRepo provides database operations for profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// GetByUserID returns the profile for a subject or domainauth.ErrProfileNotFound.
func (r *ProfileRepo) GetByUserID(ctx context.Context, userID string) (*domainauth.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
}

// GetByEmail returns the profile with the given email (case-insensitive).
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domainauth.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`,
		model.NormalizeEmail(email))
}

// Ensure inserts the profile when no row exists for its subject and returns the stored row.
// An existing profile is returned unchanged, so role and status edits are never overwritten by sign-in.
func (r *ProfileRepo) Ensure(ctx context.Context, p domainauth.Profile) (*domainauth.Profile, error) {
	if p.UserID == "" {
		return nil, errors.New("profile user_id is required")
	}
	if p.Role == "" {
		p.Role = domainauth.RoleStudent
	}
	if p.Status == "" {
		p.Status = domainauth.StatusActive
	}
	now := r.timeProvider.Now().UTC()

	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			WITH inserted AS (
				INSERT INTO profiles (user_id, first_name, last_name, email, phone, role, status, avatar_url, registered_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
				ON CONFLICT (user_id) DO NOTHING
				RETURNING `+profileColumns+`
			)
			SELECT `+profileColumns+` FROM inserted
			UNION ALL
			SELECT `+profileColumns+` FROM profiles WHERE user_id = $1
			LIMIT 1`,
			p.UserID, p.FirstName, p.LastName, model.NormalizeEmail(p.Email), p.Phone,
			p.Role, p.Status, p.AvatarURL, now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Update applies a partial update. An empty patch returns the current row.
func (r *ProfileRepo) Update(
	ctx context.Context,
	userID string,
	patch domainauth.ProfilePatch,
) (*domainauth.Profile, error) {
	if patch.IsEmpty() {
		return r.GetByUserID(ctx, userID)
	}

	setClause, args := r.buildUpdateClause(patch)
	args = append(args, userID)
	query := "UPDATE profiles SET " + setClause + " WHERE user_id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + profileColumns

	var out domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainauth.ErrProfileNotFound
		}
		return nil, fmt.Errorf("update profile: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

func (r *ProfileRepo) buildUpdateClause(patch domainauth.ProfilePatch) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.FirstName != nil {
		add("first_name", strings.TrimSpace(*patch.FirstName))
	}
	if patch.LastName != nil {
		add("last_name", strings.TrimSpace(*patch.LastName))
	}
	if patch.Phone != nil {
		add("phone", strings.TrimSpace(*patch.Phone))
	}
	if patch.AvatarURL != nil {
		// An empty string clears the avatar.
		var v *string
		if s := strings.TrimSpace(*patch.AvatarURL); s != "" {
			v = &s
		}
		add("avatar_url", v)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	add("updated_at", r.timeProvider.Now().UTC())
	return strings.Join(sets, ", "), args
}

// List returns profiles matching opts, newest registrations first.
func (r *ProfileRepo) List(ctx context.Context, opts model.ProfileListOptions) ([]*domainauth.Profile, error) {
	opts.Normalize()
	query, args := database.BuildListQuery(database.NewListQueryOptions("profiles",
		database.WithColumns(strings.Split(strings.ReplaceAll(profileColumns, " ", ""), ",")...),
		database.WithCondition(database.WhereCond("role", database.Equal, string(opts.Role))),
		database.WithCondition(database.WhereCond("status", database.Equal, string(opts.Status))),
		database.WithCondition(database.Search(strings.TrimSpace(opts.Search), "first_name", "last_name", "email")),
		database.WithOrderBy("registered_at", "DESC"),
		database.WithLimit(opts.Limit),
		database.WithOffset(opts.Offset),
	))

	var rowsOut []domainauth.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	res := make([]*domainauth.Profile, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// CountByRole returns the number of profiles per role.
func (r *ProfileRepo) CountByRole(ctx context.Context) (map[domainauth.Role]int, error) {
	counts, err := r.countBy(ctx, "role")
	if err != nil {
		return nil, err
	}
	out := make(map[domainauth.Role]int, len(counts))
	for k, v := range counts {
		out[domainauth.Role(k)] = v
	}
	return out, nil
}

// CountByStatus returns the number of profiles per status.
func (r *ProfileRepo) CountByStatus(ctx context.Context) (map[domainauth.Status]int, error) {
	counts, err := r.countBy(ctx, "status")
	if err != nil {
		return nil, err
	}
	out := make(map[domainauth.Status]int, len(counts))
	for k, v := range counts {
		out[domainauth.Status(k)] = v
	}
	return out, nil
}

type groupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func (r *ProfileRepo) countBy(ctx context.Context, column string) (map[string]int, error) {
	col := pgx.Identifier{column}.Sanitize()
	var rowsOut []groupCount
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+col+` AS key, COUNT(*)::int AS count FROM profiles GROUP BY `+col)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[groupCount])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count profiles by %s: %w", column, err)
	}
	out := make(map[string]int, len(rowsOut))
	for _, gc := range rowsOut {
		out[gc.Key] = gc.Count
	}
	return out, nil
}

func (r *ProfileRepo) getOne(ctx context.Context, q string, args ...any) (*domainauth.Profile, error) {
	var p domainauth.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		p, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainauth.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}
