package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/campus-portal/internal/data/pgxutil"
	"github.com/target/campus-portal/internal/domain/model"
	apperrors "github.com/target/campus-portal/internal/errors"
)

// ErrContentNotFound is returned when a content section does not exist.
var ErrContentNotFound = errors.New("content section not found")

const contentColumns = `section, data, updated_by, updated_at`

// ContentRepo stores CMS sections as JSONB.
type ContentRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewContentRepo creates a new ContentRepo.
func NewContentRepo(db *sql.DB) *ContentRepo {
	return &ContentRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewContentRepoWithTimeProvider creates a ContentRepo with a custom time provider.
func NewContentRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ContentRepo {
	return &ContentRepo{DB: db, timeProvider: tp}
}

// Upsert replaces the data of a section, creating it when missing.
func (r *ContentRepo) Upsert(ctx context.Context, req *model.UpsertContentRequest) (*model.ContentSection, error) {
	if req == nil {
		return nil, errors.New("upsert content request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return r.writeOne(ctx, `
		INSERT INTO site_content (section, data, updated_by, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (section) DO UPDATE
		SET data = EXCLUDED.data, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
		RETURNING `+contentColumns,
		req.Section, req.Data, req.UpdatedBy, r.timeProvider.Now().UTC())
}

// MergeFields sets individual keys of a section's data, creating the section when missing.
func (r *ContentRepo) MergeFields(ctx context.Context, section string, fields map[string]any, updatedBy string) error {
	req := &model.UpsertContentRequest{Section: section, Data: fields}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	_, err := r.writeOne(ctx, `
		INSERT INTO site_content (section, data, updated_by, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (section) DO UPDATE
		SET data = site_content.data || EXCLUDED.data, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
		RETURNING `+contentColumns,
		req.Section, req.Data, updatedBy, r.timeProvider.Now().UTC())
	return err
}

// Get returns one section.
func (r *ContentRepo) Get(ctx context.Context, section string) (*model.ContentSection, error) {
	var out model.ContentSection
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+contentColumns+` FROM site_content WHERE section = $1`, section)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ContentSection])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("get content section: %w", err)
	}
	return &out, nil
}

// List returns every section ordered by name.
func (r *ContentRepo) List(ctx context.Context) ([]*model.ContentSection, error) {
	var rowsOut []model.ContentSection
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+contentColumns+` FROM site_content ORDER BY section`)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ContentSection])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list content sections: %w", err)
	}
	res := make([]*model.ContentSection, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

func (r *ContentRepo) writeOne(ctx context.Context, q string, args ...any) (*model.ContentSection, error) {
	var out model.ContentSection
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ContentSection])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("write content section: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}
