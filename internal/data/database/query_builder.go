// Package database builds parameterized list queries with sanitized identifiers.
package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal ConditionType = "="
	ILike ConditionType = "ILIKE"
	In    ConditionType = "IN"
	// AnyOf matches a value against several columns with ILIKE, OR-ed together.
	AnyOf ConditionType = "ANY_OF"

	unset = -1
)

// Condition is one WHERE predicate. Field holds comma-separated columns for AnyOf.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

// WhereCond builds a condition.
func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// Search matches term (as a substring) against any of the columns. An empty term matches everything.
func Search(term string, columns ...string) Condition {
	if term == "" {
		return Condition{Field: strings.Join(columns, ","), Type: AnyOf}
	}
	return Condition{Field: strings.Join(columns, ","), Type: AnyOf, Value: "%" + escapeLike(term) + "%"}
}

type ListQueryOptions struct {
	Table      string
	Columns    []string
	CountOnly  bool
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	Limit      int
	Offset     int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table, Limit: unset, Offset: unset}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) { o.Columns = cols }
}

// WithCondition adds a condition. Conditions with a nil or empty value are skipped at build time.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy sets the ordering column and direction.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// WithLimit sets the limit. Accepts 0.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the offset. Accepts 0.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// WithCountOnly selects COUNT(*) and drops ordering and pagination.
func WithCountOnly() ListQueryOption {
	return func(o *ListQueryOptions) { o.CountOnly = true }
}

func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// BuildListQuery constructs a SQL query string and arguments from options.
//
//	q, args := BuildListQuery(NewListQueryOptions("profiles",
//		WithColumns("user_id", "email"),
//		WithCondition(WhereCond("role", Equal, "student")),
//		WithOrderBy("registered_at", "DESC"),
//		WithLimit(50),
//	))
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var q strings.Builder
	switch {
	case options.CountOnly:
		q.WriteString("SELECT COUNT(*)")
	case len(options.Columns) == 0:
		q.WriteString("SELECT *")
	default:
		cols := make([]string, len(options.Columns))
		for i, c := range options.Columns {
			cols[i] = ident(c)
		}
		q.WriteString("SELECT " + strings.Join(cols, ", "))
	}
	q.WriteString(" FROM " + ident(options.Table))

	where, args := buildWhere(options.Conditions)
	if where != "" {
		q.WriteString(" WHERE " + where)
	}
	if options.CountOnly {
		return q.String(), args
	}

	if options.OrderBy != "" {
		q.WriteString(" ORDER BY " + ident(options.OrderBy))
		if dir := strings.ToUpper(options.OrderDir); dir == "ASC" || dir == "DESC" {
			q.WriteString(" " + dir)
		}
	}
	if options.Limit != unset {
		args = append(args, options.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}
	if options.Offset != unset {
		args = append(args, options.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}
	return q.String(), args
}

func buildWhere(conds []Condition) (string, []any) {
	var parts []string
	var args []any
	for _, c := range conds {
		if isEmpty(c.Value) || c.Field == "" {
			continue
		}
		switch c.Type {
		case Equal, ILike:
			args = append(args, c.Value)
			parts = append(parts, fmt.Sprintf("%s %s $%d", ident(c.Field), c.Type, len(args)))
		case In:
			rv := reflect.ValueOf(c.Value)
			if rv.Kind() != reflect.Slice {
				continue
			}
			ph := make([]string, rv.Len())
			for i := range rv.Len() {
				args = append(args, rv.Index(i).Interface())
				ph[i] = fmt.Sprintf("$%d", len(args))
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", ident(c.Field), strings.Join(ph, ", ")))
		case AnyOf:
			args = append(args, c.Value)
			n := len(args)
			var ors []string
			for _, col := range strings.Split(c.Field, ",") {
				ors = append(ors, fmt.Sprintf("%s ILIKE $%d", ident(strings.TrimSpace(col)), n))
			}
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		}
	}
	return strings.Join(parts, " AND "), args
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	default:
		return false
	}
}
