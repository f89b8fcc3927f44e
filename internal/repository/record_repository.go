package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/dms-api/internal/resource"
)

// RecordRepo stores schema-described records in one MySQL table per
// resource.  Column names are always taken from the schema, never from
// caller input, so identifiers can be quoted without further escaping.
type RecordRepo struct{ DB *sqlx.DB }

func NewRecordRepo(db *sqlx.DB) *RecordRepo { return &RecordRepo{DB: db} }

var _ resource.Store = (*RecordRepo)(nil)

// Insert writes rec and returns the stored row including its id.
func (r *RecordRepo) Insert(ctx context.Context, s *resource.Schema, rec resource.Record) (resource.Record, error) {
	var (
		cols  []string
		marks []string
		args  []any
	)
	for _, f := range s.Fields() {
		v, ok := rec[f.Name]
		if !ok || f.Name == resource.FieldID {
			continue
		}
		enc, err := encode(f, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, quote(f.Name))
		marks = append(marks, "?")
		args = append(args, enc)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(s.Table), strings.Join(cols, ","), strings.Join(marks, ","))
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate("insert "+s.Table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, translate("insert "+s.Table, err)
	}
	return r.byID(ctx, s, id)
}

// FindMany runs q and decodes every row.
func (r *RecordRepo) FindMany(ctx context.Context, s *resource.Schema, q resource.Query) ([]resource.Record, error) {
	sel, err := selectList(s, q.Fields)
	if err != nil {
		return nil, err
	}
	where, args, err := whereClause(s, q.Where)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", sel, quote(s.Table), where)
	if len(q.Sort) > 0 {
		keys := make([]string, 0, len(q.Sort))
		for _, k := range q.Sort {
			if !s.Has(k.Field) {
				return nil, fmt.Errorf("sort on unknown column %q", k.Field)
			}
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys = append(keys, quote(k.Field)+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := r.DB.QueryxContext(ctx, b.String(), args...)
	if err != nil {
		return nil, translate("select "+s.Table, err)
	}
	defer rows.Close()

	out := []resource.Record{}
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, translate("scan "+s.Table, err)
		}
		rec, err := decodeRow(s, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("select "+s.Table, err)
	}
	return out, nil
}

// Count returns the number of rows matching where.
func (r *RecordRepo) Count(ctx context.Context, s *resource.Schema, where []resource.Condition) (int64, error) {
	clause, args, err := whereClause(s, where)
	if err != nil {
		return 0, err
	}
	var n int64
	query := "SELECT COUNT(*) FROM " + quote(s.Table) + clause
	if err := r.DB.GetContext(ctx, &n, query, args...); err != nil {
		return 0, translate("count "+s.Table, err)
	}
	return n, nil
}

// FindOne returns the first row matching where or ErrNotFound.
func (r *RecordRepo) FindOne(ctx context.Context, s *resource.Schema, where []resource.Condition, fields []string) (resource.Record, error) {
	recs, err := r.FindMany(ctx, s, resource.Query{Where: where, Fields: fields, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("select %s: %w", s.Table, ErrNotFound)
	}
	return recs[0], nil
}

// Update sets the given columns on row id and reloads it.
func (r *RecordRepo) Update(ctx context.Context, s *resource.Schema, id int64, changes resource.Record) (resource.Record, error) {
	var (
		sets []string
		args []any
	)
	for _, f := range s.Fields() {
		v, ok := changes[f.Name]
		if !ok || f.Name == resource.FieldID {
			continue
		}
		enc, err := encode(f, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, quote(f.Name)+" = ?")
		args = append(args, enc)
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			quote(s.Table), strings.Join(sets, ", "), quote(resource.FieldID))
		if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
			return nil, translate("update "+s.Table, err)
		}
	}
	return r.byID(ctx, s, id)
}

// Delete physically removes row id.
func (r *RecordRepo) Delete(ctx context.Context, s *resource.Schema, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(s.Table), quote(resource.FieldID))
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete "+s.Table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate("delete "+s.Table, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", s.Table, ErrNotFound)
	}
	return nil
}

func (r *RecordRepo) byID(ctx context.Context, s *resource.Schema, id int64) (resource.Record, error) {
	return r.FindOne(ctx, s, []resource.Condition{{Field: resource.FieldID, Op: resource.OpEq, Value: id}}, nil)
}

func quote(ident string) string { return "`" + ident + "`" }

func selectList(s *resource.Schema, fields []string) (string, error) {
	if len(fields) == 0 {
		fields = s.Columns()
	}
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if !s.Has(f) {
			return "", fmt.Errorf("select unknown column %q", f)
		}
		cols = append(cols, quote(f))
	}
	return strings.Join(cols, ", "), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func whereClause(s *resource.Schema, where []resource.Condition) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(where))
	var args []any
	for _, c := range where {
		if !s.Has(c.Field) {
			return "", nil, fmt.Errorf("filter on unknown column %q", c.Field)
		}
		col := quote(c.Field)
		switch c.Op {
		case resource.OpEq:
			parts = append(parts, col+" = ?")
			args = append(args, c.Value)
		case resource.OpContains:
			parts = append(parts, "LOWER("+col+") LIKE ?")
			args = append(args, "%"+likeEscaper.Replace(strings.ToLower(fmt.Sprint(c.Value)))+"%")
		case resource.OpIsNull:
			parts = append(parts, col+" IS NULL")
		case resource.OpTextEq:
			parts = append(parts, "CAST("+col+" AS CHAR) = ?")
			args = append(args, fmt.Sprint(c.Value))
		default:
			return "", nil, fmt.Errorf("unsupported operator %d", c.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// encode converts a record value into a driver argument.  Objects are
// stored as JSON text.
func encode(f resource.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Type == resource.Object {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		return string(b), nil
	}
	return v, nil
}

const mysqlDateTime = "2006-01-02 15:04:05.999999"

func decodeRow(s *resource.Schema, raw map[string]any) (resource.Record, error) {
	rec := make(resource.Record, len(raw))
	for col, v := range raw {
		f, ok := s.Field(col)
		if !ok {
			continue
		}
		dv, err := decode(f, v)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", s.Table, col, err)
		}
		rec[col] = dv
	}
	return rec, nil
}

// decode maps a scanned column back onto the field's Go type.
func decode(f resource.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Type {
	case resource.String:
		return fmt.Sprint(v), nil
	case resource.Number:
		switch t := v.(type) {
		case int64:
			return t, nil
		case string:
			return strconv.ParseInt(t, 10, 64)
		}
	case resource.Boolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case string:
			return t == "1" || strings.EqualFold(t, "true"), nil
		}
	case resource.Date:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			ts, err := time.ParseInLocation(mysqlDateTime, t, time.UTC)
			if err != nil {
				return nil, err
			}
			return ts, nil
		}
	case resource.Object:
		s, ok := v.(string)
		if !ok {
			break
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected %T for %s column", v, f.Type)
}
