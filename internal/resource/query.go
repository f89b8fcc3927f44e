package resource

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Op is a filter operator understood by every Store.
type Op int

const (
	OpEq       Op = iota // field = value
	OpContains           // case-insensitive substring match
	OpIsNull             // field IS NULL
	OpTextEq             // textual comparison of the field against a string
)

// Condition is one conjunct of a WHERE clause.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// SortKey orders results by Field.
type SortKey struct {
	Field string
	Desc  bool
}

// Query is a storage-agnostic read request.  Limit 0 means unbounded.
type Query struct {
	Where  []Condition
	Sort   []SortKey
	Fields []string
	Offset int
	Limit  int
}

// Reserved query parameters that never become filters.
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSort   = "sort"
	ParamFields = "fields"
)

// DefaultSort orders newest first.
const DefaultSort = "-" + FieldCreatedDate

// BuildIDQuery resolves a caller-supplied identifier.  A canonical UUID
// matches the native uid column, an integer matches the numeric id and
// anything else is compared literally against id.
func BuildIDQuery(id string) Condition {
	id = strings.TrimSpace(id)
	if len(id) == 36 {
		if u, err := uuid.Parse(id); err == nil {
			return Condition{Field: FieldUID, Op: OpEq, Value: u.String()}
		}
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return Condition{Field: FieldID, Op: OpEq, Value: n}
	}
	return Condition{Field: FieldID, Op: OpTextEq, Value: id}
}

// BuildFilter turns non-reserved query parameters into conditions.  Keys
// not in the schema, hidden and object fields, and values that fail numeric
// coercion are dropped.
func (s *Schema) BuildFilter(params url.Values) []Condition {
	var where []Condition
	for _, f := range s.fields {
		if f.Hidden || isReserved(f.Name) {
			continue
		}
		vals, ok := params[f.Name]
		if !ok || len(vals) == 0 {
			continue
		}
		raw := vals[0]
		switch f.Type {
		case String:
			where = append(where, Condition{Field: f.Name, Op: OpContains, Value: raw})
		case Boolean:
			where = append(where, Condition{Field: f.Name, Op: OpEq, Value: raw == "true"})
		case Number:
			if n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				where = append(where, Condition{Field: f.Name, Op: OpEq, Value: n})
			}
		case Date:
			if ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				where = append(where, Condition{Field: f.Name, Op: OpEq, Value: time.UnixMilli(ms).UTC()})
			}
		}
	}
	return where
}

func isReserved(key string) bool {
	switch key {
	case ParamPage, ParamLimit, ParamSort, ParamFields:
		return true
	}
	return false
}

// ParseSort reads keys separated by commas or spaces; a leading '-' sorts
// descending.  Unknown fields are ignored.
func (s *Schema) ParseSort(raw string) []SortKey {
	var keys []SortKey
	for _, tok := range splitList(raw) {
		desc := strings.HasPrefix(tok, "-")
		name := strings.TrimLeft(tok, "+-")
		if f, ok := s.Field(name); !ok || f.Hidden {
			continue
		}
		keys = append(keys, SortKey{Field: name, Desc: desc})
	}
	return keys
}

// ParseFields reads a comma separated projection.  The uid column is always
// included; an empty result means all columns.
func (s *Schema) ParseFields(raw string) []string {
	var fields []string
	seen := map[string]bool{}
	for _, tok := range splitList(raw) {
		if s.Has(tok) && !seen[tok] {
			seen[tok] = true
			fields = append(fields, tok)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	if !seen[FieldUID] {
		fields = append([]string{FieldUID}, fields...)
	}
	return fields
}

// ParsePagination reports page and limit when both parameters are present
// and both parse to integers >= 1.
func ParsePagination(params url.Values) (page, limit int, ok bool) {
	if _, has := params[ParamPage]; !has {
		return 0, 0, false
	}
	if _, has := params[ParamLimit]; !has {
		return 0, 0, false
	}
	page, errP := strconv.Atoi(strings.TrimSpace(params.Get(ParamPage)))
	limit, errL := strconv.Atoi(strings.TrimSpace(params.Get(ParamLimit)))
	if errP != nil || errL != nil || page < 1 || limit < 1 {
		return 0, 0, false
	}
	return page, limit, true
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}
