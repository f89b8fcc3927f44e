// Package resource implements a generic CRUD controller over any entity
// described by an explicit field schema.  Records are plain field maps; the
// schema decides how query parameters are coerced into filters, which
// payload keys are writable and what is validated before a write.
package resource

import (
	"fmt"
	"time"
)

// FieldType is the declared storage type of a field.
type FieldType int

const (
	String FieldType = iota
	Number
	Boolean
	Date
	Object // nested document stored as JSON
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "String"
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case Date:
		return "Date"
	case Object:
		return "Object"
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Standard columns present on every resource table.
const (
	FieldID          = "id"
	FieldUID         = "uid"
	FieldCreatedBy   = "created_by"
	FieldUpdatedBy   = "updated_by"
	FieldCreatedDate = "created_date"
	FieldUpdatedDate = "updated_date"
	FieldDeletedAt   = "deleted_at"
	FieldDeletedBy   = "deleted_by"
)

// Field describes one column.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Rules are go-playground/validator tags applied to non-nil values,
	// e.g. "min=2,max=50".
	Rules string
	// Default is used on create when the payload omits the field.  A
	// func() any is called for every record.
	Default any
	// ReadOnly fields are managed by the controller and ignored in payloads.
	ReadOnly bool
	// Hidden fields are stored but never serialized outward.
	Hidden    bool
	Unique    bool
	Trim      bool
	Lowercase bool
}

func (f Field) defaultValue() any {
	if fn, ok := f.Default.(func() any); ok {
		return fn()
	}
	return f.Default
}

// Schema is the field-type descriptor of one resource.
type Schema struct {
	// Model is the PascalCase type name used in messages ("Role").
	Model string
	// Table is the backing table.
	Table  string
	fields []Field
	index  map[string]int
}

// NewSchema builds a schema from the resource's own fields plus the
// standard identity and audit columns.
func NewSchema(model, table string, fields ...Field) *Schema {
	s := &Schema{Model: model, Table: table, index: map[string]int{}}
	s.add(
		Field{Name: FieldID, Type: Number, ReadOnly: true, Unique: true},
		Field{Name: FieldUID, Type: String, ReadOnly: true, Unique: true},
	)
	s.add(fields...)
	s.add(
		Field{Name: FieldCreatedBy, Type: String, ReadOnly: true, Required: true},
		Field{Name: FieldUpdatedBy, Type: String, ReadOnly: true, Required: true},
		Field{Name: FieldCreatedDate, Type: Date, ReadOnly: true, Required: true},
		Field{Name: FieldUpdatedDate, Type: Date, ReadOnly: true, Required: true},
	)
	return s
}

// WithSoftDelete adds the deleted_at/deleted_by columns.
func (s *Schema) WithSoftDelete() *Schema {
	s.add(
		Field{Name: FieldDeletedAt, Type: Date, ReadOnly: true},
		Field{Name: FieldDeletedBy, Type: String, ReadOnly: true},
	)
	return s
}

func (s *Schema) add(fields ...Field) {
	for _, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("resource: duplicate field %q in %s", f.Name, s.Model))
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field { return s.fields }

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Has reports whether name is a declared column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Columns lists every column name.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// SoftDeletable reports whether the schema carries deleted_at.
func (s *Schema) SoftDeletable() bool { return s.Has(FieldDeletedAt) }

// Build turns a create payload into a record: writable fields are coerced,
// absent fields take their defaults and unknown keys are dropped.
func (s *Schema) Build(payload Record) (Record, error) {
	rec := Record{}
	verr := &ValidationError{}
	for _, f := range s.fields {
		if f.ReadOnly {
			continue
		}
		v, ok := payload[f.Name]
		if !ok {
			if f.Default != nil {
				rec[f.Name] = f.defaultValue()
			}
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			verr.add(f.Name, "CastError", err.Error(), v)
			continue
		}
		rec[f.Name] = cv
	}
	if verr.Len() > 0 {
		return nil, verr
	}
	return rec, nil
}

// Merge applies the writable fields of payload onto a copy of current.
func (s *Schema) Merge(current, payload Record) (Record, error) {
	rec := current.Clone()
	verr := &ValidationError{}
	for _, f := range s.fields {
		if f.ReadOnly {
			continue
		}
		v, ok := payload[f.Name]
		if !ok {
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			verr.add(f.Name, "CastError", err.Error(), v)
			continue
		}
		rec[f.Name] = cv
	}
	if verr.Len() > 0 {
		return nil, verr
	}
	return rec, nil
}

// Public returns a copy of rec without hidden fields.
func (s *Schema) Public(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		if f, ok := s.Field(k); ok && f.Hidden {
			continue
		}
		out[k] = v
	}
	return out
}

// Record is one entity as a field map.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the numeric surrogate id when present.
func (r Record) ID() (int64, bool) {
	switch v := r[FieldID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// String returns a string field or "".
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Time returns a date field or the zero time.
func (r Record) Time(name string) time.Time {
	t, _ := r[name].(time.Time)
	return t
}
