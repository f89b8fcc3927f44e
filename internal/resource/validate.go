package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound is returned by a Store when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by a Store when a unique column collides.
	ErrDuplicate = errors.New("duplicate key")
)

var validate = validator.New()

// FieldError is the per-field detail rendered in error_details.
type FieldError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError collects field-level failures for one record.
type ValidationError struct {
	Fields map[string]FieldError
}

// NewValidationError returns an error for a single field.  Hooks use it to
// report constraint violations the schema cannot express.
func NewValidationError(path, kind, message string, value any) *ValidationError {
	e := &ValidationError{}
	e.add(path, kind, message, value)
	return e
}

func (e *ValidationError) add(path, kind, message string, value any) {
	if e.Fields == nil {
		e.Fields = map[string]FieldError{}
	}
	e.Fields[path] = FieldError{Message: message, Kind: kind, Path: path, Value: value}
}

// Len is the number of failing fields.
func (e *ValidationError) Len() int { return len(e.Fields) }

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + ": " + e.Fields[p].Message
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Validate checks required fields and validator rules on rec.
func (s *Schema) Validate(rec Record) error {
	verr := &ValidationError{}
	for _, f := range s.fields {
		v, ok := rec[f.Name]
		if f.Required && (!ok || isBlank(v)) {
			verr.add(f.Name, "required", fmt.Sprintf("Path `%s` is required.", f.Name), nil)
			continue
		}
		if v == nil || f.Rules == "" {
			continue
		}
		if err := validate.Var(v, f.Rules); err != nil {
			var fes validator.ValidationErrors
			if errors.As(err, &fes) && len(fes) > 0 {
				fe := fes[0]
				verr.add(f.Name, fe.Tag(), ruleMessage(f.Name, fe), v)
				continue
			}
			verr.add(f.Name, "invalid", err.Error(), v)
		}
	}
	if verr.Len() > 0 {
		return verr
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func ruleMessage(path string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if _, ok := fe.Value().(string); ok {
			return fmt.Sprintf("Path `%s` is shorter than the minimum allowed length (%s).", path, fe.Param())
		}
		return fmt.Sprintf("Path `%s` is less than minimum allowed value (%s).", path, fe.Param())
	case "max":
		if _, ok := fe.Value().(string); ok {
			return fmt.Sprintf("Path `%s` is longer than the maximum allowed length (%s).", path, fe.Param())
		}
		return fmt.Sprintf("Path `%s` is more than maximum allowed value (%s).", path, fe.Param())
	case "oneof":
		return fmt.Sprintf("`%v` is not a valid enum value for path `%s`.", fe.Value(), path)
	case "email":
		return fmt.Sprintf("Path `%s` must be a valid email address.", path)
	}
	return fmt.Sprintf("Path `%s` failed on the '%s' rule.", path, fe.Tag())
}
