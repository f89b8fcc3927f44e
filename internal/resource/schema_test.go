package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchemaAddsStandardColumns(t *testing.T) {
	s := NewSchema("Thing", "things", Field{Name: "name", Type: String})

	assert.Equal(t, []string{
		FieldID, FieldUID, "name",
		FieldCreatedBy, FieldUpdatedBy, FieldCreatedDate, FieldUpdatedDate,
	}, s.Columns())
	assert.False(t, s.SoftDeletable())
	assert.True(t, s.WithSoftDelete().SoftDeletable())
	assert.Panics(t, func() { NewSchema("Dup", "dups", Field{Name: FieldID}) })
}

func TestBuildCoercesAndDefaults(t *testing.T) {
	s := NewSchema("Thing", "things",
		Field{Name: "email", Type: String, Trim: true, Lowercase: true},
		Field{Name: "count", Type: Number},
		Field{Name: "flag", Type: Boolean, Default: true},
		Field{Name: "when", Type: Date},
		Field{Name: "tags", Type: Object, Default: func() any { return []any{} }},
	)

	rec, err := s.Build(Record{
		"email": "  Someone@Example.COM ",
		"count": float64(3),
		"when":  "2024-03-01T10:00:00+02:00",
		"extra": "dropped",
		"uid":   "forged",
	})
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", rec["email"])
	assert.Equal(t, int64(3), rec["count"])
	assert.Equal(t, true, rec["flag"])
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), rec["when"])
	assert.Equal(t, []any{}, rec["tags"])
	assert.NotContains(t, rec, "extra")
	assert.NotContains(t, rec, FieldUID)
}

func TestBuildCastErrors(t *testing.T) {
	s := NewSchema("Thing", "things",
		Field{Name: "count", Type: Number},
		Field{Name: "flag", Type: Boolean},
		Field{Name: "meta", Type: Object},
	)

	_, err := s.Build(Record{"count": 1.5, "flag": "maybe", "meta": "str"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 3, verr.Len())
	assert.Equal(t, "CastError", verr.Fields["count"].Kind)
	assert.Contains(t, verr.Error(), `cast to Boolean failed for value "maybe" at path "flag"`)
}

func TestMergeKeepsCurrentValues(t *testing.T) {
	s := roleSchema()
	current := Record{FieldID: int64(1), "name": "Manager", "description": "old"}

	rec, err := s.Merge(current, Record{"description": "new", FieldID: float64(9)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec[FieldID])
	assert.Equal(t, "Manager", rec["name"])
	assert.Equal(t, "new", rec["description"])
	assert.Equal(t, "old", current["description"])
}

func TestValidateMessages(t *testing.T) {
	s := NewSchema("Thing", "things",
		Field{Name: "name", Type: String, Required: true, Rules: "min=2"},
		Field{Name: "email", Type: String, Rules: "email"},
		Field{Name: "status", Type: String, Rules: "oneof=active inactive"},
	)
	rec := Record{
		"name":           "A",
		"email":          "nope",
		"status":         "gone",
		FieldCreatedBy:   "system",
		FieldUpdatedBy:   "system",
		FieldCreatedDate: time.Now(),
		FieldUpdatedDate: time.Now(),
	}

	err := s.Validate(rec)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Path `name` is shorter than the minimum allowed length (2).", verr.Fields["name"].Message)
	assert.Equal(t, "Path `email` must be a valid email address.", verr.Fields["email"].Message)
	assert.Equal(t, "`gone` is not a valid enum value for path `status`.", verr.Fields["status"].Message)

	delete(rec, FieldCreatedBy)
	rec["name"], rec["email"], rec["status"] = "Ok", "a@b.co", "active"
	err = s.Validate(rec)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Path `created_by` is required.", verr.Fields[FieldCreatedBy].Message)
}

func TestPublicStripsHidden(t *testing.T) {
	s := NewSchema("User", "users", Field{Name: "password", Type: String, Hidden: true})
	rec := Record{"password": "hash", FieldUID: "u"}

	assert.Equal(t, Record{FieldUID: "u"}, s.Public(rec))
	assert.Contains(t, rec, "password")
	assert.Nil(t, s.Public(nil))
}
