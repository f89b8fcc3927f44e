package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dms-api/internal/queue"
	"github.com/iliyamo/dms-api/internal/response"
)

func roleSchema() *Schema {
	return NewSchema("Role", "roles",
		Field{Name: "role_code", Type: String, Rules: "max=10", Trim: true, Unique: true},
		Field{Name: "name", Type: String, Required: true, Rules: "min=2,max=50", Trim: true, Unique: true},
		Field{Name: "description", Type: String, Rules: "max=200"},
		Field{Name: "secret", Type: String, Hidden: true},
		Field{Name: "level", Type: Number},
		Field{Name: "is_active", Type: Boolean, Default: true},
	).WithSoftDelete()
}

type sinkSpy struct {
	mu     sync.Mutex
	events []queue.AuditEvent
}

func (s *sinkSpy) Publish(_ context.Context, ev queue.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func newTestController(t *testing.T, soft bool, hooks Hooks) (*Controller, *memStore, *sinkSpy) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := newMemStore("name")
	sink := &sinkSpy{}
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var seq int
	c := NewController(roleSchema(), store, Options{
		Hooks:      hooks,
		SoftDelete: soft,
		Events:     sink,
		Logger:     logger,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewUID: func() string {
			seq++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", seq)
		},
	})
	return c, store, sink
}

func seedRoles(t *testing.T, c *Controller, names ...string) {
	t.Helper()
	for _, n := range names {
		res := c.Create(context.Background(), Record{"name": n}, Caller{})
		require.Equal(t, http.StatusCreated, res.Status, "seed %s: %+v", n, res.Body)
	}
}

func dataRecord(t *testing.T, env response.Envelope) Record {
	t.Helper()
	rec, ok := env.Data.(Record)
	require.True(t, ok, "data is %T", env.Data)
	return rec
}

func dataList(t *testing.T, env response.Envelope) []Record {
	t.Helper()
	recs, ok := env.Data.([]Record)
	require.True(t, ok, "data is %T", env.Data)
	return recs
}

func TestCreateRole(t *testing.T) {
	c, _, sink := newTestController(t, true, nil)

	res := c.Create(context.Background(), Record{"name": "Manager", "description": "Store manager"}, Caller{UserID: "u-1"})

	require.Equal(t, http.StatusCreated, res.Status)
	assert.True(t, res.Body.Success)
	assert.Equal(t, "Role created successfully", res.Body.Message)
	rec := dataRecord(t, res.Body)
	assert.Equal(t, int64(1), rec[FieldID])
	assert.Equal(t, "Manager", rec["name"])
	assert.Equal(t, "Store manager", rec["description"])
	assert.Equal(t, true, rec["is_active"])
	assert.Equal(t, "u-1", rec[FieldCreatedBy])
	assert.Equal(t, "u-1", rec[FieldUpdatedBy])
	assert.NotEmpty(t, rec[FieldUID])
	assert.False(t, rec.Time(FieldCreatedDate).IsZero())

	require.Len(t, sink.events, 1)
	assert.Equal(t, queue.KindResource, sink.events[0].Kind)
	assert.Equal(t, "create", sink.events[0].Action)
	assert.Equal(t, "1", sink.events[0].RecordID)
}

func TestCreateRoleEnvelopeJSON(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	res := c.Create(context.Background(), Record{"name": "Manager", "description": "Store manager"}, Caller{})

	raw, err := json.Marshal(res.Body)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "Role created successfully", got["message"])
	data := got["data"].(map[string]any)
	assert.EqualValues(t, 1, data["id"])
	assert.Equal(t, "Manager", data["name"])
}

func TestCreateIgnoresReadOnlyAndUnknownKeys(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	res := c.Create(context.Background(), Record{
		"name":       "Manager",
		"id":         float64(77),
		"created_by": "intruder",
		"colour":     "blue",
	}, Caller{})

	require.Equal(t, http.StatusCreated, res.Status)
	rec := dataRecord(t, res.Body)
	assert.Equal(t, int64(1), rec[FieldID])
	assert.Equal(t, "system", rec[FieldCreatedBy])
	assert.NotContains(t, rec, "colour")
}

func TestCreateValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		payload Record
		path    string
		kind    string
	}{
		{"too short", Record{"name": "A"}, "name", "min"},
		{"missing required", Record{"description": "no name"}, "name", "required"},
		{"blank required", Record{"name": "   "}, "name", "required"},
		{"too long", Record{"name": "Manager", "role_code": "ABCDEFGHIJK"}, "role_code", "max"},
		{"bad number", Record{"name": "Manager", "level": "high"}, "level", "CastError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, store, _ := newTestController(t, true, nil)
			res := c.Create(context.Background(), tc.payload, Caller{})

			assert.Equal(t, http.StatusBadRequest, res.Status)
			assert.False(t, res.Body.Success)
			assert.Equal(t, response.ValidationError, res.Body.Error)
			details, ok := res.Body.ErrorDetails.(map[string]FieldError)
			require.True(t, ok, "details is %T", res.Body.ErrorDetails)
			require.Contains(t, details, tc.path)
			assert.Equal(t, tc.kind, details[tc.path].Kind)
			assert.Empty(t, store.rows)
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Manager")

	res := c.Create(context.Background(), Record{"name": "Manager"}, Caller{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "Role already exists", res.Body.Error)
	assert.Nil(t, res.Body.ErrorDetails)
}

func TestCreateStoreFailureIsClientError(t *testing.T) {
	c, store, _ := newTestController(t, true, nil)
	store.failOn = "insert"

	res := c.Create(context.Background(), Record{"name": "Manager"}, Caller{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Contains(t, res.Body.Error, "connection refused")
}

func TestFindOneByAnyIdentifier(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Manager", "Dealer")

	byID := c.FindOne(context.Background(), "2", "")
	require.Equal(t, http.StatusOK, byID.Status)
	assert.Equal(t, "Role details fetched successfully", byID.Body.Message)
	rec := dataRecord(t, byID.Body)
	assert.Equal(t, "Dealer", rec["name"])

	byUID := c.FindOne(context.Background(), rec.String(FieldUID), "")
	require.Equal(t, http.StatusOK, byUID.Status)
	assert.Equal(t, "Dealer", dataRecord(t, byUID.Body)["name"])

	projected := c.FindOne(context.Background(), "1", "name")
	require.Equal(t, http.StatusOK, projected.Status)
	assert.Equal(t, Record{FieldUID: "00000000-0000-4000-8000-000000000001", "name": "Manager"}, dataRecord(t, projected.Body))
}

func TestFindOneNotFound(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)

	res := c.FindOne(context.Background(), "999", "")
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.False(t, res.Body.Success)
	assert.Equal(t, "Role not found", res.Body.Error)

	res = c.FindOne(context.Background(), "not-an-id", "")
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestFindOneHidesHiddenFields(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	res := c.Create(context.Background(), Record{"name": "Manager", "secret": "s3cr3t"}, Caller{})
	require.Equal(t, http.StatusCreated, res.Status)
	assert.NotContains(t, dataRecord(t, res.Body), "secret")

	one := c.FindOne(context.Background(), "1", "")
	assert.NotContains(t, dataRecord(t, one.Body), "secret")
}

func seed25(t *testing.T, c *Controller) {
	t.Helper()
	for i := 1; i <= 25; i++ {
		seedRoles(t, c, fmt.Sprintf("Role %02d", i))
	}
}

func TestFindAllPaginated(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seed25(t, c)

	res := c.FindAll(context.Background(), url.Values{"page": {"2"}, "limit": {"10"}}, Caller{})

	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Role list fetched successfully", res.Body.Message)
	assert.Len(t, dataList(t, res.Body), 10)
	require.NotNil(t, res.Body.Pagination)
	assert.Equal(t, response.Pagination{CurrentPage: 2, Limit: 10, TotalRecordCount: 25, TotalPages: 3}, *res.Body.Pagination)
	assert.Nil(t, res.Body.TotalRecordCount)
}

func TestFindAllBypassesInvalidPagination(t *testing.T) {
	for _, params := range []url.Values{
		{"page": {"abc"}, "limit": {"10"}},
		{"page": {"0"}, "limit": {"10"}},
		{"page": {"2"}},
		{"limit": {"10"}},
	} {
		t.Run(params.Encode(), func(t *testing.T) {
			c, _, _ := newTestController(t, true, nil)
			seed25(t, c)

			res := c.FindAll(context.Background(), params, Caller{})
			require.Equal(t, http.StatusOK, res.Status)
			assert.Len(t, dataList(t, res.Body), 25)
			assert.Nil(t, res.Body.Pagination)
			require.NotNil(t, res.Body.TotalRecordCount)
			assert.Equal(t, int64(25), *res.Body.TotalRecordCount)
		})
	}
}

func TestFindAllDefaultSortNewestFirst(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seedRoles(t, c, "First", "Second", "Third")

	recs := dataList(t, c.FindAll(context.Background(), url.Values{}, Caller{}).Body)
	require.Len(t, recs, 3)
	assert.Equal(t, "Third", recs[0]["name"])
	assert.Equal(t, "First", recs[2]["name"])

	recs = dataList(t, c.FindAll(context.Background(), url.Values{"sort": {"name"}}, Caller{}).Body)
	assert.Equal(t, "First", recs[0]["name"])
}

func TestFindAllFilters(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Alice", "Natalia", "Bob", "ALIBABA")

	res := c.FindAll(context.Background(), url.Values{"name": {"ali"}}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	var names []string
	for _, r := range dataList(t, res.Body) {
		names = append(names, r.String("name"))
	}
	assert.ElementsMatch(t, []string{"Alice", "Natalia", "ALIBABA"}, names)

	res = c.FindAll(context.Background(), url.Values{"colour": {"blue"}}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Len(t, dataList(t, res.Body), 4)

	res = c.FindAll(context.Background(), url.Values{"level": {"abc"}}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Len(t, dataList(t, res.Body), 4)

	res = c.FindAll(context.Background(), url.Values{"is_active": {"false"}}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Empty(t, dataList(t, res.Body))
}

func TestFindAllStoreFailure(t *testing.T) {
	c, store, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Manager")
	store.failOn = "count"

	res := c.FindAll(context.Background(), url.Values{"page": {"1"}, "limit": {"5"}}, Caller{})
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.False(t, res.Body.Success)
}

func TestUpdate(t *testing.T) {
	c, _, sink := newTestController(t, true, nil)
	seedRoles(t, c, "Manager")

	res := c.Update(context.Background(), "1", Record{"description": "Runs the store"}, Caller{UserID: "editor"})

	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Role updated successfully", res.Body.Message)
	rec := dataRecord(t, res.Body)
	assert.Equal(t, "Manager", rec["name"])
	assert.Equal(t, "Runs the store", rec["description"])
	assert.Equal(t, "editor", rec[FieldUpdatedBy])
	assert.Equal(t, "system", rec[FieldCreatedBy])
	assert.True(t, rec.Time(FieldUpdatedDate).After(rec.Time(FieldCreatedDate)))
	assert.Equal(t, "update", sink.events[len(sink.events)-1].Action)
}

// racingStore soft deletes the target row just before an update lands and
// records the columns the controller asked to write.
type racingStore struct {
	*memStore
	now     time.Time
	written Record
}

func (s *racingStore) Update(ctx context.Context, schema *Schema, id int64, changes Record) (Record, error) {
	s.written = changes.Clone()
	s.mu.Lock()
	for _, r := range s.rows {
		if rid, _ := r.ID(); rid == id {
			r[FieldDeletedAt] = s.now
			r[FieldDeletedBy] = "other"
		}
	}
	s.mu.Unlock()
	return s.memStore.Update(ctx, schema, id, changes)
}

func TestUpdateWritesOnlyChangedColumns(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &racingStore{memStore: newMemStore("name"), now: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}
	c := NewController(roleSchema(), store, Options{SoftDelete: true, Logger: logger})
	seedRoles(t, c, "Manager")

	res := c.Update(context.Background(), "1", Record{"description": "Runs the store"}, Caller{UserID: "editor"})
	require.Equal(t, http.StatusOK, res.Status)

	keys := make([]string, 0, len(store.written))
	for k := range store.written {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"description", FieldUpdatedBy, FieldUpdatedDate}, keys)

	raw := store.raw(1)
	assert.Equal(t, store.now, raw[FieldDeletedAt])
	assert.Equal(t, "other", raw[FieldDeletedBy])
	assert.Equal(t, "Runs the store", raw["description"])
}

type mergeHooks struct{ NopHooks }

func (mergeHooks) PostMerge(_ context.Context, current, merged Record, _ Caller) (Record, error) {
	out := merged.Clone()
	out["description"] = "was " + current.String("name")
	return out, nil
}

func TestUpdateRunsMergeHooks(t *testing.T) {
	c, store, _ := newTestController(t, true, mergeHooks{})
	seedRoles(t, c, "Manager")

	res := c.Update(context.Background(), "1", Record{"name": "Director"}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	raw := store.raw(1)
	assert.Equal(t, "Director", raw["name"])
	assert.Equal(t, "was Manager", raw["description"])
}

func TestUpdateErrors(t *testing.T) {
	c, _, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Manager")

	res := c.Update(context.Background(), "42", Record{"name": "Other"}, Caller{})
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "Role not found", res.Body.Error)

	res = c.Update(context.Background(), "1", Record{"name": "X"}, Caller{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, response.ValidationError, res.Body.Error)
}

func TestSoftDelete(t *testing.T) {
	c, store, _ := newTestController(t, true, nil)
	seedRoles(t, c, "Manager", "Dealer")

	res := c.Delete(context.Background(), "1", Caller{UserID: "admin"}, false)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Role soft deleted successfully", res.Body.Message)
	assert.Equal(t, "admin", dataRecord(t, res.Body)[FieldDeletedBy])

	assert.Equal(t, http.StatusNotFound, c.FindOne(context.Background(), "1", "").Status)
	list := dataList(t, c.FindAll(context.Background(), url.Values{}, Caller{}).Body)
	require.Len(t, list, 1)
	assert.Equal(t, "Dealer", list[0]["name"])

	raw := store.raw(1)
	require.NotNil(t, raw)
	assert.False(t, raw.Time(FieldDeletedAt).IsZero())
	assert.Equal(t, "admin", raw[FieldDeletedBy])

	assert.Equal(t, http.StatusNotFound, c.Delete(context.Background(), "1", Caller{}, false).Status)
	assert.Equal(t, http.StatusNotFound, c.Update(context.Background(), "1", Record{"name": "Back"}, Caller{}).Status)

	perm := c.Delete(context.Background(), "1", Caller{}, true)
	require.Equal(t, http.StatusOK, perm.Status)
	assert.Equal(t, "Role deleted successfully", perm.Body.Message)
	assert.Equal(t, map[string]string{"deletedId": "1"}, perm.Body.Data)
	assert.Nil(t, store.raw(1))
}

func TestHardDeleteWithoutSoftDelete(t *testing.T) {
	c, store, _ := newTestController(t, false, nil)
	seedRoles(t, c, "Manager")

	res := c.Delete(context.Background(), "1", Caller{}, false)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, map[string]string{"deletedId": "1"}, res.Body.Data)
	assert.Empty(t, store.rows)

	assert.Equal(t, http.StatusNotFound, c.Delete(context.Background(), "1", Caller{}, false).Status)
}

type upperHooks struct {
	preErr error
	saw    []Action
}

func (h *upperHooks) PreSave(_ context.Context, payload Record, action Action, _ Caller) (Record, error) {
	h.saw = append(h.saw, action)
	if h.preErr != nil {
		return nil, h.preErr
	}
	out := payload.Clone()
	if code, ok := out["role_code"].(string); ok {
		out["role_code"] = "R-" + code
	}
	return out, nil
}

func (h *upperHooks) PostSave(_ context.Context, rec Record, _ Action, _ Caller) (Record, error) {
	out := rec.Clone()
	out["decorated"] = true
	return out, nil
}

func TestHooksRunAroundWrites(t *testing.T) {
	hooks := &upperHooks{}
	c, _, _ := newTestController(t, true, hooks)

	res := c.Create(context.Background(), Record{"name": "Manager", "role_code": "MGR"}, Caller{})
	require.Equal(t, http.StatusCreated, res.Status)
	rec := dataRecord(t, res.Body)
	assert.Equal(t, "R-MGR", rec["role_code"])
	assert.Equal(t, true, rec["decorated"])

	res = c.Update(context.Background(), "1", Record{"description": "x"}, Caller{})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, []Action{ActionCreate, ActionUpdate}, hooks.saw)
}

func TestHookValidationErrorIsReportedAsValidation(t *testing.T) {
	hooks := &upperHooks{preErr: NewValidationError("role_code", "invalid", "bad code", "??")}
	c, _, _ := newTestController(t, true, hooks)

	res := c.Create(context.Background(), Record{"name": "Manager"}, Caller{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, response.ValidationError, res.Body.Error)

	hooks.preErr = errors.New("role lookup failed")
	res = c.Create(context.Background(), Record{"name": "Manager"}, Caller{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "role lookup failed", res.Body.Error)
}

func TestNewControllerRejectsSoftDeleteWithoutColumns(t *testing.T) {
	s := NewSchema("Thing", "things", Field{Name: "name", Type: String})
	assert.Panics(t, func() {
		NewController(s, newMemStore(), Options{SoftDelete: true, Logger: logrus.New()})
	})
}
