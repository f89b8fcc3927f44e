package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/dms-api/internal/metrics"
	"github.com/iliyamo/dms-api/internal/queue"
	"github.com/iliyamo/dms-api/internal/response"
)

// Result is the HTTP status and envelope produced by an operation.
type Result struct {
	Status int
	Body   response.Envelope
}

// Options parameterize a Controller.
type Options struct {
	Hooks      Hooks
	SoftDelete bool
	Events     EventSink
	Logger     logrus.FieldLogger
	Now        func() time.Time
	NewUID     func() string
}

// Controller exposes uniform CRUD operations over one schema.  It keeps no
// state between calls.
type Controller struct {
	schema *Schema
	store  Store
	opts   Options
	name   string
}

// NewController wires a controller.  Soft delete requires the schema to
// carry the deleted_at/deleted_by columns.
func NewController(schema *Schema, store Store, opts Options) *Controller {
	if schema == nil || store == nil {
		panic("resource: nil schema or store")
	}
	if opts.SoftDelete && !schema.SoftDeletable() {
		panic(fmt.Sprintf("resource: %s has no deleted_at column", schema.Model))
	}
	if opts.Hooks == nil {
		opts.Hooks = NopHooks{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewUID == nil {
		opts.NewUID = func() string { return uuid.NewString() }
	}
	return &Controller{
		schema: schema,
		store:  store,
		opts:   opts,
		name:   response.ResourceName(schema.Model),
	}
}

// Schema returns the controller's schema.
func (c *Controller) Schema() *Schema { return c.schema }

// Name is the humanized resource name used in messages.
func (c *Controller) Name() string { return c.name }

// Create validates and persists a new record.
func (c *Controller) Create(ctx context.Context, payload Record, caller Caller) Result {
	data, err := c.opts.Hooks.PreSave(ctx, payload, ActionCreate, caller)
	if err != nil {
		return c.writeError(err)
	}
	rec, err := c.schema.Build(data)
	if err != nil {
		return c.writeError(err)
	}

	now, actor := c.opts.Now(), caller.Actor()
	rec[FieldUID] = c.opts.NewUID()
	rec[FieldCreatedBy] = actor
	rec[FieldUpdatedBy] = actor
	rec[FieldCreatedDate] = now
	rec[FieldUpdatedDate] = now
	if err := c.schema.Validate(rec); err != nil {
		return c.writeError(err)
	}

	saved, err := c.store.Insert(ctx, c.schema, rec)
	if err != nil {
		return c.writeError(err)
	}
	final, err := c.opts.Hooks.PostSave(ctx, saved, ActionCreate, caller)
	if err != nil {
		return c.writeError(err)
	}
	c.emit(ctx, ActionCreate, final, actor)
	return Result{Status: http.StatusCreated, Body: response.CreateSuccess(c.name, c.schema.Public(final))}
}

// FindAll lists records matching the schema-aware filters in params.
func (c *Controller) FindAll(ctx context.Context, params url.Values, _ Caller) Result {
	q := Query{
		Where:  c.live(c.schema.BuildFilter(params)),
		Fields: c.schema.ParseFields(params.Get(ParamFields)),
	}
	sort := params.Get(ParamSort)
	if sort == "" {
		sort = DefaultSort
	}
	q.Sort = c.schema.ParseSort(sort)

	page, limit, paged := ParsePagination(params)
	if !paged {
		recs, err := c.store.FindMany(ctx, c.schema, q)
		if err != nil {
			return c.serverError(err)
		}
		return Result{
			Status: http.StatusOK,
			Body:   response.FetchAllSuccess(c.name, c.publicAll(recs), int64(len(recs)), nil),
		}
	}

	q.Offset = (page - 1) * limit
	q.Limit = limit
	var (
		total int64
		recs  []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.store.Count(gctx, c.schema, q.Where)
		total = n
		return err
	})
	g.Go(func() error {
		r, err := c.store.FindMany(gctx, c.schema, q)
		recs = r
		return err
	})
	if err := g.Wait(); err != nil {
		return c.serverError(err)
	}
	p := response.Paginate(total, page, limit)
	return Result{
		Status: http.StatusOK,
		Body:   response.FetchAllSuccess(c.name, c.publicAll(recs), total, &p),
	}
}

// FindOne fetches a single record by any supported identifier.
func (c *Controller) FindOne(ctx context.Context, id, fields string) Result {
	where := c.live([]Condition{BuildIDQuery(id)})
	rec, err := c.store.FindOne(ctx, c.schema, where, c.schema.ParseFields(fields))
	if errors.Is(err, ErrNotFound) {
		return c.notFound()
	}
	if err != nil {
		return c.serverError(err)
	}
	return Result{Status: http.StatusOK, Body: response.FetchOneSuccess(c.name, c.schema.Public(rec))}
}

// Update merges payload onto the current record and persists it.
func (c *Controller) Update(ctx context.Context, id string, payload Record, caller Caller) Result {
	where := c.live([]Condition{BuildIDQuery(id)})
	current, err := c.store.FindOne(ctx, c.schema, where, nil)
	if errors.Is(err, ErrNotFound) {
		return c.notFound()
	}
	if err != nil {
		return c.writeError(err)
	}

	data, err := c.opts.Hooks.PreSave(ctx, payload, ActionUpdate, caller)
	if err != nil {
		return c.writeError(err)
	}
	rec, err := c.schema.Merge(current, data)
	if err != nil {
		return c.writeError(err)
	}
	if mh, ok := c.opts.Hooks.(MergeHooks); ok {
		if rec, err = mh.PostMerge(ctx, current, rec, caller); err != nil {
			return c.writeError(err)
		}
	}
	actor := caller.Actor()
	rec[FieldUpdatedBy] = actor
	rec[FieldUpdatedDate] = c.opts.Now()
	if err := c.schema.Validate(rec); err != nil {
		return c.writeError(err)
	}

	rowID, _ := current.ID()
	saved, err := c.store.Update(ctx, c.schema, rowID, c.changes(current, data, rec))
	if err != nil {
		return c.writeError(err)
	}
	final, err := c.opts.Hooks.PostSave(ctx, saved, ActionUpdate, caller)
	if err != nil {
		return c.writeError(err)
	}
	c.emit(ctx, ActionUpdate, final, actor)
	return Result{Status: http.StatusOK, Body: response.UpdateSuccess(c.name, c.schema.Public(final))}
}

// Delete soft deletes a live record, or physically removes any matching
// record when soft delete is off or permanent is requested.
func (c *Controller) Delete(ctx context.Context, id string, caller Caller, permanent bool) Result {
	actor := caller.Actor()
	if c.opts.SoftDelete && !permanent {
		current, err := c.store.FindOne(ctx, c.schema, c.live([]Condition{BuildIDQuery(id)}), nil)
		if errors.Is(err, ErrNotFound) {
			return c.notFound()
		}
		if err != nil {
			return c.serverError(err)
		}
		rowID, _ := current.ID()
		saved, err := c.store.Update(ctx, c.schema, rowID, Record{
			FieldDeletedAt: c.opts.Now(),
			FieldDeletedBy: actor,
		})
		if errors.Is(err, ErrNotFound) {
			return c.notFound()
		}
		if err != nil {
			return c.serverError(err)
		}
		c.emit(ctx, ActionDelete, saved, actor)
		return Result{Status: http.StatusOK, Body: response.SoftDeleteSuccess(c.name, c.schema.Public(saved))}
	}

	current, err := c.store.FindOne(ctx, c.schema, []Condition{BuildIDQuery(id)}, nil)
	if errors.Is(err, ErrNotFound) {
		return c.notFound()
	}
	if err != nil {
		return c.serverError(err)
	}
	rowID, _ := current.ID()
	if err := c.store.Delete(ctx, c.schema, rowID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.notFound()
		}
		return c.serverError(err)
	}
	c.emit(ctx, ActionDelete, current, actor)
	return Result{Status: http.StatusOK, Body: response.DeleteSuccess(c.name, map[string]string{"deletedId": id})}
}

// changes is the write set of an update: the writable fields the payload
// named or the hooks altered, plus the update stamps.  Controller-managed
// columns such as deleted_at are never rewritten.
func (c *Controller) changes(current, payload, merged Record) Record {
	out := Record{
		FieldUpdatedBy:   merged[FieldUpdatedBy],
		FieldUpdatedDate: merged[FieldUpdatedDate],
	}
	for _, f := range c.schema.Fields() {
		if f.ReadOnly {
			continue
		}
		_, sent := payload[f.Name]
		if sent || !reflect.DeepEqual(merged[f.Name], current[f.Name]) {
			out[f.Name] = merged[f.Name]
		}
	}
	return out
}

// live restricts where to non-deleted rows when soft delete is on.
func (c *Controller) live(where []Condition) []Condition {
	if !c.opts.SoftDelete {
		return where
	}
	return append(where, Condition{Field: FieldDeletedAt, Op: OpIsNull})
}

func (c *Controller) publicAll(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, c.schema.Public(r))
	}
	return out
}

func (c *Controller) notFound() Result {
	return Result{Status: http.StatusNotFound, Body: response.NotFound(c.name)}
}

// writeError classifies create/update failures; all of them are client
// errors, with validation failures carrying per-field details.
func (c *Controller) writeError(err error) Result {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return Result{Status: http.StatusBadRequest, Body: response.Error(response.ValidationError, verr.Fields)}
	case errors.Is(err, ErrDuplicate):
		return Result{Status: http.StatusBadRequest, Body: response.Error(response.Messages.AlreadyExists(c.name), nil)}
	}
	c.opts.Logger.WithField("resource", c.schema.Model).WithError(err).Warn("write rejected")
	return Result{Status: http.StatusBadRequest, Body: response.Error(err.Error(), nil)}
}

func (c *Controller) serverError(err error) Result {
	c.opts.Logger.WithField("resource", c.schema.Model).WithError(err).Error("query failed")
	return Result{Status: http.StatusInternalServerError, Body: response.Error(err.Error(), nil)}
}

func (c *Controller) emit(ctx context.Context, action Action, rec Record, actor string) {
	recordID := ""
	if id, ok := rec.ID(); ok {
		recordID = fmt.Sprint(id)
	}
	c.opts.Logger.WithField("resource", c.schema.Model).
		WithField("record_id", recordID).
		WithField("actor", actor).
		Info(c.schema.Model + " " + string(action) + "d")
	metrics.RecordResourceWrite(c.schema.Model, string(action))
	if c.opts.Events == nil {
		return
	}
	ev := queue.AuditEvent{
		Kind:       queue.KindResource,
		Resource:   c.schema.Model,
		Action:     string(action),
		RecordID:   recordID,
		Actor:      actor,
		OccurredAt: c.opts.Now(),
	}
	if err := c.opts.Events.Publish(ctx, ev); err != nil {
		c.opts.Logger.WithField("resource", c.schema.Model).WithError(err).Warn("audit publish failed")
	}
}
