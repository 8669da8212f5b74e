package route

import (
	"context"
	"fmt"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin/auth"
	"github.com/evergreen-ci/restadmin/db"
	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/evergreen-ci/restadmin/rest/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	packageName = "github.com/evergreen-ci/restadmin/rest/route"

	modelAttribute  = "restadmin.model"
	actionAttribute = "restadmin.action"
)

var tracer = otel.GetTracerProvider().Tracer(packageName)

// Option keys with a typed meaning on a view set. Other keys are kept in
// Options as given.
const (
	DocOption        = "__doc__"
	QuerysetOption   = "queryset"
	SerializerOption = "serializer"
	PageSizeOption   = "page_size"
)

// Options are extra attributes merged onto a view set at registration.
type Options map[string]interface{}

// ViewSet exposes the CRUD actions of one model. Every action checks the
// user's permission before touching the store.
type ViewSet struct {
	Model *dbModel.Model
	// Queryset is the source of the records served. When nil it is bound
	// to all records of the model during route assembly.
	Queryset *db.Query
	// Serializer converts records. When nil a serializer over all fields is
	// created during route assembly.
	Serializer model.Serializer
	// PageSize is the default number of records per list page. Zero
	// returns every record unless the request asks for a limit.
	PageSize int
	Doc      string
	Options  Options
	Store    db.Store
}

// ListOptions select a page of a list.
type ListOptions struct {
	Limit  int
	Offset int
}

// Page is one page of serialized records.
type Page struct {
	Count   int               `json:"count"`
	Results []model.APIRecord `json:"results"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasNext bool              `json:"has_next"`
}

// copy returns a view set sharing the configuration values of v with its
// own options map.
func (v *ViewSet) copy() *ViewSet {
	out := *v
	out.Options = Options{}
	for k, val := range v.Options {
		out.Options[k] = val
	}
	return &out
}

// applyOptions merges opts onto the view set, setting the typed fields for
// known keys.
func (v *ViewSet) applyOptions(opts Options) error {
	if v.Options == nil {
		v.Options = Options{}
	}

	for k, val := range opts {
		switch k {
		case QuerysetOption:
			q, ok := val.(*db.Query)
			if !ok {
				return configurationErrorf("option '%s' must be a *db.Query, not %T", k, val)
			}
			v.Queryset = q
		case SerializerOption:
			s, ok := val.(model.Serializer)
			if !ok {
				return configurationErrorf("option '%s' must be a Serializer, not %T", k, val)
			}
			v.Serializer = s
		case PageSizeOption:
			n, ok := val.(int)
			if !ok || n < 0 {
				return configurationErrorf("option '%s' must be a non-negative int", k)
			}
			v.PageSize = n
		case DocOption:
			doc, ok := val.(string)
			if !ok {
				return configurationErrorf("option '%s' must be a string", k)
			}
			v.Doc = doc
		}
		v.Options[k] = val
	}

	return nil
}

// validate checks that the configured query source and serializer belong
// to the view set's model.
func (v *ViewSet) validate() error {
	if v.Model == nil {
		return configurationErrorf("view set has no model")
	}
	if v.Queryset != nil && (v.Queryset.Model == nil || v.Queryset.Model.Label() != v.Model.Label()) {
		return configurationErrorf("queryset %s does not select records of %s", v.Queryset, v.Model.Label())
	}
	if v.Serializer != nil && (v.Serializer.Model() == nil || v.Serializer.Model().Label() != v.Model.Label()) {
		return configurationErrorf("serializer is not bound to %s", v.Model.Label())
	}
	return nil
}

// bindDefaults fills in the query source and serializer if they are
// missing. Later calls keep what the first call created.
func (v *ViewSet) bindDefaults() error {
	if v.Queryset == nil {
		v.Queryset = db.All(v.Model)
	}
	if v.Serializer == nil {
		s, err := model.NewModelSerializer(v.Model)
		if err != nil {
			return errors.Wrapf(err, "creating serializer for %s", v.Model.Label())
		}
		v.Serializer = s
	}
	return nil
}

func (v *ViewSet) ready() error {
	if v.Queryset == nil || v.Serializer == nil {
		return configurationErrorf("view set for %s has not been assembled into routes", v.Model.Label())
	}
	if v.Store == nil {
		return configurationErrorf("view set for %s has no store", v.Model.Label())
	}
	return nil
}

func (v *ViewSet) check(u gimlet.User, action string, allowed func(gimlet.User, *dbModel.Model) bool) error {
	if err := v.ready(); err != nil {
		return err
	}
	if !allowed(u, v.Model) {
		return errors.WithStack(&ForbiddenError{Permission: auth.PermissionKey(v.Model, action)})
	}
	return nil
}

func (v *ViewSet) startSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	return tracer.Start(ctx, fmt.Sprintf("%s %s", v.Model.Label(), action), trace.WithAttributes(
		attribute.String(modelAttribute, v.Model.Label()),
		attribute.String(actionAttribute, action),
	))
}

func (v *ViewSet) serialize(rec dbModel.Record) (model.APIRecord, error) {
	out, err := v.Serializer.BuildFromService(rec)
	return out, errors.Wrapf(err, "serializing %s", v.Model.VerboseName)
}

// List returns a page of records. A zero limit falls back to the view
// set's page size.
func (v *ViewSet) List(ctx context.Context, u gimlet.User, opts ListOptions) (*Page, error) {
	ctx, span := v.startSpan(ctx, ActionList)
	defer span.End()

	if err := v.check(u, auth.ActionView, auth.HasViewPermission); err != nil {
		return nil, err
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, dbModel.ValidationError{"": {"limit and offset must not be negative"}}
	}

	limit := opts.Limit
	if limit == 0 {
		limit = v.PageSize
	}

	recs, total, err := v.Store.Find(ctx, v.Queryset, db.FindOptions{Skip: opts.Offset, Limit: limit})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", v.Model.VerboseNamePlural)
	}

	page := &Page{
		Count:   total,
		Results: make([]model.APIRecord, 0, len(recs)),
		Limit:   limit,
		Offset:  opts.Offset,
	}
	for _, rec := range recs {
		out, err := v.serialize(rec)
		if err != nil {
			return nil, err
		}
		page.Results = append(page.Results, out)
	}
	page.HasNext = limit > 0 && opts.Offset+len(recs) < total

	return page, nil
}

// Create validates the payload and stores a new record.
func (v *ViewSet) Create(ctx context.Context, u gimlet.User, data model.APIRecord) (model.APIRecord, error) {
	ctx, span := v.startSpan(ctx, ActionCreate)
	defer span.End()

	if err := v.check(u, auth.ActionAdd, auth.HasAddPermission); err != nil {
		return nil, err
	}

	rec, err := v.Serializer.ToService(data, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	created, err := v.Store.Insert(ctx, v.Model, rec)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", v.Model.VerboseName)
	}

	return v.serialize(created)
}

// Retrieve returns one record by id.
func (v *ViewSet) Retrieve(ctx context.Context, u gimlet.User, id string) (model.APIRecord, error) {
	ctx, span := v.startSpan(ctx, ActionRetrieve)
	defer span.End()

	if err := v.check(u, auth.ActionView, auth.HasViewPermission); err != nil {
		return nil, err
	}

	rec, err := v.Store.Get(ctx, v.Queryset, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return v.serialize(rec)
}

// Update replaces every writable field the serializer exposes.
func (v *ViewSet) Update(ctx context.Context, u gimlet.User, id string, data model.APIRecord) (model.APIRecord, error) {
	return v.update(ctx, u, id, data, false)
}

// PartialUpdate changes only the fields present in the payload.
func (v *ViewSet) PartialUpdate(ctx context.Context, u gimlet.User, id string, data model.APIRecord) (model.APIRecord, error) {
	return v.update(ctx, u, id, data, true)
}

func (v *ViewSet) update(ctx context.Context, u gimlet.User, id string, data model.APIRecord, partial bool) (model.APIRecord, error) {
	action := ActionUpdate
	if partial {
		action = ActionPartialUpdate
	}
	ctx, span := v.startSpan(ctx, action)
	defer span.End()

	if err := v.check(u, auth.ActionChange, auth.HasChangePermission); err != nil {
		return nil, err
	}

	rec, err := v.Serializer.ToService(data, partial)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// a full update clears the exposed fields the payload omits and leaves
	// fields the serializer does not expose alone
	if !partial {
		for _, name := range v.Serializer.Fields() {
			if f, ok := v.Model.Field(name); ok && !f.ReadOnly {
				if _, ok = rec[name]; !ok {
					rec[name] = nil
				}
			}
		}
	}

	updated, err := v.Store.Update(ctx, v.Queryset, id, rec, true)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return v.serialize(updated)
}

// Destroy deletes one record by id.
func (v *ViewSet) Destroy(ctx context.Context, u gimlet.User, id string) error {
	ctx, span := v.startSpan(ctx, ActionDestroy)
	defer span.End()

	if err := v.check(u, auth.ActionDelete, auth.HasDeletePermission); err != nil {
		return err
	}

	return errors.WithStack(v.Store.Delete(ctx, v.Queryset, id))
}
