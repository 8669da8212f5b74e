package route

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
	"github.com/evergreen-ci/restadmin/db"
	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// Actions of a view set, as they appear in route entries.
const (
	ActionList          = "list"
	ActionCreate        = "create"
	ActionRetrieve      = "retrieve"
	ActionUpdate        = "update"
	ActionPartialUpdate = "partial_update"
	ActionDestroy       = "destroy"
)

// docsPathPrefix is reserved for the documentation endpoints, so no app
// may use it as its label.
const docsPathPrefix = "docs"

// Route is one entry of the route table: a verb and path bound to a view
// set action, or to a caller-supplied handler for custom routes.
type Route struct {
	Method string
	Path   string
	Name   string
	Action string
	View   *ViewSet

	Handler gimlet.RouteHandler
}

func (r Route) String() string { return fmt.Sprintf("%s %s", r.Method, r.Path) }

// Registry maps models to the view sets that serve them. It is populated
// at startup and read afterwards, and is not safe for concurrent mutation.
type Registry struct {
	store    db.Store
	order    []string
	views    map[string]*ViewSet
	patterns []Route
}

// NewRegistry returns an empty registry whose view sets use store unless
// their base view set names another.
func NewRegistry(store db.Store) *Registry {
	return &Registry{
		store: store,
		views: map[string]*ViewSet{},
	}
}

// Register adds view sets for the models. Each view set is a copy of base
// (or of an empty view set when base is nil) with opts merged onto it and
// the generated documentation stored under DocOption. Every model is
// checked before any is added, so a failed call leaves the registry
// unchanged.
func (r *Registry) Register(base *ViewSet, opts Options, models ...*dbModel.Model) error {
	if base == nil {
		base = &ViewSet{}
	}

	pending := make([]*ViewSet, 0, len(models))
	seen := map[string]bool{}
	for _, m := range models {
		if m == nil {
			return configurationErrorf("cannot register a nil model")
		}
		if err := m.Validate(); err != nil {
			return errors.WithStack(&ConfigurationError{Message: err.Error()})
		}
		if m.Abstract {
			return configurationErrorf("the model %s is abstract, so it cannot be registered", m.Label())
		}
		if m.AppLabel == docsPathPrefix {
			return configurationErrorf("the app label '%s' is reserved", docsPathPrefix)
		}
		if _, ok := r.views[registryKey(m)]; ok || seen[registryKey(m)] {
			return errors.WithStack(&AlreadyRegisteredError{Model: m.Label()})
		}
		seen[registryKey(m)] = true

		view := base.copy()
		view.Model = m
		if view.Store == nil {
			view.Store = r.store
		}
		if err := view.applyOptions(opts); err != nil {
			return errors.Wrapf(err, "registering %s", m.Label())
		}
		if err := view.applyOptions(Options{DocOption: GenerateDocs(m)}); err != nil {
			return errors.WithStack(err)
		}
		if err := view.validate(); err != nil {
			return errors.Wrapf(err, "registering %s", m.Label())
		}
		pending = append(pending, view)
	}

	for _, view := range pending {
		label := registryKey(view.Model)
		r.views[label] = view
		r.order = append(r.order, label)
		grip.Debug(message.Fields{
			"message": "registered model",
			"model":   label,
			"options": len(view.Options),
		})
	}

	return nil
}

// Unregister removes the models. If any of them is not registered, or is
// named twice, nothing is removed.
func (r *Registry) Unregister(models ...*dbModel.Model) error {
	labels := make([]string, 0, len(models))
	seen := map[string]bool{}
	for _, m := range models {
		if m == nil {
			return configurationErrorf("cannot unregister a nil model")
		}
		label := registryKey(m)
		if _, ok := r.views[label]; !ok || seen[label] {
			return errors.WithStack(&NotRegisteredError{Model: label})
		}
		seen[label] = true
		labels = append(labels, label)
	}

	for _, label := range labels {
		delete(r.views, label)
		for i, l := range r.order {
			if l == label {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}

	return nil
}

// IsRegistered reports whether the model has a view set.
func (r *Registry) IsRegistered(m *dbModel.Model) bool {
	if m == nil {
		return false
	}
	_, ok := r.views[registryKey(m)]
	return ok
}

// Get returns the view set of a registered model.
func (r *Registry) Get(m *dbModel.Model) (*ViewSet, error) {
	if m == nil {
		return nil, configurationErrorf("nil model")
	}
	view, ok := r.views[registryKey(m)]
	if !ok {
		return nil, errors.WithStack(&NotRegisteredError{Model: registryKey(m)})
	}
	return view, nil
}

// registryKey matches the label a model has once validated, so
// descriptors that were never validated still find their entry.
func registryKey(m *dbModel.Model) string {
	return m.AppLabel + "." + strings.ToLower(m.Name)
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*dbModel.Model {
	out := make([]*dbModel.Model, 0, len(r.order))
	for _, label := range r.order {
		out = append(out, r.views[label].Model)
	}
	return out
}

// RegisterURLPattern adds a custom route, served after the generated ones.
func (r *Registry) RegisterURLPattern(route Route) error {
	if route.Path == "" || route.Method == "" {
		return configurationErrorf("custom route must have a method and a path")
	}
	if route.Handler == nil {
		return configurationErrorf("custom route %s has no handler", route)
	}

	r.patterns = append(r.patterns, route)
	return nil
}

// GetURLs binds the default query source and serializer of every view set
// lacking one, then returns the routes of all registered models in
// registration order followed by the custom routes.
func (r *Registry) GetURLs() ([]Route, error) {
	routes := []Route{}
	for _, label := range r.order {
		view := r.views[label]
		if err := view.bindDefaults(); err != nil {
			return nil, errors.WithStack(err)
		}
		routes = append(routes, modelRoutes(view)...)
	}

	return append(routes, r.patterns...), nil
}

// URLs returns the route table together with the application and instance
// namespace it should be mounted under.
func (r *Registry) URLs() ([]Route, string, string, error) {
	routes, err := r.GetURLs()
	return routes, restadmin.Namespace, restadmin.Namespace, err
}

func collectionPath(m *dbModel.Model) string {
	return fmt.Sprintf("/%s/%s", m.AppLabel, m.Name)
}

func itemPath(m *dbModel.Model) string {
	return collectionPath(m) + "/{id}"
}

func modelRoutes(view *ViewSet) []Route {
	m := view.Model
	base := fmt.Sprintf("%s-%s", m.AppLabel, m.Name)
	list := base + "-list"
	detail := base + "-detail"

	return []Route{
		{Method: http.MethodGet, Path: collectionPath(m), Name: list, Action: ActionList, View: view,
			Handler: makeListHandler(view)},
		{Method: http.MethodPost, Path: collectionPath(m), Name: list, Action: ActionCreate, View: view,
			Handler: makeCreateHandler(view)},
		{Method: http.MethodGet, Path: itemPath(m), Name: detail, Action: ActionRetrieve, View: view,
			Handler: makeRetrieveHandler(view)},
		{Method: http.MethodPut, Path: itemPath(m), Name: detail, Action: ActionUpdate, View: view,
			Handler: makeUpdateHandler(view, false)},
		{Method: http.MethodPatch, Path: itemPath(m), Name: detail, Action: ActionPartialUpdate, View: view,
			Handler: makeUpdateHandler(view, true)},
		{Method: http.MethodDelete, Path: itemPath(m), Name: detail, Action: ActionDestroy, View: view,
			Handler: makeDestroyHandler(view)},
	}
}
