package route

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/restadmin"
	dbModel "github.com/evergreen-ci/restadmin/model"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Attach mounts the route table on app under prefix, together with the API
// root, OPTIONS responses for every path and the documentation pages.
// Documentation routes are added before the model routes so that they take
// precedence in matching.
func (r *Registry) Attach(app *gimlet.APIApp, prefix string) error {
	routes, err := r.GetURLs()
	if err != nil {
		return errors.Wrap(err, "assembling routes")
	}
	if prefix != "" {
		prefix = "/" + strings.Trim(prefix, "/")
		app.SetPrefix(prefix)
	}

	app.AddRoute("/").Get().RouteHandler(makeAPIRootHandler(routes))
	app.AddRoute("/docs").Get().RouteHandler(makeDocsIndexHandler(r))
	app.AddRoute("/docs/{app_label}/{model_name}").Get().RouteHandler(makeModelDocsHandler(r))

	options := newOptionsRouter(prefix)
	for _, route := range routes {
		app.AddRoute(route.Path).Method(route.Method).RouteHandler(route.Handler)
		options.allow(route)
	}

	app.AddMiddleware(options)
	app.AddMiddleware(handlerMiddleware(otelmux.Middleware(restadmin.Namespace)))

	return nil
}

// handlerMiddleware adapts standard http middleware to gimlet.
type handlerMiddleware func(http.Handler) http.Handler

func (m handlerMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	m(next).ServeHTTP(rw, r)
}

////////////////////////////////////////////////////////////////////////
//
// OPTIONS on every routed path

type optionsPath struct {
	name    string
	doc     string
	methods []string
}

// optionsRouter answers OPTIONS requests for the paths in the route table
// with the verbs each path supports. Other requests pass through.
type optionsRouter struct {
	prefix string
	router *mux.Router
	paths  map[string]*optionsPath
}

func newOptionsRouter(prefix string) *optionsRouter {
	return &optionsRouter{
		prefix: prefix,
		router: mux.NewRouter(),
		paths:  map[string]*optionsPath{},
	}
}

func (o *optionsRouter) allow(route Route) {
	p, ok := o.paths[route.Path]
	if !ok {
		p = &optionsPath{name: route.Name}
		if route.View != nil {
			p.doc = route.View.Doc
			p.name = route.View.Model.VerboseName
			if route.Path == collectionPath(route.View.Model) {
				p.name = route.View.Model.VerboseNamePlural
			}
		}
		o.paths[route.Path] = p
		o.router.Handle(o.prefix+route.Path, p).Methods(http.MethodOptions)
	}
	p.methods = append(p.methods, route.Method)
}

func (o *optionsRouter) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodOptions {
		next(rw, r)
		return
	}

	var match mux.RouteMatch
	if !o.router.Match(r, &match) {
		next(rw, r)
		return
	}
	match.Handler.ServeHTTP(rw, r)
}

func (p *optionsPath) allowed() []string {
	return append(append([]string{}, p.methods...), http.MethodOptions)
}

func (p *optionsPath) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	allowed := p.allowed()
	rw.Header().Set("Allow", strings.Join(allowed, ", "))
	gimlet.WriteJSONResponse(rw, http.StatusOK, map[string]interface{}{
		"name":            p.name,
		"description":     p.doc,
		"allowed_methods": allowed,
	})
}

////////////////////////////////////////////////////////////////////////
//
// GET /

type apiRootEndpoint struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

type apiRootHandler struct {
	endpoints []apiRootEndpoint
}

func makeAPIRootHandler(routes []Route) gimlet.RouteHandler {
	h := &apiRootHandler{}
	index := map[string]int{}
	for _, route := range routes {
		i, ok := index[route.Path]
		if !ok {
			i = len(h.endpoints)
			index[route.Path] = i
			h.endpoints = append(h.endpoints, apiRootEndpoint{Name: route.Name, Path: route.Path})
		}
		h.endpoints[i].Methods = append(h.endpoints[i].Methods, route.Method)
	}
	return h
}

func (h *apiRootHandler) Factory() gimlet.RouteHandler                     { return h }
func (h *apiRootHandler) Parse(ctx context.Context, r *http.Request) error { return nil }

func (h *apiRootHandler) Run(ctx context.Context) gimlet.Responder {
	return gimlet.NewJSONResponse(map[string]interface{}{
		"namespace": restadmin.Namespace,
		"endpoints": h.endpoints,
	})
}

////////////////////////////////////////////////////////////////////////
//
// GET /docs

type docsIndexHandler struct {
	registry *Registry
}

func makeDocsIndexHandler(r *Registry) gimlet.RouteHandler {
	return &docsIndexHandler{registry: r}
}

func (h *docsIndexHandler) Factory() gimlet.RouteHandler                     { return h }
func (h *docsIndexHandler) Parse(ctx context.Context, r *http.Request) error { return nil }

func (h *docsIndexHandler) Run(ctx context.Context) gimlet.Responder {
	var buf bytes.Buffer
	for _, m := range h.registry.Models() {
		view, err := h.registry.Get(m)
		if err != nil {
			return errorResponder(ctx, err)
		}
		fmt.Fprintf(&buf, "## %s\n\n%s\n", m.Label(), view.Doc)
	}

	html, err := RenderDocs(buf.String())
	if err != nil {
		return gimlet.MakeJSONInternalErrorResponder(err)
	}
	return gimlet.NewHTMLResponse(string(html))
}

////////////////////////////////////////////////////////////////////////
//
// GET /docs/{app_label}/{model_name}

type modelDocsHandler struct {
	registry *Registry
	model    *dbModel.Model
}

func makeModelDocsHandler(r *Registry) gimlet.RouteHandler {
	return &modelDocsHandler{registry: r}
}

func (h *modelDocsHandler) Factory() gimlet.RouteHandler {
	return &modelDocsHandler{registry: h.registry}
}

func (h *modelDocsHandler) Parse(ctx context.Context, r *http.Request) error {
	vars := gimlet.GetVars(r)
	h.model = &dbModel.Model{AppLabel: vars["app_label"], Name: vars["model_name"]}
	return nil
}

func (h *modelDocsHandler) Run(ctx context.Context) gimlet.Responder {
	view, err := h.registry.Get(h.model)
	if err != nil {
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("model '%s' is not registered", h.model.Label()),
		})
	}

	html, err := RenderDocs(view.Doc)
	if err != nil {
		return gimlet.MakeJSONInternalErrorResponder(err)
	}
	return gimlet.NewHTMLResponse(string(html))
}
